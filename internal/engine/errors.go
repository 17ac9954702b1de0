package engine

import (
	"errors"
	"fmt"
)

var (
	ErrNotDefined         = errors.New("not defined")
	ErrTDZ                = errors.New("accessed before initialization")
	ErrConstAssign        = errors.New("assignment to constant")
	ErrUnknownInstruction = errors.New("unknown instruction")
	ErrEmptyStack         = errors.New("context stack is empty")
	ErrNotCallable        = errors.New("not a function")
	ErrCallDepth          = errors.New("maximum call stack size exceeded")
	ErrMalformed          = errors.New("malformed instruction")
	ErrRedeclared         = errors.New("already declared")
)

// ErrorName is the user-facing class of a simulated error.
type ErrorName string

const (
	ReferenceError ErrorName = "ReferenceError"
	TypeError      ErrorName = "TypeError"
	RangeError     ErrorName = "RangeError"
	SyntaxError    ErrorName = "SyntaxError"
	ScenarioError  ErrorName = "ScenarioError"
)

// RuntimeError is a failure raised while dispatching an instruction. It is
// always caught by Step and turned into a trace entry.
type RuntimeError struct {
	Name    ErrorName
	Message string
	kind    error
}

func (e *RuntimeError) Error() string {
	return fmt.Sprintf("%s: %s", e.Name, e.Message)
}

func (e *RuntimeError) Unwrap() error {
	return e.kind
}

func notDefinedError(name string) error {
	return &RuntimeError{Name: ReferenceError, Message: fmt.Sprintf("%s is not defined", name), kind: ErrNotDefined}
}

func tdzError(name string) error {
	return &RuntimeError{Name: ReferenceError, Message: fmt.Sprintf("Cannot access '%s' before initialization", name), kind: ErrTDZ}
}

func constAssignError(name string) error {
	return &RuntimeError{Name: TypeError, Message: fmt.Sprintf("Assignment to constant variable '%s'", name), kind: ErrConstAssign}
}

func redeclaredError(name string) error {
	return &RuntimeError{Name: SyntaxError, Message: fmt.Sprintf("Identifier '%s' has already been declared", name), kind: ErrRedeclared}
}

func notCallableError(name string) error {
	return &RuntimeError{Name: TypeError, Message: fmt.Sprintf("%s is not a function", name), kind: ErrNotCallable}
}

func callDepthError(limit int) error {
	return &RuntimeError{Name: RangeError, Message: fmt.Sprintf("Maximum call stack size exceeded (%d frames)", limit), kind: ErrCallDepth}
}

func unknownInstructionError(kind Kind) error {
	return &RuntimeError{Name: ScenarioError, Message: fmt.Sprintf("Unknown instruction %q", string(kind)), kind: ErrUnknownInstruction}
}

func emptyStackError(op Kind) error {
	return &RuntimeError{Name: ScenarioError, Message: fmt.Sprintf("%s with an empty call stack", op), kind: ErrEmptyStack}
}

func malformedError(kind Kind, field string) error {
	return &RuntimeError{Name: ScenarioError, Message: fmt.Sprintf("%s is missing %q", kind, field), kind: ErrMalformed}
}

func mismatchError(kind Kind, want ContextType, got ContextType) error {
	return &RuntimeError{Name: ScenarioError, Message: fmt.Sprintf("%s expects a %s context on top, found %s", kind, want, got), kind: ErrMalformed}
}
