package engine

import "fmt"

// ContextType distinguishes the frames that can sit on the call stack.
type ContextType string

const (
	ContextGlobal   ContextType = "global"
	ContextFunction ContextType = "function"
	ContextBlock    ContextType = "block"
)

// ExecutionContext represents a single activation on the simulated call stack.
type ExecutionContext struct {
	ID   string
	Type ContextType
	Name string

	// VariableEnvironment holds var and function bindings
	VariableEnvironment map[string]*VariableRecord
	// LexicalEnvironment holds let and const bindings
	LexicalEnvironment map[string]*VariableRecord

	// Outer is the lexically enclosing context captured at creation time.
	// Several contexts may share the same outer.
	Outer *ExecutionContext

	// This is nil for contexts without their own this binding (arrow
	// functions, blocks).
	This Value
}

// globalThis is the receiver bound in the global context.
var globalThis Value = Primitive{Raw: "window"}

func newContext(id string, typ ContextType, name string, outer *ExecutionContext) *ExecutionContext {
	ctx := &ExecutionContext{
		ID:                  id,
		Type:                typ,
		Name:                name,
		VariableEnvironment: make(map[string]*VariableRecord),
		LexicalEnvironment:  make(map[string]*VariableRecord),
		Outer:               outer,
	}
	if typ == ContextGlobal {
		ctx.This = globalThis
	}
	return ctx
}

// lookup checks this context only; lexical bindings shadow variable ones.
func (c *ExecutionContext) lookup(name string) (*VariableRecord, bool) {
	if rec, ok := c.LexicalEnvironment[name]; ok {
		return rec, true
	}
	rec, ok := c.VariableEnvironment[name]
	return rec, ok
}

func (c *ExecutionContext) declare(name string, rec *VariableRecord) {
	if rec.Kind.Hoisted() {
		c.VariableEnvironment[name] = rec
	} else {
		c.LexicalEnvironment[name] = rec
	}
}

func (c *ExecutionContext) String() string {
	return fmt.Sprintf("%s(%s)", c.Name, c.ID)
}
