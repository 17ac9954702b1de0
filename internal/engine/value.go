package engine

import (
	"fmt"
	"strconv"
)

// Value is an opaque scenario value. The engine never evaluates values;
// it only threads them through bindings and renders them for display.
type Value interface {
	Inspect() string
}

type undefinedValue struct{}

func (undefinedValue) Inspect() string { return "undefined" }

// Undefined is the value held by hoisted var bindings and missing this bindings.
var Undefined Value = undefinedValue{}

// IsUndefined reports whether v is the undefined value (or a nil interface).
func IsUndefined(v Value) bool {
	if v == nil {
		return true
	}
	_, ok := v.(undefinedValue)
	return ok
}

// Primitive wraps a literal taken from scenario data (string, number, bool, null).
type Primitive struct {
	Raw any
}

// NewValue converts decoded scenario data into a Value.
func NewValue(raw any) Value {
	switch v := raw.(type) {
	case Value:
		return v
	case nil:
		return Primitive{Raw: nil}
	default:
		return Primitive{Raw: v}
	}
}

func (p Primitive) Inspect() string {
	switch v := p.Raw.(type) {
	case nil:
		return "null"
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case uint64:
		return strconv.FormatUint(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	default:
		return fmt.Sprintf("%v", v)
	}
}

// Function is the value bound by a function declaration. Environment is the
// context that was active when the declaration ran, which is what the call
// chains to. Keeping that pointer is how closures outlive their context.
type Function struct {
	Name        string
	Body        []Instruction
	Environment *ExecutionContext
	Arrow       bool
}

func (f *Function) Inspect() string {
	if f.Arrow {
		return fmt.Sprintf("() => { %s }", f.Name)
	}
	return fmt.Sprintf("function %s()", f.Name)
}
