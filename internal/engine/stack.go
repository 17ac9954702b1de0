package engine

import "strings"

// ContextStack is the simulated call stack. The last pushed context is the
// active one and the starting point for name resolution.
type ContextStack struct {
	contexts []*ExecutionContext
}

// Push makes ctx the active context.
func (s *ContextStack) Push(ctx *ExecutionContext) {
	s.contexts = append(s.contexts, ctx)
}

// Pop removes and returns the active context.
func (s *ContextStack) Pop() (*ExecutionContext, error) {
	if len(s.contexts) == 0 {
		return nil, ErrEmptyStack
	}
	top := s.contexts[len(s.contexts)-1]
	s.contexts[len(s.contexts)-1] = nil
	s.contexts = s.contexts[:len(s.contexts)-1]
	return top, nil
}

// Current returns the active context, or nil when the stack is empty.
func (s *ContextStack) Current() *ExecutionContext {
	if len(s.contexts) == 0 {
		return nil
	}
	return s.contexts[len(s.contexts)-1]
}

// Len returns the stack height.
func (s *ContextStack) Len() int {
	return len(s.contexts)
}

// Contexts returns the stack bottom first. The slice is shared; callers
// must not modify it.
func (s *ContextStack) Contexts() []*ExecutionContext {
	return s.contexts
}

// contains reports whether ctx is still on the stack.
func (s *ContextStack) contains(ctx *ExecutionContext) bool {
	for i := len(s.contexts) - 1; i >= 0; i-- {
		if s.contexts[i] == ctx {
			return true
		}
	}
	return false
}

// Resolve walks the scope chain from the active context outward. Presence
// is decided by key existence, so a record holding undefined still resolves.
func (s *ContextStack) Resolve(name string) (*VariableRecord, error) {
	return resolveFrom(s.Current(), name)
}

func resolveFrom(ctx *ExecutionContext, name string) (*VariableRecord, error) {
	for ; ctx != nil; ctx = ctx.Outer {
		if rec, ok := ctx.lookup(name); ok {
			return rec, nil
		}
	}
	return nil, notDefinedError(name)
}

// Declare creates a binding. var and function bindings start initialized
// (value, or undefined when value is nil) and land in the nearest enclosing
// non-block context; let and const start in the temporal dead zone in the
// active context. Redeclaring a var keeps the existing binding; redeclaring
// a let or const in the same context is a SyntaxError.
func (s *ContextStack) Declare(name string, kind BindingKind, value Value) (*VariableRecord, error) {
	ctx := s.Current()
	if ctx == nil {
		return nil, emptyStackError(Kind("DECLARE_" + strings.ToUpper(string(kind))))
	}
	if kind.Hoisted() {
		ctx = hoistTarget(ctx)
		if _, ok := ctx.LexicalEnvironment[name]; ok {
			return nil, redeclaredError(name)
		}
		if rec, ok := ctx.VariableEnvironment[name]; ok && kind == KindVar {
			return rec, nil
		}
	} else if _, ok := ctx.lookup(name); ok {
		return nil, redeclaredError(name)
	}
	rec := newRecord(kind, value)
	ctx.declare(name, rec)
	return rec, nil
}

// hoistTarget skips block contexts outward.
func hoistTarget(ctx *ExecutionContext) *ExecutionContext {
	for ctx.Type == ContextBlock && ctx.Outer != nil {
		ctx = ctx.Outer
	}
	return ctx
}

// Initialize binds value to name. It serves both the first assignment of a
// let/const and later reassignment of var/let.
func (s *ContextStack) Initialize(name string, value Value) error {
	rec, err := s.Resolve(name)
	if err != nil {
		return err
	}
	return rec.assign(name, value)
}

// Read returns the value bound to name, enforcing the temporal dead zone.
func (s *ContextStack) Read(name string) (Value, error) {
	rec, err := s.Resolve(name)
	if err != nil {
		return nil, err
	}
	if !rec.Initialized {
		return nil, tdzError(name)
	}
	return rec.Value, nil
}

func (s *ContextStack) reset() {
	s.contexts = nil
}
