package engine

// BindingKind is the declaration keyword that created a binding.
type BindingKind string

const (
	KindVar      BindingKind = "var"
	KindLet      BindingKind = "let"
	KindConst    BindingKind = "const"
	KindFunction BindingKind = "function"
)

// Hoisted reports whether bindings of this kind live in the variable
// environment and start out initialized.
func (k BindingKind) Hoisted() bool {
	return k == KindVar || k == KindFunction
}

// VariableRecord is the storage for a single binding.
type VariableRecord struct {
	Kind        BindingKind
	Initialized bool
	Value       Value
}

func newRecord(kind BindingKind, value Value) *VariableRecord {
	rec := &VariableRecord{Kind: kind, Value: Undefined}
	if kind.Hoisted() {
		rec.Initialized = true
		if value != nil {
			rec.Value = value
		}
	}
	return rec
}

// assign sets the value, refusing to touch an initialized const.
func (r *VariableRecord) assign(name string, value Value) error {
	if r.Kind == KindConst && r.Initialized {
		return constAssignError(name)
	}
	if value == nil {
		value = Undefined
	}
	r.Initialized = true
	r.Value = value
	return nil
}
