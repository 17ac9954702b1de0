package engine

import "sort"

// Phase is the interpreter state shown to collaborators.
type Phase string

const (
	StateIdle      Phase = "idle"
	StateCreation  Phase = "creation"
	StateExecution Phase = "execution"
	StateEventLoop Phase = "event-loop"
	StateDone      Phase = "done"
)

// Explanation describes what an instruction kind teaches.
type Explanation struct {
	Title       string `json:"title" yaml:"title"`
	Description string `json:"description" yaml:"description"`
	Concept     string `json:"concept,omitempty" yaml:"concept,omitempty"`
}

// Explainer looks up the explanation for an instruction kind.
type Explainer interface {
	Explain(kind Kind) (Explanation, bool)
}

// RecordView is the snapshot of a binding.
type RecordView struct {
	Kind        BindingKind `json:"kind" yaml:"kind"`
	Initialized bool        `json:"initialized" yaml:"initialized"`
	Value       string      `json:"value" yaml:"value"`
	// Closure is the id of the context captured by a function value.
	Closure string `json:"closure,omitempty" yaml:"closure,omitempty"`
}

// ContextView is the snapshot of an execution context.
type ContextView struct {
	ID                  string                `json:"id" yaml:"id"`
	Type                ContextType           `json:"type" yaml:"type"`
	Name                string                `json:"name" yaml:"name"`
	VariableEnvironment map[string]RecordView `json:"variableEnvironment" yaml:"variableEnvironment"`
	LexicalEnvironment  map[string]RecordView `json:"lexicalEnvironment" yaml:"lexicalEnvironment"`
	Outer               string                `json:"outer,omitempty" yaml:"outer,omitempty"`
	This                string                `json:"this,omitempty" yaml:"this,omitempty"`
}

// TaskView is the snapshot of a queued callback.
type TaskView struct {
	Kind string `json:"kind" yaml:"kind"`
	Text string `json:"text" yaml:"text"`
}

// MacrotaskView is the snapshot of a queued macrotask.
type MacrotaskView struct {
	ID       string   `json:"id" yaml:"id"`
	Type     string   `json:"type" yaml:"type"`
	Callback TaskView `json:"callback" yaml:"callback"`
}

// PendingView is the snapshot of a pending operation. Seq orders entries by
// registration.
type PendingView struct {
	Seq      int      `json:"seq" yaml:"seq"`
	Type     string   `json:"type" yaml:"type"`
	Callback TaskView `json:"callback" yaml:"callback"`
	Delay    int      `json:"delay,omitempty" yaml:"delay,omitempty"`
}

// State is an immutable snapshot of a session. Nothing in it points into
// engine memory, so callers may keep, diff or modify it freely.
type State struct {
	CallStack     []ContextView          `json:"callStack" yaml:"callStack"`
	Trace         []TraceEntry           `json:"trace" yaml:"trace"`
	Microtasks    []TaskView             `json:"microtasks" yaml:"microtasks"`
	Macrotasks    []MacrotaskView        `json:"macrotasks" yaml:"macrotasks"`
	Pending       map[string]PendingView `json:"pending" yaml:"pending"`
	Phase         Phase                  `json:"phase" yaml:"phase"`
	Line          int                    `json:"line,omitempty" yaml:"line,omitempty"`
	StepsExecuted int                    `json:"stepsExecuted" yaml:"stepsExecuted"`
	TotalSteps    int                    `json:"totalSteps" yaml:"totalSteps"`
	Explanation   *Explanation           `json:"explanation,omitempty" yaml:"explanation,omitempty"`
	CallDepth     int                    `json:"callDepth" yaml:"callDepth"`
	HasNext       bool                   `json:"hasNext" yaml:"hasNext"`
}

// PendingInOrder returns the pending operations ordered by registration.
func (s State) PendingInOrder() []string {
	ids := make([]string, 0, len(s.Pending))
	for id := range s.Pending {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return s.Pending[ids[i]].Seq < s.Pending[ids[j]].Seq })
	return ids
}

// Top returns the active context of the snapshot.
func (s State) Top() (ContextView, bool) {
	if len(s.CallStack) == 0 {
		return ContextView{}, false
	}
	return s.CallStack[len(s.CallStack)-1], true
}

func viewTask(t Task) TaskView {
	switch t := t.(type) {
	case LabelTask:
		return TaskView{Kind: "label", Text: t.Describe()}
	case ChainedTask:
		return TaskView{Kind: "chained", Text: t.Describe()}
	case CallbackTask:
		return TaskView{Kind: "callback", Text: t.Describe()}
	default:
		return TaskView{Kind: "unknown"}
	}
}

func viewRecord(rec *VariableRecord) RecordView {
	v := RecordView{Kind: rec.Kind, Initialized: rec.Initialized}
	if !rec.Initialized {
		v.Value = "<uninitialized>"
		return v
	}
	if rec.Value == nil {
		v.Value = Undefined.Inspect()
	} else {
		v.Value = rec.Value.Inspect()
	}
	if fn, ok := rec.Value.(*Function); ok && fn.Environment != nil {
		v.Closure = fn.Environment.ID
	}
	return v
}

func viewEnvironment(env map[string]*VariableRecord) map[string]RecordView {
	out := make(map[string]RecordView, len(env))
	for name, rec := range env {
		out[name] = viewRecord(rec)
	}
	return out
}

func viewContext(ctx *ExecutionContext) ContextView {
	v := ContextView{
		ID:                  ctx.ID,
		Type:                ctx.Type,
		Name:                ctx.Name,
		VariableEnvironment: viewEnvironment(ctx.VariableEnvironment),
		LexicalEnvironment:  viewEnvironment(ctx.LexicalEnvironment),
	}
	if ctx.Outer != nil {
		v.Outer = ctx.Outer.ID
	}
	if ctx.This != nil {
		v.This = ctx.This.Inspect()
	}
	return v
}

func (q *TaskQueues) view() ([]TaskView, []MacrotaskView, map[string]PendingView) {
	micro := make([]TaskView, len(q.microtasks))
	for i, t := range q.microtasks {
		micro[i] = viewTask(t)
	}
	macro := make([]MacrotaskView, len(q.macrotasks))
	for i, m := range q.macrotasks {
		macro[i] = MacrotaskView{ID: m.ID, Type: m.Type, Callback: viewTask(m.Callback)}
	}
	pending := make(map[string]PendingView, len(q.pending))
	for i, id := range q.order {
		op := q.pending[id]
		pending[id] = PendingView{Seq: i + 1, Type: op.Type, Callback: viewTask(op.Callback), Delay: op.Delay}
	}
	return micro, macro, pending
}
