// Package engine implements the instruction-driven execution engine: the
// simulated call stack, the scope model, the task queues and the rules for
// advancing one instruction per step.
package engine

import (
	"fmt"

	"github.com/funvibe/loopviz/internal/logging"
	"github.com/google/uuid"
	"github.com/tliron/commonlog"
)

// DefaultMaxCallDepth bounds nested calls so that a runaway recursive
// scenario reports a RangeError instead of growing forever.
const DefaultMaxCallDepth = 256

// DefaultNamespace seeds pending-operation ids when no namespace is given.
var DefaultNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("loopviz:session"))

var (
	placeholderExplanation = Explanation{
		Title:       "Instruction",
		Description: "No explanation is available for this instruction.",
	}
	doneExplanation = Explanation{
		Title:       "Execution Complete",
		Description: "Every instruction has run. Reset to replay the scenario.",
		Concept:     "event-loop",
	}
)

// callFrame is a cursor into an instruction list. The bottom frame walks
// the program; each CALL_FUNCTION pushes a frame for the callee's body.
type callFrame struct {
	body []Instruction
	ip   int

	// ctx is the function context pushed by the call; nil for the program
	// frame and for frames that already returned.
	ctx *ExecutionContext
	fn  *Function
}

func (f *callFrame) remaining() int {
	return len(f.body) - f.ip
}

// Counters are cumulative task statistics for a session.
type Counters struct {
	MicrotasksQueued int `json:"microtasksQueued" yaml:"microtasksQueued"`
	MicrotasksRun    int `json:"microtasksRun" yaml:"microtasksRun"`
	MacrotasksQueued int `json:"macrotasksQueued" yaml:"macrotasksQueued"`
	MacrotasksRun    int `json:"macrotasksRun" yaml:"macrotasksRun"`
	Ticks            int `json:"ticks" yaml:"ticks"`
}

// Engine is one simulation session. It is not safe for concurrent use;
// the session controller serializes access.
type Engine struct {
	program []Instruction

	frames []callFrame
	stack  ContextStack
	queues *TaskQueues
	trace  tracer

	phase       Phase
	line        int
	steps       int
	explanation *Explanation
	counters    Counters

	nextContextID int

	explainer Explainer
	maxDepth  int
	log       commonlog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithExplainer sets the explanation lookup consulted on every step.
func WithExplainer(x Explainer) Option {
	return func(e *Engine) { e.explainer = x }
}

// WithMaxCallDepth limits the number of nested calls.
func WithMaxCallDepth(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxDepth = n
		}
	}
}

// WithNamespace seeds the ids generated for pending operations.
func WithNamespace(ns uuid.UUID) Option {
	return func(e *Engine) { e.queues.namespace = ns }
}

// New creates a session for program. The program is never modified; calls
// are tracked on a separate cursor stack.
func New(program []Instruction, opts ...Option) *Engine {
	e := &Engine{
		program:  append([]Instruction(nil), program...),
		queues:   newTaskQueues(DefaultNamespace),
		maxDepth: DefaultMaxCallDepth,
		log:      logging.Get("engine"),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.Reset()
	return e
}

// Reset restores the session to its state before the first step.
func (e *Engine) Reset() {
	e.frames = e.frames[:0]
	if len(e.program) > 0 {
		e.frames = append(e.frames, callFrame{body: e.program})
	}
	e.stack.reset()
	e.queues.reset()
	e.trace.reset()
	e.phase = StateIdle
	e.line = 0
	e.steps = 0
	e.explanation = nil
	e.counters = Counters{}
	e.nextContextID = 0
}

// HasNextStep reports whether an instruction remains to execute.
func (e *Engine) HasNextStep() bool {
	return len(e.frames) > 0
}

// Step executes exactly one instruction and returns the resulting snapshot.
// When the program is exhausted it only marks the session done.
func (e *Engine) Step() State {
	if !e.HasNextStep() {
		e.phase = StateDone
		done := doneExplanation
		e.explanation = &done
		return e.State()
	}

	frame := &e.frames[len(e.frames)-1]
	instr := frame.body[frame.ip]
	frame.ip++

	e.steps++
	e.trace.step = e.steps
	e.explanation = e.explain(instr.Kind)
	if instr.Line > 0 {
		e.line = instr.Line
	}

	e.log.Debugf("step %d: %s %s", e.steps, instr.Kind, instr.Payload.Name)
	if err := e.execute(instr); err != nil {
		e.log.Noticef("step %d: %s", e.steps, err)
		e.trace.fail(err)
	}
	e.unwindFinished()

	return e.State()
}

// State returns a snapshot that shares no memory with the engine.
func (e *Engine) State() State {
	contexts := e.stack.Contexts()
	callStack := make([]ContextView, len(contexts))
	for i, ctx := range contexts {
		callStack[i] = viewContext(ctx)
	}
	micro, macro, pending := e.queues.view()

	var explanation *Explanation
	if e.explanation != nil {
		x := *e.explanation
		explanation = &x
	}

	return State{
		CallStack:     callStack,
		Trace:         e.trace.snapshot(),
		Microtasks:    micro,
		Macrotasks:    macro,
		Pending:       pending,
		Phase:         e.phase,
		Line:          e.line,
		StepsExecuted: e.steps,
		TotalSteps:    e.steps + e.remaining(),
		Explanation:   explanation,
		CallDepth:     e.CallDepth(),
		HasNext:       e.HasNextStep(),
	}
}

// Counters returns cumulative task statistics.
func (e *Engine) Counters() Counters {
	return e.counters
}

// CallDepth is the number of calls whose bodies are still executing.
func (e *Engine) CallDepth() int {
	if len(e.frames) == 0 {
		return 0
	}
	return len(e.frames) - 1
}

// NextInstruction returns the instruction the next Step will execute.
func (e *Engine) NextInstruction() (Instruction, bool) {
	if !e.HasNextStep() {
		return Instruction{}, false
	}
	f := &e.frames[len(e.frames)-1]
	return f.body[f.ip], true
}

func (e *Engine) remaining() int {
	n := 0
	for i := range e.frames {
		n += e.frames[i].remaining()
	}
	return n
}

func (e *Engine) explain(kind Kind) *Explanation {
	x := placeholderExplanation
	if e.explainer != nil {
		if found, ok := e.explainer.Explain(kind); ok {
			x = found
		}
	}
	return &x
}

func (e *Engine) newContext(typ ContextType, name string, outer *ExecutionContext) *ExecutionContext {
	e.nextContextID++
	return newContext(fmt.Sprintf("%s-%d", name, e.nextContextID), typ, name, outer)
}

// unwindFinished pops every exhausted frame. A call frame that runs out of
// instructions without RETURN returns implicitly.
func (e *Engine) unwindFinished() {
	for len(e.frames) > 0 {
		top := &e.frames[len(e.frames)-1]
		if top.remaining() > 0 {
			return
		}
		if top.ctx != nil && e.stack.contains(top.ctx) {
			e.unwindTo(top.ctx)
			e.trace.info("Function %s returned (end of body)", top.fn.Name)
		}
		e.frames = e.frames[:len(e.frames)-1]
	}
}

// unwindTo pops contexts down to and including ctx.
func (e *Engine) unwindTo(ctx *ExecutionContext) {
	for e.stack.Len() > 0 {
		popped, _ := e.stack.Pop()
		if popped == ctx {
			return
		}
	}
}
