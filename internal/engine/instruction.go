package engine

// Kind identifies an instruction. The string values are the names used in
// scenario files.
type Kind string

const (
	// Phase markers
	PhaseCreation  Kind = "PHASE_CREATION"
	PhaseExecution Kind = "PHASE_EXECUTION"
	PhaseEventLoop Kind = "PHASE_EVENT_LOOP"

	// Call stack
	PushContext Kind = "PUSH_CONTEXT"
	PopContext  Kind = "POP_CONTEXT"
	EnterBlock  Kind = "ENTER_BLOCK"
	ExitBlock   Kind = "EXIT_BLOCK"

	// Bindings
	DeclareVar      Kind = "DECLARE_VAR"
	DeclareLet      Kind = "DECLARE_LET"
	DeclareConst    Kind = "DECLARE_CONST"
	DeclareFunction Kind = "DECLARE_FUNCTION"
	Initialize      Kind = "INITIALIZE"
	Assign          Kind = "ASSIGN"
	Read            Kind = "READ"

	// Calls
	CallFunction Kind = "CALL_FUNCTION"
	Return       Kind = "RETURN"

	// Output
	Log Kind = "LOG"

	// Asynchrony
	RegisterTimeout   Kind = "REGISTER_TIMEOUT"
	RegisterAsync     Kind = "REGISTER_ASYNC"
	ClearTimeout      Kind = "CLEAR_TIMEOUT"
	ScheduleMicrotask Kind = "SCHEDULE_MICROTASK"
	EventLoopTick     Kind = "EVENT_LOOP_TICK"
)

// Kinds lists every instruction kind the interpreter dispatches.
var Kinds = []Kind{
	PhaseCreation, PhaseExecution, PhaseEventLoop,
	PushContext, PopContext, EnterBlock, ExitBlock,
	DeclareVar, DeclareLet, DeclareConst, DeclareFunction,
	Initialize, Assign, Read,
	CallFunction, Return,
	Log,
	RegisterTimeout, RegisterAsync, ClearTimeout, ScheduleMicrotask, EventLoopTick,
}

// Known reports whether k is dispatched by the interpreter.
func (k Kind) Known() bool {
	for _, known := range Kinds {
		if k == known {
			return true
		}
	}
	return false
}

// Instruction is one record of a compiled scenario.
type Instruction struct {
	Kind    Kind
	Payload Payload
	// Line is the source line to highlight; zero when absent.
	Line int
}

// Payload carries the kind-specific fields of an instruction. Only the
// fields relevant to the kind are set.
type Payload struct {
	Name string
	// Context is the type of context created by PUSH_CONTEXT.
	Context ContextType
	Value   Value
	// From names a binding whose current value INITIALIZE or ASSIGN copies
	// instead of Value. It is how a function value escapes its scope.
	From string
	Body []Instruction
	// Arrow marks a DECLARE_FUNCTION whose calls keep this undefined.
	Arrow bool
	// This is the receiver bound by CALL_FUNCTION or PUSH_CONTEXT.
	This     Value
	Callback Task
	// Type names the asynchronous API for REGISTER_ASYNC ("timeout", "interval", ...).
	Type  string
	Delay int
	// ID targets a pending operation for CLEAR_TIMEOUT.
	ID string
}
