package engine

// execute dispatches one instruction. Errors are returned to Step, which
// records them in the trace; the program position has already advanced.
func (e *Engine) execute(instr Instruction) error {
	p := instr.Payload

	switch instr.Kind {
	case PhaseCreation:
		e.phase = StateCreation
		e.trace.info("--- creation phase ---")
	case PhaseExecution:
		e.phase = StateExecution
		e.trace.info("--- execution phase ---")
	case PhaseEventLoop:
		e.phase = StateEventLoop
		e.trace.info("--- event loop phase ---")

	case PushContext:
		return e.pushContext(p)
	case PopContext:
		ctx, err := e.stack.Pop()
		if err != nil {
			return emptyStackError(instr.Kind)
		}
		e.trace.info("Context %q destroyed", ctx.Name)
	case EnterBlock:
		name := p.Name
		if name == "" {
			name = "block"
		}
		e.stack.Push(e.newContext(ContextBlock, name, e.stack.Current()))
		e.trace.info("Block entered")
	case ExitBlock:
		top := e.stack.Current()
		if top == nil {
			return emptyStackError(instr.Kind)
		}
		if top.Type != ContextBlock {
			return mismatchError(instr.Kind, ContextBlock, top.Type)
		}
		_, _ = e.stack.Pop()
		e.trace.info("Block exited")

	case DeclareVar:
		return e.declare(instr.Kind, p.Name, KindVar, nil, "var %s hoisted")
	case DeclareLet:
		return e.declare(instr.Kind, p.Name, KindLet, nil, "let %s created (TDZ)")
	case DeclareConst:
		return e.declare(instr.Kind, p.Name, KindConst, nil, "const %s created (TDZ)")
	case DeclareFunction:
		fn := &Function{Name: p.Name, Body: p.Body, Environment: e.stack.Current(), Arrow: p.Arrow}
		return e.declare(instr.Kind, p.Name, KindFunction, fn, "Function %s hoisted")

	case Initialize:
		if p.Name == "" {
			return malformedError(instr.Kind, "name")
		}
		v, err := e.operand(p)
		if err != nil {
			return err
		}
		if err := e.stack.Initialize(p.Name, v); err != nil {
			return err
		}
		e.trace.info("%s initialized to %s", p.Name, v.Inspect())
	case Assign:
		if p.Name == "" {
			return malformedError(instr.Kind, "name")
		}
		v, err := e.operand(p)
		if err != nil {
			return err
		}
		if err := e.stack.Initialize(p.Name, v); err != nil {
			return err
		}
		e.trace.info("%s assigned %s", p.Name, v.Inspect())
	case Read:
		if p.Name == "" {
			return malformedError(instr.Kind, "name")
		}
		v, err := e.stack.Read(p.Name)
		if err != nil {
			return err
		}
		e.trace.info("%s read -> %s", p.Name, valueOrUndefined(v).Inspect())

	case CallFunction:
		return e.call(instr.Kind, p)
	case Return:
		return e.ret(instr.Kind)

	case Log:
		e.trace.output(valueOrUndefined(p.Value).Inspect())

	case RegisterTimeout, RegisterAsync:
		if p.Callback == nil {
			return malformedError(instr.Kind, "callback")
		}
		typ := "timeout"
		if instr.Kind == RegisterAsync && p.Type != "" {
			typ = p.Type
		}
		e.queues.Register(typ, p.Callback, p.Delay)
		e.counters.MacrotasksQueued++
		if typ == "timeout" {
			e.trace.info("setTimeout registered -> %s", p.Callback.Describe())
		} else {
			e.trace.info("%s registered -> %s", typ, p.Callback.Describe())
		}
	case ClearTimeout:
		return e.clearTimeout(instr.Kind, p)
	case ScheduleMicrotask:
		if p.Callback == nil {
			return malformedError(instr.Kind, "callback")
		}
		e.enqueueMicrotask(p.Callback)
	case EventLoopTick:
		e.tick()

	default:
		return unknownInstructionError(instr.Kind)
	}
	return nil
}

// operand is the value written by INITIALIZE and ASSIGN.
func (e *Engine) operand(p Payload) (Value, error) {
	if p.From == "" {
		return valueOrUndefined(p.Value), nil
	}
	v, err := e.stack.Read(p.From)
	if err != nil {
		return nil, err
	}
	return valueOrUndefined(v), nil
}

func valueOrUndefined(v Value) Value {
	if v == nil {
		return Undefined
	}
	return v
}

func (e *Engine) pushContext(p Payload) error {
	typ := p.Context
	if typ == "" {
		typ = ContextFunction
		if e.stack.Len() == 0 {
			typ = ContextGlobal
		}
	}
	name := p.Name
	if name == "" {
		name = string(typ)
		if typ == ContextFunction {
			name = "anonymous"
		}
	}
	ctx := e.newContext(typ, name, e.stack.Current())
	if p.This != nil {
		ctx.This = p.This
	}
	e.stack.Push(ctx)
	e.trace.info("Context %q created", name)
	return nil
}

func (e *Engine) declare(op Kind, name string, kind BindingKind, value Value, format string) error {
	if name == "" {
		return malformedError(op, "name")
	}
	if e.stack.Len() == 0 {
		return emptyStackError(op)
	}
	if _, err := e.stack.Declare(name, kind, value); err != nil {
		return err
	}
	e.trace.info(format, name)
	return nil
}

// call pushes a context chained to the function's defining environment and
// a frame for its body. The caller's frame resumes when the callee returns.
func (e *Engine) call(op Kind, p Payload) error {
	if p.Name == "" {
		return malformedError(op, "name")
	}
	v, err := e.stack.Read(p.Name)
	if err != nil {
		return err
	}
	fn, ok := v.(*Function)
	if !ok {
		return notCallableError(p.Name)
	}
	if e.CallDepth() >= e.maxDepth {
		return callDepthError(e.maxDepth)
	}

	ctx := e.newContext(ContextFunction, fn.Name, fn.Environment)
	if !fn.Arrow && p.This != nil {
		ctx.This = p.This
	}
	e.stack.Push(ctx)
	e.frames = append(e.frames, callFrame{body: fn.Body, ctx: ctx, fn: fn})
	e.trace.info("Function %s called", fn.Name)
	return nil
}

// ret ends the innermost call: the function context and any block contexts
// above it are popped and the rest of the body is skipped. Outside a call it
// pops the active context.
func (e *Engine) ret(op Kind) error {
	top := &e.frames[len(e.frames)-1]
	if top.ctx == nil {
		ctx, err := e.stack.Pop()
		if err != nil {
			return emptyStackError(op)
		}
		e.trace.info("Function returned from %q", ctx.Name)
		return nil
	}
	if e.stack.contains(top.ctx) {
		e.unwindTo(top.ctx)
	}
	top.ip = len(top.body)
	top.ctx = nil
	e.trace.info("Function %s returned", top.fn.Name)
	return nil
}

func (e *Engine) clearTimeout(op Kind, p Payload) error {
	var (
		pending PendingOperation
		ok      bool
	)
	switch {
	case p.ID != "":
		pending, ok = e.queues.Cancel(p.ID)
	case p.Name != "":
		if pending, ok = e.queues.FindPending(p.Name); ok {
			e.queues.Cancel(pending.ID)
		}
	default:
		return malformedError(op, "name")
	}
	if !ok {
		e.trace.info("clearTimeout -> nothing pending")
		return nil
	}
	e.counters.MacrotasksQueued--
	e.trace.info("clearTimeout -> %s cancelled", pending.Callback.Describe())
	return nil
}

func (e *Engine) enqueueMicrotask(t Task) {
	e.queues.EnqueueMicrotask(t)
	e.counters.MicrotasksQueued++
	e.trace.info("microtask scheduled -> %s", t.Describe())
}

// tick runs one event loop turn: drain every microtask, including those
// scheduled while draining, then run at most one macrotask.
func (e *Engine) tick() {
	e.counters.Ticks++
	if e.queues.Microtasks() == 0 && e.queues.Macrotasks() == 0 {
		e.trace.add(TraceTick, "--- event loop tick (queues empty) ---")
		return
	}
	e.trace.add(TraceTick, "--- event loop tick ---")

	for {
		t, ok := e.queues.DequeueMicrotask()
		if !ok {
			break
		}
		e.counters.MicrotasksRun++
		e.runMicrotask(t)
	}

	if m, ok := e.queues.DequeueMacrotask(); ok {
		e.counters.MacrotasksRun++
		e.runMacrotask(m)
	}
}

func (e *Engine) runMicrotask(t Task) {
	switch t := t.(type) {
	case LabelTask:
		e.trace.output(t.Label)
	case ChainedTask:
		e.trace.output(t.Log)
		if t.Next != nil {
			e.enqueueMicrotask(t.Next)
		}
	case CallbackTask:
		e.trace.info("microtask callback -> %s", t.Callback)
	}
}

func (e *Engine) runMacrotask(m Macrotask) {
	switch t := m.Callback.(type) {
	case LabelTask:
		e.trace.output(t.Label)
	case ChainedTask:
		e.trace.output(t.Log)
		if t.Next != nil {
			e.enqueueMicrotask(t.Next)
		}
	case CallbackTask:
		e.trace.info("macrotask executed -> %s", t.Callback)
	}
}
