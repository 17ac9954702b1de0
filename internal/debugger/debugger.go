// Package debugger drives a session one command at a time: single steps,
// stepping over and out of calls, and running to line breakpoints.
package debugger

import (
	"sort"

	"github.com/funvibe/loopviz/internal/engine"
	"github.com/funvibe/loopviz/internal/session"
)

// Mode is the condition a resumed run stops on.
type Mode int

const (
	// ModeRun executes to the end, stopping only at breakpoints.
	ModeRun Mode = iota
	// ModeStep executes a single instruction.
	ModeStep
	// ModeStepOver runs until the call depth is back at or below where it started.
	ModeStepOver
	// ModeStepOut runs until the call depth drops below where it started.
	ModeStepOut
	// ModeContinue runs until a breakpoint or the end.
	ModeContinue
)

func (m Mode) String() string {
	switch m {
	case ModeStep:
		return "step"
	case ModeStepOver:
		return "next"
	case ModeStepOut:
		return "out"
	case ModeContinue:
		return "continue"
	default:
		return "run"
	}
}

// Breakpoint stops a run before the first instruction of a source line.
type Breakpoint struct {
	Line int
	Hits int
}

// Debugger wraps a session controller.
type Debugger struct {
	ctrl *session.Controller

	mode        Mode
	breakpoints map[int]*Breakpoint

	startDepth int
	startLine  int
	leftStart  bool

	// OnStop runs after every resumed command with the reached snapshot.
	OnStop func(*Debugger, engine.State)
}

// New creates a debugger for ctrl.
func New(ctrl *session.Controller) *Debugger {
	return &Debugger{
		ctrl:        ctrl,
		breakpoints: make(map[int]*Breakpoint),
	}
}

// Controller returns the driven session.
func (d *Debugger) Controller() *session.Controller {
	return d.ctrl
}

// Mode returns the mode of the last resumed command.
func (d *Debugger) Mode() Mode {
	return d.mode
}

// SetBreakpoint sets a breakpoint at line.
func (d *Debugger) SetBreakpoint(line int) *Breakpoint {
	if bp, ok := d.breakpoints[line]; ok {
		return bp
	}
	bp := &Breakpoint{Line: line}
	d.breakpoints[line] = bp
	return bp
}

// RemoveBreakpoint removes the breakpoint at line and reports whether one
// was set.
func (d *Debugger) RemoveBreakpoint(line int) bool {
	_, ok := d.breakpoints[line]
	delete(d.breakpoints, line)
	return ok
}

// ClearBreakpoints removes all breakpoints
func (d *Debugger) ClearBreakpoints() {
	d.breakpoints = make(map[int]*Breakpoint)
}

// Breakpoints returns the breakpoints ordered by line.
func (d *Debugger) Breakpoints() []*Breakpoint {
	out := make([]*Breakpoint, 0, len(d.breakpoints))
	for _, bp := range d.breakpoints {
		out = append(out, bp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Line < out[j].Line })
	return out
}

// Location returns the source line of the next instruction, or 0.
func (d *Debugger) Location() int {
	instr, ok := d.ctrl.NextInstruction()
	if !ok {
		return 0
	}
	return instr.Line
}

// Step executes one instruction.
func (d *Debugger) Step() engine.State {
	return d.resume(ModeStep)
}

// StepOver executes the next instruction and, if it enters a call, the
// whole call.
func (d *Debugger) StepOver() engine.State {
	return d.resume(ModeStepOver)
}

// StepOut runs until the current call returns.
func (d *Debugger) StepOut() engine.State {
	return d.resume(ModeStepOut)
}

// Continue runs until a breakpoint or the end.
func (d *Debugger) Continue() engine.State {
	return d.resume(ModeContinue)
}

// Reset rewinds the session. Breakpoints are kept.
func (d *Debugger) Reset() engine.State {
	d.mode = ModeRun
	return d.ctrl.Reset()
}

func (d *Debugger) resume(mode Mode) engine.State {
	d.mode = mode
	st := d.ctrl.State()
	d.startDepth = st.CallDepth
	d.startLine = d.Location()
	d.leftStart = false

	if !st.HasNext {
		st = d.ctrl.Step()
	}
	for st.HasNext {
		st = d.ctrl.Step()
		if d.shouldBreak(st) {
			break
		}
	}
	if d.OnStop != nil {
		d.OnStop(d, st)
	}
	return st
}

// shouldBreak decides, after a step, whether the run stops before the next
// instruction.
func (d *Debugger) shouldBreak(st engine.State) bool {
	if !st.HasNext {
		return true
	}
	line := d.Location()
	if line != d.startLine {
		d.leftStart = true
	}

	switch d.mode {
	case ModeStep:
		return true
	case ModeStepOver:
		if st.CallDepth <= d.startDepth {
			return true
		}
	case ModeStepOut:
		if st.CallDepth < d.startDepth {
			return true
		}
	}
	return d.hitBreakpoint(line)
}

// hitBreakpoint ignores the line the run started on until execution has
// moved to another line, so continuing from a breakpoint does not stop on
// it again.
func (d *Debugger) hitBreakpoint(line int) bool {
	if line == 0 || !d.leftStart {
		return false
	}
	bp, ok := d.breakpoints[line]
	if !ok {
		return false
	}
	bp.Hits++
	return true
}
