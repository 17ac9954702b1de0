package debugger

import (
	"bytes"
	"strings"
	"testing"

	"github.com/funvibe/loopviz/internal/engine"
	"github.com/funvibe/loopviz/internal/render"
	"github.com/funvibe/loopviz/internal/scenario"
	"github.com/funvibe/loopviz/internal/session"
)

func newDebugger(t *testing.T, id string) *Debugger {
	t.Helper()
	c, err := scenario.Load()
	if err != nil {
		t.Fatalf("loading scenarios: %v", err)
	}
	s, ok := c.Get(id)
	if !ok {
		t.Fatalf("scenario %s not found", id)
	}
	return New(session.NewController(s))
}

func stepN(d *Debugger, n int) engine.State {
	var st engine.State
	for i := 0; i < n; i++ {
		st = d.Step()
	}
	return st
}

func TestStepExecutesOneInstruction(t *testing.T) {
	d := newDebugger(t, "sync-basic")
	st := d.Step()
	if st.StepsExecuted != 1 {
		t.Errorf("Expected 1 step, got %d", st.StepsExecuted)
	}
	if d.Mode() != ModeStep {
		t.Errorf("Expected step mode, got %s", d.Mode())
	}
}

func TestStepOverCall(t *testing.T) {
	d := newDebugger(t, "sync-basic")
	stepN(d, 5)
	if instr, _ := d.Controller().NextInstruction(); instr.Kind != engine.CallFunction {
		t.Fatalf("Expected CALL_FUNCTION next, got %s", instr.Kind)
	}

	st := d.StepOver()
	if st.CallDepth != 0 {
		t.Errorf("Expected depth 0 after step over, got %d", st.CallDepth)
	}
	if st.StepsExecuted != 8 {
		t.Errorf("Expected 8 steps, got %d", st.StepsExecuted)
	}
	if got := engine.Outputs(st.Trace); strings.Join(got, ",") != "Start,Hello" {
		t.Errorf("Unexpected outputs %v", got)
	}
	if d.Location() != 7 {
		t.Errorf("Expected to stop before line 7, got %d", d.Location())
	}
}

func TestStepOverPlainInstruction(t *testing.T) {
	d := newDebugger(t, "sync-basic")
	st := d.StepOver()
	if st.StepsExecuted != 1 {
		t.Errorf("Expected step over a non-call to take one step, took %d", st.StepsExecuted)
	}
}

func TestStepOut(t *testing.T) {
	d := newDebugger(t, "sync-basic")
	st := stepN(d, 6)
	if st.CallDepth != 1 {
		t.Fatalf("Expected to be inside greet, depth %d", st.CallDepth)
	}

	st = d.StepOut()
	if st.CallDepth != 0 || st.StepsExecuted != 8 {
		t.Errorf("Expected to return to global at step 8, got depth %d step %d", st.CallDepth, st.StepsExecuted)
	}
}

func TestStepOutOfRecursion(t *testing.T) {
	d := newDebugger(t, "recursion")
	var st engine.State
	for st.CallDepth < 3 {
		st = d.Step()
		if !st.HasNext {
			t.Fatal("recursion never reached depth 3")
		}
	}
	st = d.StepOut()
	if st.CallDepth != 2 {
		t.Errorf("Expected depth 2 after step out, got %d", st.CallDepth)
	}
}

func TestContinueToBreakpoint(t *testing.T) {
	d := newDebugger(t, "sync-basic")
	d.SetBreakpoint(2)

	st := d.Continue()
	if d.Location() != 2 {
		t.Fatalf("Expected to stop before line 2, at %d", d.Location())
	}
	if st.StepsExecuted != 6 {
		t.Errorf("Expected 6 steps, got %d", st.StepsExecuted)
	}
	if bp := d.Breakpoints()[0]; bp.Hits != 1 {
		t.Errorf("Expected 1 hit, got %d", bp.Hits)
	}

	st = d.Continue()
	if st.HasNext {
		t.Errorf("Expected continue to run to the end, stopped at step %d", st.StepsExecuted)
	}
	if st.Phase != engine.StateExecution && st.Phase != engine.StateDone {
		t.Errorf("Unexpected phase %s", st.Phase)
	}
}

func TestContinueWithoutBreakpoints(t *testing.T) {
	d := newDebugger(t, "promise-vs-timeout")
	st := d.Continue()
	if st.HasNext {
		t.Fatal("Expected run to the end")
	}
	if got := engine.Outputs(st.Trace); strings.Join(got, ",") != "sync,promise,timeout" {
		t.Errorf("Unexpected outputs %v", got)
	}

	st = d.Step()
	if st.Phase != engine.StateDone {
		t.Errorf("Expected done phase when stepping past the end, got %s", st.Phase)
	}
}

func TestBreakpointBookkeeping(t *testing.T) {
	d := newDebugger(t, "sync-basic")
	d.SetBreakpoint(7)
	d.SetBreakpoint(2)
	d.SetBreakpoint(7)

	bps := d.Breakpoints()
	if len(bps) != 2 || bps[0].Line != 2 || bps[1].Line != 7 {
		t.Fatalf("Unexpected breakpoints %+v", bps)
	}
	if !d.RemoveBreakpoint(2) {
		t.Error("Expected breakpoint at line 2 to exist")
	}
	if d.RemoveBreakpoint(2) {
		t.Error("Expected breakpoint at line 2 to be gone")
	}
	d.ClearBreakpoints()
	if len(d.Breakpoints()) != 0 {
		t.Error("Expected no breakpoints")
	}
}

func TestResetKeepsBreakpoints(t *testing.T) {
	d := newDebugger(t, "sync-basic")
	d.SetBreakpoint(7)
	d.Continue()
	st := d.Reset()
	if st.StepsExecuted != 0 {
		t.Errorf("Expected reset to step 0, got %d", st.StepsExecuted)
	}
	d.Continue()
	if d.Location() != 7 {
		t.Errorf("Expected breakpoint to survive reset, stopped at %d", d.Location())
	}
}

func TestOnStop(t *testing.T) {
	d := newDebugger(t, "sync-basic")
	var stops []int
	d.OnStop = func(_ *Debugger, st engine.State) { stops = append(stops, st.StepsExecuted) }
	d.Step()
	d.Step()
	if len(stops) != 2 || stops[1] != 2 {
		t.Errorf("Unexpected stops %v", stops)
	}
}

func TestCLISession(t *testing.T) {
	d := newDebugger(t, "sync-basic")
	input := strings.Join([]string{
		"b 2",
		"c",
		"vars",
		"n",
		"out",
		"list",
		"c",
		"bogus",
		"q",
	}, "\n")

	var out bytes.Buffer
	cli := NewCLI(d, strings.NewReader(input), &out, render.NewPrinter(&out, false))
	if err := cli.Run(); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	got := out.String()
	for _, want := range []string{
		"Debugging sync-basic (Synchronous Execution)",
		"Breakpoint set at line 2",
		`=> 2: console.log("Hello")  [LOG]`,
		"greet\n",
		"console.log -> Hello",
		"=> 3: }  [RETURN]",
		`=> 7: console.log("End")  [LOG]`,
		"1. line 2 (hit 1 times)",
		"Program finished after 10 steps.",
		"Unknown command: bogus",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("Expected output to contain %q\n%s", want, got)
		}
	}
}

func TestCLIArguments(t *testing.T) {
	d := newDebugger(t, "sync-basic")
	input := "b\nb x\nb 99\nd 4\nexplain\nexplain closure\nexplain nope\nhelp\n"

	var out bytes.Buffer
	cli := NewCLI(d, strings.NewReader(input), &out, render.NewPrinter(&out, false))
	if err := cli.Run(); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	got := out.String()
	for _, want := range []string{
		"Usage: break <line>",
		"Invalid line number: x",
		"Line 99 is outside the source (1-7)",
		"No breakpoint at line 4",
		"Closure",
		`Unknown concept "nope"`,
		"Debugger commands:",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("Expected output to contain %q\n%s", want, got)
		}
	}
}
