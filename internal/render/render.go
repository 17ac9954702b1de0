// Package render draws engine snapshots, trace logs and scenario listings
// for a terminal.
package render

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/fatih/color"
	"github.com/funvibe/loopviz/internal/config"
	"github.com/funvibe/loopviz/internal/engine"
	"github.com/funvibe/loopviz/internal/explain"
	"github.com/funvibe/loopviz/internal/scenario"
	"github.com/mattn/go-isatty"
)

// ColorEnabled resolves a color mode (auto, always, never) for f. In auto
// mode color is used only on a terminal and when NO_COLOR is unset.
func ColorEnabled(mode string, f *os.File) bool {
	switch mode {
	case config.ColorAlways:
		return true
	case config.ColorNever:
		return false
	}
	if _, ok := os.LookupEnv(config.EnvNoColor); ok {
		return false
	}
	if f == nil {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// Printer writes human-readable views to w.
type Printer struct {
	w io.Writer

	title   *color.Color
	dim     *color.Color
	output  *color.Color
	failure *color.Color
	tick    *color.Color
	accent  *color.Color
	marker  *color.Color
}

// NewPrinter creates a printer; useColor toggles ANSI styling.
func NewPrinter(w io.Writer, useColor bool) *Printer {
	p := &Printer{
		w:       w,
		title:   color.New(color.Bold),
		dim:     color.New(color.Faint),
		output:  color.New(color.FgGreen),
		failure: color.New(color.FgRed, color.Bold),
		tick:    color.New(color.FgYellow),
		accent:  color.New(color.FgCyan),
		marker:  color.New(color.FgMagenta, color.Bold),
	}
	for _, c := range []*color.Color{p.title, p.dim, p.output, p.failure, p.tick, p.accent, p.marker} {
		if useColor {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return p
}

func (p *Printer) printf(format string, args ...any) {
	fmt.Fprintf(p.w, format, args...)
}

// TraceEntry prints one trace line styled by kind.
func (p *Printer) TraceEntry(e engine.TraceEntry) {
	prefix := p.dim.Sprintf("%3d", e.Step)
	switch e.Kind {
	case engine.TraceOutput:
		p.printf("%s  %s\n", prefix, p.output.Sprint(e.Text))
	case engine.TraceError:
		p.printf("%s  %s\n", prefix, p.failure.Sprint(e.Text))
	case engine.TraceTick:
		p.printf("%s  %s\n", prefix, p.tick.Sprint(e.Text))
	default:
		p.printf("%s  %s\n", prefix, e.Text)
	}
}

// Trace prints every entry.
func (p *Printer) Trace(entries []engine.TraceEntry) {
	for _, e := range entries {
		p.TraceEntry(e)
	}
}

// NewEntries prints the entries of cur that are not in prev.
func (p *Printer) NewEntries(prev, cur engine.State) {
	if len(cur.Trace) < len(prev.Trace) {
		p.Trace(cur.Trace)
		return
	}
	p.Trace(cur.Trace[len(prev.Trace):])
}

// Header prints the step counter, phase and explanation title.
func (p *Printer) Header(st engine.State) {
	p.printf("%s %d/%d  %s %s", p.title.Sprint("step"), st.StepsExecuted, st.TotalSteps,
		p.title.Sprint("phase"), p.accent.Sprint(st.Phase))
	if st.Line > 0 {
		p.printf("  %s %d", p.title.Sprint("line"), st.Line)
	}
	p.printf("\n")
}

// Explanation prints what the last instruction teaches.
func (p *Printer) Explanation(st engine.State) {
	if st.Explanation == nil {
		return
	}
	x := st.Explanation
	p.printf("%s\n", p.title.Sprint(x.Title))
	p.printf("  %s\n", x.Description)
	if x.Concept != "" {
		p.printf("  %s\n", p.dim.Sprintf("concept: %s", x.Concept))
	}
}

// CallStack prints the contexts top first with their bindings.
func (p *Printer) CallStack(st engine.State) {
	p.printf("%s\n", p.title.Sprint("Call stack"))
	if len(st.CallStack) == 0 {
		p.printf("  %s\n", p.dim.Sprint("(empty)"))
		return
	}
	for i := len(st.CallStack) - 1; i >= 0; i-- {
		ctx := st.CallStack[i]
		line := fmt.Sprintf("%s %s", p.accent.Sprint(ctx.Name), p.dim.Sprintf("[%s %s]", ctx.Type, ctx.ID))
		if ctx.This != "" {
			line += p.dim.Sprintf(" this=%s", ctx.This)
		}
		if ctx.Outer != "" {
			line += p.dim.Sprintf(" outer=%s", ctx.Outer)
		}
		p.printf("  %s\n", line)
		p.bindings(ctx)
	}
}

// Locals prints the bindings of the active context.
func (p *Printer) Locals(st engine.State) {
	ctx, ok := st.Top()
	if !ok {
		p.printf("%s\n", p.dim.Sprint("no active context"))
		return
	}
	p.printf("%s\n", p.accent.Sprint(ctx.Name))
	p.bindings(ctx)
}

func (p *Printer) bindings(ctx engine.ContextView) {
	type row struct {
		name string
		rec  engine.RecordView
	}
	var rows []row
	for name, rec := range ctx.VariableEnvironment {
		rows = append(rows, row{name, rec})
	}
	for name, rec := range ctx.LexicalEnvironment {
		rows = append(rows, row{name, rec})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].name < rows[j].name })
	for _, r := range rows {
		value := r.rec.Value
		if !r.rec.Initialized {
			value = p.failure.Sprint("<TDZ>")
		}
		p.printf("    %-6s %s = %s", r.rec.Kind, r.name, value)
		if r.rec.Closure != "" {
			p.printf(" %s", p.dim.Sprintf("(closes over %s)", r.rec.Closure))
		}
		p.printf("\n")
	}
}

// Queues prints the microtask queue, the macrotask queue and the pending
// operations.
func (p *Printer) Queues(st engine.State) {
	p.printf("%s", p.title.Sprint("Microtasks:"))
	if len(st.Microtasks) == 0 {
		p.printf(" %s", p.dim.Sprint("(empty)"))
	}
	for _, t := range st.Microtasks {
		p.printf(" [%s]", t.Text)
	}
	p.printf("\n%s", p.title.Sprint("Macrotasks:"))
	if len(st.Macrotasks) == 0 {
		p.printf(" %s", p.dim.Sprint("(empty)"))
	}
	for _, m := range st.Macrotasks {
		p.printf(" [%s: %s]", m.Type, m.Callback.Text)
	}
	p.printf("\n%s", p.title.Sprint("Web APIs:"))
	ids := st.PendingInOrder()
	if len(ids) == 0 {
		p.printf(" %s", p.dim.Sprint("(none)"))
	}
	for _, id := range ids {
		op := st.Pending[id]
		if op.Delay > 0 {
			p.printf(" [%s %dms: %s]", op.Type, op.Delay, op.Callback.Text)
		} else {
			p.printf(" [%s: %s]", op.Type, op.Callback.Text)
		}
	}
	p.printf("\n")
}

// Panel prints the full view of a snapshot.
func (p *Printer) Panel(st engine.State) {
	p.Header(st)
	p.CallStack(st)
	p.Queues(st)
	p.Explanation(st)
}

// Code prints the scenario source with the current line marked.
func (p *Printer) Code(s *scenario.Scenario, current int) {
	for i, line := range s.Lines() {
		n := i + 1
		if n == current {
			p.printf("%s %s %s\n", p.marker.Sprint("=>"), p.marker.Sprintf("%3d", n), line)
			continue
		}
		p.printf("   %s %s\n", p.dim.Sprintf("%3d", n), line)
	}
}

// ScenarioList prints one line per scenario, flagging completed ones.
func (p *Printer) ScenarioList(list []*scenario.Scenario, completed map[string]bool) {
	width := 0
	for _, s := range list {
		if len(s.ID) > width {
			width = len(s.ID)
		}
	}
	for _, s := range list {
		mark := " "
		if completed[s.ID] {
			mark = p.output.Sprint("✓")
		}
		p.printf("%s %s  %s", mark, p.accent.Sprint(s.ID+strings.Repeat(" ", width-len(s.ID))), s.Name)
		if s.Description != "" {
			p.printf(" %s", p.dim.Sprintf("- %s", s.Description))
		}
		p.printf("\n")
	}
}

// Concept prints a glossary entry.
func (p *Printer) Concept(c explain.Concept) {
	p.printf("%s\n\n%s\n\n%s\n", p.title.Sprint(c.Title), c.Definition, c.Details)
	if c.Example != "" {
		p.printf("\n")
		for _, line := range strings.Split(c.Example, "\n") {
			p.printf("    %s\n", p.accent.Sprint(line))
		}
	}
}
