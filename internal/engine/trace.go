package engine

import "fmt"

// TraceKind classifies trace entries so display layers can style them.
type TraceKind string

const (
	// TraceInfo narrates engine activity (contexts, hoisting, scheduling).
	TraceInfo TraceKind = "info"
	// TraceOutput is a console.log line, synchronous or from a task.
	TraceOutput TraceKind = "output"
	// TraceTick marks the start of an event loop tick.
	TraceTick TraceKind = "tick"
	// TraceError is a caught failure.
	TraceError TraceKind = "error"
)

// TraceEntry is one line of the session log.
type TraceEntry struct {
	Seq  int       `json:"seq" yaml:"seq"`
	Step int       `json:"step" yaml:"step"`
	Kind TraceKind `json:"kind" yaml:"kind"`
	Text string    `json:"text" yaml:"text"`
}

func (e TraceEntry) String() string {
	return e.Text
}

type tracer struct {
	entries []TraceEntry
	step    int
}

func (t *tracer) add(kind TraceKind, format string, args ...any) {
	t.entries = append(t.entries, TraceEntry{
		Seq:  len(t.entries) + 1,
		Step: t.step,
		Kind: kind,
		Text: fmt.Sprintf(format, args...),
	})
}

func (t *tracer) info(format string, args ...any) { t.add(TraceInfo, format, args...) }

func (t *tracer) output(text string) { t.add(TraceOutput, "console.log -> %s", text) }

func (t *tracer) fail(err error) { t.add(TraceError, "%s", err.Error()) }

func (t *tracer) snapshot() []TraceEntry {
	out := make([]TraceEntry, len(t.entries))
	copy(out, t.entries)
	return out
}

func (t *tracer) reset() {
	t.entries = nil
	t.step = 0
}

// Lines returns the text of every entry.
func Lines(entries []TraceEntry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Text
	}
	return out
}

// Outputs returns the logged values of the console.log entries in order.
func Outputs(entries []TraceEntry) []string {
	var out []string
	for _, e := range entries {
		if e.Kind == TraceOutput {
			out = append(out, e.Text[len("console.log -> "):])
		}
	}
	return out
}
