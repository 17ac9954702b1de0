package scenario

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/funvibe/loopviz/internal/engine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runToEnd(s *Scenario) engine.State {
	e := engine.New(s.Instructions)
	st := e.State()
	for e.HasNextStep() {
		st = e.Step()
	}
	return st
}

func errorTrace(st engine.State) []string {
	var out []string
	for _, entry := range st.Trace {
		if entry.Kind == engine.TraceError {
			out = append(out, entry.Text)
		}
	}
	return out
}

func TestBuiltinsLoad(t *testing.T) {
	c, err := Load()
	require.NoError(t, err)

	ids := c.IDs()
	assert.Equal(t, []string{
		"sync-basic", "timeout-basic", "promise-vs-timeout", "async-await", "nested-microtasks",
		"hoisting-tdz", "const-reassignment", "closure", "block-scope", "recursion", "timer-cancellation",
	}, ids)
	for _, s := range c.List() {
		assert.NotEmpty(t, s.Name, s.ID)
		assert.NotEmpty(t, s.Code, s.ID)
	}
}

func TestBuiltinOutputs(t *testing.T) {
	c, err := Load()
	require.NoError(t, err)

	cases := []struct {
		id      string
		outputs []string
		errors  int
	}{
		{"sync-basic", []string{"Start", "Hello", "End"}, 0},
		{"timeout-basic", []string{"A", "C", "B"}, 0},
		{"promise-vs-timeout", []string{"sync", "promise", "timeout"}, 0},
		{"async-await", []string{"start", "outside", "after await"}, 0},
		{"nested-microtasks", []string{"outside", "first", "second"}, 0},
		{"hoisting-tdz", []string{"undefined", "1", "2"}, 1},
		{"const-reassignment", []string{"10"}, 1},
		{"closure", []string{"Ada"}, 0},
		{"block-scope", []string{"function"}, 1},
		{"recursion", []string{"2", "1", "0"}, 0},
		{"timer-cancellation", []string{"cleared", "tick"}, 0},
	}
	for _, tc := range cases {
		t.Run(tc.id, func(t *testing.T) {
			s, ok := c.Get(tc.id)
			require.True(t, ok)
			st := runToEnd(s)
			assert.Equal(t, tc.outputs, engine.Outputs(st.Trace))
			assert.Len(t, errorTrace(st), tc.errors, "%v", errorTrace(st))
			assert.Empty(t, st.CallStack)
			assert.Zero(t, st.CallDepth)
		})
	}
}

func TestBuiltinLinesInRange(t *testing.T) {
	var walk func(t *testing.T, s *Scenario, instrs []engine.Instruction)
	walk = func(t *testing.T, s *Scenario, instrs []engine.Instruction) {
		for _, instr := range instrs {
			assert.LessOrEqual(t, instr.Line, len(s.Lines()), "%s: %s", s.ID, instr.Kind)
			walk(t, s, instr.Payload.Body)
		}
	}
	for _, s := range Builtins() {
		walk(t, s, s.Instructions)
	}
}

func TestRecursionDepth(t *testing.T) {
	c, err := Load()
	require.NoError(t, err)
	s, _ := c.Get("recursion")

	e := engine.New(s.Instructions)
	maxDepth := 0
	for e.HasNextStep() {
		st := e.Step()
		if st.CallDepth > maxDepth {
			maxDepth = st.CallDepth
		}
	}
	assert.Equal(t, 3, maxDepth)
}

const yamlScenario = `
id: custom
name: Custom
code: |
  console.log("x")
instructions:
  - type: push_context
    payload: {type: global}
  - type: LOG
    line: 1
    payload: {value: 42}
  - type: REGISTER_ASYNC
    payload: {type: fetch, delay: 10, callback: {callback: onLoad}}
  - type: SCHEDULE_MICROTASK
    payload:
      callback: {log: a, scheduleMicrotask: {log: b, scheduleMicrotask: c}}
  - type: DECLARE_FUNCTION
    payload:
      name: f
      arrow: true
      body:
        - type: RETURN
  - type: CALL_FUNCTION
    payload: {name: f, this: obj}
  - type: CLEAR_TIMEOUT
    payload: {name: onLoad}
`

const tomlScenario = `
id = "custom"
name = "Custom"
code = "console.log(\"x\")\n"

[[instructions]]
type = "push_context"
[instructions.payload]
type = "global"

[[instructions]]
type = "LOG"
line = 1
[instructions.payload]
value = 42

[[instructions]]
type = "REGISTER_ASYNC"
[instructions.payload]
type = "fetch"
delay = 10
[instructions.payload.callback]
callback = "onLoad"

[[instructions]]
type = "SCHEDULE_MICROTASK"
[instructions.payload.callback]
log = "a"
[instructions.payload.callback.scheduleMicrotask]
log = "b"
scheduleMicrotask = "c"

[[instructions]]
type = "DECLARE_FUNCTION"
[instructions.payload]
name = "f"
arrow = true
[[instructions.payload.body]]
type = "RETURN"

[[instructions]]
type = "CALL_FUNCTION"
[instructions.payload]
name = "f"
this = "obj"

[[instructions]]
type = "CLEAR_TIMEOUT"
[instructions.payload]
name = "onLoad"
`

const jsonScenario = `{
  "id": "custom",
  "name": "Custom",
  "code": "console.log(\"x\")\n",
  "instructions": [
    {"type": "push_context", "payload": {"type": "global"}},
    {"type": "LOG", "line": 1, "payload": {"value": 42}},
    {"type": "REGISTER_ASYNC", "payload": {"type": "fetch", "delay": 10, "callback": {"callback": "onLoad"}}},
    {"type": "SCHEDULE_MICROTASK", "payload": {"callback": {"log": "a", "scheduleMicrotask": {"log": "b", "scheduleMicrotask": "c"}}}},
    {"type": "DECLARE_FUNCTION", "payload": {"name": "f", "arrow": true, "body": [{"type": "RETURN"}]}},
    {"type": "CALL_FUNCTION", "payload": {"name": "f", "this": "obj"}},
    {"type": "CLEAR_TIMEOUT", "payload": {"name": "onLoad"}}
  ]
}`

func TestFormatsDecodeAlike(t *testing.T) {
	want := []engine.Instruction{
		{Kind: engine.PushContext, Payload: engine.Payload{Context: engine.ContextGlobal}},
		{Kind: engine.Log, Line: 1},
		{Kind: engine.RegisterAsync, Payload: engine.Payload{Type: "fetch", Delay: 10, Callback: engine.CallbackTask{Callback: "onLoad"}}},
		{Kind: engine.ScheduleMicrotask, Payload: engine.Payload{Callback: engine.ChainedTask{
			Log:  "a",
			Next: engine.ChainedTask{Log: "b", Next: engine.LabelTask{Label: "c"}},
		}}},
		{Kind: engine.DeclareFunction, Payload: engine.Payload{Name: "f", Arrow: true, Body: []engine.Instruction{{Kind: engine.Return}}}},
		{Kind: engine.CallFunction, Payload: engine.Payload{Name: "f", This: engine.Primitive{Raw: "obj"}}},
		{Kind: engine.ClearTimeout, Payload: engine.Payload{Name: "onLoad"}},
	}

	for format, data := range map[Format]string{
		FormatYAML: yamlScenario,
		FormatTOML: tomlScenario,
		FormatJSON: jsonScenario,
	} {
		t.Run(string(format), func(t *testing.T) {
			s, err := Parse([]byte(data), format, "custom."+string(format))
			require.NoError(t, err)
			assert.Equal(t, "custom", s.ID)
			assert.Equal(t, []string{`console.log("x")`}, s.Lines())
			require.Len(t, s.Instructions, len(want))

			got := s.Instructions
			assert.Equal(t, "42", got[1].Payload.Value.Inspect())
			got[1].Payload.Value = nil
			assert.Equal(t, want, got)
		})
	}
}

func TestParseRejects(t *testing.T) {
	cases := map[string]string{
		"no id":            "instructions: [{type: LOG}]",
		"no instructions":  "id: x",
		"empty":            "id: x\ninstructions: []",
		"unknown kind":     "id: x\ninstructions: [{type: JUMP}]",
		"missing name":     "id: x\ninstructions: [{type: DECLARE_LET}]",
		"missing callback": "id: x\ninstructions: [{type: REGISTER_TIMEOUT}]",
		"clear needs ref":  "id: x\ninstructions: [{type: CLEAR_TIMEOUT}]",
		"bad field":        "id: x\ninstructions: [{type: LOG, payload: {colour: red}}]",
		"stray key":        "id: x\ninstructions: [{type: LOG, extra: 1}]",
		"bad context":      "id: x\ninstructions: [{type: PUSH_CONTEXT, payload: {type: module}}]",
		"bad delay":        "id: x\ninstructions: [{type: REGISTER_TIMEOUT, payload: {callback: a, delay: -1}}]",
		"fractional line":  "id: x\ninstructions: [{type: LOG, line: 1.5}]",
		"bad task":         "id: x\ninstructions: [{type: SCHEDULE_MICROTASK, payload: {callback: {what: 1}}}]",
		"nested":           "id: x\ninstructions: [{type: DECLARE_FUNCTION, payload: {name: f, body: [{type: NOPE}]}}]",
		"top-level key":    "id: x\nauthor: me\ninstructions: [{type: LOG}]",
		"string line":      "id: x\ninstructions: [{type: LOG, line: three}]",
		"bool arrow":       "id: x\ninstructions: [{type: DECLARE_FUNCTION, payload: {name: f, arrow: yes please}}]",
		"null callback":    "id: x\ninstructions: [{type: SCHEDULE_MICROTASK, payload: {callback: null}}]",
	}
	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(data), FormatYAML, "bad.yaml")
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalid)
			assert.Contains(t, err.Error(), "bad.yaml")
		})
	}
}

func TestParseErrorsNameTheField(t *testing.T) {
	cases := map[string]struct {
		data string
		want []string
	}{
		"payload key": {
			"id: x\ninstructions: [{type: LOG}, {type: LOG, payload: {colour: red}}]",
			[]string{"instructions[1].payload", "colour"},
		},
		"nested task": {
			"id: x\ninstructions: [{type: SCHEDULE_MICROTASK, payload: {callback: {log: a, scheduleMicrotask: {what: 1}}}}]",
			[]string{"instructions[0].payload.callback", "what"},
		},
		"body kind": {
			"id: x\ninstructions: [{type: DECLARE_FUNCTION, payload: {name: f, body: [{type: LOG}, {type: NOPE}]}}]",
			[]string{"instructions[0].payload.body[1].type", "NOPE"},
		},
		"fraction": {
			"id: x\ninstructions: [{type: REGISTER_TIMEOUT, payload: {callback: a, delay: 0.5}}]",
			[]string{"instructions[0].payload.delay", "integer"},
		},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(tc.data), FormatYAML, "bad.yaml")
			require.ErrorIs(t, err, ErrInvalid)
			for _, want := range tc.want {
				assert.Contains(t, err.Error(), want)
			}
		})
	}
}

func TestJSONNumbersNormalize(t *testing.T) {
	data := `{"id": "n", "instructions": [
	  {"type": "SCHEDULE_MICROTASK", "line": 2, "payload": {"callback": {"log": 5, "scheduleMicrotask": 6}}},
	  {"type": "LOG", "payload": {"value": 2.5}}
	]}`
	s, err := Parse([]byte(data), FormatJSON, "n.json")
	require.NoError(t, err)

	assert.Equal(t, 2, s.Instructions[0].Line)
	assert.Equal(t, engine.ChainedTask{Log: "5", Next: engine.LabelTask{Label: "6"}}, s.Instructions[0].Payload.Callback)
	assert.Equal(t, "2.5", s.Instructions[1].Payload.Value.Inspect())
}

func TestMarshalRoundTrip(t *testing.T) {
	for _, s := range Builtins() {
		t.Run(s.ID, func(t *testing.T) {
			data, err := Marshal(s)
			require.NoError(t, err)

			back, err := Parse(data, FormatYAML, "")
			require.NoError(t, err)
			assert.Equal(t, s.ID, back.ID)
			assert.Equal(t, s.Code, back.Code)
			assert.Equal(t, runToEnd(s).Trace, runToEnd(back).Trace)
		})
	}
}

func TestLoadDirAndResolve(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.json"), []byte(jsonScenario), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.md"), []byte("# ignored"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0o755))

	found, err := LoadDir(dir)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, filepath.Join(dir, "b.json"), found[0].Source)

	c, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, len(Builtins())+1, c.Len())

	s, err := c.Resolve("custom")
	require.NoError(t, err)
	assert.Equal(t, "Custom", s.Name)

	other := filepath.Join(t.TempDir(), "other.yaml")
	require.NoError(t, os.WriteFile(other, []byte(yamlScenario), 0o644))
	s, err = c.Resolve(other)
	require.NoError(t, err)
	assert.Equal(t, other, s.Source)

	_, err = c.Resolve("nope")
	assert.Error(t, err)
}

func TestLoadRejectsDuplicateIDs(t *testing.T) {
	dir := t.TempDir()
	dup := "id: sync-basic\ninstructions: [{type: LOG}]\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "dup.yaml"), []byte(dup), 0o644))

	_, err := Load(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate")
}

func TestFormatOf(t *testing.T) {
	for path, want := range map[string]Format{"a.yml": FormatYAML, "a.YAML": FormatYAML, "a.toml": FormatTOML, "a.json": FormatJSON} {
		got, err := FormatOf(path)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := FormatOf("a.txt")
	assert.Error(t, err)
}
