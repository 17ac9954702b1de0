package cli

import (
	"bytes"
	"context"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/funvibe/loopviz/internal/config"
	"github.com/funvibe/loopviz/internal/logging"
	"github.com/funvibe/loopviz/internal/scenario"
	"github.com/funvibe/loopviz/internal/server"
	"github.com/funvibe/loopviz/internal/session"
	"github.com/funvibe/loopviz/internal/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestMain configures logging with the fixture's settings before any test
// starts a server goroutine that logs.
func TestMain(m *testing.M) {
	logging.Configure(0, "")
	os.Exit(m.Run())
}

type fixture struct {
	t   *testing.T
	dir string
	cfg string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()
	cfg := filepath.Join(dir, config.FileName)
	data := "progress:\n  path: " + filepath.Join(dir, "progress.db") + "\ncolor: never\nplay:\n  interval: 1ms\n"
	require.NoError(t, os.WriteFile(cfg, []byte(data), 0o644))
	return &fixture{t: t, dir: dir, cfg: cfg}
}

func (f *fixture) run(stdin string, args ...string) (string, error) {
	f.t.Helper()
	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(append([]string{"--config", f.cfg}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestList(t *testing.T) {
	f := newFixture(t)
	out, err := f.run("", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "sync-basic")
	assert.Contains(t, out, "Synchronous Execution")
	assert.Equal(t, len(scenario.Builtins()), strings.Count(out, "\n"))
}

func TestShow(t *testing.T) {
	f := newFixture(t)
	out, err := f.run("", "show", "sync-basic")
	require.NoError(t, err)
	assert.Contains(t, out, "Synchronous Execution (sync-basic)")
	assert.Contains(t, out, "10 steps")
	assert.Contains(t, out, "  1 function greet() {")

	out, err = f.run("", "show", "--yaml", "closure")
	require.NoError(t, err)
	s, err := scenario.Parse([]byte(out), scenario.FormatYAML, "")
	require.NoError(t, err)
	assert.Equal(t, "closure", s.ID)
}

func TestRunRecordsProgress(t *testing.T) {
	f := newFixture(t)

	out, err := f.run("", "run", "--instant", "promise-vs-timeout")
	require.NoError(t, err)
	sync := strings.Index(out, "console.log -> sync")
	promise := strings.Index(out, "console.log -> promise")
	timeout := strings.Index(out, "console.log -> timeout")
	assert.True(t, sync >= 0 && sync < promise && promise < timeout, out)

	out, err = f.run("", "run", "--interval", "1ms", "sync-basic")
	require.NoError(t, err)
	assert.Contains(t, out, "console.log -> End")

	out, err = f.run("", "progress")
	require.NoError(t, err)
	assert.Contains(t, out, "2 of 11 scenarios completed")
	assert.Contains(t, out, "promise-vs-timeout")

	out, err = f.run("", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ sync-basic")

	out, err = f.run("", "progress", "--clear")
	require.NoError(t, err)
	assert.Contains(t, out, "Progress cleared.")
	out, err = f.run("", "progress")
	require.NoError(t, err)
	assert.Contains(t, out, "0 of 11 scenarios completed")
}

func TestExport(t *testing.T) {
	f := newFixture(t)

	out, err := f.run("", "export", "timeout-basic")
	require.NoError(t, err)
	var tl wire.Timeline
	require.NoError(t, wire.Decode(wire.JSON, []byte(out), &tl))
	assert.Equal(t, "timeout-basic", tl.Scenario)
	assert.Equal(t, []string{"A", "C", "B"}, outputs(tl))

	_, err = f.run("", "export", "--format", "cbor", "timeout-basic")
	assert.Error(t, err)

	path := filepath.Join(f.dir, "t.cbor")
	_, err = f.run("", "export", "--format", "cbor", "-o", path, "timeout-basic")
	require.NoError(t, err)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var back wire.Timeline
	require.NoError(t, wire.Decode(wire.CBOR, data, &back))
	assert.Len(t, back.Frames, len(tl.Frames))

	_, err = f.run("", "export", "--format", "xml", "timeout-basic")
	assert.Error(t, err)
}

func outputs(tl wire.Timeline) []string {
	var out []string
	for _, e := range tl.Final().Trace {
		if e.Kind == "output" {
			out = append(out, strings.TrimPrefix(e.Text, "console.log -> "))
		}
	}
	return out
}

func TestDebug(t *testing.T) {
	f := newFixture(t)
	out, err := f.run("c\nstack\nq\n", "debug", "--break", "2", "sync-basic")
	require.NoError(t, err)
	assert.Contains(t, out, "Debugging sync-basic")
	assert.Contains(t, out, `=> 2: console.log("Hello")`)
	assert.Contains(t, out, "Call stack")
}

func TestConcepts(t *testing.T) {
	f := newFixture(t)
	out, err := f.run("", "concepts")
	require.NoError(t, err)
	assert.Contains(t, out, "hoisting")
	assert.Contains(t, out, "event-loop")

	out, err = f.run("", "concepts", "closure")
	require.NoError(t, err)
	assert.Contains(t, out, "Closure")

	_, err = f.run("", "concepts", "nope")
	assert.Error(t, err)
}

func TestExtraScenarioDir(t *testing.T) {
	f := newFixture(t)
	extra := t.TempDir()
	doc := "id: mine\nname: Mine\ninstructions:\n  - type: LOG\n    payload: {value: hi}\n"
	require.NoError(t, os.WriteFile(filepath.Join(extra, "mine.yaml"), []byte(doc), 0o644))

	out, err := f.run("", "--scenarios", extra, "run", "--instant", "mine")
	require.NoError(t, err)
	assert.Contains(t, out, "console.log -> hi")

	out, err = f.run("", "run", "--instant", filepath.Join(extra, "mine.yaml"))
	require.NoError(t, err)
	assert.Contains(t, out, "console.log -> hi")
}

func TestErrors(t *testing.T) {
	f := newFixture(t)

	_, err := f.run("", "run", "nope")
	assert.Error(t, err)

	_, err = f.run("", "--color", "sometimes", "list")
	assert.ErrorIs(t, err, config.ErrInvalid)

	_, err = f.run("", "show")
	assert.Error(t, err)
}

func TestRemote(t *testing.T) {
	catalog, err := scenario.Load()
	require.NoError(t, err)
	srv, err := server.New(catalog, session.NewStore())
	require.NoError(t, err)

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	served := make(chan error, 1)
	go func() { served <- srv.Serve(ctx, lis) }()
	t.Cleanup(func() {
		cancel()
		<-served
	})

	f := newFixture(t)
	out, err := f.run("", "remote", "--addr", lis.Addr().String(), "nested-microtasks")
	require.NoError(t, err)
	assert.Contains(t, out, "console.log -> second")
	assert.Contains(t, out, "step")
}

func TestServeWritesProtoset(t *testing.T) {
	f := newFixture(t)
	path := filepath.Join(f.dir, "loopviz.protoset")
	out, err := f.run("", "serve", "--write-protoset", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Wrote "+path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotEmpty(t, data)
}
