package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/funvibe/loopviz/internal/engine"
	"github.com/funvibe/loopviz/internal/scenario"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func builtin(t *testing.T, id string) *scenario.Scenario {
	t.Helper()
	c, err := scenario.Load()
	require.NoError(t, err)
	s, ok := c.Get(id)
	require.True(t, ok, id)
	return s
}

func TestStepAndComplete(t *testing.T) {
	c := NewController(builtin(t, "sync-basic"))

	var completions []string
	c.OnComplete(func(s *scenario.Scenario, final engine.State) {
		completions = append(completions, s.ID)
		assert.False(t, final.HasNext)
	})

	for c.HasNext() {
		c.Step()
	}
	st := c.Step()
	assert.Equal(t, engine.StateDone, st.Phase)
	assert.Equal(t, []string{"sync-basic"}, completions, "completion fires once per run")

	c.Reset()
	assert.True(t, c.HasNext())
	for c.HasNext() {
		c.Step()
	}
	assert.Equal(t, []string{"sync-basic", "sync-basic"}, completions)
}

func TestSubscribe(t *testing.T) {
	c := NewController(builtin(t, "timeout-basic"))

	var seen []int
	unsubscribe := c.Subscribe(func(st engine.State) { seen = append(seen, st.StepsExecuted) })
	c.Step()
	c.Step()
	c.Reset()
	unsubscribe()
	c.Step()

	assert.Equal(t, []int{1, 2, 0}, seen)
}

func TestListenerMayCallBack(t *testing.T) {
	c := NewController(builtin(t, "sync-basic"))
	var depth int
	c.Subscribe(func(engine.State) { depth = c.State().CallDepth })
	c.Step()
	assert.Zero(t, depth)
}

func TestSelect(t *testing.T) {
	c := NewController(builtin(t, "sync-basic"))
	c.Step()

	st := c.Select(builtin(t, "closure"))
	assert.Equal(t, "closure", c.Scenario().ID)
	assert.Zero(t, st.StepsExecuted)
	next, ok := c.NextInstruction()
	require.True(t, ok)
	assert.Equal(t, engine.PhaseCreation, next.Kind)
}

func TestPlayRunsToCompletion(t *testing.T) {
	c := NewController(builtin(t, "promise-vs-timeout"))

	finished := make(chan engine.State, 1)
	c.OnComplete(func(_ *scenario.Scenario, final engine.State) { finished <- final })

	require.NoError(t, c.Play(context.Background(), time.Millisecond))
	assert.True(t, c.Playing())

	select {
	case final := <-finished:
		assert.Equal(t, []string{"sync", "promise", "timeout"}, engine.Outputs(final.Trace))
	case <-time.After(5 * time.Second):
		t.Fatal("autoplay did not finish")
	}
	c.Wait()
	assert.False(t, c.Playing())

	assert.ErrorIs(t, c.Play(context.Background(), time.Millisecond), ErrFinished)
}

func TestPlayAutoReset(t *testing.T) {
	c := NewController(builtin(t, "sync-basic"), WithAutoReset(true))
	for c.HasNext() {
		c.Step()
	}
	require.NoError(t, c.Play(context.Background(), time.Millisecond))
	c.Wait()
	assert.False(t, c.HasNext())
	assert.Equal(t, []string{"Start", "Hello", "End"}, engine.Outputs(c.State().Trace))
}

func TestPauseAndCancel(t *testing.T) {
	c := NewController(builtin(t, "recursion"))

	require.NoError(t, c.Play(context.Background(), time.Hour))
	require.NoError(t, c.Play(context.Background(), time.Hour), "second Play is a no-op")
	c.Pause()
	c.Wait()
	assert.False(t, c.Playing())
	assert.Zero(t, c.State().StepsExecuted)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, c.Play(ctx, time.Hour))
	cancel()
	c.Wait()
	assert.False(t, c.Playing())

	require.NoError(t, c.Play(context.Background(), time.Hour))
	c.Reset()
	c.Wait()
	assert.False(t, c.Playing(), "reset stops autoplay")
}

func TestConcurrentSteps(t *testing.T) {
	s := builtin(t, "recursion")
	c := NewController(s)
	total := c.State().TotalSteps

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < total; j++ {
				c.Step()
			}
		}()
	}
	wg.Wait()

	st := c.State()
	assert.False(t, st.HasNext)
	assert.Equal(t, []string{"2", "1", "0"}, engine.Outputs(st.Trace))
}

func TestListenersSeeStepOrder(t *testing.T) {
	c := NewController(builtin(t, "recursion"))
	total := c.State().TotalSteps

	var seen []int
	c.Subscribe(func(st engine.State) { seen = append(seen, st.StepsExecuted) })

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < total; j++ {
				c.Step()
			}
		}()
	}
	wg.Wait()

	require.Len(t, seen, 8*total)
	for i := 1; i < len(seen); i++ {
		require.LessOrEqual(t, seen[i-1], seen[i], "snapshot %d delivered out of order", i)
	}
	assert.Equal(t, c.State().StepsExecuted, seen[len(seen)-1])
}

func TestListenerMayStep(t *testing.T) {
	c := NewController(builtin(t, "sync-basic"))

	var seen []int
	c.Subscribe(func(st engine.State) {
		seen = append(seen, st.StepsExecuted)
		if st.StepsExecuted == 1 {
			c.Step()
		}
	})
	c.Step()
	assert.Equal(t, []int{1, 2}, seen)
}

func TestEngineOptions(t *testing.T) {
	s := &scenario.Scenario{ID: "deep", Instructions: []engine.Instruction{
		{Kind: engine.PushContext},
		{Kind: engine.DeclareFunction, Payload: engine.Payload{Name: "f", Body: []engine.Instruction{
			{Kind: engine.CallFunction, Payload: engine.Payload{Name: "f"}},
		}}},
		{Kind: engine.CallFunction, Payload: engine.Payload{Name: "f"}},
	}}
	c := NewController(s, WithEngineOptions(engine.WithMaxCallDepth(2)))
	maxDepth := 0
	for c.HasNext() {
		if d := c.Step().CallDepth; d > maxDepth {
			maxDepth = d
		}
	}
	assert.Equal(t, 2, maxDepth)
}

func TestStore(t *testing.T) {
	store := NewStore()
	a := store.Create(builtin(t, "sync-basic"))
	b := store.Create(builtin(t, "closure"))
	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, 2, store.Len())

	got, ok := store.Get(a.ID)
	require.True(t, ok)
	assert.Same(t, a, got)

	list := store.List()
	require.Len(t, list, 2)
	assert.Same(t, a, list[0])

	require.NoError(t, b.Play(context.Background(), time.Hour))
	assert.True(t, store.Destroy(b.ID))
	assert.False(t, b.Playing())
	assert.False(t, store.Destroy(b.ID))
	_, ok = store.Get(b.ID)
	assert.False(t, ok)
}

func TestStoreCompletionOption(t *testing.T) {
	var done []string
	store := NewStore(WithCompletion(func(s *scenario.Scenario, _ engine.State) { done = append(done, s.ID) }))
	sess := store.Create(builtin(t, "sync-basic"))
	for sess.HasNext() {
		sess.Step()
	}
	assert.Equal(t, []string{"sync-basic"}, done)
}
