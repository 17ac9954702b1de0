// Package session drives engines on behalf of user interfaces: stepping,
// resetting, switching scenarios and timed autoplay.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/funvibe/loopviz/internal/engine"
	"github.com/funvibe/loopviz/internal/logging"
	"github.com/funvibe/loopviz/internal/scenario"
	"github.com/tliron/commonlog"
)

// ErrFinished is returned by Play when the scenario has no steps left and
// auto-reset is off.
var ErrFinished = errors.New("scenario finished")

// DefaultInterval is the autoplay pace.
const DefaultInterval = 800 * time.Millisecond

// Listener receives the snapshot produced by every state change.
type Listener func(engine.State)

// CompletionFunc is called once per run when the last instruction executes.
type CompletionFunc func(s *scenario.Scenario, final engine.State)

// Option configures a Controller.
type Option func(*Controller)

// WithEngineOptions passes options to every engine the controller creates.
func WithEngineOptions(opts ...engine.Option) Option {
	return func(c *Controller) { c.engineOpts = append(c.engineOpts, opts...) }
}

// WithAutoReset makes Play rewind a finished scenario instead of failing.
func WithAutoReset(on bool) Option {
	return func(c *Controller) { c.autoReset = on }
}

// WithCompletion registers fn as if by OnComplete.
func WithCompletion(fn CompletionFunc) Option {
	return func(c *Controller) { c.onComplete = append(c.onComplete, fn) }
}

// Controller owns one engine. All methods are safe for concurrent use.
type Controller struct {
	mu sync.Mutex

	scenario   *scenario.Scenario
	engine     *engine.Engine
	engineOpts []engine.Option
	autoReset  bool

	completed bool
	playing   bool
	gen       uint64
	cancel    context.CancelFunc
	done      chan struct{}

	nextListener int
	listeners    map[int]Listener
	onComplete   []CompletionFunc

	// outbox holds snapshots in the order their state changes happened.
	outbox     []published
	delivering bool

	log commonlog.Logger
}

// NewController creates a controller positioned before the first step of s.
func NewController(s *scenario.Scenario, opts ...Option) *Controller {
	c := &Controller{
		listeners: make(map[int]Listener),
		log:       logging.Get("session"),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.scenario = s
	c.engine = engine.New(s.Instructions, c.engineOpts...)
	return c
}

type published struct {
	state    engine.State
	scenario *scenario.Scenario
	fire     []CompletionFunc
}

// Scenario returns the selected scenario.
func (c *Controller) Scenario() *scenario.Scenario {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.scenario
}

// State returns the current snapshot.
func (c *Controller) State() engine.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.engine.State()
}

// HasNext reports whether a step remains.
func (c *Controller) HasNext() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.engine.HasNextStep()
}

// NextInstruction returns the instruction the next step executes.
func (c *Controller) NextInstruction() (engine.Instruction, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.engine.NextInstruction()
}

// Step advances one instruction.
func (c *Controller) Step() engine.State {
	c.mu.Lock()
	st, fire := c.stepLocked()
	c.queueLocked(st, fire)
	c.mu.Unlock()
	c.deliver()
	return st
}

func (c *Controller) stepLocked() (engine.State, []CompletionFunc) {
	st := c.engine.Step()
	if st.HasNext || c.completed || st.StepsExecuted == 0 {
		return st, nil
	}
	c.completed = true
	c.log.Infof("scenario %s complete after %d steps", c.scenario.ID, st.StepsExecuted)
	return st, append([]CompletionFunc(nil), c.onComplete...)
}

// Reset stops autoplay and rewinds the engine.
func (c *Controller) Reset() engine.State {
	c.mu.Lock()
	c.pauseLocked()
	c.engine.Reset()
	c.completed = false
	st := c.engine.State()
	c.queueLocked(st, nil)
	c.mu.Unlock()
	c.deliver()
	return st
}

// Select stops autoplay and switches to s with a fresh engine.
func (c *Controller) Select(s *scenario.Scenario) engine.State {
	c.mu.Lock()
	c.pauseLocked()
	c.scenario = s
	c.engine = engine.New(s.Instructions, c.engineOpts...)
	c.completed = false
	st := c.engine.State()
	c.queueLocked(st, nil)
	c.mu.Unlock()
	c.log.Debugf("selected scenario %s", s.ID)
	c.deliver()
	return st
}

// Play steps every interval in the background until the scenario ends,
// Pause is called or ctx is cancelled. Playing an already playing
// controller is a no-op.
func (c *Controller) Play(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = DefaultInterval
	}
	c.mu.Lock()
	if c.playing {
		c.mu.Unlock()
		return nil
	}
	rewound := false
	if !c.engine.HasNextStep() {
		if !c.autoReset {
			c.mu.Unlock()
			return ErrFinished
		}
		c.engine.Reset()
		c.completed = false
		c.queueLocked(c.engine.State(), nil)
		rewound = true
	}
	ctx, cancel := context.WithCancel(ctx)
	c.gen++
	c.playing = true
	c.cancel = cancel
	c.done = make(chan struct{})
	gen, done, id := c.gen, c.done, c.scenario.ID
	c.mu.Unlock()

	if rewound {
		c.deliver()
	}
	c.log.Infof("playing %s every %s", id, interval)
	go c.run(ctx, interval, gen, done)
	return nil
}

func (c *Controller) run(ctx context.Context, interval time.Duration, gen uint64, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.mu.Lock()
			if c.gen == gen {
				c.playing = false
			}
			c.mu.Unlock()
			return
		case <-ticker.C:
		}

		c.mu.Lock()
		if !c.playing || c.gen != gen {
			c.mu.Unlock()
			return
		}
		st, fire := c.stepLocked()
		if !st.HasNext {
			c.playing = false
			c.cancel()
		}
		c.queueLocked(st, fire)
		c.mu.Unlock()
		c.deliver()
		if !st.HasNext {
			return
		}
	}
}

// Pause stops autoplay. It does not wait for the background goroutine; use
// Wait for that.
func (c *Controller) Pause() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pauseLocked()
}

func (c *Controller) pauseLocked() {
	if !c.playing {
		return
	}
	c.playing = false
	c.cancel()
	c.log.Infof("paused %s", c.scenario.ID)
}

// Playing reports whether autoplay is active.
func (c *Controller) Playing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.playing
}

// Wait blocks until the most recent autoplay goroutine has exited.
func (c *Controller) Wait() {
	c.mu.Lock()
	done := c.done
	c.mu.Unlock()
	if done != nil {
		<-done
	}
}

// Subscribe registers fn for every snapshot published after a state
// change. Snapshots arrive in the order the changes happened, even when
// several goroutines step the controller. The returned function removes the
// subscription.
func (c *Controller) Subscribe(fn Listener) (unsubscribe func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextListener
	c.nextListener++
	c.listeners[id] = fn
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.listeners, id)
	}
}

// OnComplete registers fn to run when a run reaches its last instruction.
func (c *Controller) OnComplete(fn CompletionFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onComplete = append(c.onComplete, fn)
}

func (c *Controller) queueLocked(st engine.State, fire []CompletionFunc) {
	c.outbox = append(c.outbox, published{state: st, scenario: c.scenario, fire: fire})
}

// deliver hands queued snapshots to listeners in state-change order. Only
// one goroutine delivers at a time; a caller that finds delivery in progress
// returns and leaves its snapshot to the active deliverer. Listeners run
// without the lock held so they may call back into the controller.
func (c *Controller) deliver() {
	c.mu.Lock()
	if c.delivering {
		c.mu.Unlock()
		return
	}
	c.delivering = true
	for len(c.outbox) > 0 {
		p := c.outbox[0]
		c.outbox[0] = published{}
		c.outbox = c.outbox[1:]
		listeners := make([]Listener, 0, len(c.listeners))
		for i := 0; i < c.nextListener; i++ {
			if fn, ok := c.listeners[i]; ok {
				listeners = append(listeners, fn)
			}
		}
		c.mu.Unlock()

		for _, fn := range listeners {
			fn(p.state)
		}
		for _, fn := range p.fire {
			fn(p.scenario, p.state)
		}
		c.mu.Lock()
	}
	c.delivering = false
	c.mu.Unlock()
}
