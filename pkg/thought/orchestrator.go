// Package thought implements the stage orchestrator: the hear, listen,
// understand, serve, act, respond and remember pipeline that drives a
// message from arrival to persistence.
package thought

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/relaybot/relay/pkg/adapter"
	"github.com/relaybot/relay/pkg/bit"
	"github.com/relaybot/relay/pkg/memory"
	"github.com/relaybot/relay/pkg/middleware"
	"github.com/relaybot/relay/pkg/path"
	"github.com/relaybot/relay/pkg/state"
)

// dispatchAdapter adapts an adapter.MessageAdapter to state.Dispatcher so
// State can flush envelopes without importing the adapter package. It
// also guards the dispatch call with the orchestrator's circuit breaker
// and rate limiter so a dead or throttled message adapter degrades to a
// logged drop instead of blocking respond, and bounds the call itself by
// requestTimeout the same way processNLU bounds the NLU adapter.
type dispatchAdapter struct {
	inner   adapter.MessageAdapter
	breaker *adapter.CircuitBreaker
	limiter *adapter.RateLimiter
	timeout time.Duration
	logger  *slog.Logger
}

func (d dispatchAdapter) Dispatch(ctx context.Context, env *state.Envelope) error {
	if d.inner == nil {
		return nil
	}
	if d.breaker != nil && !d.breaker.Allow() {
		d.logger.Warn("dispatch circuit open, dropping envelope", "room", env.RoomID, "user", env.UserID)
		return nil
	}
	if d.limiter != nil && !d.limiter.Allow() {
		d.logger.Warn("dispatch rate limited, dropping envelope", "room", env.RoomID, "user", env.UserID)
		return nil
	}

	err := adapter.WithTimeout(ctx, d.timeout, func(ctx context.Context) error {
		return d.inner.Dispatch(ctx, env)
	})
	if d.breaker != nil {
		if err != nil {
			d.breaker.RecordFailure()
		} else {
			d.breaker.RecordSuccess()
		}
	}
	return err
}

// Config tunes orchestrator behaviour per the configuration surface.
type Config struct {
	BotName        string
	Aliases        []string
	NLUMinLength   int
	RequestTimeout time.Duration
	SceneTimeout   time.Duration

	// DispatchBreaker tunes the circuit breaker guarding outbound
	// dispatch; zero value falls back to the breaker's own defaults.
	DispatchBreaker adapter.CircuitBreakerConfig
	// DispatchRateLimitPerHour bounds outbound dispatch calls; 0 disables
	// rate limiting for dispatch.
	DispatchRateLimitPerHour int
	// NLURateLimitPerHour bounds NLU adapter calls; 0 disables rate
	// limiting for understand.
	NLURateLimitPerHour int
}

// Orchestrator drives the stage pipeline over a global Path, a bit
// registry for scene chaining, an adapter registry for collaborators,
// and a memory store for persistence.
type Orchestrator struct {
	cfg    Config
	logger *slog.Logger

	global   *path.Path
	adapters *adapter.Registry
	mem      *memory.Memory
	bits     *bit.Registry
	events   *EventBus
	st       *stacks

	dispatchBreaker *adapter.CircuitBreaker
	dispatchLimiter *adapter.RateLimiter
	nluLimiter      *adapter.RateLimiter

	mu     sync.Mutex
	scenes map[string]*sceneEntry
}

type sceneEntry struct {
	p       *path.Path
	expires time.Time
}

// New constructs an Orchestrator wired to its collaborators. Any of
// adapters/mem/bits may be nil; message dispatch, memory persistence and
// bit running then become silent no-ops. A nil events gets a fresh
// EventBus.
func New(cfg Config, logger *slog.Logger, adapters *adapter.Registry, mem *memory.Memory, bits *bit.Registry, events *EventBus) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 5 * time.Second
	}
	if cfg.SceneTimeout <= 0 {
		cfg.SceneTimeout = 2 * time.Minute
	}
	if events == nil {
		events = NewEventBus()
	}

	o := &Orchestrator{
		cfg:             cfg,
		logger:          logger,
		global:          path.New(path.GlobalScope),
		adapters:        adapters,
		mem:             mem,
		bits:            bits,
		events:          events,
		st:              newStacks(),
		dispatchBreaker: adapter.NewCircuitBreaker(cfg.DispatchBreaker),
		scenes:          make(map[string]*sceneEntry),
	}
	if cfg.DispatchRateLimitPerHour > 0 {
		o.dispatchLimiter = adapter.NewRateLimiter(cfg.DispatchRateLimitPerHour)
	}
	if cfg.NLURateLimitPerHour > 0 {
		o.nluLimiter = adapter.NewRateLimiter(cfg.NLURateLimitPerHour)
	}
	return o
}

// Global returns the process-wide Path for registering branches.
func (o *Orchestrator) Global() *path.Path { return o.global }

// Events returns the orchestrator's event bus for observer registration.
func (o *Orchestrator) Events() *EventBus { return o.events }

// stacks holds the seven pre-registered middleware stacks.
type stacks struct {
	hear, listen, understand, serve, act, respond, remember *middleware.Stack
}

func newStacks() *stacks {
	return &stacks{
		hear:       middleware.NewStack("hear"),
		listen:     middleware.NewStack("listen"),
		understand: middleware.NewStack("understand"),
		serve:      middleware.NewStack("serve"),
		act:        middleware.NewStack("act"),
		respond:    middleware.NewStack("respond"),
		remember:   middleware.NewStack("remember"),
	}
}

// Use appends a piece to the named stage's stack. Valid names: hear,
// listen, understand, serve, act, respond, remember.
func (o *Orchestrator) Use(stageName string, piece middleware.Piece) error {
	s := o.stackFor(stageName)
	if s == nil {
		return fmt.Errorf("unknown middleware stage %q", stageName)
	}
	s.Use(piece)
	return nil
}

func (o *Orchestrator) stackFor(name string) *middleware.Stack {
	switch name {
	case "hear":
		return o.st.hear
	case "listen":
		return o.st.listen
	case "understand":
		return o.st.understand
	case "serve":
		return o.st.serve
	case "act":
		return o.st.act
	case "respond":
		return o.st.respond
	case "remember":
		return o.st.remember
	default:
		return nil
	}
}
