// Package bit implements reusable micro-dialogue records that can be
// triggered by id and chained into scoped scenes.
package bit

import (
	"context"
	"log/slog"
	"sync"

	"github.com/relaybot/relay/pkg/expr"
	"github.com/relaybot/relay/pkg/state"
)

// Scope controls which scoped Path a Bit's chained "next" branches are
// registered against when it executes.
type Scope string

const (
	ScopeUser Scope = "user"
	ScopeRoom Scope = "room"
	ScopeBoth Scope = "both"
)

// Callback runs after Send (if any) is queued as a reply envelope.
type Callback func(ctx context.Context, st *state.State) error

// Bit is one reusable interaction step: it may send a canned reply, run
// a callback, and/or chain into further bits via Next.
type Bit struct {
	ID       string
	Send     string
	Callback Callback
	Next     []string
	Scope    Scope

	// TriggerCondition is consulted when this bit appears in another
	// bit's Next list: the orchestrator registers a scene branch that
	// runs this bit once TriggerCondition matches the next message.
	TriggerCondition *expr.Conditions
}

// Registry is the process-wide collection of bits, keyed by id.
type Registry struct {
	mu     sync.RWMutex
	bits   map[string]*Bit
	logger *slog.Logger
}

// NewRegistry constructs an empty bit Registry. logger may be nil, in
// which case slog.Default() is used for the non-fatal warnings this
// package emits.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{bits: make(map[string]*Bit), logger: logger}
}

// Register adds or replaces a bit. It warns (non-fatally) if the bit has
// neither Send nor Callback, since such a bit can never do anything.
func (r *Registry) Register(b *Bit) {
	if b.Send == "" && b.Callback == nil {
		r.logger.Warn("bit registered with neither send nor callback", "bit", b.ID)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bits[b.ID] = b
}

// Get returns the bit registered under id, if any.
func (r *Registry) Get(id string) (*Bit, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.bits[id]
	return b, ok
}

// Run executes the bit registered under id: Send first (if set), then
// Callback (if set). A missing id is logged and returns without error,
// matching the non-throwing contract for an unknown bit reference.
func (r *Registry) Run(ctx context.Context, id string, st *state.State) error {
	b, ok := r.Get(id)
	if !ok {
		r.logger.Warn("doBit: no bit registered under id", "bit", id)
		return nil
	}

	if b.Send != "" {
		st.Respond(b.Send)
	}
	if b.Callback != nil {
		return b.Callback(ctx, st)
	}
	return nil
}

// RunBit implements branch.BitRunner so branches can chain into bits
// without this package depending on branch.
func (r *Registry) RunBit(ctx context.Context, id string, st *state.State) error {
	return r.Run(ctx, id, st)
}
