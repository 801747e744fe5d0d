// Package adapter defines the collaborator contracts the core consumes
// (message, NLU, storage) and the typed registry that loads, validates
// and fans lifecycle calls out across them.
package adapter

import (
	"context"
	"log/slog"

	"github.com/relaybot/relay/pkg/model"
	"github.com/relaybot/relay/pkg/state"
)

// Receiver is how a message adapter hands an inbound event to the
// orchestrator; *thought.Orchestrator implements it.
type Receiver interface {
	Receive(ctx context.Context, msg *model.Message) *state.State
}

// Adapter is the base contract every adapter slot implements.
type Adapter interface {
	Name() string
	Start(ctx context.Context) error
	Shutdown(ctx context.Context) error
}

// MessageAdapter is the required slot: it dispatches outgoing envelopes
// and, on the inbound side, calls a Receiver's Receive for every event it
// observes.
type MessageAdapter interface {
	Adapter
	SetReceiver(r Receiver)
	Dispatch(ctx context.Context, env *state.Envelope) error
}

// NLUAdapter processes a message into an NLUResult.
type NLUAdapter interface {
	Adapter
	Process(ctx context.Context, msg *model.Message) (*model.NLUResult, error)
}

// StorageAdapter persists memory snapshots and ad-hoc structured
// collections.
type StorageAdapter interface {
	Adapter
	SaveMemory(ctx context.Context, snapshot map[string]any) error
	LoadMemory(ctx context.Context) (map[string]any, error)
	Keep(ctx context.Context, collection string, record map[string]any) error
	Lose(ctx context.Context, collection string, criteria map[string]any) error
	Find(ctx context.Context, collection string, criteria map[string]any) ([]map[string]any, error)
	FindOne(ctx context.Context, collection string, criteria map[string]any) (map[string]any, error)
}

// FactoryContext is handed to a registered adapter factory so it can read
// settings and log without importing the bot package (which would
// create an import cycle, since bot wires the registry).
type FactoryContext struct {
	Settings map[string]string
	Logger   *slog.Logger
}

// Factory builds an Adapter given shared settings; adapters register a
// Factory under a name via Register so configuration can select one by
// string, mirroring a resolvable-module-name load without requiring a Go
// plugin loader.
type Factory func(fc FactoryContext) (Adapter, error)
