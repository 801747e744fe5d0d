// Package shell provides the zero-dependency default message adapter:
// it logs dispatched envelopes to stdout and never produces inbound
// messages on its own, so a bot with no configured transport still
// starts and can be driven by tests or an embedder calling Receive
// directly.
package shell

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/relaybot/relay/pkg/adapter"
	"github.com/relaybot/relay/pkg/state"
)

// Adapter is the shell MessageAdapter.
type Adapter struct {
	logger   *slog.Logger
	receiver adapter.Receiver
}

// New constructs a shell adapter. logger may be nil, in which case a
// default slog logger is used.
func New(logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Adapter{logger: logger}
}

// Factory adapts New to the adapter.Factory signature for registration
// under the name "shell".
func Factory(fc adapter.FactoryContext) (adapter.Adapter, error) {
	return New(fc.Logger), nil
}

func (a *Adapter) Name() string { return "shell" }

func (a *Adapter) SetReceiver(r adapter.Receiver) { a.receiver = r }

func (a *Adapter) Start(ctx context.Context) error {
	a.logger.Info("shell adapter started (no inbound transport configured)")
	return nil
}

func (a *Adapter) Shutdown(ctx context.Context) error {
	a.logger.Info("shell adapter shut down")
	return nil
}

// Dispatch prints the envelope to stdout, tagged with its method.
func (a *Adapter) Dispatch(ctx context.Context, env *state.Envelope) error {
	fmt.Printf("[%s -> room:%s user:%s] %s\n", env.Method(), env.RoomID, env.UserID, env.Text())
	return nil
}
