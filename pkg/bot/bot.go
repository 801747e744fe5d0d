// Package bot is the top-level wiring package: it bundles the
// orchestrator, adapter registry, memory store, bit registry and bit
// reload watcher behind a functional-option constructor, grounded on the
// teacher's pkg/agent.Agent/agent.Option shape, and drives them through a
// lifecycle.Controller the way Agent.Run drives a loop through its hook
// registry.
package bot

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/relaybot/relay/adapters/httpmsg"
	"github.com/relaybot/relay/adapters/mcpmsg"
	"github.com/relaybot/relay/adapters/nlu/genai"
	"github.com/relaybot/relay/adapters/shell"
	"github.com/relaybot/relay/adapters/storage/chromemstore"
	"github.com/relaybot/relay/adapters/storage/filestore"
	"github.com/relaybot/relay/internal/config"
	"github.com/relaybot/relay/internal/reload"
	"github.com/relaybot/relay/pkg/adapter"
	"github.com/relaybot/relay/pkg/bit"
	"github.com/relaybot/relay/pkg/lifecycle"
	"github.com/relaybot/relay/pkg/memory"
	"github.com/relaybot/relay/pkg/model"
	"github.com/relaybot/relay/pkg/state"
	"github.com/relaybot/relay/pkg/thought"
)

// Bot bundles every collaborator a running process needs: configuration,
// logging, the adapter registry, memory, bits and the stage orchestrator,
// all driven through a single lifecycle controller.
type Bot struct {
	cfg    *config.Config
	logger *slog.Logger

	registry *adapter.Registry
	mem      *memory.Memory
	bits     *bit.Registry
	reload   *reload.Watcher
	orch     *thought.Orchestrator
	life     *lifecycle.Controller
}

// New builds a Bot from options, then wires lifecycle hooks. New does
// not start anything; call Run (which loads then starts), or drive the
// lifecycle.Controller returned by Lifecycle, to bring it up.
func New(opts ...Option) (*Bot, error) {
	b := &Bot{
		cfg:      config.DefaultConfig(),
		logger:   slog.Default(),
		registry: adapter.NewRegistry(),
	}
	b.mem = memory.New()
	b.registerDefaultFactories()

	for _, opt := range opts {
		if err := opt(b); err != nil {
			return nil, fmt.Errorf("apply option: %w", err)
		}
	}

	b.bits = bit.NewRegistry(b.logger)
	b.life = lifecycle.New(b.logger)

	b.orch = thought.New(thought.Config{
		BotName:        b.cfg.Bot.Name,
		NLUMinLength:   b.cfg.Bot.NLUMinLength,
		RequestTimeout: time.Duration(b.cfg.NLU.TimeoutSecs) * time.Second,
		SceneTimeout:   time.Duration(b.cfg.Bot.SceneTimeoutSec) * time.Second,
	}, b.logger, b.registry, b.mem, b.bits, nil)

	if b.cfg.Bot.BitsDir != "" {
		w, err := reload.New(b.cfg.Bot.BitsDir, b.bits, b.logger, 300)
		if err != nil {
			return nil, fmt.Errorf("construct bit watcher: %w", err)
		}
		b.reload = w
	}

	b.wireLifecycle()
	return b, nil
}

// registerDefaultFactories wires every first-party adapter this module
// ships with under its adapter name, so a caller only has to name one in
// configuration to use it. WithMessageAdapter/WithNLUAdapter/
// WithStorageAdapter can still override any of these before Load runs.
func (b *Bot) registerDefaultFactories() {
	b.registry.RegisterFactory("shell", shell.Factory)
	b.registry.RegisterFactory("httpmsg", httpmsg.Factory)
	b.registry.RegisterFactory("mcpmsg", func(fc adapter.FactoryContext) (adapter.Adapter, error) {
		return mcpmsg.New(b.mem, fc.Logger), nil
	})
	b.registry.RegisterFactory("genai", genai.Factory)
	b.registry.RegisterFactory("filestore", filestore.Factory)
	b.registry.RegisterFactory("chromemstore", chromemstore.Factory)
}

// Orchestrator returns the stage orchestrator, used to register branches
// on Global() and subscribe to Events() before Load runs.
func (b *Bot) Orchestrator() *thought.Orchestrator { return b.orch }

// Bits returns the bit registry, used to register programmatic bits
// ahead of Load, alongside whatever bits the reload watcher loads from
// TOML.
func (b *Bot) Bits() *bit.Registry { return b.bits }

// Memory returns the memory store.
func (b *Bot) Memory() *memory.Memory { return b.mem }

// Adapters returns the adapter registry, used to UseMessage/UseNLU/
// UseStorage instances directly ahead of Load, bypassing factory
// resolution.
func (b *Bot) Adapters() *adapter.Registry { return b.registry }

// Lifecycle returns the controller driving Load/Start/Shutdown, for a
// caller that wants to register additional hooks before Load.
func (b *Bot) Lifecycle() *lifecycle.Controller { return b.life }

// Config returns the bot's configuration tree.
func (b *Bot) Config() *config.Config { return b.cfg }

// wireLifecycle registers the load/start/shutdown hooks that turn
// configuration into running collaborators, mirroring how Agent.New
// seeds its circuit breaker and rate limiter from config defaults before
// Run ever executes.
func (b *Bot) wireLifecycle() {
	b.life.OnLoad(func(ctx context.Context) error {
		if b.cfg.NLU.Provider != "" {
			if err := b.registry.Load(adapter.SlotNLU, b.cfg.NLU.Provider, adapter.FactoryContext{
				Logger: b.logger,
				Settings: map[string]string{
					"api_key": b.cfg.NLU.APIKey,
					"model":   b.cfg.NLU.Model,
				},
			}); err != nil {
				return fmt.Errorf("load nlu adapter %q: %w", b.cfg.NLU.Provider, err)
			}
		}

		if b.cfg.Storage.Backend != "" {
			if err := b.registry.Load(adapter.SlotStorage, b.cfg.Storage.Backend, adapter.FactoryContext{
				Logger: b.logger,
				Settings: map[string]string{
					"path": b.cfg.Storage.Path,
					"dir":  b.cfg.Storage.Path,
				},
			}); err != nil {
				return fmt.Errorf("load storage adapter %q: %w", b.cfg.Storage.Backend, err)
			}
			b.mem.SetStorage(b.registry.Storage())
		}

		messageName := b.messageAdapterName()
		if messageName != "" {
			if err := b.registry.Load(adapter.SlotMessage, messageName, adapter.FactoryContext{
				Logger: b.logger,
				Settings: map[string]string{
					"addr":         fmt.Sprintf("%s:%d", b.cfg.Bot.Host, b.cfg.Bot.Port),
					"api_key":      b.cfg.API.APIKey,
					"callback_url": b.cfg.API.CallbackURL,
					"version":      "1.0.0",
				},
			}); err != nil {
				return fmt.Errorf("load message adapter %q: %w", messageName, err)
			}
			b.registry.Message().SetReceiver(b.orch)
		}

		if b.reload != nil {
			if err := b.reload.LoadAll(); err != nil {
				return fmt.Errorf("load bits: %w", err)
			}
		}
		return nil
	})

	b.life.OnStart(func(ctx context.Context) error {
		if err := b.mem.Load(ctx); err != nil {
			b.logger.Warn("bot: memory load failed, continuing with empty state", "error", err)
		}
		if b.cfg.Storage.SaveIntervalSecs > 0 {
			b.mem.EnableAutoSave(true)
			b.mem.SetSaveInterval(ctx, time.Duration(b.cfg.Storage.SaveIntervalSecs)*time.Second)
		}
		if err := b.registry.StartAll(ctx); err != nil {
			return fmt.Errorf("start adapters: %w", err)
		}
		if b.reload != nil {
			if err := b.reload.Start(); err != nil {
				return fmt.Errorf("start bit watcher: %w", err)
			}
		}
		return nil
	})

	b.life.OnShutdown(func(ctx context.Context) error {
		if b.reload != nil {
			if err := b.reload.Stop(); err != nil {
				b.logger.Warn("bot: stop bit watcher failed", "error", err)
			}
		}
		b.mem.CancelAutoSave()
		if err := b.mem.Save(ctx); err != nil {
			b.logger.Warn("bot: final memory save failed", "error", err)
		}
		return b.registry.ShutdownAll(ctx)
	})

	b.life.OnReset(func(ctx context.Context) error {
		b.orch.Global().Reset()
		b.registry.UnloadAll()
		return nil
	})
}

// messageAdapterName resolves which registered message adapter name to
// load for the message slot: MCP wins when both are enabled, since a
// stdio-served MCP server and an HTTP listener can coexist as separate
// processes but not separate adapters in one slot. With neither enabled,
// the zero-dependency shell adapter keeps the bot runnable for direct
// Receive calls and tests.
func (b *Bot) messageAdapterName() string {
	if b.cfg.MCP.Enabled {
		return "mcpmsg"
	}
	if b.cfg.API.Enabled {
		return "httpmsg"
	}
	return "shell"
}

// Run brings the bot fully up: Load then Start. Callers typically follow
// Run with a blocking wait on signal/context cancellation, then call
// Shutdown.
func (b *Bot) Run(ctx context.Context) error {
	if err := b.life.Load(ctx); err != nil {
		return err
	}
	return b.life.Start(ctx)
}

// Shutdown tears the bot down via the lifecycle controller.
func (b *Bot) Shutdown(ctx context.Context, code int) {
	b.life.Shutdown(ctx, code)
}

// Receive feeds a message directly into the orchestrator, bypassing any
// message adapter; used by tests and by adapters that already hold a
// *Bot reference instead of going through SetReceiver.
func (b *Bot) Receive(ctx context.Context, msg *model.Message) *state.State {
	return b.orch.Receive(ctx, msg)
}
