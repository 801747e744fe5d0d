package bot

import (
	"log/slog"

	"github.com/relaybot/relay/pkg/adapter"
	"github.com/relaybot/relay/internal/config"
)

// Option configures a Bot before New wires it together.
type Option func(*Bot) error

// WithConfig sets the bot's configuration tree.
func WithConfig(cfg *config.Config) Option {
	return func(b *Bot) error {
		b.cfg = cfg
		return nil
	}
}

// WithLogger sets the bot's logger. Every collaborator is constructed
// with this logger, not a package default.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Bot) error {
		b.logger = logger
		return nil
	}
}

// WithMessageAdapter registers a message adapter factory under name,
// selected later by api.enabled/mcp.enabled in the configuration.
func WithMessageAdapter(name string, f adapter.Factory) Option {
	return func(b *Bot) error {
		b.registry.RegisterFactory(name, f)
		return nil
	}
}

// WithNLUAdapter registers an NLU adapter factory, selected by
// nlu.provider in the configuration.
func WithNLUAdapter(name string, f adapter.Factory) Option {
	return func(b *Bot) error {
		b.registry.RegisterFactory(name, f)
		return nil
	}
}

// WithStorageAdapter registers a storage adapter factory, selected by
// storage.backend in the configuration.
func WithStorageAdapter(name string, f adapter.Factory) Option {
	return func(b *Bot) error {
		b.registry.RegisterFactory(name, f)
		return nil
	}
}
