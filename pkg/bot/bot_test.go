package bot

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relaybot/relay/internal/config"
	"github.com/relaybot/relay/pkg/adapter"
	"github.com/relaybot/relay/pkg/model"
	"github.com/relaybot/relay/pkg/state"
)

// fakeMessageAdapter is a minimal MessageAdapter used to exercise wiring
// without a real transport.
type fakeMessageAdapter struct {
	started    bool
	shutdown   bool
	receiver   adapter.Receiver
	dispatched []*state.Envelope
}

func (f *fakeMessageAdapter) Name() string                   { return "fake" }
func (f *fakeMessageAdapter) SetReceiver(r adapter.Receiver)  { f.receiver = r }
func (f *fakeMessageAdapter) Start(ctx context.Context) error { f.started = true; return nil }
func (f *fakeMessageAdapter) Shutdown(ctx context.Context) error { f.shutdown = true; return nil }
func (f *fakeMessageAdapter) Dispatch(ctx context.Context, env *state.Envelope) error {
	f.dispatched = append(f.dispatched, env)
	return nil
}

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Bot.BitsDir = ""
	cfg.NLU.Provider = ""
	cfg.Storage.Backend = ""
	cfg.API.Enabled = false
	cfg.MCP.Enabled = false
	return cfg
}

func TestNew_AppliesOptionsAndWiresCollaborators(t *testing.T) {
	b, err := New(WithConfig(testConfig()))
	require.NoError(t, err)

	assert.NotNil(t, b.Orchestrator())
	assert.NotNil(t, b.Bits())
	assert.NotNil(t, b.Memory())
	assert.NotNil(t, b.Adapters())
	assert.NotNil(t, b.Lifecycle())
}

func TestBot_RunStartsRegisteredMessageAdapter(t *testing.T) {
	fake := &fakeMessageAdapter{}
	cfg := testConfig()
	cfg.API.Enabled = true

	b, err := New(
		WithConfig(cfg),
		WithMessageAdapter("httpmsg", func(fc adapter.FactoryContext) (adapter.Adapter, error) {
			return fake, nil
		}),
	)
	require.NoError(t, err)

	require.NoError(t, b.Run(context.Background()))
	assert.True(t, fake.started)
	assert.Equal(t, b.Orchestrator(), fake.receiver)

	b.Shutdown(context.Background(), 0)
	assert.True(t, fake.shutdown)
}

func TestBot_MessageAdapterNamePrefersMCP(t *testing.T) {
	cfg := testConfig()
	cfg.API.Enabled = true
	cfg.MCP.Enabled = true

	b, err := New(WithConfig(cfg))
	require.NoError(t, err)
	assert.Equal(t, "mcpmsg", b.messageAdapterName())
}

func TestBot_ReceiveFeedsOrchestrator(t *testing.T) {
	b, err := New(WithConfig(testConfig()))
	require.NoError(t, err)
	require.NoError(t, b.Run(context.Background()))
	defer b.Shutdown(context.Background(), 0)

	msg := model.NewTextMessage("m1", "hello", model.NewUser("u1", "Ada"), model.NewRoom("r1", "general"))
	st := b.Receive(context.Background(), msg)
	require.NotNil(t, st)
}
