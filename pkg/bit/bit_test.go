package bit

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relaybot/relay/pkg/model"
	"github.com/relaybot/relay/pkg/state"
)

func newTestState() *state.State {
	msg := model.NewTextMessage("m1", "hi", model.NewUser("u1", "Ada"), model.NewRoom("r1", "general"))
	return state.New(msg, "bb", "bot-1")
}

func TestRegistry_RunSendsThenCallback(t *testing.T) {
	r := NewRegistry(nil)
	callbackRan := false
	r.Register(&Bit{
		ID:   "greet",
		Send: "hello there",
		Callback: func(ctx context.Context, st *state.State) error {
			callbackRan = true
			envs := st.Envelopes()
			require.Len(t, envs, 1)
			return nil
		},
	})

	st := newTestState()
	require.NoError(t, r.Run(context.Background(), "greet", st))
	assert.True(t, callbackRan)
}

func TestRegistry_RunMissingIDDoesNotError(t *testing.T) {
	r := NewRegistry(nil)
	err := r.Run(context.Background(), "nope", newTestState())
	assert.NoError(t, err)
}

func TestRegistry_DuplicateRegistrationReplaces(t *testing.T) {
	r := NewRegistry(nil)
	r.Register(&Bit{ID: "x", Send: "first"})
	r.Register(&Bit{ID: "x", Send: "second"})

	b, ok := r.Get("x")
	require.True(t, ok)
	assert.Equal(t, "second", b.Send)
}
