package middleware

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relaybot/relay/pkg/model"
	"github.com/relaybot/relay/pkg/state"
)

func newState() *state.State {
	msg := model.NewTextMessage("m1", "hi", nil, nil)
	return state.New(msg, "bb", "bot-1")
}

func TestStack_AllPiecesRunComplete(t *testing.T) {
	var order []string
	s := NewStack("listen")
	s.Use(func(ctx context.Context, st *state.State, next NextFunc, done DoneFunc) error {
		order = append(order, "a")
		next()
		return nil
	})
	s.Use(func(ctx context.Context, st *state.State, next NextFunc, done DoneFunc) error {
		order = append(order, "b")
		next()
		return nil
	})

	err := s.Run(context.Background(), newState(), func(ctx context.Context, st *state.State) error {
		order = append(order, "complete")
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "complete"}, order)
}

func TestStack_DoneInterruptsSkipsComplete(t *testing.T) {
	completeCalled := 0
	s := NewStack("listen")
	s.Use(func(ctx context.Context, st *state.State, next NextFunc, done DoneFunc) error {
		done()
		return nil
	})
	s.Use(func(ctx context.Context, st *state.State, next NextFunc, done DoneFunc) error {
		t.Fatal("second piece must not run after done()")
		return nil
	})

	err := s.Run(context.Background(), newState(), func(ctx context.Context, st *state.State) error {
		completeCalled++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 0, completeCalled)
}

func TestStack_NextWrapRunsInLIFOOrder(t *testing.T) {
	var order []string
	s := NewStack("listen")
	s.Use(func(ctx context.Context, st *state.State, next NextFunc, done DoneFunc) error {
		next(func(ctx context.Context, st *state.State) { order = append(order, "cleanup-1") })
		return nil
	})
	s.Use(func(ctx context.Context, st *state.State, next NextFunc, done DoneFunc) error {
		next(func(ctx context.Context, st *state.State) { order = append(order, "cleanup-2") })
		return nil
	})

	err := s.Run(context.Background(), newState(), func(ctx context.Context, st *state.State) error {
		order = append(order, "complete")
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"complete", "cleanup-2", "cleanup-1"}, order)
}

func TestStack_PieceErrorWrapsAsMiddlewareError(t *testing.T) {
	s := NewStack("understand")
	s.Use(func(ctx context.Context, st *state.State, next NextFunc, done DoneFunc) error {
		return assert.AnError
	})

	err := s.Run(context.Background(), newState(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "understand")
}
