package lifecycle

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestController_HappyPathTransitions(t *testing.T) {
	c := New(nil)
	require.NoError(t, c.Load(context.Background()))
	assert.Equal(t, StatusLoaded, c.Status())

	require.NoError(t, c.Start(context.Background()))
	assert.Equal(t, StatusStarted, c.Status())

	c.Shutdown(context.Background(), 0)
	assert.Equal(t, StatusShutdown, c.Status())
	assert.Equal(t, 0, c.ExitCode())
}

func TestController_LoadFailureTriggersShutdown(t *testing.T) {
	c := New(nil)
	c.OnLoad(func(ctx context.Context) error { return errors.New("boom") })

	err := c.Load(context.Background())
	require.Error(t, err)
	assert.Equal(t, StatusShutdown, c.Status())
	assert.Equal(t, 1, c.ExitCode())
}

func TestController_ShutdownRunsHooksInLIFOOrder(t *testing.T) {
	c := New(nil)
	var order []string
	var mu sync.Mutex
	c.OnShutdown(func(ctx context.Context) error {
		mu.Lock()
		order = append(order, "first")
		mu.Unlock()
		return nil
	})
	c.OnShutdown(func(ctx context.Context) error {
		mu.Lock()
		order = append(order, "second")
		mu.Unlock()
		return nil
	})

	c.Shutdown(context.Background(), 0)
	assert.Equal(t, []string{"second", "first"}, order)
}

func TestController_PauseReturnsToLoaded(t *testing.T) {
	c := New(nil)
	require.NoError(t, c.Load(context.Background()))
	require.NoError(t, c.Start(context.Background()))

	c.Pause(context.Background())
	assert.Equal(t, StatusLoaded, c.Status())
}

func TestController_ShutdownWaitsForInFlightLoad(t *testing.T) {
	c := New(nil)
	started := make(chan struct{})
	release := make(chan struct{})
	c.OnLoad(func(ctx context.Context) error {
		close(started)
		<-release
		return nil
	})

	go c.Load(context.Background())
	<-started

	done := make(chan struct{})
	go func() {
		c.Shutdown(context.Background(), 0)
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("shutdown returned before load finished")
	case <-time.After(20 * time.Millisecond):
	}

	close(release)
	<-done
	assert.Equal(t, StatusShutdown, c.Status())
}

func TestController_ResetClearsHooksAndReturnsToWaiting(t *testing.T) {
	c := New(nil)
	ran := false
	c.OnReset(func(ctx context.Context) error { ran = true; return nil })
	require.NoError(t, c.Load(context.Background()))

	c.Reset(context.Background())
	assert.True(t, ran)
	assert.Equal(t, StatusWaiting, c.Status())
}
