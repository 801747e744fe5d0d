package filestore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relaybot/relay/pkg/adapter"
)

func TestStore_SaveAndLoadMemoryRoundTrips(t *testing.T) {
	dir := t.TempDir()
	s := New(dir, nil)
	require.NoError(t, s.Start(context.Background()))

	snapshot := map[string]any{"users": map[string]any{"u1": map[string]any{"name": "Ada"}}}
	require.NoError(t, s.SaveMemory(context.Background(), snapshot))

	loaded, err := s.LoadMemory(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Ada", loaded["users"].(map[string]any)["u1"].(map[string]any)["name"])
}

func TestStore_LoadMemoryMissingFileIsEmpty(t *testing.T) {
	s := New(t.TempDir(), nil)
	loaded, err := s.LoadMemory(context.Background())
	require.NoError(t, err)
	assert.Empty(t, loaded)
}

func TestStore_KeepFindLose(t *testing.T) {
	s := New(t.TempDir(), nil)
	ctx := context.Background()

	require.NoError(t, s.Keep(ctx, "notes", map[string]any{"id": "1", "text": "first"}))
	require.NoError(t, s.Keep(ctx, "notes", map[string]any{"id": "2", "text": "second"}))

	found, err := s.Find(ctx, "notes", map[string]any{"id": "2"})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "second", found[0]["text"])

	one, err := s.FindOne(ctx, "notes", map[string]any{"id": "1"})
	require.NoError(t, err)
	assert.Equal(t, "first", one["text"])

	require.NoError(t, s.Lose(ctx, "notes", map[string]any{"id": "1"}))
	remaining, err := s.Find(ctx, "notes", map[string]any{})
	require.NoError(t, err)
	assert.Len(t, remaining, 1)
}

func TestStore_FindOneNoMatchReturnsNil(t *testing.T) {
	s := New(t.TempDir(), nil)
	one, err := s.FindOne(context.Background(), "notes", map[string]any{"id": "missing"})
	require.NoError(t, err)
	assert.Nil(t, one)
}

func TestFactory_DefaultsDir(t *testing.T) {
	a, err := Factory(adapter.FactoryContext{})
	require.NoError(t, err)
	assert.Equal(t, "filestore", a.Name())
}
