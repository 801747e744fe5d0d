package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStorage struct {
	mu    sync.Mutex
	saves int
	data  map[string]any
}

func (f *fakeStorage) Name() string                              { return "fake" }
func (f *fakeStorage) Start(ctx context.Context) error            { return nil }
func (f *fakeStorage) Shutdown(ctx context.Context) error         { return nil }
func (f *fakeStorage) SaveMemory(ctx context.Context, snapshot map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saves++
	f.data = snapshot
	return nil
}
func (f *fakeStorage) LoadMemory(ctx context.Context) (map[string]any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.data == nil {
		return map[string]any{}, nil
	}
	return f.data, nil
}
func (f *fakeStorage) Keep(ctx context.Context, collection string, record map[string]any) error {
	return nil
}
func (f *fakeStorage) Lose(ctx context.Context, collection string, criteria map[string]any) error {
	return nil
}
func (f *fakeStorage) Find(ctx context.Context, collection string, criteria map[string]any) ([]map[string]any, error) {
	return nil, nil
}
func (f *fakeStorage) FindOne(ctx context.Context, collection string, criteria map[string]any) (map[string]any, error) {
	return nil, nil
}

func (f *fakeStorage) saveCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.saves
}

func TestMemory_SetGetDeepCopies(t *testing.T) {
	m := New()
	original := map[string]any{"nested": "value"}
	require.NoError(t, m.Set("profile", original, CollectionUsers))

	original["nested"] = "mutated"

	got, ok := m.Get("profile", CollectionUsers)
	require.True(t, ok)
	asMap := got.(map[string]any)
	assert.Equal(t, "value", asMap["nested"])
}

func TestMemory_UnsetAndClear(t *testing.T) {
	m := New()
	require.NoError(t, m.Set("a", 1, CollectionPrivate))
	m.Unset("a", CollectionPrivate)
	_, ok := m.Get("a", CollectionPrivate)
	assert.False(t, ok)

	require.NoError(t, m.Set("b", 2, CollectionPrivate))
	m.Clear()
	_, ok = m.Get("b", CollectionPrivate)
	assert.False(t, ok)
}

func TestMemory_SaveWithoutStorageFails(t *testing.T) {
	m := New()
	err := m.Save(context.Background())
	require.Error(t, err)
}

func TestMemory_RoundTrip(t *testing.T) {
	storage := &fakeStorage{}
	m := New()
	m.SetStorage(storage)
	require.NoError(t, m.Set("k1", "v1", CollectionPrivate))

	require.NoError(t, m.Save(context.Background()))

	m2 := New()
	m2.SetStorage(storage)
	require.NoError(t, m2.Load(context.Background()))

	v, ok := m2.Get("k1", CollectionPrivate)
	require.True(t, ok)
	assert.Equal(t, "v1", v)
}

func TestMemory_AutoSaveFiresRepeatedly(t *testing.T) {
	storage := &fakeStorage{}
	m := New()
	m.SetStorage(storage)
	m.EnableAutoSave(true)
	m.SetSaveInterval(context.Background(), 20*time.Millisecond)

	time.Sleep(120 * time.Millisecond)
	assert.GreaterOrEqual(t, storage.saveCount(), 2)

	m.CancelAutoSave()
	countAfterCancel := storage.saveCount()
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, countAfterCancel, storage.saveCount())
}
