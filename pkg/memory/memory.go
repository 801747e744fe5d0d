// Package memory implements the key/collection store bots use to persist
// user, room and free-form state, with optional periodic snapshotting
// through a storage adapter.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/relaybot/relay/pkg/adapter"
	"github.com/relaybot/relay/pkg/relerr"
)

const (
	CollectionUsers   = "users"
	CollectionRooms   = "rooms"
	CollectionPrivate = "private"
)

// Memory is the collection-keyed store: reserved collections for users
// and rooms, a private collection for bot-internal state, and any number
// of user-defined collections.
type Memory struct {
	mu          sync.Mutex
	collections map[string]map[string]any

	storage      adapter.StorageAdapter
	autoSave     bool
	saveInterval time.Duration
	timer        *time.Timer
}

// New constructs an empty Memory with the three reserved collections
// pre-created.
func New() *Memory {
	return &Memory{
		collections: map[string]map[string]any{
			CollectionUsers:   {},
			CollectionRooms:   {},
			CollectionPrivate: {},
		},
	}
}

// SetStorage wires the storage collaborator used by Save/Load.
func (m *Memory) SetStorage(s adapter.StorageAdapter) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.storage = s
}

func deepCopy(value any) (any, error) {
	if value == nil {
		return nil, nil
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("deep-copy value: %w", err)
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("deep-copy value: %w", err)
	}
	return out, nil
}

// Set deep-copies value and stores it under key in collection (defaults
// to "private" when collection is empty).
func (m *Memory) Set(key string, value any, collection string) error {
	if collection == "" {
		collection = CollectionPrivate
	}
	cp, err := deepCopy(value)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.collections[collection] == nil {
		m.collections[collection] = map[string]any{}
	}
	m.collections[collection][key] = cp
	return nil
}

// Get retrieves a value, reporting whether it was present.
func (m *Memory) Get(key, collection string) (any, bool) {
	if collection == "" {
		collection = CollectionPrivate
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.collections[collection]
	if !ok {
		return nil, false
	}
	v, ok := c[key]
	return v, ok
}

// Unset removes a key from a collection.
func (m *Memory) Unset(key, collection string) {
	if collection == "" {
		collection = CollectionPrivate
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.collections[collection]; ok {
		delete(c, key)
	}
}

// Clear empties every collection.
func (m *Memory) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.collections = map[string]map[string]any{
		CollectionUsers:   {},
		CollectionRooms:   {},
		CollectionPrivate: {},
	}
}

// ToObject returns a snapshot of every collection, suitable for
// serialisation by a storage adapter. The collection maps are copied;
// the stored values themselves are shared with memory, not copied.
func (m *Memory) ToObject() map[string]any {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[string]any, len(m.collections))
	for name, coll := range m.collections {
		inner := make(map[string]any, len(coll))
		for k, v := range coll {
			inner[k] = v
		}
		out[name] = inner
	}
	return out
}

// EnableAutoSave turns on periodic snapshotting through the registered
// storage adapter, which must be set via SetStorage first.
func (m *Memory) EnableAutoSave(enabled bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.autoSave = enabled
}

// SetSaveInterval schedules a periodic Save every interval while auto-save
// is enabled (EnableAutoSave), cancelling any previously scheduled timer.
// Passing zero stops periodic saving.
func (m *Memory) SetSaveInterval(ctx context.Context, interval time.Duration) {
	m.mu.Lock()
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	m.saveInterval = interval
	m.mu.Unlock()

	if interval <= 0 {
		return
	}
	m.armTimer(ctx)
}

func (m *Memory) armTimer(ctx context.Context) {
	m.mu.Lock()
	interval := m.saveInterval
	if interval <= 0 || !m.autoSave {
		m.mu.Unlock()
		return
	}
	if m.timer != nil {
		m.timer.Stop()
	}
	// Save re-arms the timer on exit, so the callback does not.
	m.timer = time.AfterFunc(interval, func() {
		_ = m.Save(ctx)
	})
	m.mu.Unlock()
}

// CancelAutoSave stops the periodic save timer without disabling autoSave
// semantics for a subsequent SetSaveInterval call.
func (m *Memory) CancelAutoSave() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	m.saveInterval = 0
}

// Save serialises the whole memory through the storage adapter. It
// cancels the save timer on entry and re-arms it on exit so a slow write
// can never overlap with the next scheduled tick.
func (m *Memory) Save(ctx context.Context) error {
	m.mu.Lock()
	storage := m.storage
	autoSave := m.autoSave
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	m.mu.Unlock()

	defer func() {
		if autoSave {
			m.armTimer(ctx)
		}
	}()

	if storage == nil {
		return relerr.ErrStorageUnavailable
	}
	return storage.SaveMemory(ctx, m.ToObject())
}

// Load reads the storage adapter's snapshot and merges it into memory,
// collection by collection, shallow-merging keys so values already set
// since startup are not clobbered by stale persisted ones sharing a key.
func (m *Memory) Load(ctx context.Context) error {
	m.mu.Lock()
	storage := m.storage
	m.mu.Unlock()

	if storage == nil {
		return relerr.ErrStorageUnavailable
	}

	loaded, err := storage.LoadMemory(ctx)
	if err != nil {
		return fmt.Errorf("load memory: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for collection, raw := range loaded {
		inner, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		if m.collections[collection] == nil {
			m.collections[collection] = map[string]any{}
		}
		for k, v := range inner {
			if _, exists := m.collections[collection][k]; !exists {
				m.collections[collection][k] = v
			}
		}
	}
	return nil
}
