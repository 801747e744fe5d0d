// Package filestore is the zero-dependency default Storage adapter: one
// JSON file per collection plus a memory-snapshot file, written with the
// same os.MkdirAll/os.WriteFile pattern the teacher's file-backed session
// store used.
package filestore

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/relaybot/relay/pkg/adapter"
)

// Store persists Memory snapshots and named-collection records as JSON
// files under a directory.
type Store struct {
	mu     sync.Mutex
	dir    string
	logger *slog.Logger
}

// New constructs a Store rooted at dir. The directory is created lazily on
// first write, not at construction.
func New(dir string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{dir: dir, logger: logger}
}

// Factory adapts New to adapter.Factory, registered under "filestore".
func Factory(fc adapter.FactoryContext) (adapter.Adapter, error) {
	dir := fc.Settings["dir"]
	if dir == "" {
		dir = "./data"
	}
	return New(dir, fc.Logger), nil
}

func (s *Store) Name() string { return "filestore" }

func (s *Store) Start(ctx context.Context) error {
	return os.MkdirAll(s.dir, 0o755)
}

func (s *Store) Shutdown(ctx context.Context) error { return nil }

func (s *Store) memoryPath() string { return filepath.Join(s.dir, "memory.json") }

func (s *Store) collectionPath(collection string) string {
	return filepath.Join(s.dir, "collection_"+collection+".json")
}

// SaveMemory writes the full Memory snapshot as one JSON document.
func (s *Store) SaveMemory(ctx context.Context, snapshot map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.memoryPath(), data, 0o644)
}

// LoadMemory reads the snapshot written by SaveMemory. A missing file is
// not an error: it returns an empty snapshot, matching a fresh deployment.
func (s *Store) LoadMemory(ctx context.Context) (map[string]any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.memoryPath())
	if os.IsNotExist(err) {
		return map[string]any{}, nil
	}
	if err != nil {
		return nil, err
	}
	var snapshot map[string]any
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, err
	}
	return snapshot, nil
}

// Keep appends record to a named collection's JSON array file.
func (s *Store) Keep(ctx context.Context, collection string, record map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.readCollectionLocked(collection)
	if err != nil {
		return err
	}
	records = append(records, record)
	return s.writeCollectionLocked(collection, records)
}

// Lose removes every record in a collection matching criteria exactly on
// each key/value pair.
func (s *Store) Lose(ctx context.Context, collection string, criteria map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.readCollectionLocked(collection)
	if err != nil {
		return err
	}
	kept := records[:0]
	for _, r := range records {
		if !matches(r, criteria) {
			kept = append(kept, r)
		}
	}
	return s.writeCollectionLocked(collection, kept)
}

// Find returns every record in a collection matching criteria.
func (s *Store) Find(ctx context.Context, collection string, criteria map[string]any) ([]map[string]any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.readCollectionLocked(collection)
	if err != nil {
		return nil, err
	}
	var out []map[string]any
	for _, r := range records {
		if matches(r, criteria) {
			out = append(out, r)
		}
	}
	return out, nil
}

// FindOne returns the first matching record, or nil if none match.
func (s *Store) FindOne(ctx context.Context, collection string, criteria map[string]any) (map[string]any, error) {
	records, err := s.Find(ctx, collection, criteria)
	if err != nil || len(records) == 0 {
		return nil, err
	}
	return records[0], nil
}

func (s *Store) readCollectionLocked(collection string) ([]map[string]any, error) {
	data, err := os.ReadFile(s.collectionPath(collection))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var records []map[string]any
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("filestore: decode collection %s: %w", collection, err)
	}
	return records, nil
}

func (s *Store) writeCollectionLocked(collection string, records []map[string]any) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.collectionPath(collection), data, 0o644)
}

func matches(record, criteria map[string]any) bool {
	for k, v := range criteria {
		rv, ok := record[k]
		if !ok {
			return false
		}
		if fmt.Sprint(rv) != fmt.Sprint(v) {
			return false
		}
	}
	return true
}
