// Package chromemstore implements the Storage adapter contract on top of
// an in-process chromem-go vector collection, grounded on the teacher's
// index/search.go Searcher (collection.Query with a metadata "where"
// filter standing in for exact-criteria lookup).
package chromemstore

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/philippgille/chromem-go"

	"github.com/relaybot/relay/pkg/adapter"
)

const memoryCollection = "__memory__"

// Store persists records as chromem-go documents, one collection (by
// Relay's collection name) mapped to one chromem-go collection.
type Store struct {
	mu     sync.Mutex
	path   string
	logger *slog.Logger

	db          *chromem.DB
	collections map[string]*chromem.Collection
}

// New constructs a Store. path is a directory for on-disk persistence; an
// empty path keeps everything in memory for the process lifetime.
func New(path string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{path: path, logger: logger, collections: make(map[string]*chromem.Collection)}
}

// Factory adapts New to adapter.Factory, registered under "chromemstore".
func Factory(fc adapter.FactoryContext) (adapter.Adapter, error) {
	return New(fc.Settings["path"], fc.Logger), nil
}

func (s *Store) Name() string { return "chromemstore" }

func (s *Store) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.path == "" {
		s.db = chromem.NewDB()
		return nil
	}
	db, err := chromem.NewPersistentDB(s.path, false)
	if err != nil {
		return fmt.Errorf("chromemstore: open %s: %w", s.path, err)
	}
	s.db = db
	return nil
}

func (s *Store) Shutdown(ctx context.Context) error { return nil }

// collectionLocked returns (creating if needed) the chromem-go collection
// backing a Relay collection name. Caller must hold s.mu.
func (s *Store) collectionLocked(name string) (*chromem.Collection, error) {
	if c, ok := s.collections[name]; ok {
		return c, nil
	}
	c, err := s.db.GetOrCreateCollection(name, nil, localEmbeddingFunc)
	if err != nil {
		return nil, fmt.Errorf("chromemstore: get or create collection %s: %w", name, err)
	}
	s.collections[name] = c
	return c, nil
}

// SaveMemory stores the whole Memory snapshot as a single document keyed
// by a fixed id in a reserved collection.
func (s *Store) SaveMemory(ctx context.Context, snapshot map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.collectionLocked(memoryCollection)
	if err != nil {
		return err
	}
	content, err := json.Marshal(snapshot)
	if err != nil {
		return err
	}
	return c.AddDocument(ctx, chromem.Document{ID: "snapshot", Content: string(content)})
}

// LoadMemory reads back the snapshot written by SaveMemory.
func (s *Store) LoadMemory(ctx context.Context) (map[string]any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.collectionLocked(memoryCollection)
	if err != nil {
		return nil, err
	}
	doc, err := c.GetByID(ctx, "snapshot")
	if err != nil {
		return map[string]any{}, nil
	}
	var snapshot map[string]any
	if err := json.Unmarshal([]byte(doc.Content), &snapshot); err != nil {
		return nil, err
	}
	return snapshot, nil
}

// Keep adds record to a named collection, deriving its document id from a
// hash of the record's JSON so repeated Keep calls with the same content
// don't accumulate duplicates.
func (s *Store) Keep(ctx context.Context, collection string, record map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.collectionLocked(collection)
	if err != nil {
		return err
	}
	content, err := json.Marshal(record)
	if err != nil {
		return err
	}
	return c.AddDocument(ctx, chromem.Document{
		ID:       recordID(record),
		Content:  string(content),
		Metadata: stringify(record),
	})
}

// Lose removes documents matching criteria from a collection.
func (s *Store) Lose(ctx context.Context, collection string, criteria map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.collectionLocked(collection)
	if err != nil {
		return err
	}
	if c.Count() == 0 {
		return nil
	}
	docs, err := c.Query(ctx, "", c.Count(), stringify(criteria), nil)
	if err != nil {
		return fmt.Errorf("chromemstore: lose query: %w", err)
	}
	for _, d := range docs {
		if err := c.Delete(ctx, nil, nil, d.ID); err != nil {
			return err
		}
	}
	return nil
}

// Find returns every record in a collection whose metadata matches
// criteria, using chromem-go's "where" filter the same way the teacher's
// Searcher scopes a query by git_branch/symbol_kind/file_path.
func (s *Store) Find(ctx context.Context, collection string, criteria map[string]any) ([]map[string]any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.collectionLocked(collection)
	if err != nil {
		return nil, err
	}
	if c.Count() == 0 {
		return nil, nil
	}
	docs, err := c.Query(ctx, "", c.Count(), stringify(criteria), nil)
	if err != nil {
		return nil, fmt.Errorf("chromemstore: find query: %w", err)
	}
	out := make([]map[string]any, 0, len(docs))
	for _, d := range docs {
		var record map[string]any
		if err := json.Unmarshal([]byte(d.Content), &record); err != nil {
			continue
		}
		out = append(out, record)
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

func recordID(record map[string]any) string {
	data, _ := json.Marshal(record)
	sum := sha256.Sum256(data)
	return fmt.Sprintf("%x", sum[:8])
}

func stringify(m map[string]any) map[string]string {
	if len(m) == 0 {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = fmt.Sprint(v)
	}
	return out
}

// localEmbeddingFunc produces a deterministic pseudo-embedding from
// content so collections work fully offline; Find/Lose rely on the
// metadata "where" filter for exact-criteria matching rather than on
// vector similarity, so the embedding only needs to be stable, not
// semantically meaningful.
func localEmbeddingFunc(ctx context.Context, text string) ([]float32, error) {
	sum := sha256.Sum256([]byte(text))
	vec := make([]float32, len(sum))
	for i, b := range sum {
		vec[i] = float32(b) / 255.0
	}
	return vec, nil
}
