// Package reload watches a directory of declarative Bit definitions and
// reloads changed ones into a bit.Registry, grounded on
// pkg/index/watcher.go's fsnotify-based debounced reindex-on-save loop —
// this package's analogue of live reindexing is live reloading of bits.
package reload

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/fsnotify/fsnotify"

	"github.com/relaybot/relay/pkg/bit"
	"github.com/relaybot/relay/pkg/expr"
)

// fileDef is the TOML shape of one bits/*.toml file.
type fileDef struct {
	Bits []bitDef `toml:"bit"`
}

type bitDef struct {
	ID       string   `toml:"id"`
	Send     string   `toml:"send"`
	Next     []string `toml:"next"`
	Scope    string   `toml:"scope"`
	Contains []string `toml:"trigger_contains"`
	Is       []string `toml:"trigger_is"`
}

func (d bitDef) toBit() (*bit.Bit, error) {
	b := &bit.Bit{ID: d.ID, Send: d.Send, Next: d.Next}
	switch d.Scope {
	case "room":
		b.Scope = bit.ScopeRoom
	case "both":
		b.Scope = bit.ScopeBoth
	default:
		b.Scope = bit.ScopeUser
	}

	if len(d.Contains) > 0 || len(d.Is) > 0 {
		cond := expr.NewCondition()
		if len(d.Contains) > 0 {
			cond.Contains(d.Contains...)
		}
		if len(d.Is) > 0 {
			cond.Is(d.Is...)
		}
		conditions, err := expr.New(cond)
		if err != nil {
			return nil, fmt.Errorf("bit %s: compile trigger: %w", d.ID, err)
		}
		b.TriggerCondition = conditions
	}
	return b, nil
}

// Watcher monitors a bits directory for TOML file changes and reloads
// them into a Registry, debounced the same way the teacher's Watcher
// debounces reindex events.
type Watcher struct {
	dir        string
	registry   *bit.Registry
	logger     *slog.Logger
	debounceMs int

	fsWatcher *fsnotify.Watcher
	stopCh    chan struct{}
	running   bool
	mu        sync.Mutex

	pending   map[string]time.Time
	pendingMu sync.Mutex
}

// New constructs a Watcher over dir, rooted at the bits directory
// configured for the bot. debounceMs <= 0 defaults to 300ms.
func New(dir string, registry *bit.Registry, logger *slog.Logger, debounceMs int) (*Watcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if debounceMs <= 0 {
		debounceMs = 300
	}
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("reload: create watcher: %w", err)
	}
	return &Watcher{
		dir:        dir,
		registry:   registry,
		logger:     logger,
		debounceMs: debounceMs,
		fsWatcher:  fsWatcher,
		stopCh:     make(chan struct{}),
		pending:    make(map[string]time.Time),
	}, nil
}

// LoadAll reads every *.toml file in dir and registers its bits, used for
// the initial load during the loading lifecycle phase.
func (w *Watcher) LoadAll() error {
	entries, err := os.ReadDir(w.dir)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reload: read dir %s: %w", w.dir, err)
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".toml") {
			continue
		}
		if err := w.loadFile(filepath.Join(w.dir, e.Name())); err != nil {
			w.logger.Error("reload: load bits file failed", "file", e.Name(), "error", err)
		}
	}
	return nil
}

func (w *Watcher) loadFile(path string) error {
	var def fileDef
	if _, err := toml.DecodeFile(path, &def); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	for _, d := range def.Bits {
		b, err := d.toBit()
		if err != nil {
			return err
		}
		w.registry.Register(b)
	}
	return nil
}

// Start begins watching dir for writes, reloading bits as files settle.
// It is inert (returns nil immediately) if dir is empty, matching
// "unless bits_dir is configured".
func (w *Watcher) Start() error {
	if w.dir == "" {
		return nil
	}
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return fmt.Errorf("reload: ensure dir %s: %w", w.dir, err)
	}
	if err := w.fsWatcher.Add(w.dir); err != nil {
		return fmt.Errorf("reload: watch dir %s: %w", w.dir, err)
	}

	go w.processEvents()
	go w.processDebounced()
	return nil
}

// Stop halts the watcher goroutines and closes the underlying fsnotify
// watcher.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.running {
		return nil
	}
	w.running = false
	close(w.stopCh)
	return w.fsWatcher.Close()
}

func (w *Watcher) processEvents() {
	for {
		select {
		case <-w.stopCh:
			return
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			if !strings.HasSuffix(event.Name, ".toml") {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			w.pendingMu.Lock()
			w.pending[event.Name] = time.Now()
			w.pendingMu.Unlock()
		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("reload: watcher error", "error", err)
		}
	}
}

func (w *Watcher) processDebounced() {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.processPendingFiles()
		}
	}
}

func (w *Watcher) processPendingFiles() {
	w.pendingMu.Lock()
	defer w.pendingMu.Unlock()

	now := time.Now()
	debounce := time.Duration(w.debounceMs) * time.Millisecond

	for path, ts := range w.pending {
		if now.Sub(ts) < debounce {
			continue
		}
		delete(w.pending, path)

		if _, err := os.Stat(path); os.IsNotExist(err) {
			continue
		}
		if err := w.loadFile(path); err != nil {
			w.logger.Error("reload: reload bits file failed", "file", path, "error", err)
		}
	}
}
