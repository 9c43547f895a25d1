// Package coalesce implements the Event Coalescer of §4.7: it debounces
// rapid create/modify filesystem notifications into batched index updates
// and dispatches delete/rename immediately. It is grounded on the
// teacher's internal/state.VaultWatcher (fsnotify + addRecursive +
// isRelevant), adapted to drop the bubbletea Cmd/Msg plumbing — this core
// has no UI to post messages to (§1) — in favor of a plain callback-driven
// run loop.
package coalesce

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/Paintersrp/annex/internal/pathutil"
)

// debounceWindow is the single timer duration from §4.7.
const debounceWindow = 500 * time.Millisecond

// Handler is what the coalescer drives once it has decided a path needs
// attention. Implementations live in internal/services/index, which can
// resolve a relative path back to a vault.SourceFile and an index.Provider
// without the coalescer needing to know about either.
type Handler interface {
	UpsertPath(relPath string) error
	RemovePath(relPath string) error
	RenamePath(oldRelPath, newRelPath string) error
}

// Coalescer watches a vault root and feeds a Handler.
type Coalescer struct {
	watcher *fsnotify.Watcher
	vault   string
	handler Handler
	log     *slog.Logger

	mu      sync.Mutex
	pending map[string]struct{}
	timer   *time.Timer

	lastRenameOld string
}

// New constructs a Coalescer watching root recursively.
func New(root string, handler Handler, log *slog.Logger) (*Coalescer, error) {
	if log == nil {
		log = slog.Default()
	}
	normalized := pathutil.NormalizePath(root)
	if normalized == "" {
		return nil, errors.New("coalesce: vault directory cannot be empty")
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	c := &Coalescer{
		watcher: w,
		vault:   normalized,
		handler: handler,
		log:     log,
		pending: make(map[string]struct{}),
	}
	if err := c.addRecursive(normalized); err != nil {
		_ = w.Close()
		return nil, err
	}
	return c, nil
}

// Run processes filesystem events until ctx is cancelled or the watcher is
// closed. It owns the single debounce timer described in §4.7.
func (c *Coalescer) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			c.Close()
			return ctx.Err()
		case event, ok := <-c.watcher.Events:
			if !ok {
				return nil
			}
			c.handleEvent(event)
		case err, ok := <-c.watcher.Errors:
			if !ok {
				return nil
			}
			if err != nil {
				c.log.Warn("coalesce: watcher error", "error", err)
			}
		}
	}
}

// Close cancels the debounce timer, clears pending state, and stops
// watching the filesystem.
func (c *Coalescer) Close() error {
	c.mu.Lock()
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.pending = make(map[string]struct{})
	c.mu.Unlock()

	return c.watcher.Close()
}

func (c *Coalescer) handleEvent(event fsnotify.Event) {
	if event.Op&fsnotify.Create != 0 {
		if isDir(event.Name) {
			_ = c.addRecursive(event.Name)
			return
		}
	}

	rel, ok := c.relevant(event)
	if !ok {
		return
	}

	switch {
	case event.Op&fsnotify.Remove != 0:
		c.removePending(rel)
		if err := c.handler.RemovePath(rel); err != nil {
			c.log.Warn("coalesce: remove failed", "path", rel, "error", err)
		}

	case event.Op&fsnotify.Rename != 0:
		// fsnotify reports a rename as the old path leaving and (usually) a
		// paired Create for the new path arriving next. The old path is held
		// here and paired with the next Create event; until one arrives the
		// old path is neither removed nor re-indexed.
		c.removePending(rel)
		c.mu.Lock()
		c.lastRenameOld = rel
		c.mu.Unlock()

	case event.Op&fsnotify.Create != 0:
		c.mu.Lock()
		oldRel := c.lastRenameOld
		c.lastRenameOld = ""
		c.mu.Unlock()

		if oldRel != "" && oldRel != rel {
			if err := c.handler.RenamePath(oldRel, rel); err != nil {
				c.log.Warn("coalesce: rename failed", "old", oldRel, "new", rel, "error", err)
			}
			return
		}
		c.addPending(rel)

	case event.Op&fsnotify.Write != 0:
		c.addPending(rel)
	}
}

// addPending adds rel to the pending set and (re)arms the single debounce
// timer.
func (c *Coalescer) addPending(rel string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.pending[rel] = struct{}{}
	if c.timer != nil {
		c.timer.Stop()
	}
	c.timer = time.AfterFunc(debounceWindow, c.flush)
}

func (c *Coalescer) removePending(rel string) {
	c.mu.Lock()
	delete(c.pending, rel)
	c.mu.Unlock()
}

// flush processes every pending id in parallel via the handler, per §4.7.
func (c *Coalescer) flush() {
	c.mu.Lock()
	batch := c.pending
	c.pending = make(map[string]struct{})
	c.timer = nil
	c.mu.Unlock()

	var wg sync.WaitGroup
	for rel := range batch {
		rel := rel
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := c.handler.UpsertPath(rel); err != nil {
				c.log.Warn("coalesce: upsert failed", "path", rel, "error", err)
			}
		}()
	}
	wg.Wait()
}

func (c *Coalescer) addRecursive(root string) error {
	normalized := pathutil.NormalizePath(root)
	return filepath.WalkDir(normalized, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrPermission) {
				return filepath.SkipDir
			}
			return err
		}
		if !d.IsDir() {
			return nil
		}
		return c.watcher.Add(path)
	})
}

func (c *Coalescer) relevant(event fsnotify.Event) (string, bool) {
	if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
		return "", false
	}
	rel, err := pathutil.VaultRelative(c.vault, pathutil.NormalizePath(event.Name))
	if err != nil || rel == "" || rel == "." || strings.HasPrefix(rel, "..") {
		return "", false
	}
	if !strings.EqualFold(filepath.Ext(rel), ".md") {
		return "", false
	}
	return rel, true
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
