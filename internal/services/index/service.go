// Package index (services/index) is the facade that wires
// internal/vault, internal/coalesce, and internal/index together into a
// single workspace-scoped search service, grounded on the teacher's
// internal/services/index.Service: the same shape (a mutex-guarded handle
// owning the index, with Stats/Close), but rebuilt around the inverted
// index Provider instead of the teacher's frontmatter-query Index, and
// around the event coalescer instead of ad hoc pending-path bookkeeping.
//
// §5 specifies a single-threaded cooperative executor for the core itself;
// this Service is what a concurrent host program (the coalescer runs
// upserts from goroutines; callers query from others) wraps around it, per
// the design notes' "single read lock per query, single write lock per
// upsert/remove/clear."
package index

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Paintersrp/annex/internal/coalesce"
	"github.com/Paintersrp/annex/internal/config"
	coreindex "github.com/Paintersrp/annex/internal/index"
	"github.com/Paintersrp/annex/internal/query"
	"github.com/Paintersrp/annex/internal/score"
	"github.com/Paintersrp/annex/internal/vault"
)

// ErrClosed signals that the service has been shut down.
var ErrClosed = errors.New("services/index: service closed")

// Stats captures lightweight instrumentation about the shared index.
type Stats struct {
	TotalDocs   int
	LastRebuild time.Time
}

// Options configures NewService.
type Options struct {
	VaultRoot string
	Settings  config.Settings
	CachePath string // empty disables file-cache persistence
	Logger    *slog.Logger
}

// Service owns a shared index for a vault and coordinates updates coming
// from the filesystem watcher.
type Service struct {
	mu sync.RWMutex

	vaultRoot string
	source    vault.RandomAccessSource
	provider  *coreindex.Provider
	indexer   *vault.Indexer
	cache     *vault.FileCache
	coalescer *coalesce.Coalescer
	log       *slog.Logger

	lastRebuild time.Time
	closed      bool
}

// NewService constructs a workspace-scoped index service rooted at the
// vault. It does not index anything until Start or IndexCold is called.
func NewService(opts Options) (*Service, error) {
	if opts.VaultRoot == "" {
		return nil, errors.New("services/index: vault root cannot be empty")
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}

	source := vault.NewFSSource(opts.VaultRoot, opts.Settings.Search.ExcludeFolders)

	var cache *vault.FileCache
	if opts.CachePath != "" {
		c, err := vault.LoadFileCache(opts.CachePath)
		if err != nil {
			return nil, err
		}
		cache = c
	} else {
		cache = vault.NewFileCache()
	}

	provider := coreindex.New(coreindex.FromSettings(opts.Settings), score.FromSettings(opts.Settings), log)
	indexer := vault.NewIndexer(source, provider, cache, opts.Settings.Search.IncludeCodeBlocks, log)

	return &Service{
		vaultRoot: opts.VaultRoot,
		source:    source,
		provider:  provider,
		indexer:   indexer,
		cache:     cache,
		log:       log,
	}, nil
}

// SaveCache persists the file cache used to skip re-reading unchanged
// files across runs. A no-op target path is the caller's choice, not an
// error here; an empty path is rejected since it would overwrite nothing
// meaningful.
func (s *Service) SaveCache(path string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if path == "" {
		return errors.New("services/index: cache path cannot be empty")
	}
	return s.cache.Save(path)
}

// IndexCold runs phase 1 of the cold index (metadata only) synchronously
// and queues every file for the lazy body pass, without starting the
// background body pass or the filesystem watcher. One-shot callers (a CLI
// "index" or "search" run) that want the body pass finished before
// returning should follow this with RunBodyPassToCompletion directly.
func (s *Service) IndexCold() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if err := s.indexer.IndexCold(); err != nil {
		return fmt.Errorf("services/index: cold index: %w", err)
	}
	s.lastRebuild = time.Now()
	return nil
}

// Start runs phase 1 of the cold index synchronously, then launches the
// lazy body pass and the filesystem watcher in the background. ctx governs
// both background loops; cancelling it stops them and Close still applies.
// Use this for long-lived hosts (the "watch" command); one-shot callers
// should use IndexCold plus RunBodyPassToCompletion instead, since neither
// a backgrounded body pass nor a filesystem watcher outlives a one-shot run.
func (s *Service) Start(ctx context.Context) error {
	if err := s.IndexCold(); err != nil {
		return err
	}

	go func() {
		if err := s.RunBodyPassToCompletion(ctx, vault.DefaultBatchConfig()); err != nil &&
			!errors.Is(err, context.Canceled) && !errors.Is(err, ErrClosed) {
			s.log.Warn("services/index: body pass stopped", "error", err)
		}
	}()

	coalescer, err := coalesce.New(s.vaultRoot, s, s.log)
	if err != nil {
		return fmt.Errorf("services/index: watcher: %w", err)
	}
	s.mu.Lock()
	s.coalescer = coalescer
	s.mu.Unlock()

	go func() {
		if err := coalescer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			s.log.Warn("services/index: watcher stopped", "error", err)
		}
	}()

	return nil
}

// RunBodyPassToCompletion drains the lazy body-pass queue one batch at a
// time, acquiring the write lock only for the duration of each batch so
// queries can interleave between them, per §5's batch-boundary suspension
// design. Start backgrounds this in a goroutine; a one-shot CLI run that
// has nothing else to interleave with can call it directly and block.
func (s *Service) RunBodyPassToCompletion(ctx context.Context, cfg vault.BatchConfig) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			return ErrClosed
		}
		more, err := s.indexer.RunOneBatch(cfg)
		s.mu.Unlock()
		if err != nil {
			return err
		}
		if !more {
			return nil
		}

		if cfg.Delay > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(cfg.Delay):
			}
		}
	}
}

// Query resolves q against the current index, holding a single read lock
// for the duration of the query per the design notes.
func (s *Service) Query(q query.Parsed, opts coreindex.Options) ([]coreindex.Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}
	return s.provider.Query(q, opts)
}

// QueryStream is the streaming counterpart of Query.
func (s *Service) QueryStream(q query.Parsed, opts coreindex.Options, emit coreindex.StreamHandler) ([]coreindex.Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}
	return s.provider.QueryStream(q, opts, emit)
}

// Stats returns instrumentation about the index lifecycle.
func (s *Service) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Stats{TotalDocs: s.provider.TotalDocs(), LastRebuild: s.lastRebuild}
}

// Close stops the watcher and marks the service unusable. Callers that
// want the file cache persisted should call SaveCache first.
func (s *Service) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	if s.coalescer != nil {
		_ = s.coalescer.Close()
	}
	return nil
}

// --- coalesce.Handler ---

// UpsertPath implements coalesce.Handler.
func (s *Service) UpsertPath(rel string) error {
	f := s.source.FileAt(rel)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	return s.indexer.UpsertIfChanged(f)
}

// RemovePath implements coalesce.Handler.
func (s *Service) RemovePath(rel string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.indexer.Remove(rel)
	return nil
}

// RenamePath implements coalesce.Handler.
func (s *Service) RenamePath(oldRel, newRel string) error {
	f := s.source.FileAt(newRel)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	return s.indexer.Rename(oldRel, f)
}
