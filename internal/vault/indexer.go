package vault

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/Paintersrp/annex/internal/doc"
	"github.com/Paintersrp/annex/internal/index"
)

var (
	blockRefRe  = regexp.MustCompile(`(?m)^\^([A-Za-z0-9_-]+)\s*$`)
	codeFenceRe = regexp.MustCompile("(?m)^```[ \t]*([A-Za-z0-9_+-]+)")
)

// BatchConfig tunes the lazy body pass of §4.6's two-phase cold index.
type BatchConfig struct {
	BatchSize int
	Delay     time.Duration
}

// DefaultBatchConfig returns the spec's non-mobile defaults.
func DefaultBatchConfig() BatchConfig {
	return BatchConfig{BatchSize: 10, Delay: 50 * time.Millisecond}
}

// MobileBatchConfig returns the spec's mobile defaults.
func MobileBatchConfig() BatchConfig {
	return BatchConfig{BatchSize: 5, Delay: 100 * time.Millisecond}
}

// Indexer wraps a Source and drives it into an index.Provider, per §4.6.
type Indexer struct {
	source            Source
	provider          *index.Provider
	cache             *FileCache
	includeCodeBlocks bool
	log               *slog.Logger

	pendingBodies []SourceFile
}

// NewIndexer constructs an Indexer over source, writing into provider.
func NewIndexer(source Source, provider *index.Provider, cache *FileCache, includeCodeBlocks bool, log *slog.Logger) *Indexer {
	if log == nil {
		log = slog.Default()
	}
	if cache == nil {
		cache = NewFileCache()
	}
	return &Indexer{source: source, provider: provider, cache: cache, includeCodeBlocks: includeCodeBlocks, log: log}
}

// IndexCold runs phase 1 (metadata only, fully awaited) of §4.6's two-phase
// cold-corpus index, queuing every file for the lazy body pass.
func (ix *Indexer) IndexCold() error {
	ix.pendingBodies = ix.pendingBodies[:0]

	return ix.source.Walk(func(f SourceFile) error {
		d, err := ix.extract(f, false)
		if err != nil {
			ix.log.Warn("vault: metadata extraction failed", "path", f.Info().Path, "error", err)
			return nil
		}
		if err := ix.provider.Upsert(d); err != nil {
			ix.log.Warn("vault: metadata upsert failed", "path", d.ID, "error", err)
			return nil
		}
		ix.pendingBodies = append(ix.pendingBodies, f)
		return nil
	})
}

// RunOneBatch processes a single phase-2 batch and reports whether more
// work remains. Callers that need to release a lock between batches (a
// concurrent host wrapping this single-threaded core, per §5) should loop
// on RunOneBatch themselves instead of calling RunBodyPass.
func (ix *Indexer) RunOneBatch(cfg BatchConfig) (hasMore bool, err error) {
	if cfg.BatchSize <= 0 {
		cfg = DefaultBatchConfig()
	}
	if len(ix.pendingBodies) == 0 {
		return false, nil
	}

	n := cfg.BatchSize
	if n > len(ix.pendingBodies) {
		n = len(ix.pendingBodies)
	}
	batch := ix.pendingBodies[:n]
	ix.pendingBodies = ix.pendingBodies[n:]

	for _, f := range batch {
		d, extractErr := ix.extract(f, true)
		if extractErr != nil {
			ix.log.Warn("vault: body extraction failed", "path", f.Info().Path, "error", extractErr)
			continue
		}
		if upsertErr := ix.provider.Upsert(d); upsertErr != nil {
			ix.log.Warn("vault: body upsert failed", "path", d.ID, "error", upsertErr)
			continue
		}
		ix.cache.Put(d.ID, CacheEntry{MTime: d.MTime, Size: d.Size})
	}

	return len(ix.pendingBodies) > 0, nil
}

// RunBodyPass drains the phase-2 queue in batches, yielding cfg.Delay
// between batches. It returns when the queue is empty or ctx is done. Use
// this only when nothing else needs to interleave with the index while it
// runs; otherwise loop on RunOneBatch directly.
func (ix *Indexer) RunBodyPass(ctx context.Context, cfg BatchConfig) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		more, err := ix.RunOneBatch(cfg)
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

// UpsertIfChanged re-extracts and upserts f unless the cache already holds
// a matching {mtime, size} pair for it.
func (ix *Indexer) UpsertIfChanged(f SourceFile) error {
	info := f.Info()
	if cached, ok := ix.cache.Get(info.Path); ok && cached.MTime == info.MTime && cached.Size == info.Size {
		return nil
	}

	d, err := ix.extract(f, true)
	if err != nil {
		return fmt.Errorf("vault: extract %s: %w", info.Path, err)
	}
	if err := ix.provider.Upsert(d); err != nil {
		return fmt.Errorf("vault: upsert %s: %w", info.Path, err)
	}
	ix.cache.Put(d.ID, CacheEntry{MTime: d.MTime, Size: d.Size})
	return nil
}

// Remove deletes id from both the provider and the file cache.
func (ix *Indexer) Remove(id string) {
	ix.provider.Remove(id)
	ix.cache.Delete(id)
}

// Rename moves a document from oldID to a newly-extracted record at its new
// path, per §4.7: remove old, upsert new.
func (ix *Indexer) Rename(oldID string, f SourceFile) error {
	ix.Remove(oldID)
	return ix.UpsertIfChanged(f)
}

func (ix *Indexer) extract(f SourceFile, withBody bool) (doc.Document, error) {
	info := f.Info()
	meta, err := f.Metadata()
	if err != nil {
		return doc.Document{}, err
	}

	d := doc.Document{
		ID:    info.Path,
		Title: titleFromBasename(info.Basename),
		Path:  pathComponents(info.ParentFolder),
		Tags:  meta.Tags,
		MTime: info.MTime,
		Size:  info.Size,
	}
	for _, h := range meta.Headings {
		d.Headings = append(d.Headings, h.Text)
	}
	d.Symbols = append(d.Symbols, meta.Links...)

	if !withBody {
		return d, nil
	}

	rc, err := f.Content()
	if err != nil {
		return doc.Document{}, err
	}
	defer rc.Close()

	body, symbols, err := ix.readBody(rc)
	if err != nil {
		return doc.Document{}, err
	}
	d.Body = body
	d.Symbols = append(d.Symbols, symbols...)
	return d, nil
}

// readBody reads raw content for the normalized body plus the symbols only
// a raw scan can find: block refs and code-fence labels.
func (ix *Indexer) readBody(r io.Reader) (string, []string, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return "", nil, err
	}

	var symbols []string
	for _, m := range blockRefRe.FindAllSubmatch(raw, -1) {
		symbols = append(symbols, "^"+string(m[1]))
	}
	for _, m := range codeFenceRe.FindAllSubmatch(raw, -1) {
		symbols = append(symbols, string(m[1]))
	}

	text := string(raw)
	if !ix.includeCodeBlocks {
		text = stripCodeFences(text)
	}
	return strings.ToLower(text), symbols, nil
}

func stripCodeFences(s string) string {
	var b strings.Builder
	scanner := bufio.NewScanner(strings.NewReader(s))
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	inFence := false
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			inFence = !inFence
			continue
		}
		if inFence {
			continue
		}
		b.WriteString(line)
		b.WriteByte('\n')
	}
	return b.String()
}

func titleFromBasename(basename string) string {
	return strings.TrimSuffix(basename, ".md")
}

func pathComponents(parentFolder string) []string {
	parentFolder = strings.Trim(parentFolder, "/")
	if parentFolder == "" {
		return nil
	}
	return strings.Split(parentFolder, "/")
}
