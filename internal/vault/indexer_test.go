package vault

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/Paintersrp/annex/internal/config"
	"github.com/Paintersrp/annex/internal/index"
	"github.com/Paintersrp/annex/internal/query"
	"github.com/Paintersrp/annex/internal/score"
)

func TestTitleFromBasenameStripsExtension(t *testing.T) {
	if got := titleFromBasename("Project Plan.md"); got != "Project Plan" {
		t.Fatalf("expected 'Project Plan', got %q", got)
	}
}

func TestPathComponentsSplitsOnSlash(t *testing.T) {
	got := pathComponents("projects/work")
	want := []string{"projects", "work"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}

func TestPathComponentsEmptyForRoot(t *testing.T) {
	if got := pathComponents(""); got != nil {
		t.Fatalf("expected nil for root-level file, got %v", got)
	}
}

func TestStripCodeFencesRemovesFencedContent(t *testing.T) {
	in := "before\n```go\ncode here\n```\nafter\n"
	got := stripCodeFences(in)
	if want := "before\nafter\n"; got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestBlockRefAndCodeFenceSymbolExtraction(t *testing.T) {
	raw := []byte("some text\n^block1\n```python\nprint(1)\n```\n")

	refs := blockRefRe.FindAllSubmatch(raw, -1)
	if len(refs) != 1 || string(refs[0][1]) != "block1" {
		t.Fatalf("expected block ref 'block1', got %v", refs)
	}

	fences := codeFenceRe.FindAllSubmatch(raw, -1)
	if len(fences) != 1 || string(fences[0][1]) != "python" {
		t.Fatalf("expected fence label 'python', got %v", fences)
	}
}

func TestFileCachePutGetDelete(t *testing.T) {
	c := NewFileCache()
	c.Put("a.md", CacheEntry{MTime: 1, Size: 2})

	if e, ok := c.Get("a.md"); !ok || e.MTime != 1 || e.Size != 2 {
		t.Fatalf("expected cached entry, got %v ok=%v", e, ok)
	}

	c.Delete("a.md")
	if _, ok := c.Get("a.md"); ok {
		t.Fatalf("expected entry to be gone after delete")
	}
}

func TestLoadFileCacheMissingFileYieldsEmpty(t *testing.T) {
	c, err := LoadFileCache("/nonexistent/path/does-not-exist.yaml")
	if err != nil {
		t.Fatalf("expected no error for missing file, got %v", err)
	}
	if c.Len() != 0 {
		t.Fatalf("expected empty cache, got %d entries", c.Len())
	}
}

func TestIndexerRenameRemovesOldIDAndUpsertsNewOne(t *testing.T) {
	dir := t.TempDir()
	oldPath := filepath.Join(dir, "old.md")
	if err := os.WriteFile(oldPath, []byte("# Title\n\nbody text"), 0o644); err != nil {
		t.Fatalf("write old.md: %v", err)
	}

	settings := config.Default()
	source := NewFSSource(dir, nil)
	provider := index.New(index.FromSettings(settings), score.FromSettings(settings), nil)
	ix := NewIndexer(source, provider, nil, false, nil)

	if err := ix.IndexCold(); err != nil {
		t.Fatalf("index_cold: %v", err)
	}
	if provider.TotalDocs() != 1 {
		t.Fatalf("expected 1 doc after cold index, got %d", provider.TotalDocs())
	}

	newPath := filepath.Join(dir, "new.md")
	if err := os.Rename(oldPath, newPath); err != nil {
		t.Fatalf("rename on disk: %v", err)
	}

	if err := ix.Rename("old.md", source.FileAt("new.md")); err != nil {
		t.Fatalf("rename: %v", err)
	}

	if provider.TotalDocs() != 1 {
		t.Fatalf("expected rename to replace rather than duplicate, got %d docs", provider.TotalDocs())
	}
	if _, ok := ix.cache.Get("old.md"); ok {
		t.Fatalf("expected old.md evicted from the file cache")
	}
	if _, ok := ix.cache.Get("new.md"); !ok {
		t.Fatalf("expected new.md present in the file cache after rename")
	}

	results, err := provider.Query(query.Parse("title", settings), index.Options{Limit: 10})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(results) != 1 || results[0].ID != "new.md" {
		t.Fatalf("expected the renamed document to be findable under its new id, got %v", results)
	}
}
