package coalesce

import (
	"log/slog"
	"sync"
	"testing"

	"github.com/fsnotify/fsnotify"
)

type recordingHandler struct {
	mu      sync.Mutex
	upserts []string
	removes []string
	renames [][2]string
}

func (h *recordingHandler) UpsertPath(p string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.upserts = append(h.upserts, p)
	return nil
}

func (h *recordingHandler) RemovePath(p string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removes = append(h.removes, p)
	return nil
}

func (h *recordingHandler) RenamePath(oldP, newP string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.renames = append(h.renames, [2]string{oldP, newP})
	return nil
}

func TestAddPendingReArmsSingleTimer(t *testing.T) {
	c := &Coalescer{
		vault:   "/vault",
		handler: &recordingHandler{},
		pending: make(map[string]struct{}),
	}

	c.addPending("a.md")
	first := c.timer
	c.addPending("b.md")

	if c.timer == first {
		t.Fatalf("expected addPending to re-arm (replace) the timer")
	}
	if len(c.pending) != 2 {
		t.Fatalf("expected both paths pending, got %v", c.pending)
	}
	c.timer.Stop()
}

func TestRemovePendingDropsQueuedPath(t *testing.T) {
	c := &Coalescer{
		vault:   "/vault",
		handler: &recordingHandler{},
		pending: map[string]struct{}{"a.md": {}},
	}

	c.removePending("a.md")
	if len(c.pending) != 0 {
		t.Fatalf("expected pending set to be empty, got %v", c.pending)
	}
}

func TestFlushDispatchesEveryPendingPathAndClears(t *testing.T) {
	h := &recordingHandler{}
	c := &Coalescer{
		vault:   "/vault",
		handler: h,
		pending: map[string]struct{}{"a.md": {}, "b.md": {}},
	}

	c.flush()

	if len(h.upserts) != 2 {
		t.Fatalf("expected 2 upserts, got %v", h.upserts)
	}
	if len(c.pending) != 0 {
		t.Fatalf("expected pending cleared after flush, got %v", c.pending)
	}
}

func TestHandleEventCorrelatesRenameThenCreateIntoRenamePath(t *testing.T) {
	h := &recordingHandler{}
	c := &Coalescer{
		vault:   "/vault",
		handler: h,
		log:     slog.Default(),
		pending: make(map[string]struct{}),
	}

	c.handleEvent(fsnotify.Event{Name: "/vault/old.md", Op: fsnotify.Rename})
	c.handleEvent(fsnotify.Event{Name: "/vault/new.md", Op: fsnotify.Create})

	if len(h.renames) != 1 || h.renames[0] != [2]string{"old.md", "new.md"} {
		t.Fatalf("expected a single correlated rename old.md -> new.md, got %v", h.renames)
	}
	if len(h.upserts) != 0 {
		t.Fatalf("expected no separate upsert for a correlated rename, got %v", h.upserts)
	}
}

func TestHandleEventRenameWithoutFollowingCreateStaysUnresolved(t *testing.T) {
	h := &recordingHandler{}
	c := &Coalescer{
		vault:   "/vault",
		handler: h,
		log:     slog.Default(),
		pending: map[string]struct{}{"old.md": {}},
	}

	c.handleEvent(fsnotify.Event{Name: "/vault/old.md", Op: fsnotify.Rename})

	if len(c.pending) != 0 {
		t.Fatalf("expected the renamed-away path removed from pending, got %v", c.pending)
	}
	if len(h.renames) != 0 || len(h.upserts) != 0 {
		t.Fatalf("expected no dispatch until a paired create arrives, got renames=%v upserts=%v", h.renames, h.upserts)
	}
}

func TestHandleEventCreateUnrelatedToAPriorRenameIsTreatedAsAdd(t *testing.T) {
	h := &recordingHandler{}
	c := &Coalescer{
		vault:   "/vault",
		handler: h,
		log:     slog.Default(),
		pending: make(map[string]struct{}),
	}

	c.handleEvent(fsnotify.Event{Name: "/vault/new.md", Op: fsnotify.Create})

	if len(h.renames) != 0 {
		t.Fatalf("expected no rename dispatched without a preceding rename event, got %v", h.renames)
	}
	if _, ok := c.pending["new.md"]; !ok {
		t.Fatalf("expected new.md queued as a pending add, got %v", c.pending)
	}
	c.timer.Stop()
}

func TestRelevantIgnoresNonMarkdownAndOutOfVaultPaths(t *testing.T) {
	c := &Coalescer{vault: "/vault"}

	if _, ok := c.relevant(fsnotify.Event{Name: "/vault/notes.txt", Op: fsnotify.Write}); ok {
		t.Fatalf("expected non-markdown file to be ignored")
	}
	if _, ok := c.relevant(fsnotify.Event{Name: "/elsewhere/note.md", Op: fsnotify.Write}); ok {
		t.Fatalf("expected path outside the vault to be ignored")
	}
	rel, ok := c.relevant(fsnotify.Event{Name: "/vault/sub/note.md", Op: fsnotify.Write})
	if !ok || rel != "sub/note.md" {
		t.Fatalf("expected relevant markdown path 'sub/note.md', got %q ok=%v", rel, ok)
	}
}
