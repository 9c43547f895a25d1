package vault

import (
	"bytes"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
	"gopkg.in/yaml.v3"

	"github.com/Paintersrp/annex/internal/pathutil"
)

var (
	frontmatterRe = regexp.MustCompile(`(?s)^---\r?\n(.*?)\r?\n---\r?\n?`)
	inlineTagRe   = regexp.MustCompile(`#([\w][\w/-]*)`)
)

// FSSource is the filesystem-backed Source supplementing §6's
// host-supplied-producer interface with a concrete, runnable implementation.
// It walks a root directory, treats every ".md" file as a document, and
// skips any path under one of the configured excluded folder prefixes.
type FSSource struct {
	root           string
	excludeFolders []string
	md             goldmark.Markdown
}

// NewFSSource constructs a Source rooted at root, excluding any file whose
// vault-relative path starts with one of excludeFolders.
func NewFSSource(root string, excludeFolders []string) *FSSource {
	return &FSSource{
		root:           pathutil.NormalizePath(root),
		excludeFolders: excludeFolders,
		md:             goldmark.New(),
	}
}

// Walk implements Source.
func (s *FSSource) Walk(fn func(SourceFile) error) error {
	var paths []string
	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if s.excluded(path) && path != s.root {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.EqualFold(filepath.Ext(path), ".md") {
			return nil
		}
		if s.excluded(path) {
			return nil
		}
		paths = append(paths, path)
		return nil
	})
	if err != nil {
		return fmt.Errorf("vault: walk %s: %w", s.root, err)
	}
	sort.Strings(paths)

	for _, p := range paths {
		if err := fn(s.fileAt(p)); err != nil {
			return err
		}
	}
	return nil
}

func (s *FSSource) excluded(path string) bool {
	rel, err := pathutil.VaultRelative(s.root, path)
	if err != nil {
		return false
	}
	for _, prefix := range s.excludeFolders {
		if prefix != "" && strings.HasPrefix(rel, prefix) {
			return true
		}
	}
	return false
}

func (s *FSSource) fileAt(path string) *fsFile {
	return &fsFile{root: s.root, path: path, md: s.md}
}

// FileAt resolves a vault-relative path to a SourceFile without re-walking
// the tree, so callers that already know a path (the event coalescer, a
// rename target) can look it up directly.
func (s *FSSource) FileAt(relPath string) SourceFile {
	return s.fileAt(filepath.Join(s.root, filepath.FromSlash(relPath)))
}

type fsFile struct {
	root string
	path string
	md   goldmark.Markdown
}

func (f *fsFile) Info() FileInfo {
	info, err := os.Stat(f.path)
	var mtime, size int64
	if err == nil {
		mtime = info.ModTime().UnixMilli()
		size = info.Size()
	}

	rel, _ := pathutil.VaultRelative(f.root, f.path)
	parent, _ := filepath.Split(rel)
	parent = strings.TrimSuffix(parent, "/")

	return FileInfo{
		Path:         rel,
		Basename:     filepath.Base(f.path),
		ParentFolder: parent,
		MTime:        mtime,
		Size:         size,
	}
}

func (f *fsFile) Content() (io.ReadCloser, error) {
	return os.Open(f.path)
}

// Metadata reads the file once and extracts frontmatter tags, inline
// #tags, headings, and outbound links via a goldmark AST walk.
func (f *fsFile) Metadata() (Metadata, error) {
	raw, err := os.ReadFile(f.path)
	if err != nil {
		return Metadata{}, fmt.Errorf("vault: read %s: %w", f.path, err)
	}

	body := raw
	tags := frontmatterTags(raw)
	if loc := frontmatterRe.FindIndex(raw); loc != nil {
		body = raw[loc[1]:]
	}
	for _, m := range inlineTagRe.FindAllSubmatch(body, -1) {
		tags = append(tags, string(m[1]))
	}

	headings, links := parseMarkdown(f.md, body)

	return Metadata{Tags: dedupe(tags), Headings: headings, Links: links}, nil
}

func frontmatterTags(raw []byte) []string {
	loc := frontmatterRe.FindSubmatch(raw)
	if loc == nil {
		return nil
	}

	var fm struct {
		Tags interface{} `yaml:"tags"`
	}
	if err := yaml.Unmarshal(loc[1], &fm); err != nil {
		return nil
	}

	switch v := fm.Tags.(type) {
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			out = append(out, fmt.Sprintf("%v", item))
		}
		return out
	case string:
		return strings.Fields(v)
	default:
		return nil
	}
}

func parseMarkdown(md goldmark.Markdown, source []byte) ([]Heading, []string) {
	reader := text.NewReader(source)
	root := md.Parser().Parse(reader)

	var headings []Heading
	var links []string

	ast.Walk(root, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *ast.Heading:
			headings = append(headings, Heading{Level: node.Level, Text: headingText(node, source)})
		case *ast.Link:
			links = append(links, string(node.Destination))
		}
		return ast.WalkContinue, nil
	})

	return headings, links
}

func headingText(h *ast.Heading, source []byte) string {
	var b bytes.Buffer
	lines := h.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		b.Write(seg.Value(source))
	}
	return strings.TrimSpace(b.String())
}

func dedupe(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
