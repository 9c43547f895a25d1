// Package vault implements the host-facing side of §4.6 and §6: the
// source-document producer interface the core consumes, a filesystem-backed
// implementation of it, and the Vault Indexer that turns source files into
// doc.Document records and drives the two-phase cold-corpus index.
//
// Document extraction (reading frontmatter, headings, links) mirrors the
// teacher's main.go goldmark walk, generalized from a one-off task-list
// scanner into a reusable metadata extractor.
package vault

import "io"

// FileInfo is the stable identity and filesystem metadata for one source
// file, as the host would report it.
type FileInfo struct {
	Path         string // stable id: path relative to the vault root
	Basename     string
	ParentFolder string
	MTime        int64
	Size         int64
}

// Heading is one markdown heading, level 1-6.
type Heading struct {
	Level int
	Text  string
}

// Metadata is the host's already-cached parse of a file: frontmatter tags,
// inline tags, headings, and outbound links. §1 places the extraction pass
// itself out of scope; the core only consumes its output.
type Metadata struct {
	Tags     []string
	Headings []Heading
	Links    []string
}

// SourceFile is one file a Source enumerates.
type SourceFile interface {
	Info() FileInfo
	Metadata() (Metadata, error)
	Content() (io.ReadCloser, error)
}

// Source enumerates the files that make up a vault. fn is called once per
// file; returning an error from fn stops the walk.
type Source interface {
	Walk(fn func(SourceFile) error) error
}

// RandomAccessSource is a Source that can also resolve a single
// already-known vault-relative path without a full walk, which the event
// coalescer needs when reacting to one changed path at a time.
type RandomAccessSource interface {
	Source
	FileAt(relPath string) SourceFile
}
