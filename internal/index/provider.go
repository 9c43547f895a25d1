// Package index implements the inverted index / search provider described
// in §4.5: postings storage, candidate gathering over parsed queries,
// scoring via internal/score, regex post-filtering, and both a synchronous
// and a streaming query entry point. It is grounded on the shape of the
// teacher's internal/search.Index (a struct owning postings-like state with
// Build/Update/Remove/Search methods) but the storage model and query
// resolution algorithm are rebuilt to match an actual term->postings
// inverted index rather than a frontmatter-query scan.
package index

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/Paintersrp/annex/internal/config"
	"github.com/Paintersrp/annex/internal/doc"
	"github.com/Paintersrp/annex/internal/normalize"
	"github.com/Paintersrp/annex/internal/query"
	"github.com/Paintersrp/annex/internal/rankheap"
	"github.com/Paintersrp/annex/internal/score"
)

// ErrCapacity is returned by Upsert when adding a new document would exceed
// the configured document cap.
var ErrCapacity = errors.New("index: max_docs exceeded")

// ErrCancelled is returned by Query/QueryStream when the caller's context
// was done before the query finished.
var ErrCancelled = errors.New("index: query cancelled")

// posting is one (doc, field) occurrence record for a term.
type posting struct {
	docID     string
	field     doc.Field
	termFreq  int
	positions []int
}

// docEntry is the per-document metadata the provider owns: the record
// itself, plus the set of terms it contributed to postings (so Remove only
// has to touch the posting lists it actually appears in).
type docEntry struct {
	document doc.Document
	terms    map[string]struct{}
}

// Provider is the canonical search provider of §4.5. It assumes the
// single-threaded cooperative scheduling model of §5: callers must not
// invoke Upsert/Remove/Clear/Query concurrently with each other.
type Provider struct {
	postings map[string][]posting
	docs     map[string]*docEntry
	df       map[string]int
	total    int

	cfg   Config
	score score.Config
	log   *slog.Logger
}

// Config bounds and tunes a Provider, sourced from config.Settings.
type Config struct {
	MaxDocs            int
	MaxBodyBytes       int
	RegexCandidateK    int
	PreserveDiacritics bool
}

// FromSettings builds an index Config from loaded application settings.
func FromSettings(s config.Settings) Config {
	return Config{
		MaxDocs:            s.Indexer.MaxDocs,
		MaxBodyBytes:       s.Indexer.MaxBodyBytes,
		RegexCandidateK:    s.Search.RegexCandidateK,
		PreserveDiacritics: s.Search.PreserveDiacritics,
	}
}

// New constructs an empty Provider.
func New(cfg Config, scoreCfg score.Config, log *slog.Logger) *Provider {
	if log == nil {
		log = slog.Default()
	}
	return &Provider{
		postings: make(map[string][]posting),
		docs:     make(map[string]*docEntry),
		df:       make(map[string]int),
		cfg:      cfg,
		score:    scoreCfg,
		log:      log,
	}
}

// TotalDocs returns the number of currently indexed documents.
func (p *Provider) TotalDocs() int { return p.total }

// IndexAll clears the provider and upserts every document in docs.
func (p *Provider) IndexAll(docs []doc.Document) error {
	p.Clear()
	for i := range docs {
		if err := p.Upsert(docs[i]); err != nil {
			return fmt.Errorf("index_all: %s: %w", docs[i].ID, err)
		}
	}
	return nil
}

// Upsert replaces the document at d.ID, or inserts it if absent. It enforces
// max_docs and truncates the body to max_body_bytes before tokenizing.
func (p *Provider) Upsert(d doc.Document) error {
	_, exists := p.docs[d.ID]
	if !exists && p.cfg.MaxDocs > 0 && p.total >= p.cfg.MaxDocs {
		return ErrCapacity
	}

	if exists {
		p.Remove(d.ID)
	}

	if p.cfg.MaxBodyBytes > 0 && len(d.Body) > p.cfg.MaxBodyBytes {
		d.Body = truncateUTF8(d.Body, p.cfg.MaxBodyBytes)
	}

	entry := &docEntry{document: d, terms: make(map[string]struct{})}

	for _, f := range doc.Fields {
		text := d.FlatField(f)
		tokens := normalize.Tokenize(text, p.cfg.PreserveDiacritics)
		if len(tokens) == 0 {
			continue
		}

		positions := make(map[string][]int)
		for i, tok := range tokens {
			positions[tok] = append(positions[tok], i)
		}

		for term, pos := range positions {
			p.postings[term] = append(p.postings[term], posting{
				docID:     d.ID,
				field:     f,
				termFreq:  len(pos),
				positions: pos,
			})
			p.df[term]++
			entry.terms[term] = struct{}{}
		}
	}

	p.docs[d.ID] = entry
	p.total++
	p.log.Debug("index: upserted document", "id", d.ID, "terms", len(entry.terms))
	return nil
}

// Remove deletes the document at id, if present, scanning only the posting
// lists it actually contributed to.
func (p *Provider) Remove(id string) {
	entry, ok := p.docs[id]
	if !ok {
		return
	}

	for term := range entry.terms {
		list := p.postings[term]
		kept := list[:0]
		removed := 0
		for _, e := range list {
			if e.docID == id {
				removed++
				continue
			}
			kept = append(kept, e)
		}
		if len(kept) == 0 {
			delete(p.postings, term)
			delete(p.df, term)
		} else {
			p.postings[term] = kept
			p.df[term] -= removed
		}
	}

	delete(p.docs, id)
	p.total--
}

// Clear resets the provider to its zero state.
func (p *Provider) Clear() {
	p.postings = make(map[string][]posting)
	p.docs = make(map[string]*docEntry)
	p.df = make(map[string]int)
	p.total = 0
}

// truncateUTF8 truncates s to at most n bytes without splitting a
// multi-byte rune in the middle.
func truncateUTF8(s string, n int) string {
	if n >= len(s) {
		return s
	}
	for n > 0 && !isRuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}

func nowMillis() int64 {
	return time.Now().UnixMilli()
}

// Result is one scored document returned by Query/QueryStream.
type Result struct {
	ID    string
	Score float64
	Spans []doc.MatchSpan
}

// Options configures a single query invocation.
type Options struct {
	Limit  int
	Cancel context.Context
}

func (o Options) cancel() context.Context {
	if o.Cancel == nil {
		return context.Background()
	}
	return o.Cancel
}

// Query resolves a parsed query to its top-Limit results, per §4.5.
func (p *Provider) Query(q query.Parsed, opts Options) ([]Result, error) {
	limit := opts.Limit
	ctx := opts.cancel()

	if isTrulyEmpty(q) {
		return p.mostRecent(limit), nil
	}

	candidates, err := p.gatherCandidates(q)
	if err != nil {
		return nil, err
	}

	heapCap := limit
	if q.Regex != nil && p.cfg.RegexCandidateK > heapCap {
		heapCap = p.cfg.RegexCandidateK
	}
	h := rankheap.New(heapCap, lessResult)

	scored := 0
	for id := range candidates {
		if err := ctx.Err(); err != nil {
			return nil, ErrCancelled
		}
		res, ok := p.scoreCandidate(id, q)
		if !ok {
			continue
		}
		h.Push(res)
		scored++
	}
	p.log.Debug("index: query scored candidates", "candidates", len(candidates), "scored", scored)

	results := descending(h.ExtractAll())

	if q.Regex != nil {
		results, err = p.applyRegexFilter(results, *q.Regex)
		if err != nil {
			return nil, err
		}
	}

	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// StreamHandler receives progressive batches of results during a streaming
// query. Batches are in descending score order within themselves but are
// not globally monotonic across calls (§5).
type StreamHandler func(batch []Result)

// QueryStream resolves q like Query but emits partial result batches as
// candidates are scored, per §4.5's streaming mode. Every id in the
// returned final result is emitted exactly once. Partial batches are taken
// from the heap before scoring finishes and before the regex post-filter,
// so they can also contain ids that are not in the final result.
func (p *Provider) QueryStream(q query.Parsed, opts Options, emit StreamHandler) ([]Result, error) {
	limit := opts.Limit
	ctx := opts.cancel()

	if isTrulyEmpty(q) {
		results := p.mostRecent(limit)
		if len(results) > 0 {
			emit(results)
		}
		return results, nil
	}

	candidates, err := p.gatherCandidates(q)
	if err != nil {
		return nil, err
	}

	heapCap := limit
	if q.Regex != nil && p.cfg.RegexCandidateK > heapCap {
		heapCap = p.cfg.RegexCandidateK
	}
	h := rankheap.New(heapCap, lessResult)
	yielded := make(map[string]struct{})
	batchSize := limit / 2
	if batchSize > 5 || batchSize == 0 {
		batchSize = 5
	}

	processed := 0
	for id := range candidates {
		if err := ctx.Err(); err != nil {
			return nil, ErrCancelled
		}
		res, ok := p.scoreCandidate(id, q)
		if ok {
			h.Push(res)
		}
		processed++

		if processed%100 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, ErrCancelled
			}
			emitFresh(h, yielded, batchSize, emit)
		}
	}

	final := descending(h.ExtractAll())
	if q.Regex != nil {
		final, err = p.applyRegexFilter(final, *q.Regex)
		if err != nil {
			return nil, err
		}
	}
	if limit > 0 && len(final) > limit {
		final = final[:limit]
	}

	remaining := make([]Result, 0, len(final))
	for _, r := range final {
		if _, done := yielded[r.ID]; !done {
			remaining = append(remaining, r)
			yielded[r.ID] = struct{}{}
		}
	}
	if len(remaining) > 0 {
		emit(remaining)
	}

	return final, nil
}

// emitFresh peeks the heap's current contents, descending, and emits up to
// batchSize ids not already yielded.
func emitFresh(h *rankheap.Bounded[Result], yielded map[string]struct{}, batchSize int, emit StreamHandler) {
	snapshot := descending(h.Snapshot())
	batch := make([]Result, 0, batchSize)
	for _, r := range snapshot {
		if _, done := yielded[r.ID]; done {
			continue
		}
		batch = append(batch, r)
		yielded[r.ID] = struct{}{}
		if len(batch) == batchSize {
			break
		}
	}
	if len(batch) > 0 {
		emit(batch)
	}
}

func lessResult(a, b Result) bool {
	if a.Score != b.Score {
		return a.Score < b.Score
	}
	// Break ties deterministically so repeated queries over the same
	// corpus and capacity-bounded heap produce a stable order.
	return a.ID > b.ID
}

func descending(results []Result) []Result {
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ID < results[j].ID
	})
	return results
}

func (p *Provider) scoreCandidate(id string, q query.Parsed) (Result, bool) {
	entry, ok := p.docs[id]
	if !ok {
		return Result{}, false
	}
	if !matchesFilters(&entry.document, q.Filters) {
		return Result{}, false
	}

	res, ok := score.Score(&entry.document, q, p.score, nowMillis())
	if !ok {
		return Result{}, false
	}
	return Result{ID: id, Score: res.Score, Spans: res.Spans}, true
}

// isTrulyEmpty reports whether q carries no constraint whatsoever: not only
// no positive terms/phrases/groups/regex, but no excludes or filters
// either. A query of only excludes or only filters is handled by candidate
// gathering instead (§8 boundary behaviors).
func isTrulyEmpty(q query.Parsed) bool {
	return q.IsEmpty() &&
		len(q.Excludes) == 0 &&
		len(q.Filters.Tag) == 0 &&
		len(q.Filters.Path) == 0 &&
		len(q.Filters.In) == 0
}

func (p *Provider) mostRecent(limit int) []Result {
	type ranked struct {
		id    string
		mtime int64
	}
	all := make([]ranked, 0, len(p.docs))
	for id, e := range p.docs {
		all = append(all, ranked{id: id, mtime: e.document.MTime})
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].mtime != all[j].mtime {
			return all[i].mtime > all[j].mtime
		}
		return all[i].id < all[j].id
	})
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}

	n := len(all)
	out := make([]Result, n)
	for i, r := range all {
		out[i] = Result{ID: r.id, Score: float64(n - i)}
	}
	return out
}

// gatherCandidates implements §4.5 step 2: union within each or-group,
// intersect every group (or-group or singleton term) together.
func (p *Provider) gatherCandidates(q query.Parsed) (map[string]struct{}, error) {
	var groups []map[string]struct{}

	for _, term := range q.Terms {
		groups = append(groups, p.idsForTerm(term))
	}
	for _, g := range q.OrGroups {
		union := make(map[string]struct{})
		for _, term := range g.Terms {
			for id := range p.idsForTerm(term) {
				union[id] = struct{}{}
			}
		}
		groups = append(groups, union)
	}

	if len(groups) == 0 {
		if len(q.Phrases) > 0 || hasFilters(q.Filters) {
			return p.allIDs(), nil
		}
		return map[string]struct{}{}, nil
	}

	result := groups[0]
	for _, g := range groups[1:] {
		result = intersect(result, g)
	}
	return result, nil
}

func hasFilters(f query.Filters) bool {
	return len(f.Tag) > 0 || len(f.Path) > 0 || len(f.In) > 0 || f.Field != query.FieldNone
}

func (p *Provider) idsForTerm(term string) map[string]struct{} {
	normTerm := normalize.Normalize(term, p.cfg.PreserveDiacritics)
	set := make(map[string]struct{})
	for _, entry := range p.postings[normTerm] {
		set[entry.docID] = struct{}{}
	}
	return set
}

func (p *Provider) allIDs() map[string]struct{} {
	set := make(map[string]struct{}, len(p.docs))
	for id := range p.docs {
		set[id] = struct{}{}
	}
	return set
}

func intersect(a, b map[string]struct{}) map[string]struct{} {
	small, large := a, b
	if len(b) < len(a) {
		small, large = b, a
	}
	out := make(map[string]struct{})
	for id := range small {
		if _, ok := large[id]; ok {
			out[id] = struct{}{}
		}
	}
	return out
}

// matchesFilters applies the hard tag/path/in constraints from §3's
// "filters" field. filters.field is a scoring restriction, not a candidate
// gate, and is handled entirely inside the scorer.
func matchesFilters(d *doc.Document, f query.Filters) bool {
	for _, tag := range f.Tag {
		if !containsFold(d.Tags, tag) {
			return false
		}
	}
	for _, pathTerm := range f.Path {
		if !strings.Contains(strings.ToLower(strings.Join(d.Path, "/")), strings.ToLower(pathTerm)) {
			return false
		}
	}
	for _, in := range f.In {
		if !containsFold(d.Path, in) {
			return false
		}
	}
	return true
}

func containsFold(items []string, target string) bool {
	for _, it := range items {
		if strings.EqualFold(it, target) {
			return true
		}
	}
	return false
}

func (p *Provider) applyRegexFilter(results []Result, r query.Regex) ([]Result, error) {
	re, err := query.Compile(r)
	if err != nil {
		// A clause that parsed as valid but fails to compile here (should
		// not normally happen, since the parser already validated it) is
		// treated like "regex absent" per §7's error policy.
		p.log.Warn("index: regex post-filter compile failed", "error", err)
		return results, nil
	}

	out := make([]Result, 0, len(results))
	for _, res := range results {
		// FindAllStringIndex returns byte offsets; regex spans are reported in
		// byte units while field-match spans from the scorer are rune
		// units, since the two are produced by different matchers over
		// different representations of the same text.
		entry, ok := p.docs[res.ID]
		if !ok {
			continue
		}
		matched := false
		for _, loc := range re.FindAllStringIndex(entry.document.Title, -1) {
			res.Spans = append(res.Spans, doc.MatchSpan{Field: doc.FieldTitle, Start: loc[0], End: loc[1]})
			matched = true
		}
		for _, loc := range re.FindAllStringIndex(entry.document.Body, -1) {
			res.Spans = append(res.Spans, doc.MatchSpan{Field: doc.FieldBody, Start: loc[0], End: loc[1]})
			matched = true
		}
		if matched {
			out = append(out, res)
		}
	}
	return out, nil
}
