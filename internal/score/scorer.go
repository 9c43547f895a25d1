// Package score implements the per-document relevance scoring described in
// §4.4: fuzzy per-term field matching, a phrase-occurrence bonus, and an
// exponential recency bonus, combined into a single weighted total. It is
// grounded on the distributed-search pack's ranker.Rank in structure (a
// single pure function over a document and a parsed query) but the formula
// itself is particular to this spec rather than BM25.
package score

import (
	"math"
	"strings"

	"github.com/Paintersrp/annex/internal/config"
	"github.com/Paintersrp/annex/internal/doc"
	"github.com/Paintersrp/annex/internal/normalize"
	"github.com/Paintersrp/annex/internal/query"
)

// maxEditDistance bounds the fuzzy match: anything further apart than this
// many edits scores zero rather than being computed exactly.
const maxEditDistance = 2

// phraseBonusWeight is the flat per-occurrence bonus for a literal phrase
// hit in title or body (§4.4).
const phraseBonusWeight = 0.25

// Config carries the tunables a scorer run needs, sourced from the
// search section of config.Settings.
type Config struct {
	Weights             config.Weights
	RecencyHalfLifeDays float64
	PreserveDiacritics  bool
}

// FromSettings builds a Config from the loaded application settings.
func FromSettings(s config.Settings) Config {
	return Config{
		Weights:             s.Search.Weights,
		RecencyHalfLifeDays: s.Search.RecencyHalfLifeDays,
		PreserveDiacritics:  s.Search.PreserveDiacritics,
	}
}

// Result is the outcome of scoring one document against one query.
type Result struct {
	Score float64
	Spans []doc.MatchSpan
}

// Score evaluates d against q and reports whether d survives the exclude
// filter at all. A rejected document (ok == false) carries no meaningful
// Result and must not be placed in the result set.
func Score(d *doc.Document, q query.Parsed, cfg Config, nowMillis int64) (Result, bool) {
	if rejectedByExclude(d, q, cfg) {
		return Result{}, false
	}

	var total float64
	var spans []doc.MatchSpan

	for _, f := range doc.Fields {
		if q.Filters.Field != query.FieldNone && !restrictionMatches(q.Filters.Field, f) {
			continue
		}
		fieldScore, span := scoreField(d, f, q.Terms, cfg.PreserveDiacritics)
		if span != nil {
			spans = append(spans, *span)
		}
		total += weightFor(cfg.Weights, f) * fieldScore
	}

	total += phraseBonusWeight * float64(phraseOccurrences(d, q, cfg.PreserveDiacritics))
	total += cfg.Weights.Recency * recencyBonus(d.MTime, nowMillis, cfg.RecencyHalfLifeDays)

	return Result{Score: total, Spans: spans}, true
}

func restrictionMatches(r query.FieldRestriction, f doc.Field) bool {
	switch r {
	case query.FieldHeadings:
		return f == doc.FieldHeadings
	case query.FieldSymbols:
		return f == doc.FieldSymbols
	default:
		return true
	}
}

func weightFor(w config.Weights, f doc.Field) float64 {
	switch f {
	case doc.FieldTitle:
		return w.Title
	case doc.FieldHeadings:
		return w.Headings
	case doc.FieldPath:
		return w.Path
	case doc.FieldTags:
		return w.Tags
	case doc.FieldSymbols:
		return w.Symbols
	case doc.FieldBody:
		return w.Body
	default:
		return 0
	}
}

// scoreField averages the best per-token match for each query term over
// the field's tokens (0 when there are no terms at all), and reports the
// single best-matching span across all terms, if any matched at all.
func scoreField(d *doc.Document, f doc.Field, terms []string, preserveDiacritics bool) (float64, *doc.MatchSpan) {
	if len(terms) == 0 {
		return 0, nil
	}

	raw := d.FlatField(f)
	tokenSpans := normalize.Spans(raw)

	var sum float64
	var best float64
	var bestSpan *doc.MatchSpan

	for _, term := range terms {
		normTerm := []rune(normalize.Normalize(term, preserveDiacritics))
		termScore := 0.0
		var termSpan *doc.MatchSpan
		for _, sp := range tokenSpans {
			tokenNorm := normalize.Normalize(sp.Text, preserveDiacritics)
			s := tokenScore(normTerm, []rune(tokenNorm))
			if s > termScore {
				termScore = s
				span := doc.MatchSpan{Field: f, Start: sp.Start, End: sp.End}
				termSpan = &span
			}
		}
		sum += termScore
		if termScore > best {
			best = termScore
			bestSpan = termSpan
		}
	}

	return sum / float64(len(terms)), bestSpan
}

// tokenScore compares one normalized query term against one normalized
// field token: an exact prefix match scores 1.0, otherwise a capped
// Damerau-Levenshtein distance is converted to a similarity in [0, 1).
func tokenScore(term, token []rune) float64 {
	if len(term) == 0 || len(token) == 0 {
		return 0
	}
	if hasRunePrefix(token, term) {
		return 1.0
	}

	dist := damerauLevenshtein(term, token, maxEditDistance)
	if dist > maxEditDistance {
		return 0
	}

	longest := len(term)
	if len(token) > longest {
		longest = len(token)
	}
	s := 1 - float64(dist)/float64(longest)
	if s < 0 {
		return 0
	}
	return s
}

func hasRunePrefix(s, prefix []rune) bool {
	if len(prefix) > len(s) {
		return false
	}
	for i, r := range prefix {
		if s[i] != r {
			return false
		}
	}
	return true
}

// rejectedByExclude reports whether any exclude term occurs as a substring
// of the normalized concatenation of every searchable field.
func rejectedByExclude(d *doc.Document, q query.Parsed, cfg Config) bool {
	if len(q.Excludes) == 0 {
		return false
	}

	var b strings.Builder
	for i, f := range doc.Fields {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(normalize.Normalize(d.FlatField(f), cfg.PreserveDiacritics))
	}
	haystack := b.String()

	for _, ex := range q.Excludes {
		needle := normalize.Normalize(ex, cfg.PreserveDiacritics)
		if needle != "" && strings.Contains(haystack, needle) {
			return true
		}
	}
	return false
}

// phraseOccurrences counts literal, normalized occurrences of every query
// phrase across the concatenation of title and body.
func phraseOccurrences(d *doc.Document, q query.Parsed, preserveDiacritics bool) int {
	if len(q.Phrases) == 0 {
		return 0
	}

	haystack := normalize.Normalize(d.Title, preserveDiacritics) + " " + normalize.Normalize(d.Body, preserveDiacritics)

	count := 0
	for _, phrase := range q.Phrases {
		needle := normalize.Normalize(phrase, preserveDiacritics)
		if needle == "" {
			continue
		}
		count += strings.Count(haystack, needle)
	}
	return count
}

// recencyBonus implements the half-life decay from §4.4, clamped to
// [0, 0.5] so a future or malformed mtime can't exceed the formula's
// intended ceiling.
func recencyBonus(mtimeMillis, nowMillis int64, halfLifeDays float64) float64 {
	if halfLifeDays <= 0 {
		halfLifeDays = 1
	}
	ageDays := float64(nowMillis-mtimeMillis) / 86400000.0
	bonus := 0.5 * math.Pow(2, -ageDays/halfLifeDays)
	if bonus < 0 {
		return 0
	}
	if bonus > 0.5 {
		return 0.5
	}
	return bonus
}
