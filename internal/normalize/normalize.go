// Package normalize implements the text folding and tokenization rules
// shared by the parser, scorer, and inverted index, so all three agree on
// what counts as "the same word".
package normalize

import (
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// diacriticStripper decomposes to NFD and drops combining marks, then
// recomposes to NFC. It is safe for concurrent use, per x/text/transform.
var diacriticStripper = transform.Chain(
	norm.NFD,
	runes.Remove(runes.In(unicode.Mn)),
	norm.NFC,
)

// Normalize lowercases s and, unless preserveDiacritics is set, folds
// diacritics by stripping Unicode combining marks. It never raises and is
// idempotent: Normalize(Normalize(s), p) == Normalize(s, p).
func Normalize(s string, preserveDiacritics bool) string {
	lowered := toLower(s)
	if preserveDiacritics {
		return lowered
	}

	folded, _, err := transform.String(diacriticStripper, lowered)
	if err != nil {
		return lowered
	}
	return folded
}

func toLower(s string) string {
	runesOut := make([]rune, 0, len(s))
	for _, r := range s {
		runesOut = append(runesOut, unicode.ToLower(r))
	}
	return string(runesOut)
}

// Tokenize normalizes s and splits it into maximal runs of Unicode letters
// and numbers, in document order. It may return an empty slice but never
// nil-panics on malformed input.
func Tokenize(s string, preserveDiacritics bool) []string {
	normalized := Normalize(s, preserveDiacritics)

	spans := Spans(normalized)
	tokens := make([]string, len(spans))
	for i, sp := range spans {
		tokens[i] = sp.Text
	}
	return tokens
}

// Span is a letter-or-number run found in a string, with half-open
// rune-offset bounds into that same string.
type Span struct {
	Text  string
	Start int
	End   int
}

// Spans splits s into maximal runs of Unicode letters and numbers without
// normalizing it first, so callers can locate match positions in
// un-normalized source text (§4.4's match-span requirement) while still
// normalizing each run's text independently for comparison.
func Spans(s string) []Span {
	spans := make([]Span, 0)

	runeIdx := 0
	start := -1
	var current []rune
	flush := func(end int) {
		if len(current) > 0 {
			spans = append(spans, Span{Text: string(current), Start: start, End: end})
			current = current[:0]
			start = -1
		}
	}

	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsNumber(r) {
			if start == -1 {
				start = runeIdx
			}
			current = append(current, r)
		} else {
			flush(runeIdx)
		}
		runeIdx++
	}
	flush(runeIdx)

	return spans
}
