// Package query turns a raw, user-typed search string into a structured
// query the index provider and scorer can evaluate. Parsing mirrors the
// teacher's command-router style (github.com/Paintersrp/an's cobra
// commands): a single-pass, total function that never fails outright but
// instead returns a best-effort structure alongside non-fatal errors.
package query

// Mode selects how the raw string is interpreted.
type Mode string

const (
	ModeFiles    Mode = "files"
	ModeCommands Mode = "commands"
)

// FieldRestriction narrows fuzzy matching to a single field, set by a lone
// "#" (headings) or "@" (symbols) token.
type FieldRestriction string

const (
	FieldNone     FieldRestriction = ""
	FieldHeadings FieldRestriction = "headings"
	FieldSymbols  FieldRestriction = "symbols"
)

// Regex is the parsed /PATTERN/FLAGS clause, validated at parse time.
type Regex struct {
	Source string
	Flags  string
}

// Filters holds the non-fuzzy constraints extracted from the query.
type Filters struct {
	Tag   []string
	Path  []string
	In    []string
	Field FieldRestriction
}

// ErrorKind classifies a non-fatal parse error.
type ErrorKind string

const RegexErrorKind ErrorKind = "regex"

// ParseError is a non-fatal defect found while parsing; the rest of the
// query is still produced and evaluated.
type ParseError struct {
	Kind     ErrorKind
	Message  string
	Position int
}

// OrGroup is a disjunctive cluster of terms; groups are AND'd against each
// other and against the plain conjunctive terms.
type OrGroup struct {
	Terms []string
}

// Parsed is the structured result of parsing a raw query string.
type Parsed struct {
	Raw      string
	Mode     Mode
	Terms    []string
	Phrases  []string
	Excludes []string
	OrGroups []OrGroup
	Filters  Filters
	Regex    *Regex
}

// IsEmpty reports whether the query carries no positive constraint at all.
func (p Parsed) IsEmpty() bool {
	return len(p.Terms) == 0 && len(p.Phrases) == 0 && len(p.OrGroups) == 0 && p.Regex == nil
}
