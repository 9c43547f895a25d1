package query

import (
	"regexp"
	"strings"

	"github.com/Paintersrp/annex/internal/cache"
	"github.com/Paintersrp/annex/internal/config"
)

var phraseRe = regexp.MustCompile(`"([^"]+)"`)
var regexCandidateRe = regexp.MustCompile(`/(?:[^/\\]|\\.)+/[a-zA-Z]*`)

const validRegexFlags = "igmsuy"

// regexCache memoizes compiled regular expressions across queries keyed by
// the raw pattern+flags, since the same search term is often re-issued as
// the user keeps typing.
var regexCache = cache.New[string, *regexp.Regexp](256)

// Parse transforms raw into a structured query, discarding non-fatal
// errors. Use ParseWithErrors to retrieve them.
func Parse(raw string, settings config.Settings) Parsed {
	parsed, _ := ParseWithErrors(raw, settings)
	return parsed
}

// ParseWithErrors transforms raw into a structured query and a parallel
// list of non-fatal errors encountered along the way (§4.2). Parsing is
// single-pass and total: it never fails outright.
func ParseWithErrors(raw string, settings config.Settings) (Parsed, []ParseError) {
	p := Parsed{Raw: raw, Mode: ModeFiles}
	var errs []ParseError

	trimmed := strings.TrimSpace(raw)

	if settings.Commands.EnablePrefix && settings.Commands.PrefixChar != "" &&
		strings.HasPrefix(trimmed, settings.Commands.PrefixChar) {
		p.Mode = ModeCommands
		remainder := strings.TrimSpace(strings.TrimPrefix(trimmed, settings.Commands.PrefixChar))
		if remainder != "" {
			p.Terms = []string{remainder}
		}
		return p, errs
	}

	residual := trimmed

	residual, phrases := extractPhrases(residual)
	p.Phrases = phrases

	residual, rx, rxErr := extractRegex(residual)
	p.Regex = rx
	if rxErr != nil {
		errs = append(errs, *rxErr)
	}

	tokens := strings.Fields(residual)
	classifyAndResolve(&p, tokens)

	return p, errs
}

func extractPhrases(residual string) (string, []string) {
	matches := phraseRe.FindAllStringSubmatchIndex(residual, -1)
	if len(matches) == 0 {
		return residual, nil
	}

	phrases := make([]string, 0, len(matches))
	var b strings.Builder
	last := 0
	for _, m := range matches {
		start, end := m[0], m[1]
		innerStart, innerEnd := m[2], m[3]
		phrases = append(phrases, residual[innerStart:innerEnd])
		b.WriteString(residual[last:start])
		b.WriteString(" ")
		last = end
	}
	b.WriteString(residual[last:])
	return b.String(), phrases
}

func extractRegex(residual string) (string, *Regex, *ParseError) {
	candidates := regexCandidateRe.FindAllStringIndex(residual, -1)
	if len(candidates) == 0 {
		return residual, nil, nil
	}

	for i, loc := range candidates {
		start, end := loc[0], loc[1]
		raw := residual[start:end]
		source, flags, ok := splitRegexLiteral(raw)
		if !ok {
			continue
		}

		if !validFlags(flags) {
			if i == 0 {
				return residual, nil, &ParseError{
					Kind:     RegexErrorKind,
					Message:  "invalid regex flags: " + flags,
					Position: start,
				}
			}
			continue
		}

		if _, err := compileRegex(source, flags); err != nil {
			if i == 0 {
				return residual, nil, &ParseError{
					Kind:     RegexErrorKind,
					Message:  "invalid regex pattern: " + err.Error(),
					Position: start,
				}
			}
			continue
		}

		cleaned := residual[:start] + " " + residual[end:]
		return cleaned, &Regex{Source: source, Flags: flags}, nil
	}

	return residual, nil, nil
}

// splitRegexLiteral splits "/PATTERN/FLAGS" into PATTERN and FLAGS.
func splitRegexLiteral(literal string) (source, flags string, ok bool) {
	if len(literal) < 2 || literal[0] != '/' {
		return "", "", false
	}
	closing := strings.LastIndex(literal, "/")
	if closing <= 0 {
		return "", "", false
	}
	source = literal[1:closing]
	flags = literal[closing+1:]
	if source == "" {
		return "", "", false
	}
	return source, flags, true
}

func validFlags(flags string) bool {
	seen := make(map[rune]bool, len(flags))
	for _, r := range flags {
		if !strings.ContainsRune(validRegexFlags, r) {
			return false
		}
		if seen[r] {
			return false
		}
		seen[r] = true
	}
	return true
}

// compileRegex validates source+flags by translating the subset of flags Go's
// regexp engine understands (i, m, s) into an inline group and compiling.
// The 'g' (global), 'u' (unicode) and 'y' (sticky) flags are accepted for
// validation purposes but have no Go equivalent; global is forced on by the
// provider at match time regardless (§4.5 step 4).
func compileRegex(source, flags string) (*regexp.Regexp, error) {
	key := flags + "\x00" + source
	if cached, ok := regexCache.Get(key); ok {
		return cached, nil
	}

	var inline strings.Builder
	for _, f := range flags {
		switch f {
		case 'i', 'm', 's':
			inline.WriteRune(f)
		}
	}

	pattern := source
	if inline.Len() > 0 {
		pattern = "(?" + inline.String() + ")" + source
	}

	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}

	regexCache.Put(key, re)
	return re, nil
}

// Compile exposes the same validated compilation used during parsing so the
// provider can recompile a retained regex clause without re-parsing.
func Compile(r Regex) (*regexp.Regexp, error) {
	return compileRegex(r.Source, r.Flags)
}

type tokenKind int

const (
	kindOrdinary tokenKind = iota
	kindOR
	kindBoundary
)

func classifyAndResolve(p *Parsed, tokens []string) {
	var terms []string
	var groups []OrGroup

	building := false
	var group OrGroup
	lastWasOrdinary := false

	finalize := func() {
		if !building {
			return
		}
		if len(group.Terms) >= 2 {
			groups = append(groups, group)
		} else if len(group.Terms) == 1 {
			terms = append(terms, group.Terms[0])
		}
		group = OrGroup{}
		building = false
	}

	for _, tok := range tokens {
		kind, ordinaryTerm := classifyToken(p, tok)

		switch kind {
		case kindOR:
			if !building {
				if lastWasOrdinary && len(terms) > 0 {
					last := terms[len(terms)-1]
					terms = terms[:len(terms)-1]
					group = OrGroup{Terms: []string{last}}
					building = true
				}
				// leading OR, or OR following a non-term: ignored
			}
			// consecutive OR while already building: ignored
			lastWasOrdinary = false
		case kindOrdinary:
			if building {
				group.Terms = append(group.Terms, ordinaryTerm)
			} else {
				terms = append(terms, ordinaryTerm)
			}
			lastWasOrdinary = true
		case kindBoundary:
			finalize()
			lastWasOrdinary = false
		}
	}
	finalize()

	p.Terms = terms
	p.OrGroups = groups
}

// classifyToken applies side effects for filter/exclude/field-restriction
// tokens directly onto p.Filters/p.Excludes, and reports whether the token
// is an ordinary fuzzy term, the OR marker, or a boundary.
func classifyToken(p *Parsed, tok string) (tokenKind, string) {
	switch tok {
	case "#":
		p.Filters.Field = FieldHeadings
		return kindBoundary, ""
	case "@":
		p.Filters.Field = FieldSymbols
		return kindBoundary, ""
	}

	if strings.EqualFold(tok, "or") {
		return kindOR, ""
	}

	if strings.HasPrefix(tok, "#") && len(tok) > 1 {
		p.Filters.Tag = append(p.Filters.Tag, tok[1:])
		return kindBoundary, ""
	}

	if v, ok := cutPrefix(tok, "tag:"); ok && v != "" {
		p.Filters.Tag = append(p.Filters.Tag, v)
		return kindBoundary, ""
	}

	if v, ok := cutPrefix(tok, "path:"); ok && v != "" {
		p.Filters.Path = append(p.Filters.Path, v)
		return kindBoundary, ""
	}

	if v, ok := cutPrefix(tok, "in:"); ok && v != "" {
		p.Filters.In = append(p.Filters.In, v)
		return kindBoundary, ""
	}

	if strings.HasPrefix(tok, "-") && len(tok) > 1 {
		p.Excludes = append(p.Excludes, tok[1:])
		return kindBoundary, ""
	}

	return kindOrdinary, tok
}

func cutPrefix(s, prefix string) (string, bool) {
	if !strings.HasPrefix(s, prefix) {
		return "", false
	}
	return s[len(prefix):], true
}
