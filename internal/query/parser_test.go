package query

import (
	"testing"

	"github.com/Paintersrp/annex/internal/config"
)

func settings() config.Settings {
	return config.Default()
}

func TestParseScenarioOneFromSpec(t *testing.T) {
	p := Parse(`tag:work "exact phrase" -exclude /pat/i @ test`, settings())

	if p.Mode != ModeFiles {
		t.Fatalf("expected files mode, got %v", p.Mode)
	}
	if len(p.Terms) != 1 || p.Terms[0] != "test" {
		t.Fatalf("expected terms=[test], got %v", p.Terms)
	}
	if len(p.Phrases) != 1 || p.Phrases[0] != "exact phrase" {
		t.Fatalf("expected phrases=[exact phrase], got %v", p.Phrases)
	}
	if len(p.Excludes) != 1 || p.Excludes[0] != "exclude" {
		t.Fatalf("expected excludes=[exclude], got %v", p.Excludes)
	}
	if len(p.Filters.Tag) != 1 || p.Filters.Tag[0] != "work" {
		t.Fatalf("expected filters.tag=[work], got %v", p.Filters.Tag)
	}
	if p.Filters.Field != FieldSymbols {
		t.Fatalf("expected field restriction symbols, got %v", p.Filters.Field)
	}
	if p.Regex == nil || p.Regex.Source != "pat" || p.Regex.Flags != "i" {
		t.Fatalf("expected regex pat/i, got %+v", p.Regex)
	}
	if len(p.OrGroups) != 0 {
		t.Fatalf("expected no or-groups, got %v", p.OrGroups)
	}
}

func TestParseCommandsMode(t *testing.T) {
	s := settings()
	p := Parse("> open settings", s)
	if p.Mode != ModeCommands {
		t.Fatalf("expected commands mode")
	}
	if len(p.Terms) != 1 || p.Terms[0] != "open settings" {
		t.Fatalf("expected single term 'open settings', got %v", p.Terms)
	}
}

func TestParseCommandsModeIgnoresOtherSyntax(t *testing.T) {
	p := Parse(`>tag:x "y" -z`, settings())
	if p.Mode != ModeCommands {
		t.Fatalf("expected commands mode")
	}
	if len(p.Terms) != 1 || p.Terms[0] != `tag:x "y" -z` {
		t.Fatalf("expected verbatim remainder as single term, got %v", p.Terms)
	}
	if len(p.Filters.Tag) != 0 {
		t.Fatalf("expected no filters parsed in commands mode")
	}
}

func TestParseOrGroup(t *testing.T) {
	p := Parse("meeting OR research", settings())
	if len(p.Terms) != 0 {
		t.Fatalf("expected no ordinary terms, got %v", p.Terms)
	}
	if len(p.OrGroups) != 1 || len(p.OrGroups[0].Terms) != 2 {
		t.Fatalf("expected single or-group of 2, got %v", p.OrGroups)
	}
	if p.OrGroups[0].Terms[0] != "meeting" || p.OrGroups[0].Terms[1] != "research" {
		t.Fatalf("unexpected or-group contents: %v", p.OrGroups[0].Terms)
	}
}

func TestParseLeadingTrailingAndConsecutiveOR(t *testing.T) {
	p := Parse("OR a OR OR b OR", settings())
	if len(p.OrGroups) != 1 || len(p.OrGroups[0].Terms) != 2 {
		t.Fatalf("expected a single 2-term or-group, got %v", p.OrGroups)
	}
}

func TestParseSingleOrGroupCollapses(t *testing.T) {
	p := Parse("alpha OR tag:x", settings())
	if len(p.OrGroups) != 0 {
		t.Fatalf("expected collapsed or-group, got %v", p.OrGroups)
	}
	if len(p.Terms) != 1 || p.Terms[0] != "alpha" {
		t.Fatalf("expected alpha restored as ordinary term, got %v", p.Terms)
	}
}

func TestParseInvalidRegexYieldsError(t *testing.T) {
	p, errs := ParseWithErrors("term /[/x", settings())
	if p.Regex != nil {
		t.Fatalf("expected no regex retained, got %+v", p.Regex)
	}
	// "/[/x" is read as pattern "[" with flag "x"; the flag is rejected, so a
	// regex error is reported and no regex is retained.
	if len(errs) != 1 || errs[0].Kind != RegexErrorKind {
		t.Fatalf("expected one regex error, got %v", errs)
	}
	if len(p.Terms) == 0 {
		t.Fatalf("expected residual terms still parsed")
	}
}

func TestParseInvalidRegexFlags(t *testing.T) {
	_, errs := ParseWithErrors("/abc/z", settings())
	if len(errs) != 1 || errs[0].Kind != RegexErrorKind {
		t.Fatalf("expected one regex error, got %v", errs)
	}
}

func TestParseDeterministic(t *testing.T) {
	raw := `tag:work "a phrase" -x y OR z /r/g`
	a := Parse(raw, settings())
	b := Parse(raw, settings())
	if a.Raw != b.Raw || len(a.Terms) != len(b.Terms) || len(a.OrGroups) != len(b.OrGroups) {
		t.Fatalf("expected deterministic parse, got %+v vs %+v", a, b)
	}
}

func TestParseMalformedQuoteLeftLiteral(t *testing.T) {
	p := Parse(`say "hello`, settings())
	if len(p.Phrases) != 0 {
		t.Fatalf("expected no phrases for unclosed quote, got %v", p.Phrases)
	}
	found := false
	for _, term := range p.Terms {
		if term == `"hello` {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected unclosed quote left as literal token, got %v", p.Terms)
	}
}
