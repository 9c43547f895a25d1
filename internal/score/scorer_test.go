package score

import (
	"testing"

	"github.com/Paintersrp/annex/internal/config"
	"github.com/Paintersrp/annex/internal/doc"
	"github.com/Paintersrp/annex/internal/query"
)

func testConfig() Config {
	return FromSettings(config.Default())
}

func TestScoreRejectsOnExcludeSubstring(t *testing.T) {
	d := &doc.Document{ID: "d1", Title: "Project Plan", Body: "contains archive somewhere"}
	q := query.Parsed{Terms: []string{"project"}, Excludes: []string{"archive"}}

	_, ok := Score(d, q, testConfig(), 0)
	if ok {
		t.Fatalf("expected document to be rejected by exclude term")
	}
}

func TestScoreIsNonNegativeAndFinite(t *testing.T) {
	d := &doc.Document{ID: "d1", Title: "Quarterly Report", Body: "numbers and charts", MTime: 1000}
	q := query.Parsed{Terms: []string{"report"}}

	res, ok := Score(d, q, testConfig(), 1000)
	if !ok {
		t.Fatalf("expected document to be accepted")
	}
	if res.Score < 0 {
		t.Fatalf("expected non-negative score, got %f", res.Score)
	}
}

func TestScoreNoTermsYieldsZeroFieldContribution(t *testing.T) {
	d := &doc.Document{ID: "d1", Title: "Anything", MTime: 0}
	q := query.Parsed{}

	res, ok := Score(d, q, testConfig(), 0)
	if !ok {
		t.Fatalf("expected document to be accepted with no exclude terms")
	}
	// Only the recency bonus (weight 0.5, age 0 -> bonus 0.5) should
	// contribute when there are no terms and no phrases.
	want := testConfig().Weights.Recency * 0.5
	if diff := res.Score - want; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("expected score %f from recency alone, got %f", want, res.Score)
	}
}

func TestScorePrefersTitleOverBodyMatch(t *testing.T) {
	q := query.Parsed{Terms: []string{"meeting"}}
	cfg := testConfig()

	titleDoc := &doc.Document{ID: "t", Title: "Meeting Notes", MTime: 0}
	bodyDoc := &doc.Document{ID: "b", Title: "Unrelated", Body: "meeting notes inside", MTime: 0}

	titleRes, _ := Score(titleDoc, q, cfg, 0)
	bodyRes, _ := Score(bodyDoc, q, cfg, 0)

	if titleRes.Score <= bodyRes.Score {
		t.Fatalf("expected title match (%f) to outscore body match (%f)", titleRes.Score, bodyRes.Score)
	}
}

func TestScorePrefersRecentDocument(t *testing.T) {
	q := query.Parsed{Terms: []string{"note"}}
	cfg := testConfig()
	now := int64(30 * 86400000)

	recent := &doc.Document{ID: "r", Title: "Note", MTime: now}
	stale := &doc.Document{ID: "s", Title: "Note", MTime: 0}

	recentRes, _ := Score(recent, q, cfg, now)
	staleRes, _ := Score(stale, q, cfg, now)

	if recentRes.Score <= staleRes.Score {
		t.Fatalf("expected more recent document to score higher: recent=%f stale=%f", recentRes.Score, staleRes.Score)
	}
}

func TestScorePhraseBonusAddsScore(t *testing.T) {
	cfg := testConfig()
	withPhrase := &doc.Document{ID: "p", Title: "Report", Body: "the exact phrase appears here", MTime: 0}
	withoutPhrase := &doc.Document{ID: "n", Title: "Report", Body: "nothing matching appears here", MTime: 0}

	q := query.Parsed{Phrases: []string{"exact phrase"}}

	withRes, _ := Score(withPhrase, q, cfg, 0)
	withoutRes, _ := Score(withoutPhrase, q, cfg, 0)

	if withRes.Score <= withoutRes.Score {
		t.Fatalf("expected phrase bonus to raise score: with=%f without=%f", withRes.Score, withoutRes.Score)
	}
}

func TestScoreFieldRestrictionIgnoresOtherFields(t *testing.T) {
	cfg := testConfig()
	d := &doc.Document{ID: "d", Title: "meeting", Headings: []string{"unrelated"}, MTime: 0}
	q := query.Parsed{Terms: []string{"meeting"}, Filters: query.Filters{Field: query.FieldHeadings}}

	res, ok := Score(d, q, cfg, 0)
	if !ok {
		t.Fatalf("expected acceptance")
	}
	// Only the recency bonus survives: the title match is ignored because
	// the query restricts matching to the headings field, which has none.
	want := cfg.Weights.Recency * 0.5
	if diff := res.Score - want; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("expected recency-only score %f, got %f", want, res.Score)
	}
}

func TestDamerauLevenshteinCapsDistance(t *testing.T) {
	if got := damerauLevenshtein([]rune("abcdef"), []rune("zzzzzz"), 2); got <= 2 {
		t.Fatalf("expected distance to exceed cap, got %d", got)
	}
	if got := damerauLevenshtein([]rune("meeting"), []rune("meting"), 2); got != 1 {
		t.Fatalf("expected distance 1 for single deletion, got %d", got)
	}
	if got := damerauLevenshtein([]rune("ab"), []rune("ba"), 2); got != 1 {
		t.Fatalf("expected adjacent transposition distance 1, got %d", got)
	}
}
