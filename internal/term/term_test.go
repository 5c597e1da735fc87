package term

import (
	"testing"
)

func TestToken_DistinctTermsGetDistinctTokens(t *testing.T) {
	terms := []Term{
		New("word", MatchMode{}),
		New("word", MatchMode{Case: true}),
		New("word", MatchMode{Stem: true}),
		New("Word", MatchMode{Case: true}),
		New("other", MatchMode{}),
	}
	seen := make(map[string]string)
	for _, tm := range terms {
		token := tm.Token()
		if prev, ok := seen[token]; ok {
			t.Errorf("token collision between %q and %q: %s", prev, tm.Phrase, token)
		}
		seen[token] = tm.Phrase
	}
}

func TestToken_StableAcrossCaseFolding(t *testing.T) {
	a := New("Hello", MatchMode{})
	b := New("hello", MatchMode{})
	if a.Token() != b.Token() {
		t.Errorf("expected case-insensitive terms to share a token, got %s and %s", a.Token(), b.Token())
	}
}

func TestEqual(t *testing.T) {
	if !New("Cat", MatchMode{}).Equal(New("cat", MatchMode{})) {
		t.Errorf("expected case-insensitive phrases equal")
	}
	if New("Cat", MatchMode{Case: true}).Equal(New("cat", MatchMode{Case: true})) {
		t.Errorf("expected case-sensitive phrases distinct")
	}
	if New("cat", MatchMode{}).Equal(New("cat", MatchMode{Whole: true})) {
		t.Errorf("expected different modes distinct")
	}
}

func TestDedup(t *testing.T) {
	terms := []Term{
		New("cat", MatchMode{}),
		New("Cat", MatchMode{}),
		New("dog", MatchMode{}),
		New("cat", MatchMode{Whole: true}),
	}
	out := Dedup(terms)
	if len(out) != 3 {
		t.Fatalf("expected 3 deduplicated terms, got %d", len(out))
	}
	if out[0].Phrase != "cat" || out[1].Phrase != "dog" {
		t.Errorf("expected first occurrences kept in order, got %v", out)
	}
}

func findStrings(t *testing.T, tm Term, text string) []string {
	t.Helper()
	p, err := tm.Compile()
	if err != nil {
		t.Fatalf("compile %q: %v", tm.Phrase, err)
	}
	var out []string
	for _, m := range p.FindAll(text) {
		out = append(out, text[m[0]:m[1]])
	}
	return out
}

func TestCompile_PlainLiteralIsCaseInsensitive(t *testing.T) {
	got := findStrings(t, New("cat", MatchMode{}), "Cat catalog CAT")
	if len(got) != 3 {
		t.Fatalf("expected 3 matches, got %v", got)
	}
}

func TestCompile_CaseSensitive(t *testing.T) {
	got := findStrings(t, New("Cat", MatchMode{Case: true}), "Cat cat CAT")
	if len(got) != 1 || got[0] != "Cat" {
		t.Fatalf("expected exactly [Cat], got %v", got)
	}
}

func TestCompile_WholeWordExcludesSubstrings(t *testing.T) {
	tm := New("art", MatchMode{Whole: true})
	got := findStrings(t, tm, "pop art is not part of artful prose; art.")
	if len(got) != 2 {
		t.Fatalf("expected 2 whole-word matches, got %v", got)
	}
	for _, g := range got {
		if g != "art" {
			t.Errorf("expected only %q, got %q", "art", g)
		}
	}
}

func TestCompile_LiteralMetacharactersEscaped(t *testing.T) {
	got := findStrings(t, New("a.b", MatchMode{}), "a.b axb")
	if len(got) != 1 || got[0] != "a.b" {
		t.Fatalf("expected the dot treated literally, got %v", got)
	}
}

func TestCompile_RegexModePassesThrough(t *testing.T) {
	got := findStrings(t, New("ca+t", MatchMode{Regex: true}), "cat caaat ct")
	if len(got) != 2 {
		t.Fatalf("expected 2 regex matches, got %v", got)
	}
}

func TestCompile_InvalidRegexReturnsError(t *testing.T) {
	if _, err := New("[unclosed", MatchMode{Regex: true}).Compile(); err == nil {
		t.Fatalf("expected error for invalid regex")
	}
}

func TestCompile_StemMatchesInflections(t *testing.T) {
	tm := New("running", MatchMode{Stem: true})
	for _, text := range []string{"run", "runs", "running"} {
		got := findStrings(t, tm, text)
		if len(got) != 1 || got[0] != text {
			t.Errorf("expected stem to cover %q, got %v", text, got)
		}
	}
}

func TestCompile_StemCoversSuffixFamily(t *testing.T) {
	tm := New("cook", MatchMode{Stem: true})
	got := findStrings(t, tm, "cook cooks cooked cooking cooker")
	if len(got) != 5 {
		t.Fatalf("expected every inflection matched, got %v", got)
	}
}

func TestCompile_StemShortWordFallsBackToLiteral(t *testing.T) {
	tm := New("go", MatchMode{Stem: true})
	got := findStrings(t, tm, "go going")
	// stem too short to derive; plain literal still matches both prefixes
	if len(got) != 2 {
		t.Fatalf("expected literal fallback matches, got %v", got)
	}
}

func TestCompile_DiacriticFoldingMatchesVariants(t *testing.T) {
	tm := New("cafe", MatchMode{Diacritics: true})
	text := "a café and a cafe"
	p, err := tm.Compile()
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	matches := p.FindAll(text)
	if len(matches) != 2 {
		t.Fatalf("expected both spellings matched, got %d", len(matches))
	}
	// Offsets index the original text, so the accented form keeps its
	// true byte width.
	if got := text[matches[0][0]:matches[0][1]]; got != "café" {
		t.Errorf("expected first match %q, got %q", "café", got)
	}
}

func TestCompile_DiacriticsOffWantsExactRunes(t *testing.T) {
	got := findStrings(t, New("cafe", MatchMode{}), "café")
	if len(got) != 0 {
		t.Fatalf("expected no match without folding, got %v", got)
	}
}

func TestFindAll_SkipsZeroWidthMatches(t *testing.T) {
	p, err := New("a*", MatchMode{Regex: true}).Compile()
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	for _, m := range p.FindAll("bab") {
		if m[0] == m[1] {
			t.Errorf("expected zero-width matches dropped, got [%d,%d)", m[0], m[1])
		}
	}
}
