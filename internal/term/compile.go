package term

import (
	"fmt"
	"regexp"
	"strings"
	"sync"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Pattern is a compiled term, usable for exhaustive non-overlapping
// leftmost matching against arbitrary text.
type Pattern struct {
	re *regexp.Regexp
}

// FindAll returns every non-overlapping [start, end) byte range of the
// pattern in text, leftmost-first.
func (p *Pattern) FindAll(text string) [][2]int {
	idx := p.re.FindAllStringIndex(text, -1)
	out := make([][2]int, 0, len(idx))
	for _, m := range idx {
		if m[0] == m[1] {
			continue // zero-width matches carry no highlightable text
		}
		out = append(out, [2]int{m[0], m[1]})
	}
	return out
}

// Compile builds the term's pattern. An invalid user-supplied regex is
// returned as an error; the caller treats such a term as matching
// nothing until it is corrected.
func (t Term) Compile() (*Pattern, error) {
	var body string
	if t.Mode.Regex {
		body = t.Phrase
	} else {
		body = literalPattern(t.Phrase, t.Mode)
	}
	if t.Mode.Whole {
		body = `\b(?:` + body + `)\b`
	}
	if !t.Mode.Case {
		body = `(?i)` + body
	}
	re, err := regexp.Compile(body)
	if err != nil {
		return nil, fmt.Errorf("term %q: %w", t.Phrase, err)
	}
	return &Pattern{re: re}, nil
}

// literalPattern escapes the phrase and applies the diacritics and
// stemming transforms.
func literalPattern(phrase string, mode MatchMode) string {
	if mode.Stem {
		return stemPattern(phrase, mode)
	}
	return expandPhrase(phrase, mode)
}

// expandPhrase escapes each rune, substituting a diacritic variant
// class when folding is requested. Folding rewrites the pattern rather
// than the subject text, so match offsets stay valid against the
// original string.
func expandPhrase(phrase string, mode MatchMode) string {
	var buf strings.Builder
	for _, r := range phrase {
		if mode.Diacritics {
			if class, ok := variantClass(r); ok {
				buf.WriteString(class)
				continue
			}
		}
		buf.WriteString(regexp.QuoteMeta(string(r)))
	}
	return buf.String()
}

// stemPattern derives a crude stem of the final word and appends an
// optional suffix alternation, so "cook" also matches "cooks",
// "cooked" and "cooking". This is a heuristic, not a linguistic
// stemmer; a miss degrades to a plain literal match.
func stemPattern(phrase string, mode MatchMode) string {
	words := strings.Fields(phrase)
	if len(words) == 0 {
		return expandPhrase(phrase, mode)
	}
	last := words[len(words)-1]
	stem := stripSuffix(strings.ToLower(last))
	if len(stem) < 3 {
		return expandPhrase(phrase, mode)
	}

	var buf strings.Builder
	for _, w := range words[:len(words)-1] {
		buf.WriteString(expandPhrase(w, mode))
		buf.WriteString(`\s+`)
	}
	buf.WriteString(expandPhrase(stem, mode))
	// Final-consonant doubling ("run" -> "running") and e-restoration
	// ("mak" -> "make") before the suffix family.
	tail := stem[len(stem)-1]
	if isConsonant(tail) {
		buf.WriteString("(?:")
		buf.WriteString(regexp.QuoteMeta(string(tail)))
		buf.WriteString(")?")
	}
	buf.WriteString(`(?:e|es|ed|er|est|ing|ly|s)?`)
	return buf.String()
}

var stemSuffixes = []string{"ing", "est", "ed", "er", "es", "ly", "e", "s"}

func stripSuffix(word string) string {
	for _, suf := range stemSuffixes {
		if strings.HasSuffix(word, suf) && len(word)-len(suf) >= 3 {
			word = word[:len(word)-len(suf)]
			// Collapse a doubled final consonant left by stripping
			// ("running" -> "runn" -> "run").
			if len(word) >= 2 && word[len(word)-1] == word[len(word)-2] && isConsonant(word[len(word)-1]) {
				word = word[:len(word)-1]
			}
			return word
		}
	}
	return word
}

func isConsonant(b byte) bool {
	switch b {
	case 'a', 'e', 'i', 'o', 'u':
		return false
	}
	return b >= 'a' && b <= 'z'
}

var (
	variantsOnce sync.Once
	variants     map[rune][]rune
)

// variantClass returns a character class matching every diacritic
// variant of the folded form of r, e.g. 'e' -> "[eèéêë...]".
func variantClass(r rune) (string, bool) {
	variantsOnce.Do(buildVariants)
	base := foldRune(r)
	set := variants[base]
	if len(set) == 0 {
		return "", false
	}
	var buf strings.Builder
	buf.WriteByte('[')
	buf.WriteRune(base)
	for _, v := range set {
		buf.WriteRune(v)
	}
	buf.WriteByte(']')
	return buf.String(), true
}

// buildVariants scans the Latin blocks once, grouping every
// decomposable character under its folded base.
func buildVariants() {
	variants = make(map[rune][]rune)
	ranges := [][2]rune{
		{0x00C0, 0x024F}, // Latin-1 Supplement through Latin Extended-B
		{0x1E00, 0x1EFF}, // Latin Extended Additional
	}
	for _, rg := range ranges {
		for r := rg[0]; r <= rg[1]; r++ {
			base := foldRune(r)
			if base != r && base != 0 {
				variants[base] = append(variants[base], r)
			}
		}
	}
}

var foldTransformer = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// foldRune strips combining marks from a single rune, returning its
// base character, or the rune itself when it does not decompose.
func foldRune(r rune) rune {
	folded, _, err := transform.String(foldTransformer, string(r))
	if err != nil || folded == "" {
		return r
	}
	out := []rune(folded)
	if len(out) != 1 {
		return r
	}
	return out[0]
}
