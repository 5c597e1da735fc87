// Package term models a search term and compiles it into a matchable
// pattern. Case folding, diacritic folding, stemming and whole-word
// wrapping are orthogonal transforms composed before pattern
// construction; regex mode hands the phrase through as a user-supplied
// pattern instead of escaping it.
package term

import (
	"fmt"
	"strings"
)

// MatchMode holds the orthogonal matching flags of a term.
type MatchMode struct {
	Regex      bool `json:"regex" yaml:"regex"`
	Case       bool `json:"case" yaml:"case"`
	Stem       bool `json:"stem" yaml:"stem"`
	Whole      bool `json:"whole" yaml:"whole"`
	Diacritics bool `json:"diacritics" yaml:"diacritics"`
}

// Term is a search phrase plus its match configuration. Immutable once
// constructed; equality is structural, so two instances with the same
// normalized phrase and mode are the same term for cache purposes.
type Term struct {
	Phrase string    `json:"phrase" yaml:"phrase"`
	Mode   MatchMode `json:"mode" yaml:"mode"`
}

// New constructs a term.
func New(phrase string, mode MatchMode) Term {
	return Term{Phrase: phrase, Mode: mode}
}

// normalized returns the phrase as used for identity: lowercased
// unless the term is case-sensitive.
func (t Term) normalized() string {
	if t.Mode.Case {
		return t.Phrase
	}
	return strings.ToLower(t.Phrase)
}

// Equal reports structural equality by normalized phrase + mode.
func (t Term) Equal(o Term) bool {
	return t.Mode == o.Mode && t.normalized() == o.normalized()
}

// Token derives a stable, collision-free key for the term, safe for
// cache keys and CSS class names. Distinct terms always get distinct
// tokens since the phrase is hex-encoded rather than hashed.
func (t Term) Token() string {
	var flags strings.Builder
	for _, f := range []struct {
		set bool
		c   byte
	}{
		{t.Mode.Regex, 'r'},
		{t.Mode.Case, 'c'},
		{t.Mode.Stem, 's'},
		{t.Mode.Whole, 'w'},
		{t.Mode.Diacritics, 'd'},
	} {
		if f.set {
			flags.WriteByte(f.c)
		}
	}
	if flags.Len() == 0 {
		flags.WriteByte('p')
	}
	return fmt.Sprintf("mms-%s-%x", flags.String(), []byte(t.normalized()))
}

// Dedup removes duplicate terms, keeping first occurrences in order.
func Dedup(terms []Term) []Term {
	var out []Term
	for _, t := range terms {
		dup := false
		for _, kept := range out {
			if kept.Equal(t) {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, t)
		}
	}
	return out
}
