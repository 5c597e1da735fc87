package engine

import (
	"strings"
	"testing"

	"github.com/ator-dev/mark-my-search/internal/term"
)

func TestTermBackgroundStyle_FirstCycleIsSolid(t *testing.T) {
	s := TermBackgroundStyle("hsl(60 100% 76%)", "hsl(60 100% 88%)", 0)
	if s.CSS != "hsl(60 100% 76%)" {
		t.Errorf("expected solid fill, got %q", s.CSS)
	}
}

func TestTermBackgroundStyle_LaterCyclesStripe(t *testing.T) {
	s := TermBackgroundStyle("a", "b", 1)
	if !strings.HasPrefix(s.CSS, "repeating-linear-gradient(") {
		t.Errorf("expected striped gradient, got %q", s.CSS)
	}
	wider := TermBackgroundStyle("a", "b", 2)
	if wider.CSS == s.CSS {
		t.Errorf("expected distinct stripes per cycle")
	}
}

func TestHueColor(t *testing.T) {
	if got := HueColor(300, 76); got != "hsl(300 100% 76%)" {
		t.Errorf("expected hsl string, got %q", got)
	}
}

func TestAssignStyles_CyclesWhenTermsOutnumberHues(t *testing.T) {
	var b base
	terms := []term.Term{
		term.New("one", term.MatchMode{}),
		term.New("two", term.MatchMode{}),
		term.New("three", term.MatchMode{}),
	}
	b.assignStyles(terms, []int{300, 60})

	first, _ := b.StyleFor(terms[0].Token())
	third, _ := b.StyleFor(terms[2].Token())
	if first.Cycle != 0 {
		t.Errorf("expected first term on cycle 0, got %d", first.Cycle)
	}
	if third.Cycle != 1 {
		t.Errorf("expected third term to reuse the first hue on cycle 1, got %d", third.Cycle)
	}
	if first.ColorA != third.ColorA {
		t.Errorf("expected third term to share the first hue")
	}
	if first.CSS == third.CSS {
		t.Errorf("expected solid and striped renditions to differ")
	}
}

func TestAssignStyles_EmptyHuesGetsDefault(t *testing.T) {
	var b base
	terms := []term.Term{term.New("one", term.MatchMode{})}
	b.assignStyles(terms, nil)
	if s, ok := b.StyleFor(terms[0].Token()); !ok || s.CSS == "" {
		t.Errorf("expected a usable default style")
	}
}
