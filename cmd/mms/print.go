package main

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"sort"

	"github.com/ator-dev/mark-my-search/internal/config"
	"github.com/ator-dev/mark-my-search/internal/dom"
	"github.com/ator-dev/mark-my-search/internal/term"
)

// printMatches is the non-interactive mode: highlight, report per-term
// counts, and print each laid-out line that contains a match.
func printMatches(doc *dom.Document, terms []term.Term, cfg config.Config, log *slog.Logger) error {
	d := buildEngine(doc, cfg, log, cfg.LayoutWidth)
	if err := d.manager.StartHighlighting(terms, cfg.Hues); err != nil {
		return err
	}
	defer d.manager.EndHighlighting()

	w := bufio.NewWriter(os.Stdout)
	defer w.Flush()

	counter := d.manager.TermCounter()
	for _, t := range term.Dedup(terms) {
		fmt.Fprintf(w, "%s: %d\n", t.Phrase, counter.CountFaster(t))
	}

	lines := matchLines(d)
	if len(lines) > 0 {
		fmt.Fprintln(w)
	}
	for _, y := range lines {
		fmt.Fprintf(w, "%5d| %s\n", y+1, d.provider.Line(y))
	}
	return nil
}

// matchLines collects the distinct laid-out line indexes touched by
// any match, in document order.
func matchLines(d *docState) []int {
	cache := d.manager.Cache()
	seen := make(map[int]bool)
	var lines []int
	for _, owner := range cache.Owners() {
		for _, cf := range cache.SpansFor(owner) {
			if len(cf.Units) == 0 {
				continue
			}
			firstUnit := cf.Units[0].ID
			for _, s := range cf.Spans {
				for _, box := range d.provider.MatchBoxes(firstUnit, s.FlowStart, s.FlowEnd) {
					if !seen[box.Y] {
						seen[box.Y] = true
						lines = append(lines, box.Y)
					}
				}
			}
		}
	}
	sort.Ints(lines)
	return lines
}
