package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/jessevdk/go-flags"

	"github.com/ator-dev/mark-my-search/internal/config"
	"github.com/ator-dev/mark-my-search/internal/dom"
	"github.com/ator-dev/mark-my-search/internal/loader"
	"github.com/ator-dev/mark-my-search/internal/term"
)

type options struct {
	File string `short:"f" long:"file" required:"true" description:"Document to highlight (html, md, txt, csv, pdf, docx)"`

	Regex      bool `long:"regex" description:"Treat terms as regular expressions"`
	CaseSense  bool `long:"case" description:"Case-sensitive matching"`
	Stem       bool `long:"stem" description:"Match word stem variants"`
	Whole      bool `long:"whole" description:"Whole-word matching"`
	Diacritics bool `long:"diacritics" description:"Fold diacritics"`

	Backend string `short:"b" long:"backend" default:"auto" choice:"auto" choice:"paint" choice:"element" choice:"url" description:"Render backend"`
	Width   int    `short:"w" long:"width" default:"0" description:"Layout width (0 = config width)"`
	Print   bool   `short:"p" long:"print" description:"Print counts and matching lines instead of opening the viewer"`
	Watch   bool   `long:"watch" description:"Reload the document when the file changes"`

	Args struct {
		Terms []string `positional-arg-name:"TERM" required:"1"`
	} `positional-args:"true"`
}

func main() {
	var opts options
	if _, err := flags.Parse(&opts); err != nil {
		os.Exit(1)
	}

	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	cfg := config.Load()
	cfg.Backend = opts.Backend
	if opts.Width > 0 {
		cfg.LayoutWidth = opts.Width
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}

	mode := term.MatchMode{
		Regex:      opts.Regex,
		Case:       opts.CaseSense,
		Stem:       opts.Stem,
		Whole:      opts.Whole,
		Diacritics: opts.Diacritics,
	}
	terms := make([]term.Term, 0, len(opts.Args.Terms))
	for _, phrase := range opts.Args.Terms {
		terms = append(terms, term.New(phrase, mode))
	}

	doc, err := loadDocument(opts.File)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}

	if opts.Print {
		if err := printMatches(doc, terms, cfg, log); err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			os.Exit(1)
		}
		return
	}

	if err := runViewer(doc, terms, opts, cfg, log); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func loadDocument(path string) (*dom.Document, error) {
	return loader.LoadFile(path, func(p string) (io.ReadCloser, error) {
		return os.Open(p)
	})
}
