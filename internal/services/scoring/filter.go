// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package scoring

import (
	"fmt"
	"strings"
	"time"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// Filter is a compiled boolean expression a release must also satisfy
// before it is auto-grabbed, for example
//
//	seeders >= 10 && sizeGB < 80 && group != "kaos"
type Filter struct {
	source  string
	program *vm.Program
}

// filterEnv is the variable set visible to filter expressions.
type filterEnv struct {
	Title      string   `expr:"title"`
	Indexer    string   `expr:"indexer"`
	Score      int      `expr:"score"`
	Confidence string   `expr:"confidence"`
	Platform   string   `expr:"platform"`
	Group      string   `expr:"group"`
	Version    string   `expr:"version"`
	Seeders    int      `expr:"seeders"`
	Peers      int      `expr:"peers"`
	SizeGB     float64  `expr:"sizeGB"`
	AgeDays    float64  `expr:"ageDays"`
	Categories []string `expr:"categories"`
}

// CompileFilter parses source. A blank source yields a nil filter, which
// matches everything.
func CompileFilter(source string) (*Filter, error) {
	source = strings.TrimSpace(source)
	if source == "" {
		return nil, nil
	}
	program, err := expr.Compile(source, expr.Env(filterEnv{}), expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("compile auto-grab filter: %w", err)
	}
	return &Filter{source: source, program: program}, nil
}

func (f *Filter) String() string {
	if f == nil {
		return ""
	}
	return f.source
}

// Match evaluates the filter against scored at now.
func (f *Filter) Match(scored ScoredRelease, now time.Time) (bool, error) {
	if f == nil {
		return true, nil
	}

	env := filterEnv{
		Title:      scored.Title,
		Indexer:    scored.Indexer,
		Score:      scored.Score,
		Confidence: string(scored.Confidence),
		Platform:   string(scored.Platform),
		Group:      scored.Group,
		Version:    scored.Version,
		Seeders:    scored.Seeders,
		Peers:      scored.Peers,
		SizeGB:     float64(scored.Size) / float64(gib),
		Categories: scored.Categories,
	}
	if !scored.PublishedAt.IsZero() {
		env.AgeDays = now.Sub(scored.PublishedAt).Hours() / 24
	}

	out, err := expr.Run(f.program, env)
	if err != nil {
		return false, fmt.Errorf("evaluate auto-grab filter: %w", err)
	}
	ok, _ := out.(bool)
	return ok, nil
}
