package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"hydro-harmonizer/internal/harmonize/model"
)

// Pipeline runs name mapping, unit mapping and harmonization over one
// feature table. Either mapper may be nil to skip that step.
type Pipeline struct {
	Names      *Mapper
	Units      *Mapper
	Harmonizer *Harmonizer
	Log        zerolog.Logger
}

// Outcome collects everything one run produced.
type Outcome struct {
	Table       *model.Table
	NameReport  *model.MatchReport
	UnitReport  *model.MatchReport
	Warnings    []string
	ImportNotes string
}

// Run maps and harmonizes t. The entries of t receive their aliases; run a
// fresh table for every request.
func (p *Pipeline) Run(ctx context.Context, t *model.FeatureTable) (*Outcome, error) {
	if p.Harmonizer == nil {
		return nil, model.NewConfigError("pipeline", "harmonizer is required")
	}
	out := &Outcome{ImportNotes: t.Summary()}
	p.Log.Info().Msg(out.ImportNotes)

	if p.Names != nil {
		rep, err := p.Names.Map(ctx, t.Keys(), t.Names())
		if err != nil {
			return nil, fmt.Errorf("map names: %w", err)
		}
		ApplyNameReport(t, rep)
		out.NameReport = rep
	}
	if p.Units != nil {
		rep, err := p.Units.Map(ctx, t.Keys(), t.Units())
		if err != nil {
			return nil, fmt.Errorf("map units: %w", err)
		}
		ApplyUnitReport(t, rep, p.Units.Grammar)
		out.UnitReport = rep
	} else {
		// without a unit mapper, the default grammar still prepares conversion
		g := DefaultGrammar()
		for _, e := range t.Entries() {
			if ustr, ok := g.Parse(e.Unit); ok {
				e.UStr = ustr
			}
		}
	}

	res, err := p.Harmonizer.Harmonize(ctx, t)
	if err != nil {
		return nil, fmt.Errorf("harmonize: %w", err)
	}
	out.Table = res.Table
	out.Warnings = res.Warnings
	return out, nil
}
