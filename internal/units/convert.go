package units

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

// MolecularWeightLookup resolves a molar mass (g/mol) for a name or formula
// the built-in calculator cannot handle, e.g. from PubChem.
type MolecularWeightLookup interface {
	MolecularWeight(ctx context.Context, name string) (float64, error)
}

// Conversion is the result of converting one source unit to a target.
// Factor is the magnitude of one source unit expressed in Label units.
type Conversion struct {
	Label  string
	Factor float64
}

type Engine struct {
	Registry *Registry
	Weights  MolecularWeightLookup // optional
	Log      zerolog.Logger
}

func NewEngine(weights MolecularWeightLookup, log zerolog.Logger) *Engine {
	return &Engine{Registry: NewRegistry(), Weights: weights, Log: log}
}

var (
	massToSubstance = dims(Mass, -1, Substance, 1)
	substanceToMass = dims(Mass, 1, Substance, -1)
)

// Convert converts source to target. source may carry a formula after "|"
// ("mg / (1l)|N"); otherwise formula is used when a mass ↔ substance
// conversion needs a molar mass.
func (e *Engine) Convert(ctx context.Context, source, target, formula string) (Conversion, error) {
	src, f, _ := strings.Cut(source, "|")
	if f = strings.TrimSpace(f); f != "" {
		formula = f
	}
	src = strings.TrimSpace(src)
	label := strings.TrimSpace(target)
	if src == label {
		return Conversion{Label: label, Factor: 1}, nil
	}

	reg := e.Registry
	if reg == nil {
		reg = NewRegistry()
	}
	sq, err := reg.Parse(src)
	if err != nil {
		return Conversion{}, err
	}
	tq, err := reg.Parse(label)
	if err != nil {
		return Conversion{}, err
	}

	diff := tq.Dims.add(sq.Dims, -1)
	switch diff {
	case Dims{}:
		return Conversion{Label: label, Factor: sq.Scale / tq.Scale}, nil
	case massToSubstance, substanceToMass:
		mw, err := e.MolarMass(ctx, formula)
		if err != nil {
			return Conversion{}, err
		}
		factor := sq.Scale / tq.Scale
		if diff == massToSubstance {
			factor /= mw
		} else {
			factor *= mw
		}
		e.Log.Debug().Str("formula", formula).Float64("molar_mass", mw).Msg("chemistry conversion")
		return Conversion{Label: label, Factor: factor}, nil
	default:
		return Conversion{}, fmt.Errorf("%w: cannot convert from %s (%s) to %s (%s)",
			ErrDimensionality, src, sq.Dims, label, tq.Dims)
	}
}

// MolarMass tries the formula calculator first and the lookup second.
func (e *Engine) MolarMass(ctx context.Context, formula string) (float64, error) {
	formula = strings.TrimSpace(formula)
	if formula == "" {
		return 0, fmt.Errorf("%w: no formula", ErrMolarMass)
	}
	mw, err := MolarMass(formula)
	if err == nil {
		return mw, nil
	}
	if e.Weights == nil {
		return 0, fmt.Errorf("%w: %v", ErrMolarMass, err)
	}
	mw, lerr := e.Weights.MolecularWeight(ctx, formula)
	if lerr != nil || mw <= 0 {
		e.Log.Debug().Err(lerr).Str("formula", formula).Msg("molecular weight lookup failed")
		return 0, fmt.Errorf("%w: %s", ErrMolarMass, formula)
	}
	return mw, nil
}
