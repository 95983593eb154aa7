package units

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
)

var (
	ErrUndefinedUnit  = errors.New("undefined unit")
	ErrDimensionality = errors.New("dimensionality mismatch")
	ErrMolarMass      = errors.New("molar mass unavailable")
	ErrFormula        = errors.New("invalid formula")
)

// Base dimensions, in Dims order.
const (
	Mass = iota
	Length
	Time
	Substance
	Current
	Temperature
	Luminosity
	numDims
)

var dimNames = [numDims]string{"mass", "length", "time", "substance", "current", "temperature", "luminosity"}

// Dims are the exponents of the base dimensions.
type Dims [numDims]int

func (d Dims) add(o Dims, sign int) Dims {
	for i := range d {
		d[i] += sign * o[i]
	}
	return d
}

func (d Dims) scale(n int) Dims {
	for i := range d {
		d[i] *= n
	}
	return d
}

func (d Dims) Dimensionless() bool { return d == Dims{} }

func (d Dims) String() string {
	var parts []string
	for i, e := range d {
		switch {
		case e == 0:
		case e == 1:
			parts = append(parts, "["+dimNames[i]+"]")
		default:
			parts = append(parts, fmt.Sprintf("[%s]^%d", dimNames[i], e))
		}
	}
	if len(parts) == 0 {
		return "dimensionless"
	}
	return strings.Join(parts, " * ")
}

// Quantity is a magnitude in base units (gram, metre, second, mole, ampere,
// kelvin, candela) and its dimensions.
type Quantity struct {
	Scale float64
	Dims  Dims
}

func (q Quantity) mul(o Quantity) Quantity {
	return Quantity{Scale: q.Scale * o.Scale, Dims: q.Dims.add(o.Dims, 1)}
}

func (q Quantity) div(o Quantity) Quantity {
	return Quantity{Scale: q.Scale / o.Scale, Dims: q.Dims.add(o.Dims, -1)}
}

func (q Quantity) pow(n int) Quantity {
	return Quantity{Scale: math.Pow(q.Scale, float64(n)), Dims: q.Dims.scale(n)}
}

type unitDef struct {
	q        Quantity
	prefixed bool // accepts SI prefixes
}

// Registry resolves unit symbols. Temperatures are intervals: degC and K
// share a scale, no offsets are applied.
type Registry struct {
	units    map[string]unitDef
	prefixes map[string]float64
	order    []string // prefixes, longest first
}

func dims(pairs ...int) Dims {
	var d Dims
	for i := 0; i+1 < len(pairs); i += 2 {
		d[pairs[i]] = pairs[i+1]
	}
	return d
}

// NewRegistry returns the default registry used for water-quality units.
func NewRegistry() *Registry {
	r := &Registry{units: map[string]unitDef{}, prefixes: map[string]float64{
		"Y": 1e24, "Z": 1e21, "E": 1e18, "P": 1e15, "T": 1e12, "G": 1e9, "M": 1e6,
		"k": 1e3, "h": 1e2, "da": 1e1, "d": 1e-1, "c": 1e-2, "m": 1e-3,
		"u": 1e-6, "µ": 1e-6, "μ": 1e-6, "n": 1e-9, "p": 1e-12, "f": 1e-15,
		"a": 1e-18, "z": 1e-21, "y": 1e-24,
	}}
	for p := range r.prefixes {
		r.order = append(r.order, p)
	}
	sort.Slice(r.order, func(i, j int) bool {
		if len(r.order[i]) != len(r.order[j]) {
			return len(r.order[i]) > len(r.order[j])
		}
		return r.order[i] < r.order[j]
	})

	one := Quantity{Scale: 1}
	gram := Quantity{Scale: 1, Dims: dims(Mass, 1)}
	metre := Quantity{Scale: 1, Dims: dims(Length, 1)}
	second := Quantity{Scale: 1, Dims: dims(Time, 1)}
	mole := Quantity{Scale: 1, Dims: dims(Substance, 1)}
	litre := Quantity{Scale: 1e-3, Dims: dims(Length, 3)}
	// siemens = A² s³ kg⁻¹ m⁻², kilogram = 1000 g
	siemens := Quantity{Scale: 1e-3, Dims: dims(Mass, -1, Length, -2, Time, 3, Current, 2)}

	r.Define(gram, true, "g", "gram", "grams")
	r.Define(metre, true, "m", "meter", "metre", "meters", "metres")
	r.Define(second, true, "s", "sec", "second", "seconds")
	r.Define(mole, true, "mol", "mole", "moles")
	r.Define(litre, true, "l", "L", "liter", "litre", "liters", "litres")
	r.Define(mole.div(litre), true, "M", "molar")
	r.Define(Quantity{Scale: 1, Dims: dims(Current, 1)}, true, "A", "ampere")
	r.Define(Quantity{Scale: 1, Dims: dims(Temperature, 1)}, true, "K", "kelvin")
	r.Define(Quantity{Scale: 1, Dims: dims(Temperature, 1)}, false, "degC", "°C", "oC", "celsius")
	r.Define(Quantity{Scale: 1, Dims: dims(Luminosity, 1)}, true, "cd", "candela")
	r.Define(siemens, true, "S", "siemens")
	r.Define(Quantity{Scale: 60, Dims: dims(Time, 1)}, false, "min", "minute", "minutes")
	r.Define(Quantity{Scale: 3600, Dims: dims(Time, 1)}, false, "h", "hr", "hour", "hours")
	r.Define(Quantity{Scale: 86400, Dims: dims(Time, 1)}, false, "d", "day", "days")
	r.Define(Quantity{Scale: 1e6, Dims: dims(Mass, 1)}, false, "t", "tonne")
	r.Define(Quantity{Scale: 1e-2}, false, "percent", "percentage", "%")
	r.Define(Quantity{Scale: 1e-6}, false, "ppm")
	r.Define(Quantity{Scale: 1e-9}, false, "ppb")
	r.Define(one, false, "dimensionless")
	return r
}

// Define registers q under every name.
func (r *Registry) Define(q Quantity, prefixed bool, names ...string) {
	for _, n := range names {
		r.units[n] = unitDef{q: q, prefixed: prefixed}
	}
}

// Lookup resolves a single symbol, exact names before prefix+unit.
func (r *Registry) Lookup(sym string) (Quantity, error) {
	if d, ok := r.units[sym]; ok {
		return d.q, nil
	}
	for _, p := range r.order {
		rest, ok := strings.CutPrefix(sym, p)
		if !ok || rest == "" {
			continue
		}
		if d, ok := r.units[rest]; ok && d.prefixed {
			q := d.q
			q.Scale *= r.prefixes[p]
			return q, nil
		}
	}
	if d, ok := r.units[strings.ToLower(sym)]; ok && len(sym) > 2 {
		return d.q, nil
	}
	return Quantity{}, fmt.Errorf("%w: %q", ErrUndefinedUnit, sym)
}
