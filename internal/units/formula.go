package units

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

// charge suffixes: Cl-, Na+, SO4^2-, Ca_2+
var reCharge = regexp.MustCompile(`(\^\d*[+-]+|_\d*[+-]+|[+-]+)$`)

// MolarMass computes the formula mass of a chemical formula in g/mol.
// It understands element counts, nested groups ("Ca(NO3)2", "[Fe(CN)6]"),
// hydrates joined by "." or "·" with an optional leading count
// ("CuSO4.5H2O") and trailing charges, which are ignored.
func MolarMass(formula string) (float64, error) {
	f := strings.TrimSpace(formula)
	f = reCharge.ReplaceAllString(f, "")
	if f == "" {
		return 0, fmt.Errorf("%w: empty formula", ErrFormula)
	}
	total := 0.0
	for _, part := range strings.FieldsFunc(f, func(r rune) bool { return r == '.' || r == '·' }) {
		n := 1
		i := 0
		for i < len(part) && part[i] >= '0' && part[i] <= '9' {
			i++
		}
		if i > 0 {
			n, _ = strconv.Atoi(part[:i])
		}
		p := &formulaParser{s: part[i:]}
		m, err := p.group(0)
		if err != nil {
			return 0, fmt.Errorf("%w: %s: %v", ErrFormula, formula, err)
		}
		if p.pos != len(p.s) {
			return 0, fmt.Errorf("%w: %s: unexpected %q", ErrFormula, formula, p.s[p.pos:])
		}
		total += float64(n) * m
	}
	if total == 0 {
		return 0, fmt.Errorf("%w: %s", ErrFormula, formula)
	}
	return total, nil
}

type formulaParser struct {
	s   string
	pos int
}

var closing = map[byte]byte{'(': ')', '[': ']', '{': '}'}

func (p *formulaParser) group(close byte) (float64, error) {
	total := 0.0
	seen := false
	for p.pos < len(p.s) {
		c := p.s[p.pos]
		switch {
		case c == close && close != 0:
			if !seen {
				return 0, fmt.Errorf("empty group at %d", p.pos)
			}
			return total, nil
		case closing[c] != 0:
			p.pos++
			m, err := p.group(closing[c])
			if err != nil {
				return 0, err
			}
			if p.pos >= len(p.s) || p.s[p.pos] != closing[c] {
				return 0, fmt.Errorf("unbalanced %q", c)
			}
			p.pos++
			total += m * float64(p.count())
		case unicode.IsUpper(rune(c)):
			sym := p.element()
			w, ok := atomicWeights[sym]
			if !ok {
				return 0, fmt.Errorf("unknown element %q", sym)
			}
			total += w * float64(p.count())
		default:
			return 0, fmt.Errorf("unexpected %q at %d", c, p.pos)
		}
		seen = true
	}
	if close != 0 {
		return 0, fmt.Errorf("missing %q", close)
	}
	return total, nil
}

// element reads an upper-case letter plus lower-case letters, preferring
// the longest known symbol ("Co" over "C").
func (p *formulaParser) element() string {
	start := p.pos
	end := p.pos + 1
	for end < len(p.s) && unicode.IsLower(rune(p.s[end])) {
		end++
	}
	for ; end > start+1; end-- {
		if _, ok := atomicWeights[p.s[start:end]]; ok {
			break
		}
	}
	p.pos = end
	return p.s[start:end]
}

func (p *formulaParser) count() int {
	start := p.pos
	for p.pos < len(p.s) && p.s[p.pos] >= '0' && p.s[p.pos] <= '9' {
		p.pos++
	}
	if p.pos == start {
		return 1
	}
	n, _ := strconv.Atoi(p.s[start:p.pos])
	return n
}
