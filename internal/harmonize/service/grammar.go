package service

import (
	"fmt"
	"regexp"
	"strings"

	"hydro-harmonizer/internal/harmonize/model"
)

// GroupSpec is one named group of a grammar alternative: the character set it
// captures and the separator that follows it.
type GroupSpec struct {
	Name    string
	Pattern string
	Suffix  string
}

// Concentration units: mg/l, mg N/l, mg/l NO3, cfu/100ml.
var DefaultConcentration = []GroupSpec{
	{Name: "num", Pattern: `[a-zA-Z]*`, Suffix: `\s*`},      // mg in mg/l
	{Name: "mw0", Pattern: `[a-zA-Z0-9]*`, Suffix: `?\s*`},  // N in mg N/l
	{Name: "div", Pattern: `[/.,]`, Suffix: `\s*`},          // separator
	{Name: "den0", Pattern: `[0-9]*`, Suffix: `?`},          // 100 in cfu/100ml
	{Name: "den1", Pattern: `[a-zA-Z]*`, Suffix: `\s*`},     // l in mg/l
	{Name: "mw1", Pattern: `[a-zA-Z0-9]*`, Suffix: `?`},     // NO3 in mg/l NO3
}

// Plain text, for sampleinfo columns whose unit is free text.
var DefaultPlainText = []GroupSpec{
	{Name: "txt", Pattern: `[a-zA-Z]*`},
}

// Groups holds the captures of one match. A group that did not take part in
// the match is absent, which is different from an empty capture.
type Groups map[string]string

func (g Groups) get(name string) (string, bool) {
	v, ok := g[name]
	return v, ok
}

// RenderFunc turns groups into the string handed to unit conversion.
type RenderFunc func(Groups) (string, bool)

type Grammar struct {
	re     *regexp.Regexp
	render RenderFunc
}

// NewGrammar anchors every alternative at both ends and joins them with "|".
func NewGrammar(render RenderFunc, alts ...[]GroupSpec) (*Grammar, error) {
	if len(alts) == 0 {
		return nil, model.NewConfigError("grammar", "at least one alternative is required")
	}
	if render == nil {
		render = DefaultRender
	}
	var b strings.Builder
	for i, alt := range alts {
		if len(alt) == 0 {
			return nil, model.NewConfigError("grammar", fmt.Sprintf("alternative %d is empty", i))
		}
		if i > 0 {
			b.WriteString("|")
		}
		b.WriteString(`^\s*`)
		for _, g := range alt {
			fmt.Fprintf(&b, "(?P<%s>%s)%s", g.Name, g.Pattern, g.Suffix)
		}
		b.WriteString(`\s*$`)
	}
	re, err := regexp.Compile(b.String())
	if err != nil {
		return nil, model.NewConfigError("grammar", err.Error())
	}
	return &Grammar{re: re, render: render}, nil
}

// DefaultGrammar recognizes concentration units with a plain-text fallback.
func DefaultGrammar() *Grammar {
	g, err := NewGrammar(DefaultRender, DefaultConcentration, DefaultPlainText)
	if err != nil {
		panic(err)
	}
	return g
}

// Expr returns the compiled regular expression.
func (g *Grammar) Expr() string { return g.re.String() }

// Match returns the participating groups, or nil when s does not match.
func (g *Grammar) Match(s string) Groups {
	idx := g.re.FindStringSubmatchIndex(s)
	if idx == nil {
		return nil
	}
	out := Groups{}
	for i, name := range g.re.SubexpNames() {
		if name == "" || idx[2*i] < 0 {
			continue
		}
		out[name] = s[idx[2*i]:idx[2*i+1]]
	}
	return out
}

// Parse matches and renders s. ok is false when s could not be parsed.
func (g *Grammar) Parse(s string) (string, bool) {
	groups := g.Match(s)
	if groups == nil {
		return "", false
	}
	return g.render(groups)
}

// DefaultRender produces "<num> / (<den0><den1>)[|<formula>]" for
// concentration matches and the verbatim text for plain-text matches.
func DefaultRender(g Groups) (string, bool) {
	n, hasN := g.get("num")
	d0, hasD0 := g.get("den0")
	d1, hasD1 := g.get("den1")
	if hasN || hasD0 || hasD1 {
		if n == "" {
			n = "1"
		}
		if d0 == "" {
			d0 = "1"
		}
		out := n + " / (" + d0 + d1 + ")"
		if w := g["mw0"]; w != "" {
			out += "|" + w
		} else if w := g["mw1"]; w != "" {
			out += "|" + w
		}
		return out, true
	}
	if txt := g["txt"]; txt != "" {
		return txt, true
	}
	return "", false
}

// SplitFormula separates a rendered unit from its formula: "mg / (1l)|N".
func SplitFormula(ustr string) (unit, formula string) {
	unit, formula, _ = strings.Cut(ustr, "|")
	return unit, formula
}
