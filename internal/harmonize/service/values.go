package service

import (
	"regexp"
	"sort"
	"strings"

	"hydro-harmonizer/internal/harmonize/model"
	"hydro-harmonizer/internal/utils"
)

// limitSplitter recognizes detection-limit values such as "<0,5" or "> 10".
type limitSplitter struct {
	re *regexp.Regexp
}

func newLimitSplitter(symbols []string) limitSplitter {
	syms := make([]string, 0, len(symbols))
	for _, s := range symbols {
		if s = strings.TrimSpace(s); s != "" {
			syms = append(syms, regexp.QuoteMeta(s))
		}
	}
	if len(syms) == 0 {
		return limitSplitter{}
	}
	// "<=" must be tried before "<"
	sort.SliceStable(syms, func(i, j int) bool { return len(syms[i]) > len(syms[j]) })
	return limitSplitter{re: regexp.MustCompile(`^\s*(` + strings.Join(syms, "|") + `)\s*(.*)$`)}
}

func (l limitSplitter) split(s string) (symbol, rest string, ok bool) {
	if l.re == nil {
		return "", "", false
	}
	m := l.re.FindStringSubmatch(s)
	if m == nil {
		return "", "", false
	}
	return m[1], m[2], true
}

// valueConverter turns raw cells into output values.
type valueConverter struct {
	limits  limitSplitter
	decimal string
}

// convert scales numbers and detection-limit values by factor. Qualified
// values are re-prefixed with a single space: "<0,5" × 2 → "< 1.0".
// Anything else is passed through as text.
func (c valueConverter) convert(raw string, factor float64) model.Value {
	s := strings.TrimSpace(raw)
	if sym, rest, ok := c.limits.split(s); ok {
		if f, ok := utils.ParseDecimal(rest, c.decimal); ok {
			return model.Text(sym + " " + utils.FormatFloat(f*factor))
		}
		return model.Text(raw)
	}
	if f, ok := utils.ParseDecimal(s, c.decimal); ok {
		return model.Number(f * factor)
	}
	return model.Text(raw)
}

// parse is convert without scaling; qualified values keep their raw text.
func (c valueConverter) parse(raw string) model.Value {
	if f, ok := utils.ParseDecimal(raw, c.decimal); ok {
		return model.Number(f)
	}
	return model.Text(raw)
}
