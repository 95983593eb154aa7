package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"hydro-harmonizer/internal/harmonize/model"
)

// Mapper maps feature names or unit strings to aliases by trying strategies
// in order. A row claimed by one strategy is never revisited by the next.
type Mapper struct {
	Field             model.Field
	Methods           []model.Method
	Dict              *MapperDict // nil: nothing matches the dictionary strategies
	ReplaceRules      []Rule
	RemoveTerms       []string
	StripParentheses  bool
	Grammar           *Grammar
	MinScores         ScoreTable
	Lookup            NameLookup
	AllowEmptyAliases bool // leave unmatched aliases empty to flag them for review
	Log               zerolog.Logger
}

func NewNameMapper(log zerolog.Logger) *Mapper {
	return newMapper(model.FieldName, []model.Method{model.MethodExact}, log)
}

func NewUnitMapper(log zerolog.Logger) *Mapper {
	return newMapper(model.FieldUnit, []model.Method{model.MethodRegex}, log)
}

func newMapper(field model.Field, methods []model.Method, log zerolog.Logger) *Mapper {
	return &Mapper{
		Field:        field,
		Methods:      methods,
		ReplaceRules: DefaultReplaceRules,
		RemoveTerms:  DefaultRemoveTerms,
		Grammar:      DefaultGrammar(),
		MinScores:    DefaultMinScores,
		Log:          log,
	}
}

// SetMethods validates and installs a strategy order.
func (m *Mapper) SetMethods(names ...string) error {
	methods, err := ParseMethods(names)
	if err != nil {
		return err
	}
	if len(methods) > 0 {
		m.Methods = methods
	}
	return nil
}

func needsTidy(methods []model.Method) bool {
	for _, mt := range methods {
		if mt == model.MethodASCII || mt == model.MethodFuzzy {
			return true
		}
	}
	return false
}

// Map runs the strategies over inputs. headers identify the rows (feature
// keys) and must line up with inputs.
func (m *Mapper) Map(ctx context.Context, headers, inputs []string) (*model.MatchReport, error) {
	if len(headers) != len(inputs) {
		return nil, model.NewConfigError("map", fmt.Sprintf("%d headers for %d strings", len(headers), len(inputs)))
	}
	for _, mt := range m.Methods {
		if _, err := parseMethod(string(mt)); err != nil {
			return nil, err
		}
	}
	log := m.Log.With().Str("field", string(m.Field)).Logger()
	log.Info().Int("rows", len(inputs)).Msg("mapping")

	report := &model.MatchReport{Field: m.Field, Records: make([]model.MatchRecord, len(inputs))}
	if len(inputs) == 0 {
		return report, nil
	}

	dict := m.Dict
	if dict == nil {
		dict = NewMapperDict()
	}
	grammar := m.Grammar
	if grammar == nil {
		grammar = DefaultGrammar()
	}

	// 1) replace → remove → strip
	modified := modify(inputs, m.ReplaceRules, m.RemoveTerms)
	if m.StripParentheses {
		modified = modified.StripParentheses().Strip()
	}

	// 2) tidied strings and dictionary, only when ascii/fuzzy will look at them
	var tidied StringList
	var tidiedDict *MapperDict
	if needsTidy(m.Methods) {
		tidied = modified.Tidy()
		tidiedDict = dict.tidied(m.ReplaceRules, m.RemoveTerms)
		report.HasTidied = true
	}

	for i := range inputs {
		report.Records[i] = model.MatchRecord{Header: headers[i], Name: inputs[i], Modified: modified[i]}
		if tidied != nil {
			report.Records[i].Tidied = tidied[i]
		}
	}

	// 3) strategies in order, each over the rows nobody claimed yet
	for _, method := range m.Methods {
		pending := make([]int, 0, len(inputs))
		for i, rec := range report.Records {
			if !rec.Matched() {
				pending = append(pending, i)
			}
		}
		if len(pending) == 0 {
			break
		}

		source := modified
		if method == model.MethodASCII || method == model.MethodFuzzy {
			source = tidied
		}
		searched := make([]string, len(pending))
		for j, i := range pending {
			searched[j] = source[i]
		}

		hits := m.matcher(method, dict, tidiedDict, grammar).Match(ctx, searched)

		ev := log.Info().Str("method", string(method))
		found := 0
		for j, i := range pending {
			rec := &report.Records[i]
			rec.Searched = searched[j]
			h := hits[j]
			if !h.OK || h.Alias == "" {
				continue
			}
			rec.Found, rec.Alias, rec.Score, rec.Method = h.Found, h.Alias, h.Score, method
			found++
			log.Debug().
				Str("method", string(method)).
				Str("name", rec.Name).
				Str("searched", rec.Searched).
				Str("found", rec.Found).
				Str("alias", rec.Alias).
				Msg("match")
		}
		ev.Int("searched", len(pending)).Int("found", found).Msg("match method done")
	}

	// 4) fallback alias for rows no strategy claimed
	unmatched := 0
	for i := range report.Records {
		rec := &report.Records[i]
		if rec.Matched() {
			continue
		}
		unmatched++
		rec.Found = ""
		if !m.AllowEmptyAliases {
			rec.Alias = rec.Modified
		}
	}
	if unmatched > 0 {
		log.Info().Int("unmatched", unmatched).Bool("empty_aliases", m.AllowEmptyAliases).Msg("rows without match")
	}
	return report, nil
}

func (m *Mapper) matcher(method model.Method, dict, tidiedDict *MapperDict, grammar *Grammar) Matcher {
	switch method {
	case model.MethodASCII:
		return exactMatcher{method: model.MethodASCII, dict: tidiedDict}
	case model.MethodRegex:
		return regexMatcher{grammar: grammar}
	case model.MethodFuzzy:
		return fuzzyMatcher{dict: tidiedDict, minScores: m.MinScores}
	case model.MethodPubChem:
		return lookupMatcher{lookup: m.Lookup, log: m.Log}
	default:
		return exactMatcher{method: model.MethodExact, dict: dict}
	}
}

// ApplyNameReport copies name aliases onto the entries. Empty aliases leave
// the seeded raw name in place.
func ApplyNameReport(t *model.FeatureTable, r *model.MatchReport) {
	for _, rec := range r.Records {
		e, ok := t.Get(rec.Header)
		if !ok || rec.Alias == "" {
			continue
		}
		e.AliasN = rec.Alias
	}
}

// ApplyUnitReport sets the unit alias and the grammar string used for
// conversion. A regex hit is a representation, not an alias: the alias
// stays the modified unit. A dictionary hit is parsed with the grammar.
func ApplyUnitReport(t *model.FeatureTable, r *model.MatchReport, g *Grammar) {
	if g == nil {
		g = DefaultGrammar()
	}
	for _, rec := range r.Records {
		e, ok := t.Get(rec.Header)
		if !ok {
			continue
		}
		switch {
		case rec.Method == model.MethodRegex:
			e.AliasU = rec.Modified
			e.UStr = rec.Alias
		case rec.Matched():
			e.AliasU = rec.Alias
			if ustr, ok := g.Parse(rec.Alias); ok {
				e.UStr = ustr
			}
		case rec.Alias != "":
			e.AliasU = rec.Alias
		}
	}
}
