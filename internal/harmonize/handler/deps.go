package handler

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"hydro-harmonizer/internal/config"
	"hydro-harmonizer/internal/harmonize/model"
	"hydro-harmonizer/internal/harmonize/service"
	"hydro-harmonizer/internal/units"
	"hydro-harmonizer/internal/vocab"
)

// Deps are the long-lived collaborators shared by all requests. Every
// request builds its own mappers and harmonizer on top of them.
type Deps struct {
	Cfg         config.Config
	Profile     config.Profile
	NameDict    *service.MapperDict
	UnitDict    *service.MapperDict // nil: units rely on the grammar
	UnitTargets map[string]string
	PubChem     *vocab.PubChem
	Engine      *units.Engine
	Translator  vocab.Translator // nil when no translation service is configured
	Log         zerolog.Logger
}

func NewDeps(cfg config.Config, profile config.Profile, log zerolog.Logger) (*Deps, error) {
	names, err := loadDict(firstNonEmpty(cfg.NameDict, profile.Names.Dict))
	if err != nil {
		return nil, err
	}
	var unitDict *service.MapperDict
	if profile.Units.Dict != "" {
		if unitDict, err = service.LoadDictFile(profile.Units.Dict); err != nil {
			return nil, err
		}
	}
	targets, err := service.DefaultUnitTargets()
	if err != nil {
		return nil, err
	}
	pc, err := vocab.NewPubChem(cfg.PubChemURL, cfg.PubChemRPS, 4096, log)
	if err != nil {
		return nil, err
	}
	d := &Deps{
		Cfg:         cfg,
		Profile:     profile,
		NameDict:    names,
		UnitDict:    unitDict,
		UnitTargets: targets,
		PubChem:     pc,
		Engine:      units.NewEngine(pc, log),
		Log:         log,
	}
	if cfg.TranslateURL != "" {
		d.Translator = vocab.NewLibreTranslate(cfg.TranslateURL, cfg.TranslateKey, 0)
	}
	log.Info().Int("names", names.Len()).Bool("translation", d.Translator != nil).Msg("vocabularies loaded")
	return d, nil
}

func loadDict(path string) (*service.MapperDict, error) {
	if path == "" {
		return service.DefaultNameDict()
	}
	return service.LoadDictFile(path)
}

func scoreTable(m map[int]float64) service.ScoreTable {
	if len(m) == 0 {
		return service.DefaultMinScores
	}
	out := make(service.ScoreTable, 0, len(m))
	for l, s := range m {
		out = append(out, service.ScorePoint{Length: l, Score: s})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Length < out[j].Length })
	return out
}

// nameDict picks the dictionary source for this request.
func (d *Deps) nameDict(ctx context.Context, r *http.Request, names []string, log zerolog.Logger) (*service.MapperDict, error) {
	switch src := strings.ToLower(strings.TrimSpace(r.FormValue("name_dict"))); src {
	case "", "default":
		return d.NameDict, nil
	case "none":
		return nil, nil
	case "cas":
		return service.CASDict(ctx, d.PubChem, names), nil
	case "cid":
		return service.CIDDict(ctx, d.PubChem, names), nil
	case "translate":
		if d.Translator == nil {
			return nil, model.NewConfigError("name_dict", "translation service not configured")
		}
		policy := vocab.DefaultRetry
		policy.MaxAttempts = atoi(r.FormValue("translate_attempts"), policy.MaxAttempts)
		fn := vocab.TranslateFunc(d.Translator,
			firstNonEmpty(r.FormValue("translate_from"), "nl"),
			firstNonEmpty(r.FormValue("translate_to"), "en"),
			policy, log)
		return service.TranslationDict(ctx, fn, names)
	default:
		return nil, model.NewConfigError("name_dict", fmt.Sprintf("unknown dictionary source %q", src))
	}
}

// mapper builds a mapper from profile defaults overridden by form values
// prefixed with "name_" or "unit_".
func (d *Deps) mapper(r *http.Request, field model.Field, prof config.MapperProfile, dict *service.MapperDict, log zerolog.Logger) (*service.Mapper, error) {
	var m *service.Mapper
	prefix := "name_"
	if field == model.FieldUnit {
		m = service.NewUnitMapper(log)
		prefix = "unit_"
	} else {
		m = service.NewNameMapper(log)
	}
	m.Dict = dict
	m.Lookup = d.PubChem
	m.MinScores = scoreTable(prof.MinScores)
	if floor := toFloat(r.FormValue(prefix+"min_score"), -1); floor >= 0 {
		m.MinScores = service.ScoreTable{{Length: 1, Score: floor}}
	}
	m.StripParentheses = toBool(r.FormValue(prefix+"strip_parentheses"), prof.StripParentheses)
	m.AllowEmptyAliases = toBool(r.FormValue(prefix+"allow_empty_aliases"), prof.AllowEmptyAliases)

	methods := splitList(r.FormValue(prefix + "methods"))
	if len(methods) == 0 {
		methods = prof.Methods
	}
	if err := m.SetMethods(methods...); err != nil {
		return nil, err
	}

	if len(prof.Replace) > 0 {
		m.ReplaceRules = service.RulesFromMap(prof.Replace)
	}
	var replace map[string]any
	if err := jsonField(prefix+"replace", r.FormValue(prefix+"replace"), &replace); err != nil {
		return nil, model.NewConfigError(prefix+"replace", err.Error())
	}
	if replace != nil {
		rules, err := service.RulesFrom(replace)
		if err != nil {
			return nil, err
		}
		m.ReplaceRules = rules
	}
	if len(prof.Remove) > 0 {
		m.RemoveTerms = prof.Remove
	}
	if rm := splitList(r.FormValue(prefix + "remove")); len(rm) > 0 {
		m.RemoveTerms = rm
	}
	return m, nil
}

// harmonizer merges profile defaults and form values into Options.
func (d *Deps) harmonizer(r *http.Request, log zerolog.Logger) (*service.Harmonizer, error) {
	p := d.Profile.Harmonize
	opts := service.DefaultOptions()
	if p.ConvertUnits != nil {
		opts.ConvertUnits = *p.ConvertUnits
	}
	opts.ConvertUnits = toBool(r.FormValue("convert_units"), opts.ConvertUnits)
	opts.TargetUnits = firstNonEmpty(r.FormValue("target_units"), p.TargetUnits, opts.TargetUnits)
	opts.Decimal = firstNonEmpty(r.FormValue("decimal"), p.Decimal, opts.Decimal)
	opts.Overrides = p.OverrideUnits
	opts.Drop = p.Drop
	opts.Merge = p.Merge
	if len(p.LimitSymbols) > 0 {
		opts.LimitSymbols = p.LimitSymbols
	}
	if ls := splitList(r.FormValue("limit_symbols")); len(ls) > 0 {
		opts.LimitSymbols = ls
	}
	if drop := splitList(r.FormValue("drop")); len(drop) > 0 {
		opts.Drop = drop
	}
	if err := jsonField("override_units", r.FormValue("override_units"), &opts.Overrides); err != nil {
		return nil, model.NewConfigError("override_units", err.Error())
	}
	if err := jsonField("merge", r.FormValue("merge"), &opts.Merge); err != nil {
		return nil, model.NewConfigError("merge", err.Error())
	}
	// curated per-feature units are opt-in and never beat an explicit target
	explicit := firstNonEmpty(r.FormValue("target_units"), p.TargetUnits) != ""
	if toBool(r.FormValue("curated_targets"), false) && !explicit {
		opts.AliasTargets = d.UnitTargets
	}
	return service.NewHarmonizer(opts, d.Engine, log)
}

// layout reads the input layout from the form.
func layout(r *http.Request) (service.Layout, error) {
	headerRow := atoi(r.FormValue("header_row"), 1)
	na := splitList(r.FormValue("na_values"))
	if len(na) == 0 {
		na = nil
	}
	format := strings.ToLower(strings.TrimSpace(firstNonEmpty(r.FormValue("format"), "stacked")))
	switch {
	case strings.HasPrefix("stacked", format):
		l := service.DefaultStackedLayout()
		l.HeaderRow = headerRow
		l.NAValues = na
		if ids := splitList(r.FormValue("sample_id")); len(ids) > 0 {
			l.SampleID = ids
		}
		l.Feature = firstNonEmpty(r.FormValue("feature_column"), l.Feature)
		l.Value = firstNonEmpty(r.FormValue("value_column"), l.Value)
		l.Unit = firstNonEmpty(r.FormValue("unit_column"), l.Unit)
		l.LODColumn = r.FormValue("lod_column")
		l.Mask = r.FormValue("mask")
		l.UnitsFromName = toBool(r.FormValue("units_from_name"), false)
		return l, nil
	case strings.HasPrefix("wide", format):
		kind, err := model.ParseDataKind(r.FormValue("datatype"))
		if err != nil {
			return nil, err
		}
		block := service.WideBlock{
			Columns:       splitList(r.FormValue("columns")),
			UnitsRow:      atoi(r.FormValue("units_row"), 0),
			Kind:          kind,
			UnitsFromName: toBool(r.FormValue("units_from_name"), false),
		}
		blocks := []service.WideBlock{block}
		// a JSON "blocks" list replaces the single block: [{"Columns":[...],"UnitsRow":2,"Kind":"sampleinfo"}]
		var more []service.WideBlock
		if err := jsonField("blocks", r.FormValue("blocks"), &more); err != nil {
			return nil, model.NewConfigError("blocks", err.Error())
		}
		if len(more) > 0 {
			blocks = more
		}
		return service.WideLayout{HeaderRow: headerRow, Blocks: blocks, NAValues: na}, nil
	default:
		return nil, model.NewConfigError("format", fmt.Sprintf("invalid format %q, must be stacked or wide", format))
	}
}
