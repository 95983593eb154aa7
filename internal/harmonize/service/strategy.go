package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"hydro-harmonizer/internal/harmonize/model"
)

// Hit is one strategy's answer for one searched string.
type Hit struct {
	Found string  // matched reference key; empty for regex
	Alias string  // alias or grammar string
	Score float64 // fuzzy score
	OK    bool
}

// Matcher is one interchangeable matching strategy.
type Matcher interface {
	Method() model.Method
	Match(ctx context.Context, searched []string) []Hit
}

// NameLookup is the external vocabulary collaborator. It returns the best
// candidate for a name and a synonym for it.
type NameLookup interface {
	LookupByName(ctx context.Context, name string) (candidate, synonym string, err error)
}

// ParseMethods resolves case-insensitive prefixes ("ex" → exact) in order.
func ParseMethods(names []string) ([]model.Method, error) {
	out := make([]model.Method, 0, len(names))
	for _, n := range names {
		m, err := parseMethod(n)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

func parseMethod(s string) (model.Method, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s != "" {
		for _, m := range model.ValidMethods {
			if strings.HasPrefix(string(m), s) {
				return m, nil
			}
		}
	}
	valid := make([]string, len(model.ValidMethods))
	for i, m := range model.ValidMethods {
		valid[i] = string(m)
	}
	return "", model.NewConfigError("match_method", fmt.Sprintf("invalid argument %q, must be in [%s]", s, strings.Join(valid, ", ")))
}

// exactMatcher serves both exact (literal dict) and ascii (tidied dict).
type exactMatcher struct {
	method model.Method
	dict   *MapperDict
}

func (m exactMatcher) Method() model.Method { return m.method }

func (m exactMatcher) Match(_ context.Context, searched []string) []Hit {
	out := make([]Hit, len(searched))
	for i, s := range searched {
		if alias, ok := m.dict.Get(s); ok {
			out[i] = Hit{Found: s, Alias: alias, OK: true}
		}
	}
	return out
}

type regexMatcher struct {
	grammar *Grammar
}

func (regexMatcher) Method() model.Method { return model.MethodRegex }

func (m regexMatcher) Match(_ context.Context, searched []string) []Hit {
	out := make([]Hit, len(searched))
	for i, s := range searched {
		if ustr, ok := m.grammar.Parse(s); ok {
			out[i] = Hit{Alias: ustr, OK: true}
		}
	}
	return out
}

type fuzzyMatcher struct {
	dict      *MapperDict // tidied
	minScores ScoreTable
}

func (fuzzyMatcher) Method() model.Method { return model.MethodFuzzy }

func (m fuzzyMatcher) Match(_ context.Context, searched []string) []Hit {
	keys := m.dict.Keys()
	var idx *trigramIndex
	if len(keys) >= indexMinKeys {
		idx = newTrigramIndex(keys)
	}
	out := make([]Hit, len(searched))
	for i, s := range searched {
		pool := keys
		if idx != nil {
			// no shared trigram at all: fall back to the full scan
			if c := idx.candidates(s); len(c) > 0 {
				pool = c
			}
		}
		key, score := bestKey(s, pool)
		if key == "" || float64(score) < m.minScores.For(len([]rune(s))) {
			continue
		}
		alias, _ := m.dict.Get(key)
		out[i] = Hit{Found: key, Alias: alias, Score: float64(score), OK: true}
	}
	return out
}

// lookupMatcher asks the external vocabulary. Failures are misses.
type lookupMatcher struct {
	lookup NameLookup
	log    zerolog.Logger
}

func (lookupMatcher) Method() model.Method { return model.MethodPubChem }

func (m lookupMatcher) Match(ctx context.Context, searched []string) []Hit {
	out := make([]Hit, len(searched))
	if m.lookup == nil {
		return out
	}
	for i, s := range searched {
		if strings.TrimSpace(s) == "" {
			continue
		}
		cand, syn, err := m.lookup.LookupByName(ctx, s)
		if err != nil {
			m.log.Warn().Err(err).Str("searched", s).Msg("vocabulary lookup failed")
			continue
		}
		if cand == "" {
			continue
		}
		if syn == "" {
			syn = cand
		}
		out[i] = Hit{Found: cand, Alias: syn, OK: true}
	}
	return out
}
