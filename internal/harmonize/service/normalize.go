package service

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"hydro-harmonizer/internal/harmonize/model"
)

// Rule replaces every occurrence of Search with Replace.
type Rule struct {
	Search  string `json:"search" yaml:"search"`
	Replace string `json:"replace" yaml:"replace"`
}

// DefaultReplaceRules folds the accents and symbols seen in Dutch lab exports.
var DefaultReplaceRules = []Rule{
	{"Ä", "a"}, {"ä", "a"}, {"Ë", "e"}, {"ë", "e"},
	{"Ö", "o"}, {"ö", "o"}, {"ï", "i"}, {"Ï", "i"},
	{"μ", "u"}, {"µ", "u"}, {"%", "percentage"},
}

// DefaultRemoveTerms are lab-method tokens that never belong to a feature name.
var DefaultRemoveTerms = []string{
	"icpms", "icpaes", "gf aas", "icp", "koude damp aas", "koude damp",
	"berekend", "opdrachtgever", "gehalte", "kretl", "tijdens meting",
	"na destructie", "destructie", "na aanzuren", "aanzuren", "bij",
}

// DefaultFilterTerms mark filtered-sample variants; not removed by default.
var DefaultFilterTerms = []string{
	"gefiltreerd", "na filtratie", "filtered", "filtration", " gef", "filtratie",
}

// RulesFromMap builds an ordered rule set; keys are sorted so runs are repeatable.
func RulesFromMap(m map[string]string) []Rule {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]Rule, 0, len(keys))
	for _, k := range keys {
		out = append(out, Rule{Search: k, Replace: m[k]})
	}
	return out
}

// RulesFrom accepts the loosely typed rule sets that come out of config
// files and request bodies.
func RulesFrom(v any) ([]Rule, error) {
	switch r := v.(type) {
	case nil:
		return nil, nil
	case []Rule:
		return r, nil
	case map[string]string:
		return RulesFromMap(r), nil
	case map[string]any:
		m := make(map[string]string, len(r))
		for k, val := range r {
			s, ok := val.(string)
			if !ok {
				return nil, model.NewConfigError("replace", fmt.Sprintf("replacement for %q must be a string, got %T", k, val))
			}
			m[k] = s
		}
		return RulesFromMap(m), nil
	default:
		return nil, model.NewConfigError("replace", fmt.Sprintf("replace rules must be a mapping, got %T", v))
	}
}

// StringList is the unit all normalization steps work on. Every operation
// returns a new list of the same length and order.
type StringList []string

// ReplacePolicy decides what a failed replacement pass returns.
type ReplacePolicy int

const (
	// KeepOriginalOnFailure returns the input list unchanged.
	KeepOriginalOnFailure ReplacePolicy = iota
	// FailOnError returns the error to the caller.
	FailOnError
)

// Replace applies rules in order under KeepOriginalOnFailure.
func (l StringList) Replace(rules []Rule) StringList {
	out, _ := l.ReplaceWith(rules, KeepOriginalOnFailure)
	return out
}

// ReplaceWith applies rules in order. The strings package only panics when
// a result would overflow the maximum string length; that panic is the one
// failure handled according to policy.
func (l StringList) ReplaceWith(rules []Rule, policy ReplacePolicy) (out StringList, err error) {
	defer func() {
		if r := recover(); r != nil {
			out = l.clone()
			if policy == FailOnError {
				err = fmt.Errorf("replace: %v", r)
			}
		}
	}()
	out = l.clone()
	for _, r := range rules {
		if r.Search == "" {
			continue
		}
		for i := range out {
			out[i] = strings.ReplaceAll(out[i], r.Search, r.Replace)
		}
	}
	return out, nil
}

// Remove deletes every term, in order.
func (l StringList) Remove(terms []string) StringList {
	rules := make([]Rule, len(terms))
	for i, t := range terms {
		rules[i] = Rule{Search: t}
	}
	return l.Replace(rules)
}

func (l StringList) Strip() StringList {
	out := l.clone()
	for i := range out {
		out[i] = strings.TrimSpace(out[i])
	}
	return out
}

var reParentheses = regexp.MustCompile(`\(.*\)`)

// StripParentheses drops everything between the first "(" and the last ")".
func (l StringList) StripParentheses() StringList {
	out := l.clone()
	for i := range out {
		out[i] = reParentheses.ReplaceAllString(out[i], "")
	}
	return out
}

// Tidy lower-cases, drops non-ASCII and keeps only letters, digits and
// whitespace. Only ascii and fuzzy matching see tidied strings.
func (l StringList) Tidy() StringList {
	out := l.clone()
	for i := range out {
		out[i] = tidy(out[i])
	}
	return out
}

func (l StringList) clone() StringList {
	out := make(StringList, len(l))
	copy(out, l)
	return out
}

func tidy(s string) string {
	s = strings.ToLower(s)
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ', r == '\t', r == '\n', r == '\r', r == '\f', r == '\v':
			b.WriteRune(r)
		}
	}
	return b.String()
}

// modify is the replace → remove → strip chain every mapper input goes through.
func modify(in []string, replace []Rule, remove []string) StringList {
	return StringList(in).Replace(replace).Remove(remove).Strip()
}

var reBrackets = regexp.MustCompile(`[()\[\]{}]`)

// ParseNameAndUnit splits a header such as "Na (mg/l)" or "NO3 [mg N/l]" at
// the first whitespace. Headers with several spaces ("Ca tot mg/l") put
// everything after the first word into the unit.
func ParseNameAndUnit(s string) (name, unit string) {
	f := strings.Fields(s)
	switch len(f) {
	case 0:
		return "", ""
	case 1:
		return f[0], ""
	}
	rest := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(s), f[0]))
	return f[0], reBrackets.ReplaceAllString(rest, "")
}
