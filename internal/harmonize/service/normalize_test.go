package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hydro-harmonizer/internal/harmonize/model"
)

func TestStringListReplace(t *testing.T) {
	in := StringList{"Äpfel µg", "ë", "100%"}
	out := in.Replace(DefaultReplaceRules)

	assert.Equal(t, StringList{"apfel ug", "e", "100percentage"}, out)
	assert.Equal(t, StringList{"Äpfel µg", "ë", "100%"}, in, "input must not change")
}

func TestStringListReplaceWithPolicy(t *testing.T) {
	out, err := StringList{"a-b"}.ReplaceWith([]Rule{{Search: "-", Replace: " "}}, FailOnError)
	require.NoError(t, err)
	assert.Equal(t, StringList{"a b"}, out)

	// empty search strings are skipped instead of inserting everywhere
	out, err = StringList{"ab"}.ReplaceWith([]Rule{{Search: "", Replace: "x"}}, FailOnError)
	require.NoError(t, err)
	assert.Equal(t, StringList{"ab"}, out)
}

func TestEmptyRulesLeaveStringsUnchanged(t *testing.T) {
	in := StringList{"Chloride", "  Natrium (mg/l) ", "Äpfel µg", "", "100%", "NO3-N\t"}
	assert.Equal(t, in, in.Replace(nil).Remove(nil))
	assert.Equal(t, in, in.Replace([]Rule{}).Remove([]string{}))

	trimmed := StringList{"Chloride", "Natrium (mg/l)", "Äpfel µg", "", "100%", "NO3-N"}
	assert.Equal(t, trimmed, modify(trimmed, nil, nil))
}

func TestTidyIsIdempotent(t *testing.T) {
	in := StringList{"Chloride (Cl)", "NO3-N", "Äpfel µg/l", "  Ijzer\tTotaal ", "100%", "", "CaCO3 · 2H2O"}
	once := in.Tidy()
	assert.Equal(t, once, once.Tidy())
	assert.Equal(t, "chloride cl", once[0])
}

func TestModifyRemovesLabTerms(t *testing.T) {
	got := modify([]string{"Natrium icp", "Hg koude damp aas", "  Cl  "}, DefaultReplaceRules, DefaultRemoveTerms)
	assert.Equal(t, StringList{"Natrium", "Hg", "Cl"}, got)
}

func TestStripParenthesesAndTidy(t *testing.T) {
	l := StringList{"Na (opgelost)", "Nitraat-N (NO3)"}
	assert.Equal(t, StringList{"Na", "Nitraat-N"}, l.StripParentheses().Strip())
	assert.Equal(t, StringList{"na opgelost", "nitraatn no3"}, l.Tidy())
}

func TestRulesFrom(t *testing.T) {
	rules, err := RulesFrom(map[string]any{"b": "2", "a": "1"})
	require.NoError(t, err)
	assert.Equal(t, []Rule{{"a", "1"}, {"b", "2"}}, rules)

	rules, err = RulesFrom(nil)
	require.NoError(t, err)
	assert.Nil(t, rules)

	_, err = RulesFrom(map[string]any{"a": 1})
	assert.ErrorIs(t, err, model.ErrConfig)

	_, err = RulesFrom("a=b")
	assert.ErrorIs(t, err, model.ErrConfig)
}

func TestParseNameAndUnit(t *testing.T) {
	cases := []struct{ in, name, unit string }{
		{"Na (mg/l)", "Na", "mg/l"},
		{"NO3 [mg N/l]", "NO3", "mg N/l"},
		{"Ca tot mg/l", "Ca", "tot mg/l"},
		{"pH", "pH", ""},
		{"", "", ""},
	}
	for _, c := range cases {
		name, unit := ParseNameAndUnit(c.in)
		assert.Equal(t, c.name, name, c.in)
		assert.Equal(t, c.unit, unit, c.in)
	}
}
