package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"hydro-harmonizer/internal/harmonize/service"
	"hydro-harmonizer/internal/units"
	"hydro-harmonizer/internal/utils"
)

type convertResponse struct {
	From    string   `json:"from"`
	Parsed  string   `json:"parsed"`
	To      string   `json:"to"`
	Factor  float64  `json:"factor"`
	Value   *float64 `json:"value,omitempty"`
	Formula string   `json:"formula,omitempty"`
}

// Convert handles GET /convert?from=mg/l%20N&to=mmol/l[&formula=N][&value=2.5].
// "from" is read with the unit grammar first, so lab spellings work.
func Convert(d *Deps, logger zerolog.Logger) http.HandlerFunc {
	grammar := service.DefaultGrammar()
	return func(w http.ResponseWriter, r *http.Request) {
		log := requestLogger(r, logger)
		q := r.URL.Query()
		from, to := strings.TrimSpace(q.Get("from")), strings.TrimSpace(q.Get("to"))
		if from == "" || to == "" {
			http.Error(w, "from and to are required", http.StatusBadRequest)
			return
		}
		var value *float64
		if raw := strings.TrimSpace(q.Get("value")); raw != "" {
			v, ok := utils.ParseDecimal(raw, ",")
			if !ok {
				http.Error(w, "value is not a number: "+raw, http.StatusBadRequest)
				return
			}
			value = &v
		}
		parsed, ok := grammar.Parse(from)
		if !ok {
			parsed = from
		}
		c, err := d.Engine.Convert(r.Context(), parsed, to, q.Get("formula"))
		if err != nil {
			status := http.StatusInternalServerError
			if errors.Is(err, units.ErrUndefinedUnit) || errors.Is(err, units.ErrDimensionality) ||
				errors.Is(err, units.ErrMolarMass) || errors.Is(err, units.ErrFormula) {
				status = http.StatusUnprocessableEntity
			}
			log.Debug().Err(err).Str("from", from).Str("to", to).Msg("convert")
			http.Error(w, err.Error(), status)
			return
		}
		_, formula := service.SplitFormula(parsed)
		resp := convertResponse{
			From:    from,
			Parsed:  parsed,
			To:      c.Label,
			Factor:  c.Factor,
			Formula: firstNonEmpty(formula, q.Get("formula")),
		}
		if value != nil {
			v := *value * c.Factor
			resp.Value = &v
		}
		if err := writeJSON(w, resp); err != nil {
			log.Error().Err(err).Msg("write json")
		}
	}
}
