package model

// Method names a matching strategy.
type Method string

const (
	MethodExact   Method = "exact"
	MethodASCII   Method = "ascii"
	MethodRegex   Method = "regex"
	MethodFuzzy   Method = "fuzzy"
	MethodPubChem Method = "pubchem"
)

// ValidMethods is also the order used for prefix resolution.
var ValidMethods = []Method{MethodExact, MethodASCII, MethodRegex, MethodFuzzy, MethodPubChem}

// Field is what a mapper maps: feature names or unit strings.
type Field string

const (
	FieldName Field = "name"
	FieldUnit Field = "unit"
)

// MatchRecord is one row of the mapping report.
type MatchRecord struct {
	Header   string  `json:"header"`             // feature key
	Name     string  `json:"name"`               // input string
	Modified string  `json:"modified"`           // after replace/remove/strip
	Tidied   string  `json:"tidied,omitempty"`   // after tidy (ascii/fuzzy only)
	Searched string  `json:"searched,omitempty"` // string handed to the winning method
	Found    string  `json:"found,omitempty"`    // matched reference key
	Alias    string  `json:"alias"`
	Method   Method  `json:"method,omitempty"` // empty when nothing matched
	Score    float64 `json:"score,omitempty"`  // fuzzy only
}

// Matched reports whether a strategy claimed the row.
func (r MatchRecord) Matched() bool { return r.Method != "" }

type MatchReport struct {
	Field     Field         `json:"field"`
	Records   []MatchRecord `json:"records"`
	HasTidied bool          `json:"hasTidied"`
}

// SheetName is the report sheet for the field ("Names", "Units").
func (r *MatchReport) SheetName() string {
	switch r.Field {
	case FieldUnit:
		return "Units"
	default:
		return "Names"
	}
}

// Columns lists the report columns, tidied only when it was computed.
func (r *MatchReport) Columns() []string {
	cols := []string{"header", "name", "modified"}
	if r.HasTidied {
		cols = append(cols, "tidied")
	}
	return append(cols, "searched", "found", "alias", "method")
}

// Row renders a record in Columns order.
func (r *MatchReport) Row(i int) []string {
	rec := r.Records[i]
	row := []string{rec.Header, rec.Name, rec.Modified}
	if r.HasTidied {
		row = append(row, rec.Tidied)
	}
	return append(row, rec.Searched, rec.Found, rec.Alias, string(rec.Method))
}
