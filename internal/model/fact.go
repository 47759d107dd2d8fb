package model

// Variable is one of the six enriched attributes of an entity.
type Variable string

const (
	VarCountry   Variable = "COUNTRY"
	VarEmployees Variable = "EMPLOYEES"
	VarTurnover  Variable = "TURNOVER"
	VarAssets    Variable = "ASSETS"
	VarWebsite   Variable = "WEBSITE"
	VarActivity  Variable = "ACTIVITY"
)

// Variables lists every variable in submission order.
var Variables = []Variable{
	VarCountry,
	VarEmployees,
	VarTurnover,
	VarAssets,
	VarWebsite,
	VarActivity,
}

// Valid reports whether v is one of the six known variables.
func (v Variable) Valid() bool {
	for _, known := range Variables {
		if v == known {
			return true
		}
	}
	return false
}

// NoCurrency marks a fact whose value is not a monetary amount.
const NoCurrency = "N/A"

// Fact is a single (variable, value) pair extracted for one entity from
// one source. Value holds a string, int64 or float64.
type Fact struct {
	EntityID   int      `json:"entity_id"`
	EntityName string   `json:"entity_name"`
	Variable   Variable `json:"variable"`
	SourceURL  string   `json:"source_url"`
	Value      any      `json:"value"`
	Currency   string   `json:"currency"`
	Year       *int     `json:"year"`
}

// NewFact builds a fact for e with the default currency.
func NewFact(e Entity, v Variable, sourceURL string, value any, year *int) Fact {
	return Fact{
		EntityID:   e.ID,
		EntityName: e.Name,
		Variable:   v,
		SourceURL:  sourceURL,
		Value:      value,
		Currency:   NoCurrency,
		Year:       year,
	}
}

// Citation references one external document consulted for an entity.
type Citation struct {
	EntityID   int     `json:"entity_id"`
	EntityName string  `json:"entity_name"`
	SourceName string  `json:"source_name"`
	URL        string  `json:"url"`
	Year       int     `json:"year"`
	Website    *string `json:"mne_website,omitempty"`
	NationalID *string `json:"mne_national_id,omitempty"`
	Activity   *string `json:"mne_activity,omitempty"`
}

// AnnualReport is the discovered annual financial report of an entity.
type AnnualReport struct {
	EntityID   int     `json:"entity_id"`
	EntityName string  `json:"entity_name"`
	PDFURL     *string `json:"pdf_url"`
	Year       *int    `json:"year"`
}

// SearchResult is one hit returned by a web search provider.
type SearchResult struct {
	URL         string `json:"url"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T {
	return &v
}
