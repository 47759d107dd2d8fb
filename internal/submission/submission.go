// Package submission flattens pipeline results into the discovery and
// extraction tables.
package submission

import (
	"cmp"
	"slices"
	"strconv"

	"github.com/sells-group/mne-enrich/internal/model"
)

// Discovery row types.
const (
	TypeFinRep = "FIN_REP"
	TypeOther  = "OTHER"
)

// OtherPerEntity is the fixed number of OTHER rows per entity.
const OtherPerEntity = 5

// DiscoveryColumns is the discovery table header.
var DiscoveryColumns = []string{"ID", "NAME", "TYPE", "SRC", "REFYEAR"}

// ExtractionColumns is the extraction table header.
var ExtractionColumns = []string{"ID", "NAME", "VARIABLE", "SRC", "VALUE", "CURRENCY", "REFYEAR"}

// DiscoveryRow is one source document of an entity.
type DiscoveryRow struct {
	ID      int    `json:"ID"`
	Name    string `json:"NAME"`
	Type    string `json:"TYPE"`
	Src     string `json:"SRC"`
	RefYear *int   `json:"REFYEAR"`
}

// ExtractionRow is the submitted value of one variable of an entity.
// Value is nil for a missing variable.
type ExtractionRow struct {
	ID       int            `json:"ID"`
	Name     string         `json:"NAME"`
	Variable model.Variable `json:"VARIABLE"`
	Src      string         `json:"SRC"`
	Value    any            `json:"VALUE"`
	Currency string         `json:"CURRENCY"`
	RefYear  *int           `json:"REFYEAR"`
}

// BuildDiscovery returns, for every result, one FIN_REP row and exactly
// OtherPerEntity OTHER rows. OTHER rows take the FIN_REP year, except blank
// rows which have no year. Rows are sorted by ID then TYPE.
func BuildDiscovery(results []model.EntityResult) []DiscoveryRow {
	rows := make([]DiscoveryRow, 0, len(results)*(OtherPerEntity+1))
	for _, r := range results {
		e := r.Entity
		fin := DiscoveryRow{ID: e.ID, Name: e.Name, Type: TypeFinRep}
		if r.Report != nil {
			if r.Report.PDFURL != nil {
				fin.Src = *r.Report.PDFURL
			}
			fin.RefYear = r.Report.Year
		}
		rows = append(rows, fin)

		for i := range OtherPerEntity {
			row := DiscoveryRow{ID: e.ID, Name: e.Name, Type: TypeOther}
			if i < len(r.Citations) && r.Citations[i].URL != "" {
				row.Src = r.Citations[i].URL
				row.RefYear = fin.RefYear
			}
			rows = append(rows, row)
		}
	}

	slices.SortStableFunc(rows, func(a, b DiscoveryRow) int {
		if c := cmp.Compare(a.ID, b.ID); c != 0 {
			return c
		}
		return cmp.Compare(a.Type, b.Type)
	})
	return rows
}

// BuildExtraction returns exactly one row per variable for every result, in
// model.Variables order. The first fact of a variable is used; a missing
// variable yields a blank row. Rows without a source have no year.
func BuildExtraction(results []model.EntityResult) []ExtractionRow {
	rows := make([]ExtractionRow, 0, len(results)*len(model.Variables))
	for _, r := range results {
		for _, v := range model.Variables {
			row := ExtractionRow{ID: r.Entity.ID, Name: r.Entity.Name, Variable: v}
			if i := slices.IndexFunc(r.Facts, func(f model.Fact) bool { return f.Variable == v }); i >= 0 {
				f := r.Facts[i]
				row.Src = f.SourceURL
				row.Value = f.Value
				row.Currency = f.Currency
				row.RefYear = f.Year
			}
			if row.Src == "" {
				row.RefYear = nil
			}
			rows = append(rows, row)
		}
	}
	return rows
}

// Record renders the row as CSV fields.
func (r DiscoveryRow) Record() []string {
	return []string{strconv.Itoa(r.ID), r.Name, r.Type, r.Src, formatYear(r.RefYear)}
}

// Record renders the row as CSV fields.
func (r ExtractionRow) Record() []string {
	return []string{
		strconv.Itoa(r.ID),
		r.Name,
		string(r.Variable),
		r.Src,
		FormatValue(r.Value),
		r.Currency,
		formatYear(r.RefYear),
	}
}

// FormatValue renders a fact value, or "" for nil.
func FormatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		return ""
	}
}

func formatYear(y *int) string {
	if y == nil {
		return ""
	}
	return strconv.Itoa(*y)
}
