package wikipedia

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Entity is a Wikidata item document.
type Entity struct {
	ID     string             `json:"id"`
	Labels map[string]Label   `json:"labels"`
	Claims map[string][]Claim `json:"claims"`
}

// Label is a language-tagged label.
type Label struct {
	Language string `json:"language"`
	Value    string `json:"value"`
}

// Claim is one statement about a property.
type Claim struct {
	MainSnak   Snak              `json:"mainsnak"`
	Qualifiers map[string][]Snak `json:"qualifiers"`
}

// Snak carries the value of a claim or qualifier. DataValue is nil for
// "no value" and "unknown value" snaks.
type Snak struct {
	DataValue *DataValue `json:"datavalue"`
}

// DataValue is a typed Wikidata value.
type DataValue struct {
	Type  string          `json:"type"`
	Value json.RawMessage `json:"value"`
}

// Label returns the label in lang.
func (e *Entity) Label(lang string) (string, bool) {
	l, ok := e.Labels[lang]
	return l.Value, ok && l.Value != ""
}

// EntityID returns the referenced item id of a wikibase-entityid value.
func (s Snak) EntityID() (string, bool) {
	if s.DataValue == nil || s.DataValue.Type != "wikibase-entityid" {
		return "", false
	}
	var v struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(s.DataValue.Value, &v); err != nil || v.ID == "" {
		return "", false
	}
	return v.ID, true
}

// String returns a string value.
func (s Snak) String() (string, bool) {
	if s.DataValue == nil || s.DataValue.Type != "string" {
		return "", false
	}
	var v string
	if err := json.Unmarshal(s.DataValue.Value, &v); err != nil {
		return "", false
	}
	return v, true
}

// Quantity returns the amount of a quantity value and the QID of its unit
// (empty for unitless quantities).
func (s Snak) Quantity() (int64, string, bool) {
	if s.DataValue == nil || s.DataValue.Type != "quantity" {
		return 0, "", false
	}
	var v struct {
		Amount string `json:"amount"`
		Unit   string `json:"unit"`
	}
	if err := json.Unmarshal(s.DataValue.Value, &v); err != nil {
		return 0, "", false
	}
	amount, err := strconv.ParseInt(strings.TrimPrefix(v.Amount, "+"), 10, 64)
	if err != nil {
		// Fractional amounts such as "+1.5E9" are truncated.
		f, ferr := strconv.ParseFloat(strings.TrimPrefix(v.Amount, "+"), 64)
		if ferr != nil {
			return 0, "", false
		}
		amount = int64(f)
	}

	unit := ""
	if v.Unit != "" && v.Unit != "1" {
		unit = v.Unit[strings.LastIndex(v.Unit, "/")+1:]
	}
	return amount, unit, true
}

// Year returns the year of a time value such as "+2023-12-31T00:00:00Z".
func (s Snak) Year() (int, bool) {
	if s.DataValue == nil || s.DataValue.Type != "time" {
		return 0, false
	}
	var v struct {
		Time string `json:"time"`
	}
	if err := json.Unmarshal(s.DataValue.Value, &v); err != nil || len(v.Time) < 5 {
		return 0, false
	}
	year, err := strconv.Atoi(v.Time[1:5])
	if err != nil {
		return 0, false
	}
	return year, true
}
