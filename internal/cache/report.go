package cache

import (
	"encoding/json"

	"github.com/rotisserie/eris"
)

// ReportEntry is a cached annual report location. It is stored as a two
// element JSON array: [year, url].
type ReportEntry struct {
	Year int
	URL  string
}

// MarshalJSON encodes the entry as [year, url].
func (e ReportEntry) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{e.Year, e.URL})
}

// UnmarshalJSON decodes an entry from [year, url].
func (e *ReportEntry) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return eris.Wrap(err, "cache: decode report entry")
	}
	if len(raw) != 2 {
		return eris.Errorf("cache: report entry has %d elements, want 2", len(raw))
	}
	if err := json.Unmarshal(raw[0], &e.Year); err != nil {
		return eris.Wrap(err, "cache: decode report year")
	}
	if err := json.Unmarshal(raw[1], &e.URL); err != nil {
		return eris.Wrap(err, "cache: decode report url")
	}
	return nil
}

// Reports maps entity names to their annual report location.
type Reports = File[ReportEntry]

// Tickers maps entity names to ticker symbols.
type Tickers = File[string]
