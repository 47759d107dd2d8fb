package sources

import (
	_ "embed"
	"os"
	"slices"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

//go:embed overrides.yaml
var defaultOverrides []byte

// Overrides holds the hand-maintained name corrections for sources whose
// search misses some registry names.
type Overrides struct {
	Wikipedia []SuffixRule `yaml:"wikipedia"`
	Tickers   []TickerRule `yaml:"tickers"`
}

// SuffixRule appends Suffix to the search name of the listed entities.
type SuffixRule struct {
	Suffix string   `yaml:"suffix"`
	Names  []string `yaml:"names"`
}

// TickerRule rewrites a cleaned name containing one of its keywords. Keep
// selects words ("first", "second", "last", "first_two"); Append adds text.
type TickerRule struct {
	Keep     string   `yaml:"keep"`
	Append   string   `yaml:"append"`
	Contains []string `yaml:"contains"`
}

// LoadOverrides reads overrides from path, or the built-in table when path
// is empty.
func LoadOverrides(path string) (*Overrides, error) {
	data := defaultOverrides
	if path != "" {
		var err error
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, eris.Wrapf(err, "sources: read overrides %s", path)
		}
	}

	var o Overrides
	if err := yaml.Unmarshal(data, &o); err != nil {
		return nil, eris.Wrap(err, "sources: parse overrides")
	}
	for _, r := range o.Tickers {
		switch r.Keep {
		case "", "first", "second", "last", "first_two":
		default:
			return nil, eris.Errorf("sources: unknown ticker rule keep %q", r.Keep)
		}
	}
	return &o, nil
}

// WikipediaQuery returns the Wikipedia search string for a registry name.
func (o *Overrides) WikipediaQuery(name string) string {
	q := CleanName(name)
	for _, r := range o.Wikipedia {
		if slices.Contains(r.Names, name) {
			q += r.Suffix
		}
	}
	return q
}

// TickerQuery returns the symbol search string for a registry name.
func (o *Overrides) TickerQuery(name string) string {
	q := CleanName(name)
	for _, r := range o.Tickers {
		if !containsAny(q, r.Contains) {
			continue
		}
		words := strings.Split(q, " ")
		switch r.Keep {
		case "first":
			q = words[0]
		case "second":
			if len(words) > 1 {
				q = words[1]
			}
		case "last":
			q = words[len(words)-1]
		case "first_two":
			q = strings.Join(words[:min(2, len(words))], " ")
		}
		q += r.Append
	}
	return q
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
