package extract

import (
	"strings"
	"sync"
	"unicode"

	"github.com/biter777/countries"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// officialNames covers long-form state names the registry has no alias for.
var officialNames = map[string]string{
	"french republic":             "FR",
	"italian republic":            "IT",
	"hellenic republic":           "GR",
	"federal republic of germany": "DE",
	"kingdom of spain":            "ES",
	"kingdom of the netherlands":  "NL",
	"kingdom of belgium":          "BE",
	"kingdom of sweden":           "SE",
	"kingdom of denmark":          "DK",
	"kingdom of norway":           "NO",
	"portuguese republic":         "PT",
	"republic of austria":         "AT",
	"swiss confederation":         "CH",
	"grand duchy of luxembourg":   "LU",
	"republic of ireland":         "IE",
	"republic of finland":         "FI",
	"republic of poland":          "PL",
	"czech republic":              "CZ",
	"slovak republic":             "SK",
	"republic of korea":           "KR",
	"people's republic of china":  "CN",
}

type countryName struct {
	folded string
	alpha2 string
}

var countryIndex = sync.OnceValue(func() []countryName {
	var idx []countryName
	for _, c := range countries.All() {
		if c.Alpha2() == "" {
			continue
		}
		idx = append(idx, countryName{folded: fold(c.String()), alpha2: c.Alpha2()})
	}
	return idx
})

// fold lower-cases s and strips diacritics.
func fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.ToLower(strings.TrimSpace(out))
}

// containsWord reports whether needle occurs in s bounded by non-letters.
func containsWord(s, needle string) bool {
	for i := 0; ; {
		j := strings.Index(s[i:], needle)
		if j < 0 {
			return false
		}
		start, end := i+j, i+j+len(needle)
		if !letterAt(s, start-1) && !letterAt(s, end) {
			return true
		}
		i = start + 1
	}
}

func letterAt(s string, i int) bool {
	if i < 0 || i >= len(s) {
		return false
	}
	return unicode.IsLetter(rune(s[i])) || s[i] >= 0x80
}

// CountryISO2 resolves a country name to its ISO 3166-1 alpha-2 code. Known
// names, aliases and official long forms resolve directly. Otherwise the
// longest registry name found as whole words in the input wins; failing
// that, the shortest registry name holding the input as whole words.
func CountryISO2(name string) (string, bool) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", false
	}
	q := fold(name)
	if code, ok := officialNames[q]; ok {
		return code, true
	}
	idx := countryIndex()
	for _, c := range idx {
		if c.folded == q {
			return c.alpha2, true
		}
	}
	if c := countries.ByName(name); c != countries.Unknown && c.Alpha2() != "" {
		return c.Alpha2(), true
	}

	var inner, outer *countryName
	for i := range idx {
		c := &idx[i]
		if containsWord(q, c.folded) && (inner == nil || len(c.folded) > len(inner.folded)) {
			inner = c
		}
		if containsWord(c.folded, q) && (outer == nil || len(c.folded) < len(outer.folded)) {
			outer = c
		}
	}
	switch {
	case inner != nil:
		return inner.alpha2, true
	case outer != nil:
		return outer.alpha2, true
	}
	return "", false
}
