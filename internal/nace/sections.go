// Package nace classifies free-text company activities into NACE Rev. 2
// divisions and builds the document collection the classifier retrieves from.
package nace

import (
	"strconv"
)

// sectionRanges maps each NACE Rev. 2 section to its inclusive division range.
var sectionRanges = []struct {
	section  string
	from, to int
}{
	{"A", 1, 3},
	{"B", 5, 9},
	{"C", 10, 33},
	{"D", 35, 35},
	{"E", 36, 39},
	{"F", 41, 43},
	{"G", 45, 47},
	{"H", 49, 53},
	{"I", 55, 56},
	{"J", 58, 63},
	{"K", 64, 66},
	{"L", 68, 68},
	{"M", 69, 75},
	{"N", 77, 82},
	{"O", 84, 84},
	{"P", 85, 85},
	{"Q", 86, 88},
	{"R", 90, 93},
	{"S", 94, 96},
	{"T", 97, 98},
	{"U", 99, 99},
}

// Section returns the section letter of a two-digit division code.
func Section(division string) (string, bool) {
	if len(division) != 2 {
		return "", false
	}
	n, err := strconv.Atoi(division)
	if err != nil {
		return "", false
	}
	for _, r := range sectionRanges {
		if n >= r.from && n <= r.to {
			return r.section, true
		}
	}
	return "", false
}

// Divisions lists every two-digit code that belongs to a section.
func Divisions() []string {
	var out []string
	for _, r := range sectionRanges {
		for n := r.from; n <= r.to; n++ {
			out = append(out, twoDigits(n))
		}
	}
	return out
}

func twoDigits(n int) string {
	if n < 10 {
		return "0" + strconv.Itoa(n)
	}
	return strconv.Itoa(n)
}
