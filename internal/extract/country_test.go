package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func TestCountryISO2(t *testing.T) {
	tests := []struct {
		name string
		want string
		ok   bool
	}{
		{"France", "FR", true},
		{"germany", "DE", true},
		{"Netherlands", "NL", true},
		{"United States", "US", true},
		{"Switzerland", "CH", true},
		{"Republic of the Congo", "CG", true},
		{"Democratic Republic of the Congo", "CD", true},
		{"Socialist Republic of Romania", "RO", true},
		{"Sultanate of Oman", "OM", true},
		{"French Republic", "FR", true},
		{"Italian Republic", "IT", true},
		{"Hellenic Republic", "GR", true},
		{"Kingdom of the Netherlands", "NL", true},
		{"Atlantis", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := CountryISO2(tt.name)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestContainsWord(t *testing.T) {
	assert.True(t, containsWord("socialist republic of romania", "romania"))
	assert.False(t, containsWord("socialist republic of romania", "oman"))
	assert.True(t, containsWord("oman", "oman"))
	assert.True(t, containsWord("romania-oman", "oman"))
	assert.False(t, containsWord("nigeria", "niger"))
}

func TestFold(t *testing.T) {
	assert.Equal(t, "cote d'ivoire", fold(" Côte d'Ivoire "))
	assert.Equal(t, "turkiye", fold("Türkiye"))
}
