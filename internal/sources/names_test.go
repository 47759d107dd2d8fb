package sources

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func TestCleanName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"AIRBUS SE", "AIRBUS SE"},
		{"SIEMENS AG", "SIEMENS"},
		{"BP P.L.C.", "BP"},
		{"VOLVO AKTIEBOLAGET (PUBL)", "VOLVO"},
		{"L OREAL", "L'OREAL"},
		{"ENI SOCIETA PER AZIONI", "ENI s.p.a."},
		{"KRKA DD NOVO MESTO", "KRKA D D"},
		{"MERCK GROUP", "MERCK KGAA"},
		{"  HEINEKEN   N.V. ", "HEINEKEN NV"},
		{"AGRICOLA", "AGRICOLA"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, CleanName(tt.in))
		})
	}
}

func TestRegisterName(t *testing.T) {
	assert.Equal(t, "TOTALENERGIES SE", registerName("TOTALENERGIES SE"))
	assert.Equal(t, "SANOFI", registerName("SANOFI S A"))
}

func TestDefaultOverrides(t *testing.T) {
	o, err := LoadOverrides("")
	require.NoError(t, err)

	assert.Equal(t, "THALES (group)", o.WikipediaQuery("THALES"))
	assert.Equal(t, "CRH (group)", o.WikipediaQuery("CRH PLC"))
	assert.Equal(t, "AMAZON (company)", o.WikipediaQuery("AMAZON"))
	assert.Equal(t, "THALES SA", o.WikipediaQuery("THALES SA"))

	assert.Equal(t, "NESTLE", o.TickerQuery("NESTLE SA"))
	assert.Equal(t, "PACIFIC", o.TickerQuery("SWIRE PACIFIC LIMITED"))
	assert.Equal(t, "MAERSK", o.TickerQuery("A P MOLLER MAERSK"))
	assert.Equal(t, "MOL HUNGARIAN", o.TickerQuery("MOL HUNGARIAN OIL AND GAS PLC"))
	assert.Equal(t, "ASSECO POLAND", o.TickerQuery("ASSECO"))
	assert.Equal(t, "SWIRE", o.TickerQuery("SWIRE"))
	assert.Equal(t, "TOTALENERGIES SE", o.TickerQuery("TOTALENERGIES SE"))
}

func TestLoadOverridesFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "overrides.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
wikipedia:
  - suffix: " (bank)"
    names: [ING]
tickers:
  - keep: last
    contains: [GROUPE]
`), 0o644))

	o, err := LoadOverrides(path)
	require.NoError(t, err)
	assert.Equal(t, "ING (bank)", o.WikipediaQuery("ING"))
	assert.Equal(t, "GROUPE", o.TickerQuery("SEB GROUPE"))
}

func TestLoadOverridesErrors(t *testing.T) {
	_, err := LoadOverrides(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("tickers:\n  - keep: middle\n"), 0o644))
	_, err = LoadOverrides(path)
	assert.ErrorContains(t, err, "middle")
}
