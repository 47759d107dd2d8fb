package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVariableValid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		v    Variable
		want bool
	}{
		{VarCountry, true},
		{VarEmployees, true},
		{VarTurnover, true},
		{VarAssets, true},
		{VarWebsite, true},
		{VarActivity, true},
		{Variable("Country"), false},
		{Variable(""), false},
	}

	for _, tt := range tests {
		t.Run(string(tt.v), func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.v.Valid())
		})
	}
}

func TestVariablesOrder(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []Variable{
		"COUNTRY", "EMPLOYEES", "TURNOVER", "ASSETS", "WEBSITE", "ACTIVITY",
	}, Variables)
}

func TestNewFactDefaultsCurrency(t *testing.T) {
	t.Parallel()

	e := Entity{ID: 7, Name: "ACME"}
	f := NewFact(e, VarEmployees, "https://example.com", int64(120), Ptr(2023))

	assert.Equal(t, 7, f.EntityID)
	assert.Equal(t, "ACME", f.EntityName)
	assert.Equal(t, NoCurrency, f.Currency)
	assert.Equal(t, 2023, *f.Year)
}
