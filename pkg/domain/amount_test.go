package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "givebridge/pkg/domain-errors"
)

func TestParseAmount(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Amount
		wantErr bool
	}{
		{"whole units", "10", 1000, false},
		{"two decimal places", "10.00", 1000, false},
		{"one decimal place pads to cents", "7.5", 750, false},
		{"cents only", "0.99", 99, false},
		{"zero parses", "0", 0, false},
		{"trims surrounding whitespace", " 25.00 ", 2500, false},
		{"large value", "1000000.00", 100000000, false},

		{"empty string", "", 0, true},
		{"negative rejected", "-5.00", 0, true},
		{"too many decimal places", "1.001", 0, true},
		{"not a number", "ten", 0, true},
		{"letters in fraction", "1.x0", 0, true},
		{"double dot", "1.2.3", 0, true},
		{"signed fraction negative", "7.-5", 0, true},
		{"signed fraction positive", "7.+5", 0, true},
		{"explicit plus sign", "+7.50", 0, true},
		{"negative fraction only", "0.-9", 0, true},
		{"bare dot", ".", 0, true},
		{"missing whole part", ".50", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseAmount(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAmount_String(t *testing.T) {
	assert.Equal(t, "10.00", Amount(1000).String())
	assert.Equal(t, "0.05", Amount(5).String())
	assert.Equal(t, "0.00", Amount(0).String())
	assert.Equal(t, "-3.25", Amount(-325).String())
}

func TestAmount_RoundTrip(t *testing.T) {
	for _, raw := range []string{"0.01", "1.00", "99.99", "12345.67"} {
		parsed, err := ParseAmount(raw)
		require.NoError(t, err)
		assert.Equal(t, raw, parsed.String())
	}
}

func TestAmount_IsPositive(t *testing.T) {
	assert.True(t, Amount(1).IsPositive())
	assert.False(t, Amount(0).IsPositive())
	assert.False(t, Amount(-1).IsPositive())
}
