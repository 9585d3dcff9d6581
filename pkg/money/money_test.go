package money

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormat(t *testing.T) {
	assert.Equal(t, "-$1,234.56", Format(-123456, "USD"))
	assert.Equal(t, "$0.00", Format(0, "USD"))
}

func TestMajorUnits(t *testing.T) {
	assert.InDelta(t, -12.34, MajorUnits(-1234, "USD"), 0.0001)
}

func TestParseMajorUnits(t *testing.T) {
	tests := []struct {
		in   string
		want int64
	}{
		{"1234.56", 123456},
		{"-0.005", -1},
		{"0.005", 1},
		{"10", 1000},
	}
	for _, tt := range tests {
		got, err := ParseMajorUnits(tt.in, "USD")
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, tt.in)
	}

	_, err := ParseMajorUnits("abc", "USD")
	assert.Error(t, err)

	_, err = ParseMajorUnits("1.00", "NOPE")
	assert.Error(t, err)
}
