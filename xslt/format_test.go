package xslt

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatNumber(t *testing.T) {
	tests := []struct {
		Value   float64
		Picture string
		Want    string
	}{
		{Value: 1234.5, Picture: "#,##0.00", Want: "1,234.50"},
		{Value: 1234567.891, Picture: "#,##0.##", Want: "1,234,567.89"},
		{Value: 0.5, Picture: "#.00", Want: ".50"},
		{Value: 0, Picture: "#", Want: "0"},
		{Value: 7, Picture: "000", Want: "007"},
		{Value: -7, Picture: "000", Want: "-007"},
		{Value: -7, Picture: "000;(000)", Want: "(007)"},
		{Value: 0.25, Picture: "#%", Want: "25%"},
		{Value: 0.125, Picture: "#‰", Want: "125‰"},
		{Value: 12.3, Picture: "'#'0.0", Want: "#12.3"},
		{Value: 5, Picture: "0' o''clock'", Want: "5 o'clock"},
		{Value: 3.14159, Picture: "0.###", Want: "3.142"},
		{Value: math.Inf(1), Picture: "#,##0.00", Want: "Infinity"},
		{Value: math.Inf(-1), Picture: "0", Want: "-Infinity"},
	}
	df := DefaultDecimalFormat()
	for _, c := range tests {
		got, err := FormatNumber(c.Value, c.Picture, df)
		require.NoError(t, err, c.Picture)
		assert.Equal(t, c.Want, got, "%f with %q", c.Value, c.Picture)
	}
}

func TestFormatNumberNaN(t *testing.T) {
	df := DefaultDecimalFormat()
	df.NaN = "not-a-number"
	for _, pic := range []string{"#,##0.00", "0", "'x'#"} {
		got, err := FormatNumber(math.NaN(), pic, df)
		require.NoError(t, err)
		assert.Equal(t, "not-a-number", got)
	}
}

func TestFormatNumberInfinity(t *testing.T) {
	df := DefaultDecimalFormat()
	df.Infinity = "inf"
	for _, pic := range []string{"#,##0.00", "bad;;;", ""} {
		got, err := FormatNumber(math.Inf(1), pic, df)
		require.NoError(t, err, pic)
		assert.Equal(t, "inf", got, pic)

		got, err = FormatNumber(math.Inf(-1), pic, df)
		require.NoError(t, err, pic)
		assert.Equal(t, "-inf", got, pic)
	}
	_, err := FormatNumber(1, "bad;;;", df)
	assert.Error(t, err)
}

func TestFormatNumberCustom(t *testing.T) {
	df := DefaultDecimalFormat()
	require.NoError(t, df.set(AttrDecimalSeparator, ","))
	require.NoError(t, df.set(AttrGroupingSeparator, "."))
	got, err := FormatNumber(1234.5, "#.##0,00", df)
	require.NoError(t, err)
	assert.Equal(t, "1.234,50", got)

	assert.ErrorIs(t, df.set(AttrZeroDigit, "1"), ErrInvalidValue)
	assert.ErrorIs(t, df.set(AttrMinusSign, "--"), ErrInvalidValue)
}

func TestFormatNumberInvalid(t *testing.T) {
	df := DefaultDecimalFormat()
	for _, pic := range []string{"", "0.0.0", "#;#;#", "0#", "'abc", "#,"} {
		_, err := FormatNumber(1, pic, df)
		assert.ErrorIs(t, err, ErrInvalidValue, pic)
	}
}
