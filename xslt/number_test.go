package xslt

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConvertNumbersToString(t *testing.T) {
	tests := []struct {
		Picture string
		Values  []int
		Want    string
	}{
		{Picture: "01", Values: []int{7}, Want: "07"},
		{Picture: "A", Values: []int{1, 2, 28}, Want: "A.B.AB"},
		{Picture: "i", Values: []int{0}, Want: ""},
		{Picture: "I", Values: []int{1999}, Want: "MCMXCIX"},
		{Picture: "1", Values: []int{12}, Want: "12"},
		{Picture: "", Values: []int{3}, Want: "3"},
		{Picture: "(1)", Values: []int{4}, Want: "(4)"},
		{Picture: "1.a.i ", Values: []int{2, 3, 4, 5}, Want: "2.c.iv.v "},
		{Picture: "1-01", Values: []int{1, 2, 3}, Want: "1-02-03"},
		{Picture: "a", Values: []int{27}, Want: "aa"},
		{Picture: "x", Values: []int{3}, Want: "3"},
		{Picture: "Z", Values: []int{100000000}, Want: "100000000"},
		{Picture: "i", Values: []int{3999}, Want: "mmmcmxcix"},
		{Picture: "I", Values: []int{4000}, Want: "4000"},
		{Picture: "i", Values: []int{100000000000}, Want: "100000000000"},
		{Picture: "7", Values: []int{5}, Want: "5"},
		{Picture: "١", Values: []int{12}, Want: "١٢"},
		{Picture: "α", Values: []int{2}, Want: "β"},
	}
	for _, c := range tests {
		got := ConvertNumbersToString(c.Picture, c.Values)
		assert.Equal(t, c.Want, got, "picture %q with %v", c.Picture, c.Values)
	}
}

func TestNumberFormatGrouping(t *testing.T) {
	f := NumberFormat{
		Picture:           "1",
		GroupingSeparator: ",",
		GroupingSize:      3,
	}
	assert.Equal(t, "1,234,567", f.Format([]int{1234567}))
	assert.Equal(t, "123", f.Format([]int{123}))

	f.Picture = "0001"
	f.GroupingSeparator = " "
	f.GroupingSize = 2
	assert.Equal(t, "00 42", f.Format([]int{42}))
}

func TestZeroDigit(t *testing.T) {
	tests := []struct {
		Rune rune
		Zero rune
		Ok   bool
	}{
		{Rune: '0', Zero: '0', Ok: true},
		{Rune: '9', Zero: '0', Ok: true},
		{Rune: '٣', Zero: '٠', Ok: true},
		{Rune: 'a', Ok: false},
	}
	for _, c := range tests {
		z, ok := zeroDigit(c.Rune)
		assert.Equal(t, c.Ok, ok, "%c", c.Rune)
		if c.Ok {
			assert.Equal(t, c.Zero, z, "%c", c.Rune)
		}
	}
}
