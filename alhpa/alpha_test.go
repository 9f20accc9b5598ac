package alpha

import (
	"testing"
)

func TestFormat(t *testing.T) {
	tests := []struct {
		Char  Char
		Value int
		Want  string
	}{
		{Char: Upper(), Value: 1, Want: "A"},
		{Char: Upper(), Value: 26, Want: "Z"},
		{Char: Upper(), Value: 27, Want: "AA"},
		{Char: Upper(), Value: 28, Want: "AB"},
		{Char: Lower(), Value: 52, Want: "az"},
		{Char: Lower(), Value: 703, Want: "aaa"},
		{Char: Lower(), Value: 0, Want: ""},
	}
	for _, c := range tests {
		got := c.Char.Format(c.Value)
		if got != c.Want {
			t.Errorf("%d: result mismatched! want %s, got %s", c.Value, c.Want, got)
		}
	}
}

func TestRoman(t *testing.T) {
	tests := []struct {
		Value int
		Want  string
	}{
		{Value: 0, Want: ""},
		{Value: 1, Want: "i"},
		{Value: 4, Want: "iv"},
		{Value: 1999, Want: "mcmxcix"},
		{Value: 2024, Want: "mmxxiv"},
		{Value: MaxRoman, Want: "mmmcmxcix"},
		{Value: MaxRoman + 1, Want: ""},
	}
	for _, c := range tests {
		if got := Roman(c.Value); got != c.Want {
			t.Errorf("%d: result mismatched! want %s, got %s", c.Value, c.Want, got)
		}
	}
	if got := UpperRoman(14); got != "XIV" {
		t.Errorf("uppercase roman mismatched! want XIV, got %s", got)
	}
}

func TestLookup(t *testing.T) {
	tests := []struct {
		First rune
		Ok    bool
	}{
		{First: 'a', Ok: true},
		{First: 'A', Ok: true},
		{First: 'α', Ok: true},
		{First: 'Α', Ok: true},
		{First: 'x', Ok: false},
		{First: 'Z', Ok: false},
		{First: '1', Ok: false},
	}
	for _, c := range tests {
		if _, ok := Lookup(c.First); ok != c.Ok {
			t.Errorf("%c: lookup mismatched! want %t, got %t", c.First, c.Ok, ok)
		}
	}
}
