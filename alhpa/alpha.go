// Package alpha converts positive integers to alphabetic and roman
// numbering sequences.
package alpha

import (
	"slices"
	"strings"
)

const (
	lowerA = 'a'
	lowerZ = 'z'
	upperA = 'A'
	upperZ = 'Z'
)

// MaxRoman is the largest number written with roman numerals.
const MaxRoman = 3999

// Char is a contiguous range of runes used as the digits of a bijective
// numbering: with a..z, 1 is "a", 26 is "z" and 27 is "aa".
type Char struct {
	min rune
	max rune
}

func Create(min, max rune) Char {
	if max < min {
		min, max = max, min
	}
	return Char{
		min: min,
		max: max,
	}
}

func Lower() Char {
	return Create(lowerA, lowerZ)
}

func Upper() Char {
	return Create(upperA, upperZ)
}

// Lookup finds the alphabet starting with first. Only latin and greek
// letters are known.
func Lookup(first rune) (Char, bool) {
	switch first {
	case lowerA:
		return Lower(), true
	case upperA:
		return Upper(), true
	case 'α':
		return Create('α', 'ω'), true
	case 'Α':
		return Create('Α', 'Ω'), true
	default:
		return Char{}, false
	}
}

func (c Char) Size() int {
	return int(c.max-c.min) + 1
}

func (c Char) Format(n int) string {
	if n <= 0 {
		return ""
	}
	var (
		size  = c.Size()
		chars []rune
	)
	for n > 0 {
		n--
		chars = append(chars, c.min+rune(n%size))
		n /= size
	}
	slices.Reverse(chars)
	return string(chars)
}

var romans = []struct {
	value int
	digit string
}{
	{1000, "m"},
	{900, "cm"},
	{500, "d"},
	{400, "cd"},
	{100, "c"},
	{90, "xc"},
	{50, "l"},
	{40, "xl"},
	{10, "x"},
	{9, "ix"},
	{5, "v"},
	{4, "iv"},
	{1, "i"},
}

// Roman gives the lowercase roman numeral of n. Zero, negative numbers and
// numbers above MaxRoman have no representation.
func Roman(n int) string {
	if n <= 0 || n > MaxRoman {
		return ""
	}
	var str strings.Builder
	for _, r := range romans {
		for n >= r.value {
			str.WriteString(r.digit)
			n -= r.value
		}
	}
	return str.String()
}

func UpperRoman(n int) string {
	return strings.ToUpper(Roman(n))
}
