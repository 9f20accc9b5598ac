package xslt

import (
	"slices"
	"strconv"
	"strings"
	"unicode"

	"github.com/midbel/angle/alhpa"
)

// zeros holds the zero of every decimal digit family known to unicode.
var zeros = func() []rune {
	var list []rune
	for _, r := range unicode.Nd.R16 {
		for z := rune(r.Lo); z+9 <= rune(r.Hi); z += 10 {
			list = append(list, z)
		}
	}
	for _, r := range unicode.Nd.R32 {
		for z := rune(r.Lo); z+9 <= rune(r.Hi); z += 10 {
			list = append(list, z)
		}
	}
	return list
}()

// zeroDigit finds the zero of the digit family of r.
func zeroDigit(r rune) (rune, bool) {
	i, ok := slices.BinarySearch(zeros, r)
	if ok {
		return r, true
	}
	if i == 0 {
		return 0, false
	}
	z := zeros[i-1]
	return z, r-z <= 9
}

type numberToken struct {
	kind  byte
	zero  rune
	width int
	alpha alpha.Char
}

const (
	tokenDecimal byte = iota
	tokenAlpha
	tokenRoman
	tokenUpperRoman
)

var defaultToken = numberToken{
	kind:  tokenDecimal,
	zero:  '0',
	width: 1,
}

// NumberFormat holds the attributes of xsl:number controlling how a list
// of numbers is turned into a string.
type NumberFormat struct {
	Picture           string
	GroupingSeparator string
	GroupingSize      int
	LetterValue       string
}

// ConvertNumbersToString formats values with picture, without grouping.
func ConvertNumbersToString(picture string, values []int) string {
	f := NumberFormat{
		Picture: picture,
	}
	return f.Format(values)
}

func (f NumberFormat) Format(values []int) string {
	prefix, tokens, seps, suffix := splitPicture(f.Picture)

	var str strings.Builder
	str.WriteString(prefix)
	for i, v := range values {
		if i > 0 {
			switch {
			case len(seps) == 0:
				str.WriteString(".")
			case i-1 < len(seps):
				str.WriteString(seps[i-1])
			default:
				str.WriteString(seps[len(seps)-1])
			}
		}
		tok := tokens[min(i, len(tokens)-1)]
		str.WriteString(f.formatToken(tok, v))
	}
	str.WriteString(suffix)
	return str.String()
}

func (f NumberFormat) formatToken(tok numberToken, value int) string {
	switch tok.kind {
	case tokenRoman, tokenUpperRoman:
		if value > alpha.MaxRoman {
			return f.formatDecimal(defaultToken, value)
		}
		if tok.kind == tokenUpperRoman {
			return alpha.UpperRoman(value)
		}
		return alpha.Roman(value)
	case tokenAlpha:
		return tok.alpha.Format(value)
	default:
		return f.formatDecimal(tok, value)
	}
}

func (f NumberFormat) formatDecimal(tok numberToken, value int) string {
	var (
		digits = strconv.Itoa(max(value, 0))
		list   = []rune(digits)
	)
	for len(list) < tok.width {
		list = slices.Insert(list, 0, '0')
	}
	if tok.zero != '0' {
		for i := range list {
			list[i] = tok.zero + (list[i] - '0')
		}
	}
	if f.GroupingSize <= 0 || f.GroupingSeparator == "" {
		return string(list)
	}
	var (
		str  strings.Builder
		size = len(list)
	)
	for i, r := range list {
		if i > 0 && (size-i)%f.GroupingSize == 0 {
			str.WriteString(f.GroupingSeparator)
		}
		str.WriteRune(r)
	}
	return str.String()
}

// splitPicture cuts picture into alternating format tokens and separators.
// The non alphanumeric runs before the first token and after the last one
// are the prefix and the suffix.
func splitPicture(picture string) (string, []numberToken, []string, string) {
	var (
		prefix string
		suffix string
		tokens []numberToken
		seps   []string
		runs   []string
		alnum  []bool
	)
	for _, r := range picture {
		isAlnum := unicode.IsLetter(r) || unicode.IsDigit(r)
		n := len(runs)
		if n > 0 && alnum[n-1] == isAlnum {
			runs[n-1] += string(r)
			continue
		}
		runs = append(runs, string(r))
		alnum = append(alnum, isAlnum)
	}
	if len(runs) > 0 && !alnum[0] {
		prefix = runs[0]
		runs, alnum = runs[1:], alnum[1:]
	}
	if n := len(runs); n > 0 && !alnum[n-1] {
		suffix = runs[n-1]
		runs, alnum = runs[:n-1], alnum[:n-1]
	}
	for i, r := range runs {
		if alnum[i] {
			tokens = append(tokens, parseNumberToken(r))
		} else {
			seps = append(seps, r)
		}
	}
	if len(tokens) == 0 {
		tokens = append(tokens, defaultToken)
	}
	return prefix, tokens, seps, suffix
}

func parseNumberToken(str string) numberToken {
	switch str {
	case "i":
		return numberToken{kind: tokenRoman}
	case "I":
		return numberToken{kind: tokenUpperRoman}
	}
	var (
		chars = []rune(str)
		last  = chars[len(chars)-1]
	)
	if zero, ok := zeroDigit(last); ok {
		if last != zero+1 {
			return defaultToken
		}
		for _, r := range chars[:len(chars)-1] {
			if r != zero {
				return defaultToken
			}
		}
		return numberToken{
			kind:  tokenDecimal,
			zero:  zero,
			width: len(chars),
		}
	}
	if len(chars) == 1 {
		if a, ok := alpha.Lookup(chars[0]); ok {
			return numberToken{
				kind:  tokenAlpha,
				alpha: a,
			}
		}
	}
	return defaultToken
}
