package xslt

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/midbel/angle/xml"
)

// DecimalFormat is the set of characters and strings used by format-number
// to interpret a picture and to render a number.
type DecimalFormat struct {
	Name              xml.QName
	DecimalSeparator  rune
	GroupingSeparator rune
	Infinity          string
	MinusSign         rune
	NaN               string
	Percent           rune
	PerMille          rune
	ZeroDigit         rune
	Digit             rune
	PatternSeparator  rune
}

func DefaultDecimalFormat() DecimalFormat {
	return DecimalFormat{
		DecimalSeparator:  '.',
		GroupingSeparator: ',',
		Infinity:          "Infinity",
		MinusSign:         '-',
		NaN:               "NaN",
		Percent:           '%',
		PerMille:          '‰',
		ZeroDigit:         '0',
		Digit:             '#',
		PatternSeparator:  ';',
	}
}

// Equal reports whether df and other define the same characters. Two
// declarations of the same format must be equal.
func (df DecimalFormat) Equal(other DecimalFormat) bool {
	other.Name = df.Name
	return df == other
}

func (df *DecimalFormat) set(t AttributeType, value string) error {
	if t == AttrInfinity {
		df.Infinity = value
		return nil
	}
	if t == AttrNaN {
		df.NaN = value
		return nil
	}
	chars := []rune(value)
	if len(chars) != 1 {
		return fmt.Errorf("%s: %w: single character expected", t, ErrInvalidValue)
	}
	switch c := chars[0]; t {
	case AttrDecimalSeparator:
		df.DecimalSeparator = c
	case AttrGroupingSeparator:
		df.GroupingSeparator = c
	case AttrMinusSign:
		df.MinusSign = c
	case AttrPercent:
		df.Percent = c
	case AttrPerMille:
		df.PerMille = c
	case AttrZeroDigit:
		if z, ok := zeroDigit(c); !ok || z != c {
			return fmt.Errorf("%s: %w: zero digit expected", t, ErrInvalidValue)
		}
		df.ZeroDigit = c
	case AttrDigit:
		df.Digit = c
	case AttrPatternSeparator:
		df.PatternSeparator = c
	}
	return nil
}

func (df DecimalFormat) isDigit(r rune) bool {
	return r == df.Digit || (r >= df.ZeroDigit && r <= df.ZeroDigit+9)
}

func (df DecimalFormat) active(r rune) bool {
	return df.isDigit(r) || r == df.DecimalSeparator || r == df.GroupingSeparator
}

type subPicture struct {
	prefix   string
	suffix   string
	minInt   int
	minFrac  int
	maxFrac  int
	grouping int
	scale    float64
}

// FormatNumber renders value according to picture, interpreted with the
// characters of df.
func FormatNumber(value float64, picture string, df DecimalFormat) (string, error) {
	if math.IsNaN(value) {
		return df.NaN, nil
	}
	if math.IsInf(value, 0) {
		if value < 0 {
			return string(df.MinusSign) + df.Infinity, nil
		}
		return df.Infinity, nil
	}
	pos, neg, err := parsePicture(picture, df)
	if err != nil {
		return "", err
	}
	negative := value < 0 || (value == 0 && math.Signbit(value))
	var (
		sub    = pos
		prefix = pos.prefix
		suffix = pos.suffix
	)
	if negative {
		if neg != nil {
			prefix, suffix = neg.prefix, neg.suffix
		} else {
			prefix = string(df.MinusSign) + prefix
		}
	}
	value = math.Abs(value) * sub.scale
	if math.IsInf(value, 0) {
		return prefix + df.Infinity + suffix, nil
	}

	digits := strconv.FormatFloat(value, 'f', sub.maxFrac, 64)
	ipart, fpart, _ := strings.Cut(digits, ".")
	ipart = strings.TrimLeft(ipart, "0")
	for len(ipart) < sub.minInt {
		ipart = "0" + ipart
	}
	for len(fpart) > sub.minFrac && strings.HasSuffix(fpart, "0") {
		fpart = fpart[:len(fpart)-1]
	}
	if ipart == "" && fpart == "" {
		ipart = "0"
	}
	if negative && neg == nil && strings.Trim(ipart+fpart, "0") == "" {
		prefix = pos.prefix
	}

	var str strings.Builder
	str.WriteString(prefix)
	for i, c := range ipart {
		if i > 0 && sub.grouping > 0 && (len(ipart)-i)%sub.grouping == 0 {
			str.WriteRune(df.GroupingSeparator)
		}
		str.WriteRune(df.ZeroDigit + (c - '0'))
	}
	if fpart != "" {
		str.WriteRune(df.DecimalSeparator)
		for _, c := range fpart {
			str.WriteRune(df.ZeroDigit + (c - '0'))
		}
	}
	str.WriteString(suffix)
	return str.String(), nil
}

func parsePicture(picture string, df DecimalFormat) (subPicture, *subPicture, error) {
	parts, err := splitSubPictures(picture, df.PatternSeparator)
	if err != nil {
		return subPicture{}, nil, err
	}
	if len(parts) > 2 {
		return subPicture{}, nil, fmt.Errorf("%s: %w: too many sub pictures", picture, ErrInvalidValue)
	}
	pos, err := parseSubPicture(parts[0], df)
	if err != nil {
		return pos, nil, err
	}
	if len(parts) == 1 {
		return pos, nil, nil
	}
	neg, err := parseSubPicture(parts[1], df)
	if err != nil {
		return pos, nil, err
	}
	return pos, &neg, nil
}

func splitSubPictures(picture string, sep rune) ([]string, error) {
	var (
		parts  []string
		quoted bool
		start  int
	)
	for i, c := range picture {
		switch {
		case c == '\'':
			quoted = !quoted
		case c == sep && !quoted:
			parts = append(parts, picture[start:i])
			start = i + len(string(c))
		}
	}
	if quoted {
		return nil, fmt.Errorf("%s: %w: unterminated quote", picture, ErrInvalidValue)
	}
	return append(parts, picture[start:]), nil
}

func parseSubPicture(picture string, df DecimalFormat) (subPicture, error) {
	sub := subPicture{
		scale:    1,
		grouping: -1,
	}
	var (
		prefix  strings.Builder
		suffix  strings.Builder
		chars   = []rune(picture)
		state   int
		quoted  bool
		decimal bool
		lastGrp = -1
		intLen  int
		scaled  bool
	)
	for i := 0; i < len(chars); i++ {
		c := chars[i]
		if c == '\'' {
			if i+1 < len(chars) && chars[i+1] == '\'' {
				i++
				if state == 0 {
					prefix.WriteRune(c)
				} else {
					suffix.WriteRune(c)
				}
				continue
			}
			quoted = !quoted
			if state == 1 {
				state = 2
			}
			continue
		}
		if !quoted && df.active(c) {
			if state == 2 {
				return sub, fmt.Errorf("%s: %w: digit after suffix", picture, ErrInvalidValue)
			}
			state = 1
			switch {
			case c == df.DecimalSeparator:
				if decimal {
					return sub, fmt.Errorf("%s: %w: multiple decimal separators", picture, ErrInvalidValue)
				}
				decimal = true
			case c == df.GroupingSeparator:
				if decimal {
					return sub, fmt.Errorf("%s: %w: grouping separator in fraction", picture, ErrInvalidValue)
				}
				lastGrp = intLen
			case c == df.Digit:
				if decimal {
					sub.maxFrac++
				} else {
					if sub.minInt > 0 {
						return sub, fmt.Errorf("%s: %w: optional digit after zero digit", picture, ErrInvalidValue)
					}
					intLen++
				}
			default:
				if decimal {
					if sub.maxFrac > sub.minFrac {
						return sub, fmt.Errorf("%s: %w: zero digit after optional digit", picture, ErrInvalidValue)
					}
					sub.minFrac++
					sub.maxFrac++
				} else {
					sub.minInt++
					intLen++
				}
			}
			continue
		}
		if !quoted {
			switch c {
			case df.Percent, df.PerMille:
				if scaled {
					return sub, fmt.Errorf("%s: %w: multiple percent or per-mille", picture, ErrInvalidValue)
				}
				scaled = true
				sub.scale = 100
				if c == df.PerMille {
					sub.scale = 1000
				}
			}
		}
		if state == 0 {
			prefix.WriteRune(c)
		} else {
			state = 2
			suffix.WriteRune(c)
		}
	}
	if state == 0 {
		return sub, fmt.Errorf("%s: %w: no digit", picture, ErrInvalidValue)
	}
	if lastGrp >= 0 {
		sub.grouping = intLen - lastGrp
		if sub.grouping == 0 {
			return sub, fmt.Errorf("%s: %w: grouping separator at end of integer part", picture, ErrInvalidValue)
		}
	}
	sub.prefix = prefix.String()
	sub.suffix = suffix.String()
	return sub, nil
}
