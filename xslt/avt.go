package xslt

import (
	"fmt"
	"iter"
	"strings"

	"github.com/midbel/angle/xpath"
)

type avtPart struct {
	text  string
	query *xpath.Query
}

// AVT is a compiled attribute value template: literal text mixed with
// expressions between curly braces. Doubled braces stand for themselves.
type AVT struct {
	parts  []avtPart
	source string
}

func compileAVT(str string, ns xpath.NamespaceResolver) (*AVT, error) {
	avt := AVT{
		source: str,
	}
	for seg, err := range iterAVT(str) {
		if err != nil {
			return nil, err
		}
		if !seg.expr {
			avt.parts = append(avt.parts, avtPart{text: seg.text})
			continue
		}
		q, err := xpath.Compile(seg.text, ns)
		if err != nil {
			return nil, err
		}
		avt.parts = append(avt.parts, avtPart{query: q})
	}
	return &avt, nil
}

// Literal gives the value of a when it contains no expression.
func (a *AVT) Literal() (string, bool) {
	var str strings.Builder
	for _, p := range a.parts {
		if p.query != nil {
			return "", false
		}
		str.WriteString(p.text)
	}
	return str.String(), true
}

func (a *AVT) Eval(ctx xpath.Context) (string, error) {
	var str strings.Builder
	for _, p := range a.parts {
		if p.query == nil {
			str.WriteString(p.text)
			continue
		}
		res, err := p.query.EvalString(ctx)
		if err != nil {
			return "", err
		}
		str.WriteString(res)
	}
	return str.String(), nil
}

func (a *AVT) String() string {
	return a.source
}

type avtSegment struct {
	text string
	expr bool
}

func iterAVT(str string) iter.Seq2[avtSegment, error] {
	fn := func(yield func(avtSegment, error) bool) {
		var (
			text   strings.Builder
			offset int
		)
		for offset < len(str) {
			c := str[offset]
			switch {
			case c == '{' && strings.HasPrefix(str[offset:], "{{"):
				text.WriteByte('{')
				offset += 2
			case c == '}' && strings.HasPrefix(str[offset:], "}}"):
				text.WriteByte('}')
				offset += 2
			case c == '}':
				yield(avtSegment{}, fmt.Errorf("%s: %w: unbalanced '}'", str, ErrInvalidValue))
				return
			case c == '{':
				end, err := scanExpr(str, offset+1)
				if err != nil {
					yield(avtSegment{}, err)
					return
				}
				if text.Len() > 0 {
					if !yield(avtSegment{text: text.String()}, nil) {
						return
					}
					text.Reset()
				}
				if !yield(avtSegment{text: str[offset+1 : end], expr: true}, nil) {
					return
				}
				offset = end + 1
			default:
				text.WriteByte(c)
				offset++
			}
		}
		if text.Len() > 0 {
			yield(avtSegment{text: text.String()}, nil)
		}
	}
	return fn
}

// scanExpr finds the brace closing the expression starting at offset.
// Braces inside string literals do not count.
func scanExpr(str string, offset int) (int, error) {
	var quote byte
	for i := offset; i < len(str); i++ {
		c := str[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '\'' || c == '"':
			quote = c
		case c == '}':
			if i == offset {
				return 0, fmt.Errorf("%s: %w: empty expression", str, ErrInvalidValue)
			}
			return i, nil
		case c == '{':
			return 0, fmt.Errorf("%s: %w: nested '{'", str, ErrInvalidValue)
		}
	}
	return 0, fmt.Errorf("%s: %w: unterminated expression", str, ErrInvalidValue)
}
