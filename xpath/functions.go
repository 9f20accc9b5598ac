package xpath

import (
	"math"
	"strings"
	"unicode/utf8"

	"github.com/midbel/angle/xml"
)

var builtins map[string]Function

func init() {
	builtins = map[string]Function{
		"last":             {Min: 0, Max: 0, Call: callLast},
		"position":         {Min: 0, Max: 0, Call: callPosition},
		"count":            {Min: 1, Max: 1, Call: callCount},
		"id":               {Min: 1, Max: 1, Call: callId},
		"local-name":       {Min: 0, Max: 1, Call: callLocalName},
		"namespace-uri":    {Min: 0, Max: 1, Call: callNamespaceUri},
		"name":             {Min: 0, Max: 1, Call: callName},
		"string":           {Min: 0, Max: 1, Call: callString},
		"concat":           {Min: 2, Max: -1, Call: callConcat},
		"starts-with":      {Min: 2, Max: 2, Call: callStartsWith},
		"contains":         {Min: 2, Max: 2, Call: callContains},
		"substring-before": {Min: 2, Max: 2, Call: callSubstringBefore},
		"substring-after":  {Min: 2, Max: 2, Call: callSubstringAfter},
		"substring":        {Min: 2, Max: 3, Call: callSubstring},
		"string-length":    {Min: 0, Max: 1, Call: callStringLength},
		"normalize-space":  {Min: 0, Max: 1, Call: callNormalizeSpace},
		"translate":        {Min: 3, Max: 3, Call: callTranslate},
		"boolean":          {Min: 1, Max: 1, Call: callBoolean},
		"not":              {Min: 1, Max: 1, Call: callNot},
		"true":             {Min: 0, Max: 0, Call: callTrue},
		"false":            {Min: 0, Max: 0, Call: callFalse},
		"lang":             {Min: 1, Max: 1, Call: callLang},
		"number":           {Min: 0, Max: 1, Call: callNumber},
		"sum":              {Min: 1, Max: 1, Call: callSum},
		"floor":            {Min: 1, Max: 1, Call: callFloor},
		"ceiling":          {Min: 1, Max: 1, Call: callCeiling},
		"round":            {Min: 1, Max: 1, Call: callRound},
	}
}

// HasFunction reports whether name is part of the core function library.
func HasFunction(name string) bool {
	_, ok := builtins[name]
	return ok
}

func callLast(ctx Context, _ []Sequence) (Sequence, error) {
	return Singleton(ctx.Size), nil
}

func callPosition(ctx Context, _ []Sequence) (Sequence, error) {
	return Singleton(ctx.Position), nil
}

func callCount(_ Context, args []Sequence) (Sequence, error) {
	nodes, err := args[0].Nodes()
	if err != nil {
		return nil, err
	}
	return Singleton(len(nodes)), nil
}

func callId(ctx Context, args []Sequence) (Sequence, error) {
	var ids []string
	if args[0].NodeSet() {
		for _, i := range args[0] {
			ids = append(ids, strings.Fields(StringValue(i.Node()))...)
		}
	} else {
		ids = strings.Fields(AsString(args[0]))
	}
	if ctx.Node == nil {
		return nil, ErrContext
	}
	doc := xml.OwnerDocument(ctx.Node)
	if doc == nil {
		return NewSequence(), nil
	}
	var list []xml.Node
	for _, id := range ids {
		if n := doc.GetElementById(id); n != nil {
			list = append(list, n)
		}
	}
	return NodeSet(xml.SortUnique(list)), nil
}

func argNode(ctx Context, args []Sequence) (xml.Node, error) {
	if len(args) == 0 {
		if ctx.Node == nil {
			return nil, ErrContext
		}
		return ctx.Node, nil
	}
	nodes, err := args[0].Nodes()
	if err != nil || len(nodes) == 0 {
		return nil, err
	}
	return xml.SortUnique(nodes)[0], nil
}

func argString(ctx Context, args []Sequence) (string, error) {
	if len(args) == 0 {
		if ctx.Node == nil {
			return "", ErrContext
		}
		return StringValue(ctx.Node), nil
	}
	return AsString(args[0]), nil
}

func callLocalName(ctx Context, args []Sequence) (Sequence, error) {
	n, err := argNode(ctx, args)
	if err != nil || n == nil {
		return Singleton(""), err
	}
	return Singleton(n.LocalName()), nil
}

func callNamespaceUri(ctx Context, args []Sequence) (Sequence, error) {
	n, err := argNode(ctx, args)
	if err != nil || n == nil {
		return Singleton(""), err
	}
	return Singleton(nodeName(n).Uri), nil
}

func callName(ctx Context, args []Sequence) (Sequence, error) {
	n, err := argNode(ctx, args)
	if err != nil || n == nil {
		return Singleton(""), err
	}
	return Singleton(n.QualifiedName()), nil
}

func callString(ctx Context, args []Sequence) (Sequence, error) {
	str, err := argString(ctx, args)
	return Singleton(str), err
}

func callConcat(_ Context, args []Sequence) (Sequence, error) {
	var str strings.Builder
	for _, a := range args {
		str.WriteString(AsString(a))
	}
	return Singleton(str.String()), nil
}

func callStartsWith(_ Context, args []Sequence) (Sequence, error) {
	ok := strings.HasPrefix(AsString(args[0]), AsString(args[1]))
	return Singleton(ok), nil
}

func callContains(_ Context, args []Sequence) (Sequence, error) {
	ok := strings.Contains(AsString(args[0]), AsString(args[1]))
	return Singleton(ok), nil
}

func callSubstringBefore(_ Context, args []Sequence) (Sequence, error) {
	before, _, ok := strings.Cut(AsString(args[0]), AsString(args[1]))
	if !ok {
		before = ""
	}
	return Singleton(before), nil
}

func callSubstringAfter(_ Context, args []Sequence) (Sequence, error) {
	_, after, ok := strings.Cut(AsString(args[0]), AsString(args[1]))
	if !ok {
		after = ""
	}
	return Singleton(after), nil
}

func callSubstring(_ Context, args []Sequence) (Sequence, error) {
	var (
		chars = []rune(AsString(args[0]))
		start = Round(AsNumber(args[1]))
		end   = math.Inf(1)
	)
	if len(args) == 3 {
		end = start + Round(AsNumber(args[2]))
	}
	var str strings.Builder
	for i, c := range chars {
		pos := float64(i + 1)
		if pos >= start && pos < end {
			str.WriteRune(c)
		}
	}
	return Singleton(str.String()), nil
}

func callStringLength(ctx Context, args []Sequence) (Sequence, error) {
	str, err := argString(ctx, args)
	if err != nil {
		return nil, err
	}
	return Singleton(utf8.RuneCountInString(str)), nil
}

func callNormalizeSpace(ctx Context, args []Sequence) (Sequence, error) {
	str, err := argString(ctx, args)
	if err != nil {
		return nil, err
	}
	return Singleton(NormalizeSpace(str)), nil
}

// NormalizeSpace strips leading and trailing whitespace and collapses
// inner sequences of whitespace into a single space.
func NormalizeSpace(str string) string {
	return strings.Join(strings.FieldsFunc(str, func(r rune) bool {
		return r == ' ' || r == '\t' || r == '\n' || r == '\r'
	}), " ")
}

func callTranslate(_ Context, args []Sequence) (Sequence, error) {
	var (
		str  = AsString(args[0])
		from = []rune(AsString(args[1]))
		to   = []rune(AsString(args[2]))
		res  strings.Builder
	)
	for _, c := range str {
		i := -1
		for j := range from {
			if from[j] == c {
				i = j
				break
			}
		}
		switch {
		case i < 0:
			res.WriteRune(c)
		case i < len(to):
			res.WriteRune(to[i])
		default:
		}
	}
	return Singleton(res.String()), nil
}

func callBoolean(_ Context, args []Sequence) (Sequence, error) {
	return Singleton(AsBoolean(args[0])), nil
}

func callNot(_ Context, args []Sequence) (Sequence, error) {
	return Singleton(!AsBoolean(args[0])), nil
}

func callTrue(_ Context, _ []Sequence) (Sequence, error) {
	return Singleton(true), nil
}

func callFalse(_ Context, _ []Sequence) (Sequence, error) {
	return Singleton(false), nil
}

func callLang(ctx Context, args []Sequence) (Sequence, error) {
	if ctx.Node == nil {
		return nil, ErrContext
	}
	var (
		want = strings.ToLower(AsString(args[0]))
		attr = xml.ExpandedName("lang", "xml", xml.NamespaceXML)
	)
	for n := ctx.Node; n != nil; n = n.Parent() {
		el, ok := n.(*xml.Element)
		if !ok {
			continue
		}
		a, ok := el.GetAttribute(attr)
		if !ok {
			continue
		}
		got := strings.ToLower(a.Value())
		ok = got == want || strings.HasPrefix(got, want+"-")
		return Singleton(ok), nil
	}
	return Singleton(false), nil
}

func callNumber(ctx Context, args []Sequence) (Sequence, error) {
	if len(args) == 0 {
		if ctx.Node == nil {
			return nil, ErrContext
		}
		return Singleton(StringToNumber(StringValue(ctx.Node))), nil
	}
	return Singleton(AsNumber(args[0])), nil
}

func callSum(_ Context, args []Sequence) (Sequence, error) {
	nodes, err := args[0].Nodes()
	if err != nil {
		return nil, err
	}
	var sum float64
	for _, n := range nodes {
		sum += StringToNumber(StringValue(n))
	}
	return Singleton(sum), nil
}

func callFloor(_ Context, args []Sequence) (Sequence, error) {
	return Singleton(math.Floor(AsNumber(args[0]))), nil
}

func callCeiling(_ Context, args []Sequence) (Sequence, error) {
	return Singleton(math.Ceil(AsNumber(args[0]))), nil
}

func callRound(_ Context, args []Sequence) (Sequence, error) {
	return Singleton(Round(AsNumber(args[0]))), nil
}

// Round rounds half toward positive infinity as the round function does.
func Round(f float64) float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return f
	}
	return math.Floor(f + 0.5)
}
