package xslt

import (
	"math"
	"slices"
	"strconv"

	"github.com/midbel/angle/xml"
	"github.com/midbel/angle/xpath"
)

const (
	levelSingle   = "single"
	levelMultiple = "multiple"
	levelAny      = "any"
)

type nodeMatcher func(xml.Node) (bool, error)

// maxNumber is the largest value xsl:number formats with its picture;
// above it every integer is no longer exactly representable.
const maxNumber = 1 << 53

func (t *Transformation) number(f *frame, spec *numberSpec) (string, error) {
	ctx := t.context(f)
	format, err := t.numberFormat(ctx, spec)
	if err != nil {
		return "", err
	}
	if spec.value != nil {
		n, err := spec.value.EvalNumber(ctx)
		if err != nil {
			return "", err
		}
		n = xpath.Round(n)
		if math.IsNaN(n) || math.IsInf(n, 0) || n < 0 || n > maxNumber {
			return xpath.NumberToString(n), nil
		}
		return format.Format([]int{int(n)}), nil
	}
	if f.node == nil {
		return "", xpath.ErrContext
	}
	var (
		env   = ctx.Env
		count = sameKind(f.node)
		from  nodeMatcher
	)
	if spec.count != nil {
		count = patternMatcher(spec.count, env)
	}
	if spec.from != nil {
		from = patternMatcher(spec.from, env)
	}
	var values []int
	switch spec.level {
	case levelMultiple:
		values, err = numberMultiple(f.node, count, from)
	case levelAny:
		values, err = numberAny(f.node, count, from)
	default:
		values, err = numberSingle(f.node, count, from)
	}
	if err != nil {
		return "", err
	}
	return format.Format(values), nil
}

func (t *Transformation) numberFormat(ctx xpath.Context, spec *numberSpec) (NumberFormat, error) {
	var (
		nf  NumberFormat
		err error
	)
	nf.Picture = "1"
	if spec.format != nil {
		if nf.Picture, err = spec.format.Eval(ctx); err != nil {
			return nf, err
		}
	}
	if spec.letterValue != nil {
		if nf.LetterValue, err = spec.letterValue.Eval(ctx); err != nil {
			return nf, err
		}
	}
	if spec.groupingSep == nil || spec.groupingSize == nil {
		return nf, nil
	}
	sep, err := spec.groupingSep.Eval(ctx)
	if err != nil {
		return nf, err
	}
	str, err := spec.groupingSize.Eval(ctx)
	if err != nil {
		return nf, err
	}
	if size, err := strconv.Atoi(str); err == nil && size > 0 {
		nf.GroupingSeparator = sep
		nf.GroupingSize = size
	}
	return nf, nil
}

func patternMatcher(pat *xpath.Pattern, env xpath.Environment) nodeMatcher {
	return func(n xml.Node) (bool, error) {
		return pat.Match(n, env)
	}
}

// sameKind matches the nodes having the type and the expanded name of node.
func sameKind(node xml.Node) nodeMatcher {
	var (
		kind = node.Type()
		name = expandedName(node)
	)
	return func(n xml.Node) (bool, error) {
		return n.Type() == kind && expandedName(n) == name, nil
	}
}

func expandedName(n xml.Node) string {
	switch n := n.(type) {
	case *xml.Element:
		return n.QName.ExpandedName()
	case *xml.Attribute:
		return n.QName.ExpandedName()
	case *xml.Instruction:
		return n.Target
	default:
		return ""
	}
}

// numberSingle counts the siblings of the first ancestor-or-self of node
// matching count, searching no further than an ancestor matching from.
func numberSingle(node xml.Node, count, from nodeMatcher) ([]int, error) {
	for n := node; n != nil; n = n.Parent() {
		ok, err := count(n)
		if err != nil {
			return nil, err
		}
		if ok {
			pos, err := siblingNumber(n, count)
			if err != nil {
				return nil, err
			}
			return []int{pos}, nil
		}
		if from == nil {
			continue
		}
		if ok, err = from(n); err != nil || ok {
			return nil, err
		}
	}
	return nil, nil
}

// numberMultiple gives one number for each ancestor-or-self of node
// matching count, outermost first.
func numberMultiple(node xml.Node, count, from nodeMatcher) ([]int, error) {
	var values []int
	for n := node; n != nil; n = n.Parent() {
		ok, err := count(n)
		if err != nil {
			return nil, err
		}
		if ok {
			pos, err := siblingNumber(n, count)
			if err != nil {
				return nil, err
			}
			values = append(values, pos)
		}
		if from == nil {
			continue
		}
		if ok, err = from(n); err != nil {
			return nil, err
		}
		if ok {
			break
		}
	}
	slices.Reverse(values)
	return values, nil
}

// numberAny counts the nodes matching count that come before node in
// document order, node and its ancestors included, starting again at each
// node matching from.
func numberAny(node xml.Node, count, from nodeMatcher) ([]int, error) {
	var (
		total int
		found bool
		visit func(xml.Node) error
	)
	check := func(n xml.Node) error {
		if from != nil {
			ok, err := from(n)
			if err != nil {
				return err
			}
			if ok {
				total = 0
			}
		}
		ok, err := count(n)
		if err == nil && ok {
			total++
		}
		return err
	}
	visit = func(n xml.Node) error {
		if n == node {
			found = true
			return check(n)
		}
		if err := check(n); err != nil {
			return err
		}
		if el, ok := n.(*xml.Element); ok && node.Type() == xml.TypeAttribute {
			for _, a := range el.Attributes() {
				if a == node {
					found = true
					return check(a)
				}
			}
		}
		for _, c := range xml.Children(n) {
			if err := visit(c); err != nil || found {
				return err
			}
		}
		return nil
	}
	if err := visit(xml.Root(node)); err != nil {
		return nil, err
	}
	if total == 0 {
		return nil, nil
	}
	return []int{total}, nil
}

// siblingNumber gives one plus the number of preceding siblings of node
// matching count.
func siblingNumber(node xml.Node, count nodeMatcher) (int, error) {
	if node.Type() == xml.TypeAttribute || node.Parent() == nil {
		return 1, nil
	}
	pos := 1
	for _, n := range xml.Children(node.Parent()) {
		if n == node {
			break
		}
		ok, err := count(n)
		if err != nil {
			return 0, err
		}
		if ok {
			pos++
		}
	}
	return pos, nil
}
