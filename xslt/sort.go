package xslt

import (
	"cmp"
	"math"
	"slices"
	"unicode"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/midbel/angle/xml"
	"github.com/midbel/angle/xpath"
)

// sortKey is a compiled xsl:sort. Every attribute but select is an
// attribute value template.
type sortKey struct {
	selector  *xpath.Query
	order     *AVT
	lang      *AVT
	dataType  *AVT
	caseOrder *AVT
}

type sortSpec struct {
	descending bool
	numeric    bool
	upperFirst bool
	collator   *collate.Collator
}

func (k sortKey) resolve(ctx xpath.Context) (sortSpec, error) {
	var (
		spec sortSpec
		tag  = language.Und
	)
	get := func(avt *AVT, def string) (string, error) {
		if avt == nil {
			return def, nil
		}
		return avt.Eval(ctx)
	}
	order, err := get(k.order, "ascending")
	if err != nil {
		return spec, err
	}
	switch order {
	case "ascending":
	case "descending":
		spec.descending = true
	default:
		return spec, invalidValue("order", order)
	}
	dataType, err := get(k.dataType, "text")
	if err != nil {
		return spec, err
	}
	switch dataType {
	case "text":
	case "number":
		spec.numeric = true
	default:
		qn, err := xml.ParseName(dataType)
		if err != nil || qn.Space == "" {
			return spec, invalidValue("data-type", dataType)
		}
	}
	caseOrder, err := get(k.caseOrder, "lower-first")
	if err != nil {
		return spec, err
	}
	switch caseOrder {
	case "lower-first":
	case "upper-first":
		spec.upperFirst = true
	default:
		return spec, invalidValue("case-order", caseOrder)
	}
	lang, err := get(k.lang, "")
	if err != nil {
		return spec, err
	}
	if lang != "" {
		if tag, err = language.Parse(lang); err != nil {
			return spec, invalidValue("lang", lang)
		}
	}
	spec.collator = collate.New(tag, collate.IgnoreCase)
	return spec, nil
}

type sortValue struct {
	str string
	num float64
}

type sortRow struct {
	node   xml.Node
	values []sortValue
}

// sortNodes orders nodes with the given keys. The sort is stable: nodes
// with equal keys keep their order.
func sortNodes(nodes []xml.Node, keys []sortKey, ctx xpath.Context) ([]xml.Node, error) {
	if len(keys) == 0 || len(nodes) < 2 {
		return nodes, nil
	}
	specs := make([]sortSpec, 0, len(keys))
	for _, k := range keys {
		s, err := k.resolve(ctx)
		if err != nil {
			return nil, err
		}
		specs = append(specs, s)
	}
	rows := make([]sortRow, len(nodes))
	for i, n := range nodes {
		rows[i].node = n
		sub := ctx.Sub(n, i+1, len(nodes))
		for j, k := range keys {
			str, err := k.selector.EvalString(sub)
			if err != nil {
				return nil, err
			}
			v := sortValue{str: str}
			if specs[j].numeric {
				v.num = xpath.StringToNumber(str)
			}
			rows[i].values = append(rows[i].values, v)
		}
	}
	slices.SortStableFunc(rows, func(a, b sortRow) int {
		for i, s := range specs {
			c := s.compare(a.values[i], b.values[i])
			if c != 0 {
				return c
			}
		}
		return 0
	})
	list := make([]xml.Node, len(rows))
	for i := range rows {
		list[i] = rows[i].node
	}
	return list, nil
}

func (s sortSpec) compare(a, b sortValue) int {
	var c int
	if s.numeric {
		c = compareNumbers(a.num, b.num)
	} else {
		c = s.collator.CompareString(a.str, b.str)
		if c == 0 {
			c = compareCase(a.str, b.str, s.upperFirst)
		}
	}
	if s.descending {
		c = -c
	}
	return c
}

// compareNumbers puts NaN before every other number.
func compareNumbers(a, b float64) int {
	switch na, nb := math.IsNaN(a), math.IsNaN(b); {
	case na && nb:
		return 0
	case na:
		return -1
	case nb:
		return 1
	default:
		return cmp.Compare(a, b)
	}
}

// compareCase breaks ties between strings equal when case is ignored: the
// first letter differing by case decides.
func compareCase(a, b string, upperFirst bool) int {
	var (
		ra = []rune(a)
		rb = []rune(b)
	)
	for i := 0; i < len(ra) && i < len(rb); i++ {
		if ra[i] == rb[i] {
			continue
		}
		ua, ub := unicode.IsUpper(ra[i]), unicode.IsUpper(rb[i])
		if ua == ub {
			continue
		}
		if ua == upperFirst {
			return -1
		}
		return 1
	}
	return 0
}
