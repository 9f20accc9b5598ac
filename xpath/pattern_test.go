package xpath

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/midbel/angle/xml"
)

func TestPatternPriority(t *testing.T) {
	tests := []struct {
		Pattern  string
		Priority []float64
	}{
		{Pattern: "item", Priority: []float64{0}},
		{Pattern: "x:*", Priority: []float64{-0.25}},
		{Pattern: "*", Priority: []float64{-0.5}},
		{Pattern: "node()", Priority: []float64{-0.5}},
		{Pattern: "text()", Priority: []float64{-0.5}},
		{Pattern: "processing-instruction('pi')", Priority: []float64{0}},
		{Pattern: "processing-instruction()", Priority: []float64{-0.5}},
		{Pattern: "/", Priority: []float64{0.5}},
		{Pattern: "group/item", Priority: []float64{0.5}},
		{Pattern: "item[1]", Priority: []float64{0.5}},
		{Pattern: "//item", Priority: []float64{0.5}},
		{Pattern: "@id", Priority: []float64{0}},
		{Pattern: "attribute::*", Priority: []float64{-0.5}},
		{Pattern: "id('x')", Priority: []float64{0.5}},
		{Pattern: "item | group/item | *", Priority: []float64{0, 0.5, -0.5}},
	}
	ns := xml.NewElement(xml.LocalName("ns"))
	ns.DeclareNS(xml.NS{Prefix: "x", Uri: "urn:x"})
	for _, c := range tests {
		pat, err := CompilePattern(c.Pattern, ns)
		require.NoError(t, err, c.Pattern)
		require.Len(t, pat.Alternatives, len(c.Priority), c.Pattern)
		for i, a := range pat.Alternatives {
			assert.Equal(t, c.Priority[i], a.Priority, "%s: alternative %d", c.Pattern, i)
		}
	}
}

func TestPatternSource(t *testing.T) {
	pat, err := CompilePattern("item | group/item[1]", nil)
	require.NoError(t, err)
	require.Len(t, pat.Alternatives, 2)
	assert.Equal(t, "item", pat.Alternatives[0].String())
	assert.Equal(t, "group/item[1]", pat.Alternatives[1].String())
}

func TestPatternErrors(t *testing.T) {
	tests := []string{
		"",
		"ancestor::item",
		"item |",
		"1 + 1",
		"$var",
	}
	for _, str := range tests {
		_, err := CompilePattern(str, nil)
		assert.Error(t, err, str)
	}
}

func TestPatternMatch(t *testing.T) {
	doc, err := parseDocument()
	require.NoError(t, err)

	find := func(expr string) xml.Node {
		q, err := Compile(expr, nil)
		require.NoError(t, err, expr)
		nodes, err := q.EvalNodes(DefaultContext(doc))
		require.NoError(t, err, expr)
		require.NotEmpty(t, nodes, expr)
		return nodes[0]
	}
	var (
		first  = find("/root/item[1]")
		second = find("/root/item[2]")
		group  = find("/root/group")
		sub    = find("/root/group/item[1]")
		ignore = find("//test/@ignore")
		text   = find("/root/item[1]/text()")
	)
	tests := []struct {
		Pattern string
		Node    xml.Node
		Want    bool
	}{
		{Pattern: "item", Node: first, Want: true},
		{Pattern: "item", Node: group, Want: false},
		{Pattern: "group/item", Node: sub, Want: true},
		{Pattern: "group/item", Node: first, Want: false},
		{Pattern: "root//item", Node: sub, Want: true},
		{Pattern: "root//test", Node: group, Want: false},
		{Pattern: "/root/item", Node: first, Want: true},
		{Pattern: "/item", Node: first, Want: false},
		{Pattern: "//group", Node: group, Want: true},
		{Pattern: "/", Node: doc, Want: true},
		{Pattern: "/", Node: first, Want: false},
		{Pattern: "item[2]", Node: second, Want: true},
		{Pattern: "item[2]", Node: first, Want: false},
		{Pattern: "item[@id='first']", Node: first, Want: true},
		{Pattern: "@ignore", Node: ignore, Want: true},
		{Pattern: "*", Node: ignore, Want: false},
		{Pattern: "node()", Node: ignore, Want: false},
		{Pattern: "node()", Node: doc, Want: false},
		{Pattern: "text()", Node: text, Want: true},
		{Pattern: "id('first')", Node: first, Want: true},
		{Pattern: "id('first')", Node: second, Want: false},
		{Pattern: "id('first')/text()", Node: text, Want: true},
		{Pattern: "test | item", Node: second, Want: true},
	}
	for _, c := range tests {
		pat, err := CompilePattern(c.Pattern, nil)
		require.NoError(t, err, c.Pattern)
		got, err := pat.Match(c.Node, nil)
		require.NoError(t, err, c.Pattern)
		assert.Equal(t, c.Want, got, c.Pattern)
	}
}

func TestPatternShape(t *testing.T) {
	tests := []struct {
		Pattern string
		Kind    xml.NodeType
		May     bool
		Always  bool
	}{
		{Pattern: "*", Kind: xml.TypeElement, May: true, Always: true},
		{Pattern: "*", Kind: xml.TypeText, May: false, Always: false},
		{Pattern: "node()", Kind: xml.TypeText, May: true, Always: true},
		{Pattern: "node()", Kind: xml.TypeAttribute, May: false, Always: false},
		{Pattern: "item", Kind: xml.TypeElement, May: true, Always: false},
		{Pattern: "@*", Kind: xml.TypeAttribute, May: true, Always: true},
		{Pattern: "@id", Kind: xml.TypeElement, May: false, Always: false},
		{Pattern: "text()", Kind: xml.TypeComment, May: false, Always: false},
		{Pattern: "/", Kind: xml.TypeDocument, May: true, Always: false},
		{Pattern: "item[1]", Kind: xml.TypeElement, May: true, Always: false},
	}
	for _, c := range tests {
		pat, err := CompilePattern(c.Pattern, nil)
		require.NoError(t, err, c.Pattern)
		alt := pat.Alternatives[0]
		assert.Equal(t, c.May, alt.MayMatch(c.Kind), "%s: may match %s", c.Pattern, c.Kind)
		assert.Equal(t, c.Always, alt.AlwaysMatches(c.Kind), "%s: always matches %s", c.Pattern, c.Kind)
	}
}
