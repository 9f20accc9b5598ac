package xpath

import (
	"testing"

	"github.com/midbel/angle/xml"
)

const document = `<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE root [
	<!ATTLIST item id ID #IMPLIED>
]>
<root>
	<item id="first">element-1</item>
	<item id="second">element-2</item>
	<group>
		<item lang="en">sub-element-1</item>
		<item xml:lang="en-GB">sub-element-2</item>
		<test ignore="true"/>
	</group>
</root>
`

func TestEval(t *testing.T) {
	tests := []struct {
		Expr     string
		Expected []string
	}{
		{
			Expr:     "/root/item",
			Expected: []string{"element-1", "element-2"},
		},
		{
			Expr:     "/root/item[1]",
			Expected: []string{"element-1"},
		},
		{
			Expr:     "/root/item[last()]",
			Expected: []string{"element-2"},
		},
		{
			Expr:     "/root/item[position()>=1]",
			Expected: []string{"element-1", "element-2"},
		},
		{
			Expr:     "//item",
			Expected: []string{"element-1", "element-2", "sub-element-1", "sub-element-2"},
		},
		{
			Expr:     "//item[1]",
			Expected: []string{"element-1", "sub-element-1"},
		},
		{
			Expr:     "(//item)[1]",
			Expected: []string{"element-1"},
		},
		{
			Expr:     "//group/item[@lang='en']",
			Expected: []string{"sub-element-1"},
		},
		{
			Expr:     "/root/group/test/@ignore",
			Expected: []string{"true"},
		},
		{
			Expr:     "//item[lang('en')]",
			Expected: []string{"sub-element-2"},
		},
		{
			Expr:     "id('second')",
			Expected: []string{"element-2"},
		},
		{
			Expr:     "id('second first')",
			Expected: []string{"element-1", "element-2"},
		},
		{
			Expr:     "//test/preceding-sibling::item[1]",
			Expected: []string{"sub-element-2"},
		},
		{
			Expr:     "//test/preceding-sibling::*[last()]",
			Expected: []string{"sub-element-1"},
		},
		{
			Expr:     "/root/item | //group/item",
			Expected: []string{"element-1", "element-2", "sub-element-1", "sub-element-2"},
		},
		{
			Expr:     "//item[. = 'element-2']/following-sibling::group/item[2]",
			Expected: []string{"sub-element-2"},
		},
		{
			Expr:     "/root/child::item[2]/self::node()",
			Expected: []string{"element-2"},
		},
		{
			Expr:     "//group/item[1]/../item[2]",
			Expected: []string{"sub-element-2"},
		},
	}
	doc, err := parseDocument()
	if err != nil {
		t.Errorf("error parsing document: %s", err)
		return
	}
	for _, c := range tests {
		q, err := Compile(c.Expr, nil)
		if err != nil {
			t.Errorf("fail to parse xpath expression %s: %s", c.Expr, err)
			continue
		}
		seq, err := q.Find(doc)
		if err != nil {
			t.Errorf("error evaluating expression %s: %s", c.Expr, err)
			continue
		}
		if seq.Len() != len(c.Expected) {
			t.Errorf("%s: number of nodes mismatched! want %d, got %d", c.Expr, len(c.Expected), seq.Len())
			continue
		}
		if !compareNodeValues(seq, c.Expected) {
			t.Errorf("%s: nodes mismatched! want %s", c.Expr, c.Expected)
		}
	}
}

func TestEvalValue(t *testing.T) {
	tests := []struct {
		Expr     string
		Expected string
	}{
		{Expr: "count(//item)", Expected: "4"},
		{Expr: "count(//test/ancestor::*)", Expected: "2"},
		{Expr: "count(//item/following::*)", Expected: "5"},
		{Expr: "count(//test/preceding::*)", Expected: "4"},
		{Expr: "count(/descendant-or-self::node()/@*)", Expected: "5"},
		{Expr: "1 + 2 * 3", Expected: "7"},
		{Expr: "10 div 4", Expected: "2.5"},
		{Expr: "7 mod 3", Expected: "1"},
		{Expr: "-(2 + 3)", Expected: "-5"},
		{Expr: "1 div 0", Expected: "Infinity"},
		{Expr: "-1 div 0", Expected: "-Infinity"},
		{Expr: "0 div 0", Expected: "NaN"},
		{Expr: "concat('a', 'b', 'c')", Expected: "abc"},
		{Expr: "substring('12345', 1.5, 2.6)", Expected: "234"},
		{Expr: "substring('12345', 0, 3)", Expected: "12"},
		{Expr: "substring('12345', 2)", Expected: "2345"},
		{Expr: "translate('bar', 'abc', 'ABC')", Expected: "BAr"},
		{Expr: "translate('--aaa--', 'abc-', 'ABC')", Expected: "AAA"},
		{Expr: "normalize-space('  a   b ')", Expected: "a b"},
		{Expr: "string-length('héllo')", Expected: "5"},
		{Expr: "substring-before('1999/04/01', '/')", Expected: "1999"},
		{Expr: "substring-after('1999/04/01', '/')", Expected: "04/01"},
		{Expr: "round(2.5)", Expected: "3"},
		{Expr: "round(-2.5)", Expected: "-2"},
		{Expr: "floor(2.7)", Expected: "2"},
		{Expr: "ceiling(2.1)", Expected: "3"},
		{Expr: "//item = 'element-2'", Expected: "true"},
		{Expr: "//item != 'element-2'", Expected: "true"},
		{Expr: "//item = 'missing'", Expected: "false"},
		{Expr: "boolean(//missing)", Expected: "false"},
		{Expr: "not(true()) or 1 > 0", Expected: "true"},
		{Expr: "name(/root/group/*[last()])", Expected: "test"},
		{Expr: "local-name(//@ignore)", Expected: "ignore"},
		{Expr: "number('  12.5 ')", Expected: "12.5"},
		{Expr: "number('1e3')", Expected: "NaN"},
		{Expr: "string(1 = 1.0)", Expected: "true"},
		{Expr: "sum(//item[@id]/@id)", Expected: "NaN"},
		{Expr: "starts-with('element', 'ele') and contains('element', 'men')", Expected: "true"},
		{Expr: "//test/@ignore = true()", Expected: "true"},
		{Expr: "2 > //missing", Expected: "false"},
	}
	doc, err := parseDocument()
	if err != nil {
		t.Errorf("error parsing document: %s", err)
		return
	}
	for _, c := range tests {
		q, err := Compile(c.Expr, nil)
		if err != nil {
			t.Errorf("fail to parse xpath expression %s: %s", c.Expr, err)
			continue
		}
		got, err := q.EvalString(DefaultContext(doc))
		if err != nil {
			t.Errorf("error evaluating expression %s: %s", c.Expr, err)
			continue
		}
		if got != c.Expected {
			t.Errorf("%s: result mismatched! want %s, got %s", c.Expr, c.Expected, got)
		}
	}
}

func TestEvalVariables(t *testing.T) {
	doc, err := parseDocument()
	if err != nil {
		t.Fatalf("error parsing document: %s", err)
	}
	scope := NewScope()
	scope.Define(xml.LocalName("limit"), Singleton(1.0))
	scope.DefineFunction(xml.ExpandedName("twice", "ext", "urn:ext"), Function{
		Min: 1,
		Max: 1,
		Call: func(_ Context, args []Sequence) (Sequence, error) {
			return Singleton(AsNumber(args[0]) * 2), nil
		},
	})

	root := xml.NewElement(xml.LocalName("ns"))
	root.DeclareNS(xml.NS{Prefix: "ext", Uri: "urn:ext"})

	q, err := Compile("ext:twice(count(/root/item[position() > $limit]))", root)
	if err != nil {
		t.Fatalf("fail to compile expression: %s", err)
	}
	ctx := DefaultContext(doc)
	ctx.Env = scope.Enclosed()
	got, err := q.EvalNumber(ctx)
	if err != nil {
		t.Fatalf("error evaluating expression: %s", err)
	}
	if got != 2 {
		t.Errorf("result mismatched! want 2, got %f", got)
	}

	q, _ = Compile("$undefined", nil)
	if _, err := q.Eval(ctx); err == nil {
		t.Errorf("expected error for undefined variable")
	}
}

func compareNodeValues(seq Sequence, values []string) bool {
	for i := range seq {
		if seq[i].Atomic() || StringValue(seq[i].Node()) != values[i] {
			return false
		}
	}
	return true
}

func parseDocument() (*xml.Document, error) {
	return xml.ParseString(document)
}
