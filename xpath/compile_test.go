package xpath

import (
	"errors"
	"testing"

	"github.com/midbel/angle/xml"
)

func TestCompile(t *testing.T) {
	tests := []string{
		"/",
		"/root",
		"/root/item",
		"//item",
		"/root/item[1]",
		"item[@id and position() = last()]",
		"child::item/attribute::id",
		"ancestor-or-self::*[1]",
		"../item | ./item",
		"$x * 2 div 3 mod 4",
		"-$x",
		"count(//*) > 10 or not(@id)",
		"processing-instruction('xml-stylesheet')",
		"comment() | text()",
		"(//item)[last()]/@id",
		"@*[. != '']",
		"div div div",
		"mod",
		"x:item/x:*",
		"string(.)",
		"1.5 + .5",
	}
	root := xml.NewElement(xml.LocalName("root"))
	root.DeclareNS(xml.NS{Prefix: "x", Uri: "urn:x"})
	for _, str := range tests {
		_, err := Compile(str, root)
		if err != nil {
			t.Errorf("%s: fail to compile expression: %s", str, err)
		}
	}
}

func TestCompileErrors(t *testing.T) {
	tests := []string{
		"",
		"/root[",
		"1 +",
		"foo::bar",
		"undeclared:name",
		"'abc",
		"count(1,",
		"item]",
		"()",
	}
	for _, str := range tests {
		_, err := Compile(str, nil)
		if err == nil {
			t.Errorf("%s: expected error but expression compiled", str)
			continue
		}
		if !errors.Is(err, ErrSyntax) {
			t.Errorf("%s: expected syntax error, got %s", str, err)
		}
	}
}

func TestScanOperatorContext(t *testing.T) {
	tests := []struct {
		Expr  string
		Types []rune
	}{
		{
			Expr:  "div div div",
			Types: []rune{Name, opDiv, Name, EOF},
		},
		{
			Expr:  "* * *",
			Types: []rune{Name, opMul, Name, EOF},
		},
		{
			Expr:  "@* and x:*",
			Types: []rune{attrNode, Name, opAnd, Name, EOF},
		},
		{
			Expr:  "a//b[.. != 1.5]",
			Types: []rune{Name, anyLevel, Name, begPred, parentNode, opNe, Digit, endPred, EOF},
		},
	}
	for _, c := range tests {
		var (
			scan = Scan(c.Expr)
			got  []rune
		)
		for {
			tok := scan.Scan()
			got = append(got, tok.Type)
			if tok.Type == EOF || tok.Type == Invalid {
				break
			}
		}
		if len(got) != len(c.Types) {
			t.Errorf("%s: tokens mismatched! want %d, got %d", c.Expr, len(c.Types), len(got))
			continue
		}
		for i := range got {
			if got[i] != c.Types[i] {
				t.Errorf("%s: token %d mismatched! want %d, got %d", c.Expr, i, c.Types[i], got[i])
			}
		}
	}
}

type recordTracer struct {
	rules []string
	depth int
	max   int
	fails int
}

func (r *recordTracer) Enter(rule string) {
	r.rules = append(r.rules, rule)
	r.depth++
	r.max = max(r.max, r.depth)
}

func (r *recordTracer) Leave(_ string) {
	r.depth--
}

func (r *recordTracer) Error(_ string, _ error) {
	r.fails++
}

func TestCompilerTracer(t *testing.T) {
	var rec recordTracer
	cp := NewCompiler("a/b[1] | c", nil)
	cp.Tracer = &rec
	if _, err := cp.Compile(); err != nil {
		t.Fatalf("compile failed: %s", err)
	}
	if rec.depth != 0 {
		t.Errorf("unbalanced enter/leave: depth %d", rec.depth)
	}
	if len(rec.rules) == 0 || rec.max == 0 {
		t.Errorf("no rules traced")
	}

	rec = recordTracer{}
	cp = NewCompiler("a[", nil)
	cp.Tracer = &rec
	if _, err := cp.Compile(); err == nil {
		t.Fatalf("compile should fail")
	}
	if rec.fails != 1 {
		t.Errorf("expected one error traced, got %d", rec.fails)
	}
}
