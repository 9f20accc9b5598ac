package xml_test

import (
	"errors"
	"slices"
	"strings"
	"testing"

	"github.com/midbel/angle/xml"
)

func TestTokenizer(t *testing.T) {
	const doc = `<?xml version="1.0"?>
<?xml-stylesheet href="style.xsl" type="text/xsl"?>
<!-- header -->
<root xmlns="urn:default" xmlns:x="urn:x" x:id="1">
	<x:item>a &amp; b</x:item>
	<![CDATA[<raw>]]>
</root>`

	var (
		rec xml.Recorder
		tok = xml.NewTokenizer(strings.NewReader(doc), "test.xml")
	)
	if err := tok.Run(&rec); err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	var kinds []xml.TokenKind
	for _, k := range rec.Tokens {
		kinds = append(kinds, k.Kind)
	}
	want := []xml.TokenKind{
		xml.TokEntityStart,
		xml.TokInstruction,
		xml.TokComment,
		xml.TokElementStart,
		xml.TokAttribute,
		xml.TokAttribute,
		xml.TokAttribute,
		xml.TokContentStart,
		xml.TokCharData,
		xml.TokElementStart,
		xml.TokContentStart,
		xml.TokCharData,
		xml.TokElementEnd,
		xml.TokCharData,
		xml.TokCharData,
		xml.TokCharData,
		xml.TokElementEnd,
		xml.TokEntityEnd,
	}
	if !slices.Equal(kinds, want) {
		t.Fatalf("tokens mismatched!\nwant: %v\ngot : %v", want, kinds)
	}
	root := rec.Tokens[3]
	if root.Name.Uri != "urn:default" || root.Name.Name != "root" {
		t.Errorf("root: unexpected name %+v", root.Name)
	}
	if attr := rec.Tokens[6]; attr.Name.Uri != "urn:x" || attr.Value != "1" {
		t.Errorf("attribute: unexpected name/value %+v", attr)
	}
	if item := rec.Tokens[9]; item.Name.Uri != "urn:x" {
		t.Errorf("item: unexpected namespace %s", item.Name.Uri)
	}
	if text := rec.Tokens[11]; text.Value != "a & b" || text.Blank {
		t.Errorf("text: unexpected value %q", text.Value)
	}
	if pi := rec.Tokens[1]; pi.Target != "xml-stylesheet" || pi.Value != `href="style.xsl" type="text/xsl"` {
		t.Errorf("pi: unexpected payload %+v", pi)
	}
}

func TestTokenizerErrors(t *testing.T) {
	tests := []struct {
		Name  string
		Input string
	}{
		{Name: "mismatched", Input: `<a><b></a></b>`},
		{Name: "undeclared-prefix", Input: `<x:a/>`},
		{Name: "two-roots", Input: `<a/><b/>`},
		{Name: "no-root", Input: `<!-- empty -->`},
		{Name: "unknown-entity", Input: `<a>&unknown;</a>`},
		{Name: "duplicate-attribute", Input: `<a b="1" b="2"/>`},
		{Name: "unterminated", Input: `<a><b>`},
	}
	for _, tt := range tests {
		var (
			rec xml.Recorder
			tok = xml.NewTokenizer(strings.NewReader(tt.Input), "")
		)
		err := tok.Run(&rec)
		if err == nil {
			t.Errorf("%s: expected error but none returned", tt.Name)
			continue
		}
		var perr xml.ParseError
		if !errors.As(err, &perr) {
			t.Errorf("%s: expected parse error, got %T", tt.Name, err)
		}
	}
}

type blockingHandler struct {
	xml.Recorder
	blockOn string
	names   []string
}

func (b *blockingHandler) StartElement(name xml.QName, fragment bool) (bool, error) {
	b.names = append(b.names, name.Name)
	return b.Recorder.StartElement(name, fragment)
}

func (b *blockingHandler) EndElement() (bool, bool, error) {
	b.Recorder.EndElement()
	last := b.names[len(b.names)-1]
	b.names = b.names[:len(b.names)-1]
	return last == b.blockOn, false, nil
}

func TestTokenizerBlock(t *testing.T) {
	var (
		h   = blockingHandler{blockOn: "import"}
		tok = xml.NewTokenizer(strings.NewReader(`<root><import/><next/></root>`), "")
	)
	status, err := tok.Step(&h, 0)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if status != xml.StatusBlocked {
		t.Fatalf("expected blocked status, got %s", status)
	}
	count := len(h.Tokens)
	status, err = tok.Step(&h, 0)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if status != xml.StatusDone {
		t.Fatalf("expected done status, got %s", status)
	}
	if len(h.Tokens) <= count {
		t.Errorf("no token delivered after resuming")
	}
}

func TestTokenizerDoctype(t *testing.T) {
	const doc = `<!DOCTYPE root [
	<!ENTITY logo SYSTEM "logo.png" NDATA png>
	<!ENTITY company "ACME">
	<!ATTLIST item code ID #REQUIRED>
]>
<root><item code="x1">&company;</item></root>`

	d, err := xml.ParseString(doc)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if d.Entities["logo"] != "logo.png" {
		t.Errorf("unparsed entity not registered: %v", d.Entities)
	}
	item := d.GetElementById("x1")
	if item == nil {
		t.Fatalf("element not found by id")
	}
	if item.Value() != "ACME" {
		t.Errorf("entity not expanded: %q", item.Value())
	}
	if d.DocType == nil || d.DocType.Name != "root" {
		t.Errorf("doctype not recorded")
	}
}

func TestTokenizerNamespaceScope(t *testing.T) {
	const doc = `<root xmlns="urn:a"><x:a xmlns:x="urn:x"><b xmlns=""/><x:c/></x:a><d/></root>`
	d, err := xml.ParseString(doc)
	if err != nil {
		t.Fatalf("fail to parse document: %s", err)
	}
	var uris []string
	var walk func(xml.Node)
	walk = func(n xml.Node) {
		el, ok := n.(*xml.Element)
		if !ok {
			return
		}
		uris = append(uris, el.LocalName()+"="+el.QName.Uri)
		for _, c := range el.Nodes {
			walk(c)
		}
	}
	walk(d.Root())
	want := []string{"root=urn:a", "a=urn:x", "b=", "c=urn:x", "d=urn:a"}
	if !slices.Equal(uris, want) {
		t.Errorf("namespaces mismatched: want %v, got %v", want, uris)
	}

	const closed = `<root><a xmlns:x="urn:x"/><x:b/></root>`
	if _, err := xml.ParseString(closed); err == nil {
		t.Errorf("prefix used outside of its declaring element should be rejected")
	}
}
