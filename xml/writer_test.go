package xml_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/midbel/angle/xml"
)

func TestWriterWrite(t *testing.T) {
	const str = `<?xml version="1.0" encoding="UTF-8"?><test:root xmlns:test="urn:test" id="1"><test:a attr="text">text</test:a><test:a attr="self"/></test:root>`

	doc, err := xml.ParseString(str)
	if err != nil {
		t.Errorf("fail to parse input document: %s", err)
		return
	}

	data := []struct {
		Want    string
		Options xml.WriterOptions
	}{
		{
			Want:    `<test:root xmlns:test="urn:test" id="1"><test:a attr="text">text</test:a><test:a attr="self"/></test:root>`,
			Options: xml.OptionCompact | xml.OptionNoProlog,
		},
		{
			Want:    `<?xml version="1.0" encoding="UTF-8"?><test:root xmlns:test="urn:test" id="1"><test:a attr="text">text</test:a><test:a attr="self"/></test:root>`,
			Options: xml.OptionCompact,
		},
		{
			Want: strings.Join([]string{
				`<?xml version="1.0" encoding="UTF-8"?>`,
				`<test:root xmlns:test="urn:test" id="1">`,
				`  <test:a attr="text">text</test:a>`,
				`  <test:a attr="self"/>`,
				`</test:root>`,
			}, "\n"),
		},
	}
	for _, d := range data {
		var buf bytes.Buffer
		ws := xml.NewWriter(&buf)
		ws.WriterOptions = d.Options
		if err := ws.Write(doc); err != nil {
			t.Errorf("error writing document: %s", err)
			continue
		}
		if got := buf.String(); got != d.Want {
			t.Errorf("documents mismatched!")
			t.Logf("want: %s", d.Want)
			t.Logf("got : %s", got)
		}
	}
}

func TestWriterCharData(t *testing.T) {
	doc, err := xml.ParseString(`<root><code>a]]&gt;b &lt; c</code><text>a &amp; b</text></root>`)
	if err != nil {
		t.Fatalf("fail to parse input document: %s", err)
	}
	var buf bytes.Buffer
	ws := xml.NewWriter(&buf)
	ws.WriterOptions = xml.OptionCompact | xml.OptionNoProlog
	ws.CData = func(name xml.QName) bool {
		return name.Name == "code"
	}
	if err := ws.Write(doc); err != nil {
		t.Fatalf("error writing document: %s", err)
	}
	want := `<root><code><![CDATA[a]]]]><![CDATA[>b < c]]></code><text>a &amp; b</text></root>`
	if got := buf.String(); got != want {
		t.Errorf("cdata mismatched! want %s, got %s", want, got)
	}
}

func TestWriterDoctype(t *testing.T) {
	doc, err := xml.ParseString(`<html><body/></html>`)
	if err != nil {
		t.Fatalf("fail to parse input document: %s", err)
	}
	var buf bytes.Buffer
	ws := xml.NewWriter(&buf)
	ws.WriterOptions = xml.OptionCompact
	ws.Standalone = "yes"
	ws.DocType = xml.NewDocType("html", "-//W3C//DTD XHTML 1.0 Strict//EN", "xhtml1-strict.dtd")
	if err := ws.Write(doc); err != nil {
		t.Fatalf("error writing document: %s", err)
	}
	want := `<?xml version="1.0" encoding="UTF-8" standalone="yes"?><!DOCTYPE html PUBLIC "-//W3C//DTD XHTML 1.0 Strict//EN" "xhtml1-strict.dtd"><html><body/></html>`
	if got := buf.String(); got != want {
		t.Errorf("doctype mismatched!\nwant: %s\ngot : %s", want, got)
	}
}
