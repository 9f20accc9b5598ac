package xml

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"strings"
)

type WriterOptions uint64

const (
	OptionCompact WriterOptions = 1 << iota
	OptionNoProlog
	OptionNoComment
)

func (w WriterOptions) Compact() bool {
	return w&OptionCompact > 0
}

func (w WriterOptions) NoProlog() bool {
	return w&OptionNoProlog > 0
}

func (w WriterOptions) NoComment() bool {
	return w&OptionNoComment > 0
}

type Writer struct {
	writer *bufio.Writer

	Indent     string
	Encoding   string
	Standalone string
	DocType    *DocType
	// CData reports whether the text content of an element should be written
	// as CDATA sections.
	CData func(QName) bool
	WriterOptions
}

func NewWriter(w io.Writer) *Writer {
	return &Writer{
		writer:   bufio.NewWriter(w),
		Indent:   "  ",
		Encoding: SupportedEncoding,
	}
}

func WriteNode(node Node) string {
	var buf bytes.Buffer
	ws := NewWriter(&buf)
	ws.WriterOptions |= OptionCompact | OptionNoProlog
	ws.WriteNode(node)
	return buf.String()
}

func (w *Writer) Write(doc *Document) error {
	if !w.NoProlog() {
		w.writeProlog()
	}
	doctype := w.DocType
	if doctype == nil {
		doctype = doc.DocType
	}
	for i, n := range doc.Nodes {
		if n.Type() == TypeElement && doctype != nil {
			w.writeDoctype(n.QualifiedName(), doctype)
		}
		if i > 0 || !w.NoProlog() {
			w.writeNL()
		}
		if err := w.writeNode(n, 0); err != nil {
			return err
		}
	}
	return w.writer.Flush()
}

func (w *Writer) WriteNode(node Node) error {
	if err := w.writeNode(node, 0); err != nil {
		return err
	}
	return w.writer.Flush()
}

func (w *Writer) writeNode(node Node, depth int) error {
	switch node := node.(type) {
	case *Document:
		for _, n := range node.Nodes {
			if err := w.writeNode(n, depth); err != nil {
				return err
			}
		}
		return nil
	case *Element:
		return w.writeElement(node, depth)
	case *Text:
		return w.writeText(node)
	case *Instruction:
		return w.writeInstruction(node)
	case *Comment:
		return w.writeComment(node)
	case *Attribute:
		w.writer.WriteString(escapeAttr(node.Datum))
		return nil
	default:
		return fmt.Errorf("node: unknown type (%T)", node)
	}
}

func (w *Writer) writeElement(node *Element, depth int) error {
	w.writer.WriteRune(langle)
	w.writer.WriteString(node.QualifiedName())
	for _, ns := range node.Namespaces {
		w.writer.WriteRune(' ')
		w.writer.WriteString(AttrXmlNS)
		if ns.Prefix != "" {
			w.writer.WriteRune(':')
			w.writer.WriteString(ns.Prefix)
		}
		w.writeValue(ns.Uri)
	}
	for _, a := range node.Attrs {
		w.writer.WriteRune(' ')
		w.writer.WriteString(a.QualifiedName())
		w.writeValue(a.Datum)
	}
	if len(node.Nodes) == 0 {
		w.writer.WriteRune(slash)
		w.writer.WriteRune(rangle)
		return nil
	}
	w.writer.WriteRune(rangle)

	indent := !w.Compact() && !hasText(node)
	cdata := w.CData != nil && w.CData(node.QName)
	for _, n := range node.Nodes {
		if indent {
			w.writeNL()
			w.writer.WriteString(strings.Repeat(w.Indent, depth+1))
		}
		if t, ok := n.(*Text); ok && cdata {
			w.writeCharData(t.Content)
			continue
		}
		if err := w.writeNode(n, depth+1); err != nil {
			return err
		}
	}
	if indent {
		w.writeNL()
		w.writer.WriteString(strings.Repeat(w.Indent, depth))
	}
	w.writer.WriteRune(langle)
	w.writer.WriteRune(slash)
	w.writer.WriteString(node.QualifiedName())
	w.writer.WriteRune(rangle)
	return nil
}

func (w *Writer) writeValue(str string) {
	w.writer.WriteRune(equal)
	w.writer.WriteRune(quote)
	w.writer.WriteString(escapeAttr(str))
	w.writer.WriteRune(quote)
}

func (w *Writer) writeText(node *Text) error {
	if node.CData {
		w.writeCharData(node.Content)
		return nil
	}
	_, err := w.writer.WriteString(EscapeText(node.Content))
	return err
}

func (w *Writer) writeCharData(str string) {
	for {
		before, after, found := strings.Cut(str, "]]>")
		w.writer.WriteString("<![CDATA[")
		w.writer.WriteString(before)
		if found {
			w.writer.WriteString("]]")
		}
		w.writer.WriteString("]]>")
		if !found {
			break
		}
		str = ">" + after
	}
}

func (w *Writer) writeComment(node *Comment) error {
	if w.NoComment() {
		return nil
	}
	w.writer.WriteString("<!--")
	w.writer.WriteString(node.Content)
	w.writer.WriteString("-->")
	return nil
}

func (w *Writer) writeInstruction(node *Instruction) error {
	w.writer.WriteRune(langle)
	w.writer.WriteRune(question)
	w.writer.WriteString(node.Target)
	if node.Content != "" {
		w.writer.WriteRune(' ')
		w.writer.WriteString(node.Content)
	}
	w.writer.WriteRune(question)
	w.writer.WriteRune(rangle)
	return nil
}

func (w *Writer) writeProlog() {
	w.writer.WriteString(`<?xml version="1.0" encoding="`)
	w.writer.WriteString(w.Encoding)
	w.writer.WriteRune(quote)
	if w.Standalone != "" {
		w.writer.WriteString(` standalone="`)
		w.writer.WriteString(w.Standalone)
		w.writer.WriteRune(quote)
	}
	w.writer.WriteRune(question)
	w.writer.WriteRune(rangle)
}

func (w *Writer) writeDoctype(root string, doctype *DocType) {
	if doctype.PublicID == "" && doctype.SystemID == "" {
		return
	}
	w.writeNL()
	w.writer.WriteString("<!DOCTYPE ")
	w.writer.WriteString(root)
	if doctype.PublicID != "" {
		w.writer.WriteString(` PUBLIC "`)
		w.writer.WriteString(doctype.PublicID)
		w.writer.WriteRune(quote)
		if doctype.SystemID != "" {
			w.writer.WriteString(` "`)
			w.writer.WriteString(doctype.SystemID)
			w.writer.WriteRune(quote)
		}
	} else {
		w.writer.WriteString(` SYSTEM "`)
		w.writer.WriteString(doctype.SystemID)
		w.writer.WriteRune(quote)
	}
	w.writer.WriteRune(rangle)
}

func (w *Writer) writeNL() {
	if w.Compact() {
		return
	}
	w.writer.WriteRune('\n')
}

func hasText(el *Element) bool {
	for _, n := range el.Nodes {
		if n.Type() == TypeText {
			return true
		}
	}
	return false
}

func EscapeText(str string) string {
	var buf bytes.Buffer
	for _, r := range str {
		switch r {
		case '<':
			buf.WriteString("&lt;")
		case '>':
			buf.WriteString("&gt;")
		case '&':
			buf.WriteString("&amp;")
		default:
			buf.WriteRune(r)
		}
	}
	return buf.String()
}

func escapeAttr(str string) string {
	var buf bytes.Buffer
	for _, r := range str {
		switch r {
		case '<':
			buf.WriteString("&lt;")
		case '&':
			buf.WriteString("&amp;")
		case '"':
			buf.WriteString("&quot;")
		case '\n':
			buf.WriteString("&#10;")
		case '\t':
			buf.WriteString("&#9;")
		case '\r':
			buf.WriteString("&#13;")
		default:
			buf.WriteRune(r)
		}
	}
	return buf.String()
}
