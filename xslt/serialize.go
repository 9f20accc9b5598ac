package xslt

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/midbel/angle/xml"
)

// StringSink receives the serialized result of a transformation chunk by
// chunk.
type StringSink interface {
	CollectStringData(string) error
	StringDataFinished() error
}

type writerSink struct {
	io.Writer
}

// WriterSink makes a StringSink writing to w.
func WriterSink(w io.Writer) StringSink {
	return writerSink{
		Writer: w,
	}
}

func (w writerSink) CollectStringData(str string) error {
	_, err := io.WriteString(w.Writer, str)
	return err
}

func (w writerSink) StringDataFinished() error {
	if c, ok := w.Writer.(interface{ Flush() error }); ok {
		return c.Flush()
	}
	return nil
}

type sinkWriter struct {
	sink StringSink
}

func (w sinkWriter) Write(b []byte) (int, error) {
	if err := w.sink.CollectStringData(string(b)); err != nil {
		return 0, err
	}
	return len(b), nil
}

// NewStringOutput creates the handler serializing the result according to
// the method of out. Every top level node is written to sink as soon as it
// is complete.
func NewStringOutput(sink StringSink, out *Output) OutputHandler {
	if out == nil {
		out = defaultOutput().Resolved(MethodXML)
	}
	switch out.Method {
	case MethodText:
		return &textOutput{
			sink: sink,
		}
	case MethodHTML:
		return &htmlOutput{
			sink: sink,
			out:  out,
		}
	default:
		return &xmlOutput{
			sink: sink,
			out:  out,
		}
	}
}

type textOutput struct {
	sink StringSink
}

func (t *textOutput) StartElement(_ xml.QName) error {
	return nil
}

func (t *textOutput) Namespace(_ xml.NS) error {
	return nil
}

func (t *textOutput) Attribute(_ xml.QName, _ string) error {
	return nil
}

func (t *textOutput) Text(text string, _ bool) error {
	return t.sink.CollectStringData(text)
}

func (t *textOutput) Comment(_ string) error {
	return nil
}

func (t *textOutput) ProcessingInstruction(_, _ string) error {
	return nil
}

func (t *textOutput) EndElement() error {
	return nil
}

func (t *textOutput) Finish() error {
	return t.sink.StringDataFinished()
}

type xmlOutput struct {
	sink    StringSink
	out     *Output
	stack   []*xml.Element
	started bool
	root    bool
}

func (x *xmlOutput) writer() *xml.Writer {
	w := xml.NewWriter(sinkWriter{sink: x.sink})
	w.CData = x.out.IsCDataSection
	w.WriterOptions |= xml.OptionNoProlog
	if !x.out.Indent {
		w.WriterOptions |= xml.OptionCompact
	}
	return w
}

func (x *xmlOutput) prolog() error {
	if x.started {
		return nil
	}
	x.started = true
	if x.out.OmitDeclaration {
		return nil
	}
	var str strings.Builder
	fmt.Fprintf(&str, `<?xml version="%s" encoding="%s"`, x.out.Version, x.out.Encoding)
	if x.out.Standalone != "" {
		fmt.Fprintf(&str, ` standalone="%s"`, x.out.Standalone)
	}
	str.WriteString("?>\n")
	return x.sink.CollectStringData(str.String())
}

func (x *xmlOutput) current() *xml.Element {
	if n := len(x.stack); n > 0 {
		return x.stack[n-1]
	}
	return nil
}

func (x *xmlOutput) emit(node xml.Node) error {
	if err := x.prolog(); err != nil {
		return err
	}
	if el, ok := node.(*xml.Element); ok && !x.root {
		x.root = true
		if dt := x.out.DocType(el.QualifiedName()); dt != nil {
			if err := x.sink.CollectStringData(doctypeString(dt)); err != nil {
				return err
			}
		}
	}
	if err := x.writer().WriteNode(node); err != nil {
		return err
	}
	if x.out.Indent {
		return x.sink.CollectStringData("\n")
	}
	return nil
}

func (x *xmlOutput) StartElement(name xml.QName) error {
	el := xml.NewElement(name)
	if curr := x.current(); curr != nil {
		curr.Append(el)
	}
	x.stack = append(x.stack, el)
	return nil
}

func (x *xmlOutput) Namespace(ns xml.NS) error {
	if curr := x.current(); curr != nil {
		curr.DeclareNS(ns)
	}
	return nil
}

func (x *xmlOutput) Attribute(name xml.QName, value string) error {
	if curr := x.current(); curr != nil {
		curr.SetAttribute(xml.NewAttribute(name, value))
	}
	return nil
}

func (x *xmlOutput) Text(text string, raw bool) error {
	curr := x.current()
	if curr == nil {
		if err := x.prolog(); err != nil {
			return err
		}
		if !raw {
			text = xml.EscapeText(text)
		}
		return x.sink.CollectStringData(text)
	}
	if n := len(curr.Nodes); n > 0 {
		if t, ok := curr.Nodes[n-1].(*xml.Text); ok {
			t.Content += text
			return nil
		}
	}
	curr.Append(xml.NewText(text))
	return nil
}

func (x *xmlOutput) Comment(text string) error {
	c := xml.NewComment(text)
	if curr := x.current(); curr != nil {
		curr.Append(c)
		return nil
	}
	return x.emit(c)
}

func (x *xmlOutput) ProcessingInstruction(target, data string) error {
	pi := xml.NewInstruction(target, data)
	if curr := x.current(); curr != nil {
		curr.Append(pi)
		return nil
	}
	return x.emit(pi)
}

func (x *xmlOutput) EndElement() error {
	n := len(x.stack)
	if n == 0 {
		return nil
	}
	el := x.stack[n-1]
	x.stack = x.stack[:n-1]
	if n > 1 {
		return nil
	}
	return x.emit(el)
}

func (x *xmlOutput) Finish() error {
	if err := x.prolog(); err != nil {
		return err
	}
	return x.sink.StringDataFinished()
}

func doctypeString(dt *xml.DocType) string {
	var str strings.Builder
	str.WriteString("<!DOCTYPE ")
	str.WriteString(dt.Name)
	if dt.PublicID != "" {
		fmt.Fprintf(&str, ` PUBLIC "%s"`, dt.PublicID)
		if dt.SystemID != "" {
			fmt.Fprintf(&str, ` "%s"`, dt.SystemID)
		}
	} else {
		fmt.Fprintf(&str, ` SYSTEM "%s"`, dt.SystemID)
	}
	str.WriteString(">\n")
	return str.String()
}

type htmlOutput struct {
	sink  StringSink
	out   *Output
	stack []*html.Node
	root  bool
}

func (h *htmlOutput) current() *html.Node {
	if n := len(h.stack); n > 0 {
		return h.stack[n-1]
	}
	return nil
}

func (h *htmlOutput) emit(node *html.Node) error {
	if node.Type == html.ElementNode && !h.root {
		h.root = true
		if h.out.DoctypePublic != "" || h.out.DoctypeSystem != "" {
			dt := html.Node{
				Type: html.DoctypeNode,
				Data: "html",
			}
			if h.out.DoctypePublic != "" {
				dt.Attr = append(dt.Attr, html.Attribute{Key: "public", Val: h.out.DoctypePublic})
			}
			if h.out.DoctypeSystem != "" {
				dt.Attr = append(dt.Attr, html.Attribute{Key: "system", Val: h.out.DoctypeSystem})
			}
			if err := h.render(&dt); err != nil {
				return err
			}
			if err := h.sink.CollectStringData("\n"); err != nil {
				return err
			}
		}
	}
	return h.render(node)
}

func (h *htmlOutput) render(node *html.Node) error {
	return html.Render(sinkWriter{sink: h.sink}, node)
}

func (h *htmlOutput) append(node *html.Node) error {
	if curr := h.current(); curr != nil {
		curr.AppendChild(node)
		return nil
	}
	return h.emit(node)
}

func (h *htmlOutput) StartElement(name xml.QName) error {
	node := html.Node{
		Type: html.ElementNode,
		Data: name.QualifiedName(),
	}
	if name.Uri == "" {
		node.Data = strings.ToLower(node.Data)
		node.DataAtom = atom.Lookup([]byte(node.Data))
	}
	if curr := h.current(); curr != nil {
		curr.AppendChild(&node)
	}
	h.stack = append(h.stack, &node)
	return nil
}

func (h *htmlOutput) Namespace(ns xml.NS) error {
	curr := h.current()
	if curr == nil {
		return nil
	}
	key := xml.AttrXmlNS
	if ns.Prefix != "" {
		key += ":" + ns.Prefix
	}
	curr.Attr = append(curr.Attr, html.Attribute{Key: key, Val: ns.Uri})
	return nil
}

func (h *htmlOutput) Attribute(name xml.QName, value string) error {
	curr := h.current()
	if curr == nil {
		return nil
	}
	curr.Attr = append(curr.Attr, html.Attribute{
		Key: name.QualifiedName(),
		Val: value,
	})
	return nil
}

func (h *htmlOutput) Text(text string, raw bool) error {
	node := html.Node{
		Type: html.TextNode,
		Data: text,
	}
	if raw {
		node.Type = html.RawNode
	}
	return h.append(&node)
}

func (h *htmlOutput) Comment(text string) error {
	node := html.Node{
		Type: html.CommentNode,
		Data: text,
	}
	return h.append(&node)
}

func (h *htmlOutput) ProcessingInstruction(target, data string) error {
	node := html.Node{
		Type: html.RawNode,
		Data: "<?" + target + " " + data + ">",
	}
	return h.append(&node)
}

func (h *htmlOutput) EndElement() error {
	n := len(h.stack)
	if n == 0 {
		return nil
	}
	node := h.stack[n-1]
	h.stack = h.stack[:n-1]
	if n > 1 {
		return nil
	}
	return h.emit(node)
}

func (h *htmlOutput) Finish() error {
	return h.sink.StringDataFinished()
}
