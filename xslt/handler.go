package xslt

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/midbel/angle/xml"
)

// OutputHandler receives the result of a transformation. The namespaces and
// the attributes of an element are always given right after StartElement,
// before any other event.
type OutputHandler interface {
	StartElement(name xml.QName) error
	Namespace(ns xml.NS) error
	Attribute(name xml.QName, value string) error
	Text(text string, raw bool) error
	Comment(text string) error
	ProcessingInstruction(target, data string) error
	EndElement() error
	Finish() error
}

type pendingAttr struct {
	name  xml.QName
	value string
}

type pendingTag struct {
	name  xml.QName
	ns    []xml.NS
	attrs []pendingAttr
}

// resultWriter sits between the interpreter and an OutputHandler. It keeps
// the start tag of the last element open while namespaces and attributes
// are added, and declares the namespaces used by the names of the tag.
type resultWriter struct {
	out     OutputHandler
	pending *pendingTag
	scopes  [][]xml.NS
	prefix  int
	size    int
	limit   int
}

func newResultWriter(out OutputHandler, limit int) *resultWriter {
	return &resultWriter{
		out:   out,
		limit: limit,
	}
}

func (w *resultWriter) StartElement(name xml.QName) error {
	if err := w.flush(); err != nil {
		return err
	}
	if name.Uri == "" {
		name.Space = ""
	}
	w.pending = &pendingTag{
		name: name,
	}
	return nil
}

// Namespace adds a namespace node to the open tag. Namespace nodes added
// once the content of an element started are dropped.
func (w *resultWriter) Namespace(ns xml.NS) error {
	if w.pending == nil {
		return nil
	}
	i := slices.IndexFunc(w.pending.ns, func(n xml.NS) bool {
		return n.Prefix == ns.Prefix
	})
	if i >= 0 {
		w.pending.ns[i] = ns
		return nil
	}
	w.pending.ns = append(w.pending.ns, ns)
	return nil
}

// Attribute adds an attribute to the open tag, replacing an attribute with
// the same expanded name. Attributes added once the content of an element
// started are dropped.
func (w *resultWriter) Attribute(name xml.QName, value string) error {
	if w.pending == nil {
		return nil
	}
	if err := w.grow(len(value)); err != nil {
		return err
	}
	i := slices.IndexFunc(w.pending.attrs, func(a pendingAttr) bool {
		return a.name.Equal(name)
	})
	if i >= 0 {
		w.pending.attrs[i].value = value
		return nil
	}
	w.pending.attrs = append(w.pending.attrs, pendingAttr{
		name:  name,
		value: value,
	})
	return nil
}

func (w *resultWriter) Text(text string, raw bool) error {
	if text == "" {
		return nil
	}
	if err := w.flush(); err != nil {
		return err
	}
	if err := w.grow(len(text)); err != nil {
		return err
	}
	return w.out.Text(text, raw)
}

func (w *resultWriter) Comment(text string) error {
	if err := w.flush(); err != nil {
		return err
	}
	if err := w.grow(len(text)); err != nil {
		return err
	}
	return w.out.Comment(text)
}

func (w *resultWriter) ProcessingInstruction(target, data string) error {
	if err := w.flush(); err != nil {
		return err
	}
	if err := w.grow(len(data)); err != nil {
		return err
	}
	return w.out.ProcessingInstruction(target, data)
}

func (w *resultWriter) EndElement() error {
	if err := w.flush(); err != nil {
		return err
	}
	if n := len(w.scopes); n > 0 {
		w.scopes = w.scopes[:n-1]
	}
	return w.out.EndElement()
}

func (w *resultWriter) Finish() error {
	if err := w.flush(); err != nil {
		return err
	}
	return w.out.Finish()
}

func (w *resultWriter) grow(n int) error {
	w.size += n
	if w.limit > 0 && w.size > w.limit {
		return fmt.Errorf("output larger than %d bytes: %w", w.limit, ErrExhausted)
	}
	return nil
}

func (w *resultWriter) lookup(prefix string, decls []xml.NS) (string, bool) {
	for i := len(decls) - 1; i >= 0; i-- {
		if decls[i].Prefix == prefix {
			return decls[i].Uri, true
		}
	}
	for i := len(w.scopes) - 1; i >= 0; i-- {
		for _, ns := range w.scopes[i] {
			if ns.Prefix == prefix {
				return ns.Uri, true
			}
		}
	}
	return "", false
}

func (w *resultWriter) prefixOf(uri string, decls []xml.NS) (string, bool) {
	for i := len(decls) - 1; i >= 0; i-- {
		if decls[i].Uri == uri && decls[i].Prefix != "" {
			return decls[i].Prefix, true
		}
	}
	for i := len(w.scopes) - 1; i >= 0; i-- {
		for _, ns := range w.scopes[i] {
			if ns.Uri != uri || ns.Prefix == "" {
				continue
			}
			if u, _ := w.lookup(ns.Prefix, decls); u == uri {
				return ns.Prefix, true
			}
		}
	}
	return "", false
}

func (w *resultWriter) generatePrefix(decls []xml.NS) string {
	for {
		prefix := "ns" + strconv.Itoa(w.prefix)
		w.prefix++
		if _, ok := w.lookup(prefix, decls); !ok {
			return prefix
		}
	}
}

func (w *resultWriter) flush() error {
	if w.pending == nil {
		return nil
	}
	tag := w.pending
	w.pending = nil

	var decls []xml.NS
	for _, ns := range tag.ns {
		uri, ok := w.lookup(ns.Prefix, nil)
		if ok && uri == ns.Uri {
			continue
		}
		if !ok && ns.Prefix == "" && ns.Uri == "" {
			continue
		}
		decls = append(decls, ns)
	}
	declare := func(ns xml.NS) {
		i := slices.IndexFunc(decls, func(n xml.NS) bool {
			return n.Prefix == ns.Prefix
		})
		if i >= 0 {
			decls[i] = ns
		} else {
			decls = append(decls, ns)
		}
	}

	name := tag.name
	if uri, ok := w.lookup(name.Space, decls); !ok || uri != name.Uri {
		switch {
		case name.Uri == "" && !ok:
		case name.Uri == "":
			declare(xml.NS{})
		case ok && slices.ContainsFunc(decls, func(n xml.NS) bool { return n.Prefix == name.Space }):
			name.Space = w.generatePrefix(decls)
			declare(xml.NS{Prefix: name.Space, Uri: name.Uri})
		default:
			declare(xml.NS{Prefix: name.Space, Uri: name.Uri})
		}
	}

	attrs := slices.Clone(tag.attrs)
	for i, a := range attrs {
		if a.name.Uri == "" {
			attrs[i].name.Space = ""
			continue
		}
		if a.name.Space != "" {
			if uri, ok := w.lookup(a.name.Space, decls); !ok {
				declare(xml.NS{Prefix: a.name.Space, Uri: a.name.Uri})
				continue
			} else if uri == a.name.Uri {
				continue
			}
		}
		if prefix, ok := w.prefixOf(a.name.Uri, decls); ok {
			attrs[i].name.Space = prefix
			continue
		}
		attrs[i].name.Space = w.generatePrefix(decls)
		declare(xml.NS{Prefix: attrs[i].name.Space, Uri: a.name.Uri})
	}

	w.scopes = append(w.scopes, decls)
	if err := w.out.StartElement(name); err != nil {
		return err
	}
	for _, ns := range decls {
		if err := w.out.Namespace(ns); err != nil {
			return err
		}
	}
	for _, a := range attrs {
		if err := w.out.Attribute(a.name, a.value); err != nil {
			return err
		}
	}
	return nil
}

// TokenOutput turns the result of a transformation into a token stream.
type TokenOutput struct {
	handler xml.TokenHandler
	url     string
	info    xml.EntityInfo
	started bool
	open    bool
}

func NewTokenOutput(h xml.TokenHandler, url string, out *Output) *TokenOutput {
	t := TokenOutput{
		handler: h,
		url:     url,
	}
	if out != nil {
		t.info.Version = out.Version
		t.info.Encoding = out.Encoding
		t.info.Standalone = out.Standalone
	}
	return &t
}

func (t *TokenOutput) start() error {
	if t.started {
		return nil
	}
	t.started = true
	return t.handler.StartEntity(t.url, &t.info, false)
}

func (t *TokenOutput) content() error {
	if err := t.start(); err != nil {
		return err
	}
	if !t.open {
		return nil
	}
	t.open = false
	return t.handler.StartContent()
}

func (t *TokenOutput) StartElement(name xml.QName) error {
	if err := t.content(); err != nil {
		return err
	}
	_, err := t.handler.StartElement(name, false)
	t.open = true
	return err
}

func (t *TokenOutput) Namespace(ns xml.NS) error {
	name := xml.ExpandedName(ns.Prefix, xml.AttrXmlNS, xml.NamespaceXMLNS)
	if ns.Prefix == "" {
		name = xml.ExpandedName(xml.AttrXmlNS, "", xml.NamespaceXMLNS)
	}
	return t.handler.AddAttribute(name, ns.Uri, true, false)
}

func (t *TokenOutput) Attribute(name xml.QName, value string) error {
	return t.handler.AddAttribute(name, value, true, false)
}

func (t *TokenOutput) Text(text string, _ bool) error {
	if err := t.content(); err != nil {
		return err
	}
	return t.handler.CharacterData(text, xml.IsBlank(text))
}

func (t *TokenOutput) Comment(text string) error {
	if err := t.content(); err != nil {
		return err
	}
	return t.handler.Comment(text)
}

func (t *TokenOutput) ProcessingInstruction(target, data string) error {
	if err := t.content(); err != nil {
		return err
	}
	return t.handler.ProcessingInstruction(target, data)
}

func (t *TokenOutput) EndElement() error {
	if err := t.content(); err != nil {
		return err
	}
	_, _, err := t.handler.EndElement()
	return err
}

func (t *TokenOutput) Finish() error {
	if err := t.content(); err != nil {
		return err
	}
	return t.handler.EndEntity()
}

// textCollector keeps the text written to it, used for the value of
// attributes, comments, processing instructions and messages. Elements and
// their content are dropped.
type textCollector struct {
	str   strings.Builder
	depth int
}

func (c *textCollector) String() string {
	return c.str.String()
}

func (c *textCollector) StartElement(_ xml.QName) error {
	c.depth++
	return nil
}

func (c *textCollector) Namespace(_ xml.NS) error {
	return nil
}

func (c *textCollector) Attribute(_ xml.QName, _ string) error {
	return nil
}

func (c *textCollector) Text(text string, _ bool) error {
	if c.depth == 0 {
		c.str.WriteString(text)
	}
	return nil
}

func (c *textCollector) Comment(_ string) error {
	return nil
}

func (c *textCollector) ProcessingInstruction(_, _ string) error {
	return nil
}

func (c *textCollector) EndElement() error {
	c.depth--
	return nil
}

func (c *textCollector) Finish() error {
	return nil
}

type outputEventKind int8

const (
	eventElement outputEventKind = iota
	eventNamespace
	eventAttribute
	eventText
	eventComment
	eventInstruction
	eventEndElement
)

type outputEvent struct {
	kind   outputEventKind
	name   xml.QName
	ns     xml.NS
	value  string
	target string
	raw    bool
}

func (e outputEvent) replay(h OutputHandler) error {
	switch e.kind {
	case eventElement:
		return h.StartElement(e.name)
	case eventNamespace:
		return h.Namespace(e.ns)
	case eventAttribute:
		return h.Attribute(e.name, e.value)
	case eventText:
		return h.Text(e.value, e.raw)
	case eventComment:
		return h.Comment(e.value)
	case eventInstruction:
		return h.ProcessingInstruction(e.target, e.value)
	case eventEndElement:
		return h.EndElement()
	default:
		return nil
	}
}

// deferredOutput records the result until the output method is known. The
// method is decided by the first element or the first non whitespace text:
// an element named html without namespace selects html, anything else xml.
// Once a target is attached, the recorded events are replayed to it.
type deferredOutput struct {
	events   []outputEvent
	target   OutputHandler
	method   OutputMethod
	finished bool

	decided func(OutputMethod)
}

func (d *deferredOutput) Decided() bool {
	return d.method != MethodUnknown
}

func (d *deferredOutput) Attach(h OutputHandler) error {
	d.target = h
	events := d.events
	d.events = nil
	for _, e := range events {
		if err := e.replay(h); err != nil {
			return err
		}
	}
	if d.finished {
		return h.Finish()
	}
	return nil
}

func (d *deferredOutput) decide(m OutputMethod) {
	if d.method != MethodUnknown {
		return
	}
	d.method = m
	if d.decided != nil {
		d.decided(m)
	}
}

func (d *deferredOutput) push(e outputEvent) error {
	if d.target != nil {
		return e.replay(d.target)
	}
	d.events = append(d.events, e)
	return nil
}

func (d *deferredOutput) StartElement(name xml.QName) error {
	if name.Uri == "" && strings.EqualFold(name.Name, "html") {
		d.decide(MethodHTML)
	} else {
		d.decide(MethodXML)
	}
	return d.push(outputEvent{kind: eventElement, name: name})
}

func (d *deferredOutput) Namespace(ns xml.NS) error {
	return d.push(outputEvent{kind: eventNamespace, ns: ns})
}

func (d *deferredOutput) Attribute(name xml.QName, value string) error {
	return d.push(outputEvent{kind: eventAttribute, name: name, value: value})
}

func (d *deferredOutput) Text(text string, raw bool) error {
	if !xml.IsBlank(text) {
		d.decide(MethodXML)
	}
	return d.push(outputEvent{kind: eventText, value: text, raw: raw})
}

func (d *deferredOutput) Comment(text string) error {
	return d.push(outputEvent{kind: eventComment, value: text})
}

func (d *deferredOutput) ProcessingInstruction(target, data string) error {
	return d.push(outputEvent{kind: eventInstruction, target: target, value: data})
}

func (d *deferredOutput) EndElement() error {
	return d.push(outputEvent{kind: eventEndElement})
}

func (d *deferredOutput) Finish() error {
	d.decide(MethodXML)
	if d.target != nil {
		return d.target.Finish()
	}
	d.finished = true
	return nil
}
