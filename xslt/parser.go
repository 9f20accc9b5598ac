package xslt

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/midbel/angle/resource"
	"github.com/midbel/angle/xml"
	"github.com/midbel/angle/xpath"
)

// Parser builds a Stylesheet from the token stream of its root resource and
// of every resource reached through xsl:import and xsl:include. Each
// resource is fed to its own sink; a sink reaching an import suspends its
// token source until the imported resource is completely parsed.
type Parser struct {
	sheet  *Stylesheet
	loader resource.Loader
	diag   *Diagnostics
	root   *entitySink
	sinks  map[*entitySink]struct{}
	rank   ranking

	errs     []error
	fatal    error
	done     bool
	canceled bool
	onDone   []func(*Stylesheet, error)
}

func NewParser(url string, loader resource.Loader, diag *Diagnostics) *Parser {
	p := Parser{
		sheet:  newStylesheet(url),
		loader: loader,
		diag:   diag,
		sinks:  make(map[*entitySink]struct{}),
	}
	imp := newImport(0, url, nil, false)
	p.sheet.addImport(imp)
	p.root = p.newSink(imp, nil, resource.KindLinked)
	return &p
}

// Sink gives the sink of the root resource, for callers delivering its
// tokens themselves.
func (p *Parser) Sink() resource.Sink {
	return p.root
}

// Start asks the loader for the root resource.
func (p *Parser) Start() error {
	if p.loader == nil {
		return fmt.Errorf("%s: no loader: %w", p.sheet.URL, resource.ErrRejected)
	}
	switch p.loader.LoadResource(resource.KindLinked, p.sheet.URL, p.root) {
	case resource.StatusRejected:
		return fmt.Errorf("%s: %w", p.sheet.URL, resource.ErrRejected)
	case resource.StatusOOM:
		return fmt.Errorf("%s: %w", p.sheet.URL, ErrExhausted)
	default:
		return nil
	}
}

// OnDone registers fn to be called once every resource has been parsed.
// The stylesheet given to fn is nil when the parse failed.
func (p *Parser) OnDone(fn func(*Stylesheet, error)) {
	p.onDone = append(p.onDone, fn)
}

func (p *Parser) Done() bool {
	return p.done
}

// Stylesheet gives the stylesheet being built. It is only usable once the
// parser is done without error.
func (p *Parser) Stylesheet() *Stylesheet {
	return p.sheet
}

func (p *Parser) Err() error {
	if p.fatal != nil {
		return p.fatal
	}
	if err := errors.Join(p.errs...); err != nil {
		return err
	}
	if p.done && p.sheet.imports[0].Root == NoHandle {
		return fmt.Errorf("%s: %w", p.sheet.URL, ErrNoStylesheet)
	}
	return nil
}

// Cancel stops the loads still in progress. OnDone functions are not
// called afterwards.
func (p *Parser) Cancel() {
	if p.done {
		return
	}
	p.canceled = true
	p.done = true
	for s := range p.sinks {
		if p.loader != nil {
			p.loader.CancelLoadResource(s)
		}
	}
	clear(p.sinks)
}

func (p *Parser) newSink(imp *Import, parent *entitySink, kind resource.Kind) *entitySink {
	s := entitySink{
		parser: p,
		imp:    imp,
		parent: parent,
		kind:   kind,
	}
	p.sinks[&s] = struct{}{}
	return &s
}

// report sends err to the diagnostics. A handler running out of memory
// aborts the parse.
func (p *Parser) report(err error) {
	p.errs = append(p.errs, err)
	var (
		ce  *ConstructError
		ctx string
		url string
	)
	if errors.As(err, &ce) {
		ctx, url = ce.Path, ce.URL
	}
	if !p.diag.Report(MessageError, err.Error(), ctx, url) {
		p.fatal = fmt.Errorf("diagnostics: %w", ErrExhausted)
	}
}

func (p *Parser) entityDone(s *entitySink) {
	delete(p.sinks, s)
	if p.canceled {
		return
	}
	if s.parent != nil {
		s.parent.childDone()
		return
	}
	p.finish()
}

func (p *Parser) finish() {
	if p.done {
		return
	}
	p.done = true
	if p.fatal == nil {
		if err := p.sheet.finish(); err != nil {
			p.report(err)
		}
	}
	var (
		err   = p.Err()
		sheet = p.sheet
	)
	if err != nil {
		sheet = nil
	}
	for _, fn := range p.onDone {
		fn(sheet, err)
	}
}

type parseFrame struct {
	handle Handle
	err    error
}

type pendingElement struct {
	name  xml.QName
	kind  ElementType
	attrs []Attr
	decls []xml.NS
}

// entitySink receives the tokens of one stylesheet resource.
type entitySink struct {
	parser *Parser
	imp    *Import
	parent *entitySink
	kind   resource.Kind
	path   string

	source  xml.Resumer
	started bool
	depth   int

	frames  []parseFrame
	pending *pendingElement
	text    strings.Builder
	broken  error

	waiting   bool
	suspended bool
	finished  bool
}

func (s *entitySink) arena() *Arena {
	return &s.parser.sheet.arena
}

func (s *entitySink) StartEntity(_ string, info *xml.EntityInfo, ref bool) error {
	if ref || s.started {
		s.depth++
		return nil
	}
	s.started = true
	if info != nil {
		s.source = info.Source
	}
	return nil
}

func (s *entitySink) StartElement(name xml.QName, _ bool) (bool, error) {
	s.flushText()
	if s.parser.fatal != nil {
		return false, s.parser.fatal
	}
	if s.failed() {
		return true, nil
	}
	var (
		kind   = ClassifyElement(name)
		parent = s.current()
		path   = name.QualifiedName()
	)
	if parent != nil {
		path = s.arena().Path(s.top()) + "/" + path
	}
	switch {
	case parent == nil:
		if kind != ElemStylesheet && kind != ElemTransform && kind != ElemLiteral {
			s.broken = constructError(s.imp.URL, path, ErrUnexpected)
			s.parser.report(s.broken)
			return true, nil
		}
	case parent.Kind == KindStylesheet && !parent.Synthetic:
		if kind == ElemLiteral {
			if name.Uri != "" {
				return true, nil
			}
			s.failAt(path, ErrUnexpected)
			return true, nil
		}
		if !kind.Declaration() {
			if s.imp.ForwardCompatible {
				return true, nil
			}
			s.failAt(path, ErrUnexpected)
			return true, nil
		}
		if kind == ElemImport {
			if !s.imp.ImportsAllowed {
				s.failAt(path, ErrUnexpected)
				return true, nil
			}
			break
		}
		s.imp.ImportsAllowed = false
		if kind != ElemInclude {
			s.parser.rank.assign(s.imp)
		}
	}
	s.pending = &pendingElement{
		name: name,
		kind: kind,
	}
	return false, nil
}

func (s *entitySink) AddAttribute(name xml.QName, value string, _, _ bool) error {
	if s.pending == nil {
		return nil
	}
	if name.Uri == xml.NamespaceXMLNS {
		prefix := name.Name
		if name.Space == "" {
			prefix = ""
		}
		s.pending.decls = append(s.pending.decls, xml.NS{
			Prefix: prefix,
			Uri:    value,
		})
		return nil
	}
	s.pending.attrs = append(s.pending.attrs, Attr{
		Name:  name,
		Value: value,
	})
	return nil
}

// StartContent creates the construct of the element whose attributes have
// all been received.
func (s *entitySink) StartContent() error {
	pe := s.pending
	if pe == nil {
		return nil
	}
	s.pending = nil

	c := Construct{
		Kind:    kindOf(pe.kind, len(s.frames) == 1),
		Type:    pe.kind,
		Name:    pe.name,
		Parent:  NoHandle,
		Import:  s.imp.Index,
		BaseURL: s.imp.URL,
	}
	if p := s.current(); p != nil {
		c.Parent = s.top()
		c.NS = p.NS
		c.Preserve = p.Preserve
		c.Excluded = p.Excluded
		c.Extensions = p.Extensions
	}
	for _, ns := range pe.decls {
		c.NS = c.NS.Declare(ns)
	}
	err := s.attributes(&c, pe.attrs)
	if err == nil {
		err = checkRequired(&c)
	}

	if len(s.frames) == 0 {
		if c.Type == ElemLiteral {
			return s.simplified(c, err)
		}
		c.Kind = KindStylesheet
		if v, ok := c.Attr(AttrVersion); ok && err == nil {
			err = s.version(v)
		}
		h := s.arena().New(c)
		s.imp.Root = h
		s.push(h, err)
		return nil
	}
	h := s.arena().New(c)
	s.push(h, err)
	return nil
}

// simplified wraps a literal result element used as the root of a
// resource into a stylesheet holding one template matching the root node.
func (s *entitySink) simplified(c Construct, err error) error {
	v, ok := c.Attr(AttrVersion)
	if !ok && err == nil {
		err = fmt.Errorf("xsl:version: %w", ErrMissingAttr)
	}
	if err == nil {
		err = s.version(v)
	}
	sheet := Construct{
		Kind:      KindStylesheet,
		Type:      ElemStylesheet,
		Name:      xml.QName{Space: xsltNamespacePrefix, Name: "stylesheet", Uri: xsltNamespaceUri},
		Parent:    NoHandle,
		Import:    s.imp.Index,
		NS:        c.NS,
		BaseURL:   c.BaseURL,
		Synthetic: true,
	}
	root := s.arena().New(sheet)
	s.imp.Root = root
	s.imp.ImportsAllowed = false
	s.parser.rank.assign(s.imp)
	s.push(root, nil)

	tpl := Construct{
		Kind: KindTemplate,
		Type: ElemTemplate,
		Name: xml.QName{Space: xsltNamespacePrefix, Name: "template", Uri: xsltNamespaceUri},
		Attrs: []Attr{
			{Type: AttrMatch, Name: xml.QName{Name: "match"}, Value: "/"},
		},
		Parent:    root,
		Import:    s.imp.Index,
		NS:        c.NS,
		BaseURL:   c.BaseURL,
		Synthetic: true,
	}
	s.push(s.arena().New(tpl), nil)

	c.Parent = s.top()
	s.push(s.arena().New(c), err)
	return nil
}

func (s *entitySink) version(v string) error {
	s.imp.Version = v
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return invalidValue("version", v)
	}
	s.imp.ForwardCompatible = f != 1
	return nil
}

// attributes classifies the attributes of c and applies the ones changing
// the context of its content.
func (s *entitySink) attributes(c *Construct, attrs []Attr) error {
	literal := c.Type == ElemLiteral
	for _, a := range attrs {
		a.Type = ClassifyAttribute(a.Name, literal)
		switch a.Type {
		case AttrXmlSpace:
			switch a.Value {
			case "preserve":
				c.Preserve = true
			case "default":
				c.Preserve = false
			default:
				return invalidValue("xml:space", a.Value)
			}
		case AttrExcludeResultPrefixes:
			if !literal && c.Type != ElemStylesheet && c.Type != ElemTransform {
				break
			}
			uris, err := prefixUris(a.Value, c.NS)
			if err != nil {
				return err
			}
			c.Excluded = append(append([]string(nil), c.Excluded...), uris...)
		case AttrExtensionElementPrefixes:
			if !literal && c.Type != ElemStylesheet && c.Type != ElemTransform {
				break
			}
			uris, err := prefixUris(a.Value, c.NS)
			if err != nil {
				return err
			}
			c.Extensions = append(append([]string(nil), c.Extensions...), uris...)
		case AttrUnknown:
			if !literal && a.Name.Uri == "" && !s.imp.ForwardCompatible {
				return fmt.Errorf("%s: %w", a.Name.QualifiedName(), ErrUnexpected)
			}
			if !literal {
				continue
			}
		}
		c.Attrs = append(c.Attrs, a)
	}
	return nil
}

func prefixUris(str string, ns *nsContext) ([]string, error) {
	var list []string
	for _, prefix := range strings.Fields(str) {
		if prefix == "#default" {
			prefix = ""
		}
		uri, ok := ns.ResolvePrefix(prefix)
		if !ok || (uri == "" && prefix != "") {
			return nil, fmt.Errorf("%s: %w", prefix, ErrUndeclaredPrefix)
		}
		list = append(list, uri)
	}
	return list, nil
}

func checkRequired(c *Construct) error {
	for _, t := range required[c.Type] {
		if !c.Has(t) {
			return fmt.Errorf("%s: %w", t, ErrMissingAttr)
		}
	}
	return nil
}

func (s *entitySink) CharacterData(text string, _ bool) error {
	if len(s.frames) == 0 || s.failed() {
		return nil
	}
	s.text.WriteString(text)
	return nil
}

func (s *entitySink) ProcessingInstruction(_, _ string) error {
	return nil
}

func (s *entitySink) Comment(_ string) error {
	return nil
}

// flushText turns the buffered character data into a text construct.
// Whitespace only text is dropped unless it is the content of xsl:text or
// xml:space="preserve" is in scope.
func (s *entitySink) flushText() {
	if s.text.Len() == 0 {
		return
	}
	str := s.text.String()
	s.text.Reset()

	parent := s.current()
	if parent == nil || s.failed() {
		return
	}
	blank := xml.IsBlank(str)
	if blank && parent.Type != ElemText && !parent.Preserve {
		return
	}
	if parent.Kind == KindStylesheet && !parent.Synthetic {
		if !blank {
			s.fail(s.top(), fmt.Errorf("text: %w", ErrUnexpected))
		}
		return
	}
	c := Construct{
		Kind:     KindText,
		Text:     str,
		Parent:   s.top(),
		Import:   s.imp.Index,
		NS:       parent.NS,
		BaseURL:  parent.BaseURL,
		Preserve: parent.Preserve,
	}
	s.arena().New(c)
}

func (s *entitySink) EndElement() (bool, bool, error) {
	s.flushText()
	if s.parser.fatal != nil {
		return false, false, s.parser.fatal
	}
	if len(s.frames) == 0 {
		return false, false, nil
	}
	block := s.close(s.pop())
	for len(s.frames) > 0 && s.current().Synthetic {
		s.close(s.pop())
	}
	return block, false, s.parser.fatal
}

// close ends the construct of fr. Declarations are registered into the
// stylesheet once complete; the transient ones are torn down afterwards. It
// reports whether the token source has to wait for a nested resource.
func (s *entitySink) close(fr parseFrame) bool {
	if len(s.frames) != 1 {
		return false
	}
	if fr.err != nil || s.frames[0].err != nil {
		s.arena().Release(fr.handle)
		return false
	}
	c := s.arena().Get(fr.handle)
	block, err := s.declare(fr.handle, c)
	if err != nil {
		s.parser.report(constructError(s.imp.URL, s.arena().Path(fr.handle), err))
		s.arena().Release(fr.handle)
		return false
	}
	if c := s.arena().Get(fr.handle); c != nil && c.Kind.Transient() {
		s.arena().Release(fr.handle)
	}
	return block
}

func (s *entitySink) declare(h Handle, c *Construct) (bool, error) {
	sheet := s.parser.sheet
	switch c.Kind {
	case KindTemplate:
		t, err := newTemplate(c, h, s.imp)
		if err != nil {
			return false, err
		}
		sheet.addTemplate(t)
	case KindVariable, KindParam:
		v, err := newVariable(c, h, s.imp)
		if err != nil {
			return false, err
		}
		sheet.addGlobal(v)
	case KindAttributeSet:
		return false, s.declareAttributeSet(h, c)
	case KindKey:
		return false, s.declareKey(c)
	case KindDecimalFormat:
		return false, s.declareDecimalFormat(c)
	case KindOutput:
		sheet.addOutput(c, s.imp.prec)
	case KindNamespaceAlias:
		al, err := parseAlias(c)
		if err != nil {
			return false, err
		}
		sheet.addAlias(al)
	case KindStripSpace, KindPreserveSpace:
		str, _ := c.Attr(AttrElements)
		for _, f := range strings.Fields(str) {
			test, err := parseNameTest(f, c.NS)
			if err != nil {
				return false, fmt.Errorf("%s: %w", f, err)
			}
			sheet.space.add(test, c.Kind == KindStripSpace, s.imp.prec)
		}
	case KindImport, KindInclude:
		return s.load(h, c)
	}
	return false, nil
}

func (s *entitySink) declareAttributeSet(h Handle, c *Construct) error {
	str, _ := c.Attr(AttrName)
	name, err := c.NS.ResolveName(str)
	if err != nil {
		return fmt.Errorf("name: %w", err)
	}
	set := AttributeSet{
		Name:   name,
		Import: s.imp,
	}
	if str, ok := c.Attr(AttrUseAttributeSets); ok {
		if set.Uses, err = resolveNames(str, c.NS); err != nil {
			return err
		}
	}
	prog, err := s.parser.sheet.compileAttributeSet(h, &set)
	if err != nil {
		return err
	}
	set.program = prog
	s.parser.sheet.addAttributeSet(&set)
	return nil
}

func (s *entitySink) declareKey(c *Construct) error {
	var (
		str, _   = c.Attr(AttrName)
		match, _ = c.Attr(AttrMatch)
		use, _   = c.Attr(AttrUse)
	)
	name, err := c.NS.ResolveName(str)
	if err != nil {
		return fmt.Errorf("name: %w", err)
	}
	pat, err := xpath.CompilePattern(match, c.NS)
	if err != nil {
		return fmt.Errorf("%s: %w: %w", match, ErrInvalidPattern, err)
	}
	q, err := xpath.Compile(use, c.NS)
	if err != nil {
		return err
	}
	s.parser.sheet.keys.RegisterKey(name, pat, q)
	return nil
}

func (s *entitySink) declareDecimalFormat(c *Construct) error {
	var (
		df   = DefaultDecimalFormat()
		name xml.QName
	)
	for _, a := range c.Attrs {
		if a.Type == AttrName {
			qn, err := c.NS.ResolveName(a.Value)
			if err != nil {
				return fmt.Errorf("name: %w", err)
			}
			name = qn
			continue
		}
		if err := df.set(a.Type, a.Value); err != nil {
			return err
		}
	}
	return s.parser.sheet.addDecimalFormat(name, df, s.imp.prec)
}

// load requests the resource of an xsl:import or an xsl:include. The
// remaining declarations of s are parsed once it is complete.
func (s *entitySink) load(h Handle, c *Construct) (bool, error) {
	href, _ := c.Attr(AttrHref)
	url, _ := resource.Fragment(resource.Resolve(c.BaseURL, href))
	if s.imp.Recursive(url) {
		return false, fmt.Errorf("%s: %w", url, ErrRecursiveImport)
	}
	var (
		included = c.Kind == KindInclude
		kind     = resource.KindImported
	)
	if included {
		kind = resource.KindIncluded
	}
	p := s.parser
	imp := newImport(len(p.sheet.imports), url, s.imp, included)
	p.sheet.addImport(imp)

	child := p.newSink(imp, s, kind)
	child.path = s.arena().Path(h)
	if p.loader == nil {
		delete(p.sinks, child)
		return false, fmt.Errorf("%s: no loader: %w", url, resource.ErrRejected)
	}
	s.waiting = true
	switch p.loader.LoadResource(kind, url, child) {
	case resource.StatusRejected:
		s.waiting = false
		delete(p.sinks, child)
		return false, fmt.Errorf("%s: %w", url, resource.ErrRejected)
	case resource.StatusOOM:
		s.waiting = false
		delete(p.sinks, child)
		p.fatal = fmt.Errorf("%s: %w", url, ErrExhausted)
		return false, p.fatal
	}
	if !s.waiting || s.source == nil {
		return false, nil
	}
	s.suspended = true
	return true, nil
}

func (s *entitySink) childDone() {
	if !s.waiting {
		return
	}
	s.waiting = false
	if s.suspended {
		s.suspended = false
		s.source.Resume()
	}
}

func (s *entitySink) EndEntity() error {
	if s.depth > 0 {
		s.depth--
		return nil
	}
	s.flushText()
	s.end()
	return s.parser.fatal
}

func (s *entitySink) LoadFailed(url string, err error) {
	if s.finished {
		return
	}
	if errors.Is(err, ErrExhausted) && s.parser.fatal == nil {
		s.parser.fatal = err
	}
	path := s.path
	if path == "" {
		path = "/"
	}
	s.parser.report(constructError(url, path, err))
	s.end()
}

func (s *entitySink) end() {
	if s.finished {
		return
	}
	s.finished = true
	if !s.imp.prec.assigned {
		s.parser.rank.assign(s.imp)
	}
	s.parser.entityDone(s)
}

func (s *entitySink) push(h Handle, err error) {
	s.frames = append(s.frames, parseFrame{
		handle: h,
	})
	if err != nil {
		s.fail(h, err)
	}
}

func (s *entitySink) pop() parseFrame {
	n := len(s.frames)
	fr := s.frames[n-1]
	s.frames = s.frames[:n-1]
	return fr
}

func (s *entitySink) top() Handle {
	if n := len(s.frames); n > 0 {
		return s.frames[n-1].handle
	}
	return NoHandle
}

func (s *entitySink) current() *Construct {
	return s.arena().Get(s.top())
}

// failed reports whether the declaration being parsed, or the whole
// resource, has an error: its remaining content is skipped.
func (s *entitySink) failed() bool {
	if s.broken != nil {
		return true
	}
	switch n := len(s.frames); {
	case n == 0:
		return false
	case s.frames[0].err != nil:
		return true
	default:
		return n > 1 && s.frames[s.unit()].err != nil
	}
}

// unit gives the index of the frame of the top-level declaration.
func (s *entitySink) unit() int {
	return min(1, len(s.frames)-1)
}

func (s *entitySink) fail(h Handle, err error) {
	s.failAt(s.arena().Path(h), err)
}

func (s *entitySink) failAt(path string, err error) {
	err = constructError(s.imp.URL, path, err)
	s.parser.report(err)
	if len(s.frames) == 0 {
		s.broken = err
		return
	}
	if fr := &s.frames[s.unit()]; fr.err == nil {
		fr.err = err
	}
}
