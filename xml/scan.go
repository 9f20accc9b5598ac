package xml

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode"

)

var ErrBlocked = errors.New("token source blocked")

type Position struct {
	Line   int
	Column int
}

type ParseError struct {
	Position
	URL     string
	Element string
	Message string
}

func (p ParseError) Error() string {
	if p.URL == "" {
		return fmt.Sprintf("%d:%d: %s: %s", p.Line, p.Column, p.Element, p.Message)
	}
	return fmt.Sprintf("%s:%d:%d: %s: %s", p.URL, p.Line, p.Column, p.Element, p.Message)
}

type Status int8

const (
	StatusMore Status = iota
	StatusBlocked
	StatusDone
)

func (s Status) String() string {
	switch s {
	case StatusMore:
		return "more"
	case StatusBlocked:
		return "blocked"
	case StatusDone:
		return "done"
	default:
		return "<unknown>"
	}
}

const eof rune = -1

type rawAttr struct {
	name  string
	value string
}

// Tokenizer reads an xml entity and delivers its tokens to a TokenHandler a
// few tokens at a time.
type Tokenizer struct {
	input *bufio.Reader
	char  rune
	Position
	str bytes.Buffer

	url     string
	info    EntityInfo
	scopes  []*nsScope
	stack   []QName
	ids     map[string]map[string]struct{}
	general map[string]string

	started bool
	root    bool
	done    bool
	ignore  int
}

func NewTokenizer(r io.Reader, url string) *Tokenizer {
	t := Tokenizer{
		input:   bufio.NewReader(r),
		url:     url,
		scopes:  []*nsScope{new(nsScope)},
		ids:     make(map[string]map[string]struct{}),
		general: make(map[string]string),
	}
	t.info.Version = SupportedVersion
	t.info.Encoding = SupportedEncoding
	t.info.Entities = make(map[string]string)
	t.Line = 1
	t.read()
	return &t
}

// SetSource registers the object able to resume delivery after a handler
// blocked the stream. It is given to handlers through EntityInfo.
func (t *Tokenizer) SetSource(r Resumer) {
	t.info.Source = r
}

func (t *Tokenizer) URL() string {
	return t.url
}

func (t *Tokenizer) Done() bool {
	return t.done
}

// Run delivers every remaining token to h. ErrBlocked is returned when h
// blocks the stream.
func (t *Tokenizer) Run(h TokenHandler) error {
	status, err := t.Step(h, 0)
	if err != nil {
		return err
	}
	if status == StatusBlocked {
		return ErrBlocked
	}
	return nil
}

// Step delivers at most max tokens to h, or every token when max is not
// positive.
func (t *Tokenizer) Step(h TokenHandler, max int) (Status, error) {
	if t.done {
		return StatusDone, nil
	}
	if !t.started {
		t.started = true
		if err := t.readDeclaration(); err != nil {
			return StatusDone, err
		}
		if err := h.StartEntity(t.url, &t.info, false); err != nil {
			return StatusDone, err
		}
	}
	for i := 0; max <= 0 || i < max; i++ {
		status, err := t.next(h)
		if err != nil {
			t.done = true
			return StatusDone, err
		}
		if status != StatusMore {
			return status, nil
		}
	}
	return StatusMore, nil
}

func (t *Tokenizer) next(h TokenHandler) (Status, error) {
	if t.char == eof {
		return t.finish(h)
	}
	if t.char != langle {
		return StatusMore, t.readText(h)
	}
	t.read()
	switch t.char {
	case slash:
		t.read()
		return t.readEndTag(h)
	case question:
		t.read()
		return StatusMore, t.readInstruction(h)
	case bang:
		t.read()
		switch t.char {
		case dash:
			return StatusMore, t.readComment(h)
		case lsquare:
			return StatusMore, t.readCharData(h)
		default:
			return StatusMore, t.readDoctype()
		}
	default:
		return t.readStartTag(h)
	}
}

func (t *Tokenizer) finish(h TokenHandler) (Status, error) {
	if len(t.stack) > 0 {
		return StatusDone, t.createError(t.stack[len(t.stack)-1].QualifiedName(), "unexpected end of document")
	}
	if !t.root {
		return StatusDone, t.createError("document", "root element missing")
	}
	t.done = true
	return StatusDone, h.EndEntity()
}

func (t *Tokenizer) readStartTag(h TokenHandler) (Status, error) {
	raw, err := t.readName()
	if err != nil {
		return StatusDone, err
	}
	if len(t.stack) == 0 && t.root {
		return StatusDone, t.createError(raw, "document has more than one root element")
	}
	var attrs []rawAttr
	for {
		t.skipBlank()
		if t.char == slash || t.char == rangle || t.char == eof {
			break
		}
		name, err := t.readName()
		if err != nil {
			return StatusDone, err
		}
		t.skipBlank()
		if t.char != equal {
			return StatusDone, t.createError(name, "missing '=' after attribute name")
		}
		t.read()
		t.skipBlank()
		value, err := t.readQuoted(true)
		if err != nil {
			return StatusDone, err
		}
		for _, a := range attrs {
			if a.name == name {
				return StatusDone, t.createError(name, "attribute already defined")
			}
		}
		attrs = append(attrs, rawAttr{name: name, value: value})
	}
	closed := t.char == slash
	if closed {
		t.read()
	}
	if t.char != rangle {
		return StatusDone, t.createError(raw, "missing '>' at end of start tag")
	}
	t.read()

	scope := t.scopes[len(t.scopes)-1].enclosed()
	for _, a := range attrs {
		switch {
		case a.name == AttrXmlNS:
			scope.define("", a.value)
		case strings.HasPrefix(a.name, AttrXmlNS+":"):
			scope.define(strings.TrimPrefix(a.name, AttrXmlNS+":"), a.value)
		}
	}
	t.scopes = append(t.scopes, scope)

	qn, err := t.resolve(raw, true)
	if err != nil {
		return StatusDone, err
	}
	t.stack = append(t.stack, qn)
	if t.ignore > 0 {
		t.ignore++
	} else if err := t.emitStart(h, qn, attrs); err != nil {
		return StatusDone, err
	}
	if closed {
		return t.closeElement(h)
	}
	return StatusMore, nil
}

func (t *Tokenizer) emitStart(h TokenHandler, qn QName, attrs []rawAttr) error {
	ignore, err := h.StartElement(qn, false)
	if err != nil {
		return err
	}
	if ignore {
		t.ignore = 1
		return nil
	}
	for _, a := range attrs {
		an, err := t.resolve(a.name, false)
		if err != nil {
			return err
		}
		if err := h.AddAttribute(an, a.value, true, t.isID(qn, an)); err != nil {
			return err
		}
	}
	return h.StartContent()
}

func (t *Tokenizer) readEndTag(h TokenHandler) (Status, error) {
	raw, err := t.readName()
	if err != nil {
		return StatusDone, err
	}
	t.skipBlank()
	if t.char != rangle {
		return StatusDone, t.createError(raw, "missing '>' at end of end tag")
	}
	t.read()
	n := len(t.stack)
	if n == 0 || t.stack[n-1].QualifiedName() != raw {
		return StatusDone, t.createError(raw, "end tag does not match start tag")
	}
	return t.closeElement(h)
}

func (t *Tokenizer) closeElement(h TokenHandler) (Status, error) {
	t.stack = t.stack[:len(t.stack)-1]
	t.scopes = t.scopes[:len(t.scopes)-1]
	if len(t.stack) == 0 {
		t.root = true
	}
	if t.ignore > 0 {
		t.ignore--
		return StatusMore, nil
	}
	block, finished, err := h.EndElement()
	if err != nil {
		return StatusDone, err
	}
	if finished {
		t.done = true
		return StatusDone, nil
	}
	if block {
		return StatusBlocked, nil
	}
	return StatusMore, nil
}

func (t *Tokenizer) readText(h TokenHandler) error {
	t.str.Reset()
	for t.char != eof && t.char != langle {
		if t.char == ampersand {
			if err := t.readReference(); err != nil {
				return err
			}
			continue
		}
		t.write()
		t.read()
	}
	text := t.str.String()
	if len(t.stack) == 0 {
		if !IsBlank(text) {
			return t.createError("document", "text outside of root element")
		}
		return nil
	}
	if t.ignore > 0 || text == "" {
		return nil
	}
	return h.CharacterData(text, IsBlank(text))
}

func (t *Tokenizer) readCharData(h TokenHandler) error {
	if !t.expect("[CDATA[") {
		return t.createError("cdata", "invalid CDATA section")
	}
	text, err := t.readUntil("]]>")
	if err != nil {
		return err
	}
	if len(t.stack) == 0 {
		return t.createError("cdata", "CDATA section outside of root element")
	}
	if t.ignore > 0 {
		return nil
	}
	return h.CharacterData(text, IsBlank(text))
}

func (t *Tokenizer) readComment(h TokenHandler) error {
	if !t.expect("--") {
		return t.createError("comment", "invalid comment")
	}
	text, err := t.readUntil("-->")
	if err != nil {
		return err
	}
	if t.ignore > 0 {
		return nil
	}
	return h.Comment(text)
}

func (t *Tokenizer) readInstruction(h TokenHandler) error {
	target, err := t.readName()
	if err != nil {
		return err
	}
	if strings.EqualFold(target, "xml") {
		return t.createError(target, "xml declaration only allowed at the beginning of the document")
	}
	t.skipBlank()
	data, err := t.readUntil("?>")
	if err != nil {
		return err
	}
	if t.ignore > 0 {
		return nil
	}
	return h.ProcessingInstruction(target, data)
}

func (t *Tokenizer) readDeclaration() error {
	t.skipBlank()
	if t.char != langle {
		return nil
	}
	peek, _ := t.input.Peek(5)
	if !bytes.HasPrefix(peek, []byte("?xml")) || len(peek) < 5 || !isBlank(rune(peek[4])) {
		return nil
	}
	t.read()
	t.read()
	if _, err := t.readName(); err != nil {
		return err
	}
	for {
		t.skipBlank()
		if t.char == question || t.char == eof {
			break
		}
		name, err := t.readName()
		if err != nil {
			return err
		}
		t.skipBlank()
		if t.char != equal {
			return t.createError("xml", "missing '=' in declaration")
		}
		t.read()
		t.skipBlank()
		value, err := t.readQuoted(false)
		if err != nil {
			return err
		}
		switch name {
		case "version":
			t.info.Version = value
		case "encoding":
			t.info.Encoding = value
		case "standalone":
			t.info.Standalone = value
		default:
			return t.createError("xml", fmt.Sprintf("%s: unknown attribute in declaration", name))
		}
	}
	if !t.expect("?>") {
		return t.createError("xml", "declaration not closed")
	}
	return nil
}

func (t *Tokenizer) readDoctype() error {
	if !t.expect("DOCTYPE") {
		return t.createError("doctype", "invalid markup declaration")
	}
	if t.root || len(t.stack) > 0 || t.info.DocType != nil {
		return t.createError("doctype", "doctype not allowed here")
	}
	t.skipBlank()
	name, err := t.readName()
	if err != nil {
		return err
	}
	var doctype DocType
	doctype.Name = name
	t.skipBlank()
	doctype.PublicID, doctype.SystemID, err = t.readExternalID()
	if err != nil {
		return err
	}
	t.skipBlank()
	if t.char == lsquare {
		t.read()
		if err := t.readInternalSubset(); err != nil {
			return err
		}
		t.skipBlank()
	}
	if t.char != rangle {
		return t.createError("doctype", "missing '>' at end of doctype")
	}
	t.read()
	t.info.DocType = &doctype
	return nil
}

func (t *Tokenizer) readExternalID() (string, string, error) {
	var public, system string
	switch {
	case t.expect("SYSTEM"):
		t.skipBlank()
		str, err := t.readQuoted(false)
		if err != nil {
			return "", "", err
		}
		system = str
	case t.expect("PUBLIC"):
		t.skipBlank()
		str, err := t.readQuoted(false)
		if err != nil {
			return "", "", err
		}
		public = str
		t.skipBlank()
		if t.char == quote || t.char == apos {
			if system, err = t.readQuoted(false); err != nil {
				return "", "", err
			}
		}
	}
	return public, system, nil
}

func (t *Tokenizer) readInternalSubset() error {
	for {
		t.skipBlank()
		switch {
		case t.char == eof:
			return t.createError("doctype", "unexpected end of internal subset")
		case t.char == rsquare:
			t.read()
			return nil
		case t.char == percent:
			if _, err := t.readUntil(";"); err != nil {
				return err
			}
		case t.expect("<!--"):
			if _, err := t.readUntil("-->"); err != nil {
				return err
			}
		case t.expect("<?"):
			if _, err := t.readUntil("?>"); err != nil {
				return err
			}
		case t.expect("<!ENTITY"):
			if err := t.readEntityDecl(); err != nil {
				return err
			}
		case t.expect("<!ATTLIST"):
			if err := t.readAttlistDecl(); err != nil {
				return err
			}
		case t.expect("<!"):
			if err := t.skipDecl(); err != nil {
				return err
			}
		default:
			return t.createError("doctype", "unexpected character in internal subset")
		}
	}
}

func (t *Tokenizer) readEntityDecl() error {
	t.skipBlank()
	parameter := t.char == percent
	if parameter {
		t.read()
		t.skipBlank()
	}
	name, err := t.readName()
	if err != nil {
		return err
	}
	t.skipBlank()
	if t.char == quote || t.char == apos {
		value, err := t.readQuoted(false)
		if err != nil {
			return err
		}
		if !parameter {
			if _, ok := t.general[name]; !ok {
				t.general[name] = value
			}
		}
	} else {
		_, system, err := t.readExternalID()
		if err != nil {
			return err
		}
		t.skipBlank()
		if t.expect("NDATA") {
			t.skipBlank()
			if _, err := t.readName(); err != nil {
				return err
			}
			if !parameter {
				t.info.Entities[name] = system
			}
		}
	}
	t.skipBlank()
	if t.char != rangle {
		return t.createError(name, "missing '>' at end of entity declaration")
	}
	t.read()
	return nil
}

func (t *Tokenizer) readAttlistDecl() error {
	t.skipBlank()
	elem, err := t.readName()
	if err != nil {
		return err
	}
	for {
		t.skipBlank()
		if t.char == rangle {
			t.read()
			return nil
		}
		if t.char == eof {
			return t.createError(elem, "unexpected end of attribute list")
		}
		attr, err := t.readName()
		if err != nil {
			return err
		}
		t.skipBlank()
		var kind string
		if t.char == lparen {
			if _, err := t.readUntil(")"); err != nil {
				return err
			}
		} else if kind, err = t.readName(); err != nil {
			return err
		}
		if kind == "NOTATION" {
			t.skipBlank()
			if _, err := t.readUntil(")"); err != nil {
				return err
			}
		}
		t.skipBlank()
		switch {
		case t.expect("#REQUIRED"), t.expect("#IMPLIED"):
		default:
			if t.expect("#FIXED") {
				t.skipBlank()
			}
			if _, err := t.readQuoted(false); err != nil {
				return err
			}
		}
		if kind == "ID" {
			set, ok := t.ids[elem]
			if !ok {
				set = make(map[string]struct{})
				t.ids[elem] = set
			}
			set[attr] = struct{}{}
		}
	}
}

func (t *Tokenizer) skipDecl() error {
	var quoted rune
	for t.char != eof {
		switch {
		case quoted != 0 && t.char == quoted:
			quoted = 0
		case quoted == 0 && (t.char == quote || t.char == apos):
			quoted = t.char
		case quoted == 0 && t.char == rangle:
			t.read()
			return nil
		}
		t.read()
	}
	return t.createError("doctype", "unterminated declaration")
}

func (t *Tokenizer) readReference() error {
	t.read()
	var name bytes.Buffer
	for t.char != semicolon {
		if t.char == eof || isBlank(t.char) || t.char == langle {
			return t.createError("reference", "unterminated entity reference")
		}
		name.WriteRune(t.char)
		t.read()
	}
	t.read()
	ref := name.String()
	switch ref {
	case "lt":
		t.str.WriteRune(langle)
	case "gt":
		t.str.WriteRune(rangle)
	case "amp":
		t.str.WriteRune(ampersand)
	case "quot":
		t.str.WriteRune(quote)
	case "apos":
		t.str.WriteRune(apos)
	default:
		if strings.HasPrefix(ref, "#") {
			var (
				num = ref[1:]
				base = 10
			)
			if strings.HasPrefix(num, "x") {
				num, base = num[1:], 16
			}
			code, err := strconv.ParseInt(num, base, 32)
			if err != nil || !isChar(rune(code)) {
				return t.createError(ref, "invalid character reference")
			}
			t.str.WriteRune(rune(code))
			return nil
		}
		value, ok := t.general[ref]
		if !ok {
			return t.createError(ref, "undefined entity")
		}
		t.str.WriteString(value)
	}
	return nil
}

func (t *Tokenizer) readQuoted(normalize bool) (string, error) {
	if t.char != quote && t.char != apos {
		return "", t.createError("literal", "quote expected")
	}
	delim := t.char
	t.read()
	t.str.Reset()
	for t.char != delim {
		switch t.char {
		case eof:
			return "", t.createError("literal", "unterminated literal")
		case ampersand:
			if !normalize {
				t.write()
				t.read()
				continue
			}
			if err := t.readReference(); err != nil {
				return "", err
			}
		case langle:
			if normalize {
				return "", t.createError("literal", "'<' not allowed in attribute value")
			}
			t.write()
			t.read()
		case '\t', '\n', '\r':
			if normalize {
				t.str.WriteRune(' ')
			} else {
				t.write()
			}
			t.read()
		default:
			t.write()
			t.read()
		}
	}
	t.read()
	return t.str.String(), nil
}

func (t *Tokenizer) readUntil(delim string) (string, error) {
	var str bytes.Buffer
	for {
		if t.char == eof {
			return "", t.createError("markup", fmt.Sprintf("missing %q", delim))
		}
		str.WriteRune(t.char)
		t.read()
		if bytes.HasSuffix(str.Bytes(), []byte(delim)) {
			break
		}
	}
	return strings.TrimSuffix(str.String(), delim), nil
}

func (t *Tokenizer) readName() (string, error) {
	if !isNameStart(t.char) {
		return "", t.createError("name", "invalid name")
	}
	var str bytes.Buffer
	for isNameChar(t.char) {
		str.WriteRune(t.char)
		t.read()
	}
	return str.String(), nil
}

func (t *Tokenizer) resolve(raw string, element bool) (QName, error) {
	qn, err := ParseName(raw)
	if err != nil {
		return qn, t.createError(raw, err.Error())
	}
	switch {
	case qn.Space == "" && qn.Name == AttrXmlNS && !element:
		qn.Uri = NamespaceXMLNS
	case qn.Space == AttrXmlNS:
		if element {
			return qn, t.createError(raw, "reserved prefix")
		}
		qn.Uri = NamespaceXMLNS
	case qn.Space == "xml":
		qn.Uri = NamespaceXML
	case qn.Space == "" && !element:
	default:
		uri, ok := t.scopes[len(t.scopes)-1].resolve(qn.Space)
		if !ok {
			if qn.Space == "" {
				return qn, nil
			}
			return qn, t.createError(raw, "undeclared namespace prefix")
		}
		if uri == "" && qn.Space != "" {
			return qn, t.createError(raw, "undeclared namespace prefix")
		}
		qn.Uri = uri
	}
	return qn, nil
}

func (t *Tokenizer) isID(elem, attr QName) bool {
	if attr.Uri == NamespaceXML && attr.Name == "id" {
		return true
	}
	set, ok := t.ids[elem.QualifiedName()]
	if !ok {
		return false
	}
	_, ok = set[attr.QualifiedName()]
	return ok
}

func (t *Tokenizer) expect(word string) bool {
	if t.char == eof {
		return false
	}
	first, size := rune(word[0]), len(word)
	if t.char != first {
		return false
	}
	if size > 1 {
		peek, _ := t.input.Peek(size - 1)
		if string(peek) != word[1:] {
			return false
		}
	}
	for range size {
		t.read()
	}
	return true
}

func (t *Tokenizer) createError(elem, msg string) error {
	return ParseError{
		Position: t.Position,
		URL:      t.url,
		Element:  elem,
		Message:  msg,
	}
}

func (t *Tokenizer) skipBlank() {
	for isBlank(t.char) {
		t.read()
	}
}

func (t *Tokenizer) write() {
	t.str.WriteRune(t.char)
}

func (t *Tokenizer) read() {
	if t.char == '\n' {
		t.Line++
		t.Column = 0
	}
	t.Column++
	c, _, err := t.input.ReadRune()
	if err != nil {
		t.char = eof
		return
	}
	if c == '\r' {
		if k, _ := t.input.Peek(1); len(k) == 1 && k[0] == '\n' {
			t.input.ReadRune()
		}
		c = '\n'
	}
	t.char = c
}

const (
	langle    = '<'
	rangle    = '>'
	lsquare   = '['
	rsquare   = ']'
	lparen    = '('
	quote     = '"'
	apos      = '\''
	slash     = '/'
	question  = '?'
	bang      = '!'
	equal     = '='
	ampersand = '&'
	semicolon = ';'
	percent   = '%'
	dash      = '-'
)

func isBlank(c rune) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

func isChar(c rune) bool {
	return c == '\t' || c == '\n' || c == '\r' || (c >= 0x20 && c <= 0xD7FF) ||
		(c >= 0xE000 && c <= 0xFFFD) || (c >= 0x10000 && c <= 0x10FFFF)
}

func isNameStart(c rune) bool {
	return c == '_' || c == ':' || unicode.IsLetter(c)
}

func isNameChar(c rune) bool {
	return isNameStart(c) || unicode.IsDigit(c) || c == '-' || c == '.' ||
		unicode.Is(unicode.Mn, c) || c == 0xB7
}

// nsScope holds the namespace declarations of one element, lookups falling
// back to the declarations of its ancestors.
type nsScope struct {
	prefixes map[string]string
	parent   *nsScope
}

func (s *nsScope) enclosed() *nsScope {
	return &nsScope{
		parent: s,
	}
}

func (s *nsScope) define(prefix, uri string) {
	if s.prefixes == nil {
		s.prefixes = make(map[string]string)
	}
	s.prefixes[prefix] = uri
}

func (s *nsScope) resolve(prefix string) (string, bool) {
	for curr := s; curr != nil; curr = curr.parent {
		if uri, ok := curr.prefixes[prefix]; ok {
			return uri, true
		}
	}
	return "", false
}
