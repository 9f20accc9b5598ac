package xml

import (
	"errors"
	"slices"
	"strings"
	"sync/atomic"
)

const (
	SupportedVersion  = "1.0"
	SupportedEncoding = "UTF-8"
)

const (
	NamespaceXML   = "http://www.w3.org/XML/1998/namespace"
	NamespaceXMLNS = "http://www.w3.org/2000/xmlns/"
)

const AttrXmlNS = "xmlns"

var ErrElement = errors.New("element expected")

type NodeType int8

const (
	TypeDocument NodeType = 1 << iota
	TypeElement
	TypeComment
	TypeAttribute
	TypeInstruction
	TypeText
)

// TypeNode is the set of node types reachable through the child axis.
const TypeNode = TypeDocument | TypeElement | TypeComment | TypeInstruction | TypeText

func (n NodeType) String() string {
	switch n {
	default:
		return "<>"
	case TypeDocument:
		return "document"
	case TypeElement:
		return "element"
	case TypeComment:
		return "comment"
	case TypeAttribute:
		return "attribute"
	case TypeInstruction:
		return "pi"
	case TypeText:
		return "text"
	case TypeNode:
		return "node"
	}
}

type Node interface {
	Type() NodeType
	LocalName() string
	QualifiedName() string
	Parent() Node
	Position() int
	Value() string

	setParent(Node)
	setPosition(int)
}

// Container is implemented by nodes having children.
type Container interface {
	Node
	Children() []Node
}

func Children(n Node) []Node {
	if c, ok := n.(Container); ok {
		return c.Children()
	}
	return nil
}

// Root returns the top most ancestor of n.
func Root(n Node) Node {
	for n != nil {
		p := n.Parent()
		if p == nil {
			break
		}
		n = p
	}
	return n
}

// OwnerDocument returns the document n belongs to or nil if n is part of a
// detached tree.
func OwnerDocument(n Node) *Document {
	doc, _ := Root(n).(*Document)
	return doc
}

type NS struct {
	Prefix string
	Uri    string
}

func (n NS) Default() bool {
	return n.Prefix == ""
}

type DocType struct {
	Name     string
	PublicID string
	SystemID string
}

func NewDocType(name, public, system string) *DocType {
	return &DocType{
		Name:     name,
		PublicID: public,
		SystemID: system,
	}
}

var serial atomic.Int64

type Document struct {
	*DocType
	URL        string
	Version    string
	Encoding   string
	Standalone string

	// Entities maps unparsed entity names to their system identifier.
	Entities map[string]string

	Nodes []Node

	serial   int64
	finished bool
	waiters  []func()
}

func NewDocument(url string) *Document {
	doc := Document{
		URL:      url,
		Version:  SupportedVersion,
		Encoding: SupportedEncoding,
		Entities: make(map[string]string),
		serial:   serial.Add(1),
	}
	return &doc
}

// Finished reports whether the tree is complete.
func (d *Document) Finished() bool {
	return d.finished
}

// Finish marks the tree as complete and runs every function registered
// with Notify, in registration order.
func (d *Document) Finish() {
	if d.finished {
		return
	}
	d.finished = true
	ws := d.waiters
	d.waiters = nil
	for _, fn := range ws {
		fn()
	}
}

// Notify registers fn to be called once the tree is complete. fn is called
// immediately if the tree is already complete.
func (d *Document) Notify(fn func()) {
	if d.finished {
		fn()
		return
	}
	d.waiters = append(d.waiters, fn)
}

func (d *Document) Root() Node {
	i := slices.IndexFunc(d.Nodes, func(n Node) bool {
		return n.Type() == TypeElement
	})
	if i < 0 {
		return nil
	}
	return d.Nodes[i]
}

func (d *Document) Append(node Node) {
	node.setParent(d)
	node.setPosition(len(d.Nodes))
	d.Nodes = append(d.Nodes, node)
}

func (d *Document) Children() []Node {
	return d.Nodes
}

// Filter keeps the children of d for which keep returns true.
func (d *Document) Filter(keep func(Node) bool) {
	d.Nodes = filterNodes(d.Nodes, keep)
}

func (d *Document) GetElementById(id string) Node {
	root, ok := d.Root().(*Element)
	if !ok {
		return nil
	}
	return root.GetElementById(id)
}

func (d *Document) Type() NodeType {
	return TypeDocument
}

func (d *Document) LocalName() string {
	return ""
}

func (d *Document) QualifiedName() string {
	return ""
}

func (d *Document) Parent() Node {
	return nil
}

func (d *Document) Position() int {
	return 0
}

func (d *Document) Value() string {
	var str strings.Builder
	for _, n := range d.Nodes {
		if n.Type() == TypeElement || n.Type() == TypeText {
			str.WriteString(n.Value())
		}
	}
	return str.String()
}

func (d *Document) setParent(_ Node) {}

func (d *Document) setPosition(_ int) {}

type QName struct {
	Space string
	Name  string
	Uri   string
}

func ParseName(name string) (QName, error) {
	var (
		qn QName
		ok bool
	)
	qn.Space, qn.Name, ok = strings.Cut(name, ":")
	if !ok {
		qn.Name, qn.Space = qn.Space, ""
	}
	if !IsNCName(qn.Name) || (qn.Space != "" && !IsNCName(qn.Space)) {
		return qn, errors.New("invalid qualified name")
	}
	return qn, nil
}

func ExpandedName(name, space, uri string) QName {
	return QName{
		Name:  name,
		Space: space,
		Uri:   uri,
	}
}

func LocalName(name string) QName {
	return QName{Name: name}
}

func QualifiedName(name, space string) QName {
	return QName{
		Name:  name,
		Space: space,
	}
}

func (q QName) Zero() bool {
	return q.Name == ""
}

// Equal compares the expanded names of q and other.
func (q QName) Equal(other QName) bool {
	return q.Name == other.Name && q.Uri == other.Uri
}

func (q QName) LocalName() string {
	return q.Name
}

// ExpandedName gives the {uri}local representation of q.
func (q QName) ExpandedName() string {
	if q.Uri == "" {
		return q.Name
	}
	return "{" + q.Uri + "}" + q.Name
}

func (q QName) QualifiedName() string {
	if q.Space == "" {
		return q.Name
	}
	return q.Space + ":" + q.Name
}

func (q QName) String() string {
	return q.QualifiedName()
}

type Attribute struct {
	QName
	Datum string
	ID    bool

	parent   Node
	position int
}

func NewAttribute(name QName, value string) *Attribute {
	return &Attribute{
		QName: name,
		Datum: value,
	}
}

func (_ *Attribute) Type() NodeType {
	return TypeAttribute
}

func (a *Attribute) Position() int {
	return a.position
}

func (a *Attribute) Parent() Node {
	return a.parent
}

func (a *Attribute) Value() string {
	return a.Datum
}

func (a *Attribute) setParent(node Node) {
	a.parent = node
}

func (a *Attribute) setPosition(pos int) {
	a.position = pos
}

type Element struct {
	QName
	Attrs      []*Attribute
	Nodes      []Node
	Namespaces []NS

	parent   Node
	position int
}

func NewElement(name QName) *Element {
	return &Element{
		QName: name,
	}
}

func (_ *Element) Type() NodeType {
	return TypeElement
}

func (e *Element) Children() []Node {
	return e.Nodes
}

func (e *Element) Append(node Node) {
	node.setParent(e)
	node.setPosition(len(e.Nodes))
	e.Nodes = append(e.Nodes, node)
}

// Filter keeps the children of e for which keep returns true.
func (e *Element) Filter(keep func(Node) bool) {
	e.Nodes = filterNodes(e.Nodes, keep)
}

func filterNodes(nodes []Node, keep func(Node) bool) []Node {
	list := nodes[:0]
	for _, n := range nodes {
		if !keep(n) {
			continue
		}
		n.setPosition(len(list))
		list = append(list, n)
	}
	clear(nodes[len(list):])
	return list
}

// SetAttribute adds attr to e, replacing an attribute having the same
// expanded name.
func (e *Element) SetAttribute(attr *Attribute) {
	attr.setParent(e)
	i := slices.IndexFunc(e.Attrs, func(a *Attribute) bool {
		return a.QName.Equal(attr.QName)
	})
	if i >= 0 {
		attr.setPosition(i)
		e.Attrs[i] = attr
		return
	}
	attr.setPosition(len(e.Attrs))
	e.Attrs = append(e.Attrs, attr)
}

func (e *Element) GetAttribute(name QName) (*Attribute, bool) {
	i := slices.IndexFunc(e.Attrs, func(a *Attribute) bool {
		return a.QName.Equal(name)
	})
	if i < 0 {
		return nil, false
	}
	return e.Attrs[i], true
}

func (e *Element) Attributes() []Node {
	list := make([]Node, 0, len(e.Attrs))
	for _, a := range e.Attrs {
		list = append(list, a)
	}
	return list
}

func (e *Element) DeclareNS(ns NS) {
	i := slices.IndexFunc(e.Namespaces, func(n NS) bool {
		return n.Prefix == ns.Prefix
	})
	if i >= 0 {
		e.Namespaces[i] = ns
		return
	}
	e.Namespaces = append(e.Namespaces, ns)
}

// ResolvePrefix finds the namespace uri bound to prefix in the scope of e.
func (e *Element) ResolvePrefix(prefix string) (string, bool) {
	if prefix == "xml" {
		return NamespaceXML, true
	}
	var curr Node = e
	for curr != nil {
		el, ok := curr.(*Element)
		if !ok {
			break
		}
		for _, ns := range el.Namespaces {
			if ns.Prefix == prefix {
				return ns.Uri, ns.Uri != "" || prefix == ""
			}
		}
		curr = el.Parent()
	}
	return "", prefix == ""
}

// InScope returns every namespace in scope for e, the nearest declaration
// winning. Undeclarations are dropped.
func (e *Element) InScope() []NS {
	var (
		list []NS
		seen = make(map[string]struct{})
	)
	var curr Node = e
	for curr != nil {
		el, ok := curr.(*Element)
		if !ok {
			break
		}
		for _, ns := range el.Namespaces {
			if _, ok := seen[ns.Prefix]; ok {
				continue
			}
			seen[ns.Prefix] = struct{}{}
			if ns.Uri != "" {
				list = append(list, ns)
			}
		}
		curr = el.Parent()
	}
	return list
}

func (e *Element) Value() string {
	var str strings.Builder
	for _, n := range e.Nodes {
		if n.Type() == TypeElement || n.Type() == TypeText {
			str.WriteString(n.Value())
		}
	}
	return str.String()
}

func (e *Element) GetElementById(id string) Node {
	for _, a := range e.Attrs {
		if a.ID && a.Datum == id {
			return e
		}
	}
	for _, n := range e.Nodes {
		el, ok := n.(*Element)
		if !ok {
			continue
		}
		if found := el.GetElementById(id); found != nil {
			return found
		}
	}
	return nil
}

func (e *Element) Position() int {
	return e.position
}

func (e *Element) Parent() Node {
	return e.parent
}

func (e *Element) setPosition(pos int) {
	e.position = pos
}

func (e *Element) setParent(parent Node) {
	e.parent = parent
}

type Instruction struct {
	Target  string
	Content string

	parent   Node
	position int
}

func NewInstruction(target, content string) *Instruction {
	return &Instruction{
		Target:  target,
		Content: content,
	}
}

func (_ *Instruction) Type() NodeType {
	return TypeInstruction
}

func (i *Instruction) LocalName() string {
	return i.Target
}

func (i *Instruction) QualifiedName() string {
	return i.Target
}

func (i *Instruction) Value() string {
	return i.Content
}

func (i *Instruction) Position() int {
	return i.position
}

func (i *Instruction) Parent() Node {
	return i.parent
}

func (i *Instruction) setPosition(pos int) {
	i.position = pos
}

func (i *Instruction) setParent(parent Node) {
	i.parent = parent
}

type Text struct {
	Content string
	CData   bool

	parent   Node
	position int
}

func NewText(text string) *Text {
	return &Text{
		Content: text,
	}
}

func NewCharData(text string) *Text {
	return &Text{
		Content: text,
		CData:   true,
	}
}

func (_ *Text) Type() NodeType {
	return TypeText
}

func (_ *Text) LocalName() string {
	return ""
}

func (_ *Text) QualifiedName() string {
	return ""
}

func (t *Text) Value() string {
	return t.Content
}

// Blank reports whether the text is only made of xml whitespace.
func (t *Text) Blank() bool {
	return IsBlank(t.Content)
}

func (t *Text) Position() int {
	return t.position
}

func (t *Text) Parent() Node {
	return t.parent
}

func (t *Text) setPosition(pos int) {
	t.position = pos
}

func (t *Text) setParent(parent Node) {
	t.parent = parent
}

type Comment struct {
	Content string

	parent   Node
	position int
}

func NewComment(comment string) *Comment {
	return &Comment{
		Content: comment,
	}
}

func (_ *Comment) Type() NodeType {
	return TypeComment
}

func (_ *Comment) LocalName() string {
	return ""
}

func (_ *Comment) QualifiedName() string {
	return ""
}

func (c *Comment) Value() string {
	return c.Content
}

func (c *Comment) Position() int {
	return c.position
}

func (c *Comment) Parent() Node {
	return c.parent
}

func (c *Comment) setPosition(pos int) {
	c.position = pos
}

func (c *Comment) setParent(parent Node) {
	c.parent = parent
}

func IsBlank(str string) bool {
	for i := 0; i < len(str); i++ {
		switch str[i] {
		case ' ', '\t', '\n', '\r':
		default:
			return false
		}
	}
	return true
}

func IsNCName(str string) bool {
	if str == "" {
		return false
	}
	for i, r := range str {
		if i == 0 && !isNameStart(r) {
			return false
		}
		if !isNameChar(r) || r == ':' {
			return false
		}
	}
	return true
}
