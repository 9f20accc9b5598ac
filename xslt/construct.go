package xslt

import (
	"slices"
	"strings"

	"github.com/midbel/angle/xml"
)

// Handle addresses a Construct in an Arena.
type Handle int32

const NoHandle Handle = -1

type ConstructKind int8

const (
	KindContent ConstructKind = iota
	KindStylesheet
	KindTemplate
	KindAttributeSet
	KindKey
	KindDecimalFormat
	KindOutput
	KindVariable
	KindParam
	KindNamespaceAlias
	KindStripSpace
	KindPreserveSpace
	KindImport
	KindInclude
	KindLiteral
	KindText
)

func (k ConstructKind) String() string {
	switch k {
	case KindContent:
		return "content"
	case KindStylesheet:
		return "stylesheet"
	case KindTemplate:
		return "template"
	case KindAttributeSet:
		return "attribute-set"
	case KindKey:
		return "key"
	case KindDecimalFormat:
		return "decimal-format"
	case KindOutput:
		return "output"
	case KindVariable:
		return "variable"
	case KindParam:
		return "param"
	case KindNamespaceAlias:
		return "namespace-alias"
	case KindStripSpace:
		return "strip-space"
	case KindPreserveSpace:
		return "preserve-space"
	case KindImport:
		return "import"
	case KindInclude:
		return "include"
	case KindLiteral:
		return "literal"
	case KindText:
		return "text"
	default:
		return "<unknown>"
	}
}

// Transient reports whether constructs of kind k are torn down once their
// end tag has been processed.
func (k ConstructKind) Transient() bool {
	switch k {
	case KindAttributeSet, KindDecimalFormat, KindOutput, KindNamespaceAlias,
		KindStripSpace, KindPreserveSpace, KindImport, KindInclude:
		return true
	default:
		return false
	}
}

func kindOf(t ElementType, toplevel bool) ConstructKind {
	switch t {
	case ElemStylesheet, ElemTransform:
		return KindStylesheet
	case ElemTemplate:
		return KindTemplate
	case ElemAttributeSet:
		return KindAttributeSet
	case ElemKey:
		return KindKey
	case ElemDecimalFormat:
		return KindDecimalFormat
	case ElemOutput:
		return KindOutput
	case ElemVariable:
		return KindVariable
	case ElemParam:
		return KindParam
	case ElemNamespaceAlias:
		return KindNamespaceAlias
	case ElemStripSpace:
		return KindStripSpace
	case ElemPreserveSpace:
		return KindPreserveSpace
	case ElemImport:
		return KindImport
	case ElemInclude:
		return KindInclude
	case ElemLiteral:
		return KindLiteral
	default:
		return KindContent
	}
}

type Attr struct {
	Type  AttributeType
	Name  xml.QName
	Value string
}

// Construct is one element, or one run of text, of a parsed stylesheet.
type Construct struct {
	Kind     ConstructKind
	Type     ElementType
	Name     xml.QName
	Attrs    []Attr
	Text     string
	Parent   Handle
	Children []Handle

	// Import is the index of the stylesheet resource the construct comes
	// from.
	Import    int
	NS        *nsContext
	BaseURL   string
	Synthetic bool
	// Preserve is set when xml:space="preserve" is in scope.
	Preserve bool
	// Excluded lists the namespace uris not copied to the result by literal
	// result elements. Extensions lists the uris of extension elements.
	Excluded   []string
	Extensions []string
}

func (c *Construct) Attr(t AttributeType) (string, bool) {
	i := slices.IndexFunc(c.Attrs, func(a Attr) bool {
		return a.Type == t
	})
	if i < 0 {
		return "", false
	}
	return c.Attrs[i].Value, true
}

func (c *Construct) Has(t AttributeType) bool {
	_, ok := c.Attr(t)
	return ok
}

// Label gives a short description of c used in diagnostics.
func (c *Construct) Label() string {
	switch c.Kind {
	case KindText:
		return "#text"
	case KindLiteral:
		return c.Name.QualifiedName()
	default:
		if c.Type == ElemUnknown {
			return c.Name.QualifiedName()
		}
		return c.Type.String()
	}
}

// Arena stores the constructs of a stylesheet. A construct is addressed by
// its Handle; a pointer returned by Get is valid until the next call to New.
type Arena struct {
	nodes []Construct
}

func (a *Arena) New(c Construct) Handle {
	h := Handle(len(a.nodes))
	a.nodes = append(a.nodes, c)
	if c.Parent != NoHandle {
		p := &a.nodes[c.Parent]
		p.Children = append(p.Children, h)
	}
	return h
}

func (a *Arena) Get(h Handle) *Construct {
	if h < 0 || int(h) >= len(a.nodes) {
		return nil
	}
	return &a.nodes[h]
}

func (a *Arena) Len() int {
	return len(a.nodes)
}

// Release tears down the construct h and its subtree. It only succeeds when
// the subtree is the last thing allocated in a.
func (a *Arena) Release(h Handle) bool {
	if h < 0 || int(h) >= len(a.nodes) {
		return false
	}
	c := &a.nodes[h]
	if last := a.last(h); int(last) != len(a.nodes)-1 {
		return false
	}
	if c.Parent != NoHandle {
		p := &a.nodes[c.Parent]
		if n := len(p.Children); n > 0 && p.Children[n-1] == h {
			p.Children = p.Children[:n-1]
		}
	}
	clear(a.nodes[h:])
	a.nodes = a.nodes[:h]
	return true
}

func (a *Arena) last(h Handle) Handle {
	c := &a.nodes[h]
	if len(c.Children) == 0 {
		return h
	}
	return a.last(c.Children[len(c.Children)-1])
}

// Path gives the element path of h, from the root of its resource.
func (a *Arena) Path(h Handle) string {
	var parts []string
	for c := a.Get(h); c != nil; c = a.Get(c.Parent) {
		parts = append(parts, c.Label())
	}
	slices.Reverse(parts)
	return "/" + strings.Join(parts, "/")
}

// nsContext is a snapshot of the namespaces in scope for a construct.
type nsContext struct {
	parent *nsContext
	decls  []xml.NS
}

func (n *nsContext) Declare(ns xml.NS) *nsContext {
	return &nsContext{
		parent: n,
		decls:  []xml.NS{ns},
	}
}

func (n *nsContext) ResolvePrefix(prefix string) (string, bool) {
	if prefix == "xml" {
		return xml.NamespaceXML, true
	}
	for c := n; c != nil; c = c.parent {
		for i := len(c.decls) - 1; i >= 0; i-- {
			if c.decls[i].Prefix == prefix {
				return c.decls[i].Uri, c.decls[i].Uri != "" || prefix == ""
			}
		}
	}
	return "", prefix == ""
}

// InScope lists the namespaces in scope, the nearest declaration winning.
func (n *nsContext) InScope() []xml.NS {
	var (
		list []xml.NS
		seen = make(map[string]struct{})
	)
	for c := n; c != nil; c = c.parent {
		for i := len(c.decls) - 1; i >= 0; i-- {
			ns := c.decls[i]
			if _, ok := seen[ns.Prefix]; ok {
				continue
			}
			seen[ns.Prefix] = struct{}{}
			if ns.Uri != "" {
				list = append(list, ns)
			}
		}
	}
	slices.Reverse(list)
	return list
}

// ResolveName resolves a qualified name found in an attribute value. The
// default namespace does not apply.
func (n *nsContext) ResolveName(str string) (xml.QName, error) {
	qn, err := xml.ParseName(strings.TrimSpace(str))
	if err != nil {
		return qn, ErrInvalidName
	}
	if qn.Space == "" {
		return qn, nil
	}
	uri, ok := n.ResolvePrefix(qn.Space)
	if !ok {
		return qn, ErrUndeclaredPrefix
	}
	qn.Uri = uri
	return qn, nil
}
