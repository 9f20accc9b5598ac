package xslt

import (
	"strings"
	"sync"

	"github.com/midbel/angle/xml"
)

// nameTest is one token of the elements attribute of xsl:strip-space and
// xsl:preserve-space.
type nameTest struct {
	uri      string
	local    string
	anyLocal bool
	wildcard bool
}

func parseNameTest(str string, ns *nsContext) (nameTest, error) {
	if str == "*" {
		return nameTest{wildcard: true}, nil
	}
	if prefix, ok := strings.CutSuffix(str, ":*"); ok {
		uri, ok := ns.ResolvePrefix(prefix)
		if !ok {
			return nameTest{}, ErrUndeclaredPrefix
		}
		return nameTest{uri: uri, anyLocal: true}, nil
	}
	qn, err := ns.ResolveName(str)
	if err != nil {
		return nameTest{}, err
	}
	return nameTest{uri: qn.Uri, local: qn.Name}, nil
}

func (t nameTest) Match(name xml.QName) bool {
	switch {
	case t.wildcard:
		return true
	case t.anyLocal:
		return t.uri == name.Uri
	default:
		return t.uri == name.Uri && t.local == name.Name
	}
}

// Priority follows the default priorities of the equivalent patterns:
// exact names rank above prefixed wildcards which rank above wildcards.
func (t nameTest) Priority() float64 {
	switch {
	case t.wildcard:
		return -0.5
	case t.anyLocal:
		return -0.25
	default:
		return 0
	}
}

func (t nameTest) String() string {
	switch {
	case t.wildcard:
		return "*"
	case t.anyLocal:
		return "{" + t.uri + "}*"
	default:
		return xml.ExpandedName(t.local, "", t.uri).ExpandedName()
	}
}

type spaceRule struct {
	test  nameTest
	strip bool
	index int
	prec  *precedence
}

func (r *spaceRule) better(other *spaceRule) bool {
	if other == nil {
		return true
	}
	if r.prec.value != other.prec.value {
		return r.prec.value > other.prec.value
	}
	if p1, p2 := r.test.Priority(), other.test.Priority(); p1 != p2 {
		return p1 > p2
	}
	return r.index > other.index
}

// SpacePolicy decides which whitespace-only text nodes are removed from the
// source tree and from documents loaded during a transformation.
type SpacePolicy struct {
	rules []*spaceRule

	mu    sync.Mutex
	cache map[string]bool
	// Ambiguous is called once per name for which a strip and a preserve
	// rule have the same precedence and priority.
	Ambiguous func(name xml.QName)
}

func (p *SpacePolicy) add(test nameTest, strip bool, prec *precedence) {
	r := spaceRule{
		test:  test,
		strip: strip,
		index: len(p.rules),
		prec:  prec,
	}
	p.rules = append(p.rules, &r)
	p.cache = nil
}

// Empty reports whether no strip rule was registered, in which case no text
// node is ever removed.
func (p *SpacePolicy) Empty() bool {
	for _, r := range p.rules {
		if r.strip {
			return false
		}
	}
	return true
}

// ShouldStrip reports whether whitespace-only text children of elements
// named name are removed.
func (p *SpacePolicy) ShouldStrip(name xml.QName) bool {
	key := name.ExpandedName()
	p.mu.Lock()
	defer p.mu.Unlock()
	if v, ok := p.cache[key]; ok {
		return v
	}
	var strip, preserve *spaceRule
	for _, r := range p.rules {
		if !r.test.Match(name) {
			continue
		}
		if r.strip && r.better(strip) {
			strip = r
		}
		if !r.strip && r.better(preserve) {
			preserve = r
		}
	}
	res := p.decide(name, strip, preserve)
	if p.cache == nil {
		p.cache = make(map[string]bool)
	}
	p.cache[key] = res
	return res
}

func (p *SpacePolicy) decide(name xml.QName, strip, preserve *spaceRule) bool {
	switch {
	case strip == nil:
		return false
	case preserve == nil:
		return true
	}
	if strip.prec.value != preserve.prec.value {
		return strip.prec.value > preserve.prec.value
	}
	if p1, p2 := strip.test.Priority(), preserve.test.Priority(); p1 != p2 {
		return p1 > p2
	}
	if p.Ambiguous != nil {
		p.Ambiguous(name)
	}
	// on a true tie the preserve rule only wins when registered first.
	return preserve.index > strip.index
}

// Strip removes the whitespace-only text nodes of the tree rooted at node
// according to p, honouring xml:space.
func (p *SpacePolicy) Strip(node xml.Node) {
	if p == nil || p.Empty() {
		return
	}
	p.strip(node, false)
}

func (p *SpacePolicy) strip(node xml.Node, preserve bool) {
	switch n := node.(type) {
	case *xml.Document:
		for _, c := range n.Nodes {
			p.strip(c, preserve)
		}
	case *xml.Element:
		if a, ok := n.GetAttribute(xml.ExpandedName("space", "xml", xml.NamespaceXML)); ok {
			switch a.Datum {
			case "preserve":
				preserve = true
			case "default":
				preserve = false
			}
		}
		if !preserve && p.ShouldStrip(n.QName) {
			n.Filter(func(c xml.Node) bool {
				t, ok := c.(*xml.Text)
				return !ok || !t.Blank()
			})
		}
		for _, c := range n.Nodes {
			p.strip(c, preserve)
		}
	}
}
