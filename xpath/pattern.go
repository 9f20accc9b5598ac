package xpath

import (
	"slices"
	"strings"

	"github.com/midbel/angle/xml"
)

// Pattern is a compiled match pattern: a union of location path patterns.
type Pattern struct {
	Alternatives []*Alternative
	source       string
}

// CompilePattern compiles the pattern grammar used by template rules, keys
// and numbering.
func CompilePattern(str string, ns NamespaceResolver) (*Pattern, error) {
	cp := NewCompiler(str, ns)
	var pat Pattern
	pat.source = str
	for {
		alt, err := cp.compileAlternative()
		if err != nil {
			return nil, err
		}
		pat.Alternatives = append(pat.Alternatives, alt)
		if !cp.is(opUnion) {
			break
		}
		cp.next()
	}
	if !cp.done() {
		return nil, cp.unexpected()
	}
	return &pat, nil
}

func (p *Pattern) String() string {
	return p.source
}

// Match reports whether node matches any alternative of p.
func (p *Pattern) Match(node xml.Node, env Environment) (bool, error) {
	for _, a := range p.Alternatives {
		ok, err := a.Match(node, env)
		if ok || err != nil {
			return ok, err
		}
	}
	return false, nil
}

type patternStep struct {
	step
	// deep is set when the step is separated from the previous one by '//'.
	deep bool
}

func (s patternStep) match(node xml.Node, env Environment) (bool, error) {
	switch {
	case s.axis == attributeAxis && node.Type() != xml.TypeAttribute:
		return false, nil
	case s.axis == childAxis && node.Type() == xml.TypeAttribute:
		return false, nil
	default:
	}
	parent := node.Parent()
	if parent == nil || !s.test.Match(node, s.axis.principal()) {
		return false, nil
	}
	if len(s.preds) == 0 {
		return true, nil
	}
	ctx := Context{
		Node:     parent,
		Position: 1,
		Size:     1,
		Env:      env,
	}
	nodes, err := s.selectNodes(ctx)
	if err != nil {
		return false, err
	}
	return slices.Contains(nodes, node), nil
}

// Alternative is a single location path pattern.
type Alternative struct {
	steps    []patternStep
	absolute bool
	anchor   Expr
	Priority float64
	source   string
}

func (a *Alternative) String() string {
	return a.source
}

func (a *Alternative) Match(node xml.Node, env Environment) (bool, error) {
	if len(a.steps) == 0 {
		return a.matchHead(node, false, env)
	}
	return a.matchAt(node, len(a.steps)-1, env)
}

func (a *Alternative) matchAt(node xml.Node, i int, env Environment) (bool, error) {
	ok, err := a.steps[i].match(node, env)
	if !ok || err != nil {
		return ok, err
	}
	var (
		parent = node.Parent()
		deep   = a.steps[i].deep
	)
	if i == 0 {
		return a.matchHead(parent, deep, env)
	}
	if !deep {
		return a.matchAt(parent, i-1, env)
	}
	for p := parent; p != nil; p = p.Parent() {
		ok, err := a.matchAt(p, i-1, env)
		if ok || err != nil {
			return ok, err
		}
	}
	return false, nil
}

// matchHead checks the part of the pattern before its first step against
// node. With deep set, any ancestor-or-self of node can satisfy it.
func (a *Alternative) matchHead(node xml.Node, deep bool, env Environment) (bool, error) {
	switch {
	case a.anchor != nil:
		if node == nil {
			return false, nil
		}
		ctx := Context{
			Node:     node,
			Position: 1,
			Size:     1,
			Env:      env,
		}
		seq, err := a.anchor.Eval(ctx)
		if err != nil {
			return false, err
		}
		nodes, err := seq.Nodes()
		if err != nil {
			return false, err
		}
		for n := node; n != nil; n = n.Parent() {
			if slices.Contains(nodes, n) {
				return true, nil
			}
			if !deep {
				break
			}
		}
		return false, nil
	case a.absolute:
		if node == nil {
			return false, nil
		}
		if deep {
			node = xml.Root(node)
		}
		return node.Type() == xml.TypeDocument, nil
	default:
		return true, nil
	}
}

// MayMatch reports whether a node of the given type can match a.
func (a *Alternative) MayMatch(kind xml.NodeType) bool {
	if len(a.steps) == 0 {
		if a.anchor != nil {
			return kind != xml.TypeDocument
		}
		return kind == xml.TypeDocument
	}
	last := a.steps[len(a.steps)-1]
	if last.axis == attributeAxis {
		if kind != xml.TypeAttribute {
			return false
		}
	} else if kind == xml.TypeAttribute || kind == xml.TypeDocument {
		return false
	}
	switch t := last.test.(type) {
	case nameTest:
		return kind == last.axis.principal()
	case kindTest:
		return t.kind == xml.TypeNode || t.kind == kind
	default:
		return true
	}
}

// AlwaysMatches reports whether every node of the given type matches a
// regardless of its name, position or ancestors.
func (a *Alternative) AlwaysMatches(kind xml.NodeType) bool {
	if len(a.steps) != 1 || a.absolute || a.anchor != nil {
		return false
	}
	s := a.steps[0]
	if s.deep || len(s.preds) > 0 || !a.MayMatch(kind) {
		return false
	}
	switch t := s.test.(type) {
	case nameTest:
		return t.wildcard
	case kindTest:
		return t.target == ""
	default:
		return false
	}
}

func (c *Compiler) compileAlternative() (*Alternative, error) {
	c.Enter("pattern")
	defer c.Leave("pattern")

	var (
		alt  Alternative
		deep bool
		pos  = c.curr.Position
	)
	switch {
	case c.is(currLevel):
		alt.absolute = true
		c.next()
		if !c.startStep() {
			alt.Priority = 0.5
			alt.source = c.sourceFrom(pos)
			return &alt, nil
		}
	case c.is(anyLevel):
		alt.absolute = true
		deep = true
		c.next()
	case c.is(Name) && c.peek.Type == begGrp && isAnchor(c.curr.Literal):
		expr, err := c.compileCall()
		if err != nil {
			return nil, err
		}
		alt.anchor = expr
		if !c.is(currLevel) && !c.is(anyLevel) {
			alt.Priority = 0.5
			alt.source = c.sourceFrom(pos)
			return &alt, nil
		}
		deep = c.is(anyLevel)
		c.next()
	}
	for {
		st, err := c.compilePatternStep()
		if err != nil {
			return nil, err
		}
		st.deep = deep
		alt.steps = append(alt.steps, st)
		if !c.is(currLevel) && !c.is(anyLevel) {
			break
		}
		deep = c.is(anyLevel)
		c.next()
	}
	alt.Priority = alt.defaultPriority()
	alt.source = c.sourceFrom(pos)
	return &alt, nil
}

func (c *Compiler) compilePatternStep() (patternStep, error) {
	var ps patternStep
	switch {
	case c.is(Name) && c.peek.Type == opAxis:
		if c.curr.Literal != childAxis && c.curr.Literal != attributeAxis {
			return ps, c.syntaxError("only child and attribute axis are allowed in pattern")
		}
	case c.is(attrNode), c.is(Name):
	default:
		return ps, c.unexpected()
	}
	expr, err := c.compileStep()
	if err != nil {
		return ps, err
	}
	ps.step = expr.(step)
	return ps, nil
}

func (a *Alternative) defaultPriority() float64 {
	if len(a.steps) != 1 || a.absolute || a.anchor != nil {
		return 0.5
	}
	s := a.steps[0]
	if s.deep || len(s.preds) > 0 {
		return 0.5
	}
	switch t := s.test.(type) {
	case nameTest:
		if t.wildcard {
			return -0.5
		}
		if t.anyLocal {
			return -0.25
		}
		return 0
	case kindTest:
		if t.kind == xml.TypeInstruction && t.target != "" {
			return 0
		}
		return -0.5
	default:
		return 0.5
	}
}

func (c *Compiler) sourceFrom(pos Position) string {
	var (
		str = c.source
		beg = pos.Column - 1
		end = len(str)
	)
	if !c.done() {
		end = c.curr.Column - 1
	}
	if beg < 0 || beg > len(str) || end < beg || end > len(str) {
		return str
	}
	return strings.TrimSpace(str[beg:end])
}

func isAnchor(ident string) bool {
	return ident == "id" || ident == "key"
}
