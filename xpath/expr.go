package xpath

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/midbel/angle/xml"
)

var (
	ErrSyntax    = errors.New("syntax error")
	ErrType      = errors.New("type error")
	ErrUndefined = errors.New("undefined")
	ErrArgument  = errors.New("invalid number of arguments")
	ErrContext   = errors.New("no context node")

	errAxis = errors.New("unknown axis")
)

func undefined(name string) error {
	return fmt.Errorf("%s: %w", name, ErrUndefined)
}

type Expr interface {
	Eval(Context) (Sequence, error)
	fmt.Stringer
}

// Query is a compiled expression.
type Query struct {
	expr   Expr
	source string
}

func (q *Query) Eval(ctx Context) (Sequence, error) {
	return q.expr.Eval(ctx)
}

// Find evaluates q with node as context node and no environment.
func (q *Query) Find(node xml.Node) (Sequence, error) {
	return q.Eval(DefaultContext(node))
}

func (q *Query) EvalString(ctx Context) (string, error) {
	seq, err := q.Eval(ctx)
	if err != nil {
		return "", err
	}
	return AsString(seq), nil
}

func (q *Query) EvalNumber(ctx Context) (float64, error) {
	seq, err := q.Eval(ctx)
	if err != nil {
		return math.NaN(), err
	}
	return AsNumber(seq), nil
}

func (q *Query) EvalBoolean(ctx Context) (bool, error) {
	seq, err := q.Eval(ctx)
	if err != nil {
		return false, err
	}
	return AsBoolean(seq), nil
}

// EvalNodes evaluates q and returns the selected nodes in document order.
func (q *Query) EvalNodes(ctx Context) ([]xml.Node, error) {
	seq, err := q.Eval(ctx)
	if err != nil {
		return nil, err
	}
	nodes, err := seq.Nodes()
	if err != nil {
		return nil, fmt.Errorf("%s: node-set expected: %w", q.source, err)
	}
	return nodes, nil
}

// Literal reports whether q is a constant string and returns its value.
func (q *Query) Literal() (string, bool) {
	if lit, ok := q.expr.(literal); ok {
		return lit.expr, true
	}
	return "", false
}

func (q *Query) String() string {
	return q.source
}

type literal struct {
	expr string
}

func (i literal) Eval(_ Context) (Sequence, error) {
	return Singleton(i.expr), nil
}

func (i literal) String() string {
	return fmt.Sprintf("%q", i.expr)
}

type number struct {
	expr float64
}

func (n number) Eval(_ Context) (Sequence, error) {
	return Singleton(n.expr), nil
}

func (n number) String() string {
	return NumberToString(n.expr)
}

type varRef struct {
	ident xml.QName
}

func (v varRef) Eval(ctx Context) (Sequence, error) {
	return ctx.resolveVariable(v.ident)
}

func (v varRef) String() string {
	return "$" + v.ident.QualifiedName()
}

type call struct {
	ident xml.QName
	args  []Expr
}

func (c call) Eval(ctx Context) (Sequence, error) {
	fn, ok := ctx.resolveFunction(c.ident)
	if !ok {
		return nil, undefined(c.ident.QualifiedName())
	}
	if !fn.accept(len(c.args)) {
		return nil, fmt.Errorf("%s: %w", c.ident.QualifiedName(), ErrArgument)
	}
	args := make([]Sequence, 0, len(c.args))
	for _, a := range c.args {
		seq, err := a.Eval(ctx)
		if err != nil {
			return nil, err
		}
		args = append(args, seq)
	}
	return fn.Call(ctx, args)
}

func (c call) String() string {
	var args []string
	for _, a := range c.args {
		args = append(args, a.String())
	}
	return fmt.Sprintf("%s(%s)", c.ident.QualifiedName(), strings.Join(args, ", "))
}

type reverse struct {
	expr Expr
}

func (r reverse) Eval(ctx Context) (Sequence, error) {
	seq, err := r.expr.Eval(ctx)
	if err != nil {
		return nil, err
	}
	return Singleton(-AsNumber(seq)), nil
}

func (r reverse) String() string {
	return "-" + r.expr.String()
}

type binary struct {
	left  Expr
	right Expr
	op    rune
}

func (b binary) Eval(ctx Context) (Sequence, error) {
	left, err := b.left.Eval(ctx)
	if err != nil {
		return nil, err
	}
	switch b.op {
	case opAnd:
		if !AsBoolean(left) {
			return Singleton(false), nil
		}
	case opOr:
		if AsBoolean(left) {
			return Singleton(true), nil
		}
	}
	right, err := b.right.Eval(ctx)
	if err != nil {
		return nil, err
	}
	switch b.op {
	case opAnd, opOr:
		return Singleton(AsBoolean(right)), nil
	case opEq, opNe, opLt, opLe, opGt, opGe:
		return Singleton(compareSequence(b.op, left, right)), nil
	default:
	}
	var (
		x = AsNumber(left)
		y = AsNumber(right)
	)
	switch b.op {
	case opAdd:
		return Singleton(x + y), nil
	case opSub:
		return Singleton(x - y), nil
	case opMul:
		return Singleton(x * y), nil
	case opDiv:
		return Singleton(x / y), nil
	case opMod:
		return Singleton(math.Mod(x, y)), nil
	default:
		return nil, fmt.Errorf("%w: unsupported operator", ErrSyntax)
	}
}

func (b binary) String() string {
	var op string
	switch b.op {
	case opAnd:
		op = kwAnd
	case opOr:
		op = kwOr
	case opDiv:
		op = kwDiv
	case opMod:
		op = kwMod
	case opAdd:
		op = "+"
	case opSub:
		op = "-"
	case opMul:
		op = "*"
	case opEq:
		op = "="
	case opNe:
		op = "!="
	case opLt:
		op = "<"
	case opLe:
		op = "<="
	case opGt:
		op = ">"
	case opGe:
		op = ">="
	}
	return fmt.Sprintf("(%s %s %s)", b.left, op, b.right)
}

type union struct {
	all []Expr
}

func (u union) Eval(ctx Context) (Sequence, error) {
	var list []xml.Node
	for _, e := range u.all {
		seq, err := e.Eval(ctx)
		if err != nil {
			return nil, err
		}
		nodes, err := seq.Nodes()
		if err != nil {
			return nil, fmt.Errorf("union: %w", err)
		}
		list = append(list, nodes...)
	}
	return NodeSet(xml.SortUnique(list)), nil
}

func (u union) String() string {
	var list []string
	for _, e := range u.all {
		list = append(list, e.String())
	}
	return strings.Join(list, " | ")
}

type root struct{}

func (root) Eval(ctx Context) (Sequence, error) {
	if ctx.Node == nil {
		return nil, ErrContext
	}
	return Singleton(xml.Root(ctx.Node)), nil
}

func (root) String() string {
	return "/"
}

type path struct {
	left  Expr
	right Expr
}

func (p path) Eval(ctx Context) (Sequence, error) {
	seq, err := p.left.Eval(ctx)
	if err != nil {
		return nil, err
	}
	nodes, err := seq.Nodes()
	if err != nil {
		return nil, fmt.Errorf("path: %w", err)
	}
	var list []xml.Node
	for i, n := range nodes {
		res, err := p.right.Eval(ctx.Sub(n, i+1, len(nodes)))
		if err != nil {
			return nil, err
		}
		others, err := res.Nodes()
		if err != nil {
			return nil, fmt.Errorf("path: %w", err)
		}
		list = append(list, others...)
	}
	return NodeSet(xml.SortUnique(list)), nil
}

func (p path) String() string {
	if _, ok := p.left.(root); ok {
		return "/" + p.right.String()
	}
	return p.left.String() + "/" + p.right.String()
}

type step struct {
	axis  axis
	test  NodeTest
	preds []Expr
}

func (s step) Eval(ctx Context) (Sequence, error) {
	nodes, err := s.selectNodes(ctx)
	if err != nil {
		return nil, err
	}
	return NodeSet(xml.SortUnique(nodes)), nil
}

// selectNodes returns the nodes of the step in proximity order.
func (s step) selectNodes(ctx Context) ([]xml.Node, error) {
	if ctx.Node == nil {
		return nil, ErrContext
	}
	var (
		list      []xml.Node
		principal = s.axis.principal()
	)
	for _, n := range s.axis.nodes(ctx.Node) {
		if s.test.Match(n, principal) {
			list = append(list, n)
		}
	}
	var err error
	for _, p := range s.preds {
		if list, err = applyPredicate(ctx, list, p); err != nil {
			return nil, err
		}
	}
	return list, nil
}

func (s step) String() string {
	var str strings.Builder
	str.WriteString(string(s.axis))
	str.WriteString("::")
	str.WriteString(s.test.String())
	for _, p := range s.preds {
		str.WriteString("[")
		str.WriteString(p.String())
		str.WriteString("]")
	}
	return str.String()
}

type filter struct {
	expr  Expr
	preds []Expr
}

func (f filter) Eval(ctx Context) (Sequence, error) {
	seq, err := f.expr.Eval(ctx)
	if err != nil {
		return nil, err
	}
	nodes, err := seq.Nodes()
	if err != nil {
		return nil, fmt.Errorf("filter: %w", err)
	}
	nodes = xml.SortUnique(nodes)
	for _, p := range f.preds {
		if nodes, err = applyPredicate(ctx, nodes, p); err != nil {
			return nil, err
		}
	}
	return NodeSet(nodes), nil
}

func (f filter) String() string {
	var str strings.Builder
	str.WriteString(f.expr.String())
	for _, p := range f.preds {
		str.WriteString("[")
		str.WriteString(p.String())
		str.WriteString("]")
	}
	return str.String()
}

func applyPredicate(ctx Context, nodes []xml.Node, pred Expr) ([]xml.Node, error) {
	var keep []xml.Node
	for i, n := range nodes {
		res, err := pred.Eval(ctx.Sub(n, i+1, len(nodes)))
		if err != nil {
			return nil, err
		}
		var ok bool
		if res.Singleton() && res.First().Atomic() {
			if f, isnum := res.First().Value().(float64); isnum {
				ok = f == float64(i+1)
			} else {
				ok = res.First().True()
			}
		} else {
			ok = AsBoolean(res)
		}
		if ok {
			keep = append(keep, n)
		}
	}
	return keep, nil
}

// NodeTest tells whether a node selected by an axis is kept by a step.
type NodeTest interface {
	Match(xml.Node, xml.NodeType) bool
	fmt.Stringer
}

type nameTest struct {
	uri      string
	local    string
	prefix   string
	anyLocal bool
	wildcard bool
}

func (t nameTest) Match(node xml.Node, principal xml.NodeType) bool {
	if node.Type() != principal {
		return false
	}
	if t.wildcard {
		return true
	}
	qn := nodeName(node)
	if qn.Uri != t.uri {
		return false
	}
	return t.anyLocal || qn.Name == t.local
}

func (t nameTest) String() string {
	switch {
	case t.wildcard:
		return "*"
	case t.anyLocal:
		return t.prefix + ":*"
	case t.prefix != "":
		return t.prefix + ":" + t.local
	default:
		return t.local
	}
}

type kindTest struct {
	kind   xml.NodeType
	target string
}

func (t kindTest) Match(node xml.Node, _ xml.NodeType) bool {
	if t.kind == xml.TypeNode {
		return true
	}
	if node.Type() != t.kind {
		return false
	}
	return t.target == "" || node.LocalName() == t.target
}

func (t kindTest) String() string {
	switch t.kind {
	case xml.TypeText:
		return "text()"
	case xml.TypeComment:
		return "comment()"
	case xml.TypeInstruction:
		if t.target != "" {
			return fmt.Sprintf("processing-instruction(%q)", t.target)
		}
		return "processing-instruction()"
	default:
		return "node()"
	}
}

func nodeName(node xml.Node) xml.QName {
	switch n := node.(type) {
	case *xml.Element:
		return n.QName
	case *xml.Attribute:
		return n.QName
	case *xml.Instruction:
		return xml.LocalName(n.Target)
	default:
		return xml.QName{}
	}
}

func compareSequence(op rune, left, right Sequence) bool {
	var (
		leftNodes  = left.NodeSet()
		rightNodes = right.NodeSet()
	)
	switch {
	case leftNodes && rightNodes:
		for _, i := range left {
			for _, j := range right {
				if compareValues(op, StringValue(i.Node()), StringValue(j.Node())) {
					return true
				}
			}
		}
		return false
	case leftNodes:
		return compareNodes(op, left, right.First().Value())
	case rightNodes:
		return compareNodes(flipOperator(op), right, left.First().Value())
	default:
		return compareValues(op, left.First().Value(), right.First().Value())
	}
}

func compareNodes(op rune, nodes Sequence, value any) bool {
	if b, ok := value.(bool); ok {
		return compareValues(op, AsBoolean(nodes), b)
	}
	for _, n := range nodes {
		if compareValues(op, StringValue(n.Node()), value) {
			return true
		}
	}
	return false
}

func compareValues(op rune, left, right any) bool {
	if op == opEq || op == opNe {
		var eq bool
		_, lb := left.(bool)
		_, rb := right.(bool)
		_, lf := left.(float64)
		_, rf := right.(float64)
		switch {
		case lb || rb:
			eq = createLiteral(left).True() == createLiteral(right).True()
		case lf || rf:
			eq = toNumber(left) == toNumber(right)
		default:
			eq = toString(left) == toString(right)
		}
		if op == opNe {
			return !eq
		}
		return eq
	}
	x, y := toNumber(left), toNumber(right)
	switch op {
	case opLt:
		return x < y
	case opLe:
		return x <= y
	case opGt:
		return x > y
	case opGe:
		return x >= y
	default:
		return false
	}
}

func flipOperator(op rune) rune {
	switch op {
	case opLt:
		return opGt
	case opLe:
		return opGe
	case opGt:
		return opLt
	case opGe:
		return opLe
	default:
		return op
	}
}
