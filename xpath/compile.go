package xpath

import (
	"fmt"
	"strconv"

	"github.com/midbel/angle/xml"
)

const (
	CodeGenericError = "XPST0003"
	CodeUndefinedNS  = "XPST0081"
)

type SyntaxError struct {
	Code  string
	Expr  string
	Cause string
	Position
}

func syntaxError(expr, cause string, pos Position) error {
	return SyntaxError{
		Code:     CodeGenericError,
		Expr:     expr,
		Cause:    cause,
		Position: pos,
	}
}

func (e SyntaxError) Error() string {
	return fmt.Sprintf("[%s] %s: %s (column %d)", e.Code, e.Expr, e.Cause, e.Column)
}

func (e SyntaxError) Unwrap() error {
	return ErrSyntax
}

const (
	powLowest = iota
	powOr
	powAnd
	powEq
	powCmp
	powAdd
	powMul
	powPrefix
	powUnion
)

var bindings = map[rune]int{
	opOr:    powOr,
	opAnd:   powAnd,
	opEq:    powEq,
	opNe:    powEq,
	opLt:    powCmp,
	opLe:    powCmp,
	opGt:    powCmp,
	opGe:    powCmp,
	opAdd:   powAdd,
	opSub:   powAdd,
	opMul:   powMul,
	opDiv:   powMul,
	opMod:   powMul,
	opUnion: powUnion,
}

const (
	kindNode        = "node"
	kindText        = "text"
	kindComment     = "comment"
	kindInstruction = "processing-instruction"
)

type Compiler struct {
	scan   *Scanner
	source string
	curr   Token
	peek   Token

	ns NamespaceResolver
	Tracer

	infix  map[rune]func(Expr) (Expr, error)
	prefix map[rune]func() (Expr, error)
}

func NewCompiler(str string, ns NamespaceResolver) *Compiler {
	cp := Compiler{
		scan:   Scan(str),
		source: str,
		ns:     ns,
		Tracer: discardTracer{},
	}
	cp.infix = map[rune]func(Expr) (Expr, error){
		opAdd:   cp.compileBinary,
		opSub:   cp.compileBinary,
		opMul:   cp.compileBinary,
		opDiv:   cp.compileBinary,
		opMod:   cp.compileBinary,
		opEq:    cp.compileBinary,
		opNe:    cp.compileBinary,
		opGt:    cp.compileBinary,
		opGe:    cp.compileBinary,
		opLt:    cp.compileBinary,
		opLe:    cp.compileBinary,
		opAnd:   cp.compileBinary,
		opOr:    cp.compileBinary,
		opUnion: cp.compileUnion,
	}
	cp.prefix = map[rune]func() (Expr, error){
		currLevel:  cp.compilePath,
		anyLevel:   cp.compilePath,
		Name:       cp.compilePath,
		variable:   cp.compilePath,
		currNode:   cp.compilePath,
		parentNode: cp.compilePath,
		attrNode:   cp.compilePath,
		Literal:    cp.compilePath,
		Digit:      cp.compilePath,
		begGrp:     cp.compilePath,
		opSub:      cp.compileReverse,
	}
	cp.next()
	cp.next()
	return &cp
}

// Compile compiles an XPath 1.0 expression. Prefixes are resolved with ns
// which can be nil if the expression uses none.
func Compile(str string, ns NamespaceResolver) (*Query, error) {
	return NewCompiler(str, ns).Compile()
}

func (c *Compiler) Compile() (*Query, error) {
	expr, err := c.compile()
	if err != nil {
		c.Error(c.source, err)
		return nil, err
	}
	q := Query{
		expr:   expr,
		source: c.source,
	}
	return &q, nil
}

func (c *Compiler) compile() (Expr, error) {
	expr, err := c.compileExpr(powLowest)
	if err != nil {
		return nil, err
	}
	if !c.done() {
		return nil, c.unexpected()
	}
	return expr, nil
}

func (c *Compiler) compileExpr(pow int) (Expr, error) {
	fn, ok := c.prefix[c.curr.Type]
	if !ok {
		return nil, c.unexpected()
	}
	left, err := fn()
	if err != nil {
		return nil, err
	}
	for !c.done() && pow < c.power() {
		fn, ok := c.infix[c.curr.Type]
		if !ok {
			return nil, c.unexpected()
		}
		if left, err = fn(left); err != nil {
			return nil, err
		}
	}
	return left, nil
}

func (c *Compiler) compileBinary(left Expr) (Expr, error) {
	c.Enter("binary")
	defer c.Leave("binary")
	var (
		op  = c.curr.Type
		pow = bindings[op]
	)
	c.next()
	right, err := c.compileExpr(pow)
	if err != nil {
		return nil, err
	}
	b := binary{
		left:  left,
		right: right,
		op:    op,
	}
	return b, nil
}

func (c *Compiler) compileUnion(left Expr) (Expr, error) {
	c.Enter("union")
	defer c.Leave("union")
	c.next()
	right, err := c.compileExpr(powUnion)
	if err != nil {
		return nil, err
	}
	var res union
	if u, ok := left.(union); ok {
		res.all = append(res.all, u.all...)
	} else {
		res.all = append(res.all, left)
	}
	res.all = append(res.all, right)
	return res, nil
}

func (c *Compiler) compileReverse() (Expr, error) {
	c.Enter("reverse")
	defer c.Leave("reverse")
	c.next()
	expr, err := c.compileExpr(powPrefix)
	if err != nil {
		return nil, err
	}
	return reverse{expr: expr}, nil
}

func (c *Compiler) compilePath() (Expr, error) {
	c.Enter("path")
	defer c.Leave("path")
	switch {
	case c.is(currLevel):
		c.next()
		if !c.startStep() {
			return root{}, nil
		}
		right, err := c.compileRelative()
		if err != nil {
			return nil, err
		}
		return path{left: root{}, right: right}, nil
	case c.is(anyLevel):
		c.next()
		right, err := c.compileRelative()
		if err != nil {
			return nil, err
		}
		left := path{
			left:  root{},
			right: descendantOrSelf(),
		}
		return path{left: left, right: right}, nil
	case c.startPrimary():
		expr, err := c.compileFilter()
		if err != nil {
			return nil, err
		}
		return c.compileTail(expr)
	default:
		return c.compileRelative()
	}
}

func (c *Compiler) compileTail(left Expr) (Expr, error) {
	for c.is(currLevel) || c.is(anyLevel) {
		if c.is(anyLevel) {
			left = path{left: left, right: descendantOrSelf()}
		}
		c.next()
		right, err := c.compileStep()
		if err != nil {
			return nil, err
		}
		left = path{left: left, right: right}
	}
	return left, nil
}

func (c *Compiler) compileRelative() (Expr, error) {
	left, err := c.compileStep()
	if err != nil {
		return nil, err
	}
	return c.compileTail(left)
}

func (c *Compiler) compileFilter() (Expr, error) {
	c.Enter("filter")
	defer c.Leave("filter")
	expr, err := c.compilePrimary()
	if err != nil {
		return nil, err
	}
	if !c.is(begPred) {
		return expr, nil
	}
	preds, err := c.compilePredicates()
	if err != nil {
		return nil, err
	}
	return filter{expr: expr, preds: preds}, nil
}

func (c *Compiler) compilePrimary() (Expr, error) {
	switch c.curr.Type {
	case Literal:
		defer c.next()
		return literal{expr: c.curr.Literal}, nil
	case Digit:
		f, err := strconv.ParseFloat(c.curr.Literal, 64)
		if err != nil {
			return nil, c.syntaxError("invalid number")
		}
		c.next()
		return number{expr: f}, nil
	case variable:
		qn, err := c.resolveName(c.curr.Literal)
		if err != nil {
			return nil, err
		}
		c.next()
		return varRef{ident: qn}, nil
	case begGrp:
		c.next()
		expr, err := c.compileExpr(powLowest)
		if err != nil {
			return nil, err
		}
		if !c.is(endGrp) {
			return nil, c.syntaxError("missing ')' after expression")
		}
		c.next()
		return expr, nil
	case Name:
		return c.compileCall()
	default:
		return nil, c.unexpected()
	}
}

func (c *Compiler) compileCall() (Expr, error) {
	c.Enter("call")
	defer c.Leave("call")
	qn, err := c.resolveName(c.curr.Literal)
	if err != nil {
		return nil, err
	}
	c.next()
	c.next()
	fn := call{
		ident: qn,
	}
	for !c.done() && !c.is(endGrp) {
		arg, err := c.compileExpr(powLowest)
		if err != nil {
			return nil, err
		}
		fn.args = append(fn.args, arg)
		switch {
		case c.is(opSeq):
			c.next()
			if c.is(endGrp) {
				return nil, c.syntaxError("argument expected after ','")
			}
		case c.is(endGrp):
		default:
			return nil, c.unexpected()
		}
	}
	if !c.is(endGrp) {
		return nil, c.syntaxError("missing ')' after arguments")
	}
	c.next()
	return fn, nil
}

func (c *Compiler) compileStep() (Expr, error) {
	c.Enter("step")
	defer c.Leave("step")
	var (
		st  step
		err error
	)
	switch {
	case c.is(currNode):
		c.next()
		st.axis = selfAxis
		st.test = kindTest{kind: xml.TypeNode}
		return st, nil
	case c.is(parentNode):
		c.next()
		st.axis = parentAxis
		st.test = kindTest{kind: xml.TypeNode}
		return st, nil
	case c.is(attrNode):
		c.next()
		st.axis = attributeAxis
	case c.is(Name) && c.peek.Type == opAxis:
		if st.axis, err = parseAxis(c.curr.Literal); err != nil {
			return nil, c.syntaxError(err.Error())
		}
		c.next()
		c.next()
	case c.is(Name):
		st.axis = childAxis
	default:
		return nil, c.unexpected()
	}
	if st.test, err = c.compileNodeTest(); err != nil {
		return nil, err
	}
	if c.is(begPred) {
		st.preds, err = c.compilePredicates()
	}
	return st, err
}

func (c *Compiler) compileNodeTest() (NodeTest, error) {
	if !c.is(Name) {
		return nil, c.syntaxError("node test expected")
	}
	ident := c.curr.Literal
	if isKindTest(ident) && c.peek.Type == begGrp {
		c.next()
		c.next()
		test := kindTest{
			kind: kindOf(ident),
		}
		if test.kind == xml.TypeInstruction && c.is(Literal) {
			test.target = c.curr.Literal
			c.next()
		}
		if !c.is(endGrp) {
			return nil, c.syntaxError("missing ')' after node type")
		}
		c.next()
		return test, nil
	}
	c.next()
	if ident == "*" {
		return nameTest{wildcard: true}, nil
	}
	var test nameTest
	if prefix, local, ok := cutName(ident); ok {
		uri, err := c.resolvePrefix(prefix)
		if err != nil {
			return nil, err
		}
		test.prefix = prefix
		test.uri = uri
		test.local = local
		test.anyLocal = local == "*"
	} else {
		test.local = ident
	}
	return test, nil
}

func (c *Compiler) compilePredicates() ([]Expr, error) {
	var list []Expr
	for c.is(begPred) {
		c.next()
		expr, err := c.compileExpr(powLowest)
		if err != nil {
			return nil, err
		}
		if !c.is(endPred) {
			return nil, c.syntaxError("missing ']' after predicate")
		}
		c.next()
		list = append(list, expr)
	}
	return list, nil
}

func (c *Compiler) startStep() bool {
	switch c.curr.Type {
	case Name, currNode, parentNode, attrNode:
		return true
	default:
		return false
	}
}

func (c *Compiler) startPrimary() bool {
	switch c.curr.Type {
	case Literal, Digit, variable, begGrp:
		return true
	case Name:
		return c.peek.Type == begGrp && !isKindTest(c.curr.Literal)
	default:
		return false
	}
}

func (c *Compiler) resolveName(ident string) (xml.QName, error) {
	prefix, local, ok := cutName(ident)
	if !ok {
		return xml.LocalName(ident), nil
	}
	uri, err := c.resolvePrefix(prefix)
	if err != nil {
		return xml.QName{}, err
	}
	return xml.ExpandedName(local, prefix, uri), nil
}

func (c *Compiler) resolvePrefix(prefix string) (string, error) {
	if c.ns != nil {
		if uri, ok := c.ns.ResolvePrefix(prefix); ok && uri != "" {
			return uri, nil
		}
	}
	if prefix == "xml" {
		return xml.NamespaceXML, nil
	}
	return "", SyntaxError{
		Code:     CodeUndefinedNS,
		Expr:     c.source,
		Cause:    fmt.Sprintf("%s: undeclared prefix", prefix),
		Position: c.curr.Position,
	}
}

func (c *Compiler) power() int {
	return bindings[c.curr.Type]
}

func (c *Compiler) unexpected() error {
	return c.syntaxError(fmt.Sprintf("unexpected token %s", c.curr))
}

func (c *Compiler) syntaxError(cause string) error {
	return syntaxError(c.source, cause, c.curr.Position)
}

func (c *Compiler) is(kind rune) bool {
	return c.curr.Type == kind
}

func (c *Compiler) done() bool {
	return c.is(EOF)
}

func (c *Compiler) next() {
	c.curr = c.peek
	c.peek = c.scan.Scan()
}

func descendantOrSelf() Expr {
	return step{
		axis: descendantSelfAxis,
		test: kindTest{kind: xml.TypeNode},
	}
}

func cutName(ident string) (string, string, bool) {
	for i := 0; i < len(ident); i++ {
		if ident[i] == ':' {
			return ident[:i], ident[i+1:], true
		}
	}
	return "", ident, false
}

func isKindTest(ident string) bool {
	switch ident {
	case kindNode, kindText, kindComment, kindInstruction:
		return true
	default:
		return false
	}
}

func kindOf(ident string) xml.NodeType {
	switch ident {
	case kindText:
		return xml.TypeText
	case kindComment:
		return xml.TypeComment
	case kindInstruction:
		return xml.TypeInstruction
	default:
		return xml.TypeNode
	}
}
