package xpath

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

type Position struct {
	Line   int
	Column int
}

const (
	kwAnd = "and"
	kwOr  = "or"
	kwDiv = "div"
	kwMod = "mod"
)

const (
	EOF rune = -(1 + iota)
	Name
	Literal
	Digit
	Invalid
)

const (
	currNode = -(iota + 1000)
	parentNode
	attrNode
	variable
	currLevel
	anyLevel
	begPred
	endPred
	begGrp
	endGrp
	opAxis
	opAdd
	opSub
	opMul
	opDiv
	opMod
	opEq
	opNe
	opGt
	opGe
	opLt
	opLe
	opUnion
	opAnd
	opOr
	opSeq
)

type Token struct {
	Literal string
	Type    rune
	Position
}

func (t Token) String() string {
	switch t.Type {
	case EOF:
		return "<eof>"
	case Name:
		return fmt.Sprintf("name(%s)", t.Literal)
	case Literal:
		return fmt.Sprintf("literal(%s)", t.Literal)
	case Digit:
		return fmt.Sprintf("number(%s)", t.Literal)
	case variable:
		return fmt.Sprintf("variable(%s)", t.Literal)
	case currNode:
		return "<current-node>"
	case parentNode:
		return "<parent-node>"
	case attrNode:
		return "<attribute>"
	case currLevel:
		return "<current-level>"
	case anyLevel:
		return "<any-level>"
	case begPred:
		return "<begin-predicate>"
	case endPred:
		return "<end-predicate>"
	case begGrp:
		return "<begin-group>"
	case endGrp:
		return "<end-group>"
	case opAxis:
		return "<axis>"
	case opAdd:
		return "<add>"
	case opSub:
		return "<subtract>"
	case opMul:
		return "<multiply>"
	case opDiv:
		return "<divide>"
	case opMod:
		return "<modulo>"
	case opEq:
		return "<eq>"
	case opNe:
		return "<ne>"
	case opGt:
		return "<gt>"
	case opGe:
		return "<ge>"
	case opLt:
		return "<lt>"
	case opLe:
		return "<le>"
	case opUnion:
		return "<union>"
	case opAnd:
		return "<and>"
	case opOr:
		return "<or>"
	case opSeq:
		return "<comma>"
	default:
		return fmt.Sprintf("<invalid(%s)>", t.Literal)
	}
}

// Scanner splits an expression into tokens. The previously scanned token is
// used to tell operators from names as required by the XPath lexical rules.
type Scanner struct {
	input string
	pos   int
	next  int
	char  rune
	Position

	str  strings.Builder
	prev rune
}

func Scan(str string) *Scanner {
	s := Scanner{
		input: str,
		prev:  Invalid,
	}
	s.Line = 1
	s.read()
	return &s
}

func (s *Scanner) Scan() Token {
	s.skipBlank()
	var tok Token
	tok.Position = s.Position
	s.str.Reset()
	switch {
	case s.done():
		tok.Type = EOF
	case s.char == apos || s.char == quote:
		s.scanLiteral(&tok)
	case unicode.IsDigit(s.char) || (s.char == dot && unicode.IsDigit(s.peek())):
		s.scanNumber(&tok)
	case s.char == dollar:
		s.scanVariable(&tok)
	case s.char == star:
		if s.operatorContext() {
			tok.Type = opMul
		} else {
			tok.Type = Name
			tok.Literal = "*"
		}
		s.read()
	case isNameStart(s.char):
		s.scanName(&tok)
	default:
		s.scanOperator(&tok)
	}
	s.prev = tok.Type
	return tok
}

func (s *Scanner) operatorContext() bool {
	switch s.prev {
	case Invalid, attrNode, opAxis, begGrp, begPred, opSeq:
		return false
	case currLevel, anyLevel, opUnion, opAdd, opSub, opMul, opDiv, opMod,
		opEq, opNe, opLt, opLe, opGt, opGe, opAnd, opOr:
		return false
	default:
		return true
	}
}

func (s *Scanner) scanOperator(tok *Token) {
	k := s.peek()
	switch s.char {
	case slash:
		tok.Type = currLevel
		if k == slash {
			s.read()
			tok.Type = anyLevel
		}
	case dot:
		tok.Type = currNode
		if k == dot {
			s.read()
			tok.Type = parentNode
		}
	case arobase:
		tok.Type = attrNode
	case colon:
		tok.Type = Invalid
		if k == colon {
			s.read()
			tok.Type = opAxis
		}
	case lsquare:
		tok.Type = begPred
	case rsquare:
		tok.Type = endPred
	case lparen:
		tok.Type = begGrp
	case rparen:
		tok.Type = endGrp
	case comma:
		tok.Type = opSeq
	case pipe:
		tok.Type = opUnion
	case plus:
		tok.Type = opAdd
	case dash:
		tok.Type = opSub
	case equal:
		tok.Type = opEq
	case bang:
		tok.Type = Invalid
		if k == equal {
			s.read()
			tok.Type = opNe
		}
	case langle:
		tok.Type = opLt
		if k == equal {
			s.read()
			tok.Type = opLe
		}
	case rangle:
		tok.Type = opGt
		if k == equal {
			s.read()
			tok.Type = opGe
		}
	default:
		tok.Type = Invalid
		tok.Literal = string(s.char)
	}
	s.read()
}

func (s *Scanner) scanLiteral(tok *Token) {
	quote := s.char
	s.read()
	for !s.done() && s.char != quote {
		s.write()
		s.read()
	}
	tok.Type = Literal
	tok.Literal = s.str.String()
	if s.char != quote {
		tok.Type = Invalid
		return
	}
	s.read()
}

func (s *Scanner) scanNumber(tok *Token) {
	for unicode.IsDigit(s.char) {
		s.write()
		s.read()
	}
	if s.char == dot {
		s.write()
		s.read()
		for unicode.IsDigit(s.char) {
			s.write()
			s.read()
		}
	}
	tok.Type = Digit
	tok.Literal = s.str.String()
}

func (s *Scanner) scanVariable(tok *Token) {
	s.read()
	if !isNameStart(s.char) {
		tok.Type = Invalid
		return
	}
	s.scanQName()
	tok.Type = variable
	tok.Literal = s.str.String()
}

func (s *Scanner) scanName(tok *Token) {
	s.scanQName()
	tok.Literal = s.str.String()
	tok.Type = Name
	if !s.operatorContext() {
		return
	}
	switch tok.Literal {
	case kwAnd:
		tok.Type = opAnd
	case kwOr:
		tok.Type = opOr
	case kwDiv:
		tok.Type = opDiv
	case kwMod:
		tok.Type = opMod
	}
}

func (s *Scanner) scanQName() {
	for isNameChar(s.char) {
		s.write()
		s.read()
	}
	if s.char != colon || s.peek() == colon {
		return
	}
	k := s.peek()
	if k != star && !isNameStart(k) {
		return
	}
	s.write()
	s.read()
	if s.char == star {
		s.write()
		s.read()
		return
	}
	for isNameChar(s.char) {
		s.write()
		s.read()
	}
}

func (s *Scanner) skipBlank() {
	for unicode.IsSpace(s.char) {
		s.read()
	}
}

func (s *Scanner) write() {
	s.str.WriteRune(s.char)
}

func (s *Scanner) read() {
	if s.char == '\n' {
		s.Line++
		s.Column = 0
	}
	s.Column++
	s.pos = s.next
	if s.pos >= len(s.input) {
		s.char = utf8.RuneError
		s.next = len(s.input) + 1
		return
	}
	r, z := utf8.DecodeRuneInString(s.input[s.pos:])
	s.char = r
	s.next = s.pos + z
}

func (s *Scanner) peek() rune {
	if s.next >= len(s.input) {
		return utf8.RuneError
	}
	r, _ := utf8.DecodeRuneInString(s.input[s.next:])
	return r
}

func (s *Scanner) done() bool {
	return s.pos >= len(s.input)
}

const (
	langle  = '<'
	rangle  = '>'
	lsquare = '['
	rsquare = ']'
	lparen  = '('
	rparen  = ')'
	colon   = ':'
	quote   = '"'
	apos    = '\''
	slash   = '/'
	bang    = '!'
	equal   = '='
	dash    = '-'
	dot     = '.'
	arobase = '@'
	comma   = ','
	plus    = '+'
	star    = '*'
	pipe    = '|'
	dollar  = '$'
)

func isNameStart(c rune) bool {
	return c == '_' || unicode.IsLetter(c)
}

func isNameChar(c rune) bool {
	return isNameStart(c) || unicode.IsDigit(c) || c == dash || c == dot ||
		unicode.Is(unicode.Mn, c)
}
