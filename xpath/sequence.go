package xpath

import (
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/midbel/angle/xml"
)

type Kind int8

const (
	KindAny Kind = iota
	KindNodeSet
	KindString
	KindNumber
	KindBoolean
)

func (k Kind) String() string {
	switch k {
	case KindNodeSet:
		return "node-set"
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBoolean:
		return "boolean"
	default:
		return "any"
	}
}

type Item interface {
	Node() xml.Node
	Value() any
	True() bool
	Atomic() bool
}

type Sequence []Item

func NewSequence() Sequence {
	var seq Sequence
	return seq
}

// Singleton wraps a node, a string, a number or a boolean into a sequence.
func Singleton(value any) Sequence {
	var item Item
	switch value := value.(type) {
	case xml.Node:
		item = createNode(value)
	case Item:
		item = value
	case int:
		item = createLiteral(float64(value))
	default:
		item = createLiteral(value)
	}
	var seq Sequence
	seq.Append(item)
	return seq
}

func NodeSet(nodes []xml.Node) Sequence {
	seq := make(Sequence, 0, len(nodes))
	for _, n := range nodes {
		seq = append(seq, createNode(n))
	}
	return seq
}

func (s *Sequence) First() Item {
	if s.Empty() {
		return nil
	}
	return (*s)[0]
}

func (s *Sequence) Len() int {
	return len(*s)
}

func (s *Sequence) Append(item Item) {
	*s = append(*s, item)
}

func (s *Sequence) Concat(other Sequence) {
	*s = slices.Concat(*s, other)
}

func (s *Sequence) Empty() bool {
	return len(*s) == 0
}

func (s *Sequence) Singleton() bool {
	return len(*s) == 1
}

// NodeSet reports whether every item of the sequence is a node. The empty
// sequence is the empty node-set.
func (s *Sequence) NodeSet() bool {
	for _, i := range *s {
		if i.Atomic() {
			return false
		}
	}
	return true
}

func (s *Sequence) Kind() Kind {
	if s.NodeSet() {
		return KindNodeSet
	}
	switch s.First().Value().(type) {
	case string:
		return KindString
	case float64:
		return KindNumber
	case bool:
		return KindBoolean
	default:
		return KindAny
	}
}

func (s *Sequence) Nodes() ([]xml.Node, error) {
	list := make([]xml.Node, 0, len(*s))
	for _, i := range *s {
		if i.Atomic() {
			return nil, ErrType
		}
		list = append(list, i.Node())
	}
	return list, nil
}

func AsNodes(seq Sequence) ([]xml.Node, error) {
	return seq.Nodes()
}

func AsString(seq Sequence) string {
	if seq.Empty() {
		return ""
	}
	first := seq.First()
	if !first.Atomic() {
		return StringValue(first.Node())
	}
	return toString(first.Value())
}

func AsNumber(seq Sequence) float64 {
	if seq.Empty() {
		return math.NaN()
	}
	first := seq.First()
	if !first.Atomic() {
		return StringToNumber(StringValue(first.Node()))
	}
	return toNumber(first.Value())
}

func AsBoolean(seq Sequence) bool {
	if seq.Empty() {
		return false
	}
	if seq.NodeSet() {
		return true
	}
	return seq.First().True()
}

func StringValue(n xml.Node) string {
	if n == nil {
		return ""
	}
	return n.Value()
}

func toString(v any) string {
	switch v := v.(type) {
	case string:
		return v
	case float64:
		return NumberToString(v)
	case bool:
		return strconv.FormatBool(v)
	case xml.Node:
		return v.Value()
	default:
		return ""
	}
}

func toNumber(v any) float64 {
	switch v := v.(type) {
	case string:
		return StringToNumber(v)
	case float64:
		return v
	case bool:
		if v {
			return 1
		}
		return 0
	case xml.Node:
		return StringToNumber(v.Value())
	default:
		return math.NaN()
	}
}

// NumberToString converts a number following the rules of the string
// function: no exponent, no trailing zeros, NaN and Infinity spelled out.
func NumberToString(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	case f == 0:
		return "0"
	case f == math.Trunc(f) && math.Abs(f) < 1e15:
		return strconv.FormatInt(int64(f), 10)
	default:
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
}

// StringToNumber parses str as an xpath number: optional minus sign, digits
// and an optional fractional part, surrounded by whitespace.
func StringToNumber(str string) float64 {
	str = strings.TrimSpace(str)
	if str == "" {
		return math.NaN()
	}
	body := strings.TrimPrefix(str, "-")
	var digits, dots int
	for _, c := range body {
		switch {
		case c >= '0' && c <= '9':
			digits++
		case c == '.':
			dots++
		default:
			return math.NaN()
		}
	}
	if digits == 0 || dots > 1 {
		return math.NaN()
	}
	f, err := strconv.ParseFloat(str, 64)
	if err != nil {
		return math.NaN()
	}
	return f
}

type nodeItem struct {
	node xml.Node
}

func createNode(node xml.Node) Item {
	return nodeItem{
		node: node,
	}
}

func (i nodeItem) Node() xml.Node {
	return i.node
}

func (i nodeItem) Value() any {
	return i.node.Value()
}

func (i nodeItem) True() bool {
	return true
}

func (i nodeItem) Atomic() bool {
	return false
}

type literalItem struct {
	value any
}

func createLiteral(value any) Item {
	return literalItem{
		value: value,
	}
}

func (i literalItem) Node() xml.Node {
	return nil
}

func (i literalItem) Value() any {
	return i.value
}

func (i literalItem) True() bool {
	switch v := i.value.(type) {
	case string:
		return v != ""
	case float64:
		return v != 0 && !math.IsNaN(v)
	case bool:
		return v
	default:
		return false
	}
}

func (i literalItem) Atomic() bool {
	return true
}
