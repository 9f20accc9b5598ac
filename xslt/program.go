package xslt

import (
	"fmt"
	"strings"

	"github.com/midbel/angle/xml"
	"github.com/midbel/angle/xpath"
)

type Opcode uint8

const (
	OpNop Opcode = iota
	// OpText writes strings[A]; B is set to disable output escaping.
	OpText
	// OpValueOf writes the string value of queries[A].
	OpValueOf
	OpCopyOf
	// OpLiteralElement starts literals[A] and its namespace nodes.
	OpLiteralElement
	// OpAttributes adds the attributes of literals[A].
	OpAttributes
	OpElement
	OpEndElement
	// OpStartCollect redirects the output to a text collector until the
	// instruction consuming the collected text.
	OpStartCollect
	OpAttribute
	OpComment
	OpProcessingInstruction
	OpMessage
	// OpCopy copies the current node. A is the target when the node has no
	// content to instantiate.
	OpCopy
	OpEndCopy
	// OpTest jumps to B when queries[A] is false.
	OpTest
	OpJump
	OpForEach
	OpApplyTemplates
	OpApplyImports
	OpCallTemplate
	// OpStartParams opens the set of parameters of the next call.
	OpStartParams
	// OpParam binds bindings[A] from the parameters given by the caller and
	// jumps to B, or falls through to the code of its default value.
	OpParam
	OpVariable
	OpStartFragment
	OpEndFragment
	OpEnterScope
	OpLeaveScope
	OpNumber
	OpUseAttributeSets
	// OpMatch runs the template of matches[A] when one of its alternatives
	// matches the current node, else continues at B.
	OpMatch
	// OpInvoke runs the template of matches[A] unconditionally.
	OpInvoke
	OpApplyBuiltin
	// OpFail raises the error described by strings[A].
	OpFail
	opCount
)

var opNames = [opCount]string{
	OpNop:                   "nop",
	OpText:                  "text",
	OpValueOf:               "value-of",
	OpCopyOf:                "copy-of",
	OpLiteralElement:        "literal-element",
	OpAttributes:            "attributes",
	OpElement:               "element",
	OpEndElement:            "end-element",
	OpStartCollect:          "start-collect",
	OpAttribute:             "attribute",
	OpComment:               "comment",
	OpProcessingInstruction: "processing-instruction",
	OpMessage:               "message",
	OpCopy:                  "copy",
	OpEndCopy:               "end-copy",
	OpTest:                  "test",
	OpJump:                  "jump",
	OpForEach:               "for-each",
	OpApplyTemplates:        "apply-templates",
	OpApplyImports:          "apply-imports",
	OpCallTemplate:          "call-template",
	OpStartParams:           "start-params",
	OpParam:                 "param",
	OpVariable:              "variable",
	OpStartFragment:         "start-fragment",
	OpEndFragment:           "end-fragment",
	OpEnterScope:            "enter-scope",
	OpLeaveScope:            "leave-scope",
	OpNumber:                "number",
	OpUseAttributeSets:      "use-attribute-sets",
	OpMatch:                 "match",
	OpInvoke:                "invoke",
	OpApplyBuiltin:          "apply-builtin",
	OpFail:                  "fail",
}

func (o Opcode) String() string {
	if o < opCount {
		return opNames[o]
	}
	return "<unknown>"
}

type Instr struct {
	Op Opcode
	A  int
	B  int
}

func (i Instr) String() string {
	return fmt.Sprintf("%-24s %d %d", i.Op, i.A, i.B)
}

type bindKind int8

const (
	bindVariable bindKind = iota
	bindParam
	bindWithParam
)

// binding is a variable, a parameter or a parameter given to a call.
type binding struct {
	name  xml.QName
	query *xpath.Query
	kind  bindKind
}

// iteration is the node list of xsl:for-each or xsl:apply-templates.
type iteration struct {
	selector *xpath.Query
	sorts    []sortKey
	mode     xml.QName
	// current keeps the mode of the calling frame, as the built-in rules do.
	current bool
	body    *Program
}

type literalAttr struct {
	name  xml.QName
	value *AVT
}

type literalElement struct {
	name       xml.QName
	namespaces []xml.NS
	attrs      []literalAttr
}

// computedName is the name of xsl:element or xsl:attribute.
type computedName struct {
	name      *AVT
	namespace *AVT
	ns        *nsContext
	element   bool
}

type numberSpec struct {
	level        string
	count        *xpath.Pattern
	from         *xpath.Pattern
	value        *xpath.Query
	format       *AVT
	letterValue  *AVT
	groupingSep  *AVT
	groupingSize *AVT
}

type matchEntry struct {
	template *Template
	alts     []*xpath.Alternative
	priority float64
}

type instrInfo struct {
	label string
	ns    *nsContext
}

// Program is the compiled form of a template body, or of the choice of a
// template for a node. A Program never changes once it has been returned
// by the compiler.
type Program struct {
	Name    string
	BaseURL string
	Code    []Instr

	info       []instrInfo
	strings    []string
	queries    []*xpath.Query
	avts       []*AVT
	bindings   []binding
	iterations []iteration
	literals   []literalElement
	names      []computedName
	numbers    []numberSpec
	templates  []*Template
	matches    []matchEntry
	sets       [][]xml.QName
}

func (p *Program) Len() int {
	return len(p.Code)
}

// String gives a listing of the instructions of p.
func (p *Program) String() string {
	var str strings.Builder
	fmt.Fprintf(&str, "program %s\n", p.Name)
	for i, in := range p.Code {
		fmt.Fprintf(&str, "%4d  %s", i, in)
		if i < len(p.info) && p.info[i].label != "" {
			fmt.Fprintf(&str, "  ; %s", p.info[i].label)
		}
		str.WriteString("\n")
	}
	return str.String()
}

func (p *Program) label(pc int) string {
	if pc >= 0 && pc < len(p.info) {
		return p.info[pc].label
	}
	return p.Name
}

func (p *Program) namespaces(pc int) *nsContext {
	if pc >= 0 && pc < len(p.info) {
		return p.info[pc].ns
	}
	return nil
}

func (p *Program) emit(op Opcode, a, b int, info instrInfo) int {
	p.Code = append(p.Code, Instr{Op: op, A: a, B: b})
	p.info = append(p.info, info)
	return len(p.Code) - 1
}

func (p *Program) patch(at, a, b int) {
	p.Code[at].A = a
	p.Code[at].B = b
}

func (p *Program) here() int {
	return len(p.Code)
}

func (p *Program) addString(str string) int {
	p.strings = append(p.strings, str)
	return len(p.strings) - 1
}

func (p *Program) addQuery(q *xpath.Query) int {
	p.queries = append(p.queries, q)
	return len(p.queries) - 1
}

func (p *Program) addAVT(a *AVT) int {
	p.avts = append(p.avts, a)
	return len(p.avts) - 1
}

func (p *Program) addBinding(b binding) int {
	p.bindings = append(p.bindings, b)
	return len(p.bindings) - 1
}

func (p *Program) addIteration(it iteration) int {
	p.iterations = append(p.iterations, it)
	return len(p.iterations) - 1
}
