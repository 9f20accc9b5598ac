package xslt

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/midbel/angle/xml"
	"github.com/midbel/angle/xpath"
)

// Template is an xsl:template of a stylesheet. Its body is compiled the
// first time the template is instantiated.
type Template struct {
	Name     xml.QName
	Match    *xpath.Pattern
	Mode     xml.QName
	Priority float64
	// Explicit is set when the priority comes from the priority attribute.
	Explicit bool

	Import *Import
	Index  int
	Handle Handle

	program *Program
}

func (t *Template) Precedence() int {
	return t.Import.Precedence()
}

// priorityOf gives the priority of one alternative of the match pattern.
func (t *Template) priorityOf(alt *xpath.Alternative) float64 {
	if t.Explicit {
		return t.Priority
	}
	return alt.Priority
}

func (t *Template) String() string {
	var parts []string
	if !t.Name.Zero() {
		parts = append(parts, fmt.Sprintf("name=%s", t.Name.QualifiedName()))
	}
	if t.Match != nil {
		parts = append(parts, fmt.Sprintf("match=%s", t.Match))
	}
	if !t.Mode.Zero() {
		parts = append(parts, fmt.Sprintf("mode=%s", t.Mode.QualifiedName()))
	}
	return "template(" + strings.Join(parts, ", ") + ")"
}

func newTemplate(c *Construct, h Handle, imp *Import) (*Template, error) {
	tpl := Template{
		Import: imp,
		Handle: h,
	}
	if str, ok := c.Attr(AttrName); ok {
		qn, err := c.NS.ResolveName(str)
		if err != nil {
			return nil, fmt.Errorf("name: %w", err)
		}
		tpl.Name = qn
	}
	if str, ok := c.Attr(AttrMatch); ok {
		pat, err := xpath.CompilePattern(str, c.NS)
		if err != nil {
			return nil, fmt.Errorf("%s: %w: %w", str, ErrInvalidPattern, err)
		}
		tpl.Match = pat
	}
	if tpl.Match == nil && tpl.Name.Zero() {
		return nil, fmt.Errorf("name or match: %w", ErrMissingAttr)
	}
	if str, ok := c.Attr(AttrMode); ok {
		if tpl.Match == nil {
			return nil, fmt.Errorf("mode without match: %w", ErrInvalidValue)
		}
		qn, err := c.NS.ResolveName(str)
		if err != nil {
			return nil, fmt.Errorf("mode: %w", err)
		}
		tpl.Mode = qn
	}
	if str, ok := c.Attr(AttrPriority); ok {
		p, err := strconv.ParseFloat(strings.TrimSpace(str), 64)
		if err != nil {
			return nil, invalidValue("priority", str)
		}
		tpl.Priority = p
		tpl.Explicit = true
	}
	return &tpl, nil
}

// Variable is a top-level xsl:variable or xsl:param. Its value is computed
// the first time it is referenced during a transformation.
type Variable struct {
	Name   xml.QName
	Param  bool
	Select *xpath.Query

	Import *Import
	Index  int
	Handle Handle

	program *Program
}

func (v *Variable) Precedence() int {
	return v.Import.Precedence()
}

func (v *Variable) String() string {
	kind := "variable"
	if v.Param {
		kind = "param"
	}
	return fmt.Sprintf("%s(%s)", kind, v.Name.QualifiedName())
}

func newVariable(c *Construct, h Handle, imp *Import) (*Variable, error) {
	name, _ := c.Attr(AttrName)
	qn, err := c.NS.ResolveName(name)
	if err != nil {
		return nil, fmt.Errorf("name: %w", err)
	}
	v := Variable{
		Name:   qn,
		Param:  c.Kind == KindParam,
		Import: imp,
		Handle: h,
	}
	if str, ok := c.Attr(AttrSelect); ok {
		if len(c.Children) > 0 {
			return nil, fmt.Errorf("select and content: %w", ErrInvalidValue)
		}
		q, err := xpath.Compile(str, c.NS)
		if err != nil {
			return nil, err
		}
		v.Select = q
	}
	return &v, nil
}

// AttributeSet is one xsl:attribute-set. Sets sharing a name are merged:
// all of them run in increasing import precedence so that the attributes
// of the last one win.
type AttributeSet struct {
	Name   xml.QName
	Uses   []xml.QName
	Import *Import
	Index  int

	program *Program
}

func (a *AttributeSet) Precedence() int {
	return a.Import.Precedence()
}

// resolveNames parses a whitespace separated list of qualified names.
func resolveNames(str string, ns *nsContext) ([]xml.QName, error) {
	var list []xml.QName
	for _, s := range strings.Fields(str) {
		qn, err := ns.ResolveName(s)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", s, err)
		}
		list = append(list, qn)
	}
	return list, nil
}

type decimalFormatEntry struct {
	format  DecimalFormat
	prec    *precedence
	pending []decimalFormatEntry
}

type outputEntry struct {
	construct Construct
	prec      *precedence
	index     int
}
