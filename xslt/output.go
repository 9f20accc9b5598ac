package xslt

import (
	"fmt"
	"slices"
	"strings"

	"github.com/midbel/angle/xml"
)

type OutputMethod int8

const (
	MethodUnknown OutputMethod = iota
	MethodXML
	MethodHTML
	MethodText
)

func (m OutputMethod) String() string {
	switch m {
	case MethodXML:
		return "xml"
	case MethodHTML:
		return "html"
	case MethodText:
		return "text"
	default:
		return "unknown"
	}
}

func parseMethod(str string, ns *nsContext) (OutputMethod, error) {
	switch str {
	case "xml":
		return MethodXML, nil
	case "html":
		return MethodHTML, nil
	case "text":
		return MethodText, nil
	}
	qn, err := ns.ResolveName(str)
	if err != nil {
		return MethodUnknown, err
	}
	if qn.Space == "" {
		return MethodUnknown, invalidValue("method", str)
	}
	return MethodXML, nil
}

// Output is the merged result of the xsl:output declarations of a
// stylesheet.
type Output struct {
	Method          OutputMethod
	Version         string
	Encoding        string
	OmitDeclaration bool
	Standalone      string
	DoctypePublic   string
	DoctypeSystem   string
	MediaType       string
	Indent          bool

	cdata map[string]xml.QName
}

func defaultOutput() *Output {
	return &Output{
		Method: MethodUnknown,
		cdata:  make(map[string]xml.QName),
	}
}

// IsCDataSection reports whether text children of elements named name are
// written as CDATA sections.
func (o *Output) IsCDataSection(name xml.QName) bool {
	_, ok := o.cdata[name.ExpandedName()]
	return ok
}

// CDataSections lists the cdata-section-elements names.
func (o *Output) CDataSections() []xml.QName {
	var list []xml.QName
	for _, n := range o.cdata {
		list = append(list, n)
	}
	slices.SortFunc(list, func(a, b xml.QName) int {
		return strings.Compare(a.ExpandedName(), b.ExpandedName())
	})
	return list
}

// Resolved gives the output with the method decided and the defaults of
// that method applied.
func (o *Output) Resolved(method OutputMethod) *Output {
	x := *o
	if x.Method == MethodUnknown {
		x.Method = method
	}
	if x.Version == "" {
		switch x.Method {
		case MethodHTML:
			x.Version = "4.0"
		default:
			x.Version = xml.SupportedVersion
		}
	}
	if x.Encoding == "" {
		x.Encoding = xml.SupportedEncoding
	}
	if x.MediaType == "" {
		switch x.Method {
		case MethodHTML:
			x.MediaType = "text/html"
		case MethodText:
			x.MediaType = "text/plain"
		default:
			x.MediaType = "text/xml"
		}
	}
	return &x
}

func (o *Output) DocType(root string) *xml.DocType {
	if o.DoctypeSystem == "" && o.DoctypePublic == "" {
		return nil
	}
	return xml.NewDocType(root, o.DoctypePublic, o.DoctypeSystem)
}

// merge applies the attributes of one xsl:output. Declarations are merged
// in increasing import precedence so later calls override earlier ones,
// except for cdata-section-elements which accumulate.
func (o *Output) merge(c *Construct) error {
	for _, a := range c.Attrs {
		switch a.Type {
		case AttrMethod:
			m, err := parseMethod(a.Value, c.NS)
			if err != nil {
				return err
			}
			o.Method = m
		case AttrVersion:
			o.Version = a.Value
		case AttrEncoding:
			o.Encoding = a.Value
		case AttrOmitXmlDeclaration:
			v, err := parseYesNo(a)
			if err != nil {
				return err
			}
			o.OmitDeclaration = v
		case AttrStandalone:
			if _, err := parseYesNo(a); err != nil {
				return err
			}
			o.Standalone = a.Value
		case AttrDoctypePublic:
			o.DoctypePublic = a.Value
		case AttrDoctypeSystem:
			o.DoctypeSystem = a.Value
		case AttrMediaType:
			o.MediaType = a.Value
		case AttrIndent:
			v, err := parseYesNo(a)
			if err != nil {
				return err
			}
			o.Indent = v
		case AttrCdataSectionElements:
			for _, str := range strings.Fields(a.Value) {
				qn, err := c.NS.ResolveName(str)
				if err != nil {
					return fmt.Errorf("%s: %w", str, err)
				}
				if qn.Space == "" {
					if uri, ok := c.NS.ResolvePrefix(""); ok {
						qn.Uri = uri
					}
				}
				o.cdata[qn.ExpandedName()] = qn
			}
		}
	}
	return nil
}

func parseYesNo(a Attr) (bool, error) {
	switch a.Value {
	case "yes":
		return true, nil
	case "no":
		return false, nil
	default:
		return false, invalidValue(a.Type.String(), a.Value)
	}
}
