package xslt

import (
	"github.com/midbel/angle/xml"
	"github.com/midbel/angle/xpath"
)

var builtinPrograms map[xml.NodeType]*Program

func init() {
	children, _ := xpath.Compile("node()", nil)
	self, _ := xpath.Compile(".", nil)

	apply := Program{
		Name: "built-in(apply-templates)",
	}
	apply.addIteration(iteration{
		selector: children,
		current:  true,
	})
	apply.emit(OpApplyTemplates, 0, 0, instrInfo{label: "built-in template"})

	value := Program{
		Name: "built-in(value-of)",
	}
	value.emit(OpValueOf, value.addQuery(self), 0, instrInfo{label: "built-in template"})

	empty := Program{
		Name: "built-in(empty)",
	}
	builtinPrograms = map[xml.NodeType]*Program{
		xml.TypeDocument:    &apply,
		xml.TypeElement:     &apply,
		xml.TypeText:        &value,
		xml.TypeAttribute:   &value,
		xml.TypeComment:     &empty,
		xml.TypeInstruction: &empty,
	}
}

func builtinProgram(shape xml.NodeType) *Program {
	if p, ok := builtinPrograms[shape]; ok {
		return p
	}
	return builtinPrograms[xml.TypeComment]
}

const exsltCommonUri = "http://exslt.org/common"

// elementAvailable reports whether name is an instruction the processor
// implements.
func elementAvailable(name xml.QName) bool {
	if name.Uri != xsltNamespaceUri {
		return false
	}
	return ClassifyElement(name).Instruction()
}

// functionAvailable reports whether name can be called from expressions.
func functionAvailable(name xml.QName) bool {
	switch name.Uri {
	case "":
		_, ok := extensions[name.Name]
		return ok || xpath.HasFunction(name.Name)
	case exsltCommonUri:
		_, ok := exsltExtensions[name.Name]
		return ok
	default:
		return false
	}
}

// systemProperty gives the value of the property name, the empty string
// for unknown properties.
func systemProperty(name xml.QName) xpath.Sequence {
	if name.Uri != xsltNamespaceUri {
		return xpath.Singleton("")
	}
	switch name.Name {
	case "version":
		return xpath.Singleton(1.0)
	case "vendor":
		return xpath.Singleton(XslVendor)
	case "vendor-url":
		return xpath.Singleton(XslVendorUrl)
	default:
		return xpath.Singleton("")
	}
}
