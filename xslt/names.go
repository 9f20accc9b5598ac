package xslt

import (
	"github.com/midbel/angle/xml"
)

const (
	xsltNamespaceUri    = "http://www.w3.org/1999/XSL/Transform"
	xsltNamespacePrefix = "xsl"
)

// ElementType classifies the elements of a stylesheet. Elements outside of
// the transformation namespace are literal result elements.
type ElementType int8

const (
	ElemUnknown ElementType = iota
	ElemLiteral
	ElemApplyImports
	ElemApplyTemplates
	ElemAttribute
	ElemAttributeSet
	ElemCallTemplate
	ElemChoose
	ElemComment
	ElemCopy
	ElemCopyOf
	ElemDecimalFormat
	ElemElement
	ElemFallback
	ElemForEach
	ElemIf
	ElemImport
	ElemInclude
	ElemKey
	ElemMessage
	ElemNamespaceAlias
	ElemNumber
	ElemOtherwise
	ElemOutput
	ElemParam
	ElemPreserveSpace
	ElemProcessingInstruction
	ElemSort
	ElemStripSpace
	ElemStylesheet
	ElemTemplate
	ElemText
	ElemTransform
	ElemValueOf
	ElemVariable
	ElemWhen
	ElemWithParam
)

var elementNames = map[string]ElementType{
	"apply-imports":          ElemApplyImports,
	"apply-templates":        ElemApplyTemplates,
	"attribute":              ElemAttribute,
	"attribute-set":          ElemAttributeSet,
	"call-template":          ElemCallTemplate,
	"choose":                 ElemChoose,
	"comment":                ElemComment,
	"copy":                   ElemCopy,
	"copy-of":                ElemCopyOf,
	"decimal-format":         ElemDecimalFormat,
	"element":                ElemElement,
	"fallback":               ElemFallback,
	"for-each":               ElemForEach,
	"if":                     ElemIf,
	"import":                 ElemImport,
	"include":                ElemInclude,
	"key":                    ElemKey,
	"message":                ElemMessage,
	"namespace-alias":        ElemNamespaceAlias,
	"number":                 ElemNumber,
	"otherwise":              ElemOtherwise,
	"output":                 ElemOutput,
	"param":                  ElemParam,
	"preserve-space":         ElemPreserveSpace,
	"processing-instruction": ElemProcessingInstruction,
	"sort":                   ElemSort,
	"strip-space":            ElemStripSpace,
	"stylesheet":             ElemStylesheet,
	"template":               ElemTemplate,
	"text":                   ElemText,
	"transform":              ElemTransform,
	"value-of":               ElemValueOf,
	"variable":               ElemVariable,
	"when":                   ElemWhen,
	"with-param":             ElemWithParam,
}

var elementLabels = reverseTable(elementNames)

// ClassifyElement maps name to its type code.
func ClassifyElement(name xml.QName) ElementType {
	if name.Uri != xsltNamespaceUri {
		return ElemLiteral
	}
	if t, ok := elementNames[name.Name]; ok {
		return t
	}
	return ElemUnknown
}

func (t ElementType) String() string {
	switch t {
	case ElemUnknown:
		return "<unknown>"
	case ElemLiteral:
		return "literal-result-element"
	default:
		return xsltNamespacePrefix + ":" + elementLabels[t]
	}
}

// Instruction reports whether elements of type t can appear in a template
// body.
func (t ElementType) Instruction() bool {
	switch t {
	case ElemApplyImports, ElemApplyTemplates, ElemAttribute, ElemCallTemplate,
		ElemChoose, ElemComment, ElemCopy, ElemCopyOf, ElemElement, ElemFallback,
		ElemForEach, ElemIf, ElemMessage, ElemNumber, ElemProcessingInstruction,
		ElemText, ElemValueOf, ElemVariable, ElemLiteral:
		return true
	default:
		return false
	}
}

// Declaration reports whether elements of type t can appear as children of
// the stylesheet element.
func (t ElementType) Declaration() bool {
	switch t {
	case ElemAttributeSet, ElemDecimalFormat, ElemImport, ElemInclude, ElemKey,
		ElemNamespaceAlias, ElemOutput, ElemParam, ElemPreserveSpace,
		ElemStripSpace, ElemTemplate, ElemVariable:
		return true
	default:
		return false
	}
}

type AttributeType int8

const (
	AttrUnknown AttributeType = iota
	AttrCaseOrder
	AttrCdataSectionElements
	AttrCount
	AttrDataType
	AttrDecimalSeparator
	AttrDigit
	AttrDisableOutputEscaping
	AttrDoctypePublic
	AttrDoctypeSystem
	AttrElements
	AttrEncoding
	AttrExcludeResultPrefixes
	AttrExtensionElementPrefixes
	AttrFormat
	AttrFrom
	AttrGroupingSeparator
	AttrGroupingSize
	AttrHref
	AttrId
	AttrIndent
	AttrInfinity
	AttrLang
	AttrLetterValue
	AttrLevel
	AttrMatch
	AttrMediaType
	AttrMethod
	AttrMinusSign
	AttrMode
	AttrName
	AttrNamespace
	AttrNaN
	AttrOmitXmlDeclaration
	AttrOrder
	AttrPatternSeparator
	AttrPercent
	AttrPerMille
	AttrPriority
	AttrResultPrefix
	AttrSelect
	AttrStandalone
	AttrStylesheetPrefix
	AttrTerminate
	AttrTest
	AttrUse
	AttrUseAttributeSets
	AttrValue
	AttrVersion
	AttrZeroDigit
	AttrXmlSpace
)

var attributeNames = map[string]AttributeType{
	"case-order":                 AttrCaseOrder,
	"cdata-section-elements":     AttrCdataSectionElements,
	"count":                      AttrCount,
	"data-type":                  AttrDataType,
	"decimal-separator":          AttrDecimalSeparator,
	"digit":                      AttrDigit,
	"disable-output-escaping":    AttrDisableOutputEscaping,
	"doctype-public":             AttrDoctypePublic,
	"doctype-system":             AttrDoctypeSystem,
	"elements":                   AttrElements,
	"encoding":                   AttrEncoding,
	"exclude-result-prefixes":    AttrExcludeResultPrefixes,
	"extension-element-prefixes": AttrExtensionElementPrefixes,
	"format":                     AttrFormat,
	"from":                       AttrFrom,
	"grouping-separator":         AttrGroupingSeparator,
	"grouping-size":              AttrGroupingSize,
	"href":                       AttrHref,
	"id":                         AttrId,
	"indent":                     AttrIndent,
	"infinity":                   AttrInfinity,
	"lang":                       AttrLang,
	"letter-value":               AttrLetterValue,
	"level":                      AttrLevel,
	"match":                      AttrMatch,
	"media-type":                 AttrMediaType,
	"method":                     AttrMethod,
	"minus-sign":                 AttrMinusSign,
	"mode":                       AttrMode,
	"name":                       AttrName,
	"namespace":                  AttrNamespace,
	"NaN":                        AttrNaN,
	"omit-xml-declaration":       AttrOmitXmlDeclaration,
	"order":                      AttrOrder,
	"pattern-separator":          AttrPatternSeparator,
	"percent":                    AttrPercent,
	"per-mille":                  AttrPerMille,
	"priority":                   AttrPriority,
	"result-prefix":              AttrResultPrefix,
	"select":                     AttrSelect,
	"standalone":                 AttrStandalone,
	"stylesheet-prefix":          AttrStylesheetPrefix,
	"terminate":                  AttrTerminate,
	"test":                       AttrTest,
	"use":                        AttrUse,
	"use-attribute-sets":         AttrUseAttributeSets,
	"value":                      AttrValue,
	"version":                    AttrVersion,
	"zero-digit":                 AttrZeroDigit,
}

var attributeLabels = reverseTable(attributeNames)

// ClassifyAttribute maps an attribute name to its type code. Attributes of
// xsl elements are recognized when they have no namespace, attributes of
// literal result elements when they are in the transformation namespace.
func ClassifyAttribute(name xml.QName, literal bool) AttributeType {
	if name.Uri == xml.NamespaceXML && name.Name == "space" {
		return AttrXmlSpace
	}
	if literal && name.Uri != xsltNamespaceUri {
		return AttrUnknown
	}
	if !literal && name.Uri != "" {
		return AttrUnknown
	}
	t, ok := attributeNames[name.Name]
	if !ok {
		return AttrUnknown
	}
	if literal {
		switch t {
		case AttrUseAttributeSets, AttrVersion, AttrExcludeResultPrefixes, AttrExtensionElementPrefixes:
		default:
			return AttrUnknown
		}
	}
	return t
}

func (t AttributeType) String() string {
	switch t {
	case AttrUnknown:
		return "<unknown>"
	case AttrXmlSpace:
		return "xml:space"
	default:
		return attributeLabels[t]
	}
}

// required lists the attributes an element can not do without.
var required = map[ElementType][]AttributeType{
	ElemApplyTemplates:        nil,
	ElemAttribute:             {AttrName},
	ElemAttributeSet:          {AttrName},
	ElemCallTemplate:          {AttrName},
	ElemCopyOf:                {AttrSelect},
	ElemElement:               {AttrName},
	ElemForEach:               {AttrSelect},
	ElemIf:                    {AttrTest},
	ElemImport:                {AttrHref},
	ElemInclude:               {AttrHref},
	ElemKey:                   {AttrName, AttrMatch, AttrUse},
	ElemNamespaceAlias:        {AttrStylesheetPrefix, AttrResultPrefix},
	ElemParam:                 {AttrName},
	ElemPreserveSpace:         {AttrElements},
	ElemProcessingInstruction: {AttrName},
	ElemStripSpace:            {AttrElements},
	ElemStylesheet:            {AttrVersion},
	ElemTransform:             {AttrVersion},
	ElemValueOf:               {AttrSelect},
	ElemVariable:              {AttrName},
	ElemWhen:                  {AttrTest},
	ElemWithParam:             {AttrName},
}

func reverseTable[K comparable, V comparable](table map[K]V) map[V]K {
	list := make(map[V]K, len(table))
	for k, v := range table {
		list[v] = k
	}
	return list
}
