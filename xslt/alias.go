package xslt

import (
	"github.com/midbel/angle/xml"
)

// namespaceAlias maps the namespace of literal result elements from the
// stylesheet uri to the result uri and prefix.
type namespaceAlias struct {
	stylesheetUri string
	resultUri     string
	resultPrefix  string
}

type aliasList []namespaceAlias

func (a aliasList) lookup(uri string) (namespaceAlias, bool) {
	for _, al := range a {
		if al.stylesheetUri == uri {
			return al, true
		}
	}
	return namespaceAlias{}, false
}

// Rename applies the first alias declared for the namespace of name.
func (a aliasList) Rename(name xml.QName) xml.QName {
	al, ok := a.lookup(name.Uri)
	if !ok {
		return name
	}
	name.Uri = al.resultUri
	name.Space = al.resultPrefix
	return name
}

// RenameNS applies the aliases to a namespace node copied from the
// stylesheet.
func (a aliasList) RenameNS(ns xml.NS) xml.NS {
	al, ok := a.lookup(ns.Uri)
	if !ok {
		return ns
	}
	return xml.NS{
		Prefix: al.resultPrefix,
		Uri:    al.resultUri,
	}
}

func parseAlias(c *Construct) (namespaceAlias, error) {
	var (
		style, _  = c.Attr(AttrStylesheetPrefix)
		result, _ = c.Attr(AttrResultPrefix)
		al        namespaceAlias
		ok        bool
	)
	if style == "#default" {
		style = ""
	}
	if result == "#default" {
		result = ""
	}
	if al.stylesheetUri, ok = c.NS.ResolvePrefix(style); !ok {
		return al, ErrUndeclaredPrefix
	}
	if al.resultUri, ok = c.NS.ResolvePrefix(result); !ok {
		return al, ErrUndeclaredPrefix
	}
	al.resultPrefix = result
	return al, nil
}
