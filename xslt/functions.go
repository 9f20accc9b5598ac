package xslt

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/midbel/angle/resource"
	"github.com/midbel/angle/xml"
	"github.com/midbel/angle/xpath"
)

type extensionFunc func(evalEnv, xpath.Context, []xpath.Sequence) (xpath.Sequence, error)

type extension struct {
	min  int
	max  int
	call extensionFunc
}

var (
	extensions      map[string]extension
	exsltExtensions map[string]extension
)

func init() {
	extensions = map[string]extension{
		"current":             {min: 0, max: 0, call: evalEnv.current},
		"key":                 {min: 2, max: 2, call: evalEnv.key},
		"document":            {min: 1, max: 2, call: evalEnv.document},
		"generate-id":         {min: 0, max: 1, call: evalEnv.generateId},
		"system-property":     {min: 1, max: 1, call: evalEnv.systemProperty},
		"element-available":   {min: 1, max: 1, call: evalEnv.elementAvailable},
		"function-available":  {min: 1, max: 1, call: evalEnv.functionAvailable},
		"unparsed-entity-uri": {min: 1, max: 1, call: evalEnv.unparsedEntityUri},
		"format-number":       {min: 2, max: 3, call: evalEnv.formatNumber},
	}
	exsltExtensions = map[string]extension{
		"node-set": {min: 1, max: 1, call: evalEnv.nodeSet},
	}
}

// current gives the node being processed by the template or the
// xsl:for-each, not the context node of the expression.
func (e evalEnv) current(_ xpath.Context, _ []xpath.Sequence) (xpath.Sequence, error) {
	if e.f == nil || e.f.node == nil {
		return xpath.NewSequence(), nil
	}
	return xpath.Singleton(e.f.node), nil
}

func stringValues(seq xpath.Sequence) []string {
	if !seq.NodeSet() {
		return []string{xpath.AsString(seq)}
	}
	var list []string
	for _, i := range seq {
		list = append(list, xpath.StringValue(i.Node()))
	}
	return list
}

func (e evalEnv) key(ctx xpath.Context, args []xpath.Sequence) (xpath.Sequence, error) {
	name, err := e.resolveName(xpath.AsString(args[0]))
	if err != nil {
		return nil, fmt.Errorf("key: %w", err)
	}
	if ctx.Node == nil {
		return nil, xpath.ErrContext
	}
	var list []xml.Node
	for _, v := range stringValues(args[1]) {
		nodes, status, err := e.t.keys.Lookup(name, ctx.Node, v, e)
		switch status {
		case LookupFailed:
			return nil, err
		case LookupBlocked:
			doc := xml.OwnerDocument(ctx.Node)
			return nil, &BlockedError{
				Resource: fmt.Sprintf("key(%s)", name.QualifiedName()),
				Wait:     doc.Notify,
			}
		}
		list = append(list, nodes...)
	}
	return xpath.NodeSet(xml.SortUnique(list)), nil
}

// document loads the documents referenced by its first argument. Relative
// references found in nodes are resolved against the document of the node,
// strings against the stylesheet module, unless a second argument gives
// the base.
func (e evalEnv) document(_ xpath.Context, args []xpath.Sequence) (xpath.Sequence, error) {
	type reference struct {
		uri  string
		base string
	}
	var (
		refs  []reference
		base  string
		fixed bool
	)
	if len(args) == 2 {
		nodes, err := args[1].Nodes()
		if err != nil {
			return nil, fmt.Errorf("document: node-set expected: %w", xpath.ErrType)
		}
		if len(nodes) > 0 {
			base, fixed = documentURL(xml.SortUnique(nodes)[0]), true
		}
	}
	if args[0].NodeSet() {
		for _, i := range args[0] {
			ref := reference{
				uri:  xpath.StringValue(i.Node()),
				base: base,
			}
			if !fixed {
				ref.base = documentURL(i.Node())
			}
			refs = append(refs, ref)
		}
	} else {
		ref := reference{
			uri:  xpath.AsString(args[0]),
			base: base,
		}
		if !fixed {
			ref.base = e.baseURL()
		}
		refs = append(refs, ref)
	}
	var list []xml.Node
	for _, r := range refs {
		url, frag := resource.Fragment(resource.Resolve(r.base, r.uri))
		doc, err := e.t.loadDocument(url)
		if err != nil {
			return nil, err
		}
		if doc == nil {
			continue
		}
		if frag == "" {
			list = append(list, doc)
		} else if n := doc.GetElementById(frag); n != nil {
			list = append(list, n)
		}
	}
	return xpath.NodeSet(xml.SortUnique(list)), nil
}

func documentURL(n xml.Node) string {
	if doc := xml.OwnerDocument(n); doc != nil {
		return doc.URL
	}
	return ""
}

// generateId gives an identifier unique to the node within the
// transformation. It is derived from a random namespace and the order in
// which nodes are first asked for.
func (e evalEnv) generateId(ctx xpath.Context, args []xpath.Sequence) (xpath.Sequence, error) {
	node := ctx.Node
	if len(args) == 1 {
		nodes, err := args[0].Nodes()
		if err != nil {
			return nil, fmt.Errorf("generate-id: node-set expected: %w", xpath.ErrType)
		}
		if len(nodes) == 0 {
			return xpath.Singleton(""), nil
		}
		node = xml.SortUnique(nodes)[0]
	}
	if node == nil {
		return nil, xpath.ErrContext
	}
	return xpath.Singleton(e.t.generateId(node)), nil
}

func (t *Transformation) generateId(node xml.Node) string {
	if id, ok := t.ids[node]; ok {
		return id
	}
	u := uuid.NewSHA1(t.idSpace, fmt.Appendf(nil, "%d", len(t.ids)))
	id := "id" + strings.ReplaceAll(u.String(), "-", "")
	t.ids[node] = id
	return id
}

func (e evalEnv) systemProperty(_ xpath.Context, args []xpath.Sequence) (xpath.Sequence, error) {
	name, err := e.resolveName(xpath.AsString(args[0]))
	if err != nil {
		return nil, fmt.Errorf("system-property: %w", err)
	}
	return systemProperty(name), nil
}

func (e evalEnv) elementAvailable(_ xpath.Context, args []xpath.Sequence) (xpath.Sequence, error) {
	str := strings.TrimSpace(xpath.AsString(args[0]))
	qn, err := xml.ParseName(str)
	if err != nil {
		return nil, fmt.Errorf("element-available: %s: %w", str, ErrInvalidName)
	}
	uri, ok := e.namespaces().ResolvePrefix(qn.Space)
	if !ok {
		return nil, fmt.Errorf("element-available: %s: %w", qn.Space, ErrUndeclaredPrefix)
	}
	qn.Uri = uri
	return xpath.Singleton(elementAvailable(qn)), nil
}

func (e evalEnv) functionAvailable(_ xpath.Context, args []xpath.Sequence) (xpath.Sequence, error) {
	name, err := e.resolveName(xpath.AsString(args[0]))
	if err != nil {
		return nil, fmt.Errorf("function-available: %w", err)
	}
	return xpath.Singleton(functionAvailable(name)), nil
}

func (e evalEnv) unparsedEntityUri(ctx xpath.Context, args []xpath.Sequence) (xpath.Sequence, error) {
	if ctx.Node == nil {
		return nil, xpath.ErrContext
	}
	doc := xml.OwnerDocument(ctx.Node)
	if doc == nil {
		return xpath.Singleton(""), nil
	}
	return xpath.Singleton(doc.Entities[xpath.AsString(args[0])]), nil
}

func (e evalEnv) formatNumber(_ xpath.Context, args []xpath.Sequence) (xpath.Sequence, error) {
	var name xml.QName
	if len(args) == 3 {
		qn, err := e.resolveName(xpath.AsString(args[2]))
		if err != nil {
			return nil, fmt.Errorf("format-number: %w", err)
		}
		name = qn
	}
	df, err := e.t.sheet.DecimalFormat(name)
	if err != nil {
		return nil, err
	}
	str, err := FormatNumber(xpath.AsNumber(args[0]), xpath.AsString(args[1]), df)
	if err != nil {
		return nil, fmt.Errorf("format-number: %w", err)
	}
	return xpath.Singleton(str), nil
}

// nodeSet turns a result tree fragment into a node-set. Fragments already
// are node-sets; other values become a text node.
func (e evalEnv) nodeSet(_ xpath.Context, args []xpath.Sequence) (xpath.Sequence, error) {
	if args[0].NodeSet() {
		return args[0], nil
	}
	doc := xml.NewDocument("")
	doc.Append(xml.NewText(xpath.AsString(args[0])))
	doc.Finish()
	return xpath.NodeSet(doc.Nodes), nil
}

// loadedDoc collects the tree of a document requested by document().
type loadedDoc struct {
	*xml.Builder
	url      string
	err      error
	done     bool
	stripped bool
	waiters  []func()
}

func (d *loadedDoc) EndEntity() error {
	err := d.Builder.EndEntity()
	if doc := d.Document(); doc != nil && doc.Finished() {
		d.release()
	}
	return err
}

func (d *loadedDoc) LoadFailed(_ string, err error) {
	d.err = err
	d.release()
}

func (d *loadedDoc) release() {
	if d.done {
		return
	}
	d.done = true
	ws := d.waiters
	d.waiters = nil
	for _, fn := range ws {
		fn()
	}
}

func (d *loadedDoc) wait(fn func()) {
	if d.done {
		fn()
		return
	}
	d.waiters = append(d.waiters, fn)
}

// loadDocument gives the tree of url once it is completely loaded. A
// document that can not be loaded is reported as a warning and gives no
// node.
func (t *Transformation) loadDocument(url string) (*xml.Document, error) {
	d, ok := t.docs[url]
	if !ok {
		d = &loadedDoc{
			Builder: xml.NewBuilder(),
			url:     url,
		}
		t.docs[url] = d
		if t.loader == nil {
			d.LoadFailed(url, fmt.Errorf("%s: no loader: %w", url, resource.ErrRejected))
		} else {
			switch t.loader.LoadResource(resource.KindDocument, url, d) {
			case resource.StatusRejected:
				d.LoadFailed(url, fmt.Errorf("%s: %w", url, resource.ErrRejected))
			case resource.StatusOOM:
				d.LoadFailed(url, fmt.Errorf("%s: %w", url, ErrExhausted))
			}
		}
	}
	if d.err != nil {
		if errors.Is(d.err, ErrExhausted) {
			return nil, d.err
		}
		if !d.stripped {
			d.stripped = true
			t.diag.Warning(d.err.Error(), "document()", url)
		}
		return nil, nil
	}
	if !d.done {
		return nil, &BlockedError{
			Resource: url,
			Wait:     d.wait,
		}
	}
	doc := d.Document()
	if !d.stripped {
		d.stripped = true
		t.sheet.space.Strip(doc)
	}
	return doc, nil
}
