package xslt

import (
	"github.com/midbel/angle/xml"
	"github.com/midbel/angle/xpath"
)

type LookupStatus int8

const (
	LookupFinished LookupStatus = iota
	LookupBlocked
	LookupFailed
)

func (s LookupStatus) String() string {
	switch s {
	case LookupFinished:
		return "finished"
	case LookupBlocked:
		return "blocked"
	case LookupFailed:
		return "failed"
	default:
		return "<unknown>"
	}
}

type keyEntry struct {
	match *xpath.Pattern
	use   *xpath.Query
}

type keyTableID struct {
	name string
	root xml.Node
}

type keyTable struct {
	buckets  map[string][]xml.Node
	indexed  map[xml.Node]struct{}
	complete bool
}

// KeyIndex holds the key declarations of a stylesheet and the tables built
// from them, one per key name and tree.
type KeyIndex struct {
	entries map[string][]keyEntry
	names   map[string]xml.QName
	tables  map[keyTableID]*keyTable

	metrics *Metrics
}

func NewKeyIndex() *KeyIndex {
	return &KeyIndex{
		entries: make(map[string][]keyEntry),
		names:   make(map[string]xml.QName),
		tables:  make(map[keyTableID]*keyTable),
	}
}

// RegisterKey adds an entry to the key name. Entries sharing a name are
// tried in registration order.
func (k *KeyIndex) RegisterKey(name xml.QName, match *xpath.Pattern, use *xpath.Query) {
	id := name.ExpandedName()
	k.names[id] = name
	k.entries[id] = append(k.entries[id], keyEntry{
		match: match,
		use:   use,
	})
}

func (k *KeyIndex) Defined(name xml.QName) bool {
	_, ok := k.entries[name.ExpandedName()]
	return ok
}

// Names lists the qualified names of the declared keys.
func (k *KeyIndex) Names() []string {
	var list []string
	for _, n := range k.names {
		list = append(list, n.QualifiedName())
	}
	return list
}

// Fork gives an index sharing the declarations of k with empty tables, so
// that each transformation builds its own.
func (k *KeyIndex) Fork() *KeyIndex {
	return &KeyIndex{
		entries: k.entries,
		names:   k.names,
		tables:  make(map[keyTableID]*keyTable),
		metrics: k.metrics,
	}
}

// Reset drops the tables built during a transformation.
func (k *KeyIndex) Reset() {
	clear(k.tables)
}

// Lookup finds the nodes of the tree containing node whose key name has the
// given value. When the tree is still being loaded, the nodes already
// available are indexed and LookupBlocked is returned: the caller has to
// wait for the tree to be complete and try again. Nodes are indexed once.
func (k *KeyIndex) Lookup(name xml.QName, node xml.Node, value string, env xpath.Environment) ([]xml.Node, LookupStatus, error) {
	entries, ok := k.entries[name.ExpandedName()]
	if !ok {
		return nil, LookupFailed, errorWithHint(name.QualifiedName(), ErrUnresolved, k.Names())
	}
	root := xml.Root(node)
	id := keyTableID{
		name: name.ExpandedName(),
		root: root,
	}
	tbl, ok := k.tables[id]
	if !ok {
		tbl = &keyTable{
			buckets: make(map[string][]xml.Node),
			indexed: make(map[xml.Node]struct{}),
		}
		k.tables[id] = tbl
		k.metrics.keyTable()
	}
	if !tbl.complete {
		var (
			doc, _   = root.(*xml.Document)
			finished = doc == nil || doc.Finished()
			open     = openNodes(doc, finished)
		)
		if err := tbl.index(root, entries, open, env); err != nil {
			return nil, LookupFailed, err
		}
		if !finished {
			return nil, LookupBlocked, nil
		}
		tbl.complete = true
		tbl.indexed = nil
		for v, list := range tbl.buckets {
			tbl.buckets[v] = xml.SortUnique(list)
		}
	}
	return tbl.buckets[value], LookupFinished, nil
}

// openNodes gives the nodes of a tree still receiving children: the
// document and the last element of each level below it.
func openNodes(doc *xml.Document, finished bool) map[xml.Node]struct{} {
	if finished || doc == nil {
		return nil
	}
	var (
		list = make(map[xml.Node]struct{})
		curr xml.Node = doc
	)
	list[doc] = struct{}{}
	for {
		nodes := xml.Children(curr)
		if len(nodes) == 0 {
			break
		}
		last, ok := nodes[len(nodes)-1].(*xml.Element)
		if !ok {
			break
		}
		list[last] = struct{}{}
		curr = last
	}
	return list
}

func (t *keyTable) index(node xml.Node, entries []keyEntry, open map[xml.Node]struct{}, env xpath.Environment) error {
	if _, ok := open[node]; !ok {
		if err := t.indexNode(node, entries, env); err != nil {
			return err
		}
	}
	if el, ok := node.(*xml.Element); ok {
		for _, a := range el.Attributes() {
			if err := t.indexNode(a, entries, env); err != nil {
				return err
			}
		}
	}
	for _, c := range xml.Children(node) {
		if err := t.index(c, entries, open, env); err != nil {
			return err
		}
	}
	return nil
}

func (t *keyTable) indexNode(node xml.Node, entries []keyEntry, env xpath.Environment) error {
	if _, ok := t.indexed[node]; ok {
		return nil
	}
	t.indexed[node] = struct{}{}
	for _, e := range entries {
		ok, err := e.match.Match(node, env)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		ctx := xpath.Context{
			Node:     node,
			Position: 1,
			Size:     1,
			Env:      env,
		}
		seq, err := e.use.Eval(ctx)
		if err != nil {
			return err
		}
		if seq.NodeSet() {
			nodes, _ := seq.Nodes()
			for _, n := range nodes {
				t.add(xpath.StringValue(n), node)
			}
			continue
		}
		t.add(xpath.AsString(seq), node)
	}
	return nil
}

func (t *keyTable) add(value string, node xml.Node) {
	t.buckets[value] = append(t.buckets[value], node)
}
