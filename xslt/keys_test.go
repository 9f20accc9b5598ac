package xslt

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/midbel/angle/xml"
	"github.com/midbel/angle/xpath"
)

func createKeyIndex(t *testing.T, name, match, use string) *KeyIndex {
	t.Helper()
	pat, err := xpath.CompilePattern(match, nil)
	require.NoError(t, err)
	q, err := xpath.Compile(use, nil)
	require.NoError(t, err)

	idx := NewKeyIndex()
	idx.RegisterKey(xml.LocalName(name), pat, q)
	return idx
}

const keyDocument = `<?xml version="1.0"?>
<catalog>
	<item ref="a">first</item>
	<item ref="b">second</item>
	<item ref="a">third</item>
</catalog>`

func TestKeyLookup(t *testing.T) {
	doc, err := xml.ParseString(keyDocument)
	require.NoError(t, err)

	idx := createKeyIndex(t, "items", "item", "@ref")
	nodes, status, err := idx.Lookup(xml.LocalName("items"), doc, "a", nil)
	require.NoError(t, err)
	assert.Equal(t, LookupFinished, status)
	require.Len(t, nodes, 2)
	assert.Equal(t, "first", nodes[0].Value())
	assert.Equal(t, "third", nodes[1].Value())

	nodes, status, err = idx.Lookup(xml.LocalName("items"), doc, "z", nil)
	require.NoError(t, err)
	assert.Equal(t, LookupFinished, status)
	assert.Empty(t, nodes)
}

func TestKeyLookupUndefined(t *testing.T) {
	doc, err := xml.ParseString(keyDocument)
	require.NoError(t, err)

	idx := createKeyIndex(t, "items", "item", "@ref")
	_, status, err := idx.Lookup(xml.LocalName("itms"), doc, "a", nil)
	assert.Equal(t, LookupFailed, status)
	assert.ErrorIs(t, err, ErrUnresolved)
	assert.Contains(t, err.Error(), "items")
}

// stepBuilder feeds a document to a builder one token at a time.
func stepBuilder(t *testing.T, str string) (*xml.Tokenizer, *xml.Builder) {
	t.Helper()
	var (
		tok = xml.NewTokenizer(strings.NewReader(str), "memory://doc.xml")
		b   = xml.NewBuilder()
	)
	return tok, b
}

func TestKeyLookupBlocked(t *testing.T) {
	tok, b := stepBuilder(t, keyDocument)

	var doc *xml.Document
	for doc == nil || len(doc.Root().(*xml.Element).Nodes) < 4 {
		_, err := tok.Step(b, 1)
		require.NoError(t, err)
		doc = b.Document()
		if doc != nil && doc.Root() == nil {
			doc = nil
		}
	}
	require.False(t, doc.Finished())

	idx := createKeyIndex(t, "items", "item", "@ref")
	_, status, err := idx.Lookup(xml.LocalName("items"), doc, "a", nil)
	require.NoError(t, err)
	assert.Equal(t, LookupBlocked, status)

	tbl := idx.tables[keyTableID{name: "items", root: doc}]
	require.NotNil(t, tbl)
	indexed := len(tbl.indexed)
	assert.NotZero(t, indexed)

	var notified bool
	doc.Notify(func() {
		notified = true
	})
	for !doc.Finished() {
		_, err := tok.Step(b, 16)
		require.NoError(t, err)
	}
	assert.True(t, notified)

	nodes, status, err := idx.Lookup(xml.LocalName("items"), doc, "a", nil)
	require.NoError(t, err)
	assert.Equal(t, LookupFinished, status)
	require.Len(t, nodes, 2)
	assert.Equal(t, "first", nodes[0].Value())
	assert.Equal(t, "third", nodes[1].Value())
	assert.True(t, tbl.complete)
}

func TestKeyLookupIndexedOnce(t *testing.T) {
	const str = `<catalog><item ref="a">first</item><item ref="b">second</item><item ref="a">third</item><tail/></catalog>`
	tok, b := stepBuilder(t, str)

	stepUntil := func(count int) *xml.Document {
		for {
			doc := b.Document()
			if doc != nil && doc.Root() != nil && len(doc.Root().(*xml.Element).Nodes) >= count {
				return doc
			}
			_, err := tok.Step(b, 1)
			require.NoError(t, err)
		}
	}
	idx := createKeyIndex(t, "items", "item", "@ref")

	doc := stepUntil(2)
	_, status, err := idx.Lookup(xml.LocalName("items"), doc, "a", nil)
	require.NoError(t, err)
	assert.Equal(t, LookupBlocked, status)

	tbl := idx.tables[keyTableID{name: "items", root: doc}]
	require.NotNil(t, tbl)
	assert.Len(t, tbl.buckets["a"], 1)

	doc = stepUntil(4)
	require.False(t, doc.Finished())
	_, status, err = idx.Lookup(xml.LocalName("items"), doc, "a", nil)
	require.NoError(t, err)
	assert.Equal(t, LookupBlocked, status)
	assert.Len(t, tbl.buckets["a"], 2, "nodes indexed before blocking are indexed again")
	assert.Len(t, tbl.buckets["b"], 1)

	for !doc.Finished() {
		_, err := tok.Step(b, 16)
		require.NoError(t, err)
	}
	nodes, status, err := idx.Lookup(xml.LocalName("items"), doc, "a", nil)
	require.NoError(t, err)
	assert.Equal(t, LookupFinished, status)
	require.Len(t, nodes, 2)
	assert.Equal(t, "third", nodes[1].Value())
}

func TestKeyLookupNodeSetUse(t *testing.T) {
	doc, err := xml.ParseString(`<root><book><author>x</author><author>y</author></book><book><author>y</author></book></root>`)
	require.NoError(t, err)

	idx := createKeyIndex(t, "by-author", "book", "author")
	nodes, _, err := idx.Lookup(xml.LocalName("by-author"), doc, "y", nil)
	require.NoError(t, err)
	assert.Len(t, nodes, 2)

	nodes, _, err = idx.Lookup(xml.LocalName("by-author"), doc, "x", nil)
	require.NoError(t, err)
	assert.Len(t, nodes, 1)
}
