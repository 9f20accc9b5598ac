package xslt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/midbel/angle/xml"
	"github.com/midbel/angle/xpath"
)

func sortValues(t *testing.T, doc string, keys ...sortKey) []string {
	t.Helper()
	tree, err := xml.ParseString(doc)
	require.NoError(t, err)
	nodes := xml.Children(tree.Root())

	list, err := sortNodes(nodes, keys, xpath.DefaultContext(tree.Root()))
	require.NoError(t, err)

	var values []string
	for _, n := range list {
		values = append(values, n.Value())
	}
	return values
}

func mustQuery(t *testing.T, str string) *xpath.Query {
	t.Helper()
	q, err := xpath.Compile(str, nil)
	require.NoError(t, err)
	return q
}

func mustAVT(t *testing.T, str string) *AVT {
	t.Helper()
	avt, err := compileAVT(str, nil)
	require.NoError(t, err)
	return avt
}

func TestSortText(t *testing.T) {
	doc := `<r><v>pear</v><v>Apple</v><v>banana</v><v>apple</v></r>`
	got := sortValues(t, doc, sortKey{selector: mustQuery(t, ".")})
	assert.Equal(t, []string{"apple", "Apple", "banana", "pear"}, got)

	got = sortValues(t, doc, sortKey{
		selector:  mustQuery(t, "."),
		caseOrder: mustAVT(t, "upper-first"),
	})
	assert.Equal(t, []string{"Apple", "apple", "banana", "pear"}, got)

	got = sortValues(t, doc, sortKey{
		selector: mustQuery(t, "."),
		order:    mustAVT(t, "descending"),
	})
	assert.Equal(t, []string{"pear", "banana", "Apple", "apple"}, got)
}

func TestSortNumber(t *testing.T) {
	doc := `<r><v>10</v><v>9</v><v>x</v><v>100</v></r>`
	got := sortValues(t, doc, sortKey{
		selector: mustQuery(t, "."),
		dataType: mustAVT(t, "number"),
	})
	assert.Equal(t, []string{"x", "9", "10", "100"}, got)
}

func TestSortStable(t *testing.T) {
	doc := `<r><v k="b">1</v><v k="a">2</v><v k="b">3</v><v k="a">4</v></r>`
	got := sortValues(t, doc, sortKey{selector: mustQuery(t, "@k")})
	assert.Equal(t, []string{"2", "4", "1", "3"}, got)
}

func TestSortInvalid(t *testing.T) {
	tree, err := xml.ParseString(`<r><v>1</v><v>2</v></r>`)
	require.NoError(t, err)
	key := sortKey{
		selector: mustQuery(t, "."),
		order:    mustAVT(t, "upward"),
	}
	_, err = sortNodes(xml.Children(tree.Root()), []sortKey{key}, xpath.DefaultContext(tree.Root()))
	assert.ErrorIs(t, err, ErrInvalidValue)
}
