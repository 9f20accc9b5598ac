package xslt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/midbel/angle/xml"
	"github.com/midbel/angle/xpath"
)

func TestAVT(t *testing.T) {
	doc, err := xml.ParseString(`<item id="42" name="box"/>`)
	require.NoError(t, err)
	ctx := xpath.DefaultContext(doc.Root())

	tests := []struct {
		Input string
		Want  string
	}{
		{Input: "plain", Want: "plain"},
		{Input: "item-{@id}", Want: "item-42"},
		{Input: "{@name}/{@id}", Want: "box/42"},
		{Input: "{{literal}}", Want: "{literal}"},
		{Input: "{concat('}', @id)}", Want: "}42"},
		{Input: "", Want: ""},
	}
	for _, c := range tests {
		avt, err := compileAVT(c.Input, nil)
		require.NoError(t, err, c.Input)
		got, err := avt.Eval(ctx)
		require.NoError(t, err, c.Input)
		assert.Equal(t, c.Want, got, c.Input)
	}
}

func TestAVTLiteral(t *testing.T) {
	avt, err := compileAVT("a{{b}}", nil)
	require.NoError(t, err)
	str, ok := avt.Literal()
	assert.True(t, ok)
	assert.Equal(t, "a{b}", str)

	avt, err = compileAVT("a{@b}", nil)
	require.NoError(t, err)
	_, ok = avt.Literal()
	assert.False(t, ok)
}

func TestAVTInvalid(t *testing.T) {
	for _, str := range []string{"{", "}", "a{}", "{@a", "{{@a}"} {
		_, err := compileAVT(str, nil)
		assert.Error(t, err, str)
	}
}
