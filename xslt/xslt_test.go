package xslt_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/midbel/angle/resource"
	"github.com/midbel/angle/xml"
	"github.com/midbel/angle/xslt"
)

type TestCase struct {
	Name   string
	Dir    string
	Failed bool
	Params map[string]string
}

func TestConditional(t *testing.T) {
	tests := []TestCase{
		{
			Name: "if/test-true",
			Dir:  "testdata/if-basic-true",
		},
		{
			Name: "if/test-false",
			Dir:  "testdata/if-basic-false",
		},
		{
			Name: "choose/basic",
			Dir:  "testdata/choose-basic",
		},
		{
			Name: "choose/otherwise",
			Dir:  "testdata/choose-otherwise",
		},
	}
	runTest(t, tests)
}

func TestValueOf(t *testing.T) {
	tests := []TestCase{
		{
			Name: "value-of",
			Dir:  "testdata/valueof-basic",
		},
		{
			Name: "value-of/empty",
			Dir:  "testdata/valueof-empty",
		},
		{
			Name:   "value-of/select-error",
			Dir:    "testdata/valueof-errselect",
			Failed: true,
		},
	}
	runTest(t, tests)
}

func TestForEach(t *testing.T) {
	tests := []TestCase{
		{
			Name: "foreach/basic",
			Dir:  "testdata/foreach-basic",
		},
		{
			Name: "foreach/sort",
			Dir:  "testdata/foreach-sort",
		},
	}
	runTest(t, tests)
}

func TestTemplates(t *testing.T) {
	tests := []TestCase{
		{
			Name: "templates/builtin",
			Dir:  "testdata/templates-builtin",
		},
		{
			Name: "templates/mode",
			Dir:  "testdata/templates-mode",
		},
		{
			Name: "templates/call-params",
			Dir:  "testdata/templates-call",
		},
		{
			Name: "templates/priority",
			Dir:  "testdata/templates-priority",
		},
	}
	runTest(t, tests)
}

func TestImports(t *testing.T) {
	tests := []TestCase{
		{
			Name: "import/precedence",
			Dir:  "testdata/import-precedence",
		},
		{
			Name: "import/apply-imports",
			Dir:  "testdata/import-apply",
		},
		{
			Name: "include/basic",
			Dir:  "testdata/include-basic",
		},
		{
			Name:   "import/recursive",
			Dir:    "testdata/import-recursive",
			Failed: true,
		},
	}
	runTest(t, tests)
}

func TestParams(t *testing.T) {
	tests := []TestCase{
		{
			Name: "param/default",
			Dir:  "testdata/param-global",
		},
		{
			Name:   "param/override",
			Dir:    "testdata/param-override",
			Params: map[string]string{"greeting": "bonjour"},
		},
	}
	runTest(t, tests)
}

func TestConstruct(t *testing.T) {
	tests := []TestCase{
		{
			Name: "construct/element-attribute",
			Dir:  "testdata/construct-element",
		},
		{
			Name: "construct/attribute-set",
			Dir:  "testdata/construct-attribute-set",
		},
		{
			Name: "construct/copy-of",
			Dir:  "testdata/construct-copyof",
		},
		{
			Name: "construct/simplified",
			Dir:  "testdata/simplified",
		},
	}
	runTest(t, tests)
}

func TestNumbering(t *testing.T) {
	tests := []TestCase{
		{
			Name: "number/single",
			Dir:  "testdata/number-single",
		},
		{
			Name: "number/multiple",
			Dir:  "testdata/number-multiple",
		},
		{
			Name: "keys/basic",
			Dir:  "testdata/keys-basic",
		},
	}
	runTest(t, tests)
}

func runTest(t *testing.T, tests []TestCase) {
	t.Helper()
	for _, tt := range tests {
		t.Run(tt.Name, executeTest(tt))
	}
}

func executeTest(tt TestCase) func(*testing.T) {
	return func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		proc := xslt.NewProcessor(resource.File())
		doc, err := proc.Load(ctx, filepath.Join(tt.Dir, "doc.xml"))
		require.NoError(t, err, "loading document")

		sheet, err := proc.Compile(ctx, filepath.Join(tt.Dir, "transform.xslt"))
		if err != nil {
			if tt.Failed {
				return
			}
			require.NoError(t, err, "compiling stylesheet")
		}
		var str bytes.Buffer
		err = sheet.Transform(ctx, doc, tt.Params, &str)
		if tt.Failed {
			assert.Error(t, err, "transformation should have failed")
			return
		}
		require.NoError(t, err, "executing transform")
		compareBytes(t, filepath.Join(tt.Dir, "result.xml"), str.Bytes())
	}
}

func compareBytes(t *testing.T, file string, got []byte) {
	t.Helper()
	want, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.Equal(t, normalizeDoc(want), normalizeDoc(got))
}

// normalizeDoc rewrites doc without the blank text nodes the indentation of
// the expected result introduces.
func normalizeDoc(doc []byte) string {
	x, err := xml.ParseString(string(doc))
	if err != nil {
		return strings.TrimSpace(string(doc))
	}
	stripBlank(x)

	var buf bytes.Buffer
	w := xml.NewWriter(&buf)
	w.WriterOptions |= xml.OptionCompact | xml.OptionNoProlog
	if err := w.Write(x); err != nil {
		return string(doc)
	}
	return buf.String()
}

func stripBlank(n xml.Node) {
	switch n := n.(type) {
	case *xml.Document:
		n.Nodes = stripNodes(n.Nodes)
	case *xml.Element:
		n.Nodes = stripNodes(n.Nodes)
	}
}

func stripNodes(nodes []xml.Node) []xml.Node {
	var list []xml.Node
	for _, c := range nodes {
		if t, ok := c.(*xml.Text); ok && xml.IsBlank(t.Content) {
			continue
		}
		stripBlank(c)
		list = append(list, c)
	}
	return list
}
