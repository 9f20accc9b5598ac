package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/midbel/angle/xslt"
)

func TestNamespaces(t *testing.T) {
	var ns namespaces
	require.NoError(t, ns.Set("x=urn:x"))
	require.NoError(t, ns.Set("y=urn:y"))
	assert.Error(t, ns.Set("urn:z"))
	assert.Error(t, ns.Set("=urn:z"))

	uri, ok := ns.ResolvePrefix("x")
	assert.True(t, ok)
	assert.Equal(t, "urn:x", uri)

	_, ok = ns.ResolvePrefix("z")
	assert.False(t, ok)

	_, ok = ns.ResolvePrefix("")
	assert.True(t, ok)
}

func TestOutputName(t *testing.T) {
	tests := []struct {
		Method xslt.OutputMethod
		Want   string
	}{
		{Method: xslt.MethodXML, Want: "doc.xml"},
		{Method: xslt.MethodHTML, Want: "doc.html"},
		{Method: xslt.MethodText, Want: "doc.txt"},
		{Method: xslt.MethodUnknown, Want: "doc.xml"},
	}
	for _, tt := range tests {
		got := outputName("out", "in/doc.xml", &xslt.Output{Method: tt.Method})
		assert.Equal(t, filepath.Join("out", tt.Want), got)
	}
}

func TestExpandInputs(t *testing.T) {
	dir := t.TempDir()
	for _, f := range []string{"a.xml", "b.xml", "sub/c.xml", "sub/d.txt"} {
		file := filepath.Join(dir, f)
		require.NoError(t, os.MkdirAll(filepath.Dir(file), 0o755))
		require.NoError(t, os.WriteFile(file, []byte("<root/>"), 0o644))
	}
	files, err := expandInputs([]string{filepath.Join(dir, "**", "*.xml")})
	require.NoError(t, err)
	assert.Len(t, files, 3)

	files, err = expandInputs([]string{"plain.xml"})
	require.NoError(t, err)
	assert.Equal(t, []string{"plain.xml"}, files)

	_, err = expandInputs([]string{filepath.Join(dir, "*.json")})
	assert.Error(t, err)
}

func TestEngineParams(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "params.yaml")
	require.NoError(t, os.WriteFile(file, []byte("name: file\ncount: 2\n"), 0o644))

	var opts EngineOptions
	opts.Params = map[string]string{"name": "flag"}
	opts.ParamFile = file

	params, err := opts.params()
	require.NoError(t, err)
	assert.Equal(t, "flag", params["name"])
	assert.Equal(t, "2", params["count"])
}
