package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseParams(t *testing.T) {
	ps, err := ParseParams([]string{"title=Report", "empty=", "expr=a=b"})
	require.NoError(t, err)
	assert.Equal(t, Params{"title": "Report", "empty": "", "expr": "a=b"}, ps)
	assert.Equal(t, "empty=,expr=a=b,title=Report", ps.String())

	_, err = ParseParams([]string{"title"})
	assert.ErrorIs(t, err, ErrParam)

	_, err = ParseParams([]string{"=value"})
	assert.ErrorIs(t, err, ErrParam)
}

func TestLoadParams(t *testing.T) {
	want := Params{
		"title": "Report",
		"count": "3",
		"ratio": "0.5",
		"draft": "true",
	}
	for _, file := range []string{"testdata/params.yaml", "testdata/params.toml"} {
		t.Run(file, func(t *testing.T) {
			ps, err := LoadParams(file)
			require.NoError(t, err)
			assert.Equal(t, want, ps)
		})
	}
}

func TestLoadParamsErrors(t *testing.T) {
	_, err := LoadParams("testdata/nested.yaml")
	assert.ErrorIs(t, err, ErrParam)

	_, err = LoadParams("testdata/params.json")
	assert.Error(t, err)
}

func TestParamsMerge(t *testing.T) {
	ps := Params{"a": "1", "b": "2"}
	ps.Merge(Params{"b": "3", "c": "4"})
	assert.Equal(t, Params{"a": "1", "b": "3", "c": "4"}, ps)
}
