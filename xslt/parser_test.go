package xslt

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/midbel/angle/xml"
)

func TestParserRecursiveImport(t *testing.T) {
	files := map[string]string{
		"mem:///main.xsl": stylesheetHeader + `
  <xsl:import href="a.xsl"/>
</xsl:stylesheet>`,
		"mem:///a.xsl": stylesheetHeader + `
  <xsl:import href="main.xsl"/>
</xsl:stylesheet>`,
	}
	_, err := compileMemory(t, files)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRecursiveImport)

	var cerr *ConstructError
	require.True(t, errors.As(err, &cerr))
	assert.Equal(t, "mem:///a.xsl", cerr.URL)
}

func TestParserSelfInclude(t *testing.T) {
	tests := []string{
		`<xsl:include href="main.xsl"/>`,
		`<xsl:import href="main.xsl"/>`,
	}
	for _, directive := range tests {
		files := map[string]string{
			"mem:///main.xsl": stylesheetHeader + directive + `
</xsl:stylesheet>`,
		}
		_, err := compileMemory(t, files)
		require.Error(t, err, directive)
		assert.ErrorIs(t, err, ErrRecursiveImport, directive)
	}
}

func TestParserImportPrecedence(t *testing.T) {
	files := map[string]string{
		"mem:///main.xsl": stylesheetHeader + `
  <xsl:import href="a.xsl"/>
  <xsl:import href="b.xsl"/>
  <xsl:include href="c.xsl"/>
</xsl:stylesheet>`,
		"mem:///a.xsl": stylesheetHeader + `
  <xsl:import href="d.xsl"/>
</xsl:stylesheet>`,
		"mem:///b.xsl": stylesheetHeader + `</xsl:stylesheet>`,
		"mem:///c.xsl": stylesheetHeader + `</xsl:stylesheet>`,
		"mem:///d.xsl": stylesheetHeader + `</xsl:stylesheet>`,
	}
	sheet, err := compileMemory(t, files)
	require.NoError(t, err)

	prec := make(map[string]int)
	for _, imp := range sheet.Imports() {
		prec[imp.URL] = imp.Precedence()
	}
	require.Len(t, prec, 5)
	assert.Less(t, prec["mem:///d.xsl"], prec["mem:///a.xsl"])
	assert.Less(t, prec["mem:///a.xsl"], prec["mem:///b.xsl"])
	assert.Less(t, prec["mem:///b.xsl"], prec["mem:///main.xsl"])
	assert.Equal(t, prec["mem:///main.xsl"], prec["mem:///c.xsl"])
}

func TestParserStructuralErrors(t *testing.T) {
	tests := []struct {
		Name  string
		Sheet string
		Err   error
	}{
		{
			Name: "import-after-declaration",
			Sheet: stylesheetHeader + `
  <xsl:template match="/"/>
  <xsl:import href="other.xsl"/>
</xsl:stylesheet>`,
			Err: ErrUnexpected,
		},
		{
			Name: "unknown-declaration",
			Sheet: stylesheetHeader + `
  <xsl:frobnicate/>
</xsl:stylesheet>`,
			Err: ErrUnexpected,
		},
		{
			Name: "missing-attribute",
			Sheet: stylesheetHeader + `
  <xsl:key name="k" match="item"/>
</xsl:stylesheet>`,
			Err: ErrMissingAttr,
		},
		{
			Name: "undeclared-prefix",
			Sheet: stylesheetHeader + `
  <xsl:template name="foo:item"/>
</xsl:stylesheet>`,
			Err: ErrUndeclaredPrefix,
		},
		{
			Name: "invalid-pattern",
			Sheet: stylesheetHeader + `
  <xsl:template match="item["/>
</xsl:stylesheet>`,
			Err: ErrInvalidPattern,
		},
	}
	for _, tt := range tests {
		t.Run(tt.Name, func(t *testing.T) {
			files := map[string]string{
				"mem:///main.xsl":  tt.Sheet,
				"mem:///other.xsl": stylesheetHeader + `</xsl:stylesheet>`,
			}
			_, err := compileMemory(t, files)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.Err)
		})
	}
}

func TestParserForwardCompatible(t *testing.T) {
	files := map[string]string{
		"mem:///main.xsl": `<?xml version="1.0"?>
<xsl:stylesheet version="2.0" xmlns:xsl="http://www.w3.org/1999/XSL/Transform">
  <xsl:frobnicate/>
  <xsl:template match="/"><out/></xsl:template>
</xsl:stylesheet>`,
	}
	sheet, err := compileMemory(t, files)
	require.NoError(t, err)
	assert.True(t, sheet.Imports()[0].ForwardCompatible)
	assert.Len(t, sheet.Templates(), 1)
}

func TestParserSimplified(t *testing.T) {
	files := map[string]string{
		"mem:///main.xsl": `<?xml version="1.0"?>
<out xsl:version="1.0" xmlns:xsl="http://www.w3.org/1999/XSL/Transform">
  <xsl:value-of select="/root/name"/>
</out>`,
	}
	sheet, err := compileMemory(t, files)
	require.NoError(t, err)

	list := sheet.Templates()
	require.Len(t, list, 1)
	require.NotNil(t, list[0].Match)
	assert.Equal(t, "/", list[0].Match.String())
	assert.True(t, list[0].Mode.Equal(xml.QName{}))
}

func TestParserNoStylesheet(t *testing.T) {
	files := map[string]string{
		"mem:///main.xsl": `<?xml version="1.0"?>
<out/>`,
	}
	_, err := compileMemory(t, files)
	require.Error(t, err)
}

func TestParserMissingResource(t *testing.T) {
	_, err := compileMemory(t, map[string]string{})
	require.Error(t, err)
}

func TestCompilerShadowing(t *testing.T) {
	tests := []struct {
		Name string
		Body string
		Err  bool
	}{
		{
			Name: "sibling",
			Body: `<xsl:variable name="v" select="1"/><xsl:variable name="v" select="2"/>`,
			Err:  true,
		},
		{
			Name: "param",
			Body: `<xsl:param name="v"/><xsl:if test="true()"><xsl:variable name="v" select="2"/></xsl:if>`,
			Err:  true,
		},
		{
			Name: "for-each",
			Body: `<xsl:variable name="v" select="1"/><xsl:for-each select="*"><xsl:variable name="v" select="2"/></xsl:for-each>`,
			Err:  true,
		},
		{
			Name: "branches",
			Body: `<xsl:choose><xsl:when test="1"><xsl:variable name="v" select="1"/></xsl:when><xsl:otherwise><xsl:variable name="v" select="2"/></xsl:otherwise></xsl:choose>`,
		},
		{
			Name: "global",
			Body: `<xsl:variable name="g" select="2"/>`,
		},
		{
			Name: "with-param",
			Body: `<xsl:variable name="v" select="1"/><xsl:call-template name="t"><xsl:with-param name="v" select="$v"/></xsl:call-template>`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.Name, func(t *testing.T) {
			files := map[string]string{
				"mem:///main.xsl": stylesheetHeader + `
  <xsl:variable name="g" select="1"/>
  <xsl:template name="t"><xsl:param name="v"/></xsl:template>
  <xsl:template match="/">` + tt.Body + `</xsl:template>
</xsl:stylesheet>`,
			}
			sheet, err := compileMemory(t, files)
			require.NoError(t, err)
			err = sheet.CompileAll()
			if !tt.Err {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, ErrShadowed)
		})
	}
}
