package xslt

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResultNamespaceDeclarations(t *testing.T) {
	sheet := stylesheetHeader + `
  <xsl:output method="xml" omit-xml-declaration="yes"/>
  <xsl:template match="/">
    <r:out xmlns:r="urn:r"><r:in/><plain/><r:in xmlns:r="urn:other"/></r:out>
  </xsl:template>
</xsl:stylesheet>`
	got, err := transformText(t, sheet, `<root/>`, nil)
	require.NoError(t, err)

	assert.Equal(t, 1, strings.Count(got, `xmlns:r="urn:r"`), got)
	assert.Equal(t, 1, strings.Count(got, `xmlns:r="urn:other"`), got)
	assert.NotContains(t, got, `xmlns=""`)
	assert.Contains(t, got, "<plain")
}
