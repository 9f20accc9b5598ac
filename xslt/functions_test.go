package xslt

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/midbel/angle/xml"
)

// transformText compiles main as mem:///main.xsl, with the other entries
// of files available to it, and runs it on doc.
func transformText(t *testing.T, main, doc string, files map[string]string) (string, error) {
	t.Helper()
	if files == nil {
		files = make(map[string]string)
	}
	files["mem:///main.xsl"] = main
	sheet, err := compileMemory(t, files)
	require.NoError(t, err)

	src, err := xml.ParseReader(strings.NewReader(doc), "mem:///doc.xml")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var out bytes.Buffer
	err = sheet.Transform(ctx, src, nil, &out)
	return out.String(), err
}

func textSheet(body string) string {
	return stylesheetHeader + `
  <xsl:output method="text"/>
` + body + `
</xsl:stylesheet>`
}

func TestFunctionGenerateId(t *testing.T) {
	sheet := textSheet(`
  <xsl:template match="/">
    <xsl:value-of select="generate-id(root/a) = generate-id(root/a)"/>
    <xsl:text>,</xsl:text>
    <xsl:value-of select="generate-id(root/a) = generate-id(root/b)"/>
    <xsl:text>,</xsl:text>
    <xsl:value-of select="generate-id(root/missing)"/>
    <xsl:text>,</xsl:text>
    <xsl:value-of select="starts-with(generate-id(), 'id')"/>
  </xsl:template>`)
	got, err := transformText(t, sheet, `<root><a/><b/></root>`, nil)
	require.NoError(t, err)
	assert.Equal(t, "true,false,,true", got)
}

func TestFunctionDocument(t *testing.T) {
	sheet := textSheet(`
  <xsl:template match="/">
    <xsl:value-of select="document('lookup.xml')/codes/code[@id = 'b']"/>
    <xsl:text>|</xsl:text>
    <xsl:value-of select="count(document('missing.xml'))"/>
  </xsl:template>`)
	files := map[string]string{
		"mem:///lookup.xml": `<codes><code id="a">alpha</code><code id="b">beta</code></codes>`,
	}
	got, err := transformText(t, sheet, `<root/>`, files)
	require.NoError(t, err)
	assert.Equal(t, "beta|0", got)
}

func TestFunctionCurrent(t *testing.T) {
	sheet := textSheet(`
  <xsl:template match="/">
    <xsl:for-each select="root/item">
      <xsl:value-of select="../ref[@id = current()/@ref]"/>
    </xsl:for-each>
  </xsl:template>`)
	doc := `<root><item ref="2"/><item ref="1"/><ref id="1">one</ref><ref id="2">two</ref></root>`
	got, err := transformText(t, sheet, doc, nil)
	require.NoError(t, err)
	assert.Equal(t, "twoone", got)
}

func TestFunctionFormatNumber(t *testing.T) {
	sheet := textSheet(`
  <xsl:decimal-format name="eu" decimal-separator="," grouping-separator="."/>
  <xsl:template match="/">
    <xsl:value-of select="format-number(1234.5, '#,##0.00')"/>
    <xsl:text>|</xsl:text>
    <xsl:value-of select="format-number(1234.5, '#.##0,00', 'eu')"/>
    <xsl:text>|</xsl:text>
    <xsl:value-of select="format-number(0.25, '0%')"/>
  </xsl:template>`)
	got, err := transformText(t, sheet, `<root/>`, nil)
	require.NoError(t, err)
	assert.Equal(t, "1,234.50|1.234,50|25%", got)
}

func TestFunctionAvailability(t *testing.T) {
	sheet := textSheet(`
  <xsl:template match="/">
    <xsl:value-of select="system-property('xsl:version')"/>
    <xsl:text>|</xsl:text>
    <xsl:value-of select="function-available('key')"/>
    <xsl:text>|</xsl:text>
    <xsl:value-of select="function-available('frobnicate')"/>
    <xsl:text>|</xsl:text>
    <xsl:value-of select="element-available('xsl:for-each')"/>
    <xsl:text>|</xsl:text>
    <xsl:value-of select="element-available('xsl:frobnicate')"/>
  </xsl:template>`)
	got, err := transformText(t, sheet, `<root/>`, nil)
	require.NoError(t, err)
	assert.Equal(t, "1|true|false|true|false", got)
}

func TestNumberAny(t *testing.T) {
	sheet := textSheet(`
  <xsl:template match="/">
    <xsl:for-each select="//note">
      <xsl:number level="any" from="chapter"/>
      <xsl:text> </xsl:text>
    </xsl:for-each>
  </xsl:template>`)
	doc := `<book><chapter><note/><p><note/></p></chapter><chapter><note/></chapter></book>`
	got, err := transformText(t, sheet, doc, nil)
	require.NoError(t, err)
	assert.Equal(t, "1 2 1 ", got)
}

func TestNumberValue(t *testing.T) {
	sheet := textSheet(`
  <xsl:template match="/">
    <xsl:number value="3.6" format="i"/>
    <xsl:text>|</xsl:text>
    <xsl:number value="28" format="A"/>
    <xsl:text>|</xsl:text>
    <xsl:number value="1234567" grouping-separator="," grouping-size="3"/>
    <xsl:text>|</xsl:text>
    <xsl:number value="-2"/>
    <xsl:text>|</xsl:text>
    <xsl:number value="5000" format="I"/>
    <xsl:text>|</xsl:text>
    <xsl:number value="100000000000000000000" format="i"/>
    <xsl:text>|</xsl:text>
    <xsl:number value="12" format="x"/>
  </xsl:template>`)
	got, err := transformText(t, sheet, `<root/>`, nil)
	require.NoError(t, err)
	assert.Equal(t, "iv|AB|1,234,567|-2|5000|100000000000000000000|12", got)
}

func TestMessageTerminate(t *testing.T) {
	sheet := textSheet(`
  <xsl:template match="/">
    <xsl:text>before</xsl:text>
    <xsl:message terminate="yes">stop</xsl:message>
    <xsl:text>after</xsl:text>
  </xsl:template>`)
	_, err := transformText(t, sheet, `<root/>`, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTerminated)
}

func TestStripSpace(t *testing.T) {
	sheet := textSheet(`
  <xsl:strip-space elements="*"/>
  <xsl:preserve-space elements="keep"/>
  <xsl:template match="/">
    <xsl:value-of select="count(root/text())"/>
    <xsl:text>|</xsl:text>
    <xsl:value-of select="count(root/keep/text())"/>
  </xsl:template>`)
	doc := "<root>\n  <a/>\n  <keep> </keep>\n</root>"
	got, err := transformText(t, sheet, doc, nil)
	require.NoError(t, err)
	assert.Equal(t, "0|1", got)
}
