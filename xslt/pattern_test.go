package xslt

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/midbel/angle/resource"
	"github.com/midbel/angle/xml"
)

const stylesheetHeader = `<?xml version="1.0"?>
<xsl:stylesheet version="1.0" xmlns:xsl="http://www.w3.org/1999/XSL/Transform">
`

func compileMemory(t *testing.T, files map[string]string) (*Stylesheet, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	proc := NewProcessor(resource.Memory(files))
	return proc.Compile(ctx, "mem:///main.xsl")
}

func TestDispatchOrder(t *testing.T) {
	files := map[string]string{
		"mem:///main.xsl": stylesheetHeader + `
  <xsl:import href="other.xsl"/>
  <xsl:template match="*"><any/></xsl:template>
  <xsl:template match="item"><first/></xsl:template>
  <xsl:template match="item"><last/></xsl:template>
  <xsl:template match="item[@id]"><pred/></xsl:template>
  <xsl:template match="text()"><text/></xsl:template>
</xsl:stylesheet>`,
		"mem:///other.xsl": stylesheetHeader + `
  <xsl:template match="item" priority="10"><imported/></xsl:template>
</xsl:stylesheet>`,
	}
	sheet, err := compileMemory(t, files)
	require.NoError(t, err)

	list := sheet.candidates(xml.QName{}, nil, xml.TypeElement)
	require.Len(t, list, 5)

	var got []string
	for _, e := range list {
		got = append(got, e.template.Match.String())
	}
	want := []string{"item[@id]", "item", "item", "*", "item"}
	assert.Equal(t, want, got)

	assert.Greater(t, list[1].template.Index, list[2].template.Index, "last template in document order wins")
	assert.Equal(t, 10.0, list[4].priority)
	assert.Less(t, list[4].template.Precedence(), list[0].template.Precedence())

	list = sheet.candidates(xml.QName{}, nil, xml.TypeText)
	require.Len(t, list, 1)
	assert.Equal(t, "text()", list[0].template.Match.String())
}

func TestDispatchApplyImportsScope(t *testing.T) {
	files := map[string]string{
		"mem:///main.xsl": stylesheetHeader + `
  <xsl:import href="other.xsl"/>
  <xsl:template match="item"><main/></xsl:template>
</xsl:stylesheet>`,
		"mem:///other.xsl": stylesheetHeader + `
  <xsl:template match="item"><imported/></xsl:template>
</xsl:stylesheet>`,
	}
	sheet, err := compileMemory(t, files)
	require.NoError(t, err)

	imports := sheet.Imports()
	require.Len(t, imports, 2)
	root := imports[0]

	list := sheet.candidates(xml.QName{}, root, xml.TypeElement)
	require.Len(t, list, 1)
	assert.Equal(t, "mem:///other.xsl", list[0].template.Import.URL)
}

func TestDispatchProgramCache(t *testing.T) {
	files := map[string]string{
		"mem:///main.xsl": stylesheetHeader + `
  <xsl:template match="item"><main/></xsl:template>
  <xsl:template match="item" mode="alt"><alt/></xsl:template>
</xsl:stylesheet>`,
	}
	sheet, err := compileMemory(t, files)
	require.NoError(t, err)

	var (
		prog  = sheet.dispatchProgram(xml.QName{}, nil, xml.TypeElement)
		again = sheet.dispatchProgram(xml.QName{}, nil, xml.TypeElement)
		mode  = sheet.dispatchProgram(xml.LocalName("alt"), nil, xml.TypeElement)
	)
	assert.Same(t, prog, again)
	assert.NotSame(t, prog, mode)
	assert.Contains(t, mode.Name, "mode=alt")
}

func TestDispatchBuiltinFallback(t *testing.T) {
	files := map[string]string{
		"mem:///main.xsl": stylesheetHeader + `
  <xsl:template match="item"><main/></xsl:template>
</xsl:stylesheet>`,
	}
	sheet, err := compileMemory(t, files)
	require.NoError(t, err)

	prog := sheet.dispatchProgram(xml.QName{}, nil, xml.TypeComment)
	require.NotEmpty(t, prog.Code)
	assert.Equal(t, OpApplyBuiltin, prog.Code[len(prog.Code)-1].Op)
}
