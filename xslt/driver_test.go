package xslt

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/midbel/angle/loop"
	"github.com/midbel/angle/resource"
	"github.com/midbel/angle/xml"
)

const driverSheet = stylesheetHeader + `
  <xsl:output method="text"/>
  <xsl:template match="/">name=<xsl:value-of select="root/name"/></xsl:template>
</xsl:stylesheet>`

func TestStylesheetHref(t *testing.T) {
	tests := []struct {
		Data string
		Href string
		Ok   bool
	}{
		{
			Data: `type="text/xsl" href="style.xsl"`,
			Href: "style.xsl",
			Ok:   true,
		},
		{
			Data: `href='a&amp;b.xsl'`,
			Href: "a&b.xsl",
			Ok:   true,
		},
		{
			Data: `type="text/css" href="style.css"`,
		},
		{
			Data: `href="style.xsl" alternate="yes"`,
		},
		{
			Data: `href="#embedded"`,
		},
		{
			Data: `href="style.xsl`,
		},
		{
			Data: `type="text/xsl"`,
		},
	}
	for _, tt := range tests {
		href, ok := stylesheetHref(tt.Data)
		assert.Equal(t, tt.Ok, ok, tt.Data)
		assert.Equal(t, tt.Href, href, tt.Data)
	}
}

func runDriver(t *testing.T, files map[string]string, url string) (*Driver, *bytes.Buffer, *xml.Builder) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	lp := loop.New()
	defer lp.Close()
	mgr := resource.NewManager(ctx, lp, resource.Memory(files))
	defer mgr.Close()

	var (
		out  bytes.Buffer
		pass = xml.NewBuilder()
		drv  = NewDriver(lp, Options{Loader: mgr})
	)
	drv.SetPassthrough(pass)
	drv.SetOutput(WriterOutput(&out))
	require.Equal(t, resource.StatusAccepted, mgr.LoadResource(resource.KindDocument, url, drv))
	require.NoError(t, lp.Run(ctx))
	return drv, &out, pass
}

func TestDriverTransform(t *testing.T) {
	files := map[string]string{
		"mem:///doc.xml": `<?xml version="1.0"?>
<?xml-stylesheet type="text/xsl" href="style.xsl"?>
<root><name>angle</name></root>`,
		"mem:///style.xsl": driverSheet,
	}
	drv, out, _ := runDriver(t, files, "mem:///doc.xml")
	require.NoError(t, drv.Err())
	assert.Equal(t, StateFinished, drv.State())
	assert.Equal(t, "name=angle", out.String())
	require.NotNil(t, drv.Stylesheet())
	assert.Equal(t, "mem:///style.xsl", drv.Stylesheet().URL)
}

func TestDriverDisabled(t *testing.T) {
	files := map[string]string{
		"mem:///doc.xml": `<?xml version="1.0"?>
<?other data="1"?>
<root><name>angle</name></root>`,
	}
	drv, out, pass := runDriver(t, files, "mem:///doc.xml")
	require.NoError(t, drv.Err())
	assert.Equal(t, StateDisabled, drv.State())
	assert.Zero(t, out.Len())

	doc := pass.Document()
	require.NotNil(t, doc)
	require.Len(t, doc.Nodes, 2)
	assert.Equal(t, xml.TypeInstruction, doc.Nodes[0].Type())
	assert.Equal(t, "root", doc.Nodes[1].LocalName())
}

func TestDriverStylesheetFailed(t *testing.T) {
	files := map[string]string{
		"mem:///doc.xml": `<?xml version="1.0"?>
<?xml-stylesheet href="missing.xsl"?>
<root/>`,
	}
	drv, _, _ := runDriver(t, files, "mem:///doc.xml")
	assert.Equal(t, StateFailed, drv.State())
	assert.ErrorIs(t, drv.Err(), resource.ErrNotFound)
}

func TestDriverAbort(t *testing.T) {
	drv := NewDriver(loop.New(), Options{})

	var called error
	drv.OnDone(func(err error) {
		called = err
	})
	drv.Abort()
	assert.Equal(t, StateAborted, drv.State())
	assert.ErrorIs(t, drv.Err(), ErrAborted)
	assert.ErrorIs(t, called, ErrAborted)

	_, err := drv.StartElement(xml.LocalName("root"), false)
	assert.ErrorIs(t, err, ErrAborted)
}

type cancelRecorder struct {
	canceled []resource.Sink
}

func (c *cancelRecorder) LoadResource(resource.Kind, string, resource.Sink) resource.Status {
	return resource.StatusAccepted
}

func (c *cancelRecorder) CancelLoadResource(sink resource.Sink) {
	c.canceled = append(c.canceled, sink)
}

func TestDriverFinishDetach(t *testing.T) {
	t.Run("failed", func(t *testing.T) {
		files := map[string]string{
			"mem:///doc.xml": `<?xml version="1.0"?>
<?xml-stylesheet href="missing.xsl"?>
<root/>`,
		}
		drv, _, _ := runDriver(t, files, "mem:///doc.xml")
		require.Equal(t, StateFailed, drv.State())

		_, err := drv.StartElement(xml.LocalName("late"), false)
		assert.ErrorIs(t, err, resource.ErrNotFound)
		assert.ErrorIs(t, drv.Comment("late"), resource.ErrNotFound)
	})
	t.Run("finished", func(t *testing.T) {
		files := map[string]string{
			"mem:///doc.xml": `<?xml version="1.0"?>
<?xml-stylesheet type="text/xsl" href="style.xsl"?>
<root><name>angle</name></root>`,
			"mem:///style.xsl": driverSheet,
		}
		drv, _, _ := runDriver(t, files, "mem:///doc.xml")
		require.Equal(t, StateFinished, drv.State())
		require.NotNil(t, drv.Transformation())
		assert.Nil(t, drv.Transformation().onReady)

		_, err := drv.StartElement(xml.LocalName("late"), false)
		assert.ErrorIs(t, err, ErrFinished)
	})
	t.Run("cancel", func(t *testing.T) {
		var (
			loader = &cancelRecorder{}
			drv    = NewDriver(loop.New(), Options{Loader: loader})
		)
		require.NoError(t, drv.StartEntity("mem:///doc.xml", nil, false))
		drv.LoadFailed("mem:///doc.xml", resource.ErrNotFound)
		assert.Equal(t, StateFailed, drv.State())
		require.Len(t, loader.canceled, 1)
		assert.Same(t, drv, loader.canceled[0])

		drv.Abort()
		assert.Len(t, loader.canceled, 1)
	})
}

func TestDriverStateString(t *testing.T) {
	assert.Equal(t, "parsing-sourcetree", StateParsingSourceTree.String())
	assert.True(t, StateAborted.Terminal())
	assert.False(t, StateRunning.Terminal())
}
