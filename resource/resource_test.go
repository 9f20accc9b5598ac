package resource_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/midbel/angle/loop"
	"github.com/midbel/angle/resource"
	"github.com/midbel/angle/xml"
)

type recordSink struct {
	xml.Recorder
	info   *xml.EntityInfo
	failed error
	block  bool
}

func (r *recordSink) StartEntity(url string, info *xml.EntityInfo, ref bool) error {
	r.info = info
	return r.Recorder.StartEntity(url, info, ref)
}

func (r *recordSink) EndElement() (bool, bool, error) {
	r.Recorder.EndElement()
	if r.block {
		r.block = false
		return true, false, nil
	}
	return false, false, nil
}

func (r *recordSink) LoadFailed(_ string, err error) {
	r.failed = err
}

func (r *recordSink) kinds() []xml.TokenKind {
	var list []xml.TokenKind
	for _, t := range r.Tokens {
		list = append(list, t.Kind)
	}
	return list
}

func TestResolve(t *testing.T) {
	tests := []struct {
		Base string
		Ref  string
		Want string
	}{
		{Base: "sheets/main.xsl", Ref: "common.xsl", Want: "sheets/common.xsl"},
		{Base: "sheets/main.xsl", Ref: "../lib/common.xsl", Want: "lib/common.xsl"},
		{Base: "sheets/main.xsl", Ref: "/abs/common.xsl", Want: "/abs/common.xsl"},
		{Base: "http://example.org/a/main.xsl", Ref: "b.xsl", Want: "http://example.org/a/b.xsl"},
		{Base: "http://example.org/a/main.xsl", Ref: "https://other.org/c.xsl", Want: "https://other.org/c.xsl"},
		{Base: "", Ref: "doc.xml", Want: "doc.xml"},
		{Base: "doc.xml", Ref: "", Want: "doc.xml"},
	}
	for _, c := range tests {
		assert.Equal(t, c.Want, resource.Resolve(c.Base, c.Ref), "%s + %s", c.Base, c.Ref)
	}
}

func TestManagerLoad(t *testing.T) {
	var (
		lp    = loop.New()
		fetch = resource.Memory{
			"doc.xml": `<root><item>1</item><item>2</item></root>`,
		}
		mgr  = resource.NewManager(context.Background(), lp, fetch)
		sink recordSink
	)
	mgr.Chunk = 1
	status := mgr.LoadResource(resource.KindDocument, "doc.xml", &sink)
	require.Equal(t, resource.StatusAccepted, status)
	require.NoError(t, lp.Run(context.Background()))
	require.NoError(t, sink.failed)

	kinds := sink.kinds()
	require.NotEmpty(t, kinds)
	assert.Equal(t, xml.TokEntityStart, kinds[0])
	assert.Equal(t, xml.TokEntityEnd, kinds[len(kinds)-1])
	assert.Zero(t, mgr.Pending())
}

func TestManagerMissing(t *testing.T) {
	var (
		lp   = loop.New()
		mgr  = resource.NewManager(context.Background(), lp, resource.Memory{})
		sink recordSink
	)
	require.Equal(t, resource.StatusAccepted, mgr.LoadResource(resource.KindDocument, "missing.xml", &sink))
	require.NoError(t, lp.Run(context.Background()))
	assert.ErrorIs(t, sink.failed, resource.ErrNotFound)
	assert.Empty(t, sink.Tokens)

	assert.Equal(t, resource.StatusRejected, mgr.LoadResource(resource.KindDocument, "", &sink))
}

func TestManagerBlock(t *testing.T) {
	var (
		lp    = loop.New()
		fetch = resource.Memory{
			"doc.xml": `<root><a/><b/></root>`,
		}
		mgr  = resource.NewManager(context.Background(), lp, fetch)
		sink = recordSink{block: true}
	)
	mgr.LoadResource(resource.KindDocument, "doc.xml", &sink)
	require.NoError(t, lp.Run(context.Background()))

	kinds := sink.kinds()
	require.NotEmpty(t, kinds)
	assert.Equal(t, xml.TokElementEnd, kinds[len(kinds)-1])
	assert.Equal(t, 1, mgr.Pending())

	require.NotNil(t, sink.info)
	sink.info.Source.Resume()
	require.NoError(t, lp.Run(context.Background()))
	kinds = sink.kinds()
	assert.Equal(t, xml.TokEntityEnd, kinds[len(kinds)-1])
	assert.Zero(t, mgr.Pending())
}

func TestManagerCancel(t *testing.T) {
	var (
		lp    = loop.New()
		fetch = resource.Memory{
			"doc.xml": `<root/>`,
		}
		mgr  = resource.NewManager(context.Background(), lp, fetch)
		sink recordSink
	)
	mgr.LoadResource(resource.KindDocument, "doc.xml", &sink)
	mgr.CancelLoadResource(&sink)
	require.NoError(t, lp.Run(context.Background()))
	assert.Empty(t, sink.Tokens)
	assert.NoError(t, sink.failed)
}

func TestManagerParseError(t *testing.T) {
	var (
		lp   = loop.New()
		mgr  = resource.NewManager(context.Background(), lp, resource.Memory{})
		sink recordSink
	)
	mgr.Open(resource.KindDocument, "bad.xml", bytes.NewReader([]byte("<root><a></root>")), &sink)
	require.NoError(t, lp.Run(context.Background()))
	var perr xml.ParseError
	assert.ErrorAs(t, sink.failed, &perr)
}

func TestDecode(t *testing.T) {
	var buf bytes.Buffer
	z := gzip.NewWriter(&buf)
	z.Write([]byte(`<?xml version="1.0"?><root/>`))
	z.Close()

	data, err := resource.Decode("doc.xml.gz", buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, `<?xml version="1.0"?><root/>`, string(data))

	data, err = resource.Decode("latin.xml", []byte("<?xml version=\"1.0\" encoding=\"ISO-8859-1\"?><root>caf\xe9 cr\xe8me</root>"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "café crème")

	_, err = resource.Decode("image.png", []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"))
	assert.ErrorIs(t, err, resource.ErrMediaType)
}
