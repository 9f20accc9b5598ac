package service

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/midbel/angle/config"
	"github.com/midbel/angle/resource"
	"github.com/midbel/angle/xslt"
)

const greetSheet = `<?xml version="1.0"?>
<xsl:stylesheet version="1.0" xmlns:xsl="http://www.w3.org/1999/XSL/Transform">
  <xsl:output method="text"/>
  <xsl:param name="greeting" select="'hello'"/>
  <xsl:template match="/"><xsl:value-of select="concat($greeting, ' ', root/name)"/></xsl:template>
</xsl:stylesheet>`

func init() {
	gin.SetMode(gin.TestMode)
}

func setupServer(t *testing.T) http.Handler {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "greet.xsl"), []byte(greetSheet), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.xsl"), []byte(`<root/>`), 0o644))

	cfg := config.Default().Service
	cfg.Root = dir
	cfg.Deadline = 5 * time.Second
	cfg.Metrics = true

	srv := New(cfg, xslt.NewProcessor(resource.File()), nil)
	return srv.Handler()
}

func serve(h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	h := setupServer(t)
	rec := serve(h, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(requestHeader))
}

func TestTransform(t *testing.T) {
	h := setupServer(t)
	doc := `<root><name>angle</name></root>`

	rec := serve(h, http.MethodPost, "/transform?stylesheet=greet.xsl", doc)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "hello angle", rec.Body.String())
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/plain")

	rec = serve(h, http.MethodPost, "/transform?stylesheet=greet.xsl&p.greeting=bye", doc)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "bye angle", rec.Body.String())
}

func TestTransformErrors(t *testing.T) {
	h := setupServer(t)
	tests := []struct {
		Target string
		Body   string
		Code   int
	}{
		{
			Target: "/transform",
			Body:   `<root/>`,
			Code:   http.StatusBadRequest,
		},
		{
			Target: "/transform?stylesheet=missing.xsl",
			Body:   `<root/>`,
			Code:   http.StatusNotFound,
		},
		{
			Target: "/transform?stylesheet=../../greet.xsl",
			Body:   `<root><name>angle</name></root>`,
			Code:   http.StatusOK,
		},
		{
			Target: "/transform?stylesheet=broken.xsl",
			Body:   `<root/>`,
			Code:   http.StatusUnprocessableEntity,
		},
		{
			Target: "/transform?stylesheet=greet.xsl",
			Body:   `<root>`,
			Code:   http.StatusBadRequest,
		},
	}
	for _, tt := range tests {
		rec := serve(h, http.MethodPost, tt.Target, tt.Body)
		assert.Equal(t, tt.Code, rec.Code, tt.Target)
	}
}

func TestMetrics(t *testing.T) {
	h := setupServer(t)
	serve(h, http.MethodPost, "/transform?stylesheet=greet.xsl", `<root><name>angle</name></root>`)

	rec := serve(h, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "angle_http_requests_total")
	assert.Contains(t, body, "angle_transformations_total")
}
