// Package service exposes the transformation engine over http.
package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/midbel/angle/config"
	"github.com/midbel/angle/resource"
	"github.com/midbel/angle/xml"
	"github.com/midbel/angle/xslt"
)

const (
	requestHeader = "X-Request-ID"
	maxBody       = 32 << 20
)

var errStylesheet = errors.New("stylesheet parameter is missing")

// Server compiles the stylesheets found under its root directory once and
// applies them to the documents posted to /transform.
type Server struct {
	cfg    config.ServiceConfig
	proc   *xslt.Processor
	logger *zap.Logger

	registry *prometheus.Registry
	requests *prometheus.CounterVec

	mu     sync.Mutex
	sheets map[string]*xslt.Stylesheet
}

func New(cfg config.ServiceConfig, proc *xslt.Processor, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := Server{
		cfg:      cfg,
		proc:     proc,
		logger:   logger,
		registry: prometheus.NewRegistry(),
		sheets:   make(map[string]*xslt.Stylesheet),
	}
	s.requests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "angle",
		Name:      "http_requests_total",
		Help:      "HTTP requests by route and status code",
	}, []string{"route", "code"})
	s.registry.MustRegister(s.requests)
	if cfg.Metrics {
		proc.Metrics = xslt.NewMetrics(s.registry)
	}
	return &s
}

// Handler builds the gin engine serving the routes of the service.
func (s *Server) Handler() http.Handler {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(s.requestID())
	router.Use(s.observe())

	router.GET("/healthz", s.health)
	router.POST("/transform", s.transform)
	if s.cfg.Metrics {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})))
	}
	return router
}

// ListenAndServe runs the service until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := http.Server{
		Addr:    s.cfg.Addr,
		Handler: s.Handler(),
	}
	errc := make(chan error, 1)
	go func() {
		errc <- srv.ListenAndServe()
	}()
	s.logger.Info("service started", zap.String("addr", s.cfg.Addr))
	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	sub, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(sub)
}

func (s *Server) requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestHeader, id)
		c.Header(requestHeader, id)
		c.Next()
	}
}

func (s *Server) observe() gin.HandlerFunc {
	return func(c *gin.Context) {
		now := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unknown"
		}
		code := c.Writer.Status()
		s.requests.WithLabelValues(route, strconv.Itoa(code)).Inc()
		s.logger.Debug("request served",
			zap.String("id", c.GetString(requestHeader)),
			zap.String("route", route),
			zap.Int("code", code),
			zap.Duration("elapsed", time.Since(now)),
		)
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) transform(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), s.cfg.Deadline)
	defer cancel()

	name := c.Query("stylesheet")
	if name == "" {
		s.fail(c, http.StatusBadRequest, errStylesheet)
		return
	}
	sheet, err := s.stylesheet(ctx, name)
	if err != nil {
		code := http.StatusUnprocessableEntity
		if errors.Is(err, resource.ErrNotFound) {
			code = http.StatusNotFound
		}
		s.fail(c, code, err)
		return
	}
	doc, err := s.document(c)
	if err != nil {
		s.fail(c, http.StatusBadRequest, err)
		return
	}
	params := make(map[string]string)
	for k, vs := range c.Request.URL.Query() {
		if name, ok := strings.CutPrefix(k, "p."); ok && len(vs) > 0 {
			params[name] = vs[len(vs)-1]
		}
	}
	var out bytes.Buffer
	if err := sheet.Transform(ctx, doc, params, &out); err != nil {
		code := http.StatusUnprocessableEntity
		if errors.Is(err, context.DeadlineExceeded) {
			code = http.StatusGatewayTimeout
		}
		s.fail(c, code, err)
		return
	}
	c.Data(http.StatusOK, mediaType(sheet.Output()), out.Bytes())
}

func (s *Server) document(c *gin.Context) (*xml.Document, error) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBody))
	if err != nil {
		return nil, err
	}
	url := "request:" + c.GetString(requestHeader)
	if body, err = resource.Decode(url, body); err != nil {
		return nil, err
	}
	return xml.ParseReader(bytes.NewReader(body), url)
}

// stylesheet gives the compiled stylesheet for name, compiling it on first
// use. name is always resolved below the root directory.
func (s *Server) stylesheet(ctx context.Context, name string) (*xslt.Stylesheet, error) {
	file := filepath.Join(s.cfg.Root, filepath.Clean("/"+name))

	s.mu.Lock()
	defer s.mu.Unlock()
	if sheet, ok := s.sheets[file]; ok {
		return sheet, nil
	}
	sheet, err := s.proc.Compile(ctx, file)
	if err != nil {
		return nil, err
	}
	s.sheets[file] = sheet
	return sheet, nil
}

func (s *Server) fail(c *gin.Context, code int, err error) {
	s.logger.Warn("transformation request failed",
		zap.String("id", c.GetString(requestHeader)),
		zap.Int("code", code),
		zap.Error(err),
	)
	c.AbortWithStatusJSON(code, gin.H{
		"error": err.Error(),
		"id":    c.GetString(requestHeader),
	})
}

func mediaType(out *xslt.Output) string {
	if out.MediaType != "" {
		return out.MediaType
	}
	switch out.Method {
	case xslt.MethodHTML:
		return "text/html; charset=utf-8"
	case xslt.MethodText:
		return "text/plain; charset=utf-8"
	default:
		return "application/xml; charset=utf-8"
	}
}
