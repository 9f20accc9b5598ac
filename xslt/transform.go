package xslt

import (
	"context"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/midbel/angle/loop"
	"github.com/midbel/angle/resource"
	"github.com/midbel/angle/xml"
	"github.com/midbel/angle/xpath"
)

// Processor compiles stylesheets and runs transformations. Each call runs
// a loop of its own: a Processor can be shared between goroutines, the
// Stylesheets it gives too.
type Processor struct {
	fetch resource.Fetcher

	Diagnostics *Diagnostics
	Tracer      Tracer
	Metrics     *Metrics
	Logger      *zap.Logger

	Slice     int
	MaxDepth  int
	MaxOutput int
}

func NewProcessor(fetch resource.Fetcher) *Processor {
	if fetch == nil {
		fetch = resource.File()
	}
	return &Processor{
		fetch:  fetch,
		Logger: zap.NewNop(),
	}
}

func (p *Processor) logger() *zap.Logger {
	if p.Logger == nil {
		return zap.NewNop()
	}
	return p.Logger
}

func (p *Processor) manager(ctx context.Context, lp *loop.Loop) *resource.Manager {
	mgr := resource.NewManager(ctx, lp, p.fetch)
	mgr.SetLogger(p.logger())
	return mgr
}

// Options gives the settings of a transformation using loader.
func (p *Processor) Options(loader resource.Loader) Options {
	return Options{
		Loader:      loader,
		Diagnostics: p.Diagnostics,
		Tracer:      p.Tracer,
		Slice:       p.Slice,
		MaxDepth:    p.MaxDepth,
		MaxOutput:   p.MaxOutput,
	}
}

// Compile loads the stylesheet at url with everything it imports and
// includes.
func (p *Processor) Compile(ctx context.Context, url string) (*Stylesheet, error) {
	lp := loop.New()
	defer lp.Close()

	mgr := p.manager(ctx, lp)
	defer mgr.Close()

	parser := NewParser(url, mgr, p.Diagnostics)
	if err := parser.Start(); err != nil {
		return nil, err
	}
	if err := lp.Until(ctx, parser.Done); err != nil {
		parser.Cancel()
		return nil, fmt.Errorf("%s: %w", url, err)
	}
	if err := parser.Err(); err != nil {
		return nil, err
	}
	sheet := parser.Stylesheet()
	sheet.SetMetrics(p.Metrics)
	sheet.proc = p
	p.logger().Debug("stylesheet compiled",
		zap.String("url", url),
		zap.Int("imports", len(sheet.imports)),
		zap.Int("templates", len(sheet.templates)),
	)
	return sheet, nil
}

// Load parses the document at url into a tree.
func (p *Processor) Load(ctx context.Context, url string) (*xml.Document, error) {
	lp := loop.New()
	defer lp.Close()

	mgr := p.manager(ctx, lp)
	defer mgr.Close()

	var (
		sink = documentSink{Builder: xml.NewBuilder()}
		done = func() bool {
			return sink.err != nil || (sink.Document() != nil && sink.Document().Finished())
		}
	)
	if st := mgr.LoadResource(resource.KindDocument, url, &sink); st != resource.StatusAccepted {
		return nil, fmt.Errorf("%s: %s: %w", url, st, resource.ErrRejected)
	}
	if err := lp.Until(ctx, done); err != nil {
		return nil, fmt.Errorf("%s: %w", url, err)
	}
	if sink.err != nil {
		return nil, sink.err
	}
	return sink.Document(), nil
}

// Process runs the driver on the document at url: the stylesheet it
// references transforms it into out; without reference, the document is
// copied to out unchanged.
func (p *Processor) Process(ctx context.Context, url string, params map[string]string, out io.Writer) error {
	lp := loop.New()
	defer lp.Close()

	mgr := p.manager(ctx, lp)
	defer mgr.Close()

	var (
		opts = p.Options(mgr)
		pass = xml.NewBuilder()
		done bool
	)
	opts.Params = StringParams(params)

	drv := NewDriver(lp, opts)
	drv.SetLogger(p.logger())
	drv.SetPassthrough(pass)
	drv.SetOutput(WriterOutput(out))
	drv.OnDone(func(error) {
		done = true
	})
	if st := mgr.LoadResource(resource.KindDocument, url, drv); st != resource.StatusAccepted {
		return fmt.Errorf("%s: %s: %w", url, st, resource.ErrRejected)
	}
	if err := lp.Until(ctx, func() bool { return done }); err != nil {
		drv.Abort()
		return err
	}
	if err := drv.Err(); err != nil {
		return err
	}
	if drv.State() != StateDisabled {
		return nil
	}
	w := xml.NewWriter(out)
	return w.Write(pass.Document())
}

// Transform runs s against doc and writes the serialized result to out.
// params are the values of the top-level parameters of s.
func (s *Stylesheet) Transform(ctx context.Context, doc *xml.Document, params map[string]string, out io.Writer) error {
	return s.TransformTo(ctx, doc, StringParams(params), WriterOutput(out))
}

// TransformTo runs s against doc, creating the handler of the result with
// output once the output method is known.
func (s *Stylesheet) TransformTo(ctx context.Context, doc *xml.Document, params map[string]xpath.Sequence, output OutputFactory) error {
	proc := s.proc
	if proc == nil {
		proc = NewProcessor(nil)
	}
	lp := loop.New()
	defer lp.Close()

	mgr := proc.manager(ctx, lp)
	defer mgr.Close()

	opts := proc.Options(mgr)
	opts.Params = params

	var (
		tr    = s.NewTransformation(doc, opts)
		ready bool
	)
	tr.OnReady(func() {
		ready = true
	})
	for {
		if err := ctx.Err(); err != nil {
			tr.Abort()
			return err
		}
		res, err := tr.Step()
		switch res {
		case StepNeedsOutput:
			h, err := output(tr.Output())
			if err == nil {
				err = tr.SetOutput(h)
			}
			if err != nil {
				tr.Abort()
				return err
			}
		case StepPaused:
		case StepBlocked:
			ready = false
			if err := lp.Until(ctx, func() bool { return ready }); err != nil {
				tr.Abort()
				return fmt.Errorf("%w: %w", ErrAborted, err)
			}
		case StepFinished:
			proc.logger().Debug("transformation done",
				zap.String("stylesheet", s.URL),
				zap.Int("instructions", tr.Instructions()),
				zap.Duration("elapsed", tr.Elapsed()),
			)
			return nil
		case StepFailed:
			return err
		}
	}
}

// WriterOutput serializes the result to w according to its output
// method.
func WriterOutput(w io.Writer) OutputFactory {
	return func(out *Output) (OutputHandler, error) {
		return NewStringOutput(WriterSink(w), out), nil
	}
}

// TreeOutput collects the result into a tree available from b once the
// transformation is finished.
func TreeOutput(b *xml.Builder, url string) OutputFactory {
	return func(out *Output) (OutputHandler, error) {
		if out.Method != MethodXML {
			return nil, fmt.Errorf("%s: %w", out.Method, ErrTreeMethod)
		}
		return NewTokenOutput(b, url, out), nil
	}
}

// documentSink collects a loaded document.
type documentSink struct {
	*xml.Builder
	err error
}

func (d *documentSink) LoadFailed(url string, err error) {
	d.err = fmt.Errorf("%s: %w", url, err)
}
