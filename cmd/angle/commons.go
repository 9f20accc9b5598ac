package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"

	"charm.land/lipgloss/v2"

	"github.com/midbel/angle/config"
	"github.com/midbel/angle/resource"
	"github.com/midbel/angle/xslt"
)

// EngineOptions are the flags shared by the commands running stylesheets.
type EngineOptions struct {
	Params    config.Params
	ParamFile string
	Trace     bool
	Quiet     bool
}

func (o *EngineOptions) register(set *flag.FlagSet) {
	o.Params = make(config.Params)
	set.Var(o.Params, "p", "stylesheet parameter given as name=value")
	set.StringVar(&o.ParamFile, "P", "", "yaml or toml file with stylesheet parameters")
	set.BoolVar(&o.Trace, "trace", false, "trace the programs executed")
	set.BoolVar(&o.Quiet, "q", false, "only report errors")
}

// params merges the parameter file with the parameters of the command
// line, the latter winning.
func (o *EngineOptions) params() (map[string]string, error) {
	ps := make(config.Params)
	if o.ParamFile != "" {
		file, err := config.LoadParams(o.ParamFile)
		if err != nil {
			return nil, err
		}
		ps.Merge(file)
	}
	ps.Merge(o.Params)
	return ps, nil
}

func (o *EngineOptions) processor(diag *xslt.Diagnostics) *xslt.Processor {
	fetch := resource.DefaultMux(settings.Fetch.Retry, settings.Fetch.Timeout)
	proc := xslt.NewProcessor(fetch)
	proc.Logger = logger
	proc.Diagnostics = diag
	proc.Slice = settings.Engine.Slice
	proc.MaxDepth = settings.Engine.MaxDepth
	proc.MaxOutput = settings.Engine.MaxOutput
	if o.Trace {
		proc.Tracer = xslt.NewZapTracer(logger)
	}
	return proc
}

func interruptible() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt)
}

var (
	errorStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
	warningStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("11"))
	messageStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
	locationStyle = lipgloss.NewStyle().Faint(true)
	successStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
)

// Reporter writes diagnostics to the terminal and counts them by kind.
type Reporter struct {
	w     io.Writer
	quiet bool

	mu    sync.Mutex
	count map[xslt.MessageKind]int
}

func NewReporter(w io.Writer, quiet bool) *Reporter {
	return &Reporter{
		w:     w,
		quiet: quiet,
		count: make(map[xslt.MessageKind]int),
	}
}

func (r *Reporter) Diagnostics() *xslt.Diagnostics {
	return &xslt.Diagnostics{
		Sink: xslt.Tee{r, xslt.NewLogSink(logger)},
	}
}

func (r *Reporter) Report(kind xslt.MessageKind, text, context, url string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.count[kind]++
	if r.quiet && kind != xslt.MessageError {
		return
	}
	var style lipgloss.Style
	switch kind {
	case xslt.MessageError:
		style = errorStyle
	case xslt.MessageWarning:
		style = warningStyle
	default:
		style = messageStyle
	}
	where := url
	if context != "" {
		where = fmt.Sprintf("%s (%s)", url, context)
	}
	fmt.Fprintf(r.w, "%s %s %s\n", style.Render(kind.String()), locationStyle.Render(where), text)
}

func (r *Reporter) Count(kind xslt.MessageKind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count[kind]
}

func (r *Reporter) Success(text string) {
	if r.quiet {
		return
	}
	fmt.Fprintln(r.w, successStyle.Render(text))
}

// Failure prints err and gives errFail so that main does not print it a
// second time.
func (r *Reporter) Failure(err error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.w, "%s %s\n", errorStyle.Render("error"), err)
	return errFail
}

func createOutput(file string) (io.WriteCloser, error) {
	if file == "" || file == "-" {
		return nopCloser{os.Stdout}, nil
	}
	return os.Create(file)
}

type nopCloser struct {
	io.Writer
}

func (nopCloser) Close() error {
	return nil
}
