package xslt

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
)

type MessageKind int8

const (
	MessageError MessageKind = iota
	MessageWarning
	MessageInfo
)

func (k MessageKind) String() string {
	switch k {
	case MessageError:
		return "error"
	case MessageWarning:
		return "warning"
	case MessageInfo:
		return "message"
	default:
		return "<unknown>"
	}
}

type HandleStatus int8

const (
	Handled HandleStatus = iota
	NotHandled
	HandledOOM
)

// MessageHandler is given the first chance to handle a diagnostic.
type MessageHandler interface {
	HandleMessage(kind MessageKind, text string) HandleStatus
}

type MessageHandlerFunc func(MessageKind, string) HandleStatus

func (f MessageHandlerFunc) HandleMessage(kind MessageKind, text string) HandleStatus {
	return f(kind, text)
}

// DiagnosticSink receives the messages no handler took care of, with the
// element path or source range they come from.
type DiagnosticSink interface {
	Report(kind MessageKind, text, context, url string)
}

type Diagnostics struct {
	Handler MessageHandler
	Sink    DiagnosticSink
}

func (d *Diagnostics) Error(err error, context, url string) {
	d.Report(MessageError, err.Error(), context, url)
}

func (d *Diagnostics) Warning(text, context, url string) {
	d.Report(MessageWarning, text, context, url)
}

func (d *Diagnostics) Message(text, context, url string) {
	d.Report(MessageInfo, text, context, url)
}

// Report gives the message to the handler and falls back on the sink. It
// returns false when the handler ran out of memory.
func (d *Diagnostics) Report(kind MessageKind, text, context, url string) bool {
	if d == nil {
		return true
	}
	if d.Handler != nil {
		switch d.Handler.HandleMessage(kind, text) {
		case Handled:
			return true
		case HandledOOM:
			return false
		}
	}
	if d.Sink != nil {
		d.Sink.Report(kind, text, context, url)
	}
	return true
}

type logSink struct {
	logger *zap.Logger
}

// NewLogSink creates a DiagnosticSink writing every message to logger.
func NewLogSink(logger *zap.Logger) DiagnosticSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return logSink{
		logger: logger,
	}
}

func (s logSink) Report(kind MessageKind, text, context, url string) {
	fields := []zap.Field{
		zap.Stringer("kind", kind),
		zap.String("url", url),
		zap.String("context", context),
	}
	switch kind {
	case MessageError:
		s.logger.Error(text, fields...)
	case MessageWarning:
		s.logger.Warn(text, fields...)
	default:
		s.logger.Info(text, fields...)
	}
}

type Diagnostic struct {
	Kind    MessageKind
	Text    string
	Context string
	URL     string
}

func (d Diagnostic) String() string {
	if d.URL == "" {
		return fmt.Sprintf("%s: %s: %s", d.Kind, d.Context, d.Text)
	}
	return fmt.Sprintf("%s: %s: %s: %s", d.Kind, d.URL, d.Context, d.Text)
}

// Collector is a DiagnosticSink keeping every message it receives.
type Collector struct {
	mu   sync.Mutex
	list []Diagnostic
}

func (c *Collector) Report(kind MessageKind, text, context, url string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.list = append(c.list, Diagnostic{
		Kind:    kind,
		Text:    text,
		Context: context,
		URL:     url,
	})
}

func (c *Collector) Diagnostics() []Diagnostic {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Diagnostic(nil), c.list...)
}

func (c *Collector) Filter(kind MessageKind) []Diagnostic {
	var list []Diagnostic
	for _, d := range c.Diagnostics() {
		if d.Kind == kind {
			list = append(list, d)
		}
	}
	return list
}

// Tee sends each message to every sink.
type Tee []DiagnosticSink

func (t Tee) Report(kind MessageKind, text, context, url string) {
	for _, s := range t {
		s.Report(kind, text, context, url)
	}
}
