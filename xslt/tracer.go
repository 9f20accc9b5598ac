package xslt

import (
	"go.uber.org/zap"

	"github.com/midbel/angle/xml"
)

// Trace describes the program a frame of the interpreter runs.
type Trace struct {
	Program string
	Node    xml.Node
	Depth   int
}

type Tracer interface {
	Enter(Trace)
	Leave(Trace)
	Error(Trace, error)
}

func NoopTracer() Tracer {
	return discardTracer{}
}

type discardTracer struct{}

func (_ discardTracer) Enter(_ Trace) {}

func (_ discardTracer) Leave(_ Trace) {}

func (_ discardTracer) Error(_ Trace, _ error) {}

type zapTracer struct {
	logger *zap.Logger
}

func NewZapTracer(logger *zap.Logger) Tracer {
	if logger == nil {
		return NoopTracer()
	}
	return zapTracer{
		logger: logger,
	}
}

func (t zapTracer) Enter(tr Trace) {
	t.logger.Debug("start program", traceFields(tr)...)
}

func (t zapTracer) Leave(tr Trace) {
	t.logger.Debug("done program", traceFields(tr)...)
}

func (t zapTracer) Error(tr Trace, err error) {
	fields := append(traceFields(tr), zap.Error(err))
	t.logger.Error("error while running program", fields...)
}

func traceFields(tr Trace) []zap.Field {
	var node string
	if tr.Node != nil {
		node = tr.Node.QualifiedName()
		if node == "" {
			node = tr.Node.Type().String()
		}
	}
	return []zap.Field{
		zap.String("program", tr.Program),
		zap.String("node", node),
		zap.Int("depth", tr.Depth),
	}
}
