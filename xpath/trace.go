package xpath

import (
	"go.uber.org/zap"
)

// Tracer receives the grammar rules entered and left while an expression is
// compiled.
type Tracer interface {
	Enter(string)
	Leave(string)
	Error(string, error)
}

type discardTracer struct{}

func (_ discardTracer) Enter(_ string)          {}
func (_ discardTracer) Leave(_ string)          {}
func (_ discardTracer) Error(_ string, _ error) {}

func NoopTracer() Tracer {
	return discardTracer{}
}

type zapTracer struct {
	logger *zap.Logger
	depth  int
	errors int
}

// TraceLogger logs every rule at debug level, indented by its depth in
// the expression.
func TraceLogger(logger *zap.Logger) Tracer {
	return &zapTracer{
		logger: logger.Named("xpath"),
	}
}

func (t *zapTracer) Enter(rule string) {
	t.depth++
	t.logger.Debug("start compile expr", zap.String("rule", rule), zap.Int("depth", t.depth))
}

func (t *zapTracer) Leave(rule string) {
	t.logger.Debug("done compile expr", zap.String("rule", rule), zap.Int("depth", t.depth))
	t.depth--
}

func (t *zapTracer) Error(source string, err error) {
	t.errors++
	t.logger.Warn("compile failed",
		zap.String("expr", source),
		zap.Int("errors", t.errors),
		zap.Error(err),
	)
}
