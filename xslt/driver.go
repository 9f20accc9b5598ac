package xslt

import (
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/midbel/angle/loop"
	"github.com/midbel/angle/resource"
	"github.com/midbel/angle/xml"
)

type DriverState int8

const (
	StateAnalyzing DriverState = iota
	StateParsingSourceTree
	StateDisabled
	StateRunning
	StateFinished
	StateFailed
	StateAborted
)

func (s DriverState) String() string {
	switch s {
	case StateAnalyzing:
		return "analyzing"
	case StateParsingSourceTree:
		return "parsing-sourcetree"
	case StateDisabled:
		return "disabled"
	case StateRunning:
		return "running"
	case StateFinished:
		return "finished"
	case StateFailed:
		return "failed"
	case StateAborted:
		return "aborted"
	default:
		return "<unknown>"
	}
}

// Terminal reports whether no more work happens in state s.
func (s DriverState) Terminal() bool {
	return s == StateFinished || s == StateFailed || s == StateAborted
}

// OutputFactory creates the handler of the result once its output method is
// known.
type OutputFactory func(*Output) (OutputHandler, error)

var stylesheetTypes = []string{
	"text/xsl",
	"text/xml",
	"application/xml",
	"application/xslt+xml",
}

// Driver runs the transformation referenced by a document it receives as a
// token stream. Until the first element, tokens are queued: an
// xml-stylesheet processing instruction starts the load of the stylesheet
// and the collection of the source tree, otherwise the queued tokens and
// everything after them go to the pass-through handler unchanged.
//
// The transformation runs on the loop, one step per posted continuation.
type Driver struct {
	state  DriverState
	loop   *loop.Loop
	opts   Options
	logger *zap.Logger

	url     string
	depth   int
	queue   []xml.Token
	forward *xml.Replayer

	passthrough xml.TokenHandler
	builder     *xml.Builder
	parser      *Parser
	sheet       *Stylesheet
	transform   *Transformation
	output      OutputFactory

	sourceDone bool
	posted     bool
	done       bool
	err        error
	onDone     []func(error)
}

func NewDriver(lp *loop.Loop, opts Options) *Driver {
	return &Driver{
		state:   StateAnalyzing,
		loop:    lp,
		opts:    opts,
		logger:  zap.NewNop(),
		builder: xml.NewBuilder(),
	}
}

func (d *Driver) SetLogger(logger *zap.Logger) {
	if logger == nil {
		logger = zap.NewNop()
	}
	d.logger = logger
}

// SetPassthrough sets the handler receiving the document when it does not
// reference a stylesheet.
func (d *Driver) SetPassthrough(h xml.TokenHandler) {
	d.passthrough = h
}

func (d *Driver) SetOutput(fn OutputFactory) {
	d.output = fn
}

// OnDone registers fn to be called when the driver reaches a terminal state
// or the pass-through document is complete.
func (d *Driver) OnDone(fn func(error)) {
	d.onDone = append(d.onDone, fn)
}

func (d *Driver) State() DriverState {
	return d.state
}

func (d *Driver) Err() error {
	return d.err
}

// Exhausted reports whether the driver failed because a resource limit was
// reached.
func (d *Driver) Exhausted() bool {
	return isExhausted(d.err)
}

// Document gives the source tree collected so far.
func (d *Driver) Document() *xml.Document {
	return d.builder.Document()
}

func (d *Driver) Stylesheet() *Stylesheet {
	return d.sheet
}

func (d *Driver) Transformation() *Transformation {
	return d.transform
}

// Abort tears everything down. Like any terminal state, the token source
// is detached and the loads in progress are canceled.
func (d *Driver) Abort() {
	if d.state.Terminal() {
		return
	}
	if d.transform != nil {
		d.transform.Abort()
	}
	d.finish(StateAborted, ErrAborted)
}

func (d *Driver) StartEntity(url string, info *xml.EntityInfo, ref bool) error {
	if !ref && d.url == "" {
		d.url = url
	}
	d.depth++
	return d.handle(xml.Token{Kind: xml.TokEntityStart, URL: url, Info: info, Ref: ref})
}

func (d *Driver) StartElement(name xml.QName, fragment bool) (bool, error) {
	return false, d.handle(xml.Token{Kind: xml.TokElementStart, Name: name, Fragment: fragment})
}

func (d *Driver) AddAttribute(name xml.QName, value string, specified, id bool) error {
	return d.handle(xml.Token{Kind: xml.TokAttribute, Name: name, Value: value, Specified: specified, ID: id})
}

func (d *Driver) StartContent() error {
	return d.handle(xml.Token{Kind: xml.TokContentStart})
}

func (d *Driver) CharacterData(text string, blank bool) error {
	return d.handle(xml.Token{Kind: xml.TokCharData, Value: text, Blank: blank})
}

func (d *Driver) ProcessingInstruction(target, data string) error {
	return d.handle(xml.Token{Kind: xml.TokInstruction, Target: target, Value: data})
}

func (d *Driver) Comment(text string) error {
	return d.handle(xml.Token{Kind: xml.TokComment, Value: text})
}

func (d *Driver) EndElement() (bool, bool, error) {
	return false, false, d.handle(xml.Token{Kind: xml.TokElementEnd})
}

func (d *Driver) EndEntity() error {
	d.depth--
	return d.handle(xml.Token{Kind: xml.TokEntityEnd})
}

// LoadFailed is called when the document itself can not be loaded.
func (d *Driver) LoadFailed(url string, err error) {
	if d.state.Terminal() {
		return
	}
	d.logger.Debug("document failed", zap.String("url", url), zap.Error(err))
	if d.transform != nil {
		d.transform.Abort()
	}
	d.finish(StateFailed, err)
}

func (d *Driver) handle(tok xml.Token) error {
	switch d.state {
	case StateAnalyzing:
		d.queue = append(d.queue, tok)
		switch {
		case tok.Kind == xml.TokInstruction && tok.Target == "xml-stylesheet":
			if href, ok := stylesheetHref(tok.Value); ok {
				return d.attach(href)
			}
		case tok.Kind == xml.TokElementStart:
			return d.disable()
		case tok.Kind == xml.TokEntityEnd && d.depth == 0:
			return d.disable()
		}
		return nil
	case StateDisabled:
		if d.done {
			return nil
		}
		if err := d.forward.Replay(tok); err != nil {
			return err
		}
		if tok.Kind == xml.TokEntityEnd && d.depth == 0 {
			d.complete(nil)
		}
		return nil
	case StateParsingSourceTree:
		if err := d.forward.Replay(tok); err != nil {
			return err
		}
		if tok.Kind == xml.TokEntityEnd && d.depth == 0 {
			d.sourceReady()
		}
		return nil
	case StateAborted:
		return ErrAborted
	case StateFailed:
		return d.err
	case StateFinished:
		return ErrFinished
	default:
		return nil
	}
}

// attach starts the load of the stylesheet at href and sends the queued
// tokens to the source tree collector.
func (d *Driver) attach(href string) error {
	url := resource.Resolve(d.url, href)
	d.transition(StateParsingSourceTree)
	if err := d.replay(d.builder); err != nil {
		return err
	}
	d.parser = NewParser(url, d.opts.Loader, d.opts.Diagnostics)
	d.parser.OnDone(d.sheetReady)
	if err := d.parser.Start(); err != nil {
		d.finish(StateFailed, err)
		return err
	}
	return nil
}

// disable sends the queued tokens, in their order, to the pass-through
// handler which then receives every following token.
func (d *Driver) disable() error {
	d.transition(StateDisabled)
	h := d.passthrough
	if h == nil {
		h = &xml.Recorder{}
	}
	if err := d.replay(h); err != nil {
		return err
	}
	if d.depth == 0 {
		d.complete(nil)
	}
	return nil
}

func (d *Driver) replay(h xml.TokenHandler) error {
	d.forward = xml.NewReplayer(h)
	queue := d.queue
	d.queue = nil
	for _, tok := range queue {
		if err := d.forward.Replay(tok); err != nil {
			return err
		}
	}
	return nil
}

func (d *Driver) transition(state DriverState) {
	d.logger.Debug("driver state",
		zap.String("url", d.url),
		zap.Stringer("from", d.state),
		zap.Stringer("to", state),
	)
	d.state = state
}

func (d *Driver) sourceReady() {
	d.sourceDone = true
	if d.sheet != nil {
		d.run()
	}
}

func (d *Driver) sheetReady(sheet *Stylesheet, err error) {
	if d.state.Terminal() {
		return
	}
	if err != nil {
		d.finish(StateFailed, err)
		return
	}
	d.sheet = sheet
	if d.sourceDone {
		d.run()
	}
}

func (d *Driver) run() {
	d.transition(StateRunning)
	d.transform = d.sheet.NewTransformation(d.builder.Document(), d.opts)
	d.transform.OnReady(d.post)
	d.post()
}

// post schedules the next step. At most one step is pending at a time.
func (d *Driver) post() {
	if d.posted || d.state != StateRunning {
		return
	}
	d.posted = true
	d.loop.Post(func() {
		d.posted = false
		d.step()
	})
}

func (d *Driver) step() {
	if d.state != StateRunning {
		return
	}
	res, err := d.transform.Step()
	switch res {
	case StepNeedsOutput:
		if err := d.attachOutput(); err != nil {
			d.transform.Abort()
			d.finish(StateFailed, err)
			return
		}
		d.post()
	case StepPaused:
		d.post()
	case StepBlocked:
	case StepFinished:
		d.finish(StateFinished, nil)
	case StepFailed:
		d.finish(StateFailed, err)
	}
}

func (d *Driver) attachOutput() error {
	if d.output == nil {
		return fmt.Errorf("no output handler: %w", ErrAborted)
	}
	h, err := d.output(d.transform.Output())
	if err != nil {
		return err
	}
	return d.transform.SetOutput(h)
}

func (d *Driver) finish(state DriverState, err error) {
	if d.state.Terminal() {
		return
	}
	d.transition(state)
	if d.parser != nil {
		d.parser.Cancel()
	}
	if d.transform != nil {
		d.transform.OnReady(nil)
	}
	if d.opts.Loader != nil {
		d.opts.Loader.CancelLoadResource(d)
	}
	d.queue = nil
	d.forward = nil
	if err != nil {
		d.logger.Debug("driver failed", zap.String("url", d.url), zap.Bool("exhausted", isExhausted(err)), zap.Error(err))
	}
	d.complete(err)
}

func (d *Driver) complete(err error) {
	if d.done {
		return
	}
	d.done = true
	d.err = err
	for _, fn := range d.onDone {
		fn(err)
	}
}

// stylesheetHref gives the location of the stylesheet referenced by the
// pseudo attributes of an xml-stylesheet processing instruction.
func stylesheetHref(data string) (string, bool) {
	attrs, err := pseudoAttributes(data)
	if err != nil {
		return "", false
	}
	href, ok := attrs["href"]
	if !ok || href == "" || strings.HasPrefix(href, "#") {
		return "", false
	}
	if attrs["alternate"] == "yes" {
		return "", false
	}
	if typ, ok := attrs["type"]; ok {
		typ, _, _ = strings.Cut(typ, ";")
		found := false
		for _, t := range stylesheetTypes {
			if strings.EqualFold(strings.TrimSpace(typ), t) {
				found = true
				break
			}
		}
		if !found {
			return "", false
		}
	}
	return href, true
}

var (
	errPseudoAttr = errors.New("malformed pseudo attribute")

	entities = strings.NewReplacer(
		"&lt;", "<",
		"&gt;", ">",
		"&amp;", "&",
		"&quot;", `"`,
		"&apos;", "'",
	)
)

func pseudoAttributes(data string) (map[string]string, error) {
	attrs := make(map[string]string)
	for str := strings.TrimSpace(data); str != ""; str = strings.TrimSpace(str) {
		name, rest, ok := strings.Cut(str, "=")
		if !ok {
			return nil, errPseudoAttr
		}
		name = strings.TrimSpace(name)
		rest = strings.TrimSpace(rest)
		if name == "" || rest == "" || (rest[0] != '"' && rest[0] != '\'') {
			return nil, errPseudoAttr
		}
		end := strings.IndexByte(rest[1:], rest[0])
		if end < 0 {
			return nil, errPseudoAttr
		}
		attrs[name] = entities.Replace(rest[1 : end+1])
		str = rest[end+2:]
	}
	return attrs, nil
}
