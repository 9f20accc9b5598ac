package xslt

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/midbel/angle/resource"
	"github.com/midbel/angle/xml"
	"github.com/midbel/angle/xpath"
)

type StepResult int8

const (
	StepNeedsOutput StepResult = iota
	StepPaused
	StepBlocked
	StepFinished
	StepFailed
)

func (r StepResult) String() string {
	switch r {
	case StepNeedsOutput:
		return "needs-output"
	case StepPaused:
		return "paused"
	case StepBlocked:
		return "blocked"
	case StepFinished:
		return "finished"
	case StepFailed:
		return "failed"
	default:
		return "<unknown>"
	}
}

const (
	DefaultSlice    = 10000
	DefaultMaxDepth = 4096
)

// Options configures one transformation.
type Options struct {
	// Params holds the values of top-level parameters, keyed by expanded
	// name.
	Params      map[string]xpath.Sequence
	Loader      resource.Loader
	Diagnostics *Diagnostics
	Tracer      Tracer
	// Slice is the number of instructions run by one call to Step.
	Slice    int
	MaxDepth int
	// MaxOutput limits the size in bytes of the result. Zero means no limit.
	MaxOutput int
}

// StringParams turns a map of names to strings into transformation
// parameters.
func StringParams(values map[string]string) map[string]xpath.Sequence {
	params := make(map[string]xpath.Sequence, len(values))
	for k, v := range values {
		params[k] = xpath.Singleton(v)
	}
	return params
}

type iterState struct {
	nodes  []xml.Node
	next   int
	mode   xml.QName
	params map[string]xpath.Sequence
}

type frame struct {
	prog *Program
	pc   int

	node xml.Node
	pos  int
	size int

	scope  *xpath.Scope
	scopes []*xpath.Scope
	tmpl   *Template
	mode   xml.QName
	params map[string]xpath.Sequence

	pending []map[string]xpath.Sequence
	iter    *iterState
}

type writerEntry struct {
	out   OutputHandler
	text  *textCollector
	build *xml.Builder
}

type globalState int8

const (
	globalPending globalState = iota
	globalEvaluating
	globalDone
)

type globalValue struct {
	state globalState
	value xpath.Sequence
}

type opFunc func(*Transformation, *frame, Instr) (int, error)

var operations [opCount]opFunc

func init() {
	operations = [opCount]opFunc{
		OpNop:                   execNop,
		OpText:                  execText,
		OpValueOf:               execValueOf,
		OpCopyOf:                execCopyOf,
		OpLiteralElement:        execLiteralElement,
		OpAttributes:            execAttributes,
		OpElement:               execElement,
		OpEndElement:            execEndElement,
		OpStartCollect:          execStartCollect,
		OpAttribute:             execAttribute,
		OpComment:               execComment,
		OpProcessingInstruction: execProcessingInstruction,
		OpMessage:               execMessage,
		OpCopy:                  execCopy,
		OpEndCopy:               execEndCopy,
		OpTest:                  execTest,
		OpJump:                  execJump,
		OpForEach:               execForEach,
		OpApplyTemplates:        execApplyTemplates,
		OpApplyImports:          execApplyImports,
		OpCallTemplate:          execCallTemplate,
		OpStartParams:           execStartParams,
		OpParam:                 execParam,
		OpVariable:              execVariable,
		OpStartFragment:         execStartFragment,
		OpEndFragment:           execEndFragment,
		OpEnterScope:            execEnterScope,
		OpLeaveScope:            execLeaveScope,
		OpNumber:                execNumber,
		OpUseAttributeSets:      execUseAttributeSets,
		OpMatch:                 execMatch,
		OpInvoke:                execInvoke,
		OpApplyBuiltin:          execApplyBuiltin,
		OpFail:                  execFail,
	}
}

// Transformation is one run of a stylesheet against a source document. It
// is driven by repeated calls to Step and is not safe for concurrent use.
type Transformation struct {
	sheet  *Stylesheet
	source *xml.Document
	keys   *KeyIndex
	params map[string]xpath.Sequence
	loader resource.Loader
	diag   *Diagnostics
	tracer Tracer

	slice     int
	maxDepth  int
	maxOutput int

	frames  []*frame
	writers []writerEntry
	result  *deferredOutput
	globals map[*Variable]*globalValue
	docs    map[string]*loadedDoc

	ids     map[xml.Node]string
	idSpace uuid.UUID

	started    bool
	flushed    bool
	needOutput bool
	waiting    bool
	status     StepResult
	err        error
	count      int
	elapsed    time.Duration

	onReady func()
}

// NewTransformation prepares the transformation of source. The whitespace
// stripping rules of s are applied to source.
func (s *Stylesheet) NewTransformation(source *xml.Document, opts Options) *Transformation {
	t := Transformation{
		sheet:     s,
		source:    source,
		keys:      s.keys.Fork(),
		params:    opts.Params,
		loader:    opts.Loader,
		diag:      opts.Diagnostics,
		tracer:    opts.Tracer,
		slice:     opts.Slice,
		maxDepth:  opts.MaxDepth,
		maxOutput: opts.MaxOutput,
		globals:   make(map[*Variable]*globalValue),
		docs:      make(map[string]*loadedDoc),
		ids:       make(map[xml.Node]string),
		idSpace:   uuid.New(),
		status:    StepPaused,
	}
	if t.slice <= 0 {
		t.slice = DefaultSlice
	}
	if t.maxDepth <= 0 {
		t.maxDepth = DefaultMaxDepth
	}
	if t.tracer == nil {
		t.tracer = NoopTracer()
	}
	t.result = &deferredOutput{
		decided: func(_ OutputMethod) {
			t.needOutput = true
		},
	}
	return &t
}

// OnReady registers fn to be called when a blocked transformation can run
// again.
func (t *Transformation) OnReady(fn func()) {
	t.onReady = fn
}

// Output gives the output settings of the result, its method decided. It
// is only meaningful once Step returned StepNeedsOutput.
func (t *Transformation) Output() *Output {
	return t.sheet.Output().Resolved(t.result.method)
}

// SetOutput attaches the handler receiving the result. The events recorded
// until now are replayed to h.
func (t *Transformation) SetOutput(h OutputHandler) error {
	t.needOutput = false
	return t.result.Attach(h)
}

func (t *Transformation) Err() error {
	return t.err
}

// Instructions gives the number of instructions run so far.
func (t *Transformation) Instructions() int {
	return t.count
}

func (t *Transformation) Elapsed() time.Duration {
	return t.elapsed
}

// Abort stops the transformation. The next calls to Step fail with
// ErrAborted.
func (t *Transformation) Abort() {
	if t.status == StepFinished || t.status == StepFailed {
		return
	}
	t.fail(ErrAborted)
}

// Step runs the transformation until it needs an output handler, has used
// its time slice, waits for a resource or is done.
func (t *Transformation) Step() (StepResult, error) {
	switch t.status {
	case StepFinished:
		return t.status, nil
	case StepFailed:
		return t.status, t.err
	}
	if t.waiting {
		return StepBlocked, nil
	}
	begin := time.Now()
	res, count := t.step()
	t.elapsed += time.Since(begin)
	t.sheet.metrics.stepped(res, count)
	switch res {
	case StepFinished:
		t.sheet.metrics.transformed("finished", t.elapsed.Seconds())
	case StepFailed:
		status := "failed"
		if isExhausted(t.err) {
			status = "exhausted"
		}
		t.sheet.metrics.transformed(status, t.elapsed.Seconds())
	}
	return res, t.err
}

func (t *Transformation) step() (StepResult, int) {
	if !t.started {
		if err := t.start(); err != nil {
			return t.fail(err), 0
		}
	}
	if t.needOutput && t.result.target == nil {
		return StepNeedsOutput, 0
	}
	var count int
	for len(t.frames) > 0 {
		if count >= t.slice {
			return StepPaused, count
		}
		count++
		if err := t.exec(); err != nil {
			var be *BlockedError
			if errors.As(err, &be) {
				t.block(be)
				return StepBlocked, count
			}
			return t.fail(err), count
		}
		if t.needOutput && t.result.target == nil {
			return StepNeedsOutput, count
		}
	}
	if !t.flushed {
		t.flushed = true
		if err := t.writers[0].out.Finish(); err != nil {
			return t.fail(err), count
		}
		if t.needOutput && t.result.target == nil {
			return StepNeedsOutput, count
		}
	}
	t.status = StepFinished
	t.release()
	return StepFinished, count
}

func (t *Transformation) start() error {
	t.started = true
	if t.source == nil {
		return fmt.Errorf("source document: %w", ErrUnresolved)
	}
	t.sheet.space.Strip(t.source)
	t.writers = append(t.writers, writerEntry{
		out: newResultWriter(t.result, t.maxOutput),
	})
	if m := t.sheet.Output().Method; m != MethodUnknown {
		t.result.decide(m)
	}
	prog := t.sheet.dispatchProgram(xml.QName{}, nil, xml.TypeDocument)
	return t.push(&frame{
		prog: prog,
		node: t.source,
		pos:  1,
		size: 1,
	})
}

func (t *Transformation) fail(err error) StepResult {
	t.err = err
	t.status = StepFailed
	t.frames = nil
	t.writers = nil
	t.release()
	return StepFailed
}

// release cancels the loads still in progress.
func (t *Transformation) release() {
	if t.loader == nil {
		return
	}
	for _, d := range t.docs {
		if !d.done {
			t.loader.CancelLoadResource(d)
		}
	}
}

func (t *Transformation) block(be *BlockedError) {
	t.waiting = true
	be.Wait(func() {
		if !t.waiting {
			return
		}
		t.waiting = false
		if t.onReady != nil {
			t.onReady()
		}
	})
}

func (t *Transformation) push(f *frame) error {
	if len(t.frames) >= t.maxDepth {
		return fmt.Errorf("more than %d nested templates: %w", t.maxDepth, ErrExhausted)
	}
	if f.scope == nil {
		f.scope = xpath.NewScope()
	}
	t.frames = append(t.frames, f)
	t.tracer.Enter(t.trace(f))
	return nil
}

func (t *Transformation) pop() {
	n := len(t.frames) - 1
	t.tracer.Leave(t.trace(t.frames[n]))
	t.frames[n] = nil
	t.frames = t.frames[:n]
}

func (t *Transformation) trace(f *frame) Trace {
	return Trace{
		Program: f.prog.Name,
		Node:    f.node,
		Depth:   len(t.frames),
	}
}

// exec runs the instruction of the topmost frame. An instruction failing
// leaves the frame untouched so that it can run again once the resource it
// waited for is available.
func (t *Transformation) exec() error {
	f := t.frames[len(t.frames)-1]
	if f.pc >= len(f.prog.Code) {
		t.pop()
		return nil
	}
	in := f.prog.Code[f.pc]
	t.count++
	next, err := operations[in.Op](t, f, in)
	if err != nil {
		if errors.Is(err, ErrBlocked) {
			return err
		}
		t.tracer.Error(t.trace(f), err)
		return t.runtimeError(f, err)
	}
	f.pc = next
	return nil
}

func (t *Transformation) runtimeError(f *frame, err error) error {
	var re *RuntimeError
	if errors.As(err, &re) {
		return err
	}
	return &RuntimeError{
		Instruction: f.prog.label(f.pc),
		Node:        describeNode(f.node),
		Err:         err,
	}
}

func describeNode(n xml.Node) string {
	if n == nil {
		return ""
	}
	if name := n.QualifiedName(); name != "" && n.Type() != xml.TypeInstruction {
		return fmt.Sprintf("%s %s", n.Type(), name)
	}
	return n.Type().String()
}

func (t *Transformation) context(f *frame) xpath.Context {
	return xpath.Context{
		Node:     f.node,
		Position: f.pos,
		Size:     f.size,
		Env:      evalEnv{t: t, f: f},
	}
}

func (t *Transformation) out() OutputHandler {
	return t.writers[len(t.writers)-1].out
}

func (t *Transformation) pushWriter(e writerEntry) {
	t.writers = append(t.writers, e)
}

func (t *Transformation) popWriter() writerEntry {
	n := len(t.writers) - 1
	e := t.writers[n]
	t.writers = t.writers[:n]
	return e
}

func (t *Transformation) fragmentWriter(url string) writerEntry {
	b := xml.NewBuilder()
	b.Fragment = true
	return writerEntry{
		out:   newResultWriter(NewTokenOutput(b, url, nil), t.maxOutput),
		build: b,
	}
}

// closeFragment finishes the fragment on top of the writers and gives its
// document node.
func (t *Transformation) closeFragment() (xml.Node, error) {
	e := t.popWriter()
	if err := e.out.Finish(); err != nil {
		return nil, err
	}
	doc := e.build.Document()
	if doc == nil {
		doc = xml.NewDocument("")
		doc.Finish()
	}
	return doc, nil
}

func (t *Transformation) collected() (string, error) {
	e := t.popWriter()
	if e.text == nil {
		return "", fmt.Errorf("text collector expected")
	}
	return e.text.String(), nil
}

func (t *Transformation) bind(f *frame, b binding, value xpath.Sequence) {
	switch b.kind {
	case bindWithParam:
		if n := len(f.pending); n > 0 {
			f.pending[n-1][b.name.ExpandedName()] = value
		}
	default:
		f.scope.Define(b.name, value)
	}
}

func (t *Transformation) takeParams(f *frame, given int) map[string]xpath.Sequence {
	if given == 0 || len(f.pending) == 0 {
		return nil
	}
	n := len(f.pending) - 1
	params := f.pending[n]
	f.pending = f.pending[:n]
	return params
}

// global gives the value of a top-level variable or parameter, computing
// it the first time it is needed.
func (t *Transformation) global(v *Variable) (xpath.Sequence, error) {
	g, ok := t.globals[v]
	if !ok {
		g = &globalValue{}
		t.globals[v] = g
	}
	switch g.state {
	case globalDone:
		return g.value, nil
	case globalEvaluating:
		return nil, fmt.Errorf("%s: %w", v, ErrCircular)
	}
	if v.Param {
		if seq, ok := t.params[v.Name.ExpandedName()]; ok {
			g.state, g.value = globalDone, seq
			return seq, nil
		}
	}
	g.state = globalEvaluating
	value, err := t.evalGlobal(v)
	if err != nil {
		g.state = globalPending
		return nil, err
	}
	g.state, g.value = globalDone, value
	return value, nil
}

func (t *Transformation) evalGlobal(v *Variable) (xpath.Sequence, error) {
	if v.Select != nil {
		f := frame{
			node:  t.source,
			pos:   1,
			size:  1,
			scope: xpath.NewScope(),
		}
		return v.Select.Eval(t.context(&f))
	}
	c := t.sheet.arena.Get(v.Handle)
	if c == nil || len(c.Children) == 0 {
		return xpath.Singleton(""), nil
	}
	prog, err := t.sheet.globalProgram(v)
	if err != nil {
		return nil, err
	}
	return t.runNested(prog, t.source)
}

// runNested runs prog to completion in a fragment and gives the document
// node of the fragment. When prog blocks, the frames and writers it
// created are dropped: the whole evaluation starts again later.
func (t *Transformation) runNested(prog *Program, node xml.Node) (xpath.Sequence, error) {
	var (
		base  = len(t.frames)
		wbase = len(t.writers)
	)
	t.pushWriter(t.fragmentWriter(prog.BaseURL))
	err := t.push(&frame{
		prog: prog,
		node: node,
		pos:  1,
		size: 1,
	})
	for err == nil && len(t.frames) > base {
		err = t.exec()
	}
	if err != nil {
		clear(t.frames[base:])
		t.frames = t.frames[:base]
		t.writers = t.writers[:wbase]
		return nil, err
	}
	doc, err := t.closeFragment()
	if err != nil {
		return nil, err
	}
	return xpath.Singleton(doc), nil
}

func (t *Transformation) selectNodes(f *frame, it *iteration) ([]xml.Node, error) {
	var (
		nodes []xml.Node
		ctx   = t.context(f)
	)
	if it.selector == nil {
		nodes = xml.Children(f.node)
	} else {
		seq, err := it.selector.Eval(ctx)
		if err != nil {
			return nil, err
		}
		if nodes, err = seq.Nodes(); err != nil {
			return nil, fmt.Errorf("%s: node-set expected: %w", it.selector, xpath.ErrType)
		}
		nodes = xml.SortUnique(nodes)
	}
	if len(it.sorts) == 0 || len(nodes) < 2 {
		return nodes, nil
	}
	return sortNodes(nodes, it.sorts, ctx)
}

func (t *Transformation) enter(f *frame, tmpl *Template) (int, error) {
	prog, err := t.sheet.templateProgram(tmpl)
	if err != nil {
		return 0, err
	}
	t.tracer.Leave(t.trace(f))
	f.prog = prog
	f.tmpl = tmpl
	f.scope = xpath.NewScope()
	f.scopes = nil
	t.tracer.Enter(t.trace(f))
	return 0, nil
}

func execNop(_ *Transformation, f *frame, _ Instr) (int, error) {
	return f.pc + 1, nil
}

func execText(t *Transformation, f *frame, in Instr) (int, error) {
	return f.pc + 1, t.out().Text(f.prog.strings[in.A], in.B == 1)
}

func execValueOf(t *Transformation, f *frame, in Instr) (int, error) {
	str, err := f.prog.queries[in.A].EvalString(t.context(f))
	if err != nil {
		return 0, err
	}
	return f.pc + 1, t.out().Text(str, in.B == 1)
}

func execCopyOf(t *Transformation, f *frame, in Instr) (int, error) {
	seq, err := f.prog.queries[in.A].Eval(t.context(f))
	if err != nil {
		return 0, err
	}
	out := t.out()
	if !seq.NodeSet() {
		return f.pc + 1, out.Text(xpath.AsString(seq), false)
	}
	nodes, _ := seq.Nodes()
	for _, n := range xml.SortUnique(nodes) {
		if err := copyNode(out, n); err != nil {
			return 0, err
		}
	}
	return f.pc + 1, nil
}

func copyNode(out OutputHandler, node xml.Node) error {
	switch n := node.(type) {
	case *xml.Document:
		for _, c := range n.Nodes {
			if err := copyNode(out, c); err != nil {
				return err
			}
		}
		return nil
	case *xml.Element:
		if err := out.StartElement(n.QName); err != nil {
			return err
		}
		for _, ns := range n.InScope() {
			if err := out.Namespace(ns); err != nil {
				return err
			}
		}
		for _, a := range n.Attrs {
			if err := out.Attribute(a.QName, a.Datum); err != nil {
				return err
			}
		}
		for _, c := range n.Nodes {
			if err := copyNode(out, c); err != nil {
				return err
			}
		}
		return out.EndElement()
	case *xml.Attribute:
		return out.Attribute(n.QName, n.Datum)
	case *xml.Text:
		return out.Text(n.Content, false)
	case *xml.Comment:
		return out.Comment(n.Content)
	case *xml.Instruction:
		return out.ProcessingInstruction(n.Target, n.Content)
	default:
		return nil
	}
}

func execLiteralElement(t *Transformation, f *frame, in Instr) (int, error) {
	li := &f.prog.literals[in.A]
	out := t.out()
	if err := out.StartElement(li.name); err != nil {
		return 0, err
	}
	for _, ns := range li.namespaces {
		if err := out.Namespace(ns); err != nil {
			return 0, err
		}
	}
	return f.pc + 1, nil
}

func execAttributes(t *Transformation, f *frame, in Instr) (int, error) {
	var (
		li     = &f.prog.literals[in.A]
		ctx    = t.context(f)
		values = make([]string, len(li.attrs))
	)
	for i, a := range li.attrs {
		str, err := a.value.Eval(ctx)
		if err != nil {
			return 0, err
		}
		values[i] = str
	}
	out := t.out()
	for i, a := range li.attrs {
		if err := out.Attribute(a.name, values[i]); err != nil {
			return 0, err
		}
	}
	return f.pc + 1, nil
}

func (t *Transformation) computeName(f *frame, cn *computedName) (xml.QName, error) {
	ctx := t.context(f)
	str, err := cn.name.Eval(ctx)
	if err != nil {
		return xml.QName{}, err
	}
	qn, err := xml.ParseName(strings.TrimSpace(str))
	if err != nil {
		return qn, fmt.Errorf("%s: %w", str, ErrInvalidName)
	}
	if !cn.element && qn.Space == "" && qn.Name == xml.AttrXmlNS {
		return qn, fmt.Errorf("%s: %w", str, ErrInvalidName)
	}
	if cn.namespace != nil {
		uri, err := cn.namespace.Eval(ctx)
		if err != nil {
			return qn, err
		}
		qn.Uri = uri
		if uri == "" {
			qn.Space = ""
		}
		return qn, nil
	}
	if qn.Space == "" && !cn.element {
		return qn, nil
	}
	uri, ok := cn.ns.ResolvePrefix(qn.Space)
	if !ok {
		return qn, fmt.Errorf("%s: %w", qn.Space, ErrUndeclaredPrefix)
	}
	qn.Uri = uri
	return qn, nil
}

func execElement(t *Transformation, f *frame, in Instr) (int, error) {
	qn, err := t.computeName(f, &f.prog.names[in.A])
	if err != nil {
		return 0, err
	}
	return f.pc + 1, t.out().StartElement(qn)
}

func execEndElement(t *Transformation, f *frame, _ Instr) (int, error) {
	return f.pc + 1, t.out().EndElement()
}

func execStartCollect(t *Transformation, f *frame, _ Instr) (int, error) {
	var text textCollector
	t.pushWriter(writerEntry{
		out:  &text,
		text: &text,
	})
	return f.pc + 1, nil
}

func execAttribute(t *Transformation, f *frame, in Instr) (int, error) {
	qn, err := t.computeName(f, &f.prog.names[in.A])
	if err != nil {
		return 0, err
	}
	value, err := t.collected()
	if err != nil {
		return 0, err
	}
	return f.pc + 1, t.out().Attribute(qn, value)
}

func execComment(t *Transformation, f *frame, _ Instr) (int, error) {
	text, err := t.collected()
	if err != nil {
		return 0, err
	}
	text = strings.ReplaceAll(text, "--", "- -")
	if strings.HasSuffix(text, "-") {
		text += " "
	}
	return f.pc + 1, t.out().Comment(text)
}

func execProcessingInstruction(t *Transformation, f *frame, in Instr) (int, error) {
	target, err := f.prog.avts[in.A].Eval(t.context(f))
	if err != nil {
		return 0, err
	}
	target = strings.TrimSpace(target)
	if !xml.IsNCName(target) || strings.EqualFold(target, "xml") {
		return 0, invalidValue("name", target)
	}
	data, err := t.collected()
	if err != nil {
		return 0, err
	}
	data = strings.ReplaceAll(data, "?>", "? >")
	return f.pc + 1, t.out().ProcessingInstruction(target, data)
}

func execMessage(t *Transformation, f *frame, in Instr) (int, error) {
	text, err := t.collected()
	if err != nil {
		return 0, err
	}
	kind := MessageInfo
	if in.B == 1 {
		kind = MessageError
	}
	if !t.diag.Report(kind, text, f.prog.label(f.pc), f.prog.BaseURL) {
		return 0, fmt.Errorf("message handler: %w", ErrExhausted)
	}
	if in.B == 1 {
		return 0, fmt.Errorf("%s: %w", text, ErrTerminated)
	}
	return f.pc + 1, nil
}

func execCopy(t *Transformation, f *frame, in Instr) (int, error) {
	out := t.out()
	switch n := f.node.(type) {
	case *xml.Document:
		return f.pc + 1, nil
	case *xml.Element:
		if err := out.StartElement(n.QName); err != nil {
			return 0, err
		}
		for _, ns := range n.InScope() {
			if err := out.Namespace(ns); err != nil {
				return 0, err
			}
		}
		return f.pc + 1, nil
	default:
		return in.A, copyNode(out, f.node)
	}
}

func execEndCopy(t *Transformation, f *frame, _ Instr) (int, error) {
	if f.node.Type() != xml.TypeElement {
		return f.pc + 1, nil
	}
	return f.pc + 1, t.out().EndElement()
}

func execTest(t *Transformation, f *frame, in Instr) (int, error) {
	ok, err := f.prog.queries[in.A].EvalBoolean(t.context(f))
	if err != nil {
		return 0, err
	}
	if !ok {
		return in.B, nil
	}
	return f.pc + 1, nil
}

func execJump(_ *Transformation, _ *frame, in Instr) (int, error) {
	return in.A, nil
}

// execForEach runs the body once per selected node, pushing one frame per
// node and coming back to the same instruction until the list is done.
func execForEach(t *Transformation, f *frame, in Instr) (int, error) {
	it := &f.prog.iterations[in.A]
	if f.iter == nil {
		nodes, err := t.selectNodes(f, it)
		if err != nil {
			return 0, err
		}
		f.iter = &iterState{
			nodes: nodes,
		}
	}
	if f.iter.next >= len(f.iter.nodes) {
		f.iter = nil
		return f.pc + 1, nil
	}
	i := f.iter.next
	f.iter.next++
	err := t.push(&frame{
		prog:  it.body,
		node:  f.iter.nodes[i],
		pos:   i + 1,
		size:  len(f.iter.nodes),
		scope: f.scope.Enclosed(),
		mode:  f.mode,
	})
	return f.pc, err
}

func execApplyTemplates(t *Transformation, f *frame, in Instr) (int, error) {
	it := &f.prog.iterations[in.A]
	if f.iter == nil {
		nodes, err := t.selectNodes(f, it)
		if err != nil {
			return 0, err
		}
		mode := it.mode
		if it.current {
			mode = f.mode
		}
		f.iter = &iterState{
			nodes:  nodes,
			mode:   mode,
			params: t.takeParams(f, in.B),
		}
	}
	if f.iter.next >= len(f.iter.nodes) {
		f.iter = nil
		return f.pc + 1, nil
	}
	i := f.iter.next
	f.iter.next++
	node := f.iter.nodes[i]
	err := t.push(&frame{
		prog:   t.sheet.dispatchProgram(f.iter.mode, nil, node.Type()),
		node:   node,
		pos:    i + 1,
		size:   len(f.iter.nodes),
		mode:   f.iter.mode,
		params: f.iter.params,
	})
	return f.pc, err
}

func execApplyImports(t *Transformation, f *frame, _ Instr) (int, error) {
	if f.tmpl == nil {
		return 0, fmt.Errorf("no current template rule: %w", ErrUnresolved)
	}
	prog := t.sheet.dispatchProgram(f.tmpl.Mode, f.tmpl.Import, f.node.Type())
	err := t.push(&frame{
		prog: prog,
		node: f.node,
		pos:  f.pos,
		size: f.size,
		mode: f.tmpl.Mode,
	})
	return f.pc + 1, err
}

func execCallTemplate(t *Transformation, f *frame, in Instr) (int, error) {
	tmpl := f.prog.templates[in.A]
	if tmpl == nil {
		return 0, fmt.Errorf("call-template: %w", ErrUnresolved)
	}
	prog, err := t.sheet.templateProgram(tmpl)
	if err != nil {
		return 0, err
	}
	err = t.push(&frame{
		prog:   prog,
		node:   f.node,
		pos:    f.pos,
		size:   f.size,
		tmpl:   f.tmpl,
		mode:   f.mode,
		params: t.takeParams(f, in.B),
	})
	return f.pc + 1, err
}

func execStartParams(_ *Transformation, f *frame, _ Instr) (int, error) {
	f.pending = append(f.pending, make(map[string]xpath.Sequence))
	return f.pc + 1, nil
}

func execParam(_ *Transformation, f *frame, in Instr) (int, error) {
	b := f.prog.bindings[in.A]
	if seq, ok := f.params[b.name.ExpandedName()]; ok {
		f.scope.Define(b.name, seq)
		return in.B, nil
	}
	return f.pc + 1, nil
}

func execVariable(t *Transformation, f *frame, in Instr) (int, error) {
	b := f.prog.bindings[in.A]
	value := xpath.Singleton("")
	if b.query != nil {
		seq, err := b.query.Eval(t.context(f))
		if err != nil {
			return 0, err
		}
		value = seq
	}
	t.bind(f, b, value)
	return f.pc + 1, nil
}

func execStartFragment(t *Transformation, f *frame, _ Instr) (int, error) {
	t.pushWriter(t.fragmentWriter(f.prog.BaseURL))
	return f.pc + 1, nil
}

func execEndFragment(t *Transformation, f *frame, in Instr) (int, error) {
	doc, err := t.closeFragment()
	if err != nil {
		return 0, err
	}
	t.bind(f, f.prog.bindings[in.A], xpath.Singleton(doc))
	return f.pc + 1, nil
}

func execEnterScope(_ *Transformation, f *frame, _ Instr) (int, error) {
	f.scopes = append(f.scopes, f.scope)
	f.scope = f.scope.Enclosed()
	return f.pc + 1, nil
}

func execLeaveScope(_ *Transformation, f *frame, _ Instr) (int, error) {
	if n := len(f.scopes); n > 0 {
		f.scope = f.scopes[n-1]
		f.scopes = f.scopes[:n-1]
	}
	return f.pc + 1, nil
}

func execNumber(t *Transformation, f *frame, in Instr) (int, error) {
	str, err := t.number(f, &f.prog.numbers[in.A])
	if err != nil {
		return 0, err
	}
	return f.pc + 1, t.out().Text(str, false)
}

// execUseAttributeSets pushes the programs of the named attribute sets so
// that they run in order before the next instruction.
func execUseAttributeSets(t *Transformation, f *frame, in Instr) (int, error) {
	var progs []*Program
	for _, name := range f.prog.sets[in.A] {
		sets, err := t.sheet.AttributeSets(name)
		if err != nil {
			return 0, err
		}
		for _, s := range sets {
			if s.program != nil {
				progs = append(progs, s.program)
			}
		}
	}
	for i := len(progs) - 1; i >= 0; i-- {
		err := t.push(&frame{
			prog: progs[i],
			node: f.node,
			pos:  f.pos,
			size: f.size,
		})
		if err != nil {
			return 0, err
		}
	}
	return f.pc + 1, nil
}

func execMatch(t *Transformation, f *frame, in Instr) (int, error) {
	e := f.prog.matches[in.A]
	ok, err := matchEntryNode(e, f.node, evalEnv{t: t, f: f})
	if err != nil {
		return 0, err
	}
	if !ok {
		return in.B, nil
	}
	return t.enter(f, e.template)
}

func execInvoke(t *Transformation, f *frame, in Instr) (int, error) {
	return t.enter(f, f.prog.matches[in.A].template)
}

func execApplyBuiltin(t *Transformation, f *frame, _ Instr) (int, error) {
	f.prog = builtinProgram(f.node.Type())
	f.tmpl = nil
	return 0, nil
}

func execFail(_ *Transformation, f *frame, in Instr) (int, error) {
	return 0, errors.New(f.prog.strings[in.A])
}
