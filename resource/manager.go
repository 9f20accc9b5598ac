package resource

import (
	"bytes"
	"context"
	"io"

	"go.uber.org/zap"

	"github.com/midbel/angle/loop"
	"github.com/midbel/angle/xml"
)

const (
	DefaultChunk      = 64
	DefaultMaxPending = 256
)

// Manager is a Loader fetching resources in the background and pumping
// their tokens to sinks on a loop.
type Manager struct {
	loop    *loop.Loop
	fetch   Fetcher
	ctx     context.Context
	cancel  context.CancelFunc
	pending map[Sink]*pump
	logger  *zap.Logger

	// Chunk is the number of tokens delivered per posted step.
	Chunk      int
	MaxPending int
}

func NewManager(ctx context.Context, lp *loop.Loop, fetch Fetcher) *Manager {
	ctx, cancel := context.WithCancel(ctx)
	return &Manager{
		loop:       lp,
		fetch:      fetch,
		ctx:        ctx,
		cancel:     cancel,
		pending:    make(map[Sink]*pump),
		logger:     zap.NewNop(),
		Chunk:      DefaultChunk,
		MaxPending: DefaultMaxPending,
	}
}

func (m *Manager) SetLogger(logger *zap.Logger) {
	if logger == nil {
		logger = zap.NewNop()
	}
	m.logger = logger
}

func (m *Manager) Loop() *loop.Loop {
	return m.loop
}

// Pending returns the number of loads not yet completed.
func (m *Manager) Pending() int {
	return len(m.pending)
}

func (m *Manager) LoadResource(kind Kind, url string, sink Sink) Status {
	if url == "" || sink == nil || m.ctx.Err() != nil {
		return StatusRejected
	}
	if _, ok := m.pending[sink]; ok {
		return StatusRejected
	}
	if m.MaxPending > 0 && len(m.pending) >= m.MaxPending {
		return StatusOOM
	}
	p := m.register(kind, url, sink)
	m.logger.Debug("load resource", zap.Stringer("kind", kind), zap.String("url", url))

	release := m.loop.Hold()
	go func() {
		defer release()
		data, err := m.fetch.Fetch(m.ctx, url)
		if err == nil {
			data, err = Decode(url, data)
		}
		m.loop.Post(func() {
			if p.canceled {
				return
			}
			if err != nil {
				m.fail(p, err)
				return
			}
			p.tokens = xml.NewTokenizer(bytes.NewReader(data), url)
			p.tokens.SetSource(p)
			p.step()
		})
	}()
	return StatusAccepted
}

// Open pumps the content of r to sink as if it was loaded from url.
func (m *Manager) Open(kind Kind, url string, r io.Reader, sink Sink) Status {
	if sink == nil || m.ctx.Err() != nil {
		return StatusRejected
	}
	if _, ok := m.pending[sink]; ok {
		return StatusRejected
	}
	p := m.register(kind, url, sink)
	p.tokens = xml.NewTokenizer(r, url)
	p.tokens.SetSource(p)
	m.loop.Post(p.step)
	return StatusAccepted
}

func (m *Manager) CancelLoadResource(sink Sink) {
	p, ok := m.pending[sink]
	if !ok {
		return
	}
	p.canceled = true
	delete(m.pending, sink)
	m.logger.Debug("cancel resource", zap.String("url", p.url))
}

// Close cancels every pending load and the fetches in flight.
func (m *Manager) Close() {
	for s := range m.pending {
		m.CancelLoadResource(s)
	}
	m.cancel()
}

func (m *Manager) register(kind Kind, url string, sink Sink) *pump {
	p := pump{
		manager: m,
		kind:    kind,
		url:     url,
		sink:    sink,
	}
	m.pending[sink] = &p
	return &p
}

func (m *Manager) fail(p *pump, err error) {
	m.done(p)
	m.logger.Debug("resource failed", zap.String("url", p.url), zap.Error(err))
	p.sink.LoadFailed(p.url, err)
}

func (m *Manager) done(p *pump) {
	p.finished = true
	if curr, ok := m.pending[p.sink]; ok && curr == p {
		delete(m.pending, p.sink)
	}
}

type pump struct {
	manager *Manager
	kind    Kind
	url     string
	sink    Sink
	tokens  *xml.Tokenizer

	canceled bool
	finished bool
	blocked  bool
	posted   bool
}

// Resume restarts delivery after the sink blocked the stream.
func (p *pump) Resume() {
	if !p.blocked || p.canceled || p.finished {
		return
	}
	p.blocked = false
	p.post()
}

func (p *pump) post() {
	if p.posted {
		return
	}
	p.posted = true
	p.manager.loop.Post(func() {
		p.posted = false
		p.step()
	})
}

func (p *pump) step() {
	if p.canceled || p.finished || p.blocked {
		return
	}
	status, err := p.tokens.Step(p.sink, p.manager.Chunk)
	if p.canceled {
		return
	}
	if err != nil {
		p.manager.fail(p, err)
		return
	}
	switch status {
	case xml.StatusMore:
		p.post()
	case xml.StatusBlocked:
		p.blocked = true
	case xml.StatusDone:
		p.manager.done(p)
	}
}
