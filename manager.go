package axi4bus

import (
	"context"
	"sync"

	"github.com/behrlich/axi4bus/internal/interfaces"
	"github.com/behrlich/axi4bus/internal/queue"
)

// Manager bundles a write engine and a read engine against one channel set
// (spec §4.7). The two engines share no state; Manager only composes their
// public operations and tracks one Metrics/Observer pair across both.
type Manager struct {
	channels ChannelSet
	params   BusParams
	logger   Logger
	observer Observer
	metrics  *Metrics

	write *queue.WriteEngine
	read  *queue.ReadEngine

	cancel context.CancelFunc
	errMu  sync.Mutex
	runErr error
	done   chan struct{}
}

// NewManager validates params, builds a write and a read engine over
// channels, and starts their issue/response tasks in the background.
// Callers own channels' lifetime; Manager never closes them.
func NewManager(channels ChannelSet, params BusParams, opts *Options) (*Manager, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if channels.ByteWidth != params.ByteWidth {
		return nil, NewError("NewManager", ErrCodeInvalidSize, "channel byte width does not match BusParams.ByteWidth")
	}
	if channels.IDWidth != params.IDWidth {
		return nil, NewError("NewManager", ErrCodeInvalidSize, "channel id width does not match BusParams.IDWidth")
	}

	if opts == nil {
		opts = &Options{}
	}
	baseCtx := opts.Context
	if baseCtx == nil {
		baseCtx = context.Background()
	}
	logger := opts.Logger
	metrics := NewMetrics()
	observer := opts.Observer
	if observer == nil {
		observer = NewMetricsObserver(metrics)
	}

	var ilogger interfaces.Logger
	if logger != nil {
		ilogger = logger
	}

	ctx, cancel := context.WithCancel(baseCtx)
	m := &Manager{
		channels: channels,
		params:   params,
		logger:   logger,
		observer: observer,
		metrics:  metrics,
		write:    queue.NewWriteEngine(channels, ilogger, observer, params.MaxBurstLen),
		read:     queue.NewReadEngine(channels, ilogger, observer, params.MaxBurstLen),
		cancel:   cancel,
		done:     make(chan struct{}),
	}

	go m.run(ctx)
	return m, nil
}

func (m *Manager) run(ctx context.Context) {
	errCh := make(chan error, 2)
	go func() { errCh <- m.write.Run(ctx) }()
	go func() { errCh <- m.read.Run(ctx) }()

	err := <-errCh
	if err != nil && err != context.Canceled {
		m.errMu.Lock()
		fe := newFatal("engine", ErrCodeProtocolViolation, err.Error())
		fe.Inner = err
		m.runErr = fe
		m.errMu.Unlock()
	}
	<-errCh
	close(m.done)
}

// Close stops both engines' background tasks. It does not wait for
// in-flight requests to complete (spec §5: no cancellation once
// submitted) — it only tears down the goroutines driving the channels.
func (m *Manager) Close() {
	m.cancel()
	<-m.done
}

// Err returns the fatal error, if any, that terminated an engine task.
func (m *Manager) Err() error {
	m.errMu.Lock()
	defer m.errMu.Unlock()
	return m.runErr
}

// Metrics returns the manager's metrics instance. It is never nil; when the
// caller supplied a custom Observer via Options, nothing records into it.
func (m *Manager) Metrics() *Metrics { return m.metrics }

func toWriteJob(req WriteRequest) queue.WriteJob {
	return queue.WriteJob{
		Address:   req.Address,
		Data:      req.Data,
		BurstType: req.BurstType,
		SizeLog2:  req.SizeLog2,
		Lock:      req.Attrs.Lock,
		Cache:     req.Attrs.Cache,
		Prot:      req.Attrs.Prot,
		QoS:       req.Attrs.QoS,
		Region:    req.Attrs.Region,
		User:      req.Attrs.User,
	}
}

func toReadJob(req ReadRequest) queue.ReadJob {
	return queue.ReadJob{
		Address:   req.Address,
		Length:    req.Length,
		BurstType: req.BurstType,
		SizeLog2:  req.SizeLog2,
		Lock:      req.Attrs.Lock,
		Cache:     req.Attrs.Cache,
		Prot:      req.Attrs.Prot,
		QoS:       req.Attrs.QoS,
		Region:    req.Attrs.Region,
		User:      req.Attrs.User,
	}
}

func fromWriteOutcome(o queue.WriteOutcome, token Token) WriteResult {
	return WriteResult{
		Address:       o.Address,
		Length:        o.Length,
		Response:      o.Response,
		BeatResponses: o.BeatResponses,
		Users:         o.Users,
		Token:         token,
	}
}

func fromReadOutcome(o queue.ReadOutcome, token Token) ReadResult {
	return ReadResult{
		Address:       o.Address,
		Data:          o.Data,
		Response:      o.Response,
		BeatResponses: o.BeatResponses,
		Users:         o.Users,
		Token:         token,
	}
}

func wrapPlannerErr(err error) error {
	pe, ok := err.(*queue.PlannerError)
	if !ok {
		return err
	}
	switch pe.Code {
	case "DuplicateToken":
		return NewError(pe.Op, ErrCodeDuplicateToken, pe.Msg)
	case "InvalidSize":
		return NewError(pe.Op, ErrCodeInvalidSize, pe.Msg)
	case "EmptyRequest":
		return NewError(pe.Op, ErrCodeEmptyRequest, pe.Msg)
	default:
		return NewError(pe.Op, ErrCodeProtocolViolation, pe.Msg)
	}
}

// SubmitWrite registers req and returns its token immediately; the write
// runs asynchronously. Validation failures return a non-nil error and a
// zero token (spec §7 caller errors).
func (m *Manager) SubmitWrite(req WriteRequest) (Token, error) {
	token, err := m.write.Submit(queue.Token(req.Token), toWriteJob(req))
	if err != nil {
		return 0, wrapPlannerErr(err)
	}
	return Token(token), nil
}

// SubmitRead registers req and returns its token immediately.
func (m *Manager) SubmitRead(req ReadRequest) (Token, error) {
	token, err := m.read.Submit(queue.Token(req.Token), toReadJob(req))
	if err != nil {
		return 0, wrapPlannerErr(err)
	}
	return Token(token), nil
}

// AwaitWriteResult suspends until token's write completes.
func (m *Manager) AwaitWriteResult(ctx context.Context, token Token) (WriteResult, error) {
	o, err := m.write.AwaitResult(ctx, queue.Token(token))
	if err != nil {
		return WriteResult{}, err
	}
	return fromWriteOutcome(o, token), nil
}

// AwaitReadResult suspends until token's read completes.
func (m *Manager) AwaitReadResult(ctx context.Context, token Token) (ReadResult, error) {
	o, err := m.read.AwaitResult(ctx, queue.Token(token))
	if err != nil {
		return ReadResult{}, err
	}
	return fromReadOutcome(o, token), nil
}

// Write submits req and suspends until it completes (spec §6.1 `write`).
func (m *Manager) Write(ctx context.Context, req WriteRequest) (WriteResult, error) {
	token, err := m.SubmitWrite(req)
	if err != nil {
		return WriteResult{}, err
	}
	return m.AwaitWriteResult(ctx, token)
}

// Read submits req and suspends until it completes (spec §6.1 `read`).
func (m *Manager) Read(ctx context.Context, req ReadRequest) (ReadResult, error) {
	token, err := m.SubmitRead(req)
	if err != nil {
		return ReadResult{}, err
	}
	return m.AwaitReadResult(ctx, token)
}

// PollWriteReady reports whether a write result is available; token == 0
// asks about the head of the completion FIFO.
func (m *Manager) PollWriteReady(token Token) bool { return m.write.PollReady(queue.Token(token)) }

// PollReadReady mirrors PollWriteReady for reads.
func (m *Manager) PollReadReady(token Token) bool { return m.read.PollReady(queue.Token(token)) }

// TakeWriteResult non-blockingly removes and returns a completed write
// result.
func (m *Manager) TakeWriteResult(token Token) (WriteResult, bool) {
	o, ok := m.write.TakeResult(queue.Token(token))
	if !ok {
		return WriteResult{}, false
	}
	return fromWriteOutcome(o, token), true
}

// TakeReadResult mirrors TakeWriteResult for reads.
func (m *Manager) TakeReadResult(token Token) (ReadResult, bool) {
	o, ok := m.read.TakeResult(queue.Token(token))
	if !ok {
		return ReadResult{}, false
	}
	return fromReadOutcome(o, token), true
}

// Idle is the conjunction of both sub-engines' idle states (spec §4.7).
func (m *Manager) Idle() bool { return m.write.Idle() && m.read.Idle() }

// WaitIdle suspends until both engines are idle.
func (m *Manager) WaitIdle(ctx context.Context) error {
	errCh := make(chan error, 2)
	go func() { errCh <- m.write.WaitIdle(ctx) }()
	go func() { errCh <- m.read.WaitIdle(ctx) }()
	if err := <-errCh; err != nil {
		return err
	}
	return <-errCh
}
