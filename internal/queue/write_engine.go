package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/behrlich/axi4bus/internal/constants"
	"github.com/behrlich/axi4bus/internal/interfaces"
)

// WriteJob is one caller-submitted write, expressed in terms this package
// owns (no dependency on the root package's Attributes/Token types, to
// avoid an import cycle).
type WriteJob struct {
	Address   uint64
	Data      []byte
	BurstType constants.BurstType
	SizeLog2  int
	Lock      uint8
	Cache     uint8
	Prot      uint8
	QoS       uint8
	Region    uint8
	User      uint32
}

// WriteOutcome is the result of a completed write.
type WriteOutcome struct {
	Address       uint64
	Length        int
	Response      constants.ResponseCode
	BeatResponses []constants.ResponseCode
	Users         []uint32
}

// debugf and errorf are nil-safe wrappers around the engine's optional
// logger, matching the teacher's Runner convention of staying silent when
// no logger was supplied.
func (e *WriteEngine) debugf(format string, args ...interface{}) {
	if e.logger != nil {
		e.logger.Debugf(format, args...)
	}
}

func (e *WriteEngine) errorf(format string, args ...interface{}) {
	if e.logger != nil {
		e.logger.Errorf(format, args...)
	}
}

func aggregateResp(current, beat constants.ResponseCode) constants.ResponseCode {
	if beat != constants.RespOkay {
		return beat
	}
	return current
}

type pendingWrite struct {
	token   Token
	address uint64
	plan    *Plan
	length  int
	start   time.Time
}

// WriteEngine is the write-side issue task + response task pair (spec §4.3,
// §4.5), sharing an ID credit pool and a token registry scoped to writes
// only (the read engine has its own of each; the two share no state, per
// §2's "mirror-image engines").
type WriteEngine struct {
	channels    interfaces.ChannelSet
	credit      *CreditPool
	registry    *Registry[WriteJob, WriteOutcome]
	pending     *pendingQueue[pendingWrite]
	logger      interfaces.Logger
	observer    interfaces.Observer
	maxBurstLen int
}

// NewWriteEngine builds a write engine bound to channels. logger and
// observer may be nil-equivalents (a no-op Logger/interfaces.NoOpObserver).
// maxBurstLen caps beats per burst at or below the protocol ceiling
// (constants.MaxBurstLen); callers pass the value from BusParams.
func NewWriteEngine(channels interfaces.ChannelSet, logger interfaces.Logger, observer interfaces.Observer, maxBurstLen int) *WriteEngine {
	if maxBurstLen <= 0 || maxBurstLen > constants.MaxBurstLen {
		maxBurstLen = constants.MaxBurstLen
	}
	return &WriteEngine{
		channels:    channels,
		credit:      NewCreditPool(1 << uint(channels.IDWidth)),
		registry:    NewRegistry[WriteJob, WriteOutcome](),
		pending:     newPendingQueue[pendingWrite](),
		logger:      logger,
		observer:    observer,
		maxBurstLen: maxBurstLen,
	}
}

// Submit validates and enqueues job, returning its token. Validation
// failures (EmptyRequest, InvalidSize, DuplicateToken) surface
// synchronously, per the caller-errors-at-submission policy (spec §7).
func (e *WriteEngine) Submit(token Token, job WriteJob) (Token, error) {
	if len(job.Data) == 0 {
		return 0, &PlannerError{Op: "submit_write", Code: "EmptyRequest", Msg: "data must not be empty"}
	}
	if job.SizeLog2 >= 0 {
		if (1 << uint(job.SizeLog2)) > e.channels.ByteWidth {
			return 0, &PlannerError{Op: "submit_write", Code: "InvalidSize", Msg: "2^size_log2 exceeds bus byte width"}
		}
	}
	return e.registry.Submit(token, job)
}

func (e *WriteEngine) Idle() bool                          { return e.registry.Idle() }
func (e *WriteEngine) WaitIdle(ctx context.Context) error  { return e.registry.WaitIdle(ctx) }
func (e *WriteEngine) PollReady(token Token) bool           { return e.registry.PollReady(token) }
func (e *WriteEngine) TakeResult(token Token) (WriteOutcome, bool) {
	return e.registry.TakeResult(token)
}
func (e *WriteEngine) AwaitResult(ctx context.Context, token Token) (WriteOutcome, error) {
	return e.registry.AwaitResult(ctx, token)
}

// Run starts the issue and response tasks and blocks until ctx is
// cancelled or one of them hits a fatal error.
func (e *WriteEngine) Run(ctx context.Context) error {
	errCh := make(chan error, 2)
	go func() { errCh <- guardedRun(ctx, e.issueLoop) }()
	go func() { errCh <- guardedRun(ctx, e.responseLoop) }()

	err := <-errCh
	if err != nil && err != context.Canceled {
		return err
	}
	return <-errCh
}

func (e *WriteEngine) resolveSizeLog2(job WriteJob) int {
	if job.SizeLog2 >= 0 {
		return job.SizeLog2
	}
	size := 0
	for (1 << uint(size+1)) <= e.channels.ByteWidth {
		size++
	}
	return size
}

func (e *WriteEngine) issueLoop(ctx context.Context) error {
	for {
		token, job, err := e.registry.Dequeue(ctx)
		if err != nil {
			return err
		}

		e.debugf("write issue: token=%d addr=%#x len=%d", token, job.Address, len(job.Data))

		sizeLog2 := e.resolveSizeLog2(job)
		plan, waitedNs, err := PlanBursts(ctx, e.credit, job.Address, len(job.Data), sizeLog2, e.channels.ByteWidth, e.maxBurstLen)
		if err != nil {
			e.errorf("write issue: token=%d planning failed: %v", token, err)
			return err
		}
		if waitedNs > 0 {
			e.observer.ObserveCreditWait(uint64(waitedNs))
		}

		beatsByBurst := GenerateWriteBeats(plan, job.Data, e.channels.ByteWidth)

		for bi, burst := range plan.Bursts {
			txn := interfaces.AWTransaction{
				ID:     burst.ID,
				Addr:   burst.Addr,
				Len:    uint8(burst.Beats - 1),
				Size:   uint8(burst.SizeLog2),
				Burst:  job.BurstType,
				Lock:   job.Lock,
				Cache:  job.Cache,
				Prot:   job.Prot,
				QoS:    job.QoS,
				Region: job.Region,
				User:   job.User,
			}
			if err := e.channels.AW.Drive(ctx, txn); err != nil {
				e.errorf("write issue: token=%d AW drive failed: %v", token, err)
				return fmt.Errorf("write engine: AW drive: %w", err)
			}
			e.observer.ObserveBurstIssued(burst.Beats, uint64(burst.Beats*plan.NumBytes))

			for _, wb := range beatsByBurst[bi] {
				beat := interfaces.WBeat{Data: wb.WData, Strb: wb.WStrb, Last: wb.WLast, User: job.User}
				if err := e.channels.W.Send(beat); err != nil {
					return fmt.Errorf("write engine: W send: %w", err)
				}
			}
		}

		e.pending.push(pendingWrite{token: token, address: job.Address, plan: plan, length: len(job.Data), start: time.Now()})
	}
}

func (e *WriteEngine) responseLoop(ctx context.Context) error {
	byID := make([][]interfaces.BBeat, e.credit.Width())

	for {
		pw, err := e.pending.pop(ctx)
		if err != nil {
			return err
		}

		aggregate := constants.RespOkay
		var beatResponses []constants.ResponseCode
		var users []uint32

		for _, burst := range pw.plan.Bursts {
			id := burst.ID
			for len(byID[id]) == 0 {
				if err := e.channels.B.Wait(ctx); err != nil {
					return fmt.Errorf("write engine: B wait: %w", err)
				}
				beat, err := e.channels.B.Recv()
				if err != nil {
					return fmt.Errorf("write engine: B recv: %w", err)
				}
				if int(beat.ID) >= len(byID) {
					panic(fmt.Sprintf("write engine: B beat for unknown id %d", beat.ID))
				}
				byID[beat.ID] = append(byID[beat.ID], beat)
			}

			beat := byID[id][0]
			byID[id] = byID[id][1:]

			if beat.Resp != constants.RespOkay {
				e.errorf("write response: token=%d id=%d resp=%s", pw.token, id, beat.Resp)
			}
			aggregate = aggregateResp(aggregate, beat.Resp)
			beatResponses = append(beatResponses, beat.Resp)
			users = append(users, beat.User)
			e.observer.ObserveBeatTransferred(beat.Resp)

			e.credit.Release(id)
		}

		result := WriteOutcome{
			Address:       pw.address,
			Length:        pw.length,
			Response:      aggregate,
			BeatResponses: beatResponses,
			Users:         users,
		}
		e.registry.Complete(pw.token, result)
		e.observer.ObserveRequestComplete(true, uint64(pw.length), uint64(time.Since(pw.start).Nanoseconds()))
		e.debugf("write complete: token=%d addr=%#x len=%d resp=%s", pw.token, pw.address, pw.length, aggregate)
	}
}
