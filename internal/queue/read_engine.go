package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/behrlich/axi4bus/internal/constants"
	"github.com/behrlich/axi4bus/internal/interfaces"
)

// ReadJob is one caller-submitted read.
type ReadJob struct {
	Address   uint64
	Length    int
	BurstType constants.BurstType
	SizeLog2  int
	Lock      uint8
	Cache     uint8
	Prot      uint8
	QoS       uint8
	Region    uint8
	User      uint32
}

// ReadOutcome is the result of a completed read.
type ReadOutcome struct {
	Address       uint64
	Data          []byte
	Response      constants.ResponseCode
	BeatResponses []constants.ResponseCode
	Users         []uint32
}

func (e *ReadEngine) debugf(format string, args ...interface{}) {
	if e.logger != nil {
		e.logger.Debugf(format, args...)
	}
}

func (e *ReadEngine) errorf(format string, args ...interface{}) {
	if e.logger != nil {
		e.logger.Errorf(format, args...)
	}
}

type pendingRead struct {
	token   Token
	address uint64
	plan    *Plan
	length  int
	start   time.Time
}

// ReadEngine mirrors WriteEngine for the read side (spec §4.4, §4.6): AR
// issue task, R demultiplexing response task, its own credit pool and
// token registry. Shares no state with WriteEngine.
type ReadEngine struct {
	channels    interfaces.ChannelSet
	credit      *CreditPool
	registry    *Registry[ReadJob, ReadOutcome]
	pending     *pendingQueue[pendingRead]
	logger      interfaces.Logger
	observer    interfaces.Observer
	maxBurstLen int
}

// NewReadEngine builds a read engine bound to channels. maxBurstLen caps
// beats per burst at or below the protocol ceiling (constants.MaxBurstLen);
// callers pass the value from BusParams.
func NewReadEngine(channels interfaces.ChannelSet, logger interfaces.Logger, observer interfaces.Observer, maxBurstLen int) *ReadEngine {
	if maxBurstLen <= 0 || maxBurstLen > constants.MaxBurstLen {
		maxBurstLen = constants.MaxBurstLen
	}
	return &ReadEngine{
		channels:    channels,
		credit:      NewCreditPool(1 << uint(channels.IDWidth)),
		registry:    NewRegistry[ReadJob, ReadOutcome](),
		pending:     newPendingQueue[pendingRead](),
		logger:      logger,
		observer:    observer,
		maxBurstLen: maxBurstLen,
	}
}

func (e *ReadEngine) Submit(token Token, job ReadJob) (Token, error) {
	if job.Length <= 0 {
		return 0, &PlannerError{Op: "submit_read", Code: "EmptyRequest", Msg: "length must be positive"}
	}
	if job.SizeLog2 >= 0 {
		if (1 << uint(job.SizeLog2)) > e.channels.ByteWidth {
			return 0, &PlannerError{Op: "submit_read", Code: "InvalidSize", Msg: "2^size_log2 exceeds bus byte width"}
		}
	}
	return e.registry.Submit(token, job)
}

func (e *ReadEngine) Idle() bool                         { return e.registry.Idle() }
func (e *ReadEngine) WaitIdle(ctx context.Context) error { return e.registry.WaitIdle(ctx) }
func (e *ReadEngine) PollReady(token Token) bool         { return e.registry.PollReady(token) }
func (e *ReadEngine) TakeResult(token Token) (ReadOutcome, bool) {
	return e.registry.TakeResult(token)
}
func (e *ReadEngine) AwaitResult(ctx context.Context, token Token) (ReadOutcome, error) {
	return e.registry.AwaitResult(ctx, token)
}

func (e *ReadEngine) Run(ctx context.Context) error {
	errCh := make(chan error, 2)
	go func() { errCh <- guardedRun(ctx, e.issueLoop) }()
	go func() { errCh <- guardedRun(ctx, e.responseLoop) }()

	err := <-errCh
	if err != nil && err != context.Canceled {
		return err
	}
	return <-errCh
}

func (e *ReadEngine) resolveSizeLog2(job ReadJob) int {
	if job.SizeLog2 >= 0 {
		return job.SizeLog2
	}
	size := 0
	for (1 << uint(size+1)) <= e.channels.ByteWidth {
		size++
	}
	return size
}

func (e *ReadEngine) issueLoop(ctx context.Context) error {
	for {
		token, job, err := e.registry.Dequeue(ctx)
		if err != nil {
			return err
		}

		e.debugf("read issue: token=%d addr=%#x len=%d", token, job.Address, job.Length)

		sizeLog2 := e.resolveSizeLog2(job)
		plan, waitedNs, err := PlanBursts(ctx, e.credit, job.Address, job.Length, sizeLog2, e.channels.ByteWidth, e.maxBurstLen)
		if err != nil {
			e.errorf("read issue: token=%d planning failed: %v", token, err)
			return err
		}
		if waitedNs > 0 {
			e.observer.ObserveCreditWait(uint64(waitedNs))
		}

		for _, burst := range plan.Bursts {
			txn := interfaces.ARTransaction{
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
			if err := e.channels.AR.Drive(ctx, txn); err != nil {
				e.errorf("read issue: token=%d AR drive failed: %v", token, err)
				return fmt.Errorf("read engine: AR drive: %w", err)
			}
			e.observer.ObserveBurstIssued(burst.Beats, uint64(burst.Beats*plan.NumBytes))
		}

		e.pending.push(pendingRead{token: token, address: job.Address, plan: plan, length: job.Length, start: time.Now()})
	}
}

func (e *ReadEngine) responseLoop(ctx context.Context) error {
	byID := make([][]interfaces.RBeat, e.credit.Width())

	for {
		pr, err := e.pending.pop(ctx)
		if err != nil {
			return err
		}

		aggregate := constants.RespOkay
		var beatResponses []constants.ResponseCode
		var users []uint32
		var rdataBeats [][]byte

		for _, burst := range pr.plan.Bursts {
			id := burst.ID
			for bk := 0; bk < burst.Beats; bk++ {
				for len(byID[id]) == 0 {
					if err := e.channels.R.Wait(ctx); err != nil {
						return fmt.Errorf("read engine: R wait: %w", err)
					}
					beat, err := e.channels.R.Recv()
					if err != nil {
						return fmt.Errorf("read engine: R recv: %w", err)
					}
					if int(beat.ID) >= len(byID) {
						panic(fmt.Sprintf("read engine: R beat for unknown id %d", beat.ID))
					}
					byID[beat.ID] = append(byID[beat.ID], beat)
				}

				beat := byID[id][0]
				byID[id] = byID[id][1:]

				wantLast := bk == burst.Beats-1
				if beat.Last != wantLast {
					panic(fmt.Sprintf("read engine: rlast=%v on beat %d of burst id %d, want %v", beat.Last, bk, id, wantLast))
				}

				if beat.Resp != constants.RespOkay {
					e.errorf("read response: token=%d id=%d resp=%s", pr.token, id, beat.Resp)
				}
				aggregate = aggregateResp(aggregate, beat.Resp)
				beatResponses = append(beatResponses, beat.Resp)
				users = append(users, beat.User)
				rdataBeats = append(rdataBeats, beat.Data)
				e.observer.ObserveBeatTransferred(beat.Resp)
			}
			e.credit.Release(id)
		}

		data := AssembleRead(pr.plan, rdataBeats, e.channels.ByteWidth, pr.length)
		for _, rd := range rdataBeats {
			PutBuffer(rd)
		}

		result := ReadOutcome{
			Address:       pr.address,
			Data:          data,
			Response:      aggregate,
			BeatResponses: beatResponses,
			Users:         users,
		}
		e.registry.Complete(pr.token, result)
		e.observer.ObserveRequestComplete(false, uint64(pr.length), uint64(time.Since(pr.start).Nanoseconds()))
		e.debugf("read complete: token=%d addr=%#x len=%d resp=%s", pr.token, pr.address, pr.length, aggregate)
	}
}
