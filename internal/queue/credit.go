package queue

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// CreditPool is the ID credit pool described by the burst planner: an
// ordered container of currently-free transaction IDs, initially
// {0..width-1} in ascending order. An ID is in the pool iff no burst using
// it is currently outstanding. Acquire suspends the caller when the pool is
// empty; releasing an ID that is already free is a fatal protocol
// violation, not an ordinary error, so Release panics rather than
// returning an error.
//
// Implemented as a fixed-size array indexed by ID plus an ordered free
// list, rather than a hash map, so membership tests and double-release
// detection are O(1) without hashing.
type CreditPool struct {
	mu    sync.Mutex
	cond  *sync.Cond
	free  []uint32 // ordered container of currently-free IDs
	inUse []bool   // inUse[id] true iff id is currently checked out
	width int
}

// NewCreditPool builds a pool over IDs 0..width-1, all initially free.
func NewCreditPool(width int) *CreditPool {
	if width <= 0 {
		panic("queue: NewCreditPool requires width > 0")
	}
	p := &CreditPool{
		free:  make([]uint32, width),
		inUse: make([]bool, width),
		width: width,
	}
	p.cond = sync.NewCond(&p.mu)
	for i := 0; i < width; i++ {
		p.free[i] = uint32(i)
	}
	return p
}

// Acquire blocks until an ID is free, then checks it out and returns it
// along with how long the caller waited (0 if an ID was free immediately).
// Returns ctx.Err() if ctx is cancelled before an ID becomes available.
func (p *CreditPool) Acquire(ctx context.Context) (id uint32, waitedNs int64, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	start := time.Now()
	hadToWait := len(p.free) == 0

	if err := waitCond(ctx, p.cond, func() bool { return len(p.free) > 0 }); err != nil {
		return 0, 0, err
	}

	if hadToWait {
		waitedNs = time.Since(start).Nanoseconds()
	}

	id = p.free[0]
	p.free = p.free[1:]
	if p.inUse[id] {
		panic(fmt.Sprintf("queue: credit pool handed out already-checked-out id %d", id))
	}
	p.inUse[id] = true
	return id, waitedNs, nil
}

// Release returns id to the pool, waking one waiter. Releasing an ID that
// is not currently checked out is a fatal invariant violation: it means
// either a caller double-released or the engine issued a burst on an ID it
// never acquired.
func (p *CreditPool) Release(id uint32) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if int(id) >= p.width {
		panic(fmt.Sprintf("queue: credit pool release of out-of-range id %d (width %d)", id, p.width))
	}
	if !p.inUse[id] {
		panic(fmt.Sprintf("queue: double release of credit pool id %d", id))
	}
	p.inUse[id] = false
	p.free = append(p.free, id)
	p.cond.Signal()
}

// Len reports the number of currently-free IDs.
func (p *CreditPool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.free)
}

// Width reports the total number of IDs the pool manages.
func (p *CreditPool) Width() int {
	return p.width
}
