// Package membus provides an in-memory AXI4 slave: a flat byte array
// exposed through the five handshake channels the engine package consumes,
// suitable as the "device under test" in a simulation harness or as a
// backing store for quick manual exercising of a Manager.
package membus

import (
	"context"
	"fmt"
	"sync"

	"github.com/behrlich/axi4bus/internal/constants"
	"github.com/behrlich/axi4bus/internal/interfaces"
	"github.com/behrlich/axi4bus/internal/queue"
)

// ShardSize is the size of each memory shard. Sharded locking lets the
// read side (AR/R) and the write side (AW/W/B) of independent engines
// touch disjoint regions of the backing array without contending on a
// single mutex, while still serializing overlapping accesses correctly.
const ShardSize = 64 * 1024

// Memory is a RAM-backed AXI4 slave. Its AW/W tracking assumes a single
// write engine drives it (one issue task completes a burst's AW and all of
// its W beats before starting the next); the read side has no such
// restriction since AR carries no follow-on data beats.
type Memory struct {
	data      []byte
	size      int64
	shards    []sync.RWMutex
	byteWidth int

	mu      sync.Mutex
	current *awInfo

	bQueue []interfaces.BBeat
	bCond  *sync.Cond

	r *rState

	// Fault lets tests inject a non-OKAY response. For a write it is
	// called for every beat address of a burst once the burst's last W
	// beat has arrived, and the last non-OKAY answer becomes that burst's
	// single B response; for a read it is called once per R beat with that
	// beat's address. Returning the zero value (RespOkay) leaves the
	// default response untouched.
	Fault func(id uint32, addr uint64, isWrite bool) constants.ResponseCode
}

type awInfo struct {
	id       uint32
	addr     uint64
	size     int
	beats    int
	consumed int
}

// New creates a memory slave of the given size, byte-addressable through a
// bus of byteWidth bytes per beat.
func New(size int64, byteWidth int) *Memory {
	numShards := (size + ShardSize - 1) / ShardSize
	if numShards < 1 {
		numShards = 1
	}
	m := &Memory{
		data:      make([]byte, size),
		size:      size,
		shards:    make([]sync.RWMutex, numShards),
		byteWidth: byteWidth,
	}
	m.bCond = sync.NewCond(&m.mu)
	return m
}

func (m *Memory) shardRange(off, length int64) (start, end int) {
	start = int(off / ShardSize)
	end = int((off + length - 1) / ShardSize)
	if end >= len(m.shards) {
		end = len(m.shards) - 1
	}
	if start < 0 {
		start = 0
	}
	return start, end
}

// Size returns the byte size of the backing array.
func (m *Memory) Size() int64 { return m.size }

// ReadBytes copies length bytes starting at off for direct inspection in
// tests; out-of-range reads return the zero-filled tail.
func (m *Memory) ReadBytes(off int64, length int) []byte {
	out := make([]byte, length)
	m.readBytesInto(out, off)
	return out
}

// readBytesInto fills dst (whose length is the read size) from the shard
// identified by off, locking only the shards it touches. Out-of-range
// reads leave the uncovered tail zeroed.
func (m *Memory) readBytesInto(dst []byte, off int64) {
	length := int64(len(dst))
	if off >= m.size {
		return
	}
	avail := m.size - off
	if length > avail {
		length = avail
	}
	start, end := m.shardRange(off, length)
	for i := start; i <= end; i++ {
		m.shards[i].RLock()
	}
	copy(dst[:length], m.data[off:off+length])
	for i := start; i <= end; i++ {
		m.shards[i].RUnlock()
	}
}

func (m *Memory) fault(id uint32, addr uint64, isWrite bool) constants.ResponseCode {
	if m.Fault == nil {
		return constants.RespOkay
	}
	return m.Fault(id, addr, isWrite)
}

// ChannelSet returns the interfaces.ChannelSet an engine drives against.
func (m *Memory) ChannelSet(idWidth int) interfaces.ChannelSet {
	return interfaces.ChannelSet{
		AW:        &awChannel{m: m},
		W:         &wChannel{m: m},
		B:         &bChannel{m: m},
		AR:        &arChannel{m: m},
		R:         &rChannel{m: m},
		ByteWidth: m.byteWidth,
		IDWidth:   idWidth,
	}
}

type awChannel struct{ m *Memory }

func (c *awChannel) Drive(ctx context.Context, txn interfaces.AWTransaction) error {
	c.m.mu.Lock()
	defer c.m.mu.Unlock()
	if c.m.current != nil {
		return fmt.Errorf("membus: AW driven while a prior burst's W beats are still outstanding")
	}
	c.m.current = &awInfo{
		id:    txn.ID,
		addr:  txn.Addr,
		size:  1 << txn.Size,
		beats: int(txn.Len) + 1,
	}
	return nil
}

type wChannel struct{ m *Memory }

func (c *wChannel) Send(beat interfaces.WBeat) error {
	c.m.mu.Lock()
	cur := c.m.current
	if cur == nil {
		c.m.mu.Unlock()
		return fmt.Errorf("membus: W beat with no outstanding AW transaction")
	}
	addr := cur.addr
	byteWidth := c.m.byteWidth
	c.m.mu.Unlock()

	wordBase := (addr / uint64(byteWidth)) * uint64(byteWidth)
	start, end := c.m.shardRange(int64(wordBase), int64(byteWidth))
	for i := start; i <= end; i++ {
		c.m.shards[i].Lock()
	}
	for lane := 0; lane < byteWidth; lane++ {
		if beat.Strb&(1<<uint(lane)) != 0 {
			idx := int64(wordBase) + int64(lane)
			if idx >= 0 && idx < c.m.size {
				c.m.data[idx] = beat.Data[lane]
			}
		}
	}
	for i := start; i <= end; i++ {
		c.m.shards[i].Unlock()
	}

	c.m.mu.Lock()
	cur.addr += uint64(cur.size)
	cur.consumed++
	if cur.consumed >= cur.beats {
		resp := constants.RespOkay
		beatAddr := cur.addr - uint64(cur.size*cur.beats)
		for k := 0; k < cur.beats; k++ {
			if r := c.m.fault(cur.id, beatAddr, true); r != constants.RespOkay {
				resp = r
			}
			beatAddr += uint64(cur.size)
		}
		c.m.bQueue = append(c.m.bQueue, interfaces.BBeat{ID: cur.id, Resp: resp, User: beat.User})
		c.m.bCond.Signal()
		c.m.current = nil
	}
	c.m.mu.Unlock()
	return nil
}

type bChannel struct{ m *Memory }

func (c *bChannel) Wait(ctx context.Context) error {
	c.m.mu.Lock()
	defer c.m.mu.Unlock()
	return waitOnCond(ctx, c.m.bCond, func() bool { return len(c.m.bQueue) > 0 })
}

func (c *bChannel) Recv() (interfaces.BBeat, error) {
	c.m.mu.Lock()
	defer c.m.mu.Unlock()
	if len(c.m.bQueue) == 0 {
		return interfaces.BBeat{}, fmt.Errorf("membus: B Recv with no buffered beat")
	}
	beat := c.m.bQueue[0]
	c.m.bQueue = c.m.bQueue[1:]
	return beat, nil
}

type arChannel struct{ m *Memory }

func (c *arChannel) Drive(ctx context.Context, txn interfaces.ARTransaction) error {
	size := 1 << txn.Size
	beats := int(txn.Len) + 1
	addr := txn.Addr
	byteWidth := c.m.byteWidth

	rc := c.m.rChan()
	rc.mu.Lock()
	for k := 0; k < beats; k++ {
		wordBase := (addr / uint64(byteWidth)) * uint64(byteWidth)
		data := queue.GetBuffer(byteWidth)
		c.m.readBytesInto(data, int64(wordBase))
		resp := c.m.fault(txn.ID, addr, false)
		rc.queue = append(rc.queue, interfaces.RBeat{ID: txn.ID, Data: data, Resp: resp, Last: k == beats-1, User: txn.User})
		addr += uint64(size)
	}
	rc.cond.Signal()
	rc.mu.Unlock()
	return nil
}

// rState is the R-channel's own small FIFO, separate from the write side's
// state so concurrent read and write engines never contend on the same
// lock for unrelated channels.
type rState struct {
	mu    sync.Mutex
	cond  *sync.Cond
	queue []interfaces.RBeat
}

func (m *Memory) rChan() *rState {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.r == nil {
		m.r = &rState{}
		m.r.cond = sync.NewCond(&m.r.mu)
	}
	return m.r
}

type rChannel struct{ m *Memory }

func (c *rChannel) Wait(ctx context.Context) error {
	rc := c.m.rChan()
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return waitOnCond(ctx, rc.cond, func() bool { return len(rc.queue) > 0 })
}

func (c *rChannel) Recv() (interfaces.RBeat, error) {
	rc := c.m.rChan()
	rc.mu.Lock()
	defer rc.mu.Unlock()
	if len(rc.queue) == 0 {
		return interfaces.RBeat{}, fmt.Errorf("membus: R Recv with no buffered beat")
	}
	beat := rc.queue[0]
	rc.queue = rc.queue[1:]
	return beat, nil
}

func waitOnCond(ctx context.Context, cond *sync.Cond, pred func() bool) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			// No cond.L here: Broadcast doesn't need it, and taking it can
			// deadlock against a waiter already re-locked and waiting on us.
			cond.Broadcast()
		case <-stop:
		}
		close(done)
	}()
	defer func() {
		close(stop)
		<-done
	}()
	for !pred() {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		cond.Wait()
	}
	return nil
}
