package queue

import (
	"context"

	"github.com/behrlich/axi4bus/internal/constants"
)

// BurstDescriptor is one planned AXI4 burst: a credited ID, the starting
// address, a beat count in [1,256], and the per-beat transfer size.
type BurstDescriptor struct {
	ID       uint32
	Addr     uint64
	Beats    int
	SizeLog2 int
}

// Plan is the output of the burst planner: the burst list plus the derived
// quantities the response task needs to recompute byte-lane slicing
// independently (spec §4.1).
type Plan struct {
	Bursts []BurstDescriptor

	NumBytes        int // beat granularity, 2^size_log2
	AlignedAddr     uint64
	WordAddr        uint64
	StartByteOffset int
	EndByteOffset   int
	TotalBeats      int
}

// WriteBeat is one fully-shaped W-channel beat.
type WriteBeat struct {
	WData []byte // W bytes, caller data placed at the active lanes, rest zero
	WStrb uint64
	WLast bool
}

// deriveQuantities computes the address-geometry values shared by the write
// and read planners (spec §4.1). It is the "one shared planner" the design
// notes recommend (§9 note 3), used by both sides so the same lane-offset
// arithmetic only exists once in this codebase.
func deriveQuantities(address uint64, dataLength int, sizeLog2 int, byteWidth int) (numBytes int, alignedAddr, wordAddr uint64, startOff, endOff, totalBeats int, err error) {
	if dataLength <= 0 {
		return 0, 0, 0, 0, 0, 0, newFatalLikeError("planner", "EmptyRequest", "data_length must be positive")
	}
	numBytes = 1 << uint(sizeLog2)
	if numBytes > byteWidth {
		return 0, 0, 0, 0, 0, 0, newFatalLikeError("planner", "InvalidSize", "2^size_log2 exceeds bus byte width")
	}

	alignedAddr = (address / uint64(numBytes)) * uint64(numBytes)
	wordAddr = (address / uint64(byteWidth)) * uint64(byteWidth)
	startOff = int(address % uint64(byteWidth))
	endOff = int((address+uint64(dataLength)-1)%uint64(byteWidth)) + 1
	totalBeats = (dataLength + int(address%uint64(numBytes)) + numBytes - 1) / numBytes

	return numBytes, alignedAddr, wordAddr, startOff, endOff, totalBeats, nil
}

// newFatalLikeError lets callers in this package surface planner errors without
// this file importing the root package (which would create an import
// cycle, since the root package imports internal/queue).
var newFatalLikeError = func(op, code, msg string) error {
	return &PlannerError{Op: op, Code: code, Msg: msg}
}

// PlannerError is a synchronous, caller-visible planning failure (spec §7
// "caller errors"): DuplicateToken, InvalidSize, EmptyRequest.
type PlannerError struct {
	Op   string
	Code string
	Msg  string
}

func (e *PlannerError) Error() string { return e.Op + ": " + e.Code + ": " + e.Msg }

// PlanBursts acquires one credited ID per burst and splits the request into
// a sequence of bursts respecting the 256-beat cap, the caller-supplied
// max_burst_len, and the 4 KiB boundary rule (spec §4.1 steps 1-5).
func PlanBursts(ctx context.Context, pool *CreditPool, address uint64, dataLength int, sizeLog2 int, byteWidth int, maxBurstLen int) (*Plan, int64, error) {
	numBytes, alignedAddr, wordAddr, startOff, endOff, totalBeats, err := deriveQuantities(address, dataLength, sizeLog2, byteWidth)
	if err != nil {
		return nil, 0, err
	}

	plan := &Plan{
		NumBytes:        numBytes,
		AlignedAddr:     alignedAddr,
		WordAddr:        wordAddr,
		StartByteOffset: startOff,
		EndByteOffset:   endOff,
		TotalBeats:      totalBeats,
	}

	curAddr := alignedAddr
	beatsRemaining := totalBeats
	var totalWaitedNs int64

	for beatsRemaining > 0 {
		id, waitedNs, err := pool.Acquire(ctx)
		if err != nil {
			return nil, totalWaitedNs, err
		}
		totalWaitedNs += waitedNs

		beats := beatsRemaining
		if beats > constants.MaxBurstLen {
			beats = constants.MaxBurstLen
		}
		if beats > maxBurstLen {
			beats = maxBurstLen
		}

		// 4 KiB-boundary rule: clamp beats so the burst cannot cross a
		// 4096-byte address boundary.
		spaceInPage := constants.FourKiB - int(curAddr%constants.FourKiB)
		maxBytesForBeats := beats * numBytes
		if maxBytesForBeats > spaceInPage {
			beats = (spaceInPage + numBytes - 1) / numBytes
		}

		plan.Bursts = append(plan.Bursts, BurstDescriptor{
			ID:       id,
			Addr:     curAddr,
			Beats:    beats,
			SizeLog2: sizeLog2,
		})

		curAddr += uint64(beats * numBytes)
		beatsRemaining -= beats
	}

	return plan, totalWaitedNs, nil
}

// GenerateWriteBeats shapes every W-channel beat for the plan's bursts from
// the caller's source bytes, grouped by burst. k runs globally across
// total_beats (not reset per burst) for the start/stop/cycle_offset
// arithmetic, matching §4.1's "walk a cycle index k from 0 to
// total_beats-1"; wlast is asserted on the last beat of each individual
// burst instead.
func GenerateWriteBeats(plan *Plan, data []byte, byteWidth int) [][]WriteBeat {
	result := make([][]WriteBeat, len(plan.Bursts))
	cycleOffset := int(plan.AlignedAddr - plan.WordAddr)
	srcPos := 0
	k := 0

	for bi, burst := range plan.Bursts {
		beats := make([]WriteBeat, burst.Beats)
		for bk := 0; bk < burst.Beats; bk++ {
			start := cycleOffset
			if k == 0 {
				start = plan.StartByteOffset
			}
			stop := cycleOffset + plan.NumBytes
			if k == plan.TotalBeats-1 {
				stop = plan.EndByteOffset
			}

			wdata := make([]byte, byteWidth)
			for lane := start; lane < stop; lane++ {
				if srcPos < len(data) {
					wdata[lane] = data[srcPos]
					srcPos++
				}
			}

			fullMask := (uint64(1) << uint(byteWidth)) - 1
			strb := (fullMask << uint(start)) & (fullMask >> uint(byteWidth-stop))

			beats[bk] = WriteBeat{
				WData: wdata,
				WStrb: strb,
				WLast: bk == burst.Beats-1,
			}

			cycleOffset = (cycleOffset + plan.NumBytes) % byteWidth
			k++
		}
		result[bi] = beats
	}
	return result
}

// readCursor replays the write side's lane-offset roll independently, as
// the response task does (spec §4.1 "Read reassembly offsets"). It
// deliberately does not clamp stop to end_byte_offset on the final beat,
// preserving the ambiguity noted in §9 note 2: only the final byte-buffer
// truncation to the requested length bounds the read's output.
type readCursor struct {
	cycleOffset     int
	startByteOffset int
	byteWidth       int
	seenFirst       bool
}

func newReadCursor(plan *Plan, byteWidth int) *readCursor {
	return &readCursor{
		cycleOffset:     int(plan.AlignedAddr - plan.WordAddr),
		startByteOffset: plan.StartByteOffset,
		byteWidth:       byteWidth,
	}
}

// next returns the [start,stop) lane window for the next beat and advances
// the cursor.
func (c *readCursor) next(numBytes int) (start, stop int) {
	if !c.seenFirst {
		start = c.startByteOffset
		c.seenFirst = true
	} else {
		start = c.cycleOffset
	}
	stop = c.cycleOffset + numBytes
	c.cycleOffset = (c.cycleOffset + numBytes) % c.byteWidth
	return start, stop
}

// AssembleRead copies received R-beat data into out following the read
// reassembly rule, then truncates to length. beatsData must list every
// beat's rdata across all bursts of the plan, in arrival order within each
// burst and burst order.
func AssembleRead(plan *Plan, beatsData [][]byte, byteWidth int, length int) []byte {
	cursor := newReadCursor(plan, byteWidth)
	out := make([]byte, 0, length+byteWidth)

	for _, rdata := range beatsData {
		start, stop := cursor.next(plan.NumBytes)
		if start < 0 {
			start = 0
		}
		if stop > len(rdata) {
			stop = len(rdata)
		}
		if start < stop {
			out = append(out, rdata[start:stop]...)
		}
	}

	if len(out) > length {
		out = out[:length]
	}
	return out
}
