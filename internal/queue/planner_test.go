package queue

import (
	"context"
	"testing"

	"github.com/behrlich/axi4bus/internal/constants"
)

func TestPlanBursts_S1_UnalignedNarrowWrite(t *testing.T) {
	pool := NewCreditPool(16)
	ctx := context.Background()

	plan, _, err := PlanBursts(ctx, pool, 0x1003, 5, 0, 4, constants.MaxBurstLen)
	if err != nil {
		t.Fatalf("PlanBursts() error: %v", err)
	}
	if plan.TotalBeats != 5 {
		t.Errorf("TotalBeats = %d, want 5", plan.TotalBeats)
	}
	if len(plan.Bursts) != 1 {
		t.Fatalf("len(Bursts) = %d, want 1", len(plan.Bursts))
	}
	if plan.Bursts[0].Beats != 5 {
		t.Errorf("Bursts[0].Beats = %d, want 5", plan.Bursts[0].Beats)
	}

	data := []byte{0xAA, 0xBB, 0xCB, 0xDD, 0xEE}
	beats := GenerateWriteBeats(plan, data, 4)
	if len(beats) != 1 || len(beats[0]) != 5 {
		t.Fatalf("GenerateWriteBeats shape = %v", beats)
	}

	mem := make([]byte, 0x2000)
	for i := range mem {
		mem[i] = 0x55
	}
	writeBeatsToMem(t, mem, plan, beats, 4)

	got := mem[0x1003:0x1008]
	want := []byte{0xAA, 0xBB, 0xCB, 0xDD, 0xEE}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("mem[0x1003+%d] = %#x, want %#x", i, got[i], want[i])
		}
	}
	if mem[0x1002] != 0x55 {
		t.Errorf("mem[0x1002] = %#x, want untouched 0x55", mem[0x1002])
	}
	if mem[0x1008] != 0x55 {
		t.Errorf("mem[0x1008] = %#x, want untouched 0x55", mem[0x1008])
	}
}

func TestPlanBursts_S2_BoundarySpanningWrite(t *testing.T) {
	pool := NewCreditPool(16)
	ctx := context.Background()

	plan, _, err := PlanBursts(ctx, pool, 0x0FF0, 32, 3, 8, constants.MaxBurstLen)
	if err != nil {
		t.Fatalf("PlanBursts() error: %v", err)
	}
	if len(plan.Bursts) != 2 {
		t.Fatalf("len(Bursts) = %d, want 2", len(plan.Bursts))
	}
	if plan.Bursts[0].Addr != 0x0FF0 || plan.Bursts[0].Beats != 2 {
		t.Errorf("Bursts[0] = %+v, want addr=0xFF0 beats=2", plan.Bursts[0])
	}
	if plan.Bursts[1].Addr != 0x1000 || plan.Bursts[1].Beats != 2 {
		t.Errorf("Bursts[1] = %+v, want addr=0x1000 beats=2", plan.Bursts[1])
	}
	for _, b := range plan.Bursts {
		if (b.Addr%constants.FourKiB)+uint64(b.Beats*8) > constants.FourKiB {
			t.Errorf("burst %+v crosses 4 KiB boundary", b)
		}
	}
}

func TestPlanBursts_S3_LargeWrite1024(t *testing.T) {
	pool := NewCreditPool(16)
	ctx := context.Background()

	plan, _, err := PlanBursts(ctx, pool, 0x1000, 1024, 2, 4, 64)
	if err != nil {
		t.Fatalf("PlanBursts() error: %v", err)
	}
	if len(plan.Bursts) != 4 {
		t.Fatalf("len(Bursts) = %d, want 4", len(plan.Bursts))
	}
	for i, b := range plan.Bursts {
		if b.Beats != 64 {
			t.Errorf("Bursts[%d].Beats = %d, want 64", i, b.Beats)
		}
	}

	data := make([]byte, 1024)
	for i := range data {
		data[i] = byte(i)
	}
	beats := GenerateWriteBeats(plan, data, 4)

	mem := make([]byte, 0x2000)
	writeBeatsToMem(t, mem, plan, beats, 4)

	got := mem[0x1000 : 0x1000+1024]
	for i, b := range got {
		if b != byte(i) {
			t.Fatalf("mem[0x1000+%d] = %#x, want %#x", i, b, byte(i))
		}
	}
}

func TestPlanBursts_ErrorConditions(t *testing.T) {
	pool := NewCreditPool(4)
	ctx := context.Background()

	if _, _, err := PlanBursts(ctx, pool, 0, 0, 0, 4, constants.MaxBurstLen); err == nil {
		t.Error("PlanBursts() with zero length returned nil error")
	}
	if _, _, err := PlanBursts(ctx, pool, 0, 4, 3, 4, constants.MaxBurstLen); err == nil {
		t.Error("PlanBursts() with size_log2 exceeding byte width returned nil error")
	}
}

func TestAssembleRead_TruncatesToLength(t *testing.T) {
	pool := NewCreditPool(16)
	ctx := context.Background()

	// Full-width beats from an unaligned address: two beats carry 3 + 4
	// lane bytes, two more than the 5 requested.
	plan, _, err := PlanBursts(ctx, pool, 0x1001, 5, 2, 4, constants.MaxBurstLen)
	if err != nil {
		t.Fatalf("PlanBursts() error: %v", err)
	}

	// One rdata word per beat, fully populated; AssembleRead must still
	// truncate the reassembled output down to the requested length.
	beatsData := make([][]byte, plan.TotalBeats)
	for i := range beatsData {
		beatsData[i] = []byte{0xAA, 0xBB, 0xCB, 0xDD}
	}

	out := AssembleRead(plan, beatsData, 4, 5)
	if len(out) != 5 {
		t.Fatalf("len(out) = %d, want 5", len(out))
	}
}

// writeBeatsToMem applies planned write beats to a flat byte slice using
// each burst's strobe mask, mirroring what a memory-backed W-channel sink
// would do.
func writeBeatsToMem(t *testing.T, mem []byte, plan *Plan, beats [][]WriteBeat, byteWidth int) {
	t.Helper()
	for bi, burst := range plan.Bursts {
		addr := burst.Addr
		for _, beat := range beats[bi] {
			wordBase := (addr / uint64(byteWidth)) * uint64(byteWidth)
			for lane := 0; lane < byteWidth; lane++ {
				if beat.WStrb&(1<<uint(lane)) != 0 {
					mem[int(wordBase)+lane] = beat.WData[lane]
				}
			}
			addr += uint64(plan.NumBytes)
		}
	}
}
