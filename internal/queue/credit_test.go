package queue

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestCreditPool_AcquireRelease(t *testing.T) {
	p := NewCreditPool(4)
	if p.Len() != 4 {
		t.Fatalf("Len() = %d, want 4", p.Len())
	}

	ctx := context.Background()
	ids := make([]uint32, 0, 4)
	seen := make(map[uint32]bool)
	for i := 0; i < 4; i++ {
		id, waited, err := p.Acquire(ctx)
		if err != nil {
			t.Fatalf("Acquire() error: %v", err)
		}
		if waited != 0 {
			t.Errorf("Acquire() waitedNs = %d, want 0 when pool non-empty", waited)
		}
		if seen[id] {
			t.Fatalf("Acquire() returned duplicate id %d", id)
		}
		seen[id] = true
		ids = append(ids, id)
	}
	if p.Len() != 0 {
		t.Fatalf("Len() after draining = %d, want 0", p.Len())
	}

	p.Release(ids[0])
	if p.Len() != 1 {
		t.Fatalf("Len() after release = %d, want 1", p.Len())
	}
}

func TestCreditPool_AscendingInitialOrder(t *testing.T) {
	p := NewCreditPool(4)
	ctx := context.Background()
	for want := uint32(0); want < 4; want++ {
		id, _, err := p.Acquire(ctx)
		if err != nil {
			t.Fatalf("Acquire() error: %v", err)
		}
		if id != want {
			t.Errorf("Acquire() = %d, want %d", id, want)
		}
	}
}

func TestCreditPool_AcquireBlocksUntilRelease(t *testing.T) {
	p := NewCreditPool(1)
	ctx := context.Background()

	id, _, err := p.Acquire(ctx)
	if err != nil {
		t.Fatalf("Acquire() error: %v", err)
	}

	var wg sync.WaitGroup
	wg.Add(1)
	var gotWaited int64
	go func() {
		defer wg.Done()
		_, waited, err := p.Acquire(ctx)
		if err != nil {
			t.Errorf("blocked Acquire() error: %v", err)
		}
		gotWaited = waited
	}()

	time.Sleep(20 * time.Millisecond)
	p.Release(id)
	wg.Wait()

	if gotWaited <= 0 {
		t.Errorf("blocked Acquire() waitedNs = %d, want > 0", gotWaited)
	}
}

func TestCreditPool_AcquireCancelled(t *testing.T) {
	p := NewCreditPool(1)
	ctx := context.Background()
	_, _, err := p.Acquire(ctx) // drain the only id

	cctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, _, err = p.Acquire(cctx)
	if err == nil {
		t.Fatal("Acquire() with cancelled ctx returned nil error")
	}
}

func TestCreditPool_DoubleReleasePanics(t *testing.T) {
	p := NewCreditPool(2)
	ctx := context.Background()
	id, _, _ := p.Acquire(ctx)
	p.Release(id)

	defer func() {
		if r := recover(); r == nil {
			t.Fatal("Release() of an already-free id did not panic")
		}
	}()
	p.Release(id)
}

func TestCreditPool_ReleaseOutOfRangePanics(t *testing.T) {
	p := NewCreditPool(2)
	defer func() {
		if r := recover(); r == nil {
			t.Fatal("Release() of out-of-range id did not panic")
		}
	}()
	p.Release(99)
}
