package queue

import (
	"context"
	"fmt"
	"sync"
)

// guardedRun runs fn and recovers any panic it raises, converting it into an
// ordinary error. The engine tasks panic on invariant violations (a
// double-released credit ID, an rlast mismatch, a beat for an unknown ID) per
// spec §7 ("invariant violations terminate the enclosing task"); this is the
// task boundary that stops the panic from taking the whole process down and
// instead lets it surface through Run()/Err() like any other fatal error.
func guardedRun(ctx context.Context, fn func(context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("axi4bus: invariant violation: %v", r)
		}
	}()
	return fn(ctx)
}

// waitCond blocks on cond until pred() is true or ctx is done, returning
// ctx.Err() in the latter case. cond.L must already be held by the caller;
// it is held again on return in either case, matching sync.Cond.Wait's
// contract.
//
// sync.Cond has no native cancellation, so a watcher goroutine broadcasts
// on the condition when ctx finishes, waking every waiter to re-check its
// predicate (and observe ctx.Done()).
func waitCond(ctx context.Context, cond *sync.Cond, pred func() bool) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	done := make(chan struct{})
	stopWatcher := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			// Broadcast without holding cond.L: Cond.Broadcast doesn't
			// require it, and taking the lock here can deadlock against a
			// waiter that has just woken, re-acquired cond.L, and is
			// blocked in its own teardown waiting on this goroutine.
			cond.Broadcast()
		case <-stopWatcher:
		}
		close(done)
	}()
	defer func() {
		close(stopWatcher)
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
