package queue

import (
	"context"
	"sync"
)

// pendingQueue is an unbounded FIFO of items handed from an issue task to
// its matching response task (spec §4.3 "push a PendingResponse ... and
// signal it").
type pendingQueue[T any] struct {
	mu    sync.Mutex
	cond  *sync.Cond
	items []T
}

func newPendingQueue[T any]() *pendingQueue[T] {
	q := &pendingQueue[T]{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

func (q *pendingQueue[T]) push(item T) {
	q.mu.Lock()
	q.items = append(q.items, item)
	q.cond.Broadcast()
	q.mu.Unlock()
}

func (q *pendingQueue[T]) pop(ctx context.Context) (T, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var zero T
	if err := waitCond(ctx, q.cond, func() bool { return len(q.items) > 0 }); err != nil {
		return zero, err
	}
	item := q.items[0]
	q.items = q.items[1:]
	return item, nil
}
