package queue

import (
	"context"
	"fmt"
	"sync"
)

// Token is duplicated here (rather than imported from the root package) to
// avoid an import cycle: the root package imports internal/queue, not the
// reverse. Both are the same underlying uint64.
type Token uint64

// Registry is the generic command intake: a submission queue of pending
// requests plus a token registry correlating callers to eventual results
// (spec §4.2). R is the request payload type (e.g. a write or read
// request); Res is the result type.
type Registry[R any, Res any] struct {
	mu   sync.Mutex
	cond *sync.Cond

	active    map[Token]struct{}
	completed map[Token]Res
	order     []Token // FIFO of completion, for the no-token take_result path

	pending   []queuedItem[R]
	inFlight  int
	nextToken Token
}

type queuedItem[R any] struct {
	Token   Token
	Request R
}

// NewRegistry builds an empty registry.
func NewRegistry[R any, Res any]() *Registry[R, Res] {
	reg := &Registry[R, Res]{
		active:    make(map[Token]struct{}),
		completed: make(map[Token]Res),
	}
	reg.cond = sync.NewCond(&reg.mu)
	return reg
}

// Submit registers token (auto-generating one if zero), enqueues req for
// the issue task, and signals any waiters. Returns a *PlannerError with
// Code "DuplicateToken" if token is already active.
func (r *Registry[R, Res]) Submit(token Token, req R) (Token, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if token == 0 {
		r.nextToken++
		token = r.nextToken
	} else if _, exists := r.active[token]; exists {
		return 0, &PlannerError{Op: "submit", Code: "DuplicateToken", Msg: fmt.Sprintf("token %d already active", token)}
	}

	r.active[token] = struct{}{}
	r.inFlight++
	r.pending = append(r.pending, queuedItem[R]{Token: token, Request: req})
	r.cond.Broadcast()
	return token, nil
}

// Dequeue blocks until a request is available, then pops and returns it.
func (r *Registry[R, Res]) Dequeue(ctx context.Context) (Token, R, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var zero R
	if err := waitCond(ctx, r.cond, func() bool { return len(r.pending) > 0 }); err != nil {
		return 0, zero, err
	}

	item := r.pending[0]
	r.pending = r.pending[1:]
	return item.Token, item.Request, nil
}

// Complete records a finished result under token in the completed set and
// decrements the in-flight counter. The token stays in the active set until
// its result is taken.
func (r *Registry[R, Res]) Complete(token Token, res Res) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.completed[token] = res
	r.order = append(r.order, token)
	r.inFlight--
	r.cond.Broadcast()
}

// PollReady reports whether a result is available: for token != 0, whether
// that specific token has completed; for token == 0, whether any result is
// queued.
func (r *Registry[R, Res]) PollReady(token Token) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if token != 0 {
		_, ok := r.completed[token]
		return ok
	}
	return len(r.order) > 0
}

// TakeResult non-blockingly removes and returns a completed result. With
// token == 0 it pops the head of completion order (FIFO); with a specific
// token it searches for that token. The bool is false if nothing matched.
func (r *Registry[R, Res]) TakeResult(token Token) (Res, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.takeLocked(token)
}

func (r *Registry[R, Res]) takeLocked(token Token) (Res, bool) {
	var zero Res
	if token == 0 {
		if len(r.order) == 0 {
			return zero, false
		}
		head := r.order[0]
		r.order = r.order[1:]
		res, ok := r.completed[head]
		delete(r.completed, head)
		delete(r.active, head)
		return res, ok
	}

	res, ok := r.completed[token]
	if !ok {
		return zero, false
	}
	delete(r.completed, token)
	delete(r.active, token)
	for i, t := range r.order {
		if t == token {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return res, true
}

// AwaitResult suspends until token has completed, then returns and removes
// it from both sets.
func (r *Registry[R, Res]) AwaitResult(ctx context.Context, token Token) (Res, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var zero Res
	if err := waitCond(ctx, r.cond, func() bool {
		_, ok := r.completed[token]
		return ok
	}); err != nil {
		return zero, err
	}

	res, _ := r.takeLocked(token)
	return res, nil
}

// Idle reports whether the in-flight counter is zero.
func (r *Registry[R, Res]) Idle() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.inFlight == 0
}

// WaitIdle suspends until Idle() is true.
func (r *Registry[R, Res]) WaitIdle(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return waitCond(ctx, r.cond, func() bool { return r.inFlight == 0 })
}
