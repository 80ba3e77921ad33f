package scheduler

import (
	"context"
	"slices"
	"sort"
	"time"
)

// request is a queued unit of work. run and reject are bound to the typed
// Future handed back to the caller, so the queue itself stays untyped.
type request struct {
	id         string
	priority   int
	enqueuedAt time.Time
	ctx        context.Context

	// run executes the work and returns a closure that settles the future.
	// Settlement is deferred so the scheduler can release the slot first.
	run func(ctx context.Context) (settle func(), err error)

	// reject settles the future with err without running the work.
	reject func(err error)

	// stopWatch detaches the context cancellation hook, if one was set.
	stopWatch func() bool
}

func (r *request) detach() {
	if r.stopWatch != nil {
		r.stopWatch()
	}
}

// pendingQueue keeps requests ordered by priority descending. Requests of
// equal priority keep enqueue order.
type pendingQueue struct {
	items []*request
}

func (q *pendingQueue) Len() int { return len(q.items) }

// insert places r before the first request with strictly lower priority.
func (q *pendingQueue) insert(r *request) {
	i := sort.Search(len(q.items), func(i int) bool {
		return q.items[i].priority < r.priority
	})
	q.items = slices.Insert(q.items, i, r)
}

func (q *pendingQueue) popFront() *request {
	if len(q.items) == 0 {
		return nil
	}
	r := q.items[0]
	q.items[0] = nil
	q.items = q.items[1:]
	return r
}

// remove deletes r from the queue. It reports false if r was not pending.
func (q *pendingQueue) remove(r *request) bool {
	i := slices.Index(q.items, r)
	if i < 0 {
		return false
	}
	q.items = slices.Delete(q.items, i, i+1)
	return true
}

// drain empties the queue and returns its former contents in order.
func (q *pendingQueue) drain() []*request {
	items := q.items
	q.items = nil
	return items
}
