package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ids(q *pendingQueue) []string {
	out := make([]string, 0, q.Len())
	for _, r := range q.items {
		out = append(out, r.id)
	}
	return out
}

func TestPendingQueue_InsertOrder(t *testing.T) {
	var q pendingQueue
	for _, r := range []*request{
		{id: "a", priority: 1},
		{id: "b", priority: 3},
		{id: "c", priority: 2},
		{id: "d", priority: 1},
		{id: "e", priority: 3},
		{id: "f", priority: -4},
		{id: "g", priority: 0},
	} {
		q.insert(r)
	}

	assert.Equal(t, []string{"b", "e", "c", "a", "d", "g", "f"}, ids(&q))
}

func TestPendingQueue_PopAndRemove(t *testing.T) {
	var q pendingQueue
	a := &request{id: "a", priority: 1}
	b := &request{id: "b", priority: 1}
	c := &request{id: "c", priority: 1}
	q.insert(a)
	q.insert(b)
	q.insert(c)

	assert.True(t, q.remove(b))
	assert.False(t, q.remove(b), "second remove is a no-op")
	assert.Equal(t, []string{"a", "c"}, ids(&q))

	assert.Same(t, a, q.popFront())
	assert.Same(t, c, q.popFront())
	assert.Nil(t, q.popFront())
	assert.Equal(t, 0, q.Len())
}

func TestPendingQueue_Drain(t *testing.T) {
	var q pendingQueue
	q.insert(&request{id: "x", priority: 0})
	q.insert(&request{id: "y", priority: 9})

	drained := q.drain()
	require.Len(t, drained, 2)
	assert.Equal(t, "y", drained[0].id)
	assert.Equal(t, 0, q.Len())
}

func TestFuture_SettlesOnce(t *testing.T) {
	f := newFuture[string]("id-1")
	assert.Equal(t, "id-1", f.ID())

	assert.True(t, f.settle("first", nil))
	assert.False(t, f.settle("second", errors.New("ignored")))

	got, err := f.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "first", got)
}

func TestFuture_WaitHonoursContext(t *testing.T) {
	f := newFuture[int]("id-2")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := f.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	select {
	case <-f.Done():
		t.Fatal("giving up on Wait must not settle the future")
	default:
	}
}

func TestCancelledErrors(t *testing.T) {
	for _, err := range []error{ErrQueueCleared, ErrRequestCancelled, ErrSchedulerClosed} {
		assert.True(t, IsCancelled(err), err.Error())
		assert.ErrorIs(t, err, ErrCancelled)
	}
	assert.False(t, IsCancelled(errors.New("work failed")))
	assert.False(t, errors.Is(ErrQueueCleared, ErrSchedulerClosed))
}
