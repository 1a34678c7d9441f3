package hsmx

import (
	"context"
	"sync"
	"sync/atomic"
)

// The queue manager serializes every submission into a single in-flight
// transition. A buffered channel is the FIFO and the worker's scheduling
// point; a mirror slice of pending tasks makes ClearQueue able to settle
// not-yet-started work. Cancellation never reaches a running task: once the
// worker claims it, the transition completes.

// DefaultQueueSize bounds the pending queue when WithQueueSize is not
// given.
const DefaultQueueSize = 1024

type taskKind int

const (
	taskEvent taskKind = iota
	taskRollback
)

// task lifecycle states, advanced by compare-and-swap so exactly one of
// the worker, ClearQueue, and the submitter's context settles it.
const (
	taskPending int32 = iota
	taskRunning
	taskCleared
)

type task struct {
	kind  taskKind
	ctx   context.Context
	evt   Event
	entry *HistoryEntry // rollback target

	state atomic.Int32
	done  chan taskResult // buffered, settled exactly once
}

type taskResult struct {
	res       Result
	stepsBack int
	err       error
}

func (t *task) settle(r taskResult) {
	t.done <- r
}

type taskQueue struct {
	mu      sync.Mutex
	pending []*task
	ch      chan *task
	closed  bool
}

func newTaskQueue(size int) *taskQueue {
	if size <= 0 {
		size = DefaultQueueSize
	}
	return &taskQueue{ch: make(chan *task, size)}
}

// push enqueues t. Fails with ErrStopped after close and ErrQueueFull under
// backpressure.
func (q *taskQueue) push(t *task) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrStopped
	}
	select {
	case q.ch <- t:
		q.pending = append(q.pending, t)
		return nil
	default:
		return ErrQueueFull
	}
}

// remove drops t from the pending mirror once the worker claims it or the
// submitter abandons it.
func (q *taskQueue) remove(t *task) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, p := range q.pending {
		if p == t {
			q.pending = append(q.pending[:i], q.pending[i+1:]...)
			return
		}
	}
}

// clear settles every not-yet-started task with err and empties the
// pending mirror. The in-flight task, already claimed by the worker, is
// untouched. Cleared tasks stay in the channel; the worker skips them.
func (q *taskQueue) clear(err error) {
	q.mu.Lock()
	pending := q.pending
	q.pending = nil
	q.mu.Unlock()
	for _, t := range pending {
		if t.state.CompareAndSwap(taskPending, taskCleared) {
			t.settle(taskResult{err: err})
		}
	}
}

// close rejects future pushes and settles the pending backlog with err.
func (q *taskQueue) close(err error) {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.clear(err)
}
