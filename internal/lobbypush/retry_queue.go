package lobbypush

import (
	"sync"
	"time"
)

// retryQueue holds jobs until their backoff passes, then hands them back to
// the dispatch channel. Stop cancels everything still waiting.
type retryQueue struct {
	out chan<- pushJob

	mu      sync.Mutex
	stopped bool
	next    uint64
	pending map[uint64]*time.Timer
}

func newRetryQueue(out chan<- pushJob) *retryQueue {
	return &retryQueue{out: out, pending: map[uint64]*time.Timer{}}
}

func (q *retryQueue) Enqueue(job pushJob, delay time.Duration) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.stopped {
		return
	}
	id := q.next
	q.next++
	q.pending[id] = time.AfterFunc(max(delay, 0), func() { q.fire(id, job) })
}

func (q *retryQueue) fire(id uint64, job pushJob) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, ok := q.pending[id]; !ok {
		return
	}
	delete(q.pending, id)
	select {
	case q.out <- job:
		metricPushQueueLen.Set(int64(len(q.out)))
	default:
		metricPushRetryDroppedTotal.Add(1)
	}
}

// Len reports the jobs waiting on a backoff.
func (q *retryQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

func (q *retryQueue) Stop() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.stopped = true
	for id, t := range q.pending {
		t.Stop()
		delete(q.pending, id)
	}
}
