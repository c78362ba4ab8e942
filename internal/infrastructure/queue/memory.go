package queue

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/DanielPopoola/chargecore/internal/application"
	"github.com/DanielPopoola/chargecore/internal/domain"
)

type pending struct {
	body []byte
	due  time.Time
}

// MemoryQueue is the single-process backend. Jobs are lost on restart; the capture poller
// re-enqueues whatever was in flight.
type MemoryQueue struct {
	mu      sync.Mutex
	items   []pending
	wake    chan struct{}
	done    chan struct{}
	once    sync.Once
	closed  bool
	metrics counters
	now     func() time.Time
}

func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
		metrics: newCounters("memory"),
		now:     time.Now,
	}
}

// Enqueue goes through the same wire encoding as the Kafka backend.
func (q *MemoryQueue) Enqueue(_ context.Context, job domain.CaptureJob, delay time.Duration) error {
	due := q.now().Add(delay)
	body, err := encode(job, due)
	if err != nil {
		return err
	}

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		q.metrics.publishError.Inc()
		return ErrClosed
	}
	q.items = append(q.items, pending{body: body, due: due})
	sort.SliceStable(q.items, func(i, j int) bool { return q.items[i].due.Before(q.items[j].due) })
	q.mu.Unlock()

	q.metrics.published.Inc()
	q.signal()
	return nil
}

func (q *MemoryQueue) Receive(ctx context.Context) (application.Delivery, error) {
	for {
		body, wait, err := q.next()
		if err != nil {
			return nil, err
		}
		if body != nil {
			job, _, err := decode(body)
			if err != nil {
				q.metrics.invalid.Inc()
				continue
			}
			q.metrics.received.Inc()
			return memoryDelivery{job: job, metrics: q.metrics}, nil
		}

		if err := q.sleep(ctx, wait); err != nil {
			return nil, err
		}
	}
}

// sleep waits for an Enqueue, for wait to pass (forever when zero), or for shutdown.
func (q *MemoryQueue) sleep(ctx context.Context, wait time.Duration) error {
	var timeout <-chan time.Time
	if wait > 0 {
		timer := time.NewTimer(wait)
		defer timer.Stop()
		timeout = timer.C
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-q.done:
		return ErrClosed
	case <-q.wake:
	case <-timeout:
	}
	return nil
}

// next pops the first due job. With none due it reports how long until the earliest one,
// or zero when the queue is empty.
func (q *MemoryQueue) next() ([]byte, time.Duration, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return nil, 0, ErrClosed
	}
	if len(q.items) == 0 {
		return nil, 0, nil
	}
	head := q.items[0]
	if wait := head.due.Sub(q.now()); wait > 0 {
		return nil, wait, nil
	}
	q.items = q.items[1:]
	if len(q.items) > 0 {
		q.signal()
	}
	return head.body, 0, nil
}

func (q *MemoryQueue) signal() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// Len reports the number of jobs waiting, due or not.
func (q *MemoryQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *MemoryQueue) Close() error {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.once.Do(func() { close(q.done) })
	return nil
}

type memoryDelivery struct {
	job     domain.CaptureJob
	metrics counters
}

func (d memoryDelivery) Job() domain.CaptureJob { return d.job }

func (d memoryDelivery) Ack(context.Context) error {
	d.metrics.acked.Inc()
	return nil
}
