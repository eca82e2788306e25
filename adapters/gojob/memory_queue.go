package gojob

import (
	"context"
	"fmt"
	"sync"
	"time"

	job "github.com/goliatone/go-job"
	"github.com/goliatone/go-job/queue"
)

const defaultMemoryQueueSize = 256

// MemoryQueue is an in-process queue for single-node async mode. Messages are
// lost on restart; the delivery ledger still records what was claimed.
type MemoryQueue struct {
	mu          sync.Mutex
	ready       chan *job.ExecutionMessage
	deadLetters []DeadLetter
	closed      bool

	Logger job.Logger
}

type DeadLetter struct {
	Message *job.ExecutionMessage
	Reason  string
	At      time.Time
}

func NewMemoryQueue(size int) *MemoryQueue {
	if size <= 0 {
		size = defaultMemoryQueueSize
	}
	return &MemoryQueue{ready: make(chan *job.ExecutionMessage, size)}
}

func (q *MemoryQueue) Enqueue(ctx context.Context, msg *job.ExecutionMessage) error {
	if q == nil {
		return fmt.Errorf("gojob: memory queue is nil")
	}
	if msg == nil {
		return fmt.Errorf("gojob: execution message is required")
	}
	q.mu.Lock()
	closed := q.closed
	q.mu.Unlock()
	if closed {
		return fmt.Errorf("gojob: memory queue is closed")
	}
	select {
	case q.ready <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return fmt.Errorf("gojob: memory queue is full")
	}
}

// Dequeue blocks until a message is ready or ctx is done.
func (q *MemoryQueue) Dequeue(ctx context.Context) (queue.Delivery, error) {
	if q == nil {
		return nil, fmt.Errorf("gojob: memory queue is nil")
	}
	select {
	case msg := <-q.ready:
		return &memoryDelivery{queue: q, msg: msg}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (q *MemoryQueue) Len() int {
	if q == nil {
		return 0
	}
	return len(q.ready)
}

func (q *MemoryQueue) DeadLetters() []DeadLetter {
	if q == nil {
		return nil
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]DeadLetter(nil), q.deadLetters...)
}

// Close stops accepting new messages. Pending requeue timers are dropped.
func (q *MemoryQueue) Close() {
	if q == nil {
		return
	}
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
}

func (q *MemoryQueue) requeue(msg *job.ExecutionMessage, delay time.Duration) {
	push := func() {
		_ = q.Enqueue(context.Background(), msg)
	}
	if delay <= 0 {
		push()
		return
	}
	time.AfterFunc(delay, push)
}

func (q *MemoryQueue) deadLetter(msg *job.ExecutionMessage, reason string) {
	q.mu.Lock()
	q.deadLetters = append(q.deadLetters, DeadLetter{Message: msg, Reason: reason, At: time.Now().UTC()})
	q.mu.Unlock()
	if q.Logger != nil {
		q.Logger.Info("execution message dead-lettered",
			"job_id", msg.JobID,
			"idempotency_key", msg.IdempotencyKey,
			"reason", reason,
		)
	}
}

type memoryDelivery struct {
	queue *MemoryQueue
	msg   *job.ExecutionMessage
}

func (d *memoryDelivery) Message() *job.ExecutionMessage {
	return d.msg
}

func (d *memoryDelivery) Ack(context.Context) error {
	return nil
}

func (d *memoryDelivery) Nack(_ context.Context, opts queue.NackOptions) error {
	switch {
	case opts.DeadLetter:
		d.queue.deadLetter(d.msg, opts.Reason)
	case opts.Requeue:
		d.queue.requeue(d.msg, opts.Delay)
	}
	return nil
}

var (
	_ queue.Enqueuer = (*MemoryQueue)(nil)
	_ queue.Dequeuer = (*MemoryQueue)(nil)
	_ queue.Delivery = (*memoryDelivery)(nil)
)
