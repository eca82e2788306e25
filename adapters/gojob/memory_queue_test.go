package gojob

import (
	"context"
	"testing"
	"time"

	job "github.com/goliatone/go-job"
	"github.com/goliatone/go-job/queue"
)

func TestMemoryQueue_EnqueueDequeue(t *testing.T) {
	q := NewMemoryQueue(2)
	ctx := context.Background()
	msg := &job.ExecutionMessage{JobID: JobID("message.received"), IdempotencyKey: "dlv_1"}
	if err := q.Enqueue(ctx, msg); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if q.Len() != 1 {
		t.Fatalf("expected one ready message, got %d", q.Len())
	}
	delivery, err := q.Dequeue(ctx)
	if err != nil {
		t.Fatalf("dequeue: %v", err)
	}
	if delivery.Message().IdempotencyKey != "dlv_1" {
		t.Fatalf("unexpected message: %+v", delivery.Message())
	}
	if err := delivery.Ack(ctx); err != nil {
		t.Fatalf("ack: %v", err)
	}
}

func TestMemoryQueue_FullAndClosed(t *testing.T) {
	q := NewMemoryQueue(1)
	ctx := context.Background()
	if err := q.Enqueue(ctx, &job.ExecutionMessage{JobID: "a"}); err != nil {
		t.Fatalf("first enqueue: %v", err)
	}
	if err := q.Enqueue(ctx, &job.ExecutionMessage{JobID: "b"}); err == nil {
		t.Fatalf("expected full queue error")
	}
	q.Close()
	if _, err := q.Dequeue(ctx); err != nil {
		t.Fatalf("dequeue after close should drain ready messages: %v", err)
	}
	if err := q.Enqueue(ctx, &job.ExecutionMessage{JobID: "c"}); err == nil {
		t.Fatalf("expected closed queue error")
	}
	if err := q.Enqueue(ctx, nil); err == nil {
		t.Fatalf("expected nil message error")
	}
}

func TestMemoryQueue_DequeueHonoursContext(t *testing.T) {
	q := NewMemoryQueue(1)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := q.Dequeue(ctx); err == nil {
		t.Fatalf("expected context error from empty queue")
	}
}

func TestMemoryQueue_NackRequeuesAndDeadLetters(t *testing.T) {
	q := NewMemoryQueue(4)
	ctx := context.Background()
	if err := q.Enqueue(ctx, &job.ExecutionMessage{JobID: "retry"}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	delivery, err := q.Dequeue(ctx)
	if err != nil {
		t.Fatalf("dequeue: %v", err)
	}
	if err := delivery.Nack(ctx, queue.NackOptions{Requeue: true}); err != nil {
		t.Fatalf("nack requeue: %v", err)
	}
	redelivered, err := q.Dequeue(ctx)
	if err != nil {
		t.Fatalf("dequeue requeued: %v", err)
	}
	if redelivered.Message().JobID != "retry" {
		t.Fatalf("expected requeued message, got %+v", redelivered.Message())
	}

	if err := redelivered.Nack(ctx, queue.NackOptions{DeadLetter: true, Reason: "max attempts"}); err != nil {
		t.Fatalf("nack dead letter: %v", err)
	}
	letters := q.DeadLetters()
	if len(letters) != 1 || letters[0].Reason != "max attempts" {
		t.Fatalf("expected one dead letter, got %+v", letters)
	}
	if q.Len() != 0 {
		t.Fatalf("expected dead-lettered message not to be requeued")
	}
}
