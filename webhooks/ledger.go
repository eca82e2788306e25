package webhooks

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
)

const (
	DeliveryStatusPending   = "pending"
	DeliveryStatusProcessed = "processed"
	DeliveryStatusFailed    = "failed"
)

const (
	DefaultClaimLease = 30 * time.Second
	DefaultLedgerTTL  = 72 * time.Hour
)

var ErrDeliveryNotFound = errors.New("webhooks: delivery not found")

type DeliveryRecord struct {
	DeliveryID string
	Event      string
	Status     string
	Attempts   int
	LastError  string
	Payload    []byte
	ClaimedAt  time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// DeliveryLedger tracks deliveries by X-Webhook-Delivery-Id.
//
// Claim returns duplicate=true when the delivery was already processed or is
// still held by another in-flight claim. Failed deliveries and claims older
// than the lease can be claimed again, which bumps Attempts.
type DeliveryLedger interface {
	Claim(ctx context.Context, deliveryID string, event string, payload []byte) (DeliveryRecord, bool, error)
	Complete(ctx context.Context, deliveryID string) error
	Fail(ctx context.Context, deliveryID string, reason string) error
	Get(ctx context.Context, deliveryID string) (DeliveryRecord, error)
}

// ClaimDecision applies the ledger rules to an existing record. Stores call it
// so memory, SQL and Redis ledgers agree on what a duplicate is.
func ClaimDecision(existing DeliveryRecord, now time.Time, lease time.Duration) (reclaim bool) {
	switch existing.Status {
	case DeliveryStatusProcessed:
		return false
	case DeliveryStatusPending:
		if lease <= 0 {
			lease = DefaultClaimLease
		}
		return !existing.ClaimedAt.IsZero() && now.Sub(existing.ClaimedAt) >= lease
	default:
		return true
	}
}

type MemoryLedger struct {
	mu      sync.Mutex
	records map[string]DeliveryRecord
	Lease   time.Duration
	TTL     time.Duration
	Now     func() time.Time
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{
		records: map[string]DeliveryRecord{},
		Lease:   DefaultClaimLease,
		TTL:     DefaultLedgerTTL,
		Now: func() time.Time {
			return time.Now().UTC()
		},
	}
}

func (l *MemoryLedger) Claim(_ context.Context, deliveryID string, event string, payload []byte) (DeliveryRecord, bool, error) {
	if l == nil {
		return DeliveryRecord{}, false, fmt.Errorf("webhooks: memory ledger is nil")
	}
	deliveryID = strings.TrimSpace(deliveryID)
	if deliveryID == "" {
		return DeliveryRecord{}, false, fmt.Errorf("webhooks: delivery id is required")
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.records == nil {
		l.records = map[string]DeliveryRecord{}
	}
	now := l.now()
	l.sweep(now)

	existing, ok := l.records[deliveryID]
	if ok {
		if !ClaimDecision(existing, now, l.Lease) {
			return existing, true, nil
		}
		existing.Status = DeliveryStatusPending
		existing.Attempts++
		existing.ClaimedAt = now
		existing.UpdatedAt = now
		l.records[deliveryID] = existing
		return existing, false, nil
	}

	record := DeliveryRecord{
		DeliveryID: deliveryID,
		Event:      strings.TrimSpace(event),
		Status:     DeliveryStatusPending,
		Attempts:   1,
		Payload:    append([]byte(nil), payload...),
		ClaimedAt:  now,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	l.records[deliveryID] = record
	return record, false, nil
}

func (l *MemoryLedger) Complete(_ context.Context, deliveryID string) error {
	return l.transition(deliveryID, DeliveryStatusProcessed, "")
}

func (l *MemoryLedger) Fail(_ context.Context, deliveryID string, reason string) error {
	return l.transition(deliveryID, DeliveryStatusFailed, reason)
}

func (l *MemoryLedger) Get(_ context.Context, deliveryID string) (DeliveryRecord, error) {
	if l == nil {
		return DeliveryRecord{}, fmt.Errorf("webhooks: memory ledger is nil")
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	record, ok := l.records[strings.TrimSpace(deliveryID)]
	if !ok {
		return DeliveryRecord{}, ErrDeliveryNotFound
	}
	return record, nil
}

func (l *MemoryLedger) transition(deliveryID string, status string, reason string) error {
	if l == nil {
		return fmt.Errorf("webhooks: memory ledger is nil")
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	deliveryID = strings.TrimSpace(deliveryID)
	record, ok := l.records[deliveryID]
	if !ok {
		return ErrDeliveryNotFound
	}
	record.Status = status
	record.LastError = strings.TrimSpace(reason)
	record.UpdatedAt = l.now()
	l.records[deliveryID] = record
	return nil
}

func (l *MemoryLedger) sweep(now time.Time) {
	if l.TTL <= 0 {
		return
	}
	for id, record := range l.records {
		if now.Sub(record.UpdatedAt) > l.TTL {
			delete(l.records, id)
		}
	}
}

func (l *MemoryLedger) now() time.Time {
	if l.Now != nil {
		return l.Now().UTC()
	}
	return time.Now().UTC()
}

var _ DeliveryLedger = (*MemoryLedger)(nil)
