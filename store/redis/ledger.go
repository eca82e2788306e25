package redisstore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/goliatone/go-whatsflow/webhooks"
	"github.com/redis/go-redis/v9"
)

const DefaultKeyPrefix = "whatsflow:delivery"

const (
	fieldEvent     = "event"
	fieldStatus    = "status"
	fieldAttempts  = "attempts"
	fieldLastError = "last_error"
	fieldPayload   = "payload"
	fieldClaimedAt = "claimed_at"
	fieldCreatedAt = "created_at"
	fieldUpdatedAt = "updated_at"
)

// Commands is the slice of the go-redis API the ledger needs. *redis.Client,
// *redis.ClusterClient and redis.UniversalClient all satisfy it.
type Commands interface {
	SetNX(ctx context.Context, key string, value any, expiration time.Duration) *redis.BoolCmd
	HSet(ctx context.Context, key string, values ...any) *redis.IntCmd
	HGetAll(ctx context.Context, key string) *redis.MapStringStringCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
	Exists(ctx context.Context, keys ...string) *redis.IntCmd
}

// DeliveryLedger keeps one hash per delivery under <prefix>:<id>. A SETNX on
// <prefix>:<id>:claim decides the first claim, and a SETNX on
// <prefix>:<id>:claim:<attempts> decides which reclaimer takes a failed or
// stale delivery.
type DeliveryLedger struct {
	client Commands

	Prefix string
	Lease  time.Duration
	TTL    time.Duration
	Now    func() time.Time
}

func NewDeliveryLedger(client Commands) (*DeliveryLedger, error) {
	if client == nil {
		return nil, fmt.Errorf("redisstore: redis client is required")
	}
	return &DeliveryLedger{
		client: client,
		Prefix: DefaultKeyPrefix,
		Lease:  webhooks.DefaultClaimLease,
		TTL:    webhooks.DefaultLedgerTTL,
	}, nil
}

// Dial connects to addr and pings it before handing the client back.
func Dial(ctx context.Context, addr string, password string) (*redis.Client, error) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return nil, fmt.Errorf("redisstore: redis address is required")
	}
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       0,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redisstore: ping %s: %w", addr, err)
	}
	return client, nil
}

func (l *DeliveryLedger) Claim(
	ctx context.Context,
	deliveryID string,
	event string,
	payload []byte,
) (webhooks.DeliveryRecord, bool, error) {
	if l == nil || l.client == nil {
		return webhooks.DeliveryRecord{}, false, fmt.Errorf("redisstore: delivery ledger is not configured")
	}
	deliveryID = strings.TrimSpace(deliveryID)
	if deliveryID == "" {
		return webhooks.DeliveryRecord{}, false, fmt.Errorf("redisstore: delivery id is required")
	}
	now := l.now()

	won, err := l.client.SetNX(ctx, l.claimKey(deliveryID), formatTime(now), l.ttl()).Result()
	if err != nil {
		return webhooks.DeliveryRecord{}, false, err
	}
	if won {
		record := webhooks.DeliveryRecord{
			DeliveryID: deliveryID,
			Event:      strings.TrimSpace(event),
			Status:     webhooks.DeliveryStatusPending,
			Attempts:   1,
			Payload:    append([]byte(nil), payload...),
			ClaimedAt:  now,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if err := l.write(ctx, record); err != nil {
			return webhooks.DeliveryRecord{}, false, err
		}
		return record, false, nil
	}

	existing, err := l.Get(ctx, deliveryID)
	if errors.Is(err, webhooks.ErrDeliveryNotFound) {
		// The winner holds the claim marker but has not written the hash yet.
		return webhooks.DeliveryRecord{
			DeliveryID: deliveryID,
			Event:      strings.TrimSpace(event),
			Status:     webhooks.DeliveryStatusPending,
			ClaimedAt:  now,
		}, true, nil
	}
	if err != nil {
		return webhooks.DeliveryRecord{}, false, err
	}
	if !webhooks.ClaimDecision(existing, now, l.Lease) {
		return existing, true, nil
	}

	guard := l.claimKey(deliveryID) + ":" + strconv.Itoa(existing.Attempts)
	won, err = l.client.SetNX(ctx, guard, formatTime(now), l.lease()).Result()
	if err != nil {
		return webhooks.DeliveryRecord{}, false, err
	}
	if !won {
		return existing, true, nil
	}

	existing.Status = webhooks.DeliveryStatusPending
	existing.Attempts++
	existing.LastError = ""
	existing.ClaimedAt = now
	existing.UpdatedAt = now
	if err := l.write(ctx, existing); err != nil {
		return webhooks.DeliveryRecord{}, false, err
	}
	return existing, false, nil
}

func (l *DeliveryLedger) Complete(ctx context.Context, deliveryID string) error {
	return l.transition(ctx, deliveryID, webhooks.DeliveryStatusProcessed, "")
}

func (l *DeliveryLedger) Fail(ctx context.Context, deliveryID string, reason string) error {
	return l.transition(ctx, deliveryID, webhooks.DeliveryStatusFailed, reason)
}

func (l *DeliveryLedger) Get(ctx context.Context, deliveryID string) (webhooks.DeliveryRecord, error) {
	if l == nil || l.client == nil {
		return webhooks.DeliveryRecord{}, fmt.Errorf("redisstore: delivery ledger is not configured")
	}
	deliveryID = strings.TrimSpace(deliveryID)
	fields, err := l.client.HGetAll(ctx, l.recordKey(deliveryID)).Result()
	if err != nil {
		return webhooks.DeliveryRecord{}, err
	}
	if len(fields) == 0 {
		return webhooks.DeliveryRecord{}, webhooks.ErrDeliveryNotFound
	}
	return decodeRecord(deliveryID, fields), nil
}

func (l *DeliveryLedger) transition(ctx context.Context, deliveryID string, status string, reason string) error {
	if l == nil || l.client == nil {
		return fmt.Errorf("redisstore: delivery ledger is not configured")
	}
	deliveryID = strings.TrimSpace(deliveryID)
	key := l.recordKey(deliveryID)
	count, err := l.client.Exists(ctx, key).Result()
	if err != nil {
		return err
	}
	if count == 0 {
		return webhooks.ErrDeliveryNotFound
	}
	if err := l.client.HSet(ctx, key,
		fieldStatus, status,
		fieldLastError, strings.TrimSpace(reason),
		fieldUpdatedAt, formatTime(l.now()),
	).Err(); err != nil {
		return err
	}
	return l.refresh(ctx, deliveryID)
}

func (l *DeliveryLedger) write(ctx context.Context, record webhooks.DeliveryRecord) error {
	key := l.recordKey(record.DeliveryID)
	if err := l.client.HSet(ctx, key,
		fieldEvent, record.Event,
		fieldStatus, record.Status,
		fieldAttempts, record.Attempts,
		fieldLastError, record.LastError,
		fieldPayload, string(record.Payload),
		fieldClaimedAt, formatTime(record.ClaimedAt),
		fieldCreatedAt, formatTime(record.CreatedAt),
		fieldUpdatedAt, formatTime(record.UpdatedAt),
	).Err(); err != nil {
		return err
	}
	return l.refresh(ctx, record.DeliveryID)
}

// refresh keeps the claim marker alive as long as the record so an expired
// marker never lets a processed delivery be claimed fresh.
func (l *DeliveryLedger) refresh(ctx context.Context, deliveryID string) error {
	if err := l.client.Expire(ctx, l.recordKey(deliveryID), l.ttl()).Err(); err != nil {
		return err
	}
	return l.client.Expire(ctx, l.claimKey(deliveryID), l.ttl()).Err()
}

func (l *DeliveryLedger) recordKey(deliveryID string) string {
	prefix := strings.TrimSpace(l.Prefix)
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return prefix + ":" + deliveryID
}

func (l *DeliveryLedger) claimKey(deliveryID string) string {
	return l.recordKey(deliveryID) + ":claim"
}

func (l *DeliveryLedger) ttl() time.Duration {
	if l.TTL <= 0 {
		return webhooks.DefaultLedgerTTL
	}
	return l.TTL
}

func (l *DeliveryLedger) lease() time.Duration {
	if l.Lease <= 0 {
		return webhooks.DefaultClaimLease
	}
	return l.Lease
}

func (l *DeliveryLedger) now() time.Time {
	if l.Now != nil {
		return l.Now().UTC()
	}
	return time.Now().UTC()
}

func decodeRecord(deliveryID string, fields map[string]string) webhooks.DeliveryRecord {
	attempts, _ := strconv.Atoi(fields[fieldAttempts])
	record := webhooks.DeliveryRecord{
		DeliveryID: deliveryID,
		Event:      fields[fieldEvent],
		Status:     fields[fieldStatus],
		Attempts:   attempts,
		LastError:  fields[fieldLastError],
		ClaimedAt:  parseTime(fields[fieldClaimedAt]),
		CreatedAt:  parseTime(fields[fieldCreatedAt]),
		UpdatedAt:  parseTime(fields[fieldUpdatedAt]),
	}
	if payload := fields[fieldPayload]; payload != "" {
		record.Payload = []byte(payload)
	}
	return record
}

func formatTime(value time.Time) string {
	return value.UTC().Format(time.RFC3339Nano)
}

func parseTime(raw string) time.Time {
	parsed, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(raw))
	if err != nil {
		return time.Time{}
	}
	return parsed.UTC()
}

var _ webhooks.DeliveryLedger = (*DeliveryLedger)(nil)
