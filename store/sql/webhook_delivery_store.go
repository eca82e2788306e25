package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/goliatone/go-whatsflow/webhooks"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// WebhookDeliveryStore is the bun-backed delivery ledger. The unique index on
// delivery_id decides the first claim; later claims go through
// webhooks.ClaimDecision and a guarded update.
type WebhookDeliveryStore struct {
	db   *bun.DB
	repo repository.Repository[*webhookDeliveryRecord]

	Lease time.Duration
	TTL   time.Duration
	Now   func() time.Time
}

func NewWebhookDeliveryStore(db *bun.DB) (*WebhookDeliveryStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*webhookDeliveryRecord](db, webhookDeliveryHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid webhook delivery repository wiring: %w", err)
		}
	}
	return &WebhookDeliveryStore{
		db:    db,
		repo:  repo,
		Lease: webhooks.DefaultClaimLease,
		TTL:   webhooks.DefaultLedgerTTL,
	}, nil
}

func (s *WebhookDeliveryStore) Claim(
	ctx context.Context,
	deliveryID string,
	event string,
	payload []byte,
) (webhooks.DeliveryRecord, bool, error) {
	if s == nil || s.db == nil {
		return webhooks.DeliveryRecord{}, false, fmt.Errorf("sqlstore: webhook delivery store is not configured")
	}
	deliveryID = strings.TrimSpace(deliveryID)
	if deliveryID == "" {
		return webhooks.DeliveryRecord{}, false, fmt.Errorf("sqlstore: delivery id is required")
	}

	now := s.now()
	record := &webhookDeliveryRecord{
		ID:         uuid.NewString(),
		DeliveryID: deliveryID,
		Event:      strings.TrimSpace(event),
		Status:     webhooks.DeliveryStatusPending,
		Attempts:   1,
		Payload:    append([]byte(nil), payload...),
		ClaimedAt:  now,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	_, err := s.db.NewInsert().Model(record).Exec(ctx)
	if err == nil {
		return webhookDeliveryToDomain(record), false, nil
	}
	if !isUniqueViolation(err) {
		return webhooks.DeliveryRecord{}, false, err
	}
	return s.reclaim(ctx, deliveryID, now)
}

func (s *WebhookDeliveryStore) reclaim(
	ctx context.Context,
	deliveryID string,
	now time.Time,
) (webhooks.DeliveryRecord, bool, error) {
	existing, err := s.find(ctx, deliveryID)
	if err != nil {
		return webhooks.DeliveryRecord{}, false, err
	}
	if !webhooks.ClaimDecision(webhookDeliveryToDomain(existing), now, s.Lease) {
		return webhookDeliveryToDomain(existing), true, nil
	}

	// Guard on the observed status and attempt count so only one concurrent
	// reclaimer wins.
	result, err := s.db.NewUpdate().
		Model((*webhookDeliveryRecord)(nil)).
		Set("status = ?", webhooks.DeliveryStatusPending).
		Set("attempts = ?", existing.Attempts+1).
		Set("last_error = ?", "").
		Set("claimed_at = ?", now).
		Set("updated_at = ?", now).
		Where("delivery_id = ?", deliveryID).
		Where("status = ?", existing.Status).
		Where("attempts = ?", existing.Attempts).
		Exec(ctx)
	if err != nil {
		return webhooks.DeliveryRecord{}, false, err
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		current, findErr := s.find(ctx, deliveryID)
		if findErr != nil {
			return webhooks.DeliveryRecord{}, false, findErr
		}
		return webhookDeliveryToDomain(current), true, nil
	}

	existing.Status = webhooks.DeliveryStatusPending
	existing.Attempts++
	existing.LastError = ""
	existing.ClaimedAt = now
	existing.UpdatedAt = now
	return webhookDeliveryToDomain(existing), false, nil
}

func (s *WebhookDeliveryStore) Complete(ctx context.Context, deliveryID string) error {
	return s.transition(ctx, deliveryID, webhooks.DeliveryStatusProcessed, "")
}

func (s *WebhookDeliveryStore) Fail(ctx context.Context, deliveryID string, reason string) error {
	return s.transition(ctx, deliveryID, webhooks.DeliveryStatusFailed, reason)
}

func (s *WebhookDeliveryStore) Get(ctx context.Context, deliveryID string) (webhooks.DeliveryRecord, error) {
	if s == nil || s.db == nil {
		return webhooks.DeliveryRecord{}, fmt.Errorf("sqlstore: webhook delivery store is not configured")
	}
	record, err := s.find(ctx, strings.TrimSpace(deliveryID))
	if err != nil {
		return webhooks.DeliveryRecord{}, err
	}
	return webhookDeliveryToDomain(record), nil
}

// List returns the most recent deliveries, optionally filtered by status.
func (s *WebhookDeliveryStore) List(ctx context.Context, status string, limit int) ([]webhooks.DeliveryRecord, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("sqlstore: webhook delivery store is not configured")
	}
	if limit <= 0 {
		limit = 50
	}
	selectors := []repository.SelectCriteria{
		repository.OrderBy("created_at DESC"),
		repository.SelectPaginate(limit, 0),
	}
	if status = strings.TrimSpace(strings.ToLower(status)); status != "" {
		selectors = append(selectors, repository.SelectBy("status", "=", status))
	}
	records, _, err := s.repo.List(ctx, selectors...)
	if err != nil {
		return nil, err
	}
	out := make([]webhooks.DeliveryRecord, 0, len(records))
	for _, record := range records {
		out = append(out, webhookDeliveryToDomain(record))
	}
	return out, nil
}

// Purge drops deliveries not touched within the ledger TTL and reports how
// many rows went away.
func (s *WebhookDeliveryStore) Purge(ctx context.Context) (int64, error) {
	if s == nil || s.db == nil {
		return 0, fmt.Errorf("sqlstore: webhook delivery store is not configured")
	}
	if s.TTL <= 0 {
		return 0, nil
	}
	cutoff := s.now().Add(-s.TTL)
	result, err := s.db.NewDelete().
		Model((*webhookDeliveryRecord)(nil)).
		Where("updated_at < ?", cutoff).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	affected, _ := result.RowsAffected()
	return affected, nil
}

func (s *WebhookDeliveryStore) transition(ctx context.Context, deliveryID string, status string, reason string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: webhook delivery store is not configured")
	}
	deliveryID = strings.TrimSpace(deliveryID)
	result, err := s.db.NewUpdate().
		Model((*webhookDeliveryRecord)(nil)).
		Set("status = ?", status).
		Set("last_error = ?", strings.TrimSpace(reason)).
		Set("updated_at = ?", s.now()).
		Where("delivery_id = ?", deliveryID).
		Exec(ctx)
	if err != nil {
		return err
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return webhooks.ErrDeliveryNotFound
	}
	return nil
}

func (s *WebhookDeliveryStore) find(ctx context.Context, deliveryID string) (*webhookDeliveryRecord, error) {
	record := &webhookDeliveryRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.delivery_id = ?", deliveryID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, webhooks.ErrDeliveryNotFound
		}
		return nil, err
	}
	return record, nil
}

func (s *WebhookDeliveryStore) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func webhookDeliveryToDomain(record *webhookDeliveryRecord) webhooks.DeliveryRecord {
	if record == nil {
		return webhooks.DeliveryRecord{}
	}
	return webhooks.DeliveryRecord{
		DeliveryID: record.DeliveryID,
		Event:      record.Event,
		Status:     record.Status,
		Attempts:   record.Attempts,
		LastError:  record.LastError,
		Payload:    append([]byte(nil), record.Payload...),
		ClaimedAt:  record.ClaimedAt.UTC(),
		CreatedAt:  record.CreatedAt.UTC(),
		UpdatedAt:  record.UpdatedAt.UTC(),
	}
}

func isUniqueViolation(err error) bool {
	message := strings.ToLower(strings.TrimSpace(err.Error()))
	return strings.Contains(message, "unique constraint failed") ||
		strings.Contains(message, "duplicate key value violates unique constraint")
}
