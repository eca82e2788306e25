package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/goliatone/go-whatsflow/core"
	"github.com/goliatone/go-whatsflow/ratelimit"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type RateLimitStateStore struct {
	db   *bun.DB
	repo repository.Repository[*rateLimitStateRecord]
}

func NewRateLimitStateStore(db *bun.DB) (*RateLimitStateStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*rateLimitStateRecord](db, rateLimitStateHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid rate-limit state repository wiring: %w", err)
		}
	}
	return &RateLimitStateStore{
		db:   db,
		repo: repo,
	}, nil
}

func (s *RateLimitStateStore) Get(ctx context.Context, key core.RateLimitKey) (ratelimit.State, error) {
	if s == nil || s.repo == nil {
		return ratelimit.State{}, fmt.Errorf("sqlstore: rate-limit state store is not configured")
	}
	key = ratelimit.NormalizeKey(key)
	if err := validateRateLimitKey(key); err != nil {
		return ratelimit.State{}, err
	}

	records, _, err := s.repo.List(ctx,
		repository.SelectBy("api_key_id", "=", key.APIKeyID),
		repository.SelectBy("bucket", "=", key.Bucket),
		repository.SelectPaginate(1, 0),
	)
	if err != nil {
		return ratelimit.State{}, err
	}
	if len(records) == 0 {
		return ratelimit.State{}, ratelimit.ErrStateNotFound
	}
	return records[0].toDomain(), nil
}

// Upsert writes the state for its key inside one transaction. The unique
// (api_key_id, bucket) index keeps a single row per key.
func (s *RateLimitStateStore) Upsert(ctx context.Context, state ratelimit.State) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: rate-limit state store is not configured")
	}
	state.Key = ratelimit.NormalizeKey(state.Key)
	if err := validateRateLimitKey(state.Key); err != nil {
		return err
	}
	if state.UpdatedAt.IsZero() {
		state.UpdatedAt = time.Now().UTC()
	}

	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		record, err := findRateLimitStateTx(ctx, tx, state.Key)
		if err != nil {
			return err
		}
		created := record == nil
		if created {
			record = &rateLimitStateRecord{
				ID:        uuid.NewString(),
				APIKeyID:  state.Key.APIKeyID,
				Bucket:    state.Key.Bucket,
				CreatedAt: state.UpdatedAt.UTC(),
			}
		}
		record.Limit = state.Limit
		record.Remaining = state.Remaining
		record.ResetAt = copyTimePointer(state.ResetAt)
		record.RetryAfterSeconds = durationToSecondsPointer(state.RetryAfter)
		record.ThrottledUntil = copyTimePointer(state.ThrottledUntil)
		record.LastStatus = state.LastStatus
		record.Attempts = state.Attempts
		record.UpdatedAt = state.UpdatedAt.UTC()

		if created {
			_, err = tx.NewInsert().Model(record).Exec(ctx)
			return err
		}
		_, err = tx.NewUpdate().
			Model(record).
			Where("id = ?", record.ID).
			Exec(ctx)
		return err
	})
}

func (r *rateLimitStateRecord) toDomain() ratelimit.State {
	if r == nil {
		return ratelimit.State{}
	}
	state := ratelimit.State{
		Key: core.RateLimitKey{
			APIKeyID: r.APIKeyID,
			Bucket:   r.Bucket,
		},
		Limit:          r.Limit,
		Remaining:      r.Remaining,
		ResetAt:        copyTimePointer(r.ResetAt),
		ThrottledUntil: copyTimePointer(r.ThrottledUntil),
		LastStatus:     r.LastStatus,
		Attempts:       r.Attempts,
		UpdatedAt:      r.UpdatedAt.UTC(),
	}
	if r.RetryAfterSeconds != nil && *r.RetryAfterSeconds > 0 {
		value := time.Duration(*r.RetryAfterSeconds) * time.Second
		state.RetryAfter = &value
	}
	return state
}

func findRateLimitStateTx(
	ctx context.Context,
	tx bun.Tx,
	key core.RateLimitKey,
) (*rateLimitStateRecord, error) {
	record := &rateLimitStateRecord{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.api_key_id = ?", key.APIKeyID).
		Where("?TableAlias.bucket = ?", key.Bucket).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return record, nil
}

func validateRateLimitKey(key core.RateLimitKey) error {
	if strings.TrimSpace(key.APIKeyID) == "" {
		return fmt.Errorf("sqlstore: rate-limit api key id is required")
	}
	if strings.TrimSpace(key.Bucket) == "" {
		return fmt.Errorf("sqlstore: rate-limit bucket is required")
	}
	return nil
}

func copyTimePointer(input *time.Time) *time.Time {
	if input == nil {
		return nil
	}
	value := input.UTC()
	return &value
}

func durationToSecondsPointer(input *time.Duration) *int {
	if input == nil || *input <= 0 {
		return nil
	}
	seconds := int(input.Seconds())
	if seconds <= 0 {
		seconds = 1
	}
	return &seconds
}
