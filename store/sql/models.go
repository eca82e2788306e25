package sqlstore

import (
	"time"

	"github.com/uptrace/bun"
)

type webhookDeliveryRecord struct {
	bun.BaseModel `bun:"table:whatsflow_webhook_deliveries,alias:wwd"`

	ID         string    `bun:"id,pk"`
	DeliveryID string    `bun:"delivery_id,notnull"`
	Event      string    `bun:"event,notnull"`
	Status     string    `bun:"status,notnull"`
	Attempts   int       `bun:"attempts,notnull"`
	LastError  string    `bun:"last_error,notnull"`
	Payload    []byte    `bun:"payload"`
	ClaimedAt  time.Time `bun:"claimed_at,nullzero,notnull,default:current_timestamp"`
	CreatedAt  time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt  time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type rateLimitStateRecord struct {
	bun.BaseModel `bun:"table:whatsflow_rate_limit_state,alias:wrl"`

	ID                string     `bun:"id,pk"`
	APIKeyID          string     `bun:"api_key_id,notnull"`
	Bucket            string     `bun:"bucket,notnull"`
	Limit             int        `bun:"limit,notnull"`
	Remaining         int        `bun:"remaining,notnull"`
	ResetAt           *time.Time `bun:"reset_at,nullzero"`
	RetryAfterSeconds *int       `bun:"retry_after_seconds"`
	ThrottledUntil    *time.Time `bun:"throttled_until,nullzero"`
	LastStatus        int        `bun:"last_status,notnull"`
	Attempts          int        `bun:"attempts,notnull"`
	CreatedAt         time.Time  `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt         time.Time  `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}
