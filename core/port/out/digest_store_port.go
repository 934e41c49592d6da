package out

import (
	"context"
	"time"
)

// TTLCache is the process-wide cache used by the weather and geolocation
// adapters. Values are immutable once written; a refresh replaces the
// entry atomically. Implementations must be safe for concurrent use.
type TTLCache interface {
	// GetJSON unmarshals the cached value into dest. found=false on miss
	// or expiry.
	GetJSON(ctx context.Context, key string, dest any) (found bool, err error)
	// SetJSON stores value under key for ttl.
	SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error
}

// Preferences is the read-only user preference row the core consumes.
type Preferences struct {
	UserID   string `db:"user_id" json:"user_id"`
	Timezone string `db:"timezone" json:"timezone"`
	Name     string `db:"name" json:"name"`
	City     string `db:"city" json:"city"`
	Region   string `db:"region" json:"region"`
}

// PreferenceStore is the minimal key-value interface the core reads from.
// The core never writes preferences.
type PreferenceStore interface {
	Get(ctx context.Context, userID string) (*Preferences, error)
}

// DigestRecord is the per-run observability row kept by the API layer.
type DigestRecord struct {
	ID            string    `db:"id" json:"id"`
	GeneratedAt   time.Time `db:"generated_at" json:"generated_at"`
	Timezone      string    `db:"timezone" json:"timezone"`
	City          string    `db:"city" json:"city"`
	WordCount     int       `db:"word_count" json:"word_count"`
	EntitiesCount int       `db:"entities_count" json:"entities_count"`
	FeaturedCount int       `db:"featured_count" json:"featured_count"`
	HTMLBytes     int       `db:"html_bytes" json:"html_bytes"`
	Verified      bool      `db:"verified" json:"verified"`
	Fallback      bool      `db:"fallback" json:"fallback"`
}

// DigestHistory records completed runs. Inserts are best-effort; a failed
// insert never fails the digest.
type DigestHistory interface {
	Insert(ctx context.Context, rec *DigestRecord) error
	Recent(ctx context.Context, limit int) ([]DigestRecord, error)
}
