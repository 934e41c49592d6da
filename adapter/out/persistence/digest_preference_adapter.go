// Package persistence provides database adapters implementing outbound
// ports, plus in-memory fallbacks used when DATABASE_URL is unset.
package persistence

import (
	"context"
	"database/sql"
	"sync"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"

	"github.com/jkoufopoulos/shopq-prototype-sub001/core/port/out"
	"github.com/jkoufopoulos/shopq-prototype-sub001/pkg/apperr"
)

// Connect opens a pgx-backed sqlx pool and verifies it.
func Connect(ctx context.Context, databaseURL string) (*sqlx.DB, error) {
	db, err := sqlx.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// PreferenceAdapter implements out.PreferenceStore using PostgreSQL.
type PreferenceAdapter struct {
	db *sqlx.DB
}

func NewPreferenceAdapter(db *sqlx.DB) *PreferenceAdapter {
	return &PreferenceAdapter{db: db}
}

var _ out.PreferenceStore = (*PreferenceAdapter)(nil)

func (a *PreferenceAdapter) Get(ctx context.Context, userID string) (*out.Preferences, error) {
	const query = `
		SELECT user_id, timezone, name, city, region
		FROM user_preferences
		WHERE user_id = $1
	`

	var prefs out.Preferences
	if err := a.db.GetContext(ctx, &prefs, query, userID); err != nil {
		if err == sql.ErrNoRows {
			return nil, apperr.NotFound("preferences")
		}
		return nil, err
	}
	return &prefs, nil
}

// MemoryPreferenceStore serves preferences from memory. Used in
// development and in tests.
type MemoryPreferenceStore struct {
	mu   sync.RWMutex
	rows map[string]out.Preferences
}

func NewMemoryPreferenceStore() *MemoryPreferenceStore {
	return &MemoryPreferenceStore{rows: make(map[string]out.Preferences)}
}

var _ out.PreferenceStore = (*MemoryPreferenceStore)(nil)

func (s *MemoryPreferenceStore) Put(prefs out.Preferences) {
	s.mu.Lock()
	s.rows[prefs.UserID] = prefs
	s.mu.Unlock()
}

func (s *MemoryPreferenceStore) Get(_ context.Context, userID string) (*out.Preferences, error) {
	s.mu.RLock()
	prefs, ok := s.rows[userID]
	s.mu.RUnlock()
	if !ok {
		return nil, apperr.NotFound("preferences")
	}
	return &prefs, nil
}
