package persistence

import (
	"context"
	"sync"

	"github.com/jmoiron/sqlx"

	"github.com/jkoufopoulos/shopq-prototype-sub001/core/port/out"
)

// HistoryAdapter implements out.DigestHistory using PostgreSQL.
type HistoryAdapter struct {
	db *sqlx.DB
}

func NewHistoryAdapter(db *sqlx.DB) *HistoryAdapter {
	return &HistoryAdapter{db: db}
}

var _ out.DigestHistory = (*HistoryAdapter)(nil)

func (a *HistoryAdapter) Insert(ctx context.Context, rec *out.DigestRecord) error {
	const query = `
		INSERT INTO digest_history (
			id, generated_at, timezone, city, word_count,
			entities_count, featured_count, html_bytes, verified, fallback
		) VALUES (
			:id, :generated_at, :timezone, :city, :word_count,
			:entities_count, :featured_count, :html_bytes, :verified, :fallback
		)
	`
	_, err := a.db.NamedExecContext(ctx, query, rec)
	return err
}

func (a *HistoryAdapter) Recent(ctx context.Context, limit int) ([]out.DigestRecord, error) {
	const query = `
		SELECT id, generated_at, timezone, city, word_count,
		       entities_count, featured_count, html_bytes, verified, fallback
		FROM digest_history
		ORDER BY generated_at DESC
		LIMIT $1
	`

	records := []out.DigestRecord{}
	if err := a.db.SelectContext(ctx, &records, query, limit); err != nil {
		return nil, err
	}
	return records, nil
}

// memoryHistoryCap bounds the in-memory ring so long-lived dev servers
// do not grow without limit.
const memoryHistoryCap = 500

// MemoryHistory keeps recent runs in memory, newest first.
type MemoryHistory struct {
	mu      sync.RWMutex
	records []out.DigestRecord
}

func NewMemoryHistory() *MemoryHistory {
	return &MemoryHistory{}
}

var _ out.DigestHistory = (*MemoryHistory)(nil)

func (h *MemoryHistory) Insert(_ context.Context, rec *out.DigestRecord) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.records = append([]out.DigestRecord{*rec}, h.records...)
	if len(h.records) > memoryHistoryCap {
		h.records = h.records[:memoryHistoryCap]
	}
	return nil
}

func (h *MemoryHistory) Recent(_ context.Context, limit int) ([]out.DigestRecord, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if limit > len(h.records) {
		limit = len(h.records)
	}
	recent := make([]out.DigestRecord, limit)
	copy(recent, h.records[:limit])
	return recent, nil
}
