package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/hirelink/hireauth"
	"github.com/hirelink/hireauth/internal/db/models"
	"github.com/uptrace/bun"
)

// BunAccessLogRepository persists access log entries and implements
// [hireauth.AccessLogSink].
type BunAccessLogRepository struct {
	db *bun.DB
}

var _ hireauth.AccessLogSink = (*BunAccessLogRepository)(nil)

// NewBunAccessLogRepository creates an access log repository over db.
func NewBunAccessLogRepository(db *bun.DB) *BunAccessLogRepository {
	return &BunAccessLogRepository{db: db}
}

// Emit inserts entry.
func (r *BunAccessLogRepository) Emit(ctx context.Context, entry hireauth.AccessLogEntry) error {
	row := &models.AccessLog{
		ID:         entry.ID,
		Timestamp:  entry.Timestamp.UTC(),
		Account:    entry.Account,
		UserID:     entry.UserID,
		SessionID:  entry.SessionID,
		Method:     entry.Method,
		Path:       entry.Path,
		Status:     entry.Status,
		DurationMS: entry.Duration.Milliseconds(),
		IP:         entry.IP,
		UserAgent:  entry.UserAgent,
	}
	if _, err := r.db.NewInsert().Model(row).Exec(ctx); err != nil {
		return fmt.Errorf("insert access log: %w", err)
	}
	return nil
}

// RecentForAccount returns up to limit entries of account, newest first.
func (r *BunAccessLogRepository) RecentForAccount(ctx context.Context, account string, limit int) ([]hireauth.AccessLogEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []models.AccessLog
	err := r.db.NewSelect().
		Model(&rows).
		Where("account = ?", account).
		OrderExpr("logged_at DESC").
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list access logs: %w", err)
	}

	out := make([]hireauth.AccessLogEntry, 0, len(rows))
	for _, row := range rows {
		out = append(out, hireauth.AccessLogEntry{
			ID:        row.ID,
			Timestamp: row.Timestamp,
			Account:   row.Account,
			UserID:    row.UserID,
			SessionID: row.SessionID,
			Method:    row.Method,
			Path:      row.Path,
			Status:    row.Status,
			Duration:  time.Duration(row.DurationMS) * time.Millisecond,
			IP:        row.IP,
			UserAgent: row.UserAgent,
		})
	}
	return out, nil
}

// PurgeBefore deletes entries older than cutoff and returns how many went.
func (r *BunAccessLogRepository) PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.NewDelete().
		Model((*models.AccessLog)(nil)).
		Where("logged_at < ?", cutoff.UTC()).
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("purge access logs: %w", err)
	}
	return result.RowsAffected()
}
