package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/templui/vaultgate/internal/model"
)

type ActivityRepository interface {
	Create(ctx context.Context, entry *model.ActivityLog) error
	CountSince(ctx context.Context, action string, since time.Time) (int, error)
	// Flagged returns the newest warning and critical entries.
	Flagged(ctx context.Context, limit int) ([]*model.ActivityLog, error)
	// Query returns one page of matching entries, newest first, and the
	// total number of matches.
	Query(ctx context.Context, q ActivityQuery) ([]*model.ActivityLog, int, error)
	// TimesSince lists when the given action happened from since onwards.
	TimesSince(ctx context.Context, action string, since time.Time) ([]time.Time, error)
}

// ActivityQuery filters the audit log. Zero fields match everything.
type ActivityQuery struct {
	UserID   string
	Action   string
	Severity string
	From     *time.Time
	To       *time.Time
	Limit    int
	Offset   int
}

type activityRepository struct {
	db sqlx.ExtContext
}

func (r *activityRepository) Create(ctx context.Context, entry *model.ActivityLog) error {
	query := `INSERT INTO activity_logs (id, user_id, action, target_type, target_id, target_name, severity, details, created_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := r.db.ExecContext(ctx, query,
		entry.ID,
		entry.UserID,
		entry.Action,
		entry.TargetType,
		entry.TargetID,
		entry.TargetName,
		entry.Severity,
		entry.Details,
		entry.CreatedAt,
	)
	return err
}

func (r *activityRepository) CountSince(ctx context.Context, action string, since time.Time) (int, error) {
	var n int
	query := `SELECT COUNT(*) FROM activity_logs WHERE action = $1 AND created_at >= $2`
	err := sqlx.GetContext(ctx, r.db, &n, query, action, since)
	return n, err
}

func (r *activityRepository) Flagged(ctx context.Context, limit int) ([]*model.ActivityLog, error) {
	var entries []*model.ActivityLog
	query := `SELECT * FROM activity_logs WHERE severity IN ($1, $2) ORDER BY created_at DESC LIMIT $3`

	err := sqlx.SelectContext(ctx, r.db, &entries, query, model.SeverityWarning, model.SeverityCritical, limit)
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *activityRepository) Query(ctx context.Context, q ActivityQuery) ([]*model.ActivityLog, int, error) {
	var f filter
	if q.UserID != "" {
		f.where("user_id = ?", q.UserID)
	}
	if q.Action != "" {
		f.where("action = ?", q.Action)
	}
	if q.Severity != "" {
		f.where("severity = ?", q.Severity)
	}
	if q.From != nil {
		f.where("created_at >= ?", *q.From)
	}
	if q.To != nil {
		f.where("created_at <= ?", *q.To)
	}

	var total int
	query, args := f.query(`SELECT COUNT(*) FROM activity_logs`, "")
	err := sqlx.GetContext(ctx, r.db, &total, query, args...)
	if err != nil {
		return nil, 0, err
	}

	var entries []*model.ActivityLog
	query, args = f.query(`SELECT * FROM activity_logs`, ` ORDER BY created_at DESC, id LIMIT ? OFFSET ?`, q.Limit, q.Offset)
	err = sqlx.SelectContext(ctx, r.db, &entries, query, args...)
	if err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}

func (r *activityRepository) TimesSince(ctx context.Context, action string, since time.Time) ([]time.Time, error) {
	var times []time.Time
	query := `SELECT created_at FROM activity_logs WHERE action = $1 AND created_at >= $2 ORDER BY created_at`

	err := sqlx.SelectContext(ctx, r.db, &times, query, action, since)
	if err != nil {
		return nil, err
	}
	return times, nil
}
