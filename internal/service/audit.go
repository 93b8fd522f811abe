package service

import (
	"context"
	"fmt"
	"time"

	"github.com/templui/vaultgate/internal/activity"
	"github.com/templui/vaultgate/internal/model"
	"github.com/templui/vaultgate/internal/policy"
	"github.com/templui/vaultgate/internal/repository"
)

const (
	defaultLogLimit = 50
	maxLogLimit     = 200
	trendDays       = 7
	topExtensions   = 10
	recentLogLimit  = 5
)

// LogQuery filters the audit log. Page is 1-based.
type LogQuery struct {
	UserID   string
	Action   string
	Severity string
	From     *time.Time
	To       *time.Time
	Page     int
	Limit    int
}

type LogPage struct {
	Total   int                  `json:"total"`
	Page    int                  `json:"page"`
	Limit   int                  `json:"limit"`
	Entries []*model.ActivityLog `json:"entries"`
}

type SystemStats struct {
	Users      *repository.UserStats        `json:"users"`
	Files      *repository.FileStats        `json:"files"`
	Folders    *repository.FolderCounts     `json:"folders"`
	Projects   map[string]int               `json:"projects"`
	Extensions []*repository.ExtensionCount `json:"extensions"`
	Uploads    []DayCount                   `json:"uploads"`
	Recent     []*model.ActivityLog         `json:"recent_activity"`
}

// DayCount is the number of events on one UTC day.
type DayCount struct {
	Day   string `json:"day"`
	Count int    `json:"count"`
}

// AuditService answers the admin console: the filtered activity log and
// the system overview. Every method is admin only.
type AuditService struct {
	store    *repository.Store
	notifier activity.Notifier
	clock    Clock
}

func NewAuditService(store *repository.Store, notifier activity.Notifier, clock Clock) *AuditService {
	return &AuditService{store: store, notifier: notifier, clock: clock}
}

// Logs returns one page of the activity log, newest first. Limit defaults
// to 50 and is capped at 200.
func (s *AuditService) Logs(ctx context.Context, principal *model.User, q LogQuery) (*LogPage, error) {
	if !principal.IsAdmin() {
		return nil, s.denied(ctx, principal)
	}

	switch q.Severity {
	case "", model.SeverityInfo, model.SeverityWarning, model.SeverityCritical:
	default:
		return nil, invalid("unknown severity %q", q.Severity)
	}
	if q.From != nil && q.To != nil && q.From.After(*q.To) {
		return nil, invalid("from must not be after to")
	}
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Limit <= 0 {
		q.Limit = defaultLogLimit
	}
	q.Limit = min(q.Limit, maxLogLimit)

	entries, total, err := s.store.Activity.Query(ctx, repository.ActivityQuery{
		UserID:   q.UserID,
		Action:   q.Action,
		Severity: q.Severity,
		From:     utc(q.From),
		To:       utc(q.To),
		Limit:    q.Limit,
		Offset:   (q.Page - 1) * q.Limit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query activity: %w", err)
	}
	if entries == nil {
		entries = []*model.ActivityLog{}
	}
	return &LogPage{Total: total, Page: q.Page, Limit: q.Limit, Entries: entries}, nil
}

// SystemStats summarises accounts, content and recent activity.
//
// The upload trend covers the last seven UTC days including today, with
// zero-filled gaps so the series always has seven points.
func (s *AuditService) SystemStats(ctx context.Context, principal *model.User) (*SystemStats, error) {
	if !principal.IsAdmin() {
		return nil, s.denied(ctx, principal)
	}

	var stats SystemStats
	var err error

	stats.Users, err = s.store.Users.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count users: %w", err)
	}
	stats.Files, err = s.store.Files.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count files: %w", err)
	}
	stats.Folders, err = s.store.Folders.Counts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count folders: %w", err)
	}
	stats.Projects, err = s.store.Projects.CountByStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count projects: %w", err)
	}
	stats.Extensions, err = s.store.Files.ExtensionBreakdown(ctx, topExtensions)
	if err != nil {
		return nil, fmt.Errorf("failed to group extensions: %w", err)
	}
	stats.Uploads, err = s.uploadTrend(ctx)
	if err != nil {
		return nil, err
	}
	stats.Recent, _, err = s.store.Activity.Query(ctx, repository.ActivityQuery{Limit: recentLogLimit})
	if err != nil {
		return nil, fmt.Errorf("failed to load recent activity: %w", err)
	}
	return &stats, nil
}

func (s *AuditService) uploadTrend(ctx context.Context) ([]DayCount, error) {
	today := s.clock.Now().UTC().Truncate(24 * time.Hour)
	since := today.AddDate(0, 0, -(trendDays - 1))

	times, err := s.store.Activity.TimesSince(ctx, model.ActionUpload, since)
	if err != nil {
		return nil, fmt.Errorf("failed to load uploads: %w", err)
	}

	trend := make([]DayCount, trendDays)
	for i := range trend {
		trend[i].Day = since.AddDate(0, 0, i).Format(time.DateOnly)
	}
	for _, t := range times {
		i := int(t.UTC().Sub(since) / (24 * time.Hour))
		if i >= 0 && i < trendDays {
			trend[i].Count++
		}
	}
	return trend, nil
}

func (s *AuditService) denied(ctx context.Context, principal *model.User) error {
	s.notifier.Record(ctx, activity.Event{
		UserID:     principal.ID,
		Action:     model.ActionAccessDenied,
		TargetType: model.TargetUser,
		Severity:   model.SeverityWarning,
		Details:    map[string]any{"reason": policy.ReasonAdminRequired.String()},
		At:         s.clock.Now(),
	})
	return &AccessDeniedError{Reason: policy.ReasonAdminRequired}
}

func utc(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
