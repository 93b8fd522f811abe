package activity

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/templui/vaultgate/internal/model"
	"github.com/templui/vaultgate/internal/repository"
)

// Store persists events to the activity_logs table.
type Store struct {
	repo repository.ActivityRepository
}

func NewStore(repo repository.ActivityRepository) *Store {
	return &Store{repo: repo}
}

func (s *Store) Record(ctx context.Context, e Event) {
	entry := &model.ActivityLog{
		ID:         uuid.New().String(),
		Action:     e.Action,
		TargetType: e.TargetType,
		TargetID:   e.TargetID,
		TargetName: e.TargetName,
		Severity:   e.Severity,
		Details:    model.Details(e.Details),
		CreatedAt:  e.At,
	}
	if e.UserID != "" {
		uid := e.UserID
		entry.UserID = &uid
	}
	if entry.Severity == "" {
		entry.Severity = model.SeverityInfo
	}

	err := s.repo.Create(ctx, entry)
	if err != nil {
		slog.Warn("failed to record activity", "action", e.Action, "target_id", e.TargetID, "error", err)
	}
}
