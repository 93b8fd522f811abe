package service

import (
	"context"
	"fmt"
	"time"

	"github.com/templui/vaultgate/internal/model"
	"github.com/templui/vaultgate/internal/policy"
	"github.com/templui/vaultgate/internal/repository"
)

// SecurityWindow is the rolling window the threat level is computed over.
const SecurityWindow = 24 * time.Hour

const recentFlaggedLimit = 20

type SecurityReport struct {
	Level       policy.ThreatLevel   `json:"threat_level"`
	Since       time.Time            `json:"since"`
	Deletes     int                  `json:"deletes"`
	Uploads     int                  `json:"uploads"`
	Denied      int                  `json:"access_denied"`
	Destroyed   int                  `json:"self_destructed"`
	RecentAlert []*model.ActivityLog `json:"recent_alerts"`
}

type SecurityService struct {
	store      *repository.Store
	clock      Clock
	thresholds policy.Thresholds
}

func NewSecurityService(store *repository.Store, clock Clock, thresholds policy.Thresholds) *SecurityService {
	return &SecurityService{store: store, clock: clock, thresholds: thresholds}
}

// Report grades the last 24 hours. Only user-initiated deletes count
// toward the level; sweeps are reported separately.
func (s *SecurityService) Report(ctx context.Context) (*SecurityReport, error) {
	since := s.clock.Now().Add(-SecurityWindow)
	report := &SecurityReport{Since: since}

	counts := []struct {
		action string
		into   *int
	}{
		{model.ActionDelete, &report.Deletes},
		{model.ActionUpload, &report.Uploads},
		{model.ActionAccessDenied, &report.Denied},
		{model.ActionFileDestruct, &report.Destroyed},
	}
	for _, c := range counts {
		n, err := s.store.Activity.CountSince(ctx, c.action, since)
		if err != nil {
			return nil, fmt.Errorf("failed to count %s events: %w", c.action, err)
		}
		*c.into = n
	}

	flagged, err := s.store.Activity.Flagged(ctx, recentFlaggedLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to load recent alerts: %w", err)
	}
	report.RecentAlert = flagged
	report.Level = s.thresholds.Classify(policy.Counts{Deletes: report.Deletes, Denied: report.Denied})
	return report, nil
}
