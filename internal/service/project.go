package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/templui/vaultgate/internal/activity"
	"github.com/templui/vaultgate/internal/lifecycle"
	"github.com/templui/vaultgate/internal/model"
	"github.com/templui/vaultgate/internal/policy"
	"github.com/templui/vaultgate/internal/repository"
	"github.com/templui/vaultgate/internal/validation"
)

type ProjectService struct {
	store    *repository.Store
	access   *Access
	notifier activity.Notifier
	clock    Clock
}

func NewProjectService(store *repository.Store, access *Access, notifier activity.Notifier, clock Clock) *ProjectService {
	return &ProjectService{
		store:    store,
		access:   access,
		notifier: notifier,
		clock:    clock,
	}
}

type CreateProjectInput struct {
	Name        string
	Description string
	ExpiresAt   time.Time
	Members     []string
}

// Create makes the project and its "[Project] <name>" folder in one
// transaction. Admins only.
func (s *ProjectService) Create(ctx context.Context, principal *model.User, in CreateProjectInput) (*model.Project, error) {
	err := s.requireAdmin(ctx, principal, "")
	if err != nil {
		return nil, err
	}

	name := strings.TrimSpace(in.Name)
	err = validation.ValidateFolderName(name)
	if err != nil {
		return nil, invalid("%s", err)
	}
	now := s.clock.Now()
	if !in.ExpiresAt.After(now) {
		return nil, invalid("expiry must be in the future")
	}

	projectID := uuid.New().String()
	folder := &model.Folder{
		ID:        uuid.New().String(),
		OwnerID:   principal.ID,
		Name:      model.ProjectFolderPrefix + name,
		ProjectID: &projectID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	project := &model.Project{
		ID:          projectID,
		Name:        name,
		Description: in.Description,
		CreatedBy:   principal.ID,
		FolderID:    folder.ID,
		ExpiresAt:   in.ExpiresAt.UTC(),
		Status:      model.ProjectStatusActive,
		CreatedAt:   now,
		UpdatedAt:   now,
		Members:     dedupe(in.Members),
	}

	err = s.store.Tx(ctx, func(tx *repository.Store) error {
		for _, id := range project.Members {
			_, err := tx.Users.ByID(ctx, id)
			if errors.Is(err, repository.ErrUserNotFound) {
				return invalid("unknown member %s", id)
			}
			if err != nil {
				return err
			}
		}

		err := tx.Folders.Create(ctx, folder)
		if errors.Is(err, repository.ErrDuplicateFolder) {
			return fmt.Errorf("%w: a project folder named %q already exists", ErrConflict, folder.Name)
		}
		if err != nil {
			return err
		}
		return tx.Projects.Create(ctx, project)
	})
	if err != nil {
		if errors.Is(err, ErrInvalidInput) || errors.Is(err, ErrConflict) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to create project: %w", err)
	}

	s.record(ctx, principal.ID, model.ActionProjectCreate, project, map[string]any{"expires_at": project.ExpiresAt, "members": len(project.Members)})
	return project, nil
}

// List returns the projects visible to the principal, archived excluded.
// Overdue projects are expired on the way out, the same transition the
// sweep applies.
func (s *ProjectService) List(ctx context.Context, principal *model.User) ([]*model.Project, error) {
	var projects []*model.Project
	var err error
	if principal.IsAdmin() {
		projects, err = s.store.Projects.List(ctx, false)
	} else {
		projects, err = s.store.Projects.ForMember(ctx, principal.ID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}

	s.expireOverdue(ctx, projects)
	return projects, nil
}

// ListAll includes archived projects when asked. Admins only.
func (s *ProjectService) ListAll(ctx context.Context, principal *model.User, includeArchived bool) ([]*model.Project, error) {
	err := s.requireAdmin(ctx, principal, "")
	if err != nil {
		return nil, err
	}
	projects, err := s.store.Projects.List(ctx, includeArchived)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	s.expireOverdue(ctx, projects)
	return projects, nil
}

func (s *ProjectService) Get(ctx context.Context, principal *model.User, id string) (*model.Project, error) {
	project, err := s.store.Projects.ByID(ctx, id)
	if errors.Is(err, repository.ErrProjectNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load project: %w", err)
	}
	if project.Status == model.ProjectStatusArchived && !principal.IsAdmin() {
		return nil, ErrNotFound
	}

	err = s.access.Check(ctx, principal, s.access.ProjectResource(principal, project), policy.OpRead)
	if err != nil {
		return nil, err
	}

	s.expireOverdue(ctx, []*model.Project{project})
	return project, nil
}

type UpdateProjectInput struct {
	Name        *string
	Description *string
	ExpiresAt   *time.Time
}

// Update edits an active project, including extending its expiry. Expired
// projects stay expired.
func (s *ProjectService) Update(ctx context.Context, principal *model.User, id string, in UpdateProjectInput) (*model.Project, error) {
	err := s.requireAdmin(ctx, principal, id)
	if err != nil {
		return nil, err
	}

	project, err := s.store.Projects.ByID(ctx, id)
	if errors.Is(err, repository.ErrProjectNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load project: %w", err)
	}

	now := s.clock.Now()
	if project.IsExpiredAt(now) {
		s.expireOverdue(ctx, []*model.Project{project})
		return nil, fmt.Errorf("%w: expired projects cannot be changed", ErrResourceExpired)
	}

	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if err := validation.ValidateFolderName(name); err != nil {
			return nil, invalid("%s", err)
		}
		project.Name = name
	}
	if in.Description != nil {
		project.Description = *in.Description
	}
	if in.ExpiresAt != nil {
		if !in.ExpiresAt.After(now) {
			return nil, invalid("expiry must be in the future")
		}
		project.ExpiresAt = in.ExpiresAt.UTC()
	}
	project.UpdatedAt = now

	ok, err := s.store.Projects.UpdateDetails(ctx, project)
	if err != nil {
		return nil, fmt.Errorf("failed to update project: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: project is no longer active", ErrResourceExpired)
	}

	s.record(ctx, principal.ID, model.ActionProjectUpdate, project, map[string]any{"expires_at": project.ExpiresAt})
	return project, nil
}

// Archive retires the project. Archived projects drop out of listings and
// refuse writes; their files stay readable through direct links for
// assigned members.
func (s *ProjectService) Archive(ctx context.Context, principal *model.User, id string) error {
	err := s.requireAdmin(ctx, principal, id)
	if err != nil {
		return err
	}

	project, err := s.store.Projects.ByID(ctx, id)
	if errors.Is(err, repository.ErrProjectNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to load project: %w", err)
	}

	ok, err := s.store.Projects.Archive(ctx, id, s.clock.Now())
	if err != nil {
		return fmt.Errorf("failed to archive project: %w", err)
	}
	if !ok {
		return nil
	}

	s.record(ctx, principal.ID, model.ActionProjectArchive, project, nil)
	return nil
}

// AddMember assigns a user to the project. Admins only; adding an
// existing member is a no-op
func (s *ProjectService) AddMember(ctx context.Context, principal *model.User, projectID, userID string) error {
	return s.changeMembers(ctx, principal, projectID, userID, true)
}

func (s *ProjectService) RemoveMember(ctx context.Context, principal *model.User, projectID, userID string) error {
	return s.changeMembers(ctx, principal, projectID, userID, false)
}

func (s *ProjectService) changeMembers(ctx context.Context, principal *model.User, projectID, userID string, add bool) error {
	err := s.requireAdmin(ctx, principal, projectID)
	if err != nil {
		return err
	}

	project, err := s.store.Projects.ByID(ctx, projectID)
	if errors.Is(err, repository.ErrProjectNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to load project: %w", err)
	}
	_, err = s.store.Users.ByID(ctx, userID)
	if errors.Is(err, repository.ErrUserNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to load user: %w", err)
	}

	if add {
		err = s.store.Projects.AddMember(ctx, project.ID, userID)
	} else {
		err = s.store.Projects.RemoveMember(ctx, project.ID, userID)
	}
	if err != nil {
		return fmt.Errorf("failed to update members: %w", err)
	}

	s.record(ctx, principal.ID, model.ActionProjectUpdate, project, map[string]any{"member": userID, "added": add})
	return nil
}

func (s *ProjectService) expireOverdue(ctx context.Context, projects []*model.Project) {
	now := s.clock.Now()
	for _, p := range projects {
		if (lifecycle.ProjectExpiry{Project: p}).Evaluate(now) != lifecycle.Expire {
			continue
		}
		_, err := s.expire(ctx, p)
		if err != nil {
			slog.Warn("failed to expire overdue project", "project_id", p.ID, "error", err)
			continue
		}
		p.Status = model.ProjectStatusExpired
	}
}

func (s *ProjectService) expire(ctx context.Context, p *model.Project) (bool, error) {
	ok, err := s.store.Projects.Expire(ctx, p.ID, s.clock.Now())
	if err != nil {
		return false, err
	}
	if ok {
		s.record(ctx, "", model.ActionProjectExpire, p, map[string]any{"expires_at": p.ExpiresAt})
	}
	return ok, nil
}

func (s *ProjectService) requireAdmin(ctx context.Context, principal *model.User, projectID string) error {
	if principal.IsAdmin() {
		return nil
	}
	s.notifier.Record(ctx, activity.Event{
		UserID:     principal.ID,
		Action:     model.ActionAccessDenied,
		TargetType: model.TargetProject,
		TargetID:   projectID,
		Severity:   model.SeverityWarning,
		Details:    map[string]any{"reason": policy.ReasonAdminRequired.String()},
		At:         s.clock.Now(),
	})
	return &AccessDeniedError{Reason: policy.ReasonAdminRequired}
}

func (s *ProjectService) record(ctx context.Context, userID, action string, p *model.Project, details map[string]any) {
	s.notifier.Record(ctx, activity.Event{
		UserID:     userID,
		Action:     action,
		TargetType: model.TargetProject,
		TargetID:   p.ID,
		TargetName: p.Name,
		Severity:   model.SeverityInfo,
		Details:    details,
		At:         s.clock.Now(),
	})
}

// ExpirySource feeds the project expiry sweep.
func (s *ProjectService) ExpirySource() lifecycle.Source {
	return projectExpirySource{s}
}

type projectExpirySource struct {
	projects *ProjectService
}

func (src projectExpirySource) Candidates(ctx context.Context) ([]lifecycle.Expiring, error) {
	projects, err := src.projects.store.Projects.Active(ctx)
	if err != nil {
		return nil, err
	}
	items := make([]lifecycle.Expiring, len(projects))
	for i, p := range projects {
		items[i] = lifecycle.ProjectExpiry{Project: p}
	}
	return items, nil
}

func (src projectExpirySource) Apply(ctx context.Context, item lifecycle.Expiring, t lifecycle.Transition) (bool, error) {
	pe, ok := item.(lifecycle.ProjectExpiry)
	if !ok || t != lifecycle.Expire {
		return false, fmt.Errorf("unexpected %s transition for %T", t, item)
	}
	return src.projects.expire(ctx, pe.Project)
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	var out []string
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
