package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/templui/vaultgate/internal/activity"
	"github.com/templui/vaultgate/internal/model"
	"github.com/templui/vaultgate/internal/policy"
	"github.com/templui/vaultgate/internal/repository"
)

// Access turns stored rows into policy resources and reports denials.
type Access struct {
	store    *repository.Store
	notifier activity.Notifier
	clock    Clock
}

func NewAccess(store *repository.Store, notifier activity.Notifier, clock Clock) *Access {
	return &Access{store: store, notifier: notifier, clock: clock}
}

// FolderResource describes a folder for policy.Decide, resolving its
// project (if any) and whether the principal is assigned to it
func (a *Access) FolderResource(ctx context.Context, principal *model.User, folder *model.Folder) (policy.Resource, error) {
	scope, err := a.projectScope(ctx, principal, folder.ProjectID)
	if err != nil {
		return policy.Resource{}, err
	}
	return policy.Resource{
		Kind:    policy.KindFolder,
		ID:      folder.ID,
		Name:    folder.Name,
		OwnerID: folder.OwnerID,
		Private: folder.IsPrivate,
		Project: scope,
	}, nil
}

// FileResource reads privacy and project from the file row, where upload
// copied them from the folder
func (a *Access) FileResource(ctx context.Context, principal *model.User, file *model.File) (policy.Resource, error) {
	scope, err := a.projectScope(ctx, principal, file.ProjectID)
	if err != nil {
		return policy.Resource{}, err
	}
	return policy.Resource{
		Kind:    policy.KindFile,
		ID:      file.ID,
		Name:    file.OriginalName,
		OwnerID: file.OwnerID,
		Private: file.IsPrivate,
		Project: scope,
	}, nil
}

func (a *Access) ProjectResource(principal *model.User, project *model.Project) policy.Resource {
	return policy.Resource{
		Kind:    policy.KindProject,
		ID:      project.ID,
		Name:    project.Name,
		OwnerID: project.CreatedBy,
		Project: a.scopeOf(principal, project),
	}
}

// PrincipalResource describes a user account as the target of an operation
func PrincipalResource(target *model.User) policy.Resource {
	return policy.Resource{
		Kind:       policy.KindPrincipal,
		ID:         target.ID,
		Name:       target.Email,
		OwnerID:    target.ID,
		TargetRole: target.Role,
	}
}

func (a *Access) projectScope(ctx context.Context, principal *model.User, projectID *string) (*policy.ProjectScope, error) {
	if projectID == nil {
		return nil, nil
	}
	project, err := a.store.Projects.ByID(ctx, *projectID)
	if errors.Is(err, repository.ErrProjectNotFound) {
		// Dangling reference: treat as a project nobody is assigned to.
		return &policy.ProjectScope{ID: *projectID, Expired: true}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load project: %w", err)
	}
	return a.scopeOf(principal, project), nil
}

func (a *Access) scopeOf(principal *model.User, project *model.Project) *policy.ProjectScope {
	return &policy.ProjectScope{
		ID:       project.ID,
		Expired:  project.IsExpiredAt(a.clock.Now()),
		Assigned: principal != nil && project.HasMember(principal.ID),
	}
}

// Check consults the policy and, on denial, records a warning and returns
// *AccessDeniedError, or ErrResourceExpired for writes into an expired
// project.
func (a *Access) Check(ctx context.Context, principal *model.User, res policy.Resource, op policy.Operation) error {
	result := policy.Decide(principal, res, op)
	if result.Allowed() {
		return nil
	}

	e := activity.Event{
		Action:     model.ActionAccessDenied,
		TargetType: res.Kind.String(),
		TargetID:   res.ID,
		TargetName: res.Name,
		Severity:   model.SeverityWarning,
		Details:    map[string]any{"operation": op.String(), "reason": result.Reason.String()},
		At:         a.clock.Now(),
	}
	if principal != nil {
		e.UserID = principal.ID
	}
	a.notifier.Record(ctx, e)

	if result.Reason == policy.ReasonProjectExpired {
		return fmt.Errorf("%w: contact an administrator to extend the project", ErrResourceExpired)
	}
	return &AccessDeniedError{Reason: result.Reason}
}

// Visible is Check without the side effects, for filtering listings.
func Visible(principal *model.User, res policy.Resource) bool {
	return policy.Decide(principal, res, policy.OpRead).Allowed()
}
