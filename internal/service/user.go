package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/templui/vaultgate/internal/activity"
	"github.com/templui/vaultgate/internal/lifecycle"
	"github.com/templui/vaultgate/internal/model"
	"github.com/templui/vaultgate/internal/policy"
	"github.com/templui/vaultgate/internal/repository"
	"github.com/templui/vaultgate/internal/storage"
	"github.com/templui/vaultgate/internal/validation"
)

type UserService struct {
	store        *repository.Store
	auth         *AuthService
	ledger       *Ledger
	access       *Access
	blobs        storage.BlobStore
	notifier     activity.Notifier
	clock        Clock
	defaultQuota int64
}

func NewUserService(
	store *repository.Store,
	auth *AuthService,
	ledger *Ledger,
	access *Access,
	blobs storage.BlobStore,
	notifier activity.Notifier,
	clock Clock,
	defaultQuota int64,
) *UserService {
	return &UserService{
		store:        store,
		auth:         auth,
		ledger:       ledger,
		access:       access,
		blobs:        blobs,
		notifier:     notifier,
		clock:        clock,
		defaultQuota: defaultQuota,
	}
}

type CreateUserInput struct {
	Email    string
	EmpID    string
	Name     string
	Password string
	Role     string
	Quota    int64 // zero means the configured default
}

// Create registers an account. Admins only; there is no self sign-up.
func (s *UserService) Create(ctx context.Context, principal *model.User, in CreateUserInput) (*model.User, error) {
	if !principal.IsAdmin() {
		return nil, s.denied(ctx, principal, "", policy.ReasonAdminRequired)
	}

	email := strings.TrimSpace(strings.ToLower(in.Email))
	if err := validation.ValidateEmail(email); err != nil {
		return nil, invalid("%s", err)
	}
	empID := strings.TrimSpace(in.EmpID)
	if err := validation.ValidateEmpID(empID); err != nil {
		return nil, invalid("%s", err)
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, invalid("name is required")
	}
	if err := validation.ValidatePassword(in.Password); err != nil {
		return nil, invalid("%s", err)
	}

	role := in.Role
	if role == "" {
		role = model.RoleMember
	}
	if role != model.RoleMember && role != model.RoleAdmin {
		return nil, invalid("unknown role %q", role)
	}
	quota := in.Quota
	if quota == 0 {
		quota = s.defaultQuota
	}
	if quota < 0 {
		return nil, invalid("quota must not be negative")
	}

	hash, err := s.auth.HashPassword(in.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := s.clock.Now()
	user := &model.User{
		ID:           uuid.New().String(),
		Email:        email,
		EmpID:        empID,
		Name:         name,
		PasswordHash: hash,
		Role:         role,
		IsActive:     true,
		Quota:        quota,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	err = s.store.Users.Create(ctx, user)
	if errors.Is(err, repository.ErrDuplicateUser) {
		return nil, fmt.Errorf("%w: %v", ErrConflict, err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.record(ctx, principal.ID, model.ActionUserCreate, user, model.SeverityInfo, map[string]any{"role": role})
	return user, nil
}

// List returns every account. Admins only
func (s *UserService) List(ctx context.Context, principal *model.User) ([]*model.User, error) {
	if !principal.IsAdmin() {
		return nil, s.denied(ctx, principal, "", policy.ReasonAdminRequired)
	}
	users, err := s.store.Users.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}

func (s *UserService) Get(ctx context.Context, principal *model.User, id string) (*model.User, error) {
	return s.authorized(ctx, principal, id, policy.OpRead)
}

// SetActive locks or unlocks an account. Unlocking restarts the inactivity
// window so the next sweep does not lock it straight away.
func (s *UserService) SetActive(ctx context.Context, principal *model.User, id string, active bool) error {
	user, err := s.authorized(ctx, principal, id, policy.OpManage)
	if err != nil {
		return err
	}

	now := s.clock.Now()
	var changed bool
	action := model.ActionAccountLock
	if active {
		action = model.ActionAccountUnlock
		changed, err = s.store.Users.Unlock(ctx, user.ID, now)
	} else {
		changed, err = s.store.Users.Lock(ctx, user.ID, now)
	}
	if err != nil {
		return fmt.Errorf("failed to update account: %w", err)
	}
	if changed {
		s.record(ctx, principal.ID, action, user, model.SeverityInfo, nil)
	}
	return nil
}

// Delete removes the account, its files and their blobs. Folders the user
// owned pass to the deleting admin so other people's files inside stay
// reachable.
func (s *UserService) Delete(ctx context.Context, principal *model.User, id string) error {
	user, err := s.authorized(ctx, principal, id, policy.OpDelete)
	if err != nil {
		return err
	}

	paths, err := s.store.Versions.PathsByOwner(ctx, user.ID)
	if err != nil {
		return fmt.Errorf("failed to list blobs: %w", err)
	}

	err = s.store.Tx(ctx, func(tx *repository.Store) error {
		return tx.Users.Delete(ctx, user.ID, principal.ID)
	})
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}

	bg := context.WithoutCancel(ctx)
	for _, p := range paths {
		err := s.blobs.Delete(bg, p)
		if err != nil && !errors.Is(err, storage.ErrBlobNotFound) {
			slog.Warn("failed to remove blob of deleted user", "error", err, "path", p, "user_id", user.ID)
		}
	}

	s.record(ctx, principal.ID, model.ActionUserDelete, user, model.SeverityWarning, map[string]any{"blobs": len(paths)})
	return nil
}

// Usage is visible to the account itself and to admins
func (s *UserService) Usage(ctx context.Context, principal *model.User, id string) (*QuotaInfo, error) {
	user, err := s.authorized(ctx, principal, id, policy.OpRead)
	if err != nil {
		return nil, err
	}
	return quotaInfo(user), nil
}

// Reconcile recomputes the stored usage of one account from its live files.
func (s *UserService) Reconcile(ctx context.Context, principal *model.User, id string) (int64, error) {
	if !principal.IsAdmin() {
		return 0, s.denied(ctx, principal, id, policy.ReasonAdminRequired)
	}
	return s.ledger.Reconcile(ctx, id)
}

func (s *UserService) authorized(ctx context.Context, principal *model.User, id string, op policy.Operation) (*model.User, error) {
	user, err := s.store.Users.ByID(ctx, id)
	if errors.Is(err, repository.ErrUserNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	err = s.access.Check(ctx, principal, PrincipalResource(user), op)
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (s *UserService) denied(ctx context.Context, principal *model.User, target string, reason policy.Reason) error {
	e := activity.Event{
		Action:     model.ActionAccessDenied,
		TargetType: model.TargetUser,
		TargetID:   target,
		Severity:   model.SeverityWarning,
		Details:    map[string]any{"reason": reason.String()},
		At:         s.clock.Now(),
	}
	if principal != nil {
		e.UserID = principal.ID
	}
	s.notifier.Record(ctx, e)
	return &AccessDeniedError{Reason: reason}
}

func (s *UserService) record(ctx context.Context, actorID, action string, user *model.User, severity string, details map[string]any) {
	s.notifier.Record(ctx, activity.Event{
		UserID:     actorID,
		Action:     action,
		TargetType: model.TargetUser,
		TargetID:   user.ID,
		TargetName: user.Email,
		Severity:   severity,
		Details:    details,
		At:         s.clock.Now(),
	})
}

// InactivitySource feeds the account inactivity sweep.
func (s *UserService) InactivitySource() lifecycle.Source {
	return inactivitySource{s}
}

type inactivitySource struct {
	users *UserService
}

func (src inactivitySource) Candidates(ctx context.Context) ([]lifecycle.Expiring, error) {
	users, err := src.users.store.Users.LockCandidates(ctx)
	if err != nil {
		return nil, err
	}
	items := make([]lifecycle.Expiring, len(users))
	for i, u := range users {
		items[i] = lifecycle.AccountExpiry{User: u}
	}
	return items, nil
}

func (src inactivitySource) Apply(ctx context.Context, item lifecycle.Expiring, t lifecycle.Transition) (bool, error) {
	ae, ok := item.(lifecycle.AccountExpiry)
	if !ok || t != lifecycle.Lock {
		return false, fmt.Errorf("unexpected %s transition for %T", t, item)
	}
	return src.users.auth.lock(ctx, ae.User, model.ActionAccountLock, model.SeverityInfo)
}
