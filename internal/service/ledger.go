package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/templui/vaultgate/internal/model"
	"github.com/templui/vaultgate/internal/repository"
)

// QuotaInfo is a point-in-time view of a principal's storage.
type QuotaInfo struct {
	Used      int64   `json:"used"`
	Quota     int64   `json:"quota"`
	Remaining int64   `json:"remaining"`
	Percent   float64 `json:"percent"`
}

func quotaInfo(u *model.User) *QuotaInfo {
	info := &QuotaInfo{Used: u.StorageUsed, Quota: u.Quota, Remaining: u.Remaining()}
	if u.Quota > 0 {
		info.Percent = float64(u.StorageUsed) / float64(u.Quota) * 100
	}
	return info
}

// Ledger keeps storage_used in step with the live files of each principal.
// Every mutation is a single conditional UPDATE run inside the caller's
// transaction, next to the write it accounts for.
type Ledger struct {
	store *repository.Store
	clock Clock
}

func NewLedger(store *repository.Store, clock Clock) *Ledger {
	return &Ledger{store: store, clock: clock}
}

// Reserve applies delta to the principal's usage. Positive deltas fail
// with *QuotaExceededError when they would cross the quota; zero and
// negative deltas always succeed and never go below zero.
func (l *Ledger) Reserve(ctx context.Context, tx *repository.Store, userID string, delta int64) error {
	if delta <= 0 {
		return l.Release(ctx, tx, userID, -delta)
	}

	ok, err := tx.Users.ReserveStorage(ctx, userID, delta, l.clock.Now())
	if err != nil {
		return fmt.Errorf("failed to reserve storage: %w", err)
	}
	if ok {
		return nil
	}

	user, err := tx.Users.ByID(ctx, userID)
	if errors.Is(err, repository.ErrUserNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to load user: %w", err)
	}
	return &QuotaExceededError{Requested: delta, Remaining: user.Remaining()}
}

// Release gives bytes back inside the caller's transaction. The counter
// never goes below zero
func (l *Ledger) Release(ctx context.Context, tx *repository.Store, userID string, bytes int64) error {
	if bytes == 0 {
		return nil
	}
	err := tx.Users.ReleaseStorage(ctx, userID, bytes, l.clock.Now())
	if err != nil {
		return fmt.Errorf("failed to release storage: %w", err)
	}
	return nil
}

// Check is the early refusal before any bytes are stored. Reserve remains
// the authority; this only avoids uploading blobs that cannot fit.
func (l *Ledger) Check(ctx context.Context, userID string, delta int64) error {
	if delta <= 0 {
		return nil
	}
	user, err := l.store.Users.ByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to load user: %w", err)
	}
	if user.StorageUsed+delta > user.Quota {
		return &QuotaExceededError{Requested: delta, Remaining: user.Remaining()}
	}
	return nil
}

// Usage reports used, quota and remaining bytes
func (l *Ledger) Usage(ctx context.Context, userID string) (*QuotaInfo, error) {
	user, err := l.store.Users.ByID(ctx, userID)
	if errors.Is(err, repository.ErrUserNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	return quotaInfo(user), nil
}

// Reconcile recomputes usage from the live files and returns how far the
// stored counter had drifted (stored minus actual).
func (l *Ledger) Reconcile(ctx context.Context, userID string) (int64, error) {
	var drift int64
	err := l.store.Tx(ctx, func(tx *repository.Store) error {
		user, err := tx.Users.ByID(ctx, userID)
		if errors.Is(err, repository.ErrUserNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}

		actual, err := tx.Files.LiveSize(ctx, userID)
		if err != nil {
			return err
		}

		drift = user.StorageUsed - actual
		if drift == 0 {
			return nil
		}
		return tx.Users.SetStorageUsed(ctx, userID, actual, l.clock.Now())
	})
	if err != nil {
		return 0, fmt.Errorf("failed to reconcile storage: %w", err)
	}
	return drift, nil
}
