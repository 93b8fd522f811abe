package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/templui/vaultgate/internal/model"
)

var (
	ErrUserNotFound  = errors.New("user not found")
	ErrDuplicateUser = errors.New("email or employee id already exists")
)

type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	ByID(ctx context.Context, id string) (*model.User, error)
	ByEmail(ctx context.Context, email string) (*model.User, error)
	List(ctx context.Context) ([]*model.User, error)
	// LockCandidates returns active non-admin accounts that have logged in at
	// least once. The inactivity rule itself is evaluated by the caller.
	LockCandidates(ctx context.Context) ([]*model.User, error)
	TouchLogin(ctx context.Context, id string, at time.Time) error
	// Lock and Unlock only report true when the flag actually flipped.
	Lock(ctx context.Context, id string, at time.Time) (bool, error)
	Unlock(ctx context.Context, id string, at time.Time) (bool, error)
	// ReserveStorage adds delta only if the result stays within quota.
	ReserveStorage(ctx context.Context, id string, delta int64, at time.Time) (bool, error)
	ReleaseStorage(ctx context.Context, id string, bytes int64, at time.Time) error
	SetStorageUsed(ctx context.Context, id string, used int64, at time.Time) error
	// Delete removes the account with its files, versions and memberships.
	// Folders it owned are handed over to heirID.
	Delete(ctx context.Context, id, heirID string) error
	SetPassword(ctx context.Context, id, hash string, at time.Time) error
	// Stats aggregates member accounts only. Admins are excluded.
	Stats(ctx context.Context) (*UserStats, error)
}

type UserStats struct {
	Members     int   `db:"members" json:"members"`
	Active      int   `db:"active" json:"active"`
	Locked      int   `db:"locked" json:"locked"`
	StorageUsed int64 `db:"storage_used" json:"storage_used"`
	Capacity    int64 `db:"capacity" json:"capacity"`
}

type userRepository struct {
	db sqlx.ExtContext
}

func (r *userRepository) Create(ctx context.Context, user *model.User) error {
	query := `INSERT INTO users (id, email, emp_id, name, password_hash, role, is_active, last_login, storage_used, quota, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	_, err := r.db.ExecContext(ctx, query,
		user.ID,
		user.Email,
		user.EmpID,
		user.Name,
		user.PasswordHash,
		user.Role,
		user.IsActive,
		user.LastLogin,
		user.StorageUsed,
		user.Quota,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return ErrDuplicateUser
	}
	return err
}

func (r *userRepository) ByID(ctx context.Context, id string) (*model.User, error) {
	user := &model.User{}
	query := `SELECT * FROM users WHERE id = $1`

	err := sqlx.GetContext(ctx, r.db, user, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	return user, err
}

func (r *userRepository) ByEmail(ctx context.Context, email string) (*model.User, error) {
	user := &model.User{}
	query := `SELECT * FROM users WHERE email = $1`

	err := sqlx.GetContext(ctx, r.db, user, query, email)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	return user, err
}

func (r *userRepository) List(ctx context.Context) ([]*model.User, error) {
	var users []*model.User
	query := `SELECT * FROM users ORDER BY created_at`

	err := sqlx.SelectContext(ctx, r.db, &users, query)
	if err != nil {
		return nil, err
	}
	return users, nil
}

func (r *userRepository) LockCandidates(ctx context.Context) ([]*model.User, error) {
	var users []*model.User
	query := `SELECT * FROM users WHERE role <> $1 AND is_active = true AND last_login IS NOT NULL`

	err := sqlx.SelectContext(ctx, r.db, &users, query, model.RoleAdmin)
	if err != nil {
		return nil, err
	}
	return users, nil
}

func (r *userRepository) TouchLogin(ctx context.Context, id string, at time.Time) error {
	query := `UPDATE users SET last_login = $1, updated_at = $1 WHERE id = $2`
	_, err := r.db.ExecContext(ctx, query, at, id)
	return err
}

func (r *userRepository) Lock(ctx context.Context, id string, at time.Time) (bool, error) {
	query := `UPDATE users SET is_active = false, updated_at = $1 WHERE id = $2 AND is_active = true`
	res, err := r.db.ExecContext(ctx, query, at, id)
	if err != nil {
		return false, err
	}
	return affected(res)
}

func (r *userRepository) Unlock(ctx context.Context, id string, at time.Time) (bool, error) {
	// Restart the inactivity window, otherwise the next sweep locks again.
	query := `UPDATE users SET is_active = true, last_login = $1, updated_at = $1 WHERE id = $2 AND is_active = false`
	res, err := r.db.ExecContext(ctx, query, at, id)
	if err != nil {
		return false, err
	}
	return affected(res)
}

func (r *userRepository) ReserveStorage(ctx context.Context, id string, delta int64, at time.Time) (bool, error) {
	query := `UPDATE users SET storage_used = storage_used + $1, updated_at = $3
	          WHERE id = $2 AND storage_used + $1 <= quota`
	res, err := r.db.ExecContext(ctx, query, delta, id, at)
	if err != nil {
		return false, err
	}
	return affected(res)
}

func (r *userRepository) ReleaseStorage(ctx context.Context, id string, bytes int64, at time.Time) error {
	query := `UPDATE users
	          SET storage_used = CASE WHEN storage_used - $1 < 0 THEN 0 ELSE storage_used - $1 END, updated_at = $3
	          WHERE id = $2`
	_, err := r.db.ExecContext(ctx, query, bytes, id, at)
	return err
}

func (r *userRepository) SetStorageUsed(ctx context.Context, id string, used int64, at time.Time) error {
	query := `UPDATE users SET storage_used = $1, updated_at = $2 WHERE id = $3`
	_, err := r.db.ExecContext(ctx, query, used, at, id)
	return err
}

func (r *userRepository) Delete(ctx context.Context, id, heirID string) error {
	statements := []struct {
		query string
		args  []any
	}{
		{`DELETE FROM file_versions WHERE file_id IN (SELECT id FROM files WHERE owner_id = $1)`, []any{id}},
		{`DELETE FROM files WHERE owner_id = $1`, []any{id}},
		{`DELETE FROM project_members WHERE user_id = $1`, []any{id}},
		// Top-level names must stay unique for the heir.
		{`UPDATE folders SET name = name || ' (' || $1 || ')'
		  WHERE owner_id = $1 AND parent_id IS NULL
		  AND name IN (SELECT name FROM folders WHERE owner_id = $2 AND parent_id IS NULL)`, []any{id, heirID}},
		{`UPDATE folders SET owner_id = $1 WHERE owner_id = $2`, []any{heirID, id}},
		{`DELETE FROM users WHERE id = $1`, []any{id}},
	}

	for _, st := range statements {
		_, err := r.db.ExecContext(ctx, st.query, st.args...)
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *userRepository) SetPassword(ctx context.Context, id, hash string, at time.Time) error {
	query := `UPDATE users SET password_hash = $1, updated_at = $2 WHERE id = $3`
	res, err := r.db.ExecContext(ctx, query, hash, at, id)
	if err != nil {
		return err
	}
	ok, err := affected(res)
	if err != nil {
		return err
	}
	if !ok {
		return ErrUserNotFound
	}
	return nil
}

func (r *userRepository) Stats(ctx context.Context) (*UserStats, error) {
	stats := &UserStats{}
	query := `SELECT
	              COUNT(*) AS members,
	              COALESCE(SUM(CASE WHEN is_active = true THEN 1 ELSE 0 END), 0) AS active,
	              COALESCE(SUM(CASE WHEN is_active = false THEN 1 ELSE 0 END), 0) AS locked,
	              COALESCE(SUM(storage_used), 0) AS storage_used,
	              COALESCE(SUM(quota), 0) AS capacity
	          FROM users WHERE role = $1`

	err := sqlx.GetContext(ctx, r.db, stats, query, model.RoleMember)
	if err != nil {
		return nil, err
	}
	return stats, nil
}
