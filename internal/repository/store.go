package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
)

// Store bundles the repositories over one connection or one transaction.
type Store struct {
	db   *sqlx.DB
	inTx bool

	Users    UserRepository
	Folders  FolderRepository
	Projects ProjectRepository
	Files    FileRepository
	Versions FileVersionRepository
	Activity ActivityRepository
}

func NewStore(db *sqlx.DB) *Store {
	return newStore(db, db, false)
}

func newStore(db *sqlx.DB, q sqlx.ExtContext, inTx bool) *Store {
	return &Store{
		db:       db,
		inTx:     inTx,
		Users:    &userRepository{db: q},
		Folders:  &folderRepository{db: q},
		Projects: &projectRepository{db: q},
		Files:    &fileRepository{db: q},
		Versions: &fileVersionRepository{db: q},
		Activity: &activityRepository{db: q},
	}
}

// DB exposes the underlying handle for health checks and test helpers
func (s *Store) DB() *sqlx.DB {
	return s.db
}

// Tx runs fn inside a transaction. The Store handed to fn must be used for
// every read and write until fn returns; the parent Store shares the same
// connection pool and blocks on SQLite while the transaction is open.
// Nested calls reuse the outer transaction.
func (s *Store) Tx(ctx context.Context, fn func(tx *Store) error) error {
	if s.inTx {
		return fn(s)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	err = fn(newStore(s.db, tx, true))
	if err != nil {
		_ = tx.Rollback()
		return err
	}

	err = tx.Commit()
	if err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// isUniqueViolation works for both SQLite and PostgreSQL error texts.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "duplicate key value")
}

func affected(res interface{ RowsAffected() (int64, error) }) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
