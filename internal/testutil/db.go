package testutil

import (
	"context"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/templui/vaultgate/internal/db"
	"github.com/templui/vaultgate/internal/model"
	"github.com/templui/vaultgate/internal/repository"
)

// NewTestDB opens a migrated in-memory SQLite database that is closed when
// the test ends. Migrations use goose globals, so callers must not run in
// parallel.
func NewTestDB(t *testing.T) *sqlx.DB {
	t.Helper()

	conn, err := db.Init("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	err = db.RunMigrations(conn.DB, "sqlite")
	if err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	return conn
}

func NewTestStore(t *testing.T) *repository.Store {
	t.Helper()
	return repository.NewStore(NewTestDB(t))
}

// FileRow loads a file row whether or not it is soft-deleted. The
// repositories never expose deleted rows.
func FileRow(t *testing.T, store *repository.Store, id string) (*model.File, error) {
	t.Helper()
	file := &model.File{}
	err := sqlx.GetContext(context.Background(), store.DB(), file, `SELECT * FROM files WHERE id = $1`, id)
	if err != nil {
		return nil, err
	}
	return file, nil
}
