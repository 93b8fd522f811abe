package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/templui/vaultgate/internal/model"
)

var (
	ErrFolderNotFound  = errors.New("folder not found")
	ErrDuplicateFolder = errors.New("folder already exists")
)

// FolderRepository has no update path: name, parent and privacy are fixed.
type FolderRepository interface {
	Create(ctx context.Context, folder *model.Folder) error
	ByID(ctx context.Context, id string) (*model.Folder, error)
	ByName(ctx context.Context, ownerID string, parentID *string, name string) (*model.Folder, error)
	// Candidates returns every folder the user owns plus every non-private
	// folder. Project scoping is applied by the caller.
	Candidates(ctx context.Context, userID string) ([]*model.Folder, error)
	All(ctx context.Context) ([]*model.Folder, error)
	CountChildren(ctx context.Context, id string) (int, error)
	Delete(ctx context.Context, id string) error
	Counts(ctx context.Context) (*FolderCounts, error)
}

type FolderCounts struct {
	Total   int `db:"total" json:"total"`
	Private int `db:"private" json:"private"`
}

type folderRepository struct {
	db sqlx.ExtContext
}

func (r *folderRepository) Create(ctx context.Context, folder *model.Folder) error {
	query := `INSERT INTO folders (id, owner_id, parent_id, name, is_private, project_id, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := r.db.ExecContext(ctx, query,
		folder.ID,
		folder.OwnerID,
		folder.ParentID,
		folder.Name,
		folder.IsPrivate,
		folder.ProjectID,
		folder.CreatedAt,
		folder.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return ErrDuplicateFolder
	}
	return err
}

func (r *folderRepository) ByID(ctx context.Context, id string) (*model.Folder, error) {
	folder := &model.Folder{}
	query := `SELECT * FROM folders WHERE id = $1`

	err := sqlx.GetContext(ctx, r.db, folder, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrFolderNotFound
	}
	return folder, err
}

func (r *folderRepository) ByName(ctx context.Context, ownerID string, parentID *string, name string) (*model.Folder, error) {
	folder := &model.Folder{}
	query := `SELECT * FROM folders WHERE owner_id = $1 AND COALESCE(parent_id, '') = $2 AND name = $3`

	err := sqlx.GetContext(ctx, r.db, folder, query, ownerID, deref(parentID), name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrFolderNotFound
	}
	return folder, err
}

func (r *folderRepository) Candidates(ctx context.Context, userID string) ([]*model.Folder, error) {
	var folders []*model.Folder
	query := `SELECT * FROM folders WHERE owner_id = $1 OR is_private = false ORDER BY name`

	err := sqlx.SelectContext(ctx, r.db, &folders, query, userID)
	if err != nil {
		return nil, err
	}
	return folders, nil
}

func (r *folderRepository) All(ctx context.Context) ([]*model.Folder, error) {
	var folders []*model.Folder
	query := `SELECT * FROM folders ORDER BY name`

	err := sqlx.SelectContext(ctx, r.db, &folders, query)
	if err != nil {
		return nil, err
	}
	return folders, nil
}

func (r *folderRepository) CountChildren(ctx context.Context, id string) (int, error) {
	var n int
	query := `SELECT COUNT(*) FROM folders WHERE parent_id = $1`
	err := sqlx.GetContext(ctx, r.db, &n, query, id)
	return n, err
}

func (r *folderRepository) Delete(ctx context.Context, id string) error {
	// Soft-deleted files keep their rows; detach them so the folder can go.
	_, err := r.db.ExecContext(ctx, `UPDATE files SET folder_id = NULL WHERE folder_id = $1 AND is_deleted = true`, id)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `DELETE FROM folders WHERE id = $1`, id)
	return err
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func (r *folderRepository) Counts(ctx context.Context) (*FolderCounts, error) {
	counts := &FolderCounts{}
	query := `SELECT COUNT(*) AS total, COALESCE(SUM(CASE WHEN is_private = true THEN 1 ELSE 0 END), 0) AS private FROM folders`

	err := sqlx.GetContext(ctx, r.db, counts, query)
	if err != nil {
		return nil, err
	}
	return counts, nil
}
