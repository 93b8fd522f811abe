package repository

import (
	"context"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/templui/vaultgate/internal/model"
)

var (
	ErrVersionConflict = errors.New("version number already taken")
)

// FileVersionRepository is append-only.
type FileVersionRepository interface {
	Create(ctx context.Context, v *model.FileVersion) error
	ByFile(ctx context.Context, fileID string) ([]*model.FileVersion, error)
	PathsByOwner(ctx context.Context, ownerID string) ([]string, error)
}

type fileVersionRepository struct {
	db sqlx.ExtContext
}

func (r *fileVersionRepository) Create(ctx context.Context, v *model.FileVersion) error {
	query := `INSERT INTO file_versions (id, file_id, version_number, storage_path, size, mime_type, checksum, uploaded_by, changelog, created_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := r.db.ExecContext(ctx, query,
		v.ID,
		v.FileID,
		v.VersionNumber,
		v.StoragePath,
		v.Size,
		v.MimeType,
		v.Checksum,
		v.UploadedBy,
		v.Changelog,
		v.CreatedAt,
	)
	if isUniqueViolation(err) {
		return ErrVersionConflict
	}
	return err
}

func (r *fileVersionRepository) ByFile(ctx context.Context, fileID string) ([]*model.FileVersion, error) {
	var versions []*model.FileVersion
	query := `SELECT * FROM file_versions WHERE file_id = $1 ORDER BY version_number ASC`

	err := sqlx.SelectContext(ctx, r.db, &versions, query, fileID)
	if err != nil {
		return nil, err
	}
	return versions, nil
}

func (r *fileVersionRepository) PathsByOwner(ctx context.Context, ownerID string) ([]string, error) {
	var paths []string
	query := `SELECT v.storage_path FROM file_versions v
	          JOIN files f ON f.id = v.file_id
	          WHERE f.owner_id = $1`

	err := sqlx.SelectContext(ctx, r.db, &paths, query, ownerID)
	if err != nil {
		return nil, err
	}
	return paths, nil
}
