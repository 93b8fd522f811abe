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
	ErrFileNotFound  = errors.New("file not found")
	ErrDuplicateFile = errors.New("file identity already taken")
)

// FileRepository hides soft-deleted rows from every read.
type FileRepository interface {
	Create(ctx context.Context, file *model.File) error
	ByID(ctx context.Context, id string) (*model.File, error)
	// ByIdentity finds the live file for (owner, folder, original name).
	ByIdentity(ctx context.Context, ownerID string, folderID *string, name string) (*model.File, error)
	ByOwner(ctx context.Context, ownerID string) ([]*model.File, error)
	ByFolder(ctx context.Context, folderID string) ([]*model.File, error)
	All(ctx context.Context) ([]*model.File, error)
	// Expiring returns live files carrying a self-destruct instant.
	Expiring(ctx context.Context) ([]*model.File, error)
	// AdvanceVersion points the file at v only if it is still at expected.
	AdvanceVersion(ctx context.Context, id string, expected int, v *model.FileVersion) (bool, error)
	// SoftDelete flips a live row to deleted and returns it as it was at
	// that instant, so the caller releases the size that was actually
	// charged. ErrFileNotFound means it was already gone.
	SoftDelete(ctx context.Context, id string, at time.Time) (*model.File, error)
	MarkAccessed(ctx context.Context, id string, at time.Time) error
	LiveSize(ctx context.Context, ownerID string) (int64, error)
	Search(ctx context.Context, q FileSearch) ([]*model.File, error)
	// Stats counts live and soft-deleted rows across all owners.
	Stats(ctx context.Context) (*FileStats, error)
	// ExtensionBreakdown groups live files by extension, largest count first.
	ExtensionBreakdown(ctx context.Context, limit int) ([]*ExtensionCount, error)
}

// FileSearch narrows live files. Private is matched exactly: a private
// search sees only private files and a normal search never sees them.
type FileSearch struct {
	OwnerID  string // empty searches every owner
	Private  bool
	Text     string // matched against name and tags
	MimeType string // substring of the mime type
	FolderID string
	MinSize  *int64
	MaxSize  *int64
	From     *time.Time
	To       *time.Time
	SortBy   string // one of the SortFile* keys
	Asc      bool
	Limit    int
}

const (
	SortFileName = "name"
	SortFileDate = "date"
	SortFileSize = "size"
	SortFileType = "type"
)

var fileSortColumns = map[string]string{
	SortFileName: "original_name",
	SortFileDate: "created_at",
	SortFileSize: "size",
	SortFileType: "mime_type",
}

// ValidFileSort reports whether key is a known sort key.
func ValidFileSort(key string) bool {
	_, ok := fileSortColumns[key]
	return ok
}

type FileStats struct {
	Live        int   `db:"live" json:"live"`
	Deleted     int   `db:"deleted" json:"deleted"`
	LiveBytes   int64 `db:"live_bytes" json:"live_bytes"`
	PrivateLive int   `db:"private_live" json:"private_live"`
}

type ExtensionCount struct {
	Extension string `db:"extension" json:"extension"`
	Count     int    `db:"count" json:"count"`
	TotalSize int64  `db:"total_size" json:"total_size"`
}

type fileRepository struct {
	db sqlx.ExtContext
}

func (r *fileRepository) Create(ctx context.Context, file *model.File) error {
	query := `INSERT INTO files (id, owner_id, folder_id, project_id, original_name, mime_type, extension, storage_path, size, checksum,
	          current_version, is_private, is_deleted, deleted_at, expires_at, tags, download_count, last_accessed_at, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)`

	_, err := r.db.ExecContext(ctx, query,
		file.ID,
		file.OwnerID,
		file.FolderID,
		file.ProjectID,
		file.OriginalName,
		file.MimeType,
		file.Extension,
		file.StoragePath,
		file.Size,
		file.Checksum,
		file.CurrentVersion,
		file.IsPrivate,
		file.IsDeleted,
		file.DeletedAt,
		file.ExpiresAt,
		file.Tags,
		file.DownloadCount,
		file.LastAccessedAt,
		file.CreatedAt,
		file.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return ErrDuplicateFile
	}
	return err
}

func (r *fileRepository) ByID(ctx context.Context, id string) (*model.File, error) {
	return r.get(ctx, `SELECT * FROM files WHERE id = $1 AND is_deleted = false`, id)
}

func (r *fileRepository) ByIdentity(ctx context.Context, ownerID string, folderID *string, name string) (*model.File, error) {
	query := `SELECT * FROM files
	          WHERE owner_id = $1 AND COALESCE(folder_id, '') = $2 AND original_name = $3 AND is_deleted = false`
	return r.get(ctx, query, ownerID, deref(folderID), name)
}

func (r *fileRepository) ByOwner(ctx context.Context, ownerID string) ([]*model.File, error) {
	return r.list(ctx, `SELECT * FROM files WHERE owner_id = $1 AND is_deleted = false ORDER BY created_at DESC`, ownerID)
}

func (r *fileRepository) ByFolder(ctx context.Context, folderID string) ([]*model.File, error) {
	return r.list(ctx, `SELECT * FROM files WHERE folder_id = $1 AND is_deleted = false ORDER BY original_name`, folderID)
}

func (r *fileRepository) All(ctx context.Context) ([]*model.File, error) {
	return r.list(ctx, `SELECT * FROM files WHERE is_deleted = false ORDER BY created_at DESC`)
}

func (r *fileRepository) Expiring(ctx context.Context) ([]*model.File, error) {
	return r.list(ctx, `SELECT * FROM files WHERE is_deleted = false AND expires_at IS NOT NULL`)
}

func (r *fileRepository) AdvanceVersion(ctx context.Context, id string, expected int, v *model.FileVersion) (bool, error) {
	query := `UPDATE files
	          SET current_version = $1, storage_path = $2, size = $3, checksum = $4, mime_type = $5, updated_at = $6
	          WHERE id = $7 AND current_version = $8 AND is_deleted = false`

	res, err := r.db.ExecContext(ctx, query,
		v.VersionNumber,
		v.StoragePath,
		v.Size,
		v.Checksum,
		v.MimeType,
		v.CreatedAt,
		id,
		expected,
	)
	if err != nil {
		return false, err
	}
	return affected(res)
}

func (r *fileRepository) SoftDelete(ctx context.Context, id string, at time.Time) (*model.File, error) {
	query := `UPDATE files SET is_deleted = true, deleted_at = $1, updated_at = $1
	          WHERE id = $2 AND is_deleted = false
	          RETURNING *`
	return r.get(ctx, query, at, id)
}

func (r *fileRepository) MarkAccessed(ctx context.Context, id string, at time.Time) error {
	query := `UPDATE files SET download_count = download_count + 1, last_accessed_at = $1 WHERE id = $2`
	_, err := r.db.ExecContext(ctx, query, at, id)
	return err
}

func (r *fileRepository) LiveSize(ctx context.Context, ownerID string) (int64, error) {
	var total int64
	query := `SELECT COALESCE(SUM(size), 0) FROM files WHERE owner_id = $1 AND is_deleted = false`
	err := sqlx.GetContext(ctx, r.db, &total, query, ownerID)
	return total, err
}

func (r *fileRepository) Search(ctx context.Context, q FileSearch) ([]*model.File, error) {
	var f filter
	f.where("is_deleted = false")
	f.where("is_private = ?", q.Private)
	if q.OwnerID != "" {
		f.where("owner_id = ?", q.OwnerID)
	}
	if q.Text != "" {
		pattern := contains(q.Text)
		f.where(`(LOWER(original_name) LIKE ? ESCAPE '\' OR LOWER(tags) LIKE ? ESCAPE '\')`, pattern, pattern)
	}
	if q.MimeType != "" {
		f.where(`LOWER(mime_type) LIKE ? ESCAPE '\'`, contains(q.MimeType))
	}
	if q.FolderID != "" {
		f.where("folder_id = ?", q.FolderID)
	}
	if q.MinSize != nil {
		f.where("size >= ?", *q.MinSize)
	}
	if q.MaxSize != nil {
		f.where("size <= ?", *q.MaxSize)
	}
	if q.From != nil {
		f.where("created_at >= ?", *q.From)
	}
	if q.To != nil {
		f.where("created_at <= ?", *q.To)
	}

	column, ok := fileSortColumns[q.SortBy]
	if !ok {
		column = "created_at"
	}
	dir := "DESC"
	if q.Asc {
		dir = "ASC"
	}
	limit := q.Limit
	if limit <= 0 {
		limit = 100
	}

	query, args := f.query(`SELECT * FROM files`, " ORDER BY "+column+" "+dir+", id LIMIT ?", limit)
	return r.list(ctx, query, args...)
}

func (r *fileRepository) Stats(ctx context.Context) (*FileStats, error) {
	stats := &FileStats{}
	query := `SELECT
	              COALESCE(SUM(CASE WHEN is_deleted = false THEN 1 ELSE 0 END), 0) AS live,
	              COALESCE(SUM(CASE WHEN is_deleted = true THEN 1 ELSE 0 END), 0) AS deleted,
	              COALESCE(SUM(CASE WHEN is_deleted = false THEN size ELSE 0 END), 0) AS live_bytes,
	              COALESCE(SUM(CASE WHEN is_deleted = false AND is_private = true THEN 1 ELSE 0 END), 0) AS private_live
	          FROM files`

	err := sqlx.GetContext(ctx, r.db, stats, query)
	if err != nil {
		return nil, err
	}
	return stats, nil
}

func (r *fileRepository) ExtensionBreakdown(ctx context.Context, limit int) ([]*ExtensionCount, error) {
	var counts []*ExtensionCount
	query := `SELECT extension, COUNT(*) AS count, COALESCE(SUM(size), 0) AS total_size
	          FROM files WHERE is_deleted = false
	          GROUP BY extension
	          ORDER BY count DESC, extension
	          LIMIT $1`

	err := sqlx.SelectContext(ctx, r.db, &counts, query, limit)
	if err != nil {
		return nil, err
	}
	return counts, nil
}

func (r *fileRepository) get(ctx context.Context, query string, args ...any) (*model.File, error) {
	file := &model.File{}
	err := sqlx.GetContext(ctx, r.db, file, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrFileNotFound
	}
	if err != nil {
		return nil, err
	}
	return file, nil
}

func (r *fileRepository) list(ctx context.Context, query string, args ...any) ([]*model.File, error) {
	var files []*model.File
	err := sqlx.SelectContext(ctx, r.db, &files, query, args...)
	if err != nil {
		return nil, err
	}
	return files, nil
}
