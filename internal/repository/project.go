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
	ErrProjectNotFound = errors.New("project not found")
)

// ProjectRepository only moves status forward: active to expired, and
// active or expired to archived.
type ProjectRepository interface {
	Create(ctx context.Context, project *model.Project) error
	ByID(ctx context.Context, id string) (*model.Project, error)
	// List excludes archived projects unless includeArchived is set.
	List(ctx context.Context, includeArchived bool) ([]*model.Project, error)
	ForMember(ctx context.Context, userID string) ([]*model.Project, error)
	Active(ctx context.Context) ([]*model.Project, error)
	UpdateDetails(ctx context.Context, project *model.Project) (bool, error)
	Expire(ctx context.Context, id string, at time.Time) (bool, error)
	Archive(ctx context.Context, id string, at time.Time) (bool, error)
	AddMember(ctx context.Context, projectID, userID string) error
	RemoveMember(ctx context.Context, projectID, userID string) error
	// CountByStatus maps each status present to its number of projects.
	CountByStatus(ctx context.Context) (map[string]int, error)
}

type projectRepository struct {
	db sqlx.ExtContext
}

func (r *projectRepository) Create(ctx context.Context, project *model.Project) error {
	query := `INSERT INTO projects (id, name, description, created_by, folder_id, expires_at, status, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := r.db.ExecContext(ctx, query,
		project.ID,
		project.Name,
		project.Description,
		project.CreatedBy,
		project.FolderID,
		project.ExpiresAt,
		project.Status,
		project.CreatedAt,
		project.UpdatedAt,
	)
	if err != nil {
		return err
	}

	for _, userID := range project.Members {
		err = r.AddMember(ctx, project.ID, userID)
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *projectRepository) ByID(ctx context.Context, id string) (*model.Project, error) {
	project := &model.Project{}
	query := `SELECT * FROM projects WHERE id = $1`

	err := sqlx.GetContext(ctx, r.db, project, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrProjectNotFound
	}
	if err != nil {
		return nil, err
	}

	project.Members, err = r.members(ctx, id)
	if err != nil {
		return nil, err
	}
	return project, nil
}

func (r *projectRepository) List(ctx context.Context, includeArchived bool) ([]*model.Project, error) {
	query := `SELECT * FROM projects WHERE status <> $1 ORDER BY created_at DESC`
	args := []any{model.ProjectStatusArchived}
	if includeArchived {
		query = `SELECT * FROM projects ORDER BY created_at DESC`
		args = nil
	}
	return r.selectWithMembers(ctx, query, args...)
}

func (r *projectRepository) ForMember(ctx context.Context, userID string) ([]*model.Project, error) {
	query := `SELECT p.* FROM projects p
	          JOIN project_members m ON m.project_id = p.id
	          WHERE m.user_id = $1 AND p.status <> $2
	          ORDER BY p.created_at DESC`
	return r.selectWithMembers(ctx, query, userID, model.ProjectStatusArchived)
}

func (r *projectRepository) Active(ctx context.Context) ([]*model.Project, error) {
	var projects []*model.Project
	query := `SELECT * FROM projects WHERE status = $1`

	err := sqlx.SelectContext(ctx, r.db, &projects, query, model.ProjectStatusActive)
	if err != nil {
		return nil, err
	}
	return projects, nil
}

func (r *projectRepository) UpdateDetails(ctx context.Context, project *model.Project) (bool, error) {
	query := `UPDATE projects SET name = $1, description = $2, expires_at = $3, updated_at = $4
	          WHERE id = $5 AND status = $6`
	res, err := r.db.ExecContext(ctx, query,
		project.Name,
		project.Description,
		project.ExpiresAt,
		project.UpdatedAt,
		project.ID,
		model.ProjectStatusActive,
	)
	if err != nil {
		return false, err
	}
	return affected(res)
}

func (r *projectRepository) Expire(ctx context.Context, id string, at time.Time) (bool, error) {
	query := `UPDATE projects SET status = $1, updated_at = $2 WHERE id = $3 AND status = $4`
	res, err := r.db.ExecContext(ctx, query, model.ProjectStatusExpired, at, id, model.ProjectStatusActive)
	if err != nil {
		return false, err
	}
	return affected(res)
}

func (r *projectRepository) Archive(ctx context.Context, id string, at time.Time) (bool, error) {
	query := `UPDATE projects SET status = $1, updated_at = $2 WHERE id = $3 AND status <> $1`
	res, err := r.db.ExecContext(ctx, query, model.ProjectStatusArchived, at, id)
	if err != nil {
		return false, err
	}
	return affected(res)
}

func (r *projectRepository) AddMember(ctx context.Context, projectID, userID string) error {
	query := `INSERT INTO project_members (project_id, user_id) VALUES ($1, $2)`
	_, err := r.db.ExecContext(ctx, query, projectID, userID)
	if isUniqueViolation(err) {
		return nil
	}
	return err
}

func (r *projectRepository) RemoveMember(ctx context.Context, projectID, userID string) error {
	query := `DELETE FROM project_members WHERE project_id = $1 AND user_id = $2`
	_, err := r.db.ExecContext(ctx, query, projectID, userID)
	return err
}

func (r *projectRepository) members(ctx context.Context, projectID string) ([]string, error) {
	var ids []string
	query := `SELECT user_id FROM project_members WHERE project_id = $1 ORDER BY user_id`
	err := sqlx.SelectContext(ctx, r.db, &ids, query, projectID)
	return ids, err
}

func (r *projectRepository) selectWithMembers(ctx context.Context, query string, args ...any) ([]*model.Project, error) {
	var projects []*model.Project
	err := sqlx.SelectContext(ctx, r.db, &projects, query, args...)
	if err != nil {
		return nil, err
	}

	for _, p := range projects {
		p.Members, err = r.members(ctx, p.ID)
		if err != nil {
			return nil, err
		}
	}
	return projects, nil
}

func (r *projectRepository) CountByStatus(ctx context.Context) (map[string]int, error) {
	var rows []struct {
		Status string `db:"status"`
		Count  int    `db:"count"`
	}
	query := `SELECT status, COUNT(*) AS count FROM projects GROUP BY status`

	err := sqlx.SelectContext(ctx, r.db, &rows, query)
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}
