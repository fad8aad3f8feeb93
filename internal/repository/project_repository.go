package repository

import (
	"context"
	"database/sql"

	"github.com/openforge/forge-api/internal/models"
)

type ProjectRepository interface {
	GetProject(ctx context.Context, id string) (models.Project, error)
	GetProjectByShortname(ctx context.Context, shortname string) (models.Project, error)
	GetAppConfig(ctx context.Context, id string) (models.AppConfig, error)
	GetAppConfigByMount(ctx context.Context, projectID, mountPoint string) (models.AppConfig, error)
	IsMember(ctx context.Context, projectID, userID string) (bool, error)
	SetNotificationsDisabled(ctx context.Context, projectID string, disabled bool) error
}

type projectRepository struct {
	db *sql.DB
}

func NewProjectRepository(db *sql.DB) ProjectRepository {
	return &projectRepository{db: db}
}

const projectColumns = `id, neighborhood_id, shortname, name, private, notifications_disabled, created_at`

func (r *projectRepository) GetProject(ctx context.Context, id string) (models.Project, error) {
	const query = `
		SELECT ` + projectColumns + `
		FROM forge.projects
		WHERE id = $1`
	return scanProject(r.db.QueryRowContext(ctx, query, id))
}

func (r *projectRepository) GetProjectByShortname(ctx context.Context, shortname string) (models.Project, error) {
	const query = `
		SELECT ` + projectColumns + `
		FROM forge.projects
		WHERE shortname = $1`
	return scanProject(r.db.QueryRowContext(ctx, query, shortname))
}

func (r *projectRepository) GetAppConfig(ctx context.Context, id string) (models.AppConfig, error) {
	const query = `
		SELECT id, project_id, tool_name, mount_point
		FROM forge.app_configs
		WHERE id = $1`

	var app models.AppConfig
	err := r.db.QueryRowContext(ctx, query, id).Scan(&app.ID, &app.ProjectID, &app.ToolName, &app.MountPoint)
	return app, err
}

func (r *projectRepository) GetAppConfigByMount(ctx context.Context, projectID, mountPoint string) (models.AppConfig, error) {
	const query = `
		SELECT id, project_id, tool_name, mount_point
		FROM forge.app_configs
		WHERE project_id = $1 AND mount_point = $2`

	var app models.AppConfig
	err := r.db.QueryRowContext(ctx, query, projectID, mountPoint).Scan(&app.ID, &app.ProjectID, &app.ToolName, &app.MountPoint)
	return app, err
}

func (r *projectRepository) IsMember(ctx context.Context, projectID, userID string) (bool, error) {
	const query = `
		SELECT EXISTS (
			SELECT 1 FROM forge.project_members
			WHERE project_id = $1 AND user_id = $2
		)`

	var member bool
	err := r.db.QueryRowContext(ctx, query, projectID, userID).Scan(&member)
	return member, err
}

func (r *projectRepository) SetNotificationsDisabled(ctx context.Context, projectID string, disabled bool) error {
	const query = `
		UPDATE forge.projects
		SET notifications_disabled = $2
		WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, projectID, disabled)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func scanProject(row *sql.Row) (models.Project, error) {
	var p models.Project
	err := row.Scan(&p.ID, &p.NeighborhoodID, &p.Shortname, &p.Name, &p.Private, &p.NotificationsDisabled, &p.CreatedAt)
	return p, err
}
