package repository

import (
	"context"
	"database/sql"

	"github.com/openforge/forge-api/internal/models"
)

type ArtifactRepository interface {
	Get(ctx context.Context, indexID string) (models.Artifact, error)
	// Upsert keeps the denormalized index row current; tool apps call it on
	// artifact create/retitle.
	Upsert(ctx context.Context, artifact models.Artifact) (models.Artifact, error)
}

type artifactRepository struct {
	db *sql.DB
}

func NewArtifactRepository(db *sql.DB) ArtifactRepository {
	return &artifactRepository{db: db}
}

const artifactColumns = `index_id, project_id, app_config_id, type, title, url, email_address`

func (r *artifactRepository) Get(ctx context.Context, indexID string) (models.Artifact, error) {
	const query = `
		SELECT ` + artifactColumns + `
		FROM forge.artifacts
		WHERE index_id = $1`

	var a models.Artifact
	err := r.db.QueryRowContext(ctx, query, indexID).Scan(
		&a.IndexID, &a.ProjectID, &a.AppConfigID, &a.Type, &a.Title, &a.URL, &a.EmailAddress)
	return a, err
}

func (r *artifactRepository) Upsert(ctx context.Context, artifact models.Artifact) (models.Artifact, error) {
	const query = `
		INSERT INTO forge.artifacts (index_id, project_id, app_config_id, type, title, url, email_address)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (index_id) DO UPDATE
		SET title = EXCLUDED.title, url = EXCLUDED.url, email_address = EXCLUDED.email_address
		RETURNING ` + artifactColumns

	var a models.Artifact
	err := r.db.QueryRowContext(ctx, query,
		artifact.IndexID, artifact.ProjectID, artifact.AppConfigID,
		artifact.Type, artifact.Title, artifact.URL, artifact.EmailAddress).Scan(
		&a.IndexID, &a.ProjectID, &a.AppConfigID, &a.Type, &a.Title, &a.URL, &a.EmailAddress)
	return a, err
}
