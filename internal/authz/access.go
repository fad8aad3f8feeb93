package authz

import (
	"context"

	"github.com/openforge/forge-api/internal/models"
	"github.com/openforge/forge-api/internal/repository"
)

// AccessChecker answers whether a user may read an artifact. Delivery code
// re-checks at send time, because permissions can change between enqueue and
// delivery.
type AccessChecker interface {
	CanRead(ctx context.Context, artifact models.Artifact, userID string) (bool, error)
}

type projectAccessChecker struct {
	projects repository.ProjectRepository
}

func NewAccessChecker(projects repository.ProjectRepository) AccessChecker {
	return &projectAccessChecker{projects: projects}
}

// CanRead grants read on artifacts in public projects to everyone; private
// projects require membership.
func (c *projectAccessChecker) CanRead(ctx context.Context, artifact models.Artifact, userID string) (bool, error) {
	project, err := c.projects.GetProject(ctx, artifact.ProjectID)
	if err != nil {
		return false, err
	}
	if !project.Private {
		return true, nil
	}
	if userID == "" {
		return false, nil
	}
	return c.projects.IsMember(ctx, project.ID, userID)
}
