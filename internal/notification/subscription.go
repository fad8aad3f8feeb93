package notification

import (
	"context"
	"fmt"

	"github.com/openforge/forge-api/internal/models"
	"github.com/openforge/forge-api/internal/repository"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// SubscriptionService manages standing subscriptions. A tool-level mailbox
// covers every artifact in the tool, so creating one absorbs any narrower
// artifact-level mailboxes the user already had.
type SubscriptionService struct {
	mailboxes repository.MailboxRepository
	logger    zerolog.Logger
}

func NewSubscriptionService(mailboxes repository.MailboxRepository, logger zerolog.Logger) *SubscriptionService {
	return &SubscriptionService{
		mailboxes: mailboxes,
		logger:    logger.With().Str("component", "subscriptions").Logger(),
	}
}

// Subscribe creates or updates a mailbox for the scope. A nil artifact means
// a tool-level subscription. Re-subscribing updates the delivery policy in
// place rather than failing or duplicating. Subscribing to an artifact while
// a tool-level subscription exists is a silent no-op.
func (s *SubscriptionService) Subscribe(
	ctx context.Context,
	userID string,
	project models.Project,
	app models.AppConfig,
	artifact *models.Artifact,
	topic *string,
	typ models.DeliveryType,
	freq models.Frequency,
) error {
	if !models.IsValidDeliveryType(typ) || typ == models.DeliveryFlash {
		return errors.Errorf("invalid delivery type %q", typ)
	}
	if !models.IsValidFrequency(freq) {
		return errors.Errorf("invalid frequency %d %s", freq.N, freq.Unit)
	}

	title := app.MountPoint
	url := fmt.Sprintf("/p/%s/%s/", project.Shortname, app.MountPoint)
	var artifactIndexID *string
	if artifact != nil {
		covered, err := s.mailboxes.ExistsSubscription(ctx, userID, project.ID, app.ID, nil)
		if err != nil {
			return errors.Wrap(err, "check tool subscription")
		}
		if covered {
			return nil
		}
		artifactIndexID = &artifact.IndexID
		title = artifact.Title
		url = artifact.URL
	}

	scope := repository.MailboxScope{
		UserID:          userID,
		ProjectID:       &project.ID,
		AppConfigID:     &app.ID,
		ArtifactIndexID: artifactIndexID,
		Topic:           topic,
	}

	_, err := s.mailboxes.Insert(ctx, models.Mailbox{
		UserID:          userID,
		ProjectID:       scope.ProjectID,
		AppConfigID:     scope.AppConfigID,
		ArtifactTitle:   title,
		ArtifactURL:     url,
		ArtifactIndexID: artifactIndexID,
		Topic:           topic,
		Type:            typ,
		Frequency:       freq,
	})
	if errors.Is(err, repository.ErrDuplicateMailbox) {
		_, err = s.mailboxes.UpdatePolicy(ctx, scope, title, url, typ, freq)
	}
	if err != nil {
		return errors.Wrap(err, "save subscription")
	}

	if artifact == nil {
		// The new tool-level mailbox supersedes artifact-level ones.
		if err := s.mailboxes.DeleteArtifactScoped(ctx, userID, project.ID, app.ID); err != nil {
			return errors.Wrap(err, "remove superseded subscriptions")
		}
	}
	return nil
}

// Unsubscribe removes the mailbox matching the exact scope tuple. Removing a
// subscription that does not exist is not an error.
func (s *SubscriptionService) Unsubscribe(ctx context.Context, userID string, projectID, appConfigID string, artifactIndexID, topic *string) error {
	return s.mailboxes.Delete(ctx, repository.MailboxScope{
		UserID:          userID,
		ProjectID:       &projectID,
		AppConfigID:     &appConfigID,
		ArtifactIndexID: artifactIndexID,
		Topic:           topic,
	})
}

// Subscribed reports whether the user has a standing subscription covering
// the artifact, either directly or through a tool-level mailbox.
func (s *SubscriptionService) Subscribed(ctx context.Context, userID, projectID, appConfigID string, artifactIndexID *string) (bool, error) {
	if artifactIndexID != nil {
		ok, err := s.mailboxes.ExistsSubscription(ctx, userID, projectID, appConfigID, artifactIndexID)
		if err != nil || ok {
			return ok, err
		}
	}
	return s.mailboxes.ExistsSubscription(ctx, userID, projectID, appConfigID, nil)
}
