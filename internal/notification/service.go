package notification

import (
	"context"
	"time"

	"github.com/openforge/forge-api/internal/models"
	"github.com/openforge/forge-api/internal/repository"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// Service is the entry point tools call when content changes. It composes the
// notification, persists it, and schedules the asynchronous fan-out.
type Service struct {
	notifications repository.NotificationRepository
	mailboxes     repository.MailboxRepository
	artifacts     repository.ArtifactRepository
	users         repository.UserRepository
	composer      *Composer
	scheduler     FanoutScheduler
	domain        string
	baseURL       string
	logger        zerolog.Logger
}

func NewService(
	notifications repository.NotificationRepository,
	mailboxes repository.MailboxRepository,
	artifacts repository.ArtifactRepository,
	users repository.UserRepository,
	composer *Composer,
	scheduler FanoutScheduler,
	domain, baseURL string,
	logger zerolog.Logger,
) *Service {
	return &Service{
		notifications: notifications,
		mailboxes:     mailboxes,
		artifacts:     artifacts,
		users:         users,
		composer:      composer,
		scheduler:     scheduler,
		domain:        domain,
		baseURL:       baseURL,
		logger:        logger.With().Str("component", "notification_service").Logger(),
	}
}

// Post records a change to the artifact and schedules fan-out to every
// subscribed mailbox. Returns (nil, nil) when the project has notifications
// switched off; suppression is not an error.
func (s *Service) Post(ctx context.Context, scope Scope, artifact models.Artifact, ev Event) (*models.Notification, error) {
	if scope.Project.NotificationsDisabled {
		s.logger.Info().
			Str("project_id", scope.Project.ID).
			Str("artifact", artifact.IndexID).
			Msg("skipping notification, project has notifications disabled")
		return nil, nil
	}

	// Keep the artifact snapshot current so delivery-time permission checks
	// and feed links see the latest title and location.
	if _, err := s.artifacts.Upsert(ctx, artifact); err != nil {
		return nil, errors.Wrap(err, "record artifact")
	}

	n, err := s.compose(ctx, scope, artifact, ev)
	if err != nil {
		return nil, err
	}

	n, err = s.notifications.Create(ctx, n)
	if err != nil {
		return nil, errors.Wrap(err, "store notification")
	}

	err = s.scheduler.Schedule(ctx, FanoutTask{
		NotificationID:  n.ID,
		ProjectID:       scope.Project.ID,
		AppConfigID:     scope.App.ID,
		ArtifactIndexID: artifact.IndexID,
		Topic:           n.Topic,
	})
	if err != nil {
		return nil, errors.Wrap(err, "schedule fan-out")
	}
	return &n, nil
}

// PostUser delivers a notification straight to one user's flash mailbox,
// bypassing subscriptions. The flash mailbox is created on first use and is
// read by the web layer rather than mailed. The project kill switch applies
// here the same as in Post: nothing is composed or stored while it is on.
func (s *Service) PostUser(ctx context.Context, scope Scope, userID string, artifact models.Artifact, ev Event) (*models.Notification, error) {
	if scope.Project.NotificationsDisabled {
		s.logger.Info().
			Str("project_id", scope.Project.ID).
			Str("user_id", userID).
			Msg("skipping notification, project has notifications disabled")
		return nil, nil
	}

	mbox, err := s.mailboxes.UpsertFlash(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "flash mailbox")
	}

	n, err := s.compose(ctx, scope, artifact, ev)
	if err != nil {
		return nil, err
	}
	n, err = s.notifications.Create(ctx, n)
	if err != nil {
		return nil, errors.Wrap(err, "store notification")
	}
	if err := s.mailboxes.AppendQueueByID(ctx, mbox.ID, n.ID); err != nil {
		return nil, errors.Wrap(err, "queue flash notification")
	}
	return &n, nil
}

// Flash drains and returns the user's flash mailbox. Reading consumes the
// queue; a second read returns nothing until new flashes arrive.
func (s *Service) Flash(ctx context.Context, userID string) ([]models.Notification, error) {
	mbox, err := s.mailboxes.Get(ctx, repository.MailboxScope{UserID: userID, IsFlash: true})
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "load flash mailbox")
	}
	ids, err := s.mailboxes.DrainQueue(ctx, mbox.ID)
	if err != nil {
		return nil, errors.Wrap(err, "drain flash mailbox")
	}
	if len(ids) == 0 {
		return nil, nil
	}
	return s.notifications.GetMany(ctx, ids)
}

// Recent lists stored notifications for the query, newest first.
func (s *Service) Recent(ctx context.Context, q repository.FeedQuery) ([]models.Notification, error) {
	return s.notifications.ListForFeed(ctx, q)
}

func (s *Service) compose(ctx context.Context, scope Scope, artifact models.Artifact, ev Event) (models.Notification, error) {
	n, err := s.composer.Compose(ctx, scope, artifact, ev)
	if err != nil {
		return models.Notification{}, errors.Wrap(err, "compose notification")
	}

	n.ID = NewMessageID(s.domain)
	n.NeighborhoodID = scope.Project.NeighborhoodID
	n.ProjectID = scope.Project.ID
	n.AppConfigID = scope.App.ID
	n.ToolName = scope.App.ToolName
	n.UniqueID = newNonce()
	n.PubDate = time.Now().UTC()
	return n, nil
}
