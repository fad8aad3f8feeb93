package notification

import (
	"context"
	"time"

	"github.com/openforge/forge-api/internal/models"
	"github.com/openforge/forge-api/internal/repository"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// FanoutTask identifies one persisted notification and the scope it fans out
// to. It is the payload handed to the scheduler after the notification row is
// committed.
type FanoutTask struct {
	NotificationID  string `json:"notification_id"`
	ProjectID       string `json:"project_id"`
	AppConfigID     string `json:"app_config_id"`
	ArtifactIndexID string `json:"artifact_index_id"`
	Topic           string `json:"topic"`
}

// FanoutScheduler hands fan-out work to the task backend. Implementations
// must only be invoked after the notification is durably stored.
type FanoutScheduler interface {
	Schedule(ctx context.Context, task FanoutTask) error
}

// Dispatcher owns the queue side of delivery: fanning notification ids out to
// subscribed mailboxes and periodically firing mailboxes whose queues are due.
type Dispatcher struct {
	mailboxes     repository.MailboxRepository
	notifications repository.NotificationRepository
	deliverer     *Deliverer
	// quiescent delays direct delivery until a mailbox has been quiet for
	// this long, so rapid-fire edits coalesce. Zero delivers immediately.
	quiescent time.Duration
	logger    zerolog.Logger
}

func NewDispatcher(
	mailboxes repository.MailboxRepository,
	notifications repository.NotificationRepository,
	deliverer *Deliverer,
	quiescent time.Duration,
	logger zerolog.Logger,
) *Dispatcher {
	return &Dispatcher{
		mailboxes:     mailboxes,
		notifications: notifications,
		deliverer:     deliverer,
		quiescent:     quiescent,
		logger:        logger.With().Str("component", "dispatcher").Logger(),
	}
}

// Deliver appends the notification id to every mailbox subscribed to the
// artifact's tool, artifact, or topic. The append is a single statement, so a
// crash mid-fanout never leaves a mailbox with a partial queue.
func (d *Dispatcher) Deliver(ctx context.Context, task FanoutTask) error {
	reached, err := d.mailboxes.AppendQueue(ctx,
		task.ProjectID, task.AppConfigID, task.ArtifactIndexID, task.Topic, task.NotificationID)
	if err != nil {
		return errors.Wrap(err, "fan out notification")
	}
	d.logger.Debug().
		Str("notification_id", task.NotificationID).
		Int64("mailboxes", reached).
		Msg("notification fanned out")
	return nil
}

// FireReady sweeps mailboxes whose queues are due and sends their contents.
// Direct mailboxes fire whenever the queue is non-empty (subject to the
// quiescent window); digest and summary mailboxes fire when next_scheduled
// has passed and are pushed one cadence interval forward. Per-mailbox
// failures are logged and skipped so one bad mailbox cannot stall the sweep;
// its queue contents are lost, matching at-most-once delivery.
func (d *Dispatcher) FireReady(ctx context.Context) error {
	now := time.Now().UTC()

	var modifiedBefore *time.Time
	if d.quiescent > 0 {
		cutoff := now.Add(-d.quiescent)
		modifiedBefore = &cutoff
	}

	direct, err := d.mailboxes.ListReadyDirect(ctx, modifiedBefore)
	if err != nil {
		return errors.Wrap(err, "list ready direct mailboxes")
	}
	for _, mbox := range direct {
		ids, err := d.mailboxes.DrainQueue(ctx, mbox.ID)
		if err != nil {
			d.logger.Error().Err(err).Str("mailbox_id", mbox.ID).Msg("drain failed")
			continue
		}
		d.fire(ctx, mbox, ids)
	}

	scheduled, err := d.mailboxes.ListReadyScheduled(ctx, now)
	if err != nil {
		return errors.Wrap(err, "list ready scheduled mailboxes")
	}
	for _, mbox := range scheduled {
		next := now.Add(mbox.Frequency.Interval())
		ids, err := d.mailboxes.DrainAndReschedule(ctx, mbox.ID, now, next)
		if err != nil {
			d.logger.Error().Err(err).Str("mailbox_id", mbox.ID).Msg("drain failed")
			continue
		}
		d.fire(ctx, mbox, ids)
	}
	return nil
}

// fire sends the drained queue according to the mailbox delivery policy.
func (d *Dispatcher) fire(ctx context.Context, mbox models.Mailbox, ids []string) {
	if len(ids) == 0 {
		return
	}

	notifs, err := d.loadOrdered(ctx, ids)
	if err != nil {
		d.logger.Error().Err(err).Str("mailbox_id", mbox.ID).Msg("could not load queued notifications")
		return
	}
	if len(notifs) == 0 {
		return
	}

	switch mbox.Type {
	case models.DeliveryDirect:
		d.fireDirect(ctx, mbox, notifs)
	case models.DeliveryDigest:
		if err := d.deliverer.SendDigest(ctx, mbox.UserID, notifs, "Digest Email", "", ""); err != nil {
			d.logger.Error().Err(err).Str("mailbox_id", mbox.ID).Msg("digest send failed")
		}
	case models.DeliverySummary:
		if err := d.deliverer.SendSummary(ctx, mbox.UserID, notifs, "Digest Email"); err != nil {
			d.logger.Error().Err(err).Str("mailbox_id", mbox.ID).Msg("summary send failed")
		}
	default:
		// Flash mailboxes are read by the web layer, never mailed.
	}
}

type directGroupKey struct {
	subject string
	from    string
	replyTo string
	author  string
}

// fireDirect sends each notification on its own, except that runs sharing the
// same subject, sender, reply-to and author collapse into one digest. Replies
// ("message" topic) are never collapsed; each must stay a threadable mail.
func (d *Dispatcher) fireDirect(ctx context.Context, mbox models.Mailbox, notifs []models.Notification) {
	var order []directGroupKey
	groups := make(map[directGroupKey][]models.Notification)
	for _, n := range notifs {
		key := directGroupKey{subject: n.Subject, from: n.FromAddress, replyTo: n.ReplyToAddress, author: n.AuthorID}
		if n.Topic == models.TopicMessage {
			// Unique key per reply keeps it out of any group.
			key.subject = key.subject + "\x00" + n.ID
		}
		if _, seen := groups[key]; !seen {
			order = append(order, key)
		}
		groups[key] = append(groups[key], n)
	}

	for _, key := range order {
		batch := groups[key]
		var err error
		if len(batch) == 1 {
			err = d.deliverer.SendDirect(ctx, mbox.UserID, batch[0])
		} else {
			// Collapsed runs stay answerable: the group's sender and
			// reply-to carry over instead of the no-reply address.
			err = d.deliverer.SendDigest(ctx, mbox.UserID, batch, batch[0].Subject,
				batch[0].FromAddress, batch[0].ReplyToAddress)
		}
		if err != nil {
			d.logger.Error().Err(err).Str("mailbox_id", mbox.ID).Msg("direct send failed")
		}
	}
}

// loadOrdered resolves ids to notifications in queue order. Ids that no
// longer resolve are dropped.
func (d *Dispatcher) loadOrdered(ctx context.Context, ids []string) ([]models.Notification, error) {
	found, err := d.notifications.GetMany(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]models.Notification, len(found))
	for _, n := range found {
		byID[n.ID] = n
	}
	ordered := make([]models.Notification, 0, len(ids))
	for _, id := range ids {
		if n, ok := byID[id]; ok {
			ordered = append(ordered, n)
		}
	}
	return ordered, nil
}
