package notification

import (
	"bytes"
	"context"
	"strings"
	"text/template"

	"github.com/openforge/forge-api/internal/authz"
	"github.com/openforge/forge-api/internal/models"
	"github.com/openforge/forge-api/internal/repository"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// summaryLimit caps each item body in summary mode, in runes.
const summaryLimit = 128

// Deliverer renders queued notifications into outbound mail. Read access is
// re-checked against the referenced artifact at send time; anything the user
// can no longer see is dropped here, not earlier.
type Deliverer struct {
	users     repository.UserRepository
	artifacts repository.ArtifactRepository
	access    authz.AccessChecker
	mailer    Mailer
	baseURL   string
	noReply   string
	footer    *template.Template
	logger    zerolog.Logger
}

func NewDeliverer(
	users repository.UserRepository,
	artifacts repository.ArtifactRepository,
	access authz.AccessChecker,
	mailer Mailer,
	baseURL, noReply string,
	logger zerolog.Logger,
) *Deliverer {
	footer := template.Must(template.ParseFS(templateFS, "templates/footer.txt"))
	return &Deliverer{
		users:     users,
		artifacts: artifacts,
		access:    access,
		mailer:    mailer,
		baseURL:   strings.TrimRight(baseURL, "/"),
		noReply:   noReply,
		footer:    footer,
		logger:    logger.With().Str("component", "deliverer").Logger(),
	}
}

// SendDirect mails a single notification to one user, preserving the original
// sender and threading headers so the recipient can reply in place.
func (d *Deliverer) SendDirect(ctx context.Context, userID string, n models.Notification) error {
	user, addr, err := d.recipient(ctx, userID)
	if err != nil || addr == "" {
		return err
	}

	ok, err := d.canRead(ctx, user.ID, n)
	if err != nil {
		return err
	}
	if !ok {
		d.logger.Info().Str("user_id", userID).Str("notification_id", n.ID).
			Msg("dropping notification, read access revoked")
		return nil
	}

	return d.mailer.Send(ctx, Message{
		Destinations: []string{addr},
		From:         n.FromAddress,
		ReplyTo:      n.ReplyToAddress,
		Subject:      n.Subject,
		MessageID:    n.ID,
		InReplyTo:    n.InReplyTo,
		Text:         n.Text + d.renderFooter(n.Link),
	})
}

// SendDigest mails a batch as one message, each item in full. Collapsed runs
// of direct mail keep their group's sender through from and replyTo; empty
// values fall back to the no-reply address used for scheduled digests.
func (d *Deliverer) SendDigest(ctx context.Context, userID string, notifications []models.Notification, subject, from, replyTo string) error {
	return d.sendBatch(ctx, userID, notifications, subject, from, replyTo, 0)
}

// SendSummary mails a batch as one message with each item body truncated.
func (d *Deliverer) SendSummary(ctx context.Context, userID string, notifications []models.Notification, subject string) error {
	return d.sendBatch(ctx, userID, notifications, subject, "", "", summaryLimit)
}

func (d *Deliverer) sendBatch(ctx context.Context, userID string, notifications []models.Notification, subject, from, replyTo string, limit int) error {
	if from == "" {
		from = d.noReply
	}
	if replyTo == "" {
		replyTo = d.noReply
	}
	user, addr, err := d.recipient(ctx, userID)
	if err != nil || addr == "" {
		return err
	}

	var readable []models.Notification
	for _, n := range notifications {
		ok, err := d.canRead(ctx, user.ID, n)
		if err != nil {
			return err
		}
		if ok {
			readable = append(readable, n)
		}
	}
	if len(readable) == 0 {
		return nil
	}

	body := strings.Builder{}
	body.WriteString("Digest of " + subject + "\n")
	var link string
	for _, n := range readable {
		itemSubject := n.Subject
		if strings.TrimSpace(itemSubject) == "" {
			itemSubject = "(no subject)"
		}
		text := n.Text
		if strings.TrimSpace(text) == "" {
			text = "-no text-"
		}
		if limit > 0 {
			text = truncate(text, limit)
		}
		body.WriteString("\nFrom: " + n.FromAddress + "\n")
		body.WriteString("Subject: " + itemSubject + "\n")
		body.WriteString("Message-ID: " + n.ID + "\n")
		body.WriteString("\n" + text + "\n")
		link = n.Link
	}
	body.WriteString(d.renderFooter(link))

	return d.mailer.Send(ctx, Message{
		Destinations: []string{addr},
		From:         from,
		ReplyTo:      replyTo,
		Subject:      subject,
		MessageID:    NewMessageID(domainOf(d.noReply)),
		Text:         body.String(),
	})
}

// recipient resolves the user and the address to mail. A missing or inactive
// user, or one with no usable address, is a silent skip.
func (d *Deliverer) recipient(ctx context.Context, userID string) (models.User, string, error) {
	user, err := d.users.GetUserByID(ctx, userID)
	if err != nil {
		if repository.IsNotFound(err) {
			d.logger.Warn().Str("user_id", userID).Msg("mailbox owner no longer exists")
			return models.User{}, "", nil
		}
		return models.User{}, "", errors.Wrap(err, "load recipient")
	}
	if !user.IsActive {
		return user, "", nil
	}
	return user, user.NotificationAddress(), nil
}

func (d *Deliverer) canRead(ctx context.Context, userID string, n models.Notification) (bool, error) {
	artifact, err := d.artifacts.Get(ctx, n.RefID)
	if err != nil {
		if repository.IsNotFound(err) {
			// Artifact deleted since the notification was queued.
			return false, nil
		}
		return false, err
	}
	return d.access.CanRead(ctx, artifact, userID)
}

func (d *Deliverer) renderFooter(link string) string {
	var buf bytes.Buffer
	err := d.footer.Execute(&buf, map[string]string{
		"BaseURL": d.baseURL,
		"Link":    link,
	})
	if err != nil {
		d.logger.Warn().Err(err).Msg("could not render mail footer")
		return ""
	}
	return buf.String()
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "..."
}

func domainOf(address string) string {
	if i := strings.LastIndex(address, "@"); i >= 0 {
		return strings.TrimRight(address[i+1:], ">")
	}
	return "localhost"
}
