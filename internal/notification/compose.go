package notification

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"strings"
	"text/template"

	"github.com/dustin/go-humanize"
	"github.com/openforge/forge-api/internal/models"
	"github.com/openforge/forge-api/internal/repository"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

//go:embed templates
var templateFS embed.FS

// Event is the tool-supplied payload for a content change. Topic selects the
// composition rules; the remaining fields are per-topic metadata. Subject,
// Text and Link override the composed defaults when set.
type Event struct {
	Topic   string
	Subject string
	Text    string
	Link    string

	// "message" topic only
	Reply *models.Reply
	File  *models.FileInfo
}

// draft is the content part of a notification produced by a ComposeFunc.
// Classification fields are filled in by the service afterwards.
type draft struct {
	FromAddress    string
	ReplyToAddress string
	Subject        string
	Text           string
	InReplyTo      string
	AuthorID       string
}

// ComposeFunc builds the message content for one topic family.
type ComposeFunc func(ctx context.Context, c *Composer, scope Scope, artifact models.Artifact, ev Event) (draft, error)

// Composer turns change events into notification content. Topic handlers are
// a registered table; unknown topics fall through to the generic
// metadata-change rules.
type Composer struct {
	users          repository.UserRepository
	noReplyAddress string
	handlers       map[string]ComposeFunc
	templates      *template.Template
	logger         zerolog.Logger
}

func NewComposer(users repository.UserRepository, noReplyAddress string, logger zerolog.Logger) *Composer {
	templates := template.Must(template.ParseFS(templateFS, "templates/mail/*.txt"))
	c := &Composer{
		users:          users,
		noReplyAddress: noReplyAddress,
		handlers:       make(map[string]ComposeFunc),
		templates:      templates,
		logger:         logger.With().Str("component", "composer").Logger(),
	}
	c.Register(models.TopicMessage, composeMessage)
	return c
}

// Register installs a topic-specific composition rule. Safe to call during
// wiring only; the table is not synchronized.
func (c *Composer) Register(topic string, fn ComposeFunc) {
	c.handlers[topic] = fn
}

// Compose builds the content of a notification for the event. The returned
// notification carries content fields only; the caller assigns identity and
// classification. A notification without a resolvable reply-to address is a
// wiring bug and fails hard.
func (c *Composer) Compose(ctx context.Context, scope Scope, artifact models.Artifact, ev Event) (models.Notification, error) {
	handler, ok := c.handlers[ev.Topic]
	if !ok {
		handler = composeGeneric
	}

	d, err := handler(ctx, c, scope, artifact, ev)
	if err != nil {
		return models.Notification{}, err
	}

	d.Subject = scope.SubjectPrefix() + d.Subject
	d.Text += c.renderTypeTemplate(scope, artifact)

	if d.ReplyToAddress == "" {
		return models.Notification{}, errors.Errorf("notification for artifact %s has no reply-to address", artifact.IndexID)
	}

	link := ev.Link
	if link == "" {
		link = artifact.URL
	}

	return models.Notification{
		Topic:          ev.Topic,
		RefID:          artifact.IndexID,
		InReplyTo:      d.InReplyTo,
		FromAddress:    d.FromAddress,
		ReplyToAddress: d.ReplyToAddress,
		Subject:        d.Subject,
		Text:           d.Text,
		Link:           link,
		AuthorID:       d.AuthorID,
	}, nil
}

// renderTypeTemplate appends the optional per-artifact-type enrichment. A
// missing template is expected for most types; any rendering failure is
// logged and swallowed so the base notification still goes out.
func (c *Composer) renderTypeTemplate(scope Scope, artifact models.Artifact) string {
	tmpl := c.templates.Lookup(artifact.Type + ".txt")
	if tmpl == nil {
		return ""
	}
	var buf bytes.Buffer
	err := tmpl.Execute(&buf, map[string]interface{}{
		"Artifact": artifact,
		"Project":  scope.Project,
	})
	if err != nil {
		c.logger.Warn().Err(err).Str("artifact_type", artifact.Type).
			Msg("could not render notification template")
		return ""
	}
	return buf.String()
}

// composeMessage handles the reply ("message") topic: discussion posts that
// must remain individually replyable.
func composeMessage(ctx context.Context, c *Composer, scope Scope, artifact models.Artifact, ev Event) (draft, error) {
	if ev.Reply == nil {
		return draft{}, errors.New("message topic event without a reply payload")
	}
	reply := ev.Reply

	text := reply.Text
	if ev.File != nil {
		text = fmt.Sprintf("%s\n\n\nAttachment: %s (%s; %s)",
			text, ev.File.Filename, humanize.Bytes(uint64(ev.File.Size)), ev.File.ContentType)
	}

	subject := reply.Subject
	if reply.ParentID != "" && !strings.HasPrefix(strings.ToLower(subject), "re:") {
		subject = "Re: " + subject
	}

	var from string
	if reply.AuthorID != "" {
		author, err := c.users.GetUserByID(ctx, reply.AuthorID)
		if err == nil {
			from = formatAddress(author.DisplayName, author.NotificationAddress())
		}
	}

	return draft{
		FromAddress:    from,
		ReplyToAddress: formatAddress(scope.SubjectPrefix(), c.replyAddress(artifact)),
		Subject:        subject,
		Text:           text,
		InReplyTo:      reply.ParentID,
		AuthorID:       reply.AuthorID,
	}, nil
}

// composeGeneric handles every other topic as a metadata change by the
// acting user.
func composeGeneric(_ context.Context, c *Composer, scope Scope, artifact models.Artifact, ev Event) (draft, error) {
	subject := ev.Subject
	if subject == "" {
		subject = fmt.Sprintf("%s modified by %s", artifact.Title, scope.User.DisplayName)
	}

	text := ev.Text
	if text == "" {
		text = subject
	}

	replyTo := formatAddress(artifact.Title, c.replyAddress(artifact))
	from := replyTo
	if addr := scope.User.NotificationAddress(); addr != "" {
		from = formatAddress(scope.User.DisplayName, addr)
	}

	return draft{
		FromAddress:    from,
		ReplyToAddress: replyTo,
		Subject:        subject,
		Text:           text,
		AuthorID:       scope.User.ID,
	}, nil
}

func (c *Composer) replyAddress(artifact models.Artifact) string {
	if artifact.EmailAddress != "" {
		return artifact.EmailAddress
	}
	return c.noReplyAddress
}

func formatAddress(label, email string) string {
	if email == "" {
		return ""
	}
	return fmt.Sprintf("%q <%s>", label, email)
}
