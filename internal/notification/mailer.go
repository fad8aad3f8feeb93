package notification

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/openforge/forge-api/internal/config"
	"github.com/rs/zerolog"
)

// Message is one outbound email. Destinations are bare addresses; From and
// ReplyTo may carry display-name form. MessageID threads replies in mail
// clients.
type Message struct {
	Destinations []string
	From         string
	ReplyTo      string
	Subject      string
	MessageID    string
	InReplyTo    string
	Text         string
}

// Mailer hands composed messages to the mail transport.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

type SMTPMailer struct {
	host     string
	port     int
	username string
	password string
	from     string
	logger   zerolog.Logger
}

func NewSMTPMailer(cfg config.EmailConfig, logger zerolog.Logger) (*SMTPMailer, error) {
	host := strings.TrimSpace(cfg.SMTPHost)
	from := strings.TrimSpace(cfg.From)
	if host == "" {
		return nil, fmt.Errorf("smtp_host is required for mailer")
	}
	if from == "" {
		return nil, fmt.Errorf("from is required for mailer")
	}
	port := cfg.SMTPPort
	if port == 0 {
		port = 587
	}

	return &SMTPMailer{
		host:     host,
		port:     port,
		username: strings.TrimSpace(cfg.Username),
		password: cfg.Password,
		from:     from,
		logger:   logger.With().Str("component", "mailer").Logger(),
	}, nil
}

func (m *SMTPMailer) Send(_ context.Context, msg Message) error {
	if len(msg.Destinations) == 0 {
		return nil
	}

	from := msg.From
	if from == "" {
		from = m.from
	}

	headers := strings.Builder{}
	headers.WriteString(fmt.Sprintf("From: %s\r\n", from))
	headers.WriteString(fmt.Sprintf("To: %s\r\n", strings.Join(msg.Destinations, ",")))
	if msg.ReplyTo != "" {
		headers.WriteString(fmt.Sprintf("Reply-To: %s\r\n", msg.ReplyTo))
	}
	headers.WriteString(fmt.Sprintf("Subject: %s\r\n", msg.Subject))
	if msg.MessageID != "" {
		headers.WriteString(fmt.Sprintf("Message-ID: <%s>\r\n", msg.MessageID))
	}
	if msg.InReplyTo != "" {
		headers.WriteString(fmt.Sprintf("In-Reply-To: <%s>\r\n", msg.InReplyTo))
	}
	headers.WriteString("MIME-Version: 1.0\r\nContent-Type: text/plain; charset=\"UTF-8\"\r\n\r\n")

	var auth smtp.Auth
	if m.username != "" {
		auth = smtp.PlainAuth("", m.username, m.password, m.host)
	}

	addr := fmt.Sprintf("%s:%d", m.host, m.port)
	payload := []byte(headers.String() + msg.Text)
	if err := smtp.SendMail(addr, auth, m.from, msg.Destinations, payload); err != nil {
		return err
	}

	m.logger.Info().
		Str("message_id", msg.MessageID).
		Int("recipients", len(msg.Destinations)).
		Msg("mail sent")
	return nil
}
