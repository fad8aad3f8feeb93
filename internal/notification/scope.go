package notification

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/openforge/forge-api/internal/models"
)

// Scope is the explicit operation context for notification calls: who is
// acting, in which project, through which mounted tool. Every entry point
// takes one instead of consulting process-wide state.
type Scope struct {
	User    models.User
	Project models.Project
	App     models.AppConfig
}

// SubjectPrefix is prepended to every notification subject so replies route
// back to the right tool.
func (s Scope) SubjectPrefix() string {
	return fmt.Sprintf("[%s:%s] ", s.Project.Shortname, s.App.MountPoint)
}

// NewMessageID generates a globally unique RFC 5322 style message id. It is
// both the notification's primary key and the outbound Message-ID header.
func NewMessageID(domain string) string {
	nonce := strings.ReplaceAll(uuid.NewString(), "-", "")
	return fmt.Sprintf("%s.%d@%s", nonce, time.Now().Unix(), domain)
}

// newNonce returns the 40-character dedup nonce carried by feed entries.
func newNonce() string {
	raw := strings.ReplaceAll(uuid.NewString()+uuid.NewString(), "-", "")
	return raw[:40]
}
