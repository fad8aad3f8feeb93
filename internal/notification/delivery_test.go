package notification

import (
	"context"
	"testing"

	"github.com/openforge/forge-api/internal/models"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDeliverer(users *fakeUserRepo, artifacts *fakeArtifactRepo, access accessFunc) (*Deliverer, *fakeMailer) {
	mailer := &fakeMailer{}
	d := NewDeliverer(users, artifacts, access, mailer,
		"https://forge.example.com", "noreply@forge.example.com", zerolog.Nop())
	return d, mailer
}

func TestSendDirectAppendsFooter(t *testing.T) {
	user := models.User{ID: "u2", Username: "bob", DisplayName: "Bob", PreferredEmail: "bob@example.com", IsActive: true}
	d, mailer := newTestDeliverer(newFakeUserRepo(user), newFakeArtifactRepo(testArtifact()), allowAll())

	n := testNotification("n1", models.TopicMessage, "[forge:bugs] crash on start")
	require.NoError(t, d.SendDirect(context.Background(), "u2", n))

	sent := mailer.messages()
	require.Len(t, sent, 1)
	assert.Equal(t, n.ID, sent[0].MessageID)
	assert.Equal(t, n.ReplyToAddress, sent[0].ReplyTo)
	assert.Contains(t, sent[0].Text, "body of n1")
	assert.Contains(t, sent[0].Text, "https://forge.example.com/p/forge/bugs/42/")
	assert.Contains(t, sent[0].Text, "unsubscribe")
}

func TestSendDirectSkipsInactiveUser(t *testing.T) {
	user := models.User{ID: "u2", Username: "bob", PreferredEmail: "bob@example.com", IsActive: false}
	d, mailer := newTestDeliverer(newFakeUserRepo(user), newFakeArtifactRepo(testArtifact()), allowAll())

	require.NoError(t, d.SendDirect(context.Background(), "u2", testNotification("n1", models.TopicMessage, "s")))
	assert.Empty(t, mailer.messages())
}

func TestSendDirectSkipsMissingUser(t *testing.T) {
	d, mailer := newTestDeliverer(newFakeUserRepo(), newFakeArtifactRepo(testArtifact()), allowAll())

	require.NoError(t, d.SendDirect(context.Background(), "ghost", testNotification("n1", models.TopicMessage, "s")))
	assert.Empty(t, mailer.messages())
}

func TestSendDirectDropsWhenArtifactDeleted(t *testing.T) {
	user := models.User{ID: "u2", Username: "bob", PreferredEmail: "bob@example.com", IsActive: true}
	d, mailer := newTestDeliverer(newFakeUserRepo(user), newFakeArtifactRepo(), allowAll())

	require.NoError(t, d.SendDirect(context.Background(), "u2", testNotification("n1", models.TopicMessage, "s")))
	assert.Empty(t, mailer.messages())
}

func TestSendDigestFillsPlaceholders(t *testing.T) {
	user := models.User{ID: "u2", Username: "bob", PreferredEmail: "bob@example.com", IsActive: true}
	d, mailer := newTestDeliverer(newFakeUserRepo(user), newFakeArtifactRepo(testArtifact()), allowAll())

	blank := testNotification("n1", models.TopicMetadata, "")
	blank.Subject = ""
	blank.Text = "  "
	require.NoError(t, d.SendDigest(context.Background(), "u2", []models.Notification{blank}, "Digest Email", "", ""))

	sent := mailer.messages()
	require.Len(t, sent, 1)
	assert.Contains(t, sent[0].Text, "(no subject)")
	assert.Contains(t, sent[0].Text, "-no text-")
	assert.NotEqual(t, "n1", sent[0].MessageID, "digest mail gets a fresh message id")
	assert.Equal(t, "noreply@forge.example.com", sent[0].From,
		"scheduled digests fall back to the no-reply sender")
}

func TestSendDigestKeepsCallerSender(t *testing.T) {
	user := models.User{ID: "u2", Username: "bob", PreferredEmail: "bob@example.com", IsActive: true}
	d, mailer := newTestDeliverer(newFakeUserRepo(user), newFakeArtifactRepo(testArtifact()), allowAll())

	batch := []models.Notification{
		testNotification("n1", models.TopicMetadata, "[forge:bugs] #42 edited"),
		testNotification("n2", models.TopicMetadata, "[forge:bugs] #42 edited"),
	}
	require.NoError(t, d.SendDigest(context.Background(), "u2", batch, "[forge:bugs] #42 edited",
		`"Alice Doe" <alice@example.com>`, `"[forge:bugs] " <42@bugs.forge.example.com>`))

	sent := mailer.messages()
	require.Len(t, sent, 1)
	assert.Equal(t, `"Alice Doe" <alice@example.com>`, sent[0].From)
	assert.Equal(t, `"[forge:bugs] " <42@bugs.forge.example.com>`, sent[0].ReplyTo)
}
