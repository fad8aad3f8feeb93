package notification

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/openforge/forge-api/internal/models"
	"github.com/openforge/forge-api/internal/repository"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(scope Scope) (*Service, *fakeNotificationRepo, *fakeMailboxRepo, *fakeScheduler) {
	notifs := newFakeNotificationRepo()
	mailboxes := newFakeMailboxRepo()
	artifacts := newFakeArtifactRepo()
	users := newFakeUserRepo(scope.User)
	scheduler := &fakeScheduler{}
	composer := NewComposer(users, "noreply@forge.example.com", zerolog.Nop())

	svc := NewService(notifs, mailboxes, artifacts, users, composer, scheduler,
		"forge.example.com", "https://forge.example.com", zerolog.Nop())
	return svc, notifs, mailboxes, scheduler
}

func TestPostStoresAndSchedulesFanout(t *testing.T) {
	scope := testScope()
	svc, notifs, _, scheduler := newTestService(scope)

	n, err := svc.Post(context.Background(), scope, testArtifact(), Event{Topic: models.TopicMetadata})
	require.NoError(t, err)
	require.NotNil(t, n)

	assert.True(t, strings.HasSuffix(n.ID, "@forge.example.com"))
	assert.Equal(t, "p1", n.ProjectID)
	assert.Equal(t, "a1", n.AppConfigID)
	assert.Equal(t, "tickets", n.ToolName)
	assert.Len(t, n.UniqueID, 40)
	assert.False(t, n.PubDate.IsZero())

	_, ok := notifs.stored[n.ID]
	assert.True(t, ok, "notification is persisted before fan-out")

	require.Len(t, scheduler.tasks, 1)
	assert.Equal(t, n.ID, scheduler.tasks[0].NotificationID)
	assert.Equal(t, "ticket-42", scheduler.tasks[0].ArtifactIndexID)
}

func TestPostSuppressedWhenProjectDisabled(t *testing.T) {
	scope := testScope()
	scope.Project.NotificationsDisabled = true
	svc, notifs, _, scheduler := newTestService(scope)

	n, err := svc.Post(context.Background(), scope, testArtifact(), Event{Topic: models.TopicMetadata})
	require.NoError(t, err, "suppression is not an error")
	assert.Nil(t, n)
	assert.Empty(t, notifs.stored)
	assert.Empty(t, scheduler.tasks)
}

func TestPostUserSuppressedWhenProjectDisabled(t *testing.T) {
	scope := testScope()
	scope.Project.NotificationsDisabled = true
	svc, notifs, mailboxes, _ := newTestService(scope)

	n, err := svc.PostUser(context.Background(), scope, "u9", testArtifact(), Event{
		Topic:   models.TopicMetadata,
		Subject: "you were mentioned",
	})
	require.NoError(t, err, "suppression is not an error")
	assert.Nil(t, n)
	assert.Empty(t, notifs.stored)

	_, err = mailboxes.Get(context.Background(), repository.MailboxScope{UserID: "u9", IsFlash: true})
	assert.Error(t, err, "no flash mailbox is created for a suppressed notification")
}

func TestPostUserQueuesFlashOnly(t *testing.T) {
	scope := testScope()
	svc, notifs, mailboxes, scheduler := newTestService(scope)

	n, err := svc.PostUser(context.Background(), scope, "u9", testArtifact(), Event{
		Topic:   models.TopicMetadata,
		Subject: "you were mentioned",
	})
	require.NoError(t, err)
	require.NotNil(t, n)

	_, ok := notifs.stored[n.ID]
	assert.True(t, ok)
	assert.Empty(t, scheduler.tasks, "flash delivery does not fan out")

	flash, err := mailboxes.Get(context.Background(), repository.MailboxScope{UserID: "u9", IsFlash: true})
	require.NoError(t, err)
	assert.Equal(t, []string{n.ID}, flash.Queue)
}

func TestFlashReadConsumesQueue(t *testing.T) {
	scope := testScope()
	svc, _, _, _ := newTestService(scope)

	n, err := svc.PostUser(context.Background(), scope, "u9", testArtifact(), Event{
		Topic:   models.TopicMetadata,
		Subject: "you were mentioned",
	})
	require.NoError(t, err)

	first, err := svc.Flash(context.Background(), "u9")
	require.NoError(t, err)
	require.Len(t, first, 1)
	assert.Equal(t, n.ID, first[0].ID)

	second, err := svc.Flash(context.Background(), "u9")
	require.NoError(t, err)
	assert.Empty(t, second, "flash notifications are consumed on read")
}

func TestFlashForUserWithoutMailbox(t *testing.T) {
	svc, _, _, _ := newTestService(testScope())

	notifs, err := svc.Flash(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Empty(t, notifs)
}

func TestFeedProjection(t *testing.T) {
	scope := testScope()
	svc, _, _, _ := newTestService(scope)

	posted, err := svc.Post(context.Background(), scope, testArtifact(), Event{Topic: models.TopicMetadata})
	require.NoError(t, err)

	feed, err := svc.Feed(context.Background(), "Recent changes", repository.FeedQuery{ProjectID: "p1"})
	require.NoError(t, err)

	assert.Equal(t, "Recent changes", feed.Title)
	require.Len(t, feed.Items, 1)
	item := feed.Items[0]
	assert.Equal(t, posted.Subject, item.Title)
	assert.Equal(t, posted.UniqueID, item.Id)
	assert.Equal(t, "https://forge.example.com/p/forge/bugs/42/", item.Link.Href)
	require.NotNil(t, item.Author)
	assert.Equal(t, "Alice Doe", item.Author.Name)
}

func TestFeedAtomCarriesAuthorProfileURI(t *testing.T) {
	scope := testScope()
	svc, _, _, _ := newTestService(scope)

	_, err := svc.Post(context.Background(), scope, testArtifact(), Event{Topic: models.TopicMetadata})
	require.NoError(t, err)

	feed, err := svc.Feed(context.Background(), "Recent changes", repository.FeedQuery{ProjectID: "p1"})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, feed.WriteAtom(&buf))
	assert.Contains(t, buf.String(), "<name>Alice Doe</name>")
	assert.Contains(t, buf.String(), "<uri>https://forge.example.com/u/alice/</uri>")
}
