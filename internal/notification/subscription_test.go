package notification

import (
	"context"
	"testing"

	"github.com/openforge/forge-api/internal/models"
	"github.com/openforge/forge-api/internal/repository"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func subTestProject() (models.Project, models.AppConfig) {
	return models.Project{ID: "p1", Shortname: "forge"},
		models.AppConfig{ID: "a1", ProjectID: "p1", ToolName: "tickets", MountPoint: "bugs"}
}

func TestSubscribeToolLevel(t *testing.T) {
	mailboxes := newFakeMailboxRepo()
	svc := NewSubscriptionService(mailboxes, zerolog.Nop())
	project, app := subTestProject()

	err := svc.Subscribe(context.Background(), "u1", project, app, nil, nil,
		models.DeliveryDirect, models.Frequency{N: 1, Unit: models.UnitDay})
	require.NoError(t, err)

	m, err := mailboxes.Get(context.Background(), repository.MailboxScope{
		UserID: "u1", ProjectID: str("p1"), AppConfigID: str("a1"),
	})
	require.NoError(t, err)
	assert.Equal(t, models.DeliveryDirect, m.Type)
	assert.Equal(t, "bugs", m.ArtifactTitle)
	assert.Equal(t, "/p/forge/bugs/", m.ArtifactURL)
}

func TestSubscribeToolLevelSupersedesArtifactMailboxes(t *testing.T) {
	mailboxes := newFakeMailboxRepo()
	svc := NewSubscriptionService(mailboxes, zerolog.Nop())
	project, app := subTestProject()
	artifact := testArtifact()

	require.NoError(t, svc.Subscribe(context.Background(), "u1", project, app, &artifact, nil,
		models.DeliveryDirect, models.Frequency{N: 1, Unit: models.UnitDay}))

	require.NoError(t, svc.Subscribe(context.Background(), "u1", project, app, nil, nil,
		models.DeliveryDirect, models.Frequency{N: 1, Unit: models.UnitDay}))

	_, err := mailboxes.Get(context.Background(), repository.MailboxScope{
		UserID: "u1", ProjectID: str("p1"), AppConfigID: str("a1"), ArtifactIndexID: str(artifact.IndexID),
	})
	assert.Error(t, err, "artifact mailbox must be absorbed by the tool-level subscription")

	subscribed, err := svc.Subscribed(context.Background(), "u1", "p1", "a1", str(artifact.IndexID))
	require.NoError(t, err)
	assert.True(t, subscribed, "tool-level subscription still covers the artifact")
}

func TestSubscribeArtifactUnderToolLevelIsNoOp(t *testing.T) {
	mailboxes := newFakeMailboxRepo()
	svc := NewSubscriptionService(mailboxes, zerolog.Nop())
	project, app := subTestProject()
	artifact := testArtifact()

	require.NoError(t, svc.Subscribe(context.Background(), "u1", project, app, nil, nil,
		models.DeliveryDirect, models.Frequency{N: 1, Unit: models.UnitDay}))

	require.NoError(t, svc.Subscribe(context.Background(), "u1", project, app, &artifact, nil,
		models.DeliveryDigest, models.Frequency{N: 1, Unit: models.UnitWeek}))

	_, err := mailboxes.Get(context.Background(), repository.MailboxScope{
		UserID: "u1", ProjectID: str("p1"), AppConfigID: str("a1"), ArtifactIndexID: str(artifact.IndexID),
	})
	assert.Error(t, err, "no artifact mailbox is created under a tool-level subscription")
}

func TestResubscribeUpdatesPolicyInPlace(t *testing.T) {
	mailboxes := newFakeMailboxRepo()
	svc := NewSubscriptionService(mailboxes, zerolog.Nop())
	project, app := subTestProject()

	require.NoError(t, svc.Subscribe(context.Background(), "u1", project, app, nil, nil,
		models.DeliveryDirect, models.Frequency{N: 1, Unit: models.UnitDay}))
	require.NoError(t, svc.Subscribe(context.Background(), "u1", project, app, nil, nil,
		models.DeliverySummary, models.Frequency{N: 2, Unit: models.UnitWeek}))

	m, err := mailboxes.Get(context.Background(), repository.MailboxScope{
		UserID: "u1", ProjectID: str("p1"), AppConfigID: str("a1"),
	})
	require.NoError(t, err)
	assert.Equal(t, models.DeliverySummary, m.Type)
	assert.Equal(t, models.Frequency{N: 2, Unit: models.UnitWeek}, m.Frequency)
}

func TestSubscribeRejectsInvalidPolicy(t *testing.T) {
	svc := NewSubscriptionService(newFakeMailboxRepo(), zerolog.Nop())
	project, app := subTestProject()

	err := svc.Subscribe(context.Background(), "u1", project, app, nil, nil,
		models.DeliveryFlash, models.Frequency{N: 1, Unit: models.UnitDay})
	assert.Error(t, err, "flash mailboxes cannot be subscribed to directly")

	err = svc.Subscribe(context.Background(), "u1", project, app, nil, nil,
		models.DeliveryDigest, models.Frequency{N: 0, Unit: models.UnitDay})
	assert.Error(t, err)
}

func TestUnsubscribeRemovesExactScope(t *testing.T) {
	mailboxes := newFakeMailboxRepo()
	svc := NewSubscriptionService(mailboxes, zerolog.Nop())
	project, app := subTestProject()
	artifact := testArtifact()

	require.NoError(t, svc.Subscribe(context.Background(), "u1", project, app, &artifact, nil,
		models.DeliveryDirect, models.Frequency{N: 1, Unit: models.UnitDay}))

	require.NoError(t, svc.Unsubscribe(context.Background(), "u1", "p1", "a1", str(artifact.IndexID), nil))

	subscribed, err := svc.Subscribed(context.Background(), "u1", "p1", "a1", str(artifact.IndexID))
	require.NoError(t, err)
	assert.False(t, subscribed)

	// Unsubscribing again is not an error.
	require.NoError(t, svc.Unsubscribe(context.Background(), "u1", "p1", "a1", str(artifact.IndexID), nil))
}
