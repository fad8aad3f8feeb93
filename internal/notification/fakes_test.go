package notification

import (
	"context"
	"database/sql"
	"strconv"
	"sync"
	"time"

	"github.com/openforge/forge-api/internal/models"
	"github.com/openforge/forge-api/internal/repository"
)

// In-memory stand-ins for the repositories and the mail transport. They keep
// just enough behavior for the delivery pipeline to run without Postgres.

type fakeUserRepo struct {
	users map[string]models.User
}

func newFakeUserRepo(users ...models.User) *fakeUserRepo {
	m := make(map[string]models.User)
	for _, u := range users {
		m[u.ID] = u
	}
	return &fakeUserRepo{users: m}
}

func (f *fakeUserRepo) CreateUser(_ context.Context, username, email, _, displayName string, roles []models.UserRole) (models.User, error) {
	u := models.User{ID: username, Username: username, PreferredEmail: email, DisplayName: displayName, IsActive: true, Roles: roles}
	f.users[u.ID] = u
	return u, nil
}

func (f *fakeUserRepo) AuthenticateUser(_ context.Context, username, _ string) (models.User, error) {
	for _, u := range f.users {
		if u.Username == username {
			return u, nil
		}
	}
	return models.User{}, sql.ErrNoRows
}

func (f *fakeUserRepo) GetUserByID(_ context.Context, userID string) (models.User, error) {
	u, ok := f.users[userID]
	if !ok {
		return models.User{}, sql.ErrNoRows
	}
	return u, nil
}

func (f *fakeUserRepo) GetUserByUsername(_ context.Context, username string) (models.User, error) {
	for _, u := range f.users {
		if u.Username == username {
			return u, nil
		}
	}
	return models.User{}, sql.ErrNoRows
}

type fakeArtifactRepo struct {
	artifacts map[string]models.Artifact
}

func newFakeArtifactRepo(artifacts ...models.Artifact) *fakeArtifactRepo {
	m := make(map[string]models.Artifact)
	for _, a := range artifacts {
		m[a.IndexID] = a
	}
	return &fakeArtifactRepo{artifacts: m}
}

func (f *fakeArtifactRepo) Get(_ context.Context, indexID string) (models.Artifact, error) {
	a, ok := f.artifacts[indexID]
	if !ok {
		return models.Artifact{}, sql.ErrNoRows
	}
	return a, nil
}

func (f *fakeArtifactRepo) Upsert(_ context.Context, artifact models.Artifact) (models.Artifact, error) {
	f.artifacts[artifact.IndexID] = artifact
	return artifact, nil
}

type fakeNotificationRepo struct {
	stored map[string]models.Notification
}

func newFakeNotificationRepo(notifs ...models.Notification) *fakeNotificationRepo {
	m := make(map[string]models.Notification)
	for _, n := range notifs {
		m[n.ID] = n
	}
	return &fakeNotificationRepo{stored: m}
}

func (f *fakeNotificationRepo) Create(_ context.Context, n models.Notification) (models.Notification, error) {
	f.stored[n.ID] = n
	return n, nil
}

func (f *fakeNotificationRepo) Get(_ context.Context, id string) (models.Notification, error) {
	n, ok := f.stored[id]
	if !ok {
		return models.Notification{}, sql.ErrNoRows
	}
	return n, nil
}

func (f *fakeNotificationRepo) GetMany(_ context.Context, ids []string) ([]models.Notification, error) {
	var out []models.Notification
	for _, id := range ids {
		if n, ok := f.stored[id]; ok {
			out = append(out, n)
		}
	}
	return out, nil
}

func (f *fakeNotificationRepo) ListForFeed(_ context.Context, q repository.FeedQuery) ([]models.Notification, error) {
	var out []models.Notification
	for _, n := range f.stored {
		if q.ProjectID != "" && n.ProjectID != q.ProjectID {
			continue
		}
		if q.AppConfigID != "" && n.AppConfigID != q.AppConfigID {
			continue
		}
		out = append(out, n)
	}
	return out, nil
}

type fakeMailboxRepo struct {
	mu       sync.Mutex
	byID     map[string]*models.Mailbox
	nextID   int
	appended map[string][]string // mailbox id -> queued notification ids
}

func newFakeMailboxRepo() *fakeMailboxRepo {
	return &fakeMailboxRepo{
		byID:     make(map[string]*models.Mailbox),
		appended: make(map[string][]string),
	}
}

func (f *fakeMailboxRepo) add(mbox models.Mailbox) models.Mailbox {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	mbox.ID = "mbox-" + strconv.Itoa(f.nextID)
	f.byID[mbox.ID] = &mbox
	return mbox
}

func sameScope(m *models.Mailbox, s repository.MailboxScope) bool {
	return m.UserID == s.UserID &&
		strPtrEq(m.ProjectID, s.ProjectID) &&
		strPtrEq(m.AppConfigID, s.AppConfigID) &&
		strPtrEq(m.ArtifactIndexID, s.ArtifactIndexID) &&
		strPtrEq(m.Topic, s.Topic) &&
		m.IsFlash == s.IsFlash
}

func strPtrEq(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func (f *fakeMailboxRepo) Insert(_ context.Context, mbox models.Mailbox) (models.Mailbox, error) {
	scope := repository.MailboxScope{
		UserID: mbox.UserID, ProjectID: mbox.ProjectID, AppConfigID: mbox.AppConfigID,
		ArtifactIndexID: mbox.ArtifactIndexID, Topic: mbox.Topic, IsFlash: mbox.IsFlash,
	}
	f.mu.Lock()
	for _, existing := range f.byID {
		if sameScope(existing, scope) {
			f.mu.Unlock()
			return models.Mailbox{}, repository.ErrDuplicateMailbox
		}
	}
	f.mu.Unlock()
	return f.add(mbox), nil
}

func (f *fakeMailboxRepo) Get(_ context.Context, scope repository.MailboxScope) (models.Mailbox, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range f.byID {
		if sameScope(m, scope) {
			return *m, nil
		}
	}
	return models.Mailbox{}, sql.ErrNoRows
}

func (f *fakeMailboxRepo) ExistsSubscription(_ context.Context, userID, projectID, appConfigID string, artifactIndexID *string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range f.byID {
		if m.UserID == userID && !m.IsFlash &&
			m.ProjectID != nil && *m.ProjectID == projectID &&
			m.AppConfigID != nil && *m.AppConfigID == appConfigID &&
			strPtrEq(m.ArtifactIndexID, artifactIndexID) {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeMailboxRepo) UpdatePolicy(_ context.Context, scope repository.MailboxScope, title, url string, typ models.DeliveryType, freq models.Frequency) (models.Mailbox, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range f.byID {
		if sameScope(m, scope) {
			m.ArtifactTitle = title
			m.ArtifactURL = url
			m.Type = typ
			m.Frequency = freq
			return *m, nil
		}
	}
	return models.Mailbox{}, sql.ErrNoRows
}

func (f *fakeMailboxRepo) Delete(_ context.Context, scope repository.MailboxScope) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, m := range f.byID {
		if sameScope(m, scope) {
			delete(f.byID, id)
		}
	}
	return nil
}

func (f *fakeMailboxRepo) DeleteArtifactScoped(_ context.Context, userID, projectID, appConfigID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, m := range f.byID {
		if m.UserID == userID && !m.IsFlash && m.ArtifactIndexID != nil &&
			m.ProjectID != nil && *m.ProjectID == projectID &&
			m.AppConfigID != nil && *m.AppConfigID == appConfigID {
			delete(f.byID, id)
		}
	}
	return nil
}

func (f *fakeMailboxRepo) UpsertFlash(ctx context.Context, userID string) (models.Mailbox, error) {
	scope := repository.MailboxScope{UserID: userID, IsFlash: true}
	if m, err := f.Get(ctx, scope); err == nil {
		return m, nil
	}
	return f.add(models.Mailbox{
		UserID:    userID,
		IsFlash:   true,
		Type:      models.DeliveryFlash,
		Frequency: models.Frequency{N: 1, Unit: models.UnitDay},
	}), nil
}

func (f *fakeMailboxRepo) AppendQueue(_ context.Context, projectID, appConfigID, artifactIndexID, topic, notificationID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var reached int64
	for id, m := range f.byID {
		if m.IsFlash {
			continue
		}
		if m.ProjectID == nil || *m.ProjectID != projectID {
			continue
		}
		if m.AppConfigID == nil || *m.AppConfigID != appConfigID {
			continue
		}
		if m.ArtifactIndexID != nil && *m.ArtifactIndexID != artifactIndexID {
			continue
		}
		if m.Topic != nil && *m.Topic != topic {
			continue
		}
		m.Queue = append(m.Queue, notificationID)
		m.LastModified = time.Now()
		f.appended[id] = append(f.appended[id], notificationID)
		reached++
	}
	return reached, nil
}

func (f *fakeMailboxRepo) AppendQueueByID(_ context.Context, mailboxID, notificationID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.byID[mailboxID]
	if !ok {
		return sql.ErrNoRows
	}
	m.Queue = append(m.Queue, notificationID)
	f.appended[mailboxID] = append(f.appended[mailboxID], notificationID)
	return nil
}

func (f *fakeMailboxRepo) ListReadyDirect(_ context.Context, modifiedBefore *time.Time) ([]models.Mailbox, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Mailbox
	for _, m := range f.byID {
		if m.Type != models.DeliveryDirect || len(m.Queue) == 0 {
			continue
		}
		if modifiedBefore != nil && !m.LastModified.Before(*modifiedBefore) {
			continue
		}
		out = append(out, *m)
	}
	return out, nil
}

func (f *fakeMailboxRepo) ListReadyScheduled(_ context.Context, now time.Time) ([]models.Mailbox, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Mailbox
	for _, m := range f.byID {
		if m.Type != models.DeliveryDigest && m.Type != models.DeliverySummary {
			continue
		}
		if m.NextScheduled.Before(now) {
			out = append(out, *m)
		}
	}
	return out, nil
}

func (f *fakeMailboxRepo) DrainQueue(_ context.Context, mailboxID string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.byID[mailboxID]
	if !ok || len(m.Queue) == 0 {
		return nil, nil
	}
	drained := m.Queue
	m.Queue = nil
	return drained, nil
}

func (f *fakeMailboxRepo) DrainAndReschedule(_ context.Context, mailboxID string, due, next time.Time) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.byID[mailboxID]
	if !ok || !m.NextScheduled.Before(due) {
		return nil, nil
	}
	drained := m.Queue
	m.Queue = nil
	m.NextScheduled = next
	return drained, nil
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []Message
}

func (f *fakeMailer) Send(_ context.Context, msg Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, msg)
	return nil
}

func (f *fakeMailer) messages() []Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Message(nil), f.sent...)
}

// accessFunc adapts a function to authz.AccessChecker.
type accessFunc func(ctx context.Context, artifact models.Artifact, userID string) (bool, error)

func (f accessFunc) CanRead(ctx context.Context, artifact models.Artifact, userID string) (bool, error) {
	return f(ctx, artifact, userID)
}

func allowAll() accessFunc {
	return func(context.Context, models.Artifact, string) (bool, error) { return true, nil }
}

func denyAll() accessFunc {
	return func(context.Context, models.Artifact, string) (bool, error) { return false, nil }
}

type fakeScheduler struct {
	mu    sync.Mutex
	tasks []FanoutTask
}

func (f *fakeScheduler) Schedule(_ context.Context, task FanoutTask) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tasks = append(f.tasks, task)
	return nil
}
