package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/lib/pq"
	"github.com/openforge/forge-api/internal/models"
)

// ErrDuplicateMailbox signals that a mailbox already exists for the scope
// tuple. Callers recover by updating the existing record in place.
var ErrDuplicateMailbox = errors.New("mailbox already exists for scope")

// MailboxScope identifies a mailbox by its composite unique key. Nil pointer
// fields match SQL NULL (tool-level scope / any-topic filter), not "anything".
type MailboxScope struct {
	UserID          string
	ProjectID       *string
	AppConfigID     *string
	ArtifactIndexID *string
	Topic           *string
	IsFlash         bool
}

type MailboxRepository interface {
	Insert(ctx context.Context, mbox models.Mailbox) (models.Mailbox, error)
	Get(ctx context.Context, scope MailboxScope) (models.Mailbox, error)
	// ExistsSubscription checks for a standing subscription on the artifact
	// scope regardless of topic filter. A nil artifactIndexID matches the
	// tool-level subscription.
	ExistsSubscription(ctx context.Context, userID, projectID, appConfigID string, artifactIndexID *string) (bool, error)
	UpdatePolicy(ctx context.Context, scope MailboxScope, title, url string, typ models.DeliveryType, freq models.Frequency) (models.Mailbox, error)
	Delete(ctx context.Context, scope MailboxScope) error
	// DeleteArtifactScoped removes every artifact-level mailbox for the
	// user/project/tool, used when a tool-level subscription supersedes them.
	DeleteArtifactScoped(ctx context.Context, userID, projectID, appConfigID string) error
	UpsertFlash(ctx context.Context, userID string) (models.Mailbox, error)

	// AppendQueue fans one notification id out to every matching non-flash
	// mailbox in a single atomic statement. Returns the number of mailboxes
	// reached.
	AppendQueue(ctx context.Context, projectID, appConfigID, artifactIndexID, topic, notificationID string) (int64, error)
	AppendQueueByID(ctx context.Context, mailboxID, notificationID string) error

	ListReadyDirect(ctx context.Context, modifiedBefore *time.Time) ([]models.Mailbox, error)
	ListReadyScheduled(ctx context.Context, now time.Time) ([]models.Mailbox, error)

	// DrainQueue atomically captures and empties the queue. Returns nil when
	// another sweep drained the mailbox first.
	DrainQueue(ctx context.Context, mailboxID string) ([]string, error)
	// DrainAndReschedule does the same while advancing next_scheduled; the
	// due guard makes concurrent sweeps fire each mailbox at most once.
	DrainAndReschedule(ctx context.Context, mailboxID string, due, next time.Time) ([]string, error)
}

type mailboxRepository struct {
	db *sql.DB
}

func NewMailboxRepository(db *sql.DB) MailboxRepository {
	return &mailboxRepository{db: db}
}

const mailboxColumns = `id, user_id, project_id, app_config_id, artifact_title, artifact_url,
		artifact_index_id, topic, is_flash, type, frequency_n, frequency_unit,
		next_scheduled, last_modified, queue`

func (r *mailboxRepository) Insert(ctx context.Context, mbox models.Mailbox) (models.Mailbox, error) {
	const query = `
		INSERT INTO forge.mailboxes
			(user_id, project_id, app_config_id, artifact_title, artifact_url,
			 artifact_index_id, topic, is_flash, type, frequency_n, frequency_unit)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING ` + mailboxColumns

	row := r.db.QueryRowContext(ctx, query,
		mbox.UserID, mbox.ProjectID, mbox.AppConfigID, mbox.ArtifactTitle, mbox.ArtifactURL,
		mbox.ArtifactIndexID, mbox.Topic, mbox.IsFlash, mbox.Type, mbox.Frequency.N, mbox.Frequency.Unit)

	created, err := scanMailbox(row)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return models.Mailbox{}, ErrDuplicateMailbox
		}
		return models.Mailbox{}, err
	}
	return created, nil
}

func (r *mailboxRepository) Get(ctx context.Context, scope MailboxScope) (models.Mailbox, error) {
	const query = `
		SELECT ` + mailboxColumns + `
		FROM forge.mailboxes
		WHERE user_id = $1
		  AND project_id IS NOT DISTINCT FROM $2
		  AND app_config_id IS NOT DISTINCT FROM $3
		  AND artifact_index_id IS NOT DISTINCT FROM $4
		  AND topic IS NOT DISTINCT FROM $5
		  AND is_flash = $6`

	row := r.db.QueryRowContext(ctx, query,
		scope.UserID, scope.ProjectID, scope.AppConfigID, scope.ArtifactIndexID, scope.Topic, scope.IsFlash)
	return scanMailbox(row)
}

func (r *mailboxRepository) ExistsSubscription(ctx context.Context, userID, projectID, appConfigID string, artifactIndexID *string) (bool, error) {
	const query = `
		SELECT EXISTS (
			SELECT 1 FROM forge.mailboxes
			WHERE user_id = $1 AND project_id = $2 AND app_config_id = $3
			  AND artifact_index_id IS NOT DISTINCT FROM $4
			  AND is_flash = FALSE
		)`

	var exists bool
	err := r.db.QueryRowContext(ctx, query, userID, projectID, appConfigID, artifactIndexID).Scan(&exists)
	return exists, err
}

func (r *mailboxRepository) UpdatePolicy(ctx context.Context, scope MailboxScope, title, url string, typ models.DeliveryType, freq models.Frequency) (models.Mailbox, error) {
	const query = `
		UPDATE forge.mailboxes
		SET artifact_title = $7, artifact_url = $8, type = $9, frequency_n = $10, frequency_unit = $11
		WHERE user_id = $1
		  AND project_id IS NOT DISTINCT FROM $2
		  AND app_config_id IS NOT DISTINCT FROM $3
		  AND artifact_index_id IS NOT DISTINCT FROM $4
		  AND topic IS NOT DISTINCT FROM $5
		  AND is_flash = $6
		RETURNING ` + mailboxColumns

	row := r.db.QueryRowContext(ctx, query,
		scope.UserID, scope.ProjectID, scope.AppConfigID, scope.ArtifactIndexID, scope.Topic, scope.IsFlash,
		title, url, typ, freq.N, freq.Unit)
	return scanMailbox(row)
}

func (r *mailboxRepository) Delete(ctx context.Context, scope MailboxScope) error {
	const query = `
		DELETE FROM forge.mailboxes
		WHERE user_id = $1
		  AND project_id IS NOT DISTINCT FROM $2
		  AND app_config_id IS NOT DISTINCT FROM $3
		  AND artifact_index_id IS NOT DISTINCT FROM $4
		  AND topic IS NOT DISTINCT FROM $5
		  AND is_flash = $6`

	_, err := r.db.ExecContext(ctx, query,
		scope.UserID, scope.ProjectID, scope.AppConfigID, scope.ArtifactIndexID, scope.Topic, scope.IsFlash)
	return err
}

func (r *mailboxRepository) DeleteArtifactScoped(ctx context.Context, userID, projectID, appConfigID string) error {
	const query = `
		DELETE FROM forge.mailboxes
		WHERE user_id = $1 AND project_id = $2 AND app_config_id = $3
		  AND artifact_index_id IS NOT NULL
		  AND is_flash = FALSE`

	_, err := r.db.ExecContext(ctx, query, userID, projectID, appConfigID)
	return err
}

func (r *mailboxRepository) UpsertFlash(ctx context.Context, userID string) (models.Mailbox, error) {
	flash := MailboxScope{UserID: userID, IsFlash: true}
	mbox, err := r.Get(ctx, flash)
	if err == nil {
		return mbox, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return models.Mailbox{}, err
	}

	mbox, err = r.Insert(ctx, models.Mailbox{
		UserID:  userID,
		IsFlash: true,
		Type:    models.DeliveryFlash,
		Frequency: models.Frequency{
			N:    1,
			Unit: models.UnitDay,
		},
	})
	if errors.Is(err, ErrDuplicateMailbox) {
		// Lost the creation race; the winner's row is what we want.
		return r.Get(ctx, flash)
	}
	return mbox, err
}

func (r *mailboxRepository) AppendQueue(ctx context.Context, projectID, appConfigID, artifactIndexID, topic, notificationID string) (int64, error) {
	const query = `
		UPDATE forge.mailboxes
		SET queue = array_append(queue, $1), last_modified = now()
		WHERE project_id = $2 AND app_config_id = $3
		  AND (artifact_index_id IS NULL OR artifact_index_id = $4)
		  AND (topic IS NULL OR topic = $5)
		  AND is_flash = FALSE`

	result, err := r.db.ExecContext(ctx, query, notificationID, projectID, appConfigID, artifactIndexID, topic)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (r *mailboxRepository) AppendQueueByID(ctx context.Context, mailboxID, notificationID string) error {
	const query = `
		UPDATE forge.mailboxes
		SET queue = array_append(queue, $1), last_modified = now()
		WHERE id = $2`

	result, err := r.db.ExecContext(ctx, query, notificationID, mailboxID)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (r *mailboxRepository) ListReadyDirect(ctx context.Context, modifiedBefore *time.Time) ([]models.Mailbox, error) {
	query := `
		SELECT ` + mailboxColumns + `
		FROM forge.mailboxes
		WHERE type = 'direct' AND queue <> '{}'`

	var args []interface{}
	if modifiedBefore != nil {
		query += " AND last_modified < $1"
		args = append(args, *modifiedBefore)
	}

	return r.list(ctx, query, args...)
}

func (r *mailboxRepository) ListReadyScheduled(ctx context.Context, now time.Time) ([]models.Mailbox, error) {
	const query = `
		SELECT ` + mailboxColumns + `
		FROM forge.mailboxes
		WHERE type IN ('digest', 'summary') AND next_scheduled < $1`

	return r.list(ctx, query, now)
}

func (r *mailboxRepository) DrainQueue(ctx context.Context, mailboxID string) ([]string, error) {
	const query = `
		UPDATE forge.mailboxes m
		SET queue = '{}'
		FROM (
			SELECT id, queue FROM forge.mailboxes
			WHERE id = $1 AND queue <> '{}'
			FOR UPDATE
		) prev
		WHERE m.id = prev.id
		RETURNING prev.queue`

	var drained pq.StringArray
	err := r.db.QueryRowContext(ctx, query, mailboxID).Scan(&drained)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return drained, nil
}

func (r *mailboxRepository) DrainAndReschedule(ctx context.Context, mailboxID string, due, next time.Time) ([]string, error) {
	const query = `
		UPDATE forge.mailboxes m
		SET queue = '{}', next_scheduled = $3
		FROM (
			SELECT id, queue FROM forge.mailboxes
			WHERE id = $1 AND next_scheduled < $2
			FOR UPDATE
		) prev
		WHERE m.id = prev.id
		RETURNING prev.queue`

	var drained pq.StringArray
	err := r.db.QueryRowContext(ctx, query, mailboxID, due, next).Scan(&drained)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return drained, nil
}

func (r *mailboxRepository) list(ctx context.Context, query string, args ...interface{}) ([]models.Mailbox, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var mailboxes []models.Mailbox
	for rows.Next() {
		mbox, err := scanMailbox(rows)
		if err != nil {
			return nil, err
		}
		mailboxes = append(mailboxes, mbox)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return mailboxes, nil
}

func scanMailbox(scanner interface {
	Scan(dest ...interface{}) error
}) (models.Mailbox, error) {
	var (
		mbox            models.Mailbox
		projectID       sql.NullString
		appConfigID     sql.NullString
		artifactIndexID sql.NullString
		topic           sql.NullString
		queue           pq.StringArray
	)

	if err := scanner.Scan(
		&mbox.ID,
		&mbox.UserID,
		&projectID,
		&appConfigID,
		&mbox.ArtifactTitle,
		&mbox.ArtifactURL,
		&artifactIndexID,
		&topic,
		&mbox.IsFlash,
		&mbox.Type,
		&mbox.Frequency.N,
		&mbox.Frequency.Unit,
		&mbox.NextScheduled,
		&mbox.LastModified,
		&queue,
	); err != nil {
		return models.Mailbox{}, err
	}

	if projectID.Valid {
		mbox.ProjectID = &projectID.String
	}
	if appConfigID.Valid {
		mbox.AppConfigID = &appConfigID.String
	}
	if artifactIndexID.Valid {
		mbox.ArtifactIndexID = &artifactIndexID.String
	}
	if topic.Valid {
		mbox.Topic = &topic.String
	}
	mbox.Queue = queue
	return mbox, nil
}
