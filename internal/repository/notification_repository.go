package repository

import (
	"context"
	"database/sql"
	"strconv"
	"time"

	"github.com/lib/pq"
	"github.com/openforge/forge-api/internal/models"
)

// FeedQuery is an arbitrary scope filter over the notification stream, with
// optional time bounds and paging.
type FeedQuery struct {
	ProjectID   string
	AppConfigID string
	AuthorID    string
	RefID       string
	Since       *time.Time
	Until       *time.Time
	Offset      int
	Limit       int
}

type NotificationRepository interface {
	Create(ctx context.Context, n models.Notification) (models.Notification, error)
	Get(ctx context.Context, id string) (models.Notification, error)
	GetMany(ctx context.Context, ids []string) ([]models.Notification, error)
	ListForFeed(ctx context.Context, q FeedQuery) ([]models.Notification, error)
}

type notificationRepository struct {
	db *sql.DB
}

func NewNotificationRepository(db *sql.DB) NotificationRepository {
	return &notificationRepository{db: db}
}

const notificationColumns = `id, neighborhood_id, project_id, app_config_id, tool_name, ref_id, topic, unique_id,
		in_reply_to, from_address, reply_to_address, subject, text, link, author_id, pubdate`

func (r *notificationRepository) Create(ctx context.Context, n models.Notification) (models.Notification, error) {
	const query = `
		INSERT INTO forge.notifications
			(id, neighborhood_id, project_id, app_config_id, tool_name, ref_id, topic, unique_id,
			 in_reply_to, from_address, reply_to_address, subject, text, link, author_id, pubdate)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		RETURNING ` + notificationColumns

	var authorID interface{}
	if n.AuthorID != "" {
		authorID = n.AuthorID
	}

	row := r.db.QueryRowContext(ctx, query,
		n.ID, n.NeighborhoodID, n.ProjectID, n.AppConfigID, n.ToolName, n.RefID, n.Topic, n.UniqueID,
		n.InReplyTo, n.FromAddress, n.ReplyToAddress, n.Subject, n.Text, n.Link, authorID, n.PubDate)
	return scanNotification(row)
}

func (r *notificationRepository) Get(ctx context.Context, id string) (models.Notification, error) {
	const query = `
		SELECT ` + notificationColumns + `
		FROM forge.notifications
		WHERE id = $1`
	row := r.db.QueryRowContext(ctx, query, id)
	return scanNotification(row)
}

func (r *notificationRepository) GetMany(ctx context.Context, ids []string) ([]models.Notification, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	const query = `
		SELECT ` + notificationColumns + `
		FROM forge.notifications
		WHERE id = ANY($1)`

	rows, err := r.db.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var notifications []models.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		notifications = append(notifications, n)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return notifications, nil
}

func (r *notificationRepository) ListForFeed(ctx context.Context, q FeedQuery) ([]models.Notification, error) {
	query := `
		SELECT ` + notificationColumns + `
		FROM forge.notifications
		WHERE TRUE`

	var args []interface{}
	arg := func(v interface{}) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}

	if q.ProjectID != "" {
		query += " AND project_id = " + arg(q.ProjectID)
	}
	if q.AppConfigID != "" {
		query += " AND app_config_id = " + arg(q.AppConfigID)
	}
	if q.AuthorID != "" {
		query += " AND author_id = " + arg(q.AuthorID)
	}
	if q.RefID != "" {
		query += " AND ref_id = " + arg(q.RefID)
	}
	if q.Since != nil {
		query += " AND pubdate >= " + arg(*q.Since)
	}
	if q.Until != nil {
		query += " AND pubdate <= " + arg(*q.Until)
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 10
	}
	query += " ORDER BY pubdate DESC LIMIT " + arg(limit)
	if q.Offset > 0 {
		query += " OFFSET " + arg(q.Offset)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var notifications []models.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		notifications = append(notifications, n)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return notifications, nil
}

func scanNotification(scanner interface {
	Scan(dest ...interface{}) error
}) (models.Notification, error) {
	var (
		n        models.Notification
		authorID sql.NullString
	)

	if err := scanner.Scan(
		&n.ID,
		&n.NeighborhoodID,
		&n.ProjectID,
		&n.AppConfigID,
		&n.ToolName,
		&n.RefID,
		&n.Topic,
		&n.UniqueID,
		&n.InReplyTo,
		&n.FromAddress,
		&n.ReplyToAddress,
		&n.Subject,
		&n.Text,
		&n.Link,
		&authorID,
		&n.PubDate,
	); err != nil {
		return models.Notification{}, err
	}

	if authorID.Valid {
		n.AuthorID = authorID.String
	}
	return n, nil
}
