package models

import "time"

// Topic values carried on notifications. The vocabulary is open to tool apps;
// TopicMessage is the only value with special composition and delivery rules,
// because discussion messages must stay individually replyable.
const (
	TopicMessage  = "message"
	TopicMetadata = "metadata"
)

// Notification is one immutable record of a content-change event, formatted
// for eventual email delivery. ID doubles as the email Message-ID. Rows are
// never updated after creation.
type Notification struct {
	ID             string `json:"id" db:"id"`
	NeighborhoodID string `json:"neighborhood_id" db:"neighborhood_id"`
	ProjectID      string `json:"project_id" db:"project_id"`
	AppConfigID    string `json:"app_config_id" db:"app_config_id"`
	ToolName       string `json:"tool_name" db:"tool_name"`
	RefID          string `json:"ref_id" db:"ref_id"` // artifact index id
	Topic          string `json:"topic" db:"topic"`
	UniqueID       string `json:"unique_id" db:"unique_id"` // feed dedup nonce

	InReplyTo      string    `json:"in_reply_to,omitempty" db:"in_reply_to"`
	FromAddress    string    `json:"from_address,omitempty" db:"from_address"`
	ReplyToAddress string    `json:"reply_to_address" db:"reply_to_address"`
	Subject        string    `json:"subject" db:"subject"`
	Text           string    `json:"text" db:"text"`
	Link           string    `json:"link" db:"link"`
	AuthorID       string    `json:"author_id,omitempty" db:"author_id"`
	PubDate        time.Time `json:"pubdate" db:"pubdate"`
}
