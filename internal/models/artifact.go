package models

// Artifact is the indexed snapshot of a tool artifact (wiki page, ticket,
// discussion thread, ...) that notifications reference. IndexID is the
// globally unique artifact reference id; EmailAddress, when set, is the
// tool-configured reply address for the artifact.
type Artifact struct {
	IndexID      string `json:"index_id" db:"index_id"`
	ProjectID    string `json:"project_id" db:"project_id"`
	AppConfigID  string `json:"app_config_id" db:"app_config_id"`
	Type         string `json:"type" db:"type"` // e.g. "ticket", "wiki_page"
	Title        string `json:"title" db:"title"`
	URL          string `json:"url" db:"url"`
	EmailAddress string `json:"email_address,omitempty" db:"email_address"`
}

// Reply is the discussion post payload supplied by tool apps when posting a
// "message" topic event.
type Reply struct {
	ID       string `json:"id"`
	Subject  string `json:"subject"`
	Text     string `json:"text"`
	ParentID string `json:"parent_id,omitempty"`
	AuthorID string `json:"author_id,omitempty"` // empty for anonymous
}

// FileInfo describes an attachment on a reply.
type FileInfo struct {
	Filename    string `json:"filename"`
	Size        int64  `json:"size"`
	ContentType string `json:"content_type"`
}
