package models

import "time"

// Project is the owning container for tools and artifacts. Shortname is the
// URL-safe identifier used in subject prefixes and links.
type Project struct {
	ID                    string    `json:"id" db:"id"`
	NeighborhoodID        string    `json:"neighborhood_id" db:"neighborhood_id"`
	Shortname             string    `json:"shortname" db:"shortname"`
	Name                  string    `json:"name" db:"name"`
	Private               bool      `json:"private" db:"private"`
	NotificationsDisabled bool      `json:"notifications_disabled" db:"notifications_disabled"`
	CreatedAt             time.Time `json:"created_at" db:"created_at"`
}

// AppConfig is one mounted tool instance within a project (wiki, tickets,
// blog, ...). MountPoint is the path segment the tool is mounted at.
type AppConfig struct {
	ID         string `json:"id" db:"id"`
	ProjectID  string `json:"project_id" db:"project_id"`
	ToolName   string `json:"tool_name" db:"tool_name"`
	MountPoint string `json:"mount_point" db:"mount_point"`
}
