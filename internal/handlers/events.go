package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/openforge/forge-api/internal/authz"
	"github.com/openforge/forge-api/internal/models"
	"github.com/openforge/forge-api/internal/notification"
	"github.com/openforge/forge-api/internal/repository"
	"github.com/rs/zerolog"
)

// EventHandler accepts content-change events from tools and turns them into
// notifications.
type EventHandler struct {
	service  *notification.Service
	projects repository.ProjectRepository
	users    repository.UserRepository
	logger   zerolog.Logger
}

func NewEventHandler(service *notification.Service, projects repository.ProjectRepository, users repository.UserRepository, logger zerolog.Logger) *EventHandler {
	return &EventHandler{
		service:  service,
		projects: projects,
		users:    users,
		logger:   logger.With().Str("handler", "events").Logger(),
	}
}

type artifactPayload struct {
	IndexID      string `json:"index_id"`
	Type         string `json:"type"`
	Title        string `json:"title"`
	URL          string `json:"url"`
	EmailAddress string `json:"email_address"`
}

type replyPayload struct {
	ID       string `json:"id"`
	Subject  string `json:"subject"`
	Text     string `json:"text"`
	ParentID string `json:"parent_id"`
}

type filePayload struct {
	Filename    string `json:"filename"`
	Size        int64  `json:"size"`
	ContentType string `json:"content_type"`
}

type postEventRequest struct {
	Project    string          `json:"project"`
	MountPoint string          `json:"mount_point"`
	Artifact   artifactPayload `json:"artifact"`
	Topic      string          `json:"topic"`
	Subject    string          `json:"subject"`
	Text       string          `json:"text"`
	Link       string          `json:"link"`
	Reply      *replyPayload   `json:"reply,omitempty"`
	File       *filePayload    `json:"file,omitempty"`
	// ToUser routes the notification to one user's flash mailbox instead of
	// fanning out to subscribers.
	ToUser string `json:"to_user,omitempty"`
}

func (h *EventHandler) Post(w http.ResponseWriter, r *http.Request) {
	userID, ok := authz.UserIDFromRequest(r)
	if !ok {
		http.Error(w, "Missing user context", http.StatusUnauthorized)
		return
	}

	var req postEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Artifact.IndexID) == "" {
		http.Error(w, "Artifact index_id is required", http.StatusBadRequest)
		return
	}

	scope, artifact, status := h.resolveScope(w, r, userID, req)
	if status != 0 {
		return
	}

	ev := notification.Event{
		Topic:   req.Topic,
		Subject: req.Subject,
		Text:    req.Text,
		Link:    req.Link,
	}
	if req.Reply != nil {
		ev.Reply = &models.Reply{
			ID:       req.Reply.ID,
			Subject:  req.Reply.Subject,
			Text:     req.Reply.Text,
			ParentID: req.Reply.ParentID,
			AuthorID: userID,
		}
	}
	if req.File != nil {
		ev.File = &models.FileInfo{
			Filename:    req.File.Filename,
			Size:        req.File.Size,
			ContentType: req.File.ContentType,
		}
	}

	var (
		notif *models.Notification
		err   error
	)
	if req.ToUser != "" {
		notif, err = h.service.PostUser(r.Context(), scope, req.ToUser, artifact, ev)
	} else {
		notif, err = h.service.Post(r.Context(), scope, artifact, ev)
	}
	if err != nil {
		h.logger.Error().Err(err).Str("artifact", artifact.IndexID).Msg("failed to post notification")
		http.Error(w, "Failed to post notification", http.StatusInternalServerError)
		return
	}
	if notif == nil {
		// Project has notifications switched off.
		writeJSON(w, http.StatusAccepted, map[string]interface{}{"suppressed": true})
		return
	}
	writeJSON(w, http.StatusAccepted, notif)
}

// resolveScope loads and authorizes the project/tool context for the event.
// On failure it writes the error response and returns a non-zero status.
func (h *EventHandler) resolveScope(w http.ResponseWriter, r *http.Request, userID string, req postEventRequest) (notification.Scope, models.Artifact, int) {
	user, err := h.users.GetUserByID(r.Context(), userID)
	if err != nil {
		http.Error(w, "Unknown user", http.StatusUnauthorized)
		return notification.Scope{}, models.Artifact{}, http.StatusUnauthorized
	}

	project, err := h.projects.GetProjectByShortname(r.Context(), req.Project)
	if err != nil {
		http.Error(w, "Project not found", http.StatusNotFound)
		return notification.Scope{}, models.Artifact{}, http.StatusNotFound
	}

	member, err := h.projects.IsMember(r.Context(), project.ID, userID)
	if err != nil {
		http.Error(w, "Failed to check membership", http.StatusInternalServerError)
		return notification.Scope{}, models.Artifact{}, http.StatusInternalServerError
	}
	if !member {
		http.Error(w, "Not a project member", http.StatusForbidden)
		return notification.Scope{}, models.Artifact{}, http.StatusForbidden
	}

	app, err := h.projects.GetAppConfigByMount(r.Context(), project.ID, req.MountPoint)
	if err != nil {
		http.Error(w, "Tool not found", http.StatusNotFound)
		return notification.Scope{}, models.Artifact{}, http.StatusNotFound
	}

	artifact := models.Artifact{
		IndexID:      req.Artifact.IndexID,
		ProjectID:    project.ID,
		AppConfigID:  app.ID,
		Type:         req.Artifact.Type,
		Title:        req.Artifact.Title,
		URL:          req.Artifact.URL,
		EmailAddress: req.Artifact.EmailAddress,
	}
	return notification.Scope{User: user, Project: project, App: app}, artifact, 0
}
