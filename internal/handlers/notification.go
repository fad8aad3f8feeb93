package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/openforge/forge-api/internal/authz"
	"github.com/openforge/forge-api/internal/notification"
	"github.com/openforge/forge-api/internal/repository"
	"github.com/rs/zerolog"
)

type NotificationHandler struct {
	service  *notification.Service
	projects repository.ProjectRepository
	logger   zerolog.Logger
}

func NewNotificationHandler(service *notification.Service, projects repository.ProjectRepository, logger zerolog.Logger) *NotificationHandler {
	return &NotificationHandler{
		service:  service,
		projects: projects,
		logger:   logger.With().Str("handler", "notification").Logger(),
	}
}

// List returns recent notifications for a project tool.
func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	project, err := h.projects.GetProjectByShortname(r.Context(), r.URL.Query().Get("project"))
	if err != nil {
		http.Error(w, "Project not found", http.StatusNotFound)
		return
	}

	q := repository.FeedQuery{ProjectID: project.ID}
	if mount := strings.TrimSpace(r.URL.Query().Get("mount_point")); mount != "" {
		app, err := h.projects.GetAppConfigByMount(r.Context(), project.ID, mount)
		if err != nil {
			http.Error(w, "Tool not found", http.StatusNotFound)
			return
		}
		q.AppConfigID = app.ID
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			q.Limit = parsed
		}
	}

	notifications, err := h.service.Recent(r.Context(), q)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to list notifications")
		http.Error(w, "Failed to list notifications", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"notifications": notifications,
	})
}

// Flash returns and clears the caller's flash mailbox.
func (h *NotificationHandler) Flash(w http.ResponseWriter, r *http.Request) {
	userID, ok := authz.UserIDFromRequest(r)
	if !ok {
		http.Error(w, "Missing user context", http.StatusUnauthorized)
		return
	}

	notifications, err := h.service.Flash(r.Context(), userID)
	if err != nil {
		h.logger.Error().Err(err).Str("user_id", userID).Msg("failed to read flash mailbox")
		http.Error(w, "Failed to read flash notifications", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"notifications": notifications,
	})
}
