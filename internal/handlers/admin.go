package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/openforge/forge-api/internal/repository"
	"github.com/rs/zerolog"
)

// AdminHandler exposes the site-admin kill switch for a project's
// notifications. Posting while disabled is a silent no-op, useful for
// quarantining spammy projects without touching their content.
type AdminHandler struct {
	projects repository.ProjectRepository
	logger   zerolog.Logger
}

func NewAdminHandler(projects repository.ProjectRepository, logger zerolog.Logger) *AdminHandler {
	return &AdminHandler{
		projects: projects,
		logger:   logger.With().Str("handler", "admin").Logger(),
	}
}

type notificationsToggleRequest struct {
	Disabled bool `json:"disabled"`
}

func (h *AdminHandler) SetNotificationsDisabled(w http.ResponseWriter, r *http.Request) {
	var req notificationsToggleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	shortname := mux.Vars(r)["project"]
	project, err := h.projects.GetProjectByShortname(r.Context(), shortname)
	if err != nil {
		http.Error(w, "Project not found", http.StatusNotFound)
		return
	}

	if err := h.projects.SetNotificationsDisabled(r.Context(), project.ID, req.Disabled); err != nil {
		h.logger.Error().Err(err).Str("project", shortname).Msg("failed to toggle notifications")
		http.Error(w, "Failed to update project", http.StatusInternalServerError)
		return
	}

	h.logger.Info().Str("project", shortname).Bool("disabled", req.Disabled).Msg("notifications toggled")
	writeJSON(w, http.StatusOK, map[string]bool{"disabled": req.Disabled})
}
