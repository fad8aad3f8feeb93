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

type SubscriptionHandler struct {
	subscriptions *notification.SubscriptionService
	projects      repository.ProjectRepository
	artifacts     repository.ArtifactRepository
	logger        zerolog.Logger
}

func NewSubscriptionHandler(
	subscriptions *notification.SubscriptionService,
	projects repository.ProjectRepository,
	artifacts repository.ArtifactRepository,
	logger zerolog.Logger,
) *SubscriptionHandler {
	return &SubscriptionHandler{
		subscriptions: subscriptions,
		projects:      projects,
		artifacts:     artifacts,
		logger:        logger.With().Str("handler", "subscriptions").Logger(),
	}
}

type subscribeRequest struct {
	Project         string  `json:"project"`
	MountPoint      string  `json:"mount_point"`
	ArtifactIndexID *string `json:"artifact_index_id,omitempty"`
	Topic           *string `json:"topic,omitempty"`
	Type            string  `json:"type,omitempty"`
	Frequency       *struct {
		N    int    `json:"n"`
		Unit string `json:"unit"`
	} `json:"frequency,omitempty"`
}

func (h *SubscriptionHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	userID, ok := authz.UserIDFromRequest(r)
	if !ok {
		http.Error(w, "Missing user context", http.StatusUnauthorized)
		return
	}

	var req subscribeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	project, app, ok := h.resolveTool(w, r, req.Project, req.MountPoint)
	if !ok {
		return
	}

	typ := models.DeliveryDirect
	if req.Type != "" {
		typ = models.DeliveryType(req.Type)
	}
	freq := models.Frequency{N: 1, Unit: models.UnitDay}
	if req.Frequency != nil {
		freq = models.Frequency{N: req.Frequency.N, Unit: models.FrequencyUnit(req.Frequency.Unit)}
	}

	var artifact *models.Artifact
	if req.ArtifactIndexID != nil {
		a, err := h.artifacts.Get(r.Context(), *req.ArtifactIndexID)
		if err != nil {
			http.Error(w, "Artifact not found", http.StatusNotFound)
			return
		}
		artifact = &a
	}

	err := h.subscriptions.Subscribe(r.Context(), userID, project, app, artifact, req.Topic, typ, freq)
	if err != nil {
		h.logger.Error().Err(err).Str("user_id", userID).Msg("subscribe failed")
		http.Error(w, "Failed to subscribe: "+err.Error(), http.StatusBadRequest)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *SubscriptionHandler) Unsubscribe(w http.ResponseWriter, r *http.Request) {
	userID, ok := authz.UserIDFromRequest(r)
	if !ok {
		http.Error(w, "Missing user context", http.StatusUnauthorized)
		return
	}

	var req subscribeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	project, app, ok := h.resolveTool(w, r, req.Project, req.MountPoint)
	if !ok {
		return
	}

	err := h.subscriptions.Unsubscribe(r.Context(), userID, project.ID, app.ID, req.ArtifactIndexID, req.Topic)
	if err != nil {
		h.logger.Error().Err(err).Str("user_id", userID).Msg("unsubscribe failed")
		http.Error(w, "Failed to unsubscribe", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *SubscriptionHandler) Status(w http.ResponseWriter, r *http.Request) {
	userID, ok := authz.UserIDFromRequest(r)
	if !ok {
		http.Error(w, "Missing user context", http.StatusUnauthorized)
		return
	}

	project, app, ok := h.resolveTool(w, r, r.URL.Query().Get("project"), r.URL.Query().Get("mount_point"))
	if !ok {
		return
	}

	var artifactIndexID *string
	if raw := strings.TrimSpace(r.URL.Query().Get("artifact_index_id")); raw != "" {
		artifactIndexID = &raw
	}

	subscribed, err := h.subscriptions.Subscribed(r.Context(), userID, project.ID, app.ID, artifactIndexID)
	if err != nil {
		h.logger.Error().Err(err).Str("user_id", userID).Msg("subscription check failed")
		http.Error(w, "Failed to check subscription", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"subscribed": subscribed})
}

func (h *SubscriptionHandler) resolveTool(w http.ResponseWriter, r *http.Request, shortname, mountPoint string) (models.Project, models.AppConfig, bool) {
	project, err := h.projects.GetProjectByShortname(r.Context(), shortname)
	if err != nil {
		http.Error(w, "Project not found", http.StatusNotFound)
		return models.Project{}, models.AppConfig{}, false
	}
	app, err := h.projects.GetAppConfigByMount(r.Context(), project.ID, mountPoint)
	if err != nil {
		http.Error(w, "Tool not found", http.StatusNotFound)
		return models.Project{}, models.AppConfig{}, false
	}
	return project, app, true
}
