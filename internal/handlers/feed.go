package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/openforge/forge-api/internal/notification"
	"github.com/openforge/forge-api/internal/repository"
	"github.com/rs/zerolog"
)

// FeedHandler serves the notification stream of a tool as Atom or RSS. Feeds
// are public for public projects; private projects are not syndicated.
type FeedHandler struct {
	service  *notification.Service
	projects repository.ProjectRepository
	logger   zerolog.Logger
}

func NewFeedHandler(service *notification.Service, projects repository.ProjectRepository, logger zerolog.Logger) *FeedHandler {
	return &FeedHandler{
		service:  service,
		projects: projects,
		logger:   logger.With().Str("handler", "feed").Logger(),
	}
}

func (h *FeedHandler) Atom(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, "atom")
}

func (h *FeedHandler) RSS(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, "rss")
}

func (h *FeedHandler) serve(w http.ResponseWriter, r *http.Request, format string) {
	vars := mux.Vars(r)

	project, err := h.projects.GetProjectByShortname(r.Context(), vars["project"])
	if err != nil {
		http.Error(w, "Project not found", http.StatusNotFound)
		return
	}
	if project.Private {
		http.Error(w, "Feed not available for private projects", http.StatusForbidden)
		return
	}
	app, err := h.projects.GetAppConfigByMount(r.Context(), project.ID, vars["mount"])
	if err != nil {
		http.Error(w, "Tool not found", http.StatusNotFound)
		return
	}

	q := repository.FeedQuery{
		ProjectID:   project.ID,
		AppConfigID: app.ID,
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			q.Limit = parsed
		}
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("offset")); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			q.Offset = parsed
		}
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("since")); raw != "" {
		if parsed, err := time.Parse(time.RFC3339, raw); err == nil {
			q.Since = &parsed
		}
	}

	title := "Recent changes to " + project.Shortname + ":" + app.MountPoint
	feed, err := h.service.Feed(r.Context(), title, q)
	if err != nil {
		h.logger.Error().Err(err).Str("project", project.Shortname).Msg("failed to build feed")
		http.Error(w, "Failed to build feed", http.StatusInternalServerError)
		return
	}

	if format == "rss" {
		w.Header().Set("Content-Type", "application/rss+xml; charset=utf-8")
		if err := feed.WriteRss(w); err != nil {
			h.logger.Error().Err(err).Msg("failed to write rss feed")
		}
		return
	}
	w.Header().Set("Content-Type", "application/atom+xml; charset=utf-8")
	if err := feed.WriteAtom(w); err != nil {
		h.logger.Error().Err(err).Msg("failed to write atom feed")
	}
}
