package routes

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/openforge/forge-api/internal/authz"
	"github.com/openforge/forge-api/internal/handlers"
	"github.com/openforge/forge-api/internal/models"
)

// NewRouter sets up the API routes.
func NewRouter(
	auth *handlers.AuthHandler,
	events *handlers.EventHandler,
	subscriptions *handlers.SubscriptionHandler,
	notifications *handlers.NotificationHandler,
	feeds *handlers.FeedHandler,
	admin *handlers.AdminHandler,
) *mux.Router {
	router := mux.NewRouter()

	// Health check route
	router.HandleFunc("/health", handlers.HealthCheck).Methods(http.MethodGet)

	// Public auth endpoints
	router.HandleFunc("/api/signup", auth.SignUp).Methods(http.MethodPost)
	router.HandleFunc("/api/login", auth.Login).Methods(http.MethodPost)

	// Public syndication feeds
	router.HandleFunc("/p/{project}/{mount}/feed.atom", feeds.Atom).Methods(http.MethodGet)
	router.HandleFunc("/p/{project}/{mount}/feed.rss", feeds.RSS).Methods(http.MethodGet)

	// Authenticated API
	api := router.PathPrefix("/api").Subrouter()
	api.Use(auth.JWTMiddleware)

	api.HandleFunc("/events", events.Post).Methods(http.MethodPost)

	api.HandleFunc("/subscriptions", subscriptions.Subscribe).Methods(http.MethodPut)
	api.HandleFunc("/subscriptions", subscriptions.Unsubscribe).Methods(http.MethodDelete)
	api.HandleFunc("/subscriptions", subscriptions.Status).Methods(http.MethodGet)

	api.HandleFunc("/notifications", notifications.List).Methods(http.MethodGet)
	api.HandleFunc("/notifications/flash", notifications.Flash).Methods(http.MethodGet)

	// Site admin
	api.Handle("/projects/{project}/notifications",
		authz.RequireRoleHandler(models.RoleAdmin, http.HandlerFunc(admin.SetNotificationsDisabled))).
		Methods(http.MethodPut)

	return router
}
