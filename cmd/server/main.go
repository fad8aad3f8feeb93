package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	h "github.com/gorilla/handlers"
	"github.com/openforge/forge-api/internal/authz"
	"github.com/openforge/forge-api/internal/config"
	"github.com/openforge/forge-api/internal/handlers"
	"github.com/openforge/forge-api/internal/middleware"
	"github.com/openforge/forge-api/internal/migration"
	"github.com/openforge/forge-api/internal/notification"
	"github.com/openforge/forge-api/internal/repository"
	"github.com/openforge/forge-api/internal/routes"
	"github.com/openforge/forge-api/internal/temporal"
	"github.com/openforge/forge-api/internal/temporal/activities"
	"github.com/openforge/forge-api/internal/temporal/workflows"
	"github.com/pressly/goose/v3"
	"github.com/rs/zerolog"

	_ "github.com/lib/pq" // PostgreSQL driver
	tc "go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
)

type application struct {
	config         *config.Config
	db             *sql.DB
	temporalClient tc.Client
	logger         zerolog.Logger
	notifications  *notification.Service
	dispatcher     *notification.Dispatcher
	subscriptions  *notification.SubscriptionService
}

func main() {
	// Set up structured, level-based logging.
	consoleWriter := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.Kitchen}
	logger := zerolog.New(consoleWriter).With().Timestamp().Logger()

	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	log.SetFlags(0)
	log.SetOutput(logger)

	temporalLogger := temporal.NewSDKLogger(logger)

	gooseAdapter := migration.NewGooseAdapter(logger)
	goose.SetLogger(gooseAdapter)

	// Load configuration.
	cfg := config.Load()

	// Initialize database connection.
	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to connect to the database")
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		logger.Fatal().Err(err).Msg("Failed to ping database")
	}

	// Run database migrations.
	migration.RunMigrations(cfg.DatabaseURL, logger)

	// Initialize Temporal client.
	temporalClient, err := tc.Dial(tc.Options{
		HostPort:  cfg.Temporal.HostPort,
		Namespace: cfg.Temporal.Namespace,
		Logger:    temporalLogger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("Unable to create Temporal client")
	}
	defer temporalClient.Close()

	// Create the application instance.
	app := &application{
		config:         cfg,
		db:             db,
		temporalClient: temporalClient,
		logger:         logger,
	}
	app.initNotifications(logger)

	// Start the Temporal worker in a separate goroutine.
	temporalWorker := app.startTemporalWorker(logger)

	// Kick off the singleton cron sweep that drains due mailboxes.
	scheduler := temporal.NewScheduler(temporalClient, logger)
	if err := scheduler.EnsureFireReadySweep(context.Background(), cfg.Notify.FireCron); err != nil {
		logger.Fatal().Err(err).Msg("Unable to start mailbox sweep workflow")
	}

	// Initialize the HTTP router and middleware.
	router := app.initRouter(logger)
	loggedRouter := middleware.LoggingMiddleware(app.logger)(router)
	corsHandler := h.CORS(
		h.AllowedOrigins([]string{"http://localhost:3000"}),
		h.AllowedMethods([]string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
		h.AllowedHeaders([]string{"Content-Type", "Authorization"}),
		h.AllowCredentials(),
	)(loggedRouter)

	// Start the HTTP server and handle graceful shutdown.
	app.startServer(corsHandler, temporalWorker, logger)

	logger.Info().Msg("Application terminated.")
}

// initNotifications wires the notification pipeline: composer, mailer,
// deliverer, dispatcher and the posting service.
func (app *application) initNotifications(logger zerolog.Logger) {
	notificationRepo := repository.NewNotificationRepository(app.db)
	mailboxRepo := repository.NewMailboxRepository(app.db)
	projectRepo := repository.NewProjectRepository(app.db)
	artifactRepo := repository.NewArtifactRepository(app.db)
	userRepo := repository.NewUserRepository(app.db)

	mailer, err := notification.NewSMTPMailer(app.config.Email, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure mailer")
	}

	access := authz.NewAccessChecker(projectRepo)
	composer := notification.NewComposer(userRepo, app.config.Email.NoReply, logger)
	deliverer := notification.NewDeliverer(userRepo, artifactRepo, access, mailer,
		app.config.Notify.BaseURL, app.config.Email.NoReply, logger)

	quiescent := time.Duration(app.config.Notify.QuiescentMinutes) * time.Minute
	app.dispatcher = notification.NewDispatcher(mailboxRepo, notificationRepo, deliverer, quiescent, logger)

	scheduler := temporal.NewScheduler(app.temporalClient, logger)
	app.notifications = notification.NewService(notificationRepo, mailboxRepo, artifactRepo, userRepo,
		composer, scheduler, app.config.Email.Domain, app.config.Notify.BaseURL, logger)
	app.subscriptions = notification.NewSubscriptionService(mailboxRepo, logger)
}

// initRouter sets up all HTTP handlers and returns the router.
func (app *application) initRouter(logger zerolog.Logger) http.Handler {
	projectRepo := repository.NewProjectRepository(app.db)
	artifactRepo := repository.NewArtifactRepository(app.db)
	userRepo := repository.NewUserRepository(app.db)

	authHandler := handlers.NewAuthHandler(app.db, app.config, logger)
	eventHandler := handlers.NewEventHandler(app.notifications, projectRepo, userRepo, logger)
	subscriptionHandler := handlers.NewSubscriptionHandler(app.subscriptions, projectRepo, artifactRepo, logger)
	notificationHandler := handlers.NewNotificationHandler(app.notifications, projectRepo, logger)
	feedHandler := handlers.NewFeedHandler(app.notifications, projectRepo, logger)
	adminHandler := handlers.NewAdminHandler(projectRepo, logger)

	return routes.NewRouter(authHandler, eventHandler, subscriptionHandler, notificationHandler, feedHandler, adminHandler)
}

func (app *application) startTemporalWorker(logger zerolog.Logger) worker.Worker {
	activityImpl := &activities.Activities{
		Dispatcher: app.dispatcher,
	}

	w := worker.New(app.temporalClient, temporal.TaskQueueName, worker.Options{})

	w.RegisterWorkflow(workflows.NotifyWorkflow)
	w.RegisterWorkflow(workflows.FireReadyWorkflow)
	w.RegisterActivity(activityImpl)

	// Start the worker in a goroutine so it doesn't block.
	go func() {
		logger.Info().Msg("Starting Temporal worker...")
		if err := w.Run(worker.InterruptCh()); err != nil {
			logger.Fatal().Err(err).Msg("Unable to start worker")
		}
	}()

	return w
}

// startServer launches the HTTP server and handles graceful shutdown.
func (app *application) startServer(handler http.Handler, temporalWorker worker.Worker, logger zerolog.Logger) {
	server := &http.Server{
		Addr:    ":" + app.config.ServerPort,
		Handler: handler,
	}

	// Channel to listen for server errors
	serverErrCh := make(chan error, 1)
	go func() {
		logger.Info().Msgf("Server listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrCh <- err
		}
	}()

	// Wait for an interrupt signal or a server error.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-quit:
		logger.Info().Msgf("Received signal: %s. Shutting down...", sig)
	case err := <-serverErrCh:
		logger.Error().Err(err).Msg("Server error occurred")
	}

	// Gracefully shut down the HTTP server.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("HTTP server shutdown error")
	} else {
		logger.Info().Msg("HTTP server shutdown complete.")
	}

	// Stop the Temporal worker.
	logger.Info().Msg("Stopping Temporal worker...")
	temporalWorker.Stop()
	logger.Info().Msg("Temporal worker stopped.")
}
