package app

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"careline/internal/api"
	"careline/internal/auth"
	"careline/internal/config"
	"careline/internal/database"
	"careline/internal/notifier"
	"careline/internal/presence"
	"careline/internal/websocket"
	pkgdatabase "careline/pkg/database"
)

// Application wires and coordinates all system components.
type Application struct {
	config     *config.Config
	dbManager  *database.Manager
	registry   *websocket.Registry
	tracker    *presence.Tracker
	notifier   *notifier.Notifier
	authSvc    *auth.Service
	apiServer  *api.Server
	httpServer *http.Server
}

// NewApplication initializes components in dependency order:
// database → auth → registry → presence → notifier → API → HTTP.
func NewApplication(cfg *config.Config) (*Application, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	dbConfig := &pkgdatabase.Config{
		DatabasePath:    cfg.Database.Path,
		MaxConnections:  10,
		ConnMaxLifetime: cfg.Database.Timeout,
		ConnMaxIdleTime: cfg.Database.Timeout / 3,
		MigrationsPath:  "migrations",
	}

	dbManager, err := database.NewManager(dbConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database manager: %w", err)
	}

	migrationManager := pkgdatabase.NewMigrationManager(dbManager.GetDB(), dbConfig.MigrationsPath)
	if err := migrationManager.ApplyMigrations(); err != nil {
		_ = dbManager.Close()
		return nil, fmt.Errorf("failed to apply database migrations: %w", err)
	}
	log.Println("Database migrations applied successfully")

	authSvc := auth.NewService(cfg.Auth.TokenSecret, cfg.Auth.TokenTTL)

	registry := websocket.NewRegistry()
	tracker := presence.NewTracker(registry)
	eventNotifier := notifier.NewNotifier(registry)

	apiServer := api.NewServer(dbManager, eventNotifier, tracker, authSvc, registry)
	wsHandler := websocket.NewHandler(registry, tracker, cfg.WebSocket)

	mux := http.NewServeMux()
	mux.Handle("/api/", apiServer)
	mux.Handle("/health", apiServer)
	mux.HandleFunc("/ws", wsHandler.HandleWebSocket)
	mux.HandleFunc("/ws/", wsHandler.HandleWebSocket)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler:      mux,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	return &Application{
		config:     cfg,
		dbManager:  dbManager,
		registry:   registry,
		tracker:    tracker,
		notifier:   eventNotifier,
		authSvc:    authSvc,
		apiServer:  apiServer,
		httpServer: httpServer,
	}, nil
}

// Start launches the HTTP server and verifies it came up.
func (app *Application) Start(ctx context.Context) error {
	log.Printf("Starting careline on %s", app.httpServer.Addr)

	serverErrCh := make(chan error, 1)
	go func() {
		if err := app.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrCh <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	select {
	case err := <-serverErrCh:
		return err
	case <-time.After(100 * time.Millisecond):
		log.Printf("careline started successfully")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop shuts components down in reverse dependency order: HTTP first so
// no new work arrives, then the database.
func (app *Application) Stop(ctx context.Context) error {
	log.Printf("Shutting down careline")

	if err := app.httpServer.Shutdown(ctx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}

	if err := app.dbManager.Close(); err != nil {
		log.Printf("Database shutdown error: %v", err)
	}

	log.Printf("careline shutdown complete")
	return nil
}

// GetAddr returns the server address for external connections.
func (app *Application) GetAddr() string {
	return app.httpServer.Addr
}
