package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/printapic/syncd/internal/config"
	"github.com/printapic/syncd/internal/handlers"
	custommw "github.com/printapic/syncd/internal/middleware"
	"github.com/printapic/syncd/internal/observability"
	"github.com/printapic/syncd/internal/remote"
	"github.com/printapic/syncd/internal/repository"
	"github.com/printapic/syncd/internal/services"
)

const serviceVersion = "1.0.0"

// @title Print A Pic Sync Daemon API
// @version 1.0
// @description Local companion daemon: merged photo library, background sync, AI transforms, and print orders.
// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name X-API-Key
func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize telemetry
	ctx := context.Background()
	telemetry, err := observability.Initialize(ctx, observability.NewConfig("picsyncd", serviceVersion))
	if err != nil {
		log.Printf("Warning: telemetry initialization failed: %v", err)
	}

	businessMetrics, err := observability.NewBusinessMetrics()
	if err != nil {
		log.Printf("Warning: business metrics unavailable: %v", err)
		businessMetrics = nil
	}
	httpMetrics, err := observability.NewHTTPMetrics()
	if err != nil {
		log.Printf("Warning: HTTP metrics unavailable: %v", err)
	}

	// Initialize local store
	var photoRepo repository.LocalPhotoRepo
	var cacheRepo repository.CacheRepo
	if cfg.UsePostgres() {
		log.Println("Using PostgreSQL local store")
		db, err := repository.NewPostgresDB(cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("Failed to initialize PostgreSQL local store: %v", err)
		}
		defer db.Close()
		photoRepo = repository.NewLocalPhotoRepositoryPostgres(db)
		cacheRepo = repository.NewCacheRepositoryPostgres(db)
	} else {
		log.Println("Using SQLite local store")
		db, err := repository.NewSQLiteDB(cfg.DatabasePath)
		if err != nil {
			log.Fatalf("Failed to initialize SQLite local store: %v", err)
		}
		defer db.Close()
		photoRepo = repository.NewLocalPhotoRepository(db)
		cacheRepo = repository.NewCacheRepository(db)
	}

	// Remote store client and realtime channel
	remoteClient := remote.NewClient(cfg.Remote)
	realtime := remote.NewRealtime(cfg.Remote.BaseURL, cfg.Remote.RealtimeURL, remoteClient.Token)

	// Initialize services
	photoCache := services.NewPhotoCache(cacheRepo, cfg.CacheTTL())
	reconciler := services.NewReconcileService()
	imageService := services.NewImageService()
	coordinator := services.NewSyncCoordinator(photoRepo, remoteClient, photoCache, businessMetrics, cfg.Sync)
	library := services.NewLibraryService(photoRepo, remoteClient, realtime, reconciler, photoCache, imageService, coordinator, businessMetrics)
	processing := services.NewProcessingService(remoteClient, businessMetrics, cfg.Processing)
	orders := services.NewOrderService(remoteClient, businessMetrics)

	remoteClient.OnAuthChange(coordinator.HandleAuthChange)

	// Establish the remote session without blocking startup; the daemon is
	// useful offline and the coordinator catches up once signed in.
	daemonCtx, stopDaemon := context.WithCancel(ctx)
	defer stopDaemon()

	go func() {
		if cfg.Remote.Identity == "" && cfg.Remote.AuthToken == "" {
			log.Println("No remote credentials configured; running local-only")
			return
		}
		if err := remoteClient.Authenticate(daemonCtx, cfg.Remote.Identity, cfg.Remote.Password); err != nil {
			observability.Errorf("remote sign-in failed: %v", err)
			return
		}
		observability.WithField("user_id", remoteClient.UserID()).Info("remote session established")

		if sub, err := library.WatchEdits(daemonCtx); err != nil {
			observability.Warnf("realtime edits watch unavailable: %v", err)
		} else {
			observability.WithField("subscription_id", sub.ID).Info("watching edit completions")
		}
	}()

	// Run the sync coordinator
	go coordinator.Run(daemonCtx)

	// Initialize handlers
	healthHandler := handlers.NewHealthHandler()
	libraryHandler := handlers.NewLibraryHandler(library)
	syncHandler := handlers.NewSyncHandler(coordinator, photoRepo)
	processingHandler := handlers.NewProcessingHandler(processing, photoRepo)
	orderHandler := handlers.NewOrderHandler(orders)

	// Setup router
	r := chi.NewRouter()

	// Middleware
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(observability.TracingMiddleware("picsyncd"))
	if httpMetrics != nil {
		r.Use(observability.MetricsMiddleware(httpMetrics))
	}
	r.Use(custommw.APIKeyAuth(cfg.Security.APIKey, cfg.Security.APIKeyHash, cfg.Security.APIKeyHeader))

	// Routes
	r.Get("/health", healthHandler.HealthCheck)
	r.Get("/api/health", healthHandler.HealthCheck)

	r.Route("/api", func(r chi.Router) {
		r.Get("/photos", libraryHandler.List)
		r.Post("/photos", libraryHandler.Capture)
		r.Delete("/photos/{id}", libraryHandler.Delete)
		r.Post("/photos/{id}/transform", processingHandler.Transform)
		r.Get("/edits/{id}", processingHandler.EditStatus)
		r.Get("/sync", syncHandler.Status)
		r.Post("/sync", syncHandler.Trigger)
		r.Get("/tokens", orderHandler.Balance)
		r.Post("/orders", orderHandler.Create)
	})

	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	// Create server
	srv := &http.Server{
		Addr:         cfg.ServerAddress,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second, // Edit polling with wait=true holds the connection
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Printf("picsyncd starting on %s", cfg.ServerAddress)
		log.Printf("Remote store: %s", cfg.Remote.BaseURL)

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down...")
	stopDaemon()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	if telemetry != nil {
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			log.Printf("Telemetry shutdown error: %v", err)
		}
	}

	log.Println("Daemon stopped")
}
