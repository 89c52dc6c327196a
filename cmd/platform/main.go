package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/meridian-mutual/platform/internal/access"
	"github.com/meridian-mutual/platform/internal/adapters/policyadmin"
	"github.com/meridian-mutual/platform/internal/adjuster"
	"github.com/meridian-mutual/platform/internal/audit"
	claimapi "github.com/meridian-mutual/platform/internal/claim/api"
	claimdomain "github.com/meridian-mutual/platform/internal/claim/domain"
	"github.com/meridian-mutual/platform/internal/claim/engine"
	claiminfra "github.com/meridian-mutual/platform/internal/claim/infrastructure"
	"github.com/meridian-mutual/platform/internal/policy"
	"github.com/meridian-mutual/platform/internal/shared/auth"
	"github.com/meridian-mutual/platform/internal/shared/config"
	"github.com/meridian-mutual/platform/internal/shared/database"
	"github.com/meridian-mutual/platform/internal/shared/events"
	"github.com/meridian-mutual/platform/internal/shared/metrics"
	secmiddleware "github.com/meridian-mutual/platform/internal/shared/middleware"
)

// App holds all application dependencies
type App struct {
	Config    *config.Config
	DB        *database.DB
	Bus       *events.Bus
	LegacyPAS *policyadmin.Adapter
}

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	app := &App{Config: cfg}

	// Initialize database (optional - fall back to in-memory stores)
	db, err := database.New(ctx, cfg.Database)
	if err != nil {
		fmt.Printf("Warning: Database not available: %v\n", err)
		fmt.Println("Running with in-memory stores...")
	} else {
		app.DB = db
		defer db.Close()

		// Run migrations
		if err := database.Migrate(ctx, db.Pool); err != nil {
			fmt.Printf("Warning: Migration failed: %v\n", err)
		}
	}

	// Initialize event bus with EventStoreDB (optional - skip if not available)
	bus, err := events.NewBus(ctx, cfg.EventStore)
	if err != nil {
		fmt.Printf("Warning: EventStoreDB not available: %v\n", err)
		fmt.Println("Running without event streaming...")
	} else {
		app.Bus = bus
		defer bus.Close()
		fmt.Println("EventStoreDB Event Bus initialized")
	}

	// Legacy policy administration system (optional)
	if cfg.LegacyPAS.Enabled {
		legacy := policyadmin.New(cfg.LegacyPAS)
		if err := legacy.Start(ctx); err != nil {
			fmt.Printf("Warning: Legacy PAS not available: %v\n", err)
		} else {
			app.LegacyPAS = legacy
			defer legacy.Stop()
			fmt.Println("Legacy policy admin adapter connected")
		}
	}

	// Storage and access control: PostgreSQL when available, in-memory
	// otherwise so the platform stays usable for local development.
	var (
		claimRepo  claimdomain.Repository
		policyRepo policy.Repository
		resolver   access.Resolver
		adjusters  adjuster.Directory
		auditStore audit.Store
	)

	if app.DB != nil {
		claimRepo = claiminfra.NewPostgresRepository(app.DB.Pool)
		policyRepo = policy.NewPostgresRepository(app.DB.Pool)
		resolver = access.NewPostgresResolver(app.DB.Pool)
		adjusters = adjuster.NewPostgresDirectory(app.DB.Pool)
		auditStore = audit.NewPostgresStore(app.DB.Pool)
	} else {
		claimRepo = claiminfra.NewMemoryRepository()
		policyRepo = policy.NewMemoryRepository()
		resolver = access.NewStaticResolver()
		adjusters = adjuster.NewMemoryDirectory()
		auditStore = audit.NewMemoryStore()
	}

	var legacyFallback policy.CoverageFallback
	if app.LegacyPAS != nil {
		legacyFallback = app.LegacyPAS
	}
	policyService := policy.NewService(policyRepo, legacyFallback)

	var eventBus events.EventBus
	if app.Bus != nil {
		eventBus = app.Bus
	}
	workflowEngine := engine.New(claimRepo, resolver, adjusters, policyService, eventBus)

	// Audit recorder consumes claim events from the bus
	if app.Bus != nil {
		recorder := audit.NewRecorder(app.Bus, auditStore)
		if err := recorder.Start(ctx); err != nil {
			fmt.Printf("Warning: Audit recorder failed to start: %v\n", err)
		} else {
			fmt.Println("Audit recorder started")
		}
	}

	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(secmiddleware.SecurityHeaders)
	r.Use(secmiddleware.InputSanitizer)
	r.Use(metrics.Middleware)
	r.Use(corsMiddleware)

	if cfg.RateLimit.Enabled {
		limiter := secmiddleware.NewIPRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)
		r.Use(limiter.Middleware)
	}

	// Health checks (unauthenticated)
	r.Get("/health", healthHandler(app))
	r.Get("/ready", readyHandler(app))
	r.Handle("/metrics", metrics.Handler())

	// API info
	r.Get("/", infoHandler)

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(auth.Middleware(cfg.Auth))

		claimHandler := claimapi.NewHandler(workflowEngine, claimRepo)
		r.Mount("/claims", claimHandler.Routes())

		policyHandler := policy.NewHandler(policyRepo, resolver)
		r.Mount("/policies", policyHandler.Routes())

		adjusterHandler := adjuster.NewHandler(adjusters, resolver)
		r.Mount("/adjusters", adjusterHandler.Routes())

		auditHandler := audit.NewHandler(auditStore, resolver)
		r.Mount("/audit", auditHandler.Routes())
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	done := make(chan bool)
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		fmt.Println("\nShutting down server...")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			fmt.Printf("Server shutdown error: %v\n", err)
		}
		close(done)
	}()

	fmt.Println("============================================")
	fmt.Println("Meridian Mutual Claims Platform")
	fmt.Println("============================================")
	fmt.Printf("Environment:  %s\n", cfg.Server.Env)
	fmt.Printf("Server:       http://localhost:%d\n", cfg.Server.Port)
	fmt.Printf("API:          http://localhost:%d/api/v1\n", cfg.Server.Port)
	fmt.Printf("Health:       http://localhost:%d/health\n", cfg.Server.Port)
	fmt.Printf("EventStore:   %s:%d\n", cfg.EventStore.Host, cfg.EventStore.Port)
	fmt.Printf("Legacy PAS:   enabled=%v\n", cfg.LegacyPAS.Enabled)
	fmt.Println("============================================")

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}

	<-done
	fmt.Println("Server stopped")
}

func infoHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"name":    "Meridian Mutual Claims Platform",
		"version": "0.1.0",
		"docs":    "/api/v1",
	})
}

func healthHandler(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{
			"status": "healthy",
		})
	}
}

func readyHandler(app *App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := map[string]string{
			"server": "ready",
		}

		// Check database
		if app.DB != nil {
			if err := app.DB.Health(r.Context()); err != nil {
				checks["database"] = "not ready: " + err.Error()
			} else {
				checks["database"] = "ready"
			}
		} else {
			checks["database"] = "not configured"
		}

		// Check EventStoreDB
		if app.Bus != nil {
			if err := app.Bus.Health(); err != nil {
				checks["eventstore"] = "not ready: " + err.Error()
			} else {
				checks["eventstore"] = "ready"
			}
		} else {
			checks["eventstore"] = "not configured"
		}

		// Check legacy policy admin
		if app.LegacyPAS != nil {
			if err := app.LegacyPAS.Health(r.Context()); err != nil {
				checks["legacy_pas"] = "not ready: " + err.Error()
			} else {
				checks["legacy_pas"] = "ready"
			}
		} else {
			checks["legacy_pas"] = "not configured"
		}

		allReady := true
		for _, status := range checks {
			if status != "ready" && status != "not configured" {
				allReady = false
				break
			}
		}

		status := http.StatusOK
		if !allReady {
			status = http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(map[string]any{
			"status": map[bool]string{true: "ready", false: "not ready"}[allReady],
			"checks": checks,
		})
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Authorization, Content-Type, X-Request-ID")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
