package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/opencrm/rowshare/internal/handlers"
	"github.com/opencrm/rowshare/internal/infrastructure/config"
	"github.com/opencrm/rowshare/internal/infrastructure/database"
	"github.com/opencrm/rowshare/internal/infrastructure/metrics"
	"github.com/opencrm/rowshare/internal/repositories/postgres"
	"github.com/opencrm/rowshare/internal/services"
	"github.com/opencrm/rowshare/internal/services/sharing"
)

const defaultEnv = "dev"

func main() {
	// Get environment from ENV variable or use default
	env := os.Getenv("ENV")
	if env == "" {
		env = defaultEnv
	}

	// Initialize configuration
	if err := config.InitConfig(env); err != nil {
		log.Fatalf("Failed to initialize config: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Connect to database
	pg, err := database.NewPostgres(&cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pg.Close()

	log.Printf("Connected to database: %s@%s:%d/%s",
		cfg.Database.User,
		cfg.Database.Host,
		cfg.Database.Port,
		cfg.Database.Database)

	// Initialize repositories
	ruleRepo := postgres.NewPostgresRuleRepository(pg.DB)
	shareRepo := postgres.NewPostgresShareRepository(pg.DB)
	recordRepo := postgres.NewPostgresRecordRepository(pg.DB)

	// Initialize services
	collector := metrics.NewCollector()
	enforcer := sharing.NewEnforcerWithMetrics(ruleRepo, shareRepo, collector)
	ruleService := services.NewRuleService(ruleRepo)
	shareService := services.NewShareService(shareRepo, recordRepo, enforcer)

	// Initialize handlers
	ruleHandler := handlers.NewRuleHandler(ruleService)
	shareHandler := handlers.NewShareHandler(shareService)
	accessHandler := handlers.NewAccessHandler(enforcer, recordRepo)

	router := chi.NewRouter()
	router.Use(middleware.Recoverer)
	router.Use(collector.Middleware)
	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := pg.HealthCheck(); err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	router.Route("/v1", func(r chi.Router) {
		r.Use(handlers.RequestContext)
		ruleHandler.Routes(r)
		shareHandler.Routes(r)
		accessHandler.Routes(r)
	})

	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Serve Prometheus metrics on a separate port
	metricsServer := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.MetricsPort),
		Handler:           promhttp.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrors := make(chan error, 2)
	go func() {
		log.Printf("HTTP server listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrors <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()
	go func() {
		log.Printf("Metrics server listening on %s", metricsServer.Addr)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrors <- fmt.Errorf("metrics server error: %w", err)
		}
	}()

	// Setup signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)

	select {
	case err := <-serverErrors:
		log.Fatalf("Server error: %v", err)
	case sig := <-sigChan:
		log.Printf("Received signal: %v", sig)
		log.Println("Initiating graceful shutdown...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP server shutdown error: %v", err)
		}
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			log.Printf("Metrics server shutdown error: %v", err)
		}

		if err := pg.Close(); err != nil {
			log.Printf("Error closing database connection: %v", err)
		}

		log.Println("Shutdown complete")
	}
}
