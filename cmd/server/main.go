// Jobs Support - multi-channel job application assistant server
package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	grpchealth "google.golang.org/grpc/health"

	"github.com/ashureev/jobassist/internal/agent"
	"github.com/ashureev/jobassist/internal/api"
	"github.com/ashureev/jobassist/internal/config"
	"github.com/ashureev/jobassist/internal/delivery"
	"github.com/ashureev/jobassist/internal/health"
	"github.com/ashureev/jobassist/internal/lookup"
	"github.com/ashureev/jobassist/internal/metrics"
	"github.com/ashureev/jobassist/internal/middleware"
	"github.com/ashureev/jobassist/internal/orchestrator"
	"github.com/ashureev/jobassist/internal/store"
	"github.com/ashureev/jobassist/internal/watch"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	}))
	slog.SetDefault(logger)

	slog.Info("Starting server", "port", cfg.Port, "grpc_port", cfg.GRPCPort, "app", cfg.AppName, "store", cfg.Store.Driver, "dev", cfg.IsDevelopment())

	// Initialize dependencies.
	repo, err := store.Open(cfg.Store.Driver, cfg.StoreDSN())
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			slog.Error("Failed to close repository", "error", closeErr)
		}
	}()

	if err := repo.Ping(context.Background()); err != nil {
		slog.Error("Database health check failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Database connected")

	m := metrics.Default()
	jobs := lookup.NewClient(lookup.Options{
		BaseURL:  cfg.Lookup.URL,
		Timeout:  cfg.Lookup.Timeout,
		PageSize: cfg.Lookup.PageSize,
		Logger:   logger,
		Metrics:  m,
	})

	registry, err := agent.NewStandardRegistry(jobs, agent.DefaultCalendar(cfg.Location()), logger)
	if err != nil {
		slog.Error("Failed to build agent registry", "error", err)
		os.Exit(1)
	}
	router := agent.NewRouter(registry, logger, m)

	var sender delivery.Sender
	if cfg.DeliveryEnabled() {
		sender = delivery.NewGraphSender(delivery.GraphOptions{
			BaseURL:               cfg.Delivery.GraphURL,
			WhatsAppToken:         cfg.Delivery.WhatsAppToken,
			WhatsAppPhoneNumberID: cfg.Delivery.WhatsAppPhoneNumberID,
			MessengerToken:        cfg.Delivery.MessengerToken,
			Timeout:               cfg.Delivery.Timeout,
			Logger:                logger,
			Metrics:               m,
		})
	} else {
		slog.Warn("No channel credentials configured, replies are only logged")
		sender = delivery.NewLogSender(logger)
	}
	if cfg.AlertsEnabled() {
		sender = delivery.NewAlertingSender(sender, delivery.AlertOptions{
			BaseURL:  cfg.Alert.TelegramURL,
			BotToken: cfg.Alert.BotToken,
			ChatID:   cfg.Alert.ChatID,
			Timeout:  cfg.Delivery.Timeout,
			Logger:   logger,
		})
		slog.Info("Delivery failure alerts enabled", "chat_id", cfg.Alert.ChatID)
	}

	hub := watch.NewHub(64, logger)
	defer hub.Close()

	orch, err := orchestrator.New(orchestrator.Options{
		AppName:         cfg.AppName,
		Store:           repo,
		Router:          router,
		Sender:          sender,
		Ads:             jobs,
		Watch:           hub,
		Logger:          logger,
		Metrics:         m,
		DedupSize:       cfg.Dedup.Size,
		DedupTTL:        cfg.Dedup.TTL,
		DeliveryTimeout: cfg.Delivery.Timeout,
	})
	if err != nil {
		slog.Error("Failed to initialize orchestrator", "error", err)
		os.Exit(1)
	}

	// Initialize handlers.
	baseHandler := api.NewHandler(orch, repo, cfg.AppName)
	healthHandler := api.NewHealthHandler(repo, cfg.Timeout.HealthCheck)
	watchHandler := watch.NewHandler(hub, cfg.FrontendURL, cfg.IsDevelopment())
	guard := middleware.BearerToken(cfg.InspectToken)
	if cfg.InspectToken == "" {
		slog.Warn("INSPECT_TOKEN not set, session inspection is unauthenticated")
	}

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(middleware.CORS([]string{"*"}))

	// Public routes.
	healthHandler.RegisterHealth(r)
	r.Handle("/metrics", promhttp.Handler())

	baseHandler.RegisterRoutes(r, guard)
	r.With(guard).Get("/api/sessions/watch", watchHandler.ServeHTTP)

	// Create server.
	// Note: the watch feed is a long-lived WebSocket, so there is no WriteTimeout.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// gRPC health service, driven by store reachability.
	healthServer := grpchealth.NewServer()
	grpcSrv := health.NewGRPCServer(healthServer)
	health.NewWatcher(repo, healthServer, cfg.Timeout.HealthInterval, cfg.Timeout.HealthCheck).Start(ctx)

	grpcLis, err := net.Listen("tcp", ":"+cfg.GRPCPort)
	if err != nil {
		slog.Error("Failed to listen for gRPC", "error", err)
		os.Exit(1)
	}
	go func() {
		slog.Info("gRPC health server listening", "addr", grpcLis.Addr().String())
		if err := grpcSrv.Serve(grpcLis); err != nil {
			slog.Error("gRPC server failed", "error", err)
		}
	}()

	// Start server.
	go func() {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal.
	<-ctx.Done()
	stop()

	slog.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Timeout.Shutdown)
	defer cancel()

	grpcSrv.GracefulStop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("Server stopped successfully")
}
