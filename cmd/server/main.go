package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/forwardsflow/be-cc-workflow/internal/bus"
	"github.com/forwardsflow/be-cc-workflow/internal/client"
	"github.com/forwardsflow/be-cc-workflow/internal/config"
	"github.com/forwardsflow/be-cc-workflow/internal/engine"
	"github.com/forwardsflow/be-cc-workflow/internal/handler"
	"github.com/forwardsflow/be-cc-workflow/internal/logger"
	"github.com/forwardsflow/be-cc-workflow/internal/middleware"
	"github.com/forwardsflow/be-cc-workflow/internal/store"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New(logger.Config{
		Level:       cfg.Service.LogLevel,
		Environment: cfg.Service.Environment,
		ServiceName: cfg.Service.Name,
		Version:     cfg.Service.Version,
	})

	log.Info().
		Str("service", cfg.Service.Name).
		Str("version", cfg.Service.Version).
		Str("environment", cfg.Service.Environment).
		Msg("Starting ForwardsFlow capital call workflow service")

	// Initialize workflow engine
	st := store.New()
	eventBus := bus.New(log.Logger)
	eng := engine.New(st, eventBus, log).
		WithSettlementDelay(cfg.Workflow.SettlementDelay).
		WithCallExpiry(cfg.Workflow.CallExpiry).
		WithSettlementWindow(cfg.Workflow.SettlementWindow)

	// Optional NATS milestone relay
	if cfg.NATS.URL != "" {
		relay, err := client.NewEventRelay(cfg.NATS.URL, log.Logger)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect event relay to NATS")
		}
		defer relay.Close()
		relay.Attach(eventBus)
		log.Info().Str("nats_url", cfg.NATS.URL).Msg("Event relay attached")
	}

	// Setup HTTP routes
	httpHandler := handler.NewHTTPHandler(eng, log)
	mux := http.NewServeMux()

	// Health check
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy"}`))
	})

	// Capital call routes
	mux.HandleFunc("/api/v1/calls", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			httpHandler.ListCalls(w, r)
		case http.MethodPost:
			httpHandler.CreateCall(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	})

	mux.HandleFunc("GET /api/v1/calls/get", httpHandler.GetCall)
	mux.HandleFunc("GET /api/v1/calls/progress", httpHandler.GetProgress)
	mux.HandleFunc("POST /api/v1/calls/publish", httpHandler.PublishCall)
	mux.HandleFunc("POST /api/v1/calls/respond", httpHandler.RespondToCall)
	mux.HandleFunc("POST /api/v1/calls/accept", httpHandler.AcceptResponse)
	mux.HandleFunc("POST /api/v1/calls/settlement-details", httpHandler.SubmitSettlementDetails)
	mux.HandleFunc("POST /api/v1/calls/repatriation-account", httpHandler.SubmitRepatriationAccount)
	mux.HandleFunc("POST /api/v1/calls/kyc", httpHandler.SubmitKYC)
	mux.HandleFunc("POST /api/v1/calls/kyc/approve", httpHandler.ApproveKYC)
	mux.HandleFunc("POST /api/v1/calls/settle", httpHandler.ProcessSettlement)
	mux.HandleFunc("POST /api/v1/calls/cancel", httpHandler.CancelCall)

	// Notification and portfolio routes
	mux.HandleFunc("GET /api/v1/notifications", httpHandler.ListNotifications)
	mux.HandleFunc("POST /api/v1/notifications/read", httpHandler.MarkNotificationRead)
	mux.HandleFunc("GET /api/v1/portfolio", httpHandler.ListPortfolio)

	// Apply middleware
	var h http.Handler = mux
	h = middleware.RequestID(h)
	h = middleware.Logger(&log.Logger)(h)
	h = middleware.Recovery(&log.Logger)(h)
	h = middleware.CORS([]string{"*"})(h)
	h = middleware.Timeout(cfg.Server.WriteTimeout)(h)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      h,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info().Int("port", cfg.Server.Port).Msg("Starting HTTP server")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("HTTP server failed")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}

	log.Info().Msg("Server stopped")
}
