/*
Package main is the entry point for the pianogod session relay.

It is responsible for loading configuration, initializing the global logging
system, wiring the hub, coordinator, and presence notifier, setting up the
HTTP server, and gracefully handling operating system interrupt signals
(SIGINT, SIGTERM) to ensure a smooth shutdown.
*/
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jozu2/pianogod-server/internal/app/presence"
	"github.com/jozu2/pianogod-server/internal/app/relay"
	"github.com/jozu2/pianogod-server/internal/configs"
	"github.com/jozu2/pianogod-server/internal/handler"
	"github.com/jozu2/pianogod-server/internal/pkg/logx"
	"github.com/jozu2/pianogod-server/internal/pkg/sessiontoken"
)

func main() {
	// Load configuration from environment variables
	cfg, err := configs.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize global logger
	logx.InitGlobalLogger(cfg.Environment == "development")
	logx.Logger().Info().
		Str("environment", cfg.Environment).
		Int("port", cfg.Port).
		Strs("allowed_origins", cfg.AllowedOrigins).
		Str("app_server_url", cfg.AppServerURL).
		Dur("state_update_interval", cfg.StateUpdateInterval).
		Dur("presence_ping_interval", cfg.PresencePingInterval).
		Msg("Configuration loaded successfully")

	// Create a context that listens for the interrupt signal from the OS.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Wire the relay core
	hub := relay.NewHub()
	notifier := presence.NewClient(cfg.AppServerURL, cfg.AppServerTimeout)
	coordinator := relay.NewCoordinator(hub, notifier, cfg.StateUpdateInterval, cfg.PresencePingInterval)
	verifier := sessiontoken.NewVerifier(cfg.SessionSecret)

	// Setup HTTP server and routes
	router := handler.Router(&handler.AppDeps{
		Hub:         hub,
		Coordinator: coordinator,
		Verifier:    verifier,
		Config:      cfg,
	})

	serverAddr := fmt.Sprintf(":%d", cfg.Port)
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      router,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logx.Info(fmt.Sprintf("Relay server starting on http://localhost%s", serverAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logx.Fatal(err, "Server failed to start")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server with a timeout of 5 seconds.
	<-ctx.Done()
	logx.Info("Received shutdown signal. Starting graceful shutdown...")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logx.Fatal(err, "Server forced to shutdown")
	}

	hub.Shutdown()

	logx.Info("Server gracefully stopped.")
}
