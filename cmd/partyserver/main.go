// Command partyserver runs the room coordination engine: a single gin HTTP
// server exposing the websocket upgrade endpoint and health checks.
//
// Grounded on the teacher's cmd/v1/session/main.go: same .env loading,
// gin-contrib/cors wiring, and signal.Notify-driven graceful shutdown,
// generalized from Auth0/JWKS validation to the symmetric Authenticator in
// internal/auth, and from a prometheus metrics endpoint to the plain
// liveness/readiness pair in internal/health (the domain stack for metrics
// was dropped; see DESIGN.md).
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/partyline/server/internal/auth"
	"github.com/partyline/server/internal/config"
	"github.com/partyline/server/internal/health"
	"github.com/partyline/server/internal/hub"
	"github.com/partyline/server/internal/logging"
	"github.com/partyline/server/internal/middleware"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Warn("no .env file found, relying on environment variables")
	}

	cfg, err := config.ValidateEnv()
	if err != nil {
		slog.Error("invalid environment configuration", "error", err)
		os.Exit(1)
	}

	if err := logging.Initialize(cfg.GoEnv != "production"); err != nil {
		slog.Error("failed to initialize logger", "error", err)
		os.Exit(1)
	}

	authenticator := auth.NewAuthenticator(cfg.JWTSecret, cfg.PublicWSURL, cfg.ServerName)
	h := hub.New(authenticator, cfg.ServerID, cfg.PublicWSURL, cfg.PublicHTTPURL, cfg.AllowedOriginsList())
	healthHandler := health.New(h)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CorrelationID())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.AllowedOriginsList()
	router.Use(cors.New(corsConfig))

	router.GET("/health/live", healthHandler.Liveness)
	router.GET("/health/ready", healthHandler.Readiness)
	router.GET("/ws", h.ServeWs)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		logging.Info(context.Background(), "partyserver starting",
			zap.String("port", cfg.Port),
			zap.String("server_id", cfg.ServerID),
			zap.String("server_name", cfg.ServerName),
			zap.String("public_ws_url", cfg.PublicWSURL),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logging.Info(context.Background(), "shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	logging.Info(context.Background(), "server exiting")
}
