package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ClareAI/astra-outbound-bridge/internal/config"
	"github.com/ClareAI/astra-outbound-bridge/internal/handler"
	"github.com/ClareAI/astra-outbound-bridge/pkg/logger"
	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

const shutdownTimeout = 20 * time.Second

// Server represents the outbound bridge server
type Server struct {
	config         *config.BridgeConfig
	router         *mux.Router
	handlerManager *handler.HandlerManager
	httpServer     *http.Server
}

// NewServer creates a new outbound bridge server
func NewServer(cfg *config.BridgeConfig) (*Server, error) {
	router := mux.NewRouter()

	// Initialize handler manager - it will create all services internally
	handlerManager, err := handler.NewHandlerManager(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize handler manager: %w", err)
	}
	handlerManager.SetupAllRoutes(router)

	addr := fmt.Sprintf(":%s", cfg.Port)
	return &Server{
		config:         cfg,
		router:         router,
		handlerManager: handlerManager,
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           router,
			ReadHeaderTimeout: 15 * time.Second,
			IdleTimeout:       60 * time.Second,
			// No WriteTimeout: media-stream websockets stay open for the whole call
		},
	}, nil
}

// Run serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Base().Info("Starting server", zap.String("addr", s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		s.handlerManager.Close()
		return err
	case <-ctx.Done():
	}

	logger.Base().Info("Shutting down server",
		zap.Int("active_calls", len(s.handlerManager.GetService().ListActive())))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err := s.httpServer.Shutdown(shutdownCtx)
	s.handlerManager.Close()
	return err
}

func main() {
	// Load .env file for local development if it exists
	// This will not override environment variables set by Helm/Docker
	if err := godotenv.Load(); err != nil {
		log.Printf("Info: .env file not found or skipped (expected in production): %v", err)
	}

	// Initialize zap logger and redirect stdlib log to it
	if _, err := logger.Init(os.Getenv("LOG_ENV")); err != nil {
		log.Printf("Failed to initialize zap logger, falling back to std log: %v", err)
	}
	defer logger.Sync()

	cfg := config.LoadConfigFromEnv()
	if err := cfg.Validate(); err != nil {
		logger.Base().Fatal("Invalid configuration", zap.Error(err))
	}

	server, err := NewServer(cfg)
	if err != nil {
		logger.Base().Fatal("Failed to create server", zap.Error(err))
	}
	logger.Base().Info("Server initialized",
		zap.String("port", cfg.Port),
		zap.String("instance_id", cfg.InstanceID),
		zap.String("public_base_url", cfg.PublicBaseURL))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := server.Run(ctx); err != nil {
		logger.Base().Error("Server stopped with error", zap.Error(err))
		os.Exit(1)
	}
	logger.Base().Info("Server stopped")
}
