package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// NewRouter registers the API routes. /v1/chat is only mounted when an agent
// was supplied.
func NewRouter(h *Handler) *gin.Engine {
	router := gin.New()
	router.Use(RecoveryMiddleware(h.logger))
	router.Use(LoggingMiddleware(h.logger))

	router.POST("/v1/generate", h.HandleGenerate)
	if h.agent != nil {
		router.POST("/v1/chat", h.HandleChat)
	}
	router.GET("/healthz", h.HandleHealth)
	return router
}

// Run serves router on addr until ctx is cancelled, then shuts down gracefully.
func Run(ctx context.Context, addr string, router http.Handler, logger *slog.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server", slog.String("address", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
