package observability

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// NewMux returns a mux serving /health, /metrics and any extra routes.
func NewMux(routes map[string]http.Handler) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", Handler())
	for pattern, h := range routes {
		mux.Handle(pattern, h)
	}

	return mux
}

// Serve runs the metrics HTTP server on addr until ctx is done.
func Serve(ctx context.Context, addr string, logger *zap.Logger, routes map[string]http.Handler) error {
	if logger == nil {
		logger = zap.NewNop()
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           NewMux(routes),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("metrics server listening", zap.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
