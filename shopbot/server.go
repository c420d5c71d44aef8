package shopbot

import (
	"context"
	"crypto/tls"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
)

// NewRouter mounts the health probe on GET / and the webhook on POST /webhook.
func NewRouter(webhook http.Handler) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", health)
	mux.Handle("POST "+WebhookPath, webhook)
	return mux
}

// health answers uptime probes. It never consults the bot or the dispatcher.
func health(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	io.WriteString(w, "OK")
}

// Serve runs an HTTP server for handler on ln until ctx is done, then shuts
// it down gracefully. TLS is used when both certificate paths are set.
func Serve(ctx context.Context, cfg *Config, ln net.Listener, handler http.Handler, logger *slog.Logger) error {
	server := &http.Server{
		Handler:           handler,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		TLSConfig: &tls.Config{
			MinVersion: tls.VersionTLS12,
		},
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("HTTP server starting", "addr", ln.Addr().String(), "tls", cfg.TLSCertPath != "")
		var err error
		if cfg.TLSCertPath != "" && cfg.TLSKeyPath != "" {
			err = server.ServeTLS(ln, cfg.TLSCertPath, cfg.TLSKeyPath)
		} else {
			err = server.Serve(ln)
		}
		if !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			logger.Error("HTTP server error", "error", err)
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
		return err
	}
	logger.Info("HTTP server stopped gracefully")
	return nil
}
