package httpserver

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/celerix-dev/celerix-store/pkg/domain"
)

// ReadyFunc reports whether the daemon can serve store traffic.
type ReadyFunc func(ctx context.Context) error

// RouterConfig holds configuration for the admin router.
type RouterConfig struct {
	// Metrics serves GET /metrics. Nil disables the route.
	Metrics http.Handler

	// Ready backs GET /ready. Nil means always ready.
	Ready ReadyFunc

	// ReadyTimeout bounds a single Ready call.
	ReadyTimeout time.Duration

	Logger *slog.Logger
}

// DefaultReadyTimeout is used when RouterConfig.ReadyTimeout is zero.
const DefaultReadyTimeout = 2 * time.Second

// NewRouter builds the admin handler.
func NewRouter(cfg *RouterConfig) http.Handler {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	timeout := cfg.ReadyTimeout
	if timeout <= 0 {
		timeout = DefaultReadyTimeout
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", handleHealth)
	mux.HandleFunc("GET /ready", readyHandler(cfg.Ready, timeout))
	if cfg.Metrics != nil {
		mux.Handle("GET /metrics", cfg.Metrics)
	}

	return Chain(mux, Recover(log), RequestID(), AccessLog(log))
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func readyHandler(ready ReadyFunc, timeout time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if ready != nil {
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()
			if err := ready(ctx); err != nil {
				writeError(w, http.StatusServiceUnavailable,
					domain.ErrServerBusy.WithDetails(err.Error()))
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{
			"status": "ready",
			"time":   time.Now().UTC().Format(time.RFC3339),
		})
	}
}
