package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/me/schedctl/pkg/model"
)

// watchContext is cancelled on SIGINT/SIGTERM.
func watchContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

// serveMetrics exposes /metrics on addr until ctx is done. An empty addr
// disables it.
func serveMetrics(ctx context.Context, addr string) {
	if addr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		logger.Info("metrics listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "error", err)
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()
}

// watchSession follows credential file changes made by other schedctl
// processes until ctx is done. The returned channel closes when the watch
// has ended.
func watchSession(ctx context.Context) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := sess.Watch(ctx); err != nil {
			logger.Warn("credential watch failed", "error", err)
		}
	}()
	return done
}

// renderUpdate prints one refresh of a watched listing.
func renderUpdate[T any](w io.Writer, page model.Page[T], err error, print func(io.Writer, model.Page[T])) {
	fmt.Fprintf(w, "\n[%s]\n", time.Now().Format(time.TimeOnly))
	if err != nil {
		note := "showing last results"
		if model.IsRecoverable(err) {
			note += ", will retry"
		}
		fmt.Fprintf(w, "✗ refresh failed: %s (%s)\n", model.UserMessage(err), note)
		if model.IsAuth(err) {
			return
		}
	}
	print(w, page)
}
