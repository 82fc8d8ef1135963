package main

import (
	"context"
	"net/http"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
)

// serveAdmin runs the admin server until ctx is done.
func serveAdmin(ctx context.Context, s *http.Server) {
	stopped := context.AfterFunc(ctx, func() {
		if err := s.Shutdown(context.Background()); err != nil {
			logs.Warn(errors.New("shutting down the admin server failed").
				WithTag("addr", s.Addr).
				Wrap(err))
		}
	})
	defer stopped()

	logs.WithTag("addr", s.Addr).Info("starting admin server")
	if err := s.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logs.Warn(errors.New("admin server stopped").
			WithTag("addr", s.Addr).
			Wrap(err))
		return
	}
	logs.WithTag("addr", s.Addr).Info("admin server stopped")
}

// metricsPathFormatter drops the path label of unknown routes so scans do
// not create a series per path.
func metricsPathFormatter(statusCode int, path string) string {
	if statusCode == http.StatusNotFound ||
		statusCode == http.StatusMethodNotAllowed {
		return ""
	}
	return path
}

func handleHealthCheck(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}
