package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMetricsPathFormatter(t *testing.T) {
	require.Empty(t, metricsPathFormatter(http.StatusNotFound, "/wp-admin"))
	require.Empty(t, metricsPathFormatter(http.StatusMethodNotAllowed, "/health"))
	require.Equal(t, "/health", metricsPathFormatter(http.StatusOK, "/health"))
}

func TestHandleHealthCheck(t *testing.T) {
	w := httptest.NewRecorder()
	handleHealthCheck(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, w.Code)
}

func TestServeAdminStopsWithContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		defer close(done)
		serveAdmin(ctx, &http.Server{
			Addr:    "127.0.0.1:0",
			Handler: http.HandlerFunc(handleHealthCheck),
		})
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("admin server did not stop")
	}
}
