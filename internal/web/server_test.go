package web

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"batch-video-downloader/internal/batch"
	"batch-video-downloader/internal/config"
)

func newTestServer(t *testing.T, adminToken string) *Server {
	cfg := &config.Config{
		ServerPort:        "8080",
		AdminToken:        adminToken,
		BaseDownloadsPath: t.TempDir(),
	}
	registry := batch.NewRegistry()
	service := batch.NewService(nil, registry, nil, nil, cfg.BaseDownloadsPath, 1, nil)
	return NewServer(cfg, service, registry)
}

func TestNewServer_Routes(t *testing.T) {
	srv := newTestServer(t, "")

	tests := []struct {
		name   string
		method string
		path   string
		want   int
	}{
		{"stats", http.MethodGet, "/api/stats", http.StatusOK},
		{"status list", http.MethodGet, "/api/status", http.StatusOK},
		{"stop unknown user", http.MethodPost, "/api/stop?user_id=1", http.StatusNotFound},
		{"stop all", http.MethodPost, "/api/stop-all", http.StatusOK},
		{"unknown route", http.MethodGet, "/api/nothing", http.StatusNotFound},
		{"wrong method", http.MethodGet, "/api/stop-all", http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			srv.server.Handler.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))
			require.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestAdminAuth(t *testing.T) {
	srv := newTestServer(t, "secret-token")

	req := httptest.NewRequest(http.MethodGet, "/api/stats", nil)
	rec := httptest.NewRecorder()
	srv.server.Handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/stats", nil)
	req.Header.Set("X-Admin-Token", "wrong")
	rec = httptest.NewRecorder()
	srv.server.Handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/stats", nil)
	req.Header.Set("X-Admin-Token", "secret-token")
	rec = httptest.NewRecorder()
	srv.server.Handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestGetLocalIP(t *testing.T) {
	// Always yields something usable for the startup log
	require.NotEmpty(t, getLocalIP())
}

func TestIsInRange172(t *testing.T) {
	require.True(t, isInRange172("172.16.0.1"))
	require.True(t, isInRange172("172.31.255.1"))
	require.False(t, isInRange172("172.32.0.1"))
	require.False(t, isInRange172("172.15.0.1"))
	require.False(t, isInRange172("192.168.1.1"))
}
