// Package web provides the HTTP server and routing for the admin API
package web

import (
	"context"
	"crypto/subtle"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"batch-video-downloader/internal/batch"
	"batch-video-downloader/internal/config"
	"batch-video-downloader/internal/web/handlers"
)

// Server represents the HTTP server
type Server struct {
	server   *http.Server
	handlers *handlers.Handlers
	logger   *slog.Logger
}

// NewServer creates a new HTTP server
func NewServer(cfg *config.Config, service *batch.Service, registry *batch.Registry) *Server {
	h := handlers.NewHandlers(service, registry, cfg.BaseDownloadsPath)

	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/batch", h.SubmitBatch)
	mux.HandleFunc("GET /api/status", h.Status)
	mux.HandleFunc("POST /api/stop", h.Stop)
	mux.HandleFunc("POST /api/stop-all", h.StopAll)
	mux.HandleFunc("GET /api/stats", h.Stats)

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      adminAuth(cfg.AdminToken, mux),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		server:   server,
		handlers: h,
		logger:   slog.Default(),
	}
}

// Start starts the HTTP server
func (s *Server) Start() error {
	localIP := getLocalIP()
	port := strings.TrimPrefix(s.server.Addr, ":")

	s.logger.Info("Starting HTTP server",
		"addr", s.server.Addr,
		"local_ip", localIP,
		"port", port,
		"url", fmt.Sprintf("http://%s:%s", localIP, port))

	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

// adminAuth requires the X-Admin-Token header on every request when a token
// is configured. An empty configured token leaves the API open.
func adminAuth(token string, next http.Handler) http.Handler {
	if token == "" {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got := r.Header.Get("X-Admin-Token")
		if subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
			http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// getLocalIP returns the local private network IP address for startup logging
func getLocalIP() string {
	interfaces, err := net.Interfaces()
	if err != nil {
		return "localhost"
	}

	for _, iface := range interfaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}

		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}

		for _, addr := range addrs {
			var ip net.IP
			switch v := addr.(type) {
			case *net.IPNet:
				ip = v.IP
			case *net.IPAddr:
				ip = v.IP
			}

			if ip == nil || ip.IsLoopback() || ip.To4() == nil {
				continue
			}

			ipStr := ip.String()
			if strings.HasPrefix(ipStr, "192.168.") {
				return ipStr
			}
			if strings.HasPrefix(ipStr, "10.") ||
				(strings.HasPrefix(ipStr, "172.") && isInRange172(ipStr)) {
				return ipStr
			}
		}
	}

	return "localhost"
}

// isInRange172 checks if IP is in the 172.16.0.0/12 private range
func isInRange172(ipStr string) bool {
	parts := strings.Split(ipStr, ".")
	if len(parts) < 2 || parts[0] != "172" {
		return false
	}

	var secondOctet int
	if _, err := fmt.Sscanf(parts[1], "%d", &secondOctet); err != nil {
		return false
	}
	return secondOctet >= 16 && secondOctet <= 31
}
