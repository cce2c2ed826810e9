// Package handlers implements the JSON API for batch administration
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"

	"batch-video-downloader/internal/batch"
	"batch-video-downloader/internal/extractor"
	"batch-video-downloader/pkg/models"
)

// Handlers holds the API's dependencies
type Handlers struct {
	service   *batch.Service
	registry  *batch.Registry
	basePath  string
	startedAt time.Time
	logger    *slog.Logger
}

// NewHandlers creates the API handlers
func NewHandlers(service *batch.Service, registry *batch.Registry, basePath string) *Handlers {
	return &Handlers{
		service:   service,
		registry:  registry,
		basePath:  basePath,
		startedAt: time.Now(),
		logger:    slog.Default(),
	}
}

type batchRequest struct {
	UserID     int64  `json:"user_id"`
	Links      string `json:"links"`
	StartIndex int    `json:"start_index"`
	BatchName  string `json:"batch_name"`
	Quality    string `json:"quality"`
	Caption    string `json:"caption"`
	ThumbURL   string `json:"thumb_url"`
}

type batchResponse struct {
	JobID string `json:"job_id"`
	Links int    `json:"links"`
}

// SubmitBatch admits a new batch job from a JSON request body
func (h *Handlers) SubmitBatch(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.UserID <= 0 {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	links, err := extractor.Extract(req.Links)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if req.StartIndex == 0 {
		req.StartIndex = 1
	}
	if req.BatchName == "" {
		req.BatchName = "batch"
	}

	job := &models.BatchJob{
		ID:         uuid.New().String(),
		UserID:     req.UserID,
		Links:      links,
		StartIndex: req.StartIndex,
		Quality:    models.ParseQuality(req.Quality),
		BatchName:  req.BatchName,
		Caption:    req.Caption,
	}

	if req.ThumbURL != "" {
		job.ThumbPath = h.fetchThumbnail(r.Context(), req.UserID, req.ThumbURL)
	}

	if err := h.service.Start(r.Context(), job); err != nil {
		if errors.Is(err, batch.ErrActiveBatch) {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.logger.Info("Batch submitted via API", "job_id", job.ID, "user_id", job.UserID, "links", len(links))
	writeJSON(w, http.StatusAccepted, batchResponse{JobID: job.ID, Links: len(links)})
}

// Status returns one user's batch status, or every active batch when no
// user_id is given
func (h *Handlers) Status(w http.ResponseWriter, r *http.Request) {
	userParam := r.URL.Query().Get("user_id")
	if userParam == "" {
		writeJSON(w, http.StatusOK, h.registry.AllActive())
		return
	}

	userID, err := strconv.ParseInt(userParam, 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid user_id")
		return
	}

	status, ok := h.registry.Get(userID)
	if !ok {
		writeError(w, http.StatusNotFound, "no active batch for user")
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// Stop requests cancellation of one user's batch
func (h *Handlers) Stop(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(r.URL.Query().Get("user_id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid user_id")
		return
	}

	if !h.service.Stop(userID) {
		writeError(w, http.StatusNotFound, "no active batch for user")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"result": "stop requested"})
}

// StopAll requests cancellation of every active batch
func (h *Handlers) StopAll(w http.ResponseWriter, r *http.Request) {
	h.registry.RequestStopAll()
	h.logger.Info("Stop-all requested via API")
	writeJSON(w, http.StatusOK, map[string]string{"result": "stop requested for all batches"})
}

type statsResponse struct {
	ActiveBatches int     `json:"active_batches"`
	UptimeSeconds float64 `json:"uptime_seconds"`
	Load1         float64 `json:"load_1"`
	Load5         float64 `json:"load_5"`
	Load15        float64 `json:"load_15"`
	MemoryUsedPct float64 `json:"memory_used_pct"`
	MemoryTotalMB uint64  `json:"memory_total_mb"`
}

// Stats reports active batch counts and host resource usage
func (h *Handlers) Stats(w http.ResponseWriter, r *http.Request) {
	stats := statsResponse{
		ActiveBatches: h.registry.ActiveCount(),
		UptimeSeconds: time.Since(h.startedAt).Seconds(),
	}

	if avg, err := load.Avg(); err == nil {
		stats.Load1 = avg.Load1
		stats.Load5 = avg.Load5
		stats.Load15 = avg.Load15
	} else {
		h.logger.Warn("Failed to read load average", "error", err)
	}

	if vm, err := mem.VirtualMemory(); err == nil {
		stats.MemoryUsedPct = vm.UsedPercent
		stats.MemoryTotalMB = vm.Total / (1024 * 1024)
	} else {
		h.logger.Warn("Failed to read memory stats", "error", err)
	}

	writeJSON(w, http.StatusOK, stats)
}

// fetchThumbnail downloads the custom thumbnail into the user's working
// directory. Failure never blocks admission.
func (h *Handlers) fetchThumbnail(ctx context.Context, userID int64, thumbURL string) string {
	dir := filepath.Join(h.basePath, strconv.FormatInt(userID, 10))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		h.logger.Warn("Failed to create thumbnail directory", "user_id", userID, "error", err)
		return ""
	}

	dest := filepath.Join(dir, "thumb.jpg")
	if err := batch.DownloadThumbnail(ctx, thumbURL, dest); err != nil {
		h.logger.Warn("Failed to download thumbnail", "url", thumbURL, "error", err)
		return ""
	}
	return dest
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Default().Warn("Failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
