// Package batch implements the batch download pipeline: admission,
// per-item processing, status tracking, and cooperative cancellation
package batch

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"batch-video-downloader/pkg/models"
)

// ErrActiveBatch rejects admission when the user already has a running batch
var ErrActiveBatch = errors.New("user already has an active batch")

// Handle is the cancellable handle for one running batch. The stop flag is
// observed at item boundaries; cancel additionally terminates in-flight
// external work through the job context.
type Handle struct {
	userID   int64
	stopped  atomic.Bool
	cancel   context.CancelFunc
	registry *Registry
}

// Stopped reports whether this batch or the whole process was asked to stop
func (h *Handle) Stopped() bool {
	return h.stopped.Load() || h.registry.stopAll.Load()
}

// Registry is the process-wide directory of active batches. Status writes
// for a user come only from that user's processor; reads get snapshots.
type Registry struct {
	mu      sync.RWMutex
	entries map[int64]*registryEntry
	stopAll atomic.Bool
}

type registryEntry struct {
	status models.DownloadStatus
	handle *Handle
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		entries: make(map[int64]*registryEntry),
	}
}

// Register admits a new batch for the user. Fails with ErrActiveBatch if the
// user already has one; the existing entry is left untouched.
func (r *Registry) Register(userID int64, status models.DownloadStatus, cancel context.CancelFunc) (*Handle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[userID]; exists {
		return nil, ErrActiveBatch
	}

	handle := &Handle{
		userID:   userID,
		cancel:   cancel,
		registry: r,
	}
	r.entries[userID] = &registryEntry{
		status: status,
		handle: handle,
	}
	return handle, nil
}

// Publish stores an updated status snapshot for the user
func (r *Registry) Publish(userID int64, status models.DownloadStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if entry, ok := r.entries[userID]; ok {
		entry.status = status
	}
}

// Get returns a snapshot of the user's status
func (r *Registry) Get(userID int64) (models.DownloadStatus, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.entries[userID]
	if !ok {
		return models.DownloadStatus{}, false
	}
	return entry.status, true
}

// Remove drops the user's entry
func (r *Registry) Remove(userID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, userID)
}

// AllActive returns snapshots of every active batch
func (r *Registry) AllActive() []models.DownloadStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()

	statuses := make([]models.DownloadStatus, 0, len(r.entries))
	for _, entry := range r.entries {
		statuses = append(statuses, entry.status)
	}
	return statuses
}

// ActiveCount returns the number of active batches
func (r *Registry) ActiveCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// RequestStop sets the user's stop flag and cancels the job context so
// in-flight external work is terminated. Returns false when no batch is active.
func (r *Registry) RequestStop(userID int64) bool {
	r.mu.RLock()
	entry, ok := r.entries[userID]
	r.mu.RUnlock()

	if !ok {
		return false
	}

	entry.handle.stopped.Store(true)
	if entry.handle.cancel != nil {
		entry.handle.cancel()
	}
	return true
}

// RequestStopAll sets the process-wide stop flag and cancels every active job
func (r *Registry) RequestStopAll() {
	r.stopAll.Store(true)

	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, entry := range r.entries {
		if entry.handle.cancel != nil {
			entry.handle.cancel()
		}
	}
}
