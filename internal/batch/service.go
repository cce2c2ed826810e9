package batch

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"batch-video-downloader/pkg/models"
)

// Service admits batch jobs, bounds how many run at once, and coordinates
// process-wide shutdown
type Service struct {
	processor *Processor
	registry  *Registry
	admin     AdminNotifier
	cleaner   Cleaner
	basePath  string
	sem       chan struct{}
	terminate func()
	wg        sync.WaitGroup
	logger    *slog.Logger
}

// NewService creates the batch service. cleaner reclaims a user's working
// directory after their batch ends; terminate is the best-effort
// external-process kill invoked on shutdown (both may be nil).
func NewService(processor *Processor, registry *Registry, admin AdminNotifier, cleaner Cleaner, basePath string, maxConcurrent int, terminate func()) *Service {
	return &Service{
		processor: processor,
		registry:  registry,
		admin:     admin,
		cleaner:   cleaner,
		basePath:  basePath,
		sem:       make(chan struct{}, maxConcurrent),
		terminate: terminate,
		logger:    slog.Default(),
	}
}

// Start admits the job and launches its processing task. Admission fails
// when the user already has an active batch, the link list is empty, or
// the working directory cannot be created.
func (s *Service) Start(ctx context.Context, job *models.BatchJob) error {
	if len(job.Links) == 0 {
		return fmt.Errorf("batch has no links")
	}
	if job.StartIndex < 1 || job.StartIndex > len(job.Links) {
		return fmt.Errorf("start index %d out of range 1..%d", job.StartIndex, len(job.Links))
	}

	workDir := filepath.Join(s.basePath, strconv.FormatInt(job.UserID, 10))
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return fmt.Errorf("failed to create working directory: %w", err)
	}

	// The job outlives the admission call: HTTP request contexts are
	// canceled as soon as the submit response is written, so only the
	// caller's values carry over. Cancellation comes from stop requests.
	jobCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))

	now := time.Now()
	handle, err := s.registry.Register(job.UserID, models.DownloadStatus{
		UserID:        job.UserID,
		State:         models.StatePending,
		Total:         len(job.Links),
		StartedAt:     now,
		LastUpdatedAt: now,
	}, cancel)
	if err != nil {
		cancel()
		return err
	}

	s.logger.Info("Batch admitted",
		"job_id", job.ID,
		"user_id", job.UserID,
		"links", len(job.Links),
		"start_index", job.StartIndex,
		"quality", job.Quality.String())

	s.wg.Add(1)
	go s.runTask(jobCtx, cancel, job, handle, workDir)

	return nil
}

// runTask waits for a worker slot then drives the processor. Panics are
// surfaced to the administrator and never take down the scheduler.
func (s *Service) runTask(ctx context.Context, cancel context.CancelFunc, job *models.BatchJob, handle *Handle, workDir string) {
	defer s.wg.Done()
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			s.registry.Remove(job.UserID)
			s.logger.Error("Batch task panicked", "job_id", job.ID, "user_id", job.UserID, "panic", r)
			s.notifyAdmin(fmt.Sprintf("Batch task error (user %d): %v", job.UserID, r))
		}
	}()

	select {
	case s.sem <- struct{}{}:
		defer func() { <-s.sem }()
	case <-ctx.Done():
		s.registry.Remove(job.UserID)
		s.removeWorkDir(job.UserID)
		s.logger.Info("Batch canceled while queued", "job_id", job.ID, "user_id", job.UserID)
		return
	}

	s.processor.Run(ctx, job, handle, workDir)
	s.removeWorkDir(job.UserID)
}

// removeWorkDir reclaims the user's working directory once their batch ends
func (s *Service) removeWorkDir(userID int64) {
	if s.cleaner == nil {
		return
	}
	if err := s.cleaner.RemoveUserDir(userID); err != nil {
		s.logger.Warn("Failed to remove user working directory", "user_id", userID, "error", err)
	}
}

// Stop requests cooperative cancellation of one user's batch
func (s *Service) Stop(userID int64) bool {
	return s.registry.RequestStop(userID)
}

// Shutdown stops every batch, terminates known external tool processes,
// and waits for all tasks to acknowledge, bounded by ctx
func (s *Service) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down batch service", "active", s.registry.ActiveCount())

	s.registry.RequestStopAll()
	if s.terminate != nil {
		s.terminate()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("All batch tasks finished")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("batch service shutdown timed out: %w", ctx.Err())
	}
}

func (s *Service) notifyAdmin(text string) {
	if s.admin == nil {
		return
	}
	ctx, cancelNotify := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelNotify()
	if err := s.admin.NotifyAdmin(ctx, text); err != nil {
		s.logger.Warn("Failed to notify admin", "error", err)
	}
}
