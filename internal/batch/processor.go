package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"batch-video-downloader/pkg/models"
)

// Processor runs one batch job: resolve, download, deliver, clean up,
// publishing aggregate status after every item
type Processor struct {
	resolver Resolver
	media    MediaDownloader
	playlist PlaylistDownloader
	notifier Notifier
	uploader Uploader
	registry *Registry
	logger   *slog.Logger
}

// NewProcessor creates a batch processor
func NewProcessor(resolver Resolver, media MediaDownloader, playlist PlaylistDownloader, notifier Notifier, uploader Uploader, registry *Registry) *Processor {
	return &Processor{
		resolver: resolver,
		media:    media,
		playlist: playlist,
		notifier: notifier,
		uploader: uploader,
		registry: registry,
		logger:   slog.Default(),
	}
}

// Run processes the job's links in ascending index order, one at a time,
// starting at job.StartIndex. Per-item failures never abort the batch.
// On return the registry entry is removed and a final summary published.
func (p *Processor) Run(ctx context.Context, job *models.BatchJob, handle *Handle, workDir string) models.DownloadStatus {
	status := models.DownloadStatus{
		UserID:        job.UserID,
		State:         models.StateRunning,
		Total:         len(job.Links),
		StartedAt:     time.Now(),
		LastUpdatedAt: time.Now(),
	}
	p.registry.Publish(job.UserID, status)

	// Terminal publishing must survive the job context being canceled by stop
	finalCtx := context.WithoutCancel(ctx)

	defer func() {
		if job.ThumbPath != "" {
			os.Remove(job.ThumbPath)
		}
	}()

	for i := job.StartIndex - 1; i < len(job.Links); i++ {
		if handle.Stopped() {
			status.State = models.StateStopped
			p.logger.Info("Batch stopped", "user_id", job.UserID, "batch", job.BatchName)
			break
		}

		entry := job.Links[i]
		status.Current = fmt.Sprintf("Processing %d/%d", entry.Index, status.Total)
		p.publish(finalCtx, job, &status)

		itemStart := time.Now()
		p.processItem(ctx, job, entry, workDir, &status)

		status.Current = fmt.Sprintf("Finished %d/%d in %s", entry.Index, status.Total, time.Since(itemStart).Round(time.Second))
		p.publish(finalCtx, job, &status)
	}

	if status.State != models.StateStopped {
		status.State = models.StateCompleted
	}

	p.registry.Remove(job.UserID)
	p.publishFinal(finalCtx, job, &status)

	return status
}

// processItem runs resolution, download, delivery, and local cleanup for
// one link, updating the completed/failed counters
func (p *Processor) processItem(ctx context.Context, job *models.BatchJob, entry models.LinkEntry, workDir string, status *models.DownloadStatus) {
	target, err := p.resolver.Resolve(ctx, entry.RawURL)
	if err != nil {
		status.Failed++
		p.logger.Warn("Resolution failed", "user_id", job.UserID, "url", entry.RawURL, "error", err)
		p.notify(ctx, fmt.Sprintf("Failed to resolve: %s (%v)", entry.RawURL, err))
		return
	}

	name := OutputBaseName(entry.Index, target.MediaURL)
	outputPath := filepath.Join(workDir, name)

	if err := p.download(ctx, target, job.Quality, outputPath); err != nil {
		status.Failed++
		p.logger.Warn("Download failed", "user_id", job.UserID, "name", name, "error", err)
		p.notify(ctx, fmt.Sprintf("Download failed for: %s", name))
		return
	}

	// The local file is removed whether delivery succeeds or is abandoned
	defer os.Remove(outputPath)

	if err := p.deliver(ctx, job, entry, name, outputPath); err != nil {
		status.Failed++
		p.logger.Warn("Delivery failed", "user_id", job.UserID, "name", name, "error", err)
		p.notify(ctx, fmt.Sprintf("Failed to send file: %s (%v)", name, err))
		return
	}

	status.Completed++
}

// download routes encrypted HLS targets to the in-process playlist fetcher
// and everything else to the external tool
func (p *Processor) download(ctx context.Context, target *models.ResolvedTarget, quality models.Quality, outputPath string) error {
	if target.Kind == models.KindHLSEncrypted {
		return p.playlist.Download(ctx, target.MediaURL, "", outputPath)
	}
	return p.media.Download(ctx, target, quality, outputPath)
}

// deliver sends the artifact, honoring exactly one rate-limit retry after
// the signaled delay. A second rate limit counts the item as failed.
func (p *Processor) deliver(ctx context.Context, job *models.BatchJob, entry models.LinkEntry, name, outputPath string) error {
	artifact := Artifact{
		Path:      outputPath,
		Name:      name,
		Caption:   itemCaption(job, entry, name),
		ThumbPath: job.ThumbPath,
	}

	err := p.uploader.SendVideo(ctx, artifact)
	var rateLimit *RateLimitError
	if !errors.As(err, &rateLimit) {
		return err
	}

	p.logger.Warn("Delivery rate limited", "user_id", job.UserID, "wait", rateLimit.RetryAfter)
	select {
	case <-time.After(rateLimit.RetryAfter):
	case <-ctx.Done():
		return ctx.Err()
	}

	return p.uploader.SendVideo(ctx, artifact)
}

func (p *Processor) publish(ctx context.Context, job *models.BatchJob, status *models.DownloadStatus) {
	status.LastUpdatedAt = time.Now()
	p.registry.Publish(job.UserID, *status)

	text := fmt.Sprintf("Batch %q: %d total, %d completed, %d failed. %s",
		job.BatchName, status.Total, status.Completed, status.Failed, status.Current)
	if err := p.notifier.PublishStatus(ctx, text); err != nil {
		p.logger.Warn("Failed to publish status", "user_id", job.UserID, "error", err)
	}
}

func (p *Processor) publishFinal(ctx context.Context, job *models.BatchJob, status *models.DownloadStatus) {
	elapsed := time.Since(status.StartedAt).Round(time.Second)

	var headline string
	if status.State == models.StateStopped {
		headline = "Batch stopped"
	} else {
		headline = "Batch completed"
	}

	text := fmt.Sprintf("%s: %q: %d total, %d completed, %d failed in %s",
		headline, job.BatchName, status.Total, status.Completed, status.Failed, elapsed)
	if err := p.notifier.PublishStatus(ctx, text); err != nil {
		p.logger.Warn("Failed to publish final status", "user_id", job.UserID, "error", err)
	}

	p.logger.Info("Batch finished",
		"user_id", job.UserID,
		"batch", job.BatchName,
		"state", status.State,
		"completed", status.Completed,
		"failed", status.Failed,
		"elapsed", elapsed)
}

func (p *Processor) notify(ctx context.Context, text string) {
	if err := p.notifier.Notify(ctx, text); err != nil {
		p.logger.Warn("Failed to notify requester", "error", err)
	}
}

// itemCaption builds the delivery caption with batch label, position and quality
func itemCaption(job *models.BatchJob, entry models.LinkEntry, name string) string {
	caption := fmt.Sprintf("Batch: %s\nFile %d/%d: %s\nQuality: %s",
		job.BatchName, entry.Index, len(job.Links), name, job.Quality)
	if job.Caption != "" {
		caption += "\n\n" + job.Caption
	}
	return caption
}
