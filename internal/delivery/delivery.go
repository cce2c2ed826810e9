// Package delivery implements the outbound side of a batch: moving finished
// videos into the delivery area and posting notices to an optional webhook
package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"batch-video-downloader/internal/batch"
)

// FileStore delivers finished videos into a per-user directory under the
// delivery root, writing the caption alongside as a .txt file
type FileStore struct {
	root   string
	logger *slog.Logger
}

// NewFileStore creates a file store rooted at root
func NewFileStore(root string) *FileStore {
	return &FileStore{
		root:   root,
		logger: slog.Default(),
	}
}

// SendVideo moves the artifact into the user's delivery directory
func (f *FileStore) SendVideo(ctx context.Context, artifact batch.Artifact) error {
	dir := f.root
	if userID := userIDFromPath(artifact.Path); userID != "" {
		dir = filepath.Join(f.root, userID)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create delivery directory: %w", err)
	}

	dest := filepath.Join(dir, artifact.Name)
	if err := moveFile(artifact.Path, dest); err != nil {
		return fmt.Errorf("failed to deliver %s: %w", artifact.Name, err)
	}

	if artifact.Caption != "" {
		captionPath := dest + ".txt"
		if err := os.WriteFile(captionPath, []byte(artifact.Caption), 0o644); err != nil {
			f.logger.Warn("Failed to write caption file", "path", captionPath, "error", err)
		}
	}

	f.logger.Info("Delivered video", "name", artifact.Name, "dest", dest)
	return nil
}

// userIDFromPath extracts the numeric per-user directory name the batch
// working area uses, or "" when the layout doesn't match
func userIDFromPath(path string) string {
	parent := filepath.Base(filepath.Dir(path))
	if _, err := strconv.ParseInt(parent, 10, 64); err != nil {
		return ""
	}
	return parent
}

// moveFile renames when possible and falls back to copy+remove across
// filesystem boundaries
func moveFile(src, dest string) error {
	if err := os.Rename(src, dest); err == nil {
		return nil
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dest)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dest)
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Remove(src)
}

// Webhook posts notices and status updates as JSON to a configured URL.
// With no URL configured everything is logged instead, so the processor
// always has a working notifier.
type Webhook struct {
	url         string
	adminUserID int64
	client      *http.Client
	logger      *slog.Logger
}

// NewWebhook creates a webhook notifier; url may be empty. Admin notices
// carry adminUserID so the receiving side can route them.
func NewWebhook(url string, adminUserID int64) *Webhook {
	return &Webhook{
		url:         url,
		adminUserID: adminUserID,
		client:      &http.Client{Timeout: 15 * time.Second},
		logger:      slog.Default(),
	}
}

// Notify posts a per-item notice
func (w *Webhook) Notify(ctx context.Context, text string) error {
	return w.post(ctx, "notice", text)
}

// PublishStatus posts a batch status line
func (w *Webhook) PublishStatus(ctx context.Context, text string) error {
	return w.post(ctx, "status", text)
}

// NotifyAdmin posts an administrative alert
func (w *Webhook) NotifyAdmin(ctx context.Context, text string) error {
	return w.post(ctx, "admin", text)
}

func (w *Webhook) post(ctx context.Context, kind, text string) error {
	if w.url == "" {
		w.logger.Info("Batch notice", "kind", kind, "text", text)
		return nil
	}

	body := map[string]any{"kind": kind, "text": text}
	if kind == "admin" && w.adminUserID != 0 {
		body["admin_user_id"] = w.adminUserID
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return &batch.RateLimitError{RetryAfter: retryAfter(resp)}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

// retryAfter reads the Retry-After header in seconds, defaulting to 5s
func retryAfter(resp *http.Response) time.Duration {
	if v := resp.Header.Get("Retry-After"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}
	return 5 * time.Second
}
