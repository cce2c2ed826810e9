package batch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"batch-video-downloader/pkg/models"
)

//go:generate mockgen -source=interfaces.go -destination=mocks/mock_interfaces.go -package=mocks

// ErrPromptTimeout is returned by a Prompter when the reply window closes.
// Non-critical prompts fall back to defaults instead of failing the batch.
var ErrPromptTimeout = errors.New("prompt timed out")

// Artifact is a produced media file handed to the delivery sink
type Artifact struct {
	Path      string
	Name      string
	Caption   string
	ThumbPath string
}

// RateLimitError signals the sink wants a pause of RetryAfter before the
// delivery is retried. The processor retries exactly once.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("delivery rate limited, retry after %s", e.RetryAfter)
}

// Prompter asks the requesting user a question and waits for the reply
type Prompter interface {
	Ask(ctx context.Context, prompt string, timeout time.Duration) (string, error)
}

// Notifier carries progress and per-item notices back to the requester
type Notifier interface {
	// Notify sends a one-off notice (item failures, warnings)
	Notify(ctx context.Context, text string) error
	// PublishStatus updates the running status message
	PublishStatus(ctx context.Context, text string) error
}

// Uploader delivers a finished artifact to the destination
type Uploader interface {
	SendVideo(ctx context.Context, artifact Artifact) error
}

// AdminNotifier sends out-of-band notices to the administrator
type AdminNotifier interface {
	NotifyAdmin(ctx context.Context, text string) error
}

// Cleaner reclaims a user's working directory once their batch ends
type Cleaner interface {
	RemoveUserDir(userID int64) error
}

// Resolver maps a raw URL to a fetchable media target
type Resolver interface {
	Resolve(ctx context.Context, rawURL string) (*models.ResolvedTarget, error)
}

// MediaDownloader fetches direct and plain-HLS targets via the external tool
type MediaDownloader interface {
	Download(ctx context.Context, target *models.ResolvedTarget, quality models.Quality, outputPath string) error
}

// PlaylistDownloader fetches and decrypts segmented HLS streams in-process
type PlaylistDownloader interface {
	Download(ctx context.Context, manifestURL, keyURL, outputPath string) error
}
