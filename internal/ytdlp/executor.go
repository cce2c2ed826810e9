// Package ytdlp invokes the external yt-dlp tool for media downloads
package ytdlp

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"

	"batch-video-downloader/pkg/models"
)

// InvocationError means the external tool failed or produced no file
type InvocationError struct {
	URL string
	Err error
}

func (e *InvocationError) Error() string {
	return fmt.Sprintf("download %s: %v", e.URL, e.Err)
}

func (e *InvocationError) Unwrap() error {
	return e.Err
}

// CommandRunner abstracts the external process invocation
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) error
}

// execRunner runs the real process, keeping the output tail for errors
type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		tail := string(out)
		if len(tail) > 512 {
			tail = tail[len(tail)-512:]
		}
		return fmt.Errorf("%w: %s", err, strings.TrimSpace(tail))
	}
	return nil
}

// Executor builds and runs yt-dlp invocations
type Executor struct {
	binPath  string
	runner   CommandRunner
	timeout  time.Duration
	fileWait time.Duration
	logger   *slog.Logger
}

// NewExecutor creates an executor using the given yt-dlp binary path.
// timeout caps one invocation (0 means unbounded); fileWait is how long to
// wait for the output file to land after a clean exit, since the tool may
// still be renaming merged output when it returns.
func NewExecutor(binPath string, timeout, fileWait time.Duration) *Executor {
	return &Executor{
		binPath:  binPath,
		runner:   execRunner{},
		timeout:  timeout,
		fileWait: fileWait,
		logger:   slog.Default(),
	}
}

// Download fetches the target into outputPath with the quality ceiling.
// Success requires both a zero exit status and an existing output file.
func (e *Executor) Download(ctx context.Context, target *models.ResolvedTarget, quality models.Quality, outputPath string) error {
	args := commandArgs(target.MediaURL, quality, outputPath)

	e.logger.Info("Invoking downloader", "url", target.MediaURL, "quality", quality.String(), "output", outputPath)

	runCtx := ctx
	if e.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	if err := e.runner.Run(runCtx, e.binPath, args...); err != nil {
		return &InvocationError{URL: target.MediaURL, Err: err}
	}

	if err := e.waitForFile(ctx, outputPath); err != nil {
		return &InvocationError{URL: target.MediaURL, Err: err}
	}

	return nil
}

// waitForFile polls for the output file until it appears or fileWait elapses
func (e *Executor) waitForFile(ctx context.Context, outputPath string) error {
	deadline := time.Now().Add(e.fileWait)
	for {
		if _, err := os.Stat(outputPath); err == nil {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("tool exited cleanly but produced no output file")
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(500 * time.Millisecond):
		}
	}
}

// commandArgs selects the invocation strategy by URL shape
func commandArgs(mediaURL string, quality models.Quality, outputPath string) []string {
	h := quality.Height()

	switch {
	case strings.Contains(mediaURL, "youtu"):
		format := "bestvideo+bestaudio/best"
		if h > 0 {
			format = fmt.Sprintf("bestvideo[height<=%d]+bestaudio/best[height<=%d]", h, h)
		}
		return []string{
			"-f", format,
			"--merge-output-format", "mkv",
			"--no-part", "--hls-use-mpegts",
			mediaURL, "-o", outputPath,
		}
	case strings.Contains(mediaURL, "m3u8") || strings.Contains(mediaURL, "mpd"):
		return []string{
			"-f", bestFormat(h),
			"--hls-use-mpegts", "--no-part",
			mediaURL, "-o", outputPath,
		}
	default:
		return []string{
			"-f", bestFormat(h),
			"--no-part",
			mediaURL, "-o", outputPath,
		}
	}
}

func bestFormat(height int) string {
	if height > 0 {
		return fmt.Sprintf("best[height<=%d]", height)
	}
	return "best"
}

// TerminateAll sends a best-effort kill to known external tool processes.
// Used on stop and shutdown for work that cannot observe a context mid-call.
func TerminateAll() {
	for _, proc := range []string{"yt-dlp", "ffmpeg", "aria2c"} {
		// pkill exits non-zero when nothing matched; that is fine
		_ = exec.Command("pkill", "-9", proc).Run()
	}
}
