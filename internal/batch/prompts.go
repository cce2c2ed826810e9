package batch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"batch-video-downloader/pkg/models"
)

const defaultBatchName = "batch"

// Options are the batch parameters collected from the requesting user
type Options struct {
	StartIndex int
	BatchName  string
	Quality    models.Quality
	Caption    string
	ThumbURL   string
}

// CollectOptions runs the fixed prompt sequence. Every prompt is
// non-critical: a timeout or unusable reply falls back to a default
// instead of aborting the batch.
func CollectOptions(ctx context.Context, prompter Prompter, linkCount int, timeout time.Duration) (*Options, error) {
	opts := &Options{
		StartIndex: 1,
		BatchName:  defaultBatchName,
		Quality:    models.QualityUnknown,
	}

	reply, err := prompter.Ask(ctx, fmt.Sprintf("Total links found: %d. Send starting index (default is 1)", linkCount), timeout)
	if err == nil {
		if idx, convErr := strconv.Atoi(strings.TrimSpace(reply)); convErr == nil && idx >= 1 && idx <= linkCount {
			opts.StartIndex = idx
		}
	} else if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	reply, err = prompter.Ask(ctx, "Enter batch name", timeout)
	if err == nil && strings.TrimSpace(reply) != "" {
		opts.BatchName = strings.TrimSpace(reply)
	} else if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	reply, err = prompter.Ask(ctx, "Select quality (144,240,360,480,720,1080)", timeout)
	if err == nil {
		opts.Quality = models.ParseQuality(strings.TrimSpace(reply))
	} else if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	reply, err = prompter.Ask(ctx, "Enter caption (or send 'no' for none)", timeout)
	if err == nil && !strings.EqualFold(strings.TrimSpace(reply), "no") {
		opts.Caption = reply
	} else if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	reply, err = prompter.Ask(ctx, "Send thumbnail URL (or 'no' for none)", timeout)
	if err == nil {
		reply = strings.TrimSpace(reply)
		if strings.HasPrefix(reply, "http://") || strings.HasPrefix(reply, "https://") {
			opts.ThumbURL = reply
		}
	} else if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	return opts, nil
}

var thumbClient = &http.Client{Timeout: 30 * time.Second}

// DownloadThumbnail fetches the thumbnail URL into destPath
func DownloadThumbnail(ctx context.Context, thumbURL, destPath string) error {
	req, err := http.NewRequestWithContext(ctx, "GET", thumbURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := thumbClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to fetch thumbnail: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("thumbnail server returned status %d", resp.StatusCode)
	}

	file, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("failed to create thumbnail file: %w", err)
	}
	defer file.Close()

	if _, err := io.Copy(file, resp.Body); err != nil {
		os.Remove(destPath)
		return fmt.Errorf("failed to write thumbnail: %w", err)
	}

	return nil
}
