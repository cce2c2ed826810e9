// Package extractor normalizes raw link-list text into ordered link entries
package extractor

import (
	"errors"
	"strings"

	"batch-video-downloader/pkg/models"
)

// ErrEmptyBatch is returned when no usable links remain after filtering
var ErrEmptyBatch = errors.New("no valid links found")

// Extract parses multi-line text into link entries. Blank lines and lines
// starting with '#' are dropped; lines without a scheme separator get an
// https:// prefix. Indices are 1-based over the surviving lines.
func Extract(text string) ([]models.LinkEntry, error) {
	var entries []models.LinkEntry

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if !strings.Contains(line, "://") {
			line = "https://" + line
		}
		entries = append(entries, models.LinkEntry{
			Index:  len(entries) + 1,
			RawURL: line,
		})
	}

	if len(entries) == 0 {
		return nil, ErrEmptyBatch
	}

	return entries, nil
}
