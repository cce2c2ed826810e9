package resolver

import (
	"context"
	"strings"

	"batch-video-downloader/pkg/models"
)

// Drive rewrites Google Drive share links into direct-download form.
// No network calls; the rewrite is purely textual.
type Drive struct{}

// NewDrive creates a Drive resolver
func NewDrive() *Drive {
	return &Drive{}
}

// Matches reports whether the URL is a Drive share link
func (d *Drive) Matches(rawURL string) bool {
	return strings.Contains(rawURL, "drive.google.com")
}

// Resolve turns file/d/<id>/view?usp=sharing into uc?export=download&id=<id>
func (d *Drive) Resolve(_ context.Context, rawURL string) (*models.ResolvedTarget, error) {
	mediaURL := strings.Replace(rawURL, "file/d/", "uc?export=download&id=", 1)
	mediaURL = strings.Replace(mediaURL, "/view?usp=sharing", "", 1)

	return &models.ResolvedTarget{
		SourceURL: rawURL,
		MediaURL:  mediaURL,
		Kind:      models.KindDirect,
	}, nil
}
