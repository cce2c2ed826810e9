package resolver

import (
	"context"
	"fmt"
	"strings"

	"batch-video-downloader/pkg/models"
)

// MPDRewrite maps DASH master.mpd URLs onto the sibling master.m3u8 under
// the CDN host, using the path segment before the filename as the CDN id
type MPDRewrite struct {
	cdnHost string
}

// NewMPDRewrite creates an MPD-to-M3U8 rewriter for the given CDN host
func NewMPDRewrite(cdnHost string) *MPDRewrite {
	return &MPDRewrite{cdnHost: cdnHost}
}

// Matches reports whether the URL path carries a master.mpd manifest
func (m *MPDRewrite) Matches(rawURL string) bool {
	return strings.Contains(rawURL, "/master.mpd")
}

// Resolve derives the m3u8 manifest URL from the mpd path
func (m *MPDRewrite) Resolve(_ context.Context, rawURL string) (*models.ResolvedTarget, error) {
	parts := strings.Split(rawURL, "/")
	if len(parts) < 2 {
		return nil, &Error{Kind: KindNotFound, URL: rawURL, Err: fmt.Errorf("no CDN id in path")}
	}
	cdnID := parts[len(parts)-2]

	return &models.ResolvedTarget{
		SourceURL: rawURL,
		MediaURL:  fmt.Sprintf("https://%s/%s/master.m3u8", m.cdnHost, cdnID),
		Kind:      models.KindHLSPlain,
	}, nil
}
