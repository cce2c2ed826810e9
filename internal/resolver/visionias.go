package resolver

import (
	"context"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"batch-video-downloader/pkg/models"
)

var visionPlaylistPattern = regexp.MustCompile(`(https://.*?playlist\.m3u8.*?)"`)

// VisionIAS resolves visionias pages by scanning the page body for the
// playlist manifest URL. When no manifest is found the URL passes through
// unresolved; the subsequent download will report the failure.
type VisionIAS struct {
	httpClient *http.Client
}

// NewVisionIAS creates a VisionIAS resolver
func NewVisionIAS() *VisionIAS {
	return &VisionIAS{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Matches reports whether the URL is a VisionIAS page
func (v *VisionIAS) Matches(rawURL string) bool {
	return strings.Contains(rawURL, "visionias")
}

// Resolve fetches the page and extracts the playlist URL if present
func (v *VisionIAS) Resolve(ctx context.Context, rawURL string) (*models.ResolvedTarget, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", rawURL, nil)
	if err != nil {
		return nil, &Error{Kind: KindAuthOrNetwork, URL: rawURL, Err: err}
	}
	req.Header.Set("User-Agent", BrowserUserAgent)

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return nil, &Error{Kind: KindAuthOrNetwork, URL: rawURL, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, &Error{Kind: KindAuthOrNetwork, URL: rawURL, Err: err}
	}

	if match := visionPlaylistPattern.FindStringSubmatch(string(body)); match != nil {
		return &models.ResolvedTarget{
			SourceURL: rawURL,
			MediaURL:  match[1],
			Kind:      models.KindHLSPlain,
		}, nil
	}

	// No manifest found: pass the URL through and let the download fail loudly
	return &models.ResolvedTarget{
		SourceURL: rawURL,
		MediaURL:  rawURL,
		Kind:      models.KindDirect,
	}, nil
}
