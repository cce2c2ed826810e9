package resolver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"batch-video-downloader/pkg/models"
)

// Classplus resolves videos.classplusapp links through the signed-URL
// issuance API. The access token is configuration, never hardcoded.
type Classplus struct {
	baseURL     string
	accessToken string
	httpClient  *http.Client
}

// classplusSignedURLResponse is the issuance API payload
type classplusSignedURLResponse struct {
	URL string `json:"url"`
}

// NewClassplus creates a Classplus resolver
func NewClassplus(apiBaseURL, accessToken string) *Classplus {
	return &Classplus{
		baseURL:     apiBaseURL,
		accessToken: accessToken,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Matches reports whether the URL is a Classplus video link
func (c *Classplus) Matches(rawURL string) bool {
	return strings.Contains(rawURL, "videos.classplusapp")
}

// Resolve requests a signed playback URL for the video
func (c *Classplus) Resolve(ctx context.Context, rawURL string) (*models.ResolvedTarget, error) {
	endpoint := fmt.Sprintf("%s/cams/uploader/video/jw-signed-url?url=%s", c.baseURL, url.QueryEscape(rawURL))

	req, err := http.NewRequestWithContext(ctx, "GET", endpoint, nil)
	if err != nil {
		return nil, &Error{Kind: KindAuthOrNetwork, URL: rawURL, Err: err}
	}
	req.Header.Set("x-access-token", c.accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &Error{Kind: KindAuthOrNetwork, URL: rawURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &Error{
			Kind: KindAuthOrNetwork,
			URL:  rawURL,
			Err:  fmt.Errorf("signed-url API returned status %d", resp.StatusCode),
		}
	}

	var payload classplusSignedURLResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, &Error{Kind: KindAuthOrNetwork, URL: rawURL, Err: fmt.Errorf("failed to decode response: %w", err)}
	}

	if payload.URL == "" {
		return nil, &Error{Kind: KindAuthOrNetwork, URL: rawURL, Err: fmt.Errorf("signed-url API returned no url")}
	}

	return &models.ResolvedTarget{
		SourceURL: rawURL,
		MediaURL:  payload.URL,
		Kind:      kindForURL(payload.URL),
	}, nil
}
