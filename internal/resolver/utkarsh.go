package resolver

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"batch-video-downloader/pkg/models"
)

const utkarshReferer = "https://www.utkarsh.com/"

var (
	utkarshIDPattern   = regexp.MustCompile(`id=([^&]+)`)
	manifestURLPattern = regexp.MustCompile(`https?://[^\s"']+\.m3u8[^\s"']*`)
)

// Utkarsh resolves Utkarsh Classes app links via the platform content API,
// falling back to scanning the page for a manifest URL when the API misses
type Utkarsh struct {
	baseURL    string
	httpClient *http.Client
}

// utkarshVideoResponse is the content API payload; either URL field may be set
type utkarshVideoResponse struct {
	VideoURL string `json:"video_url"`
	M3U8URL  string `json:"m3u8_url"`
}

// NewUtkarsh creates an Utkarsh resolver against the given API base URL
func NewUtkarsh(apiBaseURL string) *Utkarsh {
	return &Utkarsh{
		baseURL: apiBaseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Matches reports whether the URL carries the Utkarsh app marker
func (u *Utkarsh) Matches(rawURL string) bool {
	return strings.Contains(rawURL, "utkarshnew.android")
}

// Resolve queries the content API by extracted id, then falls back to
// fetching the page and scanning for a manifest URL
func (u *Utkarsh) Resolve(ctx context.Context, rawURL string) (*models.ResolvedTarget, error) {
	if mediaURL := u.resolveViaAPI(ctx, rawURL); mediaURL != "" {
		return &models.ResolvedTarget{
			SourceURL: rawURL,
			MediaURL:  mediaURL,
			Kind:      utkarshKind(mediaURL),
		}, nil
	}

	mediaURL, err := u.resolveViaPage(ctx, rawURL)
	if err != nil {
		return nil, err
	}

	return &models.ResolvedTarget{
		SourceURL: rawURL,
		MediaURL:  mediaURL,
		Kind:      utkarshKind(mediaURL),
	}, nil
}

// resolveViaAPI returns the media URL from the content API, or "" on any miss
func (u *Utkarsh) resolveViaAPI(ctx context.Context, rawURL string) string {
	match := utkarshIDPattern.FindStringSubmatch(rawURL)
	if match == nil {
		return ""
	}
	videoID := match[1]

	endpoint := fmt.Sprintf("%s/v1/videos/%s", u.baseURL, videoID)
	req, err := http.NewRequestWithContext(ctx, "GET", endpoint, nil)
	if err != nil {
		return ""
	}
	u.setHeaders(req)

	resp, err := u.httpClient.Do(req)
	if err != nil {
		return ""
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return ""
	}

	var payload utkarshVideoResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return ""
	}

	if payload.VideoURL != "" {
		return payload.VideoURL
	}
	return payload.M3U8URL
}

// resolveViaPage fetches the URL directly, follows redirects, and scans the
// final URL and page body for the first m3u8 manifest URL
func (u *Utkarsh) resolveViaPage(ctx context.Context, rawURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", rawURL, nil)
	if err != nil {
		return "", &Error{Kind: KindAuthOrNetwork, URL: rawURL, Err: err}
	}
	u.setHeaders(req)

	resp, err := u.httpClient.Do(req)
	if err != nil {
		return "", &Error{Kind: KindAuthOrNetwork, URL: rawURL, Err: err}
	}
	defer resp.Body.Close()

	// Redirects may land straight on the manifest
	finalURL := resp.Request.URL.String()
	if strings.Contains(finalURL, ".m3u8") {
		return finalURL, nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return "", &Error{Kind: KindAuthOrNetwork, URL: rawURL, Err: err}
	}

	if match := manifestURLPattern.FindString(string(body)); match != "" {
		return match, nil
	}

	return "", &Error{Kind: KindNotFound, URL: rawURL, Err: fmt.Errorf("no manifest URL in page")}
}

func (u *Utkarsh) setHeaders(req *http.Request) {
	req.Header.Set("User-Agent", BrowserUserAgent)
	req.Header.Set("Referer", utkarshReferer)
}

// utkarshKind routes platform manifests to the in-process HLS fetcher,
// which decrypts AES-128 streams and handles clear ones the same way
func utkarshKind(mediaURL string) models.TargetKind {
	if strings.Contains(mediaURL, ".m3u8") {
		return models.KindHLSEncrypted
	}
	return models.KindDirect
}
