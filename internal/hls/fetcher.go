// Package hls downloads M3U8 playlists, decrypting AES-128 streams
package hls

import (
	"bytes"
	"context"
	"crypto/aes"
	"crypto/cipher"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/grafov/m3u8"
)

const aes128BlockSize = 16

// PlaylistError means the manifest could not be fetched or parsed
type PlaylistError struct {
	URL string
	Err error
}

func (e *PlaylistError) Error() string {
	return fmt.Sprintf("fetch playlist %s: %v", e.URL, e.Err)
}

func (e *PlaylistError) Unwrap() error {
	return e.Err
}

// SegmentError names the segment (0-based playlist order) that failed.
// The fetch aborts on the first failing segment.
type SegmentError struct {
	Index int
	URI   string
	Err   error
}

func (e *SegmentError) Error() string {
	return fmt.Sprintf("fetch segment %d (%s): %v", e.Index, e.URI, e.Err)
}

func (e *SegmentError) Unwrap() error {
	return e.Err
}

// Fetcher downloads and reassembles M3U8 media playlists
type Fetcher struct {
	httpClient *http.Client
	userAgent  string
	logger     *slog.Logger
}

// NewFetcher creates a playlist fetcher
func NewFetcher(userAgent string) *Fetcher {
	return &Fetcher{
		httpClient: &http.Client{
			Timeout: 5 * time.Minute,
		},
		userAgent: userAgent,
		logger:    slog.Default(),
	}
}

// Download fetches the playlist at manifestURL, decrypts segments when the
// playlist declares a key (keyURL overrides the declared key URI), and
// writes the concatenated media to outputPath in a single terminal write.
// The output file exists only if every segment succeeded.
func (f *Fetcher) Download(ctx context.Context, manifestURL, keyURL, outputPath string) error {
	playlist, err := f.fetchPlaylist(ctx, manifestURL)
	if err != nil {
		return err
	}

	base, err := url.Parse(manifestURL)
	if err != nil {
		return &PlaylistError{URL: manifestURL, Err: err}
	}

	// One CBC decrypter for the whole playlist: the stream uses a single
	// key and the cipher state chains across segments in order
	mode, err := f.buildDecrypter(ctx, playlist, base, keyURL)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	index := 0
	for _, seg := range playlist.Segments {
		if seg == nil {
			continue
		}

		data, err := f.fetchSegment(ctx, base, seg.URI)
		if err != nil {
			return &SegmentError{Index: index, URI: seg.URI, Err: err}
		}

		if mode != nil {
			if len(data)%aes128BlockSize != 0 {
				return &SegmentError{
					Index: index,
					URI:   seg.URI,
					Err:   fmt.Errorf("encrypted segment length %d not block-aligned", len(data)),
				}
			}
			mode.CryptBlocks(data, data)
		}

		buf.Write(data)
		f.logger.Debug("Segment fetched", "index", index, "bytes", len(data))
		index++
	}

	if err := os.WriteFile(outputPath, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}

	f.logger.Info("Playlist download complete", "url", manifestURL, "segments", index, "bytes", buf.Len())
	return nil
}

// fetchPlaylist downloads and parses the manifest as a media playlist
func (f *Fetcher) fetchPlaylist(ctx context.Context, manifestURL string) (*m3u8.MediaPlaylist, error) {
	body, err := f.get(ctx, manifestURL)
	if err != nil {
		return nil, &PlaylistError{URL: manifestURL, Err: err}
	}

	pl, listType, err := m3u8.DecodeFrom(bytes.NewReader(body), true)
	if err != nil {
		return nil, &PlaylistError{URL: manifestURL, Err: err}
	}
	if listType != m3u8.MEDIA {
		return nil, &PlaylistError{URL: manifestURL, Err: fmt.Errorf("not a media playlist")}
	}

	return pl.(*m3u8.MediaPlaylist), nil
}

// buildDecrypter fetches the key and constructs the CBC block mode, or
// returns nil when the playlist is unencrypted
func (f *Fetcher) buildDecrypter(ctx context.Context, playlist *m3u8.MediaPlaylist, base *url.URL, keyURL string) (cipher.BlockMode, error) {
	desc := playlistKey(playlist)
	if desc == nil || strings.EqualFold(desc.Method, "NONE") {
		return nil, nil
	}

	src := keyURL
	if src == "" {
		src = desc.URI
	}
	resolved, err := resolveRef(base, src)
	if err != nil {
		return nil, &PlaylistError{URL: src, Err: fmt.Errorf("bad key URI: %w", err)}
	}

	keyBytes, err := f.get(ctx, resolved)
	if err != nil {
		return nil, &PlaylistError{URL: resolved, Err: fmt.Errorf("failed to fetch key: %w", err)}
	}

	iv := make([]byte, aes128BlockSize)
	if desc.IV != "" {
		decoded, err := hex.DecodeString(strings.TrimPrefix(desc.IV, "0x"))
		if err == nil && len(decoded) == aes128BlockSize {
			iv = decoded
		}
	}

	block, err := aes.NewCipher(keyBytes)
	if err != nil {
		return nil, &PlaylistError{URL: resolved, Err: fmt.Errorf("bad key: %w", err)}
	}

	f.logger.Debug("Decrypting playlist", "key_url", resolved)
	return cipher.NewCBCDecrypter(block, iv), nil
}

// fetchSegment downloads one segment, resolving a relative URI against the
// manifest location
func (f *Fetcher) fetchSegment(ctx context.Context, base *url.URL, segURI string) ([]byte, error) {
	resolved, err := resolveRef(base, segURI)
	if err != nil {
		return nil, fmt.Errorf("bad segment URI: %w", err)
	}
	return f.get(ctx, resolved)
}

func (f *Fetcher) get(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("server returned status %d", resp.StatusCode)
	}

	return io.ReadAll(resp.Body)
}

// playlistKey returns the playlist-wide key descriptor, falling back to the
// first segment-level key. Key rotation mid-playlist is not supported.
func playlistKey(playlist *m3u8.MediaPlaylist) *m3u8.Key {
	if playlist.Key != nil {
		return playlist.Key
	}
	for _, seg := range playlist.Segments {
		if seg == nil {
			continue
		}
		if seg.Key != nil {
			return seg.Key
		}
	}
	return nil
}

func resolveRef(base *url.URL, ref string) (string, error) {
	parsed, err := url.Parse(ref)
	if err != nil {
		return "", err
	}
	return base.ResolveReference(parsed).String(), nil
}
