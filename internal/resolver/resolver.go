// Package resolver maps platform-specific video URLs to fetchable media URLs
package resolver

import (
	"context"
	"fmt"
	"strings"

	"batch-video-downloader/pkg/models"
)

// BrowserUserAgent is sent on page fetches; several hosts refuse non-browser clients
const BrowserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"

// ErrorKind classifies resolution failures
type ErrorKind string

const (
	// KindNotFound means the platform had no media for the URL
	KindNotFound ErrorKind = "not_found"
	// KindAuthOrNetwork covers credential rejection and transport failures
	KindAuthOrNetwork ErrorKind = "auth_or_network"
)

// Error is a resolution failure for one URL. Non-fatal to a batch:
// the processor counts the item as failed and moves on.
type Error struct {
	Kind ErrorKind
	URL  string
	Err  error
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("resolve %s: %s: %v", e.URL, e.Kind, e.Err)
	}
	return fmt.Sprintf("resolve %s: %s", e.URL, e.Kind)
}

// Unwrap returns the underlying cause
func (e *Error) Unwrap() error {
	return e.Err
}

// Resolver converts a platform URL into a resolved media target
type Resolver interface {
	// Matches reports whether this resolver handles the URL
	Matches(rawURL string) bool
	// Resolve produces the final fetchable media URL
	Resolve(ctx context.Context, rawURL string) (*models.ResolvedTarget, error)
}

// Chain dispatches a URL to the first matching resolver in order.
// The last entry is expected to match everything (passthrough).
type Chain struct {
	resolvers []Resolver
}

// NewChain builds a chain with the given dispatch order
func NewChain(resolvers ...Resolver) *Chain {
	return &Chain{resolvers: resolvers}
}

// Resolve runs the URL through the chain. Returns a resolver Error or a
// wrapped transport error on failure.
func (c *Chain) Resolve(ctx context.Context, rawURL string) (*models.ResolvedTarget, error) {
	for _, r := range c.resolvers {
		if r.Matches(rawURL) {
			return r.Resolve(ctx, rawURL)
		}
	}
	return nil, &Error{Kind: KindNotFound, URL: rawURL, Err: fmt.Errorf("no resolver matched")}
}

// Passthrough returns the URL unchanged; terminal element of the chain
type Passthrough struct{}

// NewPassthrough creates the fallback resolver
func NewPassthrough() *Passthrough {
	return &Passthrough{}
}

// Matches always matches
func (p *Passthrough) Matches(rawURL string) bool {
	return true
}

// Resolve returns the URL as-is, classified by shape
func (p *Passthrough) Resolve(_ context.Context, rawURL string) (*models.ResolvedTarget, error) {
	return &models.ResolvedTarget{
		SourceURL: rawURL,
		MediaURL:  rawURL,
		Kind:      kindForURL(rawURL),
	}, nil
}

// kindForURL classifies a media URL by its shape
func kindForURL(mediaURL string) models.TargetKind {
	if strings.Contains(mediaURL, ".m3u8") {
		return models.KindHLSPlain
	}
	return models.KindDirect
}
