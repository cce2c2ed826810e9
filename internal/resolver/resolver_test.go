package resolver

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"batch-video-downloader/pkg/models"
)

func TestChain_DispatchOrder(t *testing.T) {
	chain := NewChain(
		NewUtkarsh("https://api.example.com"),
		NewDrive(),
		NewVisionIAS(),
		NewClassplus("https://api.example.com", "token"),
		NewMPDRewrite("cdn.example.com"),
		NewPassthrough(),
	)

	tests := []struct {
		name    string
		url     string
		wantURL string
		wantKnd models.TargetKind
	}{
		{
			name:    "drive link hits drive resolver",
			url:     "https://drive.google.com/file/d/abc123/view?usp=sharing",
			wantURL: "https://drive.google.com/uc?export=download&id=abc123",
			wantKnd: models.KindDirect,
		},
		{
			name:    "mpd link rewritten to cdn manifest",
			url:     "https://host.example.com/media/xyz789/master.mpd",
			wantURL: "https://cdn.example.com/xyz789/master.m3u8",
			wantKnd: models.KindHLSPlain,
		},
		{
			name:    "unmatched url passes through",
			url:     "https://example.com/video.mp4",
			wantURL: "https://example.com/video.mp4",
			wantKnd: models.KindDirect,
		},
		{
			name:    "unmatched manifest url classified as hls",
			url:     "https://example.com/stream/index.m3u8",
			wantURL: "https://example.com/stream/index.m3u8",
			wantKnd: models.KindHLSPlain,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			target, err := chain.Resolve(context.Background(), tt.url)
			require.NoError(t, err)
			require.Equal(t, tt.url, target.SourceURL)
			require.Equal(t, tt.wantURL, target.MediaURL)
			require.Equal(t, tt.wantKnd, target.Kind)
		})
	}
}

func TestDrive_Resolve(t *testing.T) {
	d := NewDrive()

	require.True(t, d.Matches("https://drive.google.com/file/d/abc/view?usp=sharing"))
	require.False(t, d.Matches("https://example.com/file"))

	target, err := d.Resolve(context.Background(), "https://drive.google.com/file/d/abc/view?usp=sharing")
	require.NoError(t, err)
	require.Equal(t, "https://drive.google.com/uc?export=download&id=abc", target.MediaURL)
	require.Equal(t, models.KindDirect, target.Kind)
}

func TestMPDRewrite_Resolve(t *testing.T) {
	m := NewMPDRewrite("d26g5bnklkwsh4.cloudfront.net")

	require.True(t, m.Matches("https://host/videos/id42/master.mpd"))
	require.False(t, m.Matches("https://host/videos/id42/master.m3u8"))

	target, err := m.Resolve(context.Background(), "https://host/videos/id42/master.mpd")
	require.NoError(t, err)
	require.Equal(t, "https://d26g5bnklkwsh4.cloudfront.net/id42/master.m3u8", target.MediaURL)
	require.Equal(t, models.KindHLSPlain, target.Kind)
}
