package ytdlp

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"batch-video-downloader/pkg/models"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeRunner records the invocation and optionally creates the output file
type fakeRunner struct {
	name       string
	args       []string
	err        error
	createFile bool
}

func (f *fakeRunner) Run(_ context.Context, name string, args ...string) error {
	f.name = name
	f.args = args
	if f.err != nil {
		return f.err
	}
	if f.createFile {
		// Output path is the argument after -o
		for i, a := range args {
			if a == "-o" && i+1 < len(args) {
				return os.WriteFile(args[i+1], []byte("video"), 0o644)
			}
		}
	}
	return nil
}

func TestCommandArgs(t *testing.T) {
	tests := []struct {
		name     string
		url      string
		quality  models.Quality
		wantArgs []string
	}{
		{
			name:    "video host link merges streams",
			url:     "https://youtu.be/abc",
			quality: models.Quality720,
			wantArgs: []string{
				"-f", "bestvideo[height<=720]+bestaudio/best[height<=720]",
				"--merge-output-format", "mkv",
				"--no-part", "--hls-use-mpegts",
				"https://youtu.be/abc", "-o", "/tmp/out.mp4",
			},
		},
		{
			name:    "hls manifest uses mpegts mode",
			url:     "https://cdn.example.com/stream.m3u8",
			quality: models.Quality480,
			wantArgs: []string{
				"-f", "best[height<=480]",
				"--hls-use-mpegts", "--no-part",
				"https://cdn.example.com/stream.m3u8", "-o", "/tmp/out.mp4",
			},
		},
		{
			name:    "plain url uses plain best",
			url:     "https://example.com/video.mp4",
			quality: models.Quality1080,
			wantArgs: []string{
				"-f", "best[height<=1080]",
				"--no-part",
				"https://example.com/video.mp4", "-o", "/tmp/out.mp4",
			},
		},
		{
			name:    "unknown quality drops height filter",
			url:     "https://example.com/video.mp4",
			quality: models.QualityUnknown,
			wantArgs: []string{
				"-f", "best",
				"--no-part",
				"https://example.com/video.mp4", "-o", "/tmp/out.mp4",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.wantArgs, commandArgs(tt.url, tt.quality, "/tmp/out.mp4"))
		})
	}
}

func TestExecutor_Download(t *testing.T) {
	target := &models.ResolvedTarget{
		SourceURL: "https://example.com/video.mp4",
		MediaURL:  "https://example.com/video.mp4",
		Kind:      models.KindDirect,
	}

	t.Run("success when exit zero and file exists", func(t *testing.T) {
		runner := &fakeRunner{createFile: true}
		e := &Executor{binPath: "yt-dlp", runner: runner, logger: discardLogger()}

		outputPath := filepath.Join(t.TempDir(), "out.mp4")
		err := e.Download(context.Background(), target, models.Quality720, outputPath)
		require.NoError(t, err)
		require.Equal(t, "yt-dlp", runner.name)
	})

	t.Run("failure on non-zero exit", func(t *testing.T) {
		runner := &fakeRunner{err: fmt.Errorf("exit status 1")}
		e := &Executor{binPath: "yt-dlp", runner: runner, logger: discardLogger()}

		err := e.Download(context.Background(), target, models.Quality720, filepath.Join(t.TempDir(), "out.mp4"))
		var invErr *InvocationError
		require.ErrorAs(t, err, &invErr)
	})

	t.Run("file appearing within wait window succeeds", func(t *testing.T) {
		outputPath := filepath.Join(t.TempDir(), "out.mp4")
		runner := &fakeRunner{}
		e := &Executor{binPath: "yt-dlp", runner: runner, fileWait: 5 * time.Second, logger: discardLogger()}

		go func() {
			time.Sleep(100 * time.Millisecond)
			_ = os.WriteFile(outputPath, []byte("video"), 0o644)
		}()

		err := e.Download(context.Background(), target, models.Quality720, outputPath)
		require.NoError(t, err)
	})

	t.Run("failure when exit zero but no file", func(t *testing.T) {
		runner := &fakeRunner{createFile: false}
		e := &Executor{binPath: "yt-dlp", runner: runner, logger: discardLogger()}

		err := e.Download(context.Background(), target, models.Quality720, filepath.Join(t.TempDir(), "out.mp4"))
		var invErr *InvocationError
		require.ErrorAs(t, err, &invErr)
	})
}
