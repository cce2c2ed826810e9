package batch_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"batch-video-downloader/internal/batch"
	"batch-video-downloader/internal/batch/mocks"
	"batch-video-downloader/pkg/models"
)

func TestCollectOptions_AllAnswered(t *testing.T) {
	ctrl := gomock.NewController(t)
	prompter := mocks.NewMockPrompter(ctrl)

	replies := []string{"3", "physics-2024", "720", "my caption", "https://example.com/thumb.jpg"}
	call := 0
	prompter.EXPECT().
		Ask(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, _ string, _ time.Duration) (string, error) {
			reply := replies[call]
			call++
			return reply, nil
		}).
		Times(5)

	opts, err := batch.CollectOptions(context.Background(), prompter, 10, time.Minute)
	require.NoError(t, err)
	require.Equal(t, 3, opts.StartIndex)
	require.Equal(t, "physics-2024", opts.BatchName)
	require.Equal(t, models.Quality720, opts.Quality)
	require.Equal(t, "my caption", opts.Caption)
	require.Equal(t, "https://example.com/thumb.jpg", opts.ThumbURL)
}

func TestCollectOptions_TimeoutsFallBack(t *testing.T) {
	ctrl := gomock.NewController(t)
	prompter := mocks.NewMockPrompter(ctrl)

	prompter.EXPECT().
		Ask(gomock.Any(), gomock.Any(), gomock.Any()).
		Return("", batch.ErrPromptTimeout).
		Times(5)

	opts, err := batch.CollectOptions(context.Background(), prompter, 10, time.Minute)
	require.NoError(t, err)
	require.Equal(t, 1, opts.StartIndex)
	require.Equal(t, "batch", opts.BatchName)
	require.Equal(t, models.QualityUnknown, opts.Quality)
	require.Empty(t, opts.Caption)
	require.Empty(t, opts.ThumbURL)
}

func TestCollectOptions_InvalidRepliesFallBack(t *testing.T) {
	ctrl := gomock.NewController(t)
	prompter := mocks.NewMockPrompter(ctrl)

	// Index out of range, blank name, bogus quality, declined caption and thumb
	replies := []string{"99", "  ", "potato", "NO", "no"}
	call := 0
	prompter.EXPECT().
		Ask(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, _ string, _ time.Duration) (string, error) {
			reply := replies[call]
			call++
			return reply, nil
		}).
		Times(5)

	opts, err := batch.CollectOptions(context.Background(), prompter, 10, time.Minute)
	require.NoError(t, err)
	require.Equal(t, 1, opts.StartIndex)
	require.Equal(t, "batch", opts.BatchName)
	require.Equal(t, models.QualityUnknown, opts.Quality)
	require.Empty(t, opts.Caption)
	require.Empty(t, opts.ThumbURL)
}

func TestCollectOptions_CanceledContext(t *testing.T) {
	ctrl := gomock.NewController(t)
	prompter := mocks.NewMockPrompter(ctrl)

	ctx, cancel := context.WithCancel(context.Background())
	prompter.EXPECT().
		Ask(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, _ string, _ time.Duration) (string, error) {
			cancel()
			return "", context.Canceled
		})

	_, err := batch.CollectOptions(ctx, prompter, 10, time.Minute)
	require.ErrorIs(t, err, context.Canceled)
}

func TestDownloadThumbnail(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("jpeg-bytes"))
	}))
	defer server.Close()

	destPath := filepath.Join(t.TempDir(), "thumb.jpg")
	require.NoError(t, batch.DownloadThumbnail(context.Background(), server.URL, destPath))

	data, err := os.ReadFile(destPath)
	require.NoError(t, err)
	require.Equal(t, []byte("jpeg-bytes"), data)
}

func TestDownloadThumbnail_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	destPath := filepath.Join(t.TempDir(), "thumb.jpg")
	require.Error(t, batch.DownloadThumbnail(context.Background(), server.URL, destPath))
	require.NoFileExists(t, destPath)
}
