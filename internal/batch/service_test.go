package batch_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"batch-video-downloader/internal/batch"
	"batch-video-downloader/internal/batch/mocks"
	"batch-video-downloader/internal/cleanup"
	"batch-video-downloader/pkg/models"
)

type serviceFixture struct {
	resolver *mocks.MockResolver
	media    *mocks.MockMediaDownloader
	uploader *mocks.MockUploader
	admin    *mocks.MockAdminNotifier
	registry *batch.Registry
	basePath string
	svc      *batch.Service
}

func newServiceFixture(t *testing.T, terminate func()) *serviceFixture {
	ctrl := gomock.NewController(t)
	f := &serviceFixture{
		resolver: mocks.NewMockResolver(ctrl),
		media:    mocks.NewMockMediaDownloader(ctrl),
		uploader: mocks.NewMockUploader(ctrl),
		admin:    mocks.NewMockAdminNotifier(ctrl),
		registry: batch.NewRegistry(),
		basePath: t.TempDir(),
	}

	notifier := mocks.NewMockNotifier(ctrl)
	notifier.EXPECT().PublishStatus(gomock.Any(), gomock.Any()).Return(nil).AnyTimes()
	notifier.EXPECT().Notify(gomock.Any(), gomock.Any()).Return(nil).AnyTimes()

	playlist := mocks.NewMockPlaylistDownloader(ctrl)
	processor := batch.NewProcessor(f.resolver, f.media, playlist, notifier, f.uploader, f.registry)
	f.svc = batch.NewService(processor, f.registry, f.admin, cleanup.NewService(f.basePath), f.basePath, 2, terminate)

	return f
}

func TestService_Start_RejectsEmptyBatch(t *testing.T) {
	f := newServiceFixture(t, nil)

	job := makeJob(1, 0)
	err := f.svc.Start(context.Background(), job)
	require.Error(t, err)
	require.Contains(t, err.Error(), "no links")
}

func TestService_Start_RejectsOutOfRangeStartIndex(t *testing.T) {
	f := newServiceFixture(t, nil)

	job := makeJob(1, 3)
	job.StartIndex = 4
	err := f.svc.Start(context.Background(), job)
	require.Error(t, err)
	require.Contains(t, err.Error(), "out of range")
}

func TestService_Start_RejectsSecondBatchForSameUser(t *testing.T) {
	f := newServiceFixture(t, nil)

	release := make(chan struct{})
	f.resolver.EXPECT().Resolve(gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, url string) (*models.ResolvedTarget, error) {
			select {
			case <-release:
			case <-ctx.Done():
			}
			return nil, fmt.Errorf("resolution aborted")
		}).AnyTimes()

	require.NoError(t, f.svc.Start(context.Background(), makeJob(7, 1)))

	err := f.svc.Start(context.Background(), makeJob(7, 1))
	require.ErrorIs(t, err, batch.ErrActiveBatch)

	close(release)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, f.svc.Shutdown(shutdownCtx))
}

func TestService_Start_AllowsConcurrentUsers(t *testing.T) {
	f := newServiceFixture(t, nil)

	f.resolver.EXPECT().Resolve(gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, url string) (*models.ResolvedTarget, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		}).AnyTimes()

	require.NoError(t, f.svc.Start(context.Background(), makeJob(1, 1)))
	require.NoError(t, f.svc.Start(context.Background(), makeJob(2, 1)))
	require.Equal(t, 2, f.registry.ActiveCount())

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, f.svc.Shutdown(shutdownCtx))
}

func TestService_Stop_CancelsRunningBatch(t *testing.T) {
	f := newServiceFixture(t, nil)

	started := make(chan struct{})
	f.resolver.EXPECT().Resolve(gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, url string) (*models.ResolvedTarget, error) {
			close(started)
			<-ctx.Done()
			return nil, ctx.Err()
		})

	require.NoError(t, f.svc.Start(context.Background(), makeJob(3, 2)))
	<-started

	require.True(t, f.svc.Stop(3))
	require.False(t, f.svc.Stop(99))

	require.Eventually(t, func() bool {
		_, ok := f.registry.Get(3)
		return !ok
	}, 5*time.Second, 10*time.Millisecond)
}

func TestService_RemovesUserDirAfterBatch(t *testing.T) {
	f := newServiceFixture(t, nil)

	f.resolver.EXPECT().Resolve(gomock.Any(), gomock.Any()).
		Return(nil, fmt.Errorf("no media found"))

	require.NoError(t, f.svc.Start(context.Background(), makeJob(4, 1)))

	// The working directory created at admission is reclaimed at the end
	require.Eventually(t, func() bool {
		_, err := os.Stat(filepath.Join(f.basePath, "4"))
		return os.IsNotExist(err)
	}, 5*time.Second, 10*time.Millisecond)
}

func TestService_Shutdown_StopsAllAndTerminates(t *testing.T) {
	var terminated atomic.Bool
	f := newServiceFixture(t, func() { terminated.Store(true) })

	f.resolver.EXPECT().Resolve(gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, url string) (*models.ResolvedTarget, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		}).AnyTimes()

	require.NoError(t, f.svc.Start(context.Background(), makeJob(1, 3)))
	require.NoError(t, f.svc.Start(context.Background(), makeJob(2, 3)))

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, f.svc.Shutdown(shutdownCtx))

	require.True(t, terminated.Load())
	require.Equal(t, 0, f.registry.ActiveCount())
}

func TestService_Shutdown_TimesOut(t *testing.T) {
	f := newServiceFixture(t, nil)

	blocked := make(chan struct{})
	release := make(chan struct{})
	f.resolver.EXPECT().Resolve(gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, url string) (*models.ResolvedTarget, error) {
			close(blocked)
			<-release
			return nil, fmt.Errorf("resolution aborted")
		})

	require.NoError(t, f.svc.Start(context.Background(), makeJob(1, 1)))
	<-blocked

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := f.svc.Shutdown(shutdownCtx)
	require.Error(t, err)
	require.Contains(t, err.Error(), "timed out")

	// Let the task finish before the mock controller is checked
	close(release)
	require.Eventually(t, func() bool {
		return f.registry.ActiveCount() == 0
	}, 5*time.Second, 10*time.Millisecond)
}
