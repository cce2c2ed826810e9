// Package cleanup removes leftover files from the batch working area:
// downloads abandoned by stopped batches, orphaned thumbnails, and empty
// per-user directories
package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Service sweeps the batch working area under a single base path
type Service struct {
	basePath string
	logger   *slog.Logger
}

// NewService creates a cleanup service rooted at basePath
func NewService(basePath string) *Service {
	return &Service{
		basePath: basePath,
		logger:   slog.Default(),
	}
}

// Run sweeps on the given interval until ctx is canceled
func (s *Service) Run(ctx context.Context, interval, olderThan time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := s.SweepStale(olderThan)
			if err != nil {
				s.logger.Warn("Stale file sweep failed", "error", err)
			} else if removed > 0 {
				s.logger.Info("Removed stale work files", "count", removed)
			}
		}
	}
}

// SweepStale removes files under the base path whose modification time is
// older than the cutoff, then drops any directories left empty. Files still
// being written by an active batch are younger than any reasonable cutoff.
func (s *Service) SweepStale(olderThan time.Duration) (int, error) {
	cutoff := time.Now().Add(-olderThan)
	removed := 0

	err := filepath.Walk(s.basePath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			// The tree can change under us while sweeping
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if info.IsDir() || !s.isPathSafe(path) {
			return nil
		}
		if info.ModTime().After(cutoff) {
			return nil
		}

		s.logger.Info("Removing stale file", "file", path, "size", info.Size(), "mod_time", info.ModTime())
		if removeErr := os.Remove(path); removeErr != nil {
			s.logger.Warn("Failed to remove stale file", "file", path, "error", removeErr)
			return nil
		}
		removed++
		return nil
	})
	if err != nil {
		return removed, fmt.Errorf("failed to sweep stale files: %w", err)
	}

	if err := s.removeEmptyDirectories(); err != nil {
		s.logger.Warn("Failed to remove empty directories", "error", err)
	}

	return removed, nil
}

// RemoveUserDir deletes one user's working directory and everything in it
func (s *Service) RemoveUserDir(userID int64) error {
	dir := filepath.Join(s.basePath, strconv.FormatInt(userID, 10))
	if !s.isPathSafe(dir) {
		return fmt.Errorf("unsafe path for removal: %s", dir)
	}

	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("failed to remove user directory: %w", err)
	}
	s.logger.Info("Removed user working directory", "user_id", userID, "dir", dir)
	return nil
}

// isPathSafe checks that the path is strictly below the base path. Nothing
// at or above the base directory itself is ever deleted.
func (s *Service) isPathSafe(path string) bool {
	absPath, err := filepath.Abs(path)
	if err != nil {
		s.logger.Warn("Failed to get absolute path", "path", path, "error", err)
		return false
	}

	absBase, err := filepath.Abs(s.basePath)
	if err != nil {
		s.logger.Warn("Failed to get absolute base path", "base", s.basePath, "error", err)
		return false
	}

	return strings.HasPrefix(absPath, absBase+string(os.PathSeparator)) && absPath != absBase
}

// removeEmptyDirectories drops empty subdirectories of the base path,
// deepest first
func (s *Service) removeEmptyDirectories() error {
	var dirs []string
	err := filepath.Walk(s.basePath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if info.IsDir() && path != s.basePath {
			dirs = append(dirs, path)
		}
		return nil
	})
	if err != nil {
		return err
	}

	for i := len(dirs) - 1; i >= 0; i-- {
		if s.isDirectoryEmpty(dirs[i]) {
			if removeErr := os.Remove(dirs[i]); removeErr != nil {
				s.logger.Warn("Failed to remove empty directory", "directory", dirs[i], "error", removeErr)
			}
		}
	}
	return nil
}

func (s *Service) isDirectoryEmpty(dirPath string) bool {
	entries, err := os.ReadDir(dirPath)
	if err != nil {
		s.logger.Warn("Failed to read directory", "directory", dirPath, "error", err)
		return false
	}
	return len(entries) == 0
}
