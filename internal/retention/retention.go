// Package retention inspects and prunes rendered story folders under the
// output directory.
package retention

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"narrativ/internal/fileutil"
	"narrativ/internal/logging"
)

// Result contains the outcome of a prune pass.
type Result struct {
	Removed []string
	Errors  []PathError
}

// PathError pairs a story folder with the error hit while removing it.
type PathError struct {
	Path  string
	Error error
}

// Story describes one rendered story folder.
type Story struct {
	Name    string    `json:"name"`
	Path    string    `json:"path"`
	ModTime time.Time `json:"modified"`
	Images  int       `json:"images"`
	Size    int64     `json:"size_bytes"`
}

// Prune removes story folders whose modification time is older than maxAge.
// A non-positive maxAge disables pruning.
func Prune(ctx context.Context, outputDir string, maxAge time.Duration, logger *slog.Logger) Result {
	result := Result{}

	outputDir = strings.TrimSpace(outputDir)
	if outputDir == "" || maxAge <= 0 {
		return result
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	entries, err := os.ReadDir(outputDir)
	if err != nil {
		if !os.IsNotExist(err) {
			result.Errors = append(result.Errors, PathError{Path: outputDir, Error: err})
		}
		return result
	}

	cutoff := time.Now().Add(-maxAge)
	for _, entry := range entries {
		if ctx.Err() != nil {
			return result
		}
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}

		dirPath := filepath.Join(outputDir, entry.Name())
		info, err := entry.Info()
		if err != nil {
			result.Errors = append(result.Errors, PathError{Path: dirPath, Error: err})
			continue
		}
		if !info.ModTime().Before(cutoff) {
			continue
		}

		if err := os.RemoveAll(dirPath); err != nil {
			result.Errors = append(result.Errors, PathError{Path: dirPath, Error: err})
			logger.Warn("failed to remove expired story folder",
				logging.String("path", dirPath),
				logging.Error(err),
				logging.String(logging.FieldEventType, "retention_prune_failed"),
				logging.String(logging.FieldErrorHint, "check output_dir permissions"),
				logging.String(logging.FieldImpact, "disk space not reclaimed"),
			)
			continue
		}
		result.Removed = append(result.Removed, dirPath)
		logger.Info("removed expired story folder",
			logging.String("path", dirPath),
			logging.Duration("age", time.Since(info.ModTime())),
			logging.String(logging.FieldEventType, "retention_prune"),
		)
	}
	return result
}

// ListStories returns the story folders in outputDir, newest first. A missing
// directory yields no stories.
func ListStories(outputDir string) ([]Story, error) {
	outputDir = strings.TrimSpace(outputDir)
	if outputDir == "" {
		return nil, nil
	}

	entries, err := os.ReadDir(outputDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var stories []Story
	for _, entry := range entries {
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		dirPath := filepath.Join(outputDir, entry.Name())
		stories = append(stories, Story{
			Name:    entry.Name(),
			Path:    dirPath,
			ModTime: info.ModTime(),
			Images:  countImages(dirPath),
			Size:    fileutil.DirSize(dirPath),
		})
	}
	sort.SliceStable(stories, func(i, j int) bool {
		return stories[i].ModTime.After(stories[j].ModTime)
	})
	return stories, nil
}

func countImages(dir string) int {
	matches, err := filepath.Glob(filepath.Join(dir, "*.png"))
	if err != nil {
		return 0
	}
	return len(matches)
}

// Run prunes outputDir immediately and then every interval until ctx ends.
func Run(ctx context.Context, outputDir string, maxAge, interval time.Duration, logger *slog.Logger) {
	if maxAge <= 0 {
		return
	}
	if interval <= 0 {
		interval = time.Hour
	}
	Prune(ctx, outputDir, maxAge, logger)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			Prune(ctx, outputDir, maxAge, logger)
		}
	}
}
