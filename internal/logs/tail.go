package logs

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// fallbackPoll re-reads the file in case a write notification is missed.
const fallbackPoll = time.Second

type TailOptions struct {
	Offset int64
	Limit  int
	Follow bool
	Wait   time.Duration
}

type TailResult struct {
	Lines  []string
	Offset int64
}

func Tail(ctx context.Context, path string, opts TailOptions) (TailResult, error) {
	result := TailResult{Offset: opts.Offset}

	info, err := os.Stat(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		result.Offset = 0
		if opts.Follow && opts.Wait > 0 {
			return waitForLines(ctx, path, 0, opts.Wait)
		}
		return result, nil
	case err != nil:
		return result, fmt.Errorf("stat log file: %w", err)
	case info.IsDir():
		return result, fmt.Errorf("log path %q is a directory", path)
	}

	if opts.Wait < 0 {
		opts.Wait = 0
	}

	var lines []string
	var offset int64
	if opts.Offset < 0 {
		lines, offset, err = readLastLines(path, opts.Limit)
	} else {
		start := opts.Offset
		if start > info.Size() {
			// Truncated or rotated; start over.
			start = 0
		}
		lines, offset, err = readForward(path, start)
		if err == nil && opts.Limit > 0 && len(lines) > opts.Limit {
			lines = lines[len(lines)-opts.Limit:]
		}
	}
	if err != nil {
		return result, err
	}
	if opts.Follow && opts.Wait > 0 && len(lines) == 0 {
		return waitForLines(ctx, path, offset, opts.Wait)
	}
	return TailResult{Lines: lines, Offset: offset}, nil
}

// readLastLines returns up to limit complete lines from the end of the file.
// A non-positive limit returns no lines and the end offset.
func readLastLines(path string, limit int) ([]string, int64, error) {
	lines, offset, err := readForward(path, 0)
	if err != nil {
		return nil, 0, err
	}
	if limit <= 0 {
		return nil, offset, nil
	}
	if len(lines) > limit {
		lines = lines[len(lines)-limit:]
	}
	return lines, offset, nil
}

// readForward reads complete lines starting at offset and returns the offset
// just past the last newline consumed.
func readForward(path string, offset int64) ([]string, int64, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, 0, nil
		}
		return nil, 0, fmt.Errorf("open log file: %w", err)
	}
	defer file.Close()

	if _, err := file.Seek(offset, io.SeekStart); err != nil {
		return nil, 0, fmt.Errorf("seek log file: %w", err)
	}

	reader := bufio.NewReaderSize(file, 64*1024)
	var lines []string
	pos := offset
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, 0, fmt.Errorf("read log file: %w", err)
		}
		pos += int64(len(line))
		lines = append(lines, strings.TrimRight(line, "\r\n"))
	}
	return lines, pos, nil
}

// waitForLines blocks until complete lines appear past offset, the wait
// elapses, or ctx ends. The parent directory is watched so the file may be
// created or replaced while waiting.
func waitForLines(ctx context.Context, path string, offset int64, wait time.Duration) (TailResult, error) {
	result := TailResult{Offset: offset}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return result, fmt.Errorf("watch log file: %w", err)
	}
	defer watcher.Close()
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return result, fmt.Errorf("watch log dir: %w", err)
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()
	poll := time.NewTicker(fallbackPoll)
	defer poll.Stop()

	target := filepath.Clean(path)
	for {
		lines, newOffset, err := readForward(path, offset)
		if err != nil {
			return result, err
		}
		if len(lines) > 0 {
			return TailResult{Lines: lines, Offset: newOffset}, nil
		}

		select {
		case <-ctx.Done():
			return TailResult{Offset: offset}, ctx.Err()
		case <-timer.C:
			return TailResult{Offset: offset}, nil
		case evt, ok := <-watcher.Events:
			if !ok {
				return TailResult{Offset: offset}, nil
			}
			if filepath.Clean(evt.Name) != target {
				continue
			}
			if evt.Has(fsnotify.Create) || evt.Has(fsnotify.Remove) || evt.Has(fsnotify.Rename) {
				offset = 0
			}
		case err, ok := <-watcher.Errors:
			if ok && err != nil {
				return TailResult{Offset: offset}, fmt.Errorf("watch log file: %w", err)
			}
		case <-poll.C:
			if info, err := os.Stat(path); err == nil && info.Size() < offset {
				offset = 0
			}
		}
	}
}
