package retention

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/goleak"

	"narrativ/internal/logging"
)

func makeStory(t *testing.T, root, name string, age time.Duration, images int) string {
	t.Helper()
	dir := filepath.Join(root, name)
	if err := os.Mkdir(dir, 0o755); err != nil {
		t.Fatalf("create story dir: %v", err)
	}
	for i := 1; i <= images; i++ {
		file := filepath.Join(dir, "slide"+string(rune('0'+i))+".png")
		if err := os.WriteFile(file, []byte("img"), 0o644); err != nil {
			t.Fatalf("write slide: %v", err)
		}
	}
	stamp := time.Now().Add(-age)
	if err := os.Chtimes(dir, stamp, stamp); err != nil {
		t.Fatalf("set time: %v", err)
	}
	return dir
}

func TestPruneInvalidInputs(t *testing.T) {
	for _, dir := range []string{"", "   ", "/nonexistent/path/12345"} {
		result := Prune(context.Background(), dir, time.Hour, logging.NewNop())
		if len(result.Removed) != 0 || len(result.Errors) != 0 {
			t.Errorf("expected empty result for path %q", dir)
		}
	}

	root := t.TempDir()
	old := makeStory(t, root, "Bees_20240101_000000", 48*time.Hour, 1)
	result := Prune(context.Background(), root, 0, logging.NewNop())
	if len(result.Removed) != 0 {
		t.Fatalf("zero max age should disable pruning, removed %v", result.Removed)
	}
	if _, err := os.Stat(old); err != nil {
		t.Fatalf("story should remain: %v", err)
	}
}

func TestPruneRemovesExpiredStories(t *testing.T) {
	root := t.TempDir()
	old := makeStory(t, root, "Octopus_20240101_120000", 72*time.Hour, 2)
	recent := makeStory(t, root, "Bees_20240301_120000", time.Minute, 1)
	hidden := makeStory(t, root, ".partial", 72*time.Hour, 0)

	file := filepath.Join(root, "notes.txt")
	if err := os.WriteFile(file, []byte("keep"), 0o644); err != nil {
		t.Fatal(err)
	}
	stamp := time.Now().Add(-72 * time.Hour)
	if err := os.Chtimes(file, stamp, stamp); err != nil {
		t.Fatal(err)
	}

	result := Prune(context.Background(), root, 24*time.Hour, logging.NewNop())

	if len(result.Removed) != 1 || result.Removed[0] != old {
		t.Fatalf("removed = %v, want [%s]", result.Removed, old)
	}
	if _, err := os.Stat(old); !os.IsNotExist(err) {
		t.Error("expired story should have been removed")
	}
	for _, keep := range []string{recent, hidden, file} {
		if _, err := os.Stat(keep); err != nil {
			t.Errorf("%s should still exist", keep)
		}
	}
}

func TestPruneStopsWhenCancelled(t *testing.T) {
	root := t.TempDir()
	old := makeStory(t, root, "Whales_20240101_000000", 72*time.Hour, 1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	result := Prune(ctx, root, time.Hour, logging.NewNop())
	if len(result.Removed) != 0 {
		t.Fatalf("cancelled prune removed %v", result.Removed)
	}
	if _, err := os.Stat(old); err != nil {
		t.Fatal("story should survive a cancelled prune")
	}
}

func TestListStories(t *testing.T) {
	for _, path := range []string{"", "/nonexistent/path/12345"} {
		stories, err := ListStories(path)
		if err != nil {
			t.Fatalf("unexpected error for %q: %v", path, err)
		}
		if stories != nil {
			t.Errorf("expected nil for path %q, got %v", path, stories)
		}
	}

	root := t.TempDir()
	makeStory(t, root, "Older_20240101_000000", 2*time.Hour, 3)
	newer := makeStory(t, root, "Newer_20240102_000000", time.Minute, 1)
	if err := os.WriteFile(filepath.Join(newer, "notes.txt"), []byte("12345"), 0o644); err != nil {
		t.Fatal(err)
	}

	stories, err := ListStories(root)
	if err != nil {
		t.Fatalf("ListStories: %v", err)
	}
	if len(stories) != 2 {
		t.Fatalf("expected 2 stories, got %d", len(stories))
	}
	if stories[0].Name != "Newer_20240102_000000" {
		t.Fatalf("expected newest first, got %s", stories[0].Name)
	}
	if stories[0].Images != 1 || stories[0].Size != 8 {
		t.Errorf("newer story = %+v, want 1 image and 8 bytes", stories[0])
	}
	if stories[1].Images != 3 || stories[1].Size != 9 {
		t.Errorf("older story = %+v, want 3 images and 9 bytes", stories[1])
	}
}

func TestRunPrunesImmediatelyAndStops(t *testing.T) {
	defer goleak.VerifyNone(t)

	root := t.TempDir()
	old := makeStory(t, root, "Comets_20240101_000000", 72*time.Hour, 1)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		Run(ctx, root, time.Hour, time.Hour, logging.NewNop())
		close(done)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for {
		if _, err := os.Stat(old); os.IsNotExist(err) {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("expired story not pruned on start")
		}
		time.Sleep(10 * time.Millisecond)
	}
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}
