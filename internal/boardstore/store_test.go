package boardstore_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"narrativ/internal/api"
	"narrativ/internal/boardstore"
	"narrativ/internal/services"
	"narrativ/internal/storyplan"
	"narrativ/internal/style"
	"narrativ/internal/testsupport"
)

func fixedClock() func() time.Time {
	base := time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)
	var n int
	return func() time.Time {
		n++
		return base.Add(time.Duration(n) * time.Second)
	}
}

func researchBoard(id, topic string) api.ResearchBoard {
	return api.ResearchBoard{
		ID:        id,
		Topic:     topic,
		Aesthetic: style.Predefined()[0],
		StyleName: style.Predefined()[0].Name,
		Slides: []storyplan.Slide{
			{SlideNumber: 1, Title: "Origins", KeyFact: "Tea began in China.", VisualDescription: "Ancient tea leaves"},
			{SlideNumber: 2, Title: "Trade", KeyFact: "Tea crossed the Silk Road.", VisualDescription: "Caravans", Mood: "adventurous"},
		},
		Sources:   []storyplan.Source{{Title: "Tea Atlas", URL: "https://example.com/tea"}},
		Caption:   "A short history of tea.",
		Hashtags:  []string{"#tea", "#history"},
		ImageSize: "story",
	}
}

func TestSaveAndGetResearch(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg, boardstore.WithClock(fixedClock()))
	ctx := context.Background()

	saved, err := store.SaveResearch(ctx, researchBoard("r1", "history of tea"))
	if err != nil {
		t.Fatalf("SaveResearch failed: %v", err)
	}
	if saved.CreatedAt == "" {
		t.Fatal("expected createdAt to be assigned")
	}

	got, err := store.GetResearch(ctx, "r1")
	if err != nil {
		t.Fatalf("GetResearch failed: %v", err)
	}
	if got == nil {
		t.Fatal("expected board to be found")
	}
	if diff := cmp.Diff(saved, *got); diff != "" {
		t.Fatalf("board mismatch (-want +got):\n%s", diff)
	}

	missing, err := store.GetResearch(ctx, "nope")
	if err != nil {
		t.Fatalf("GetResearch missing failed: %v", err)
	}
	if missing != nil {
		t.Fatalf("expected nil for missing board, got %#v", missing)
	}
}

func TestSaveRequiresID(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	_, err := store.SaveImages(context.Background(), api.ImageBoard{Topic: "x"})
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestListNewestFirstAndPruned(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithoutResearchMirror())
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	total := boardstore.MaxBoardsPerType + 5
	for i := 0; i < total; i++ {
		board := api.ImageBoard{ID: fmt.Sprintf("img-%03d", i), Topic: "topic", Images: []string{"a.png"}}
		if _, err := store.SaveImages(ctx, board); err != nil {
			t.Fatalf("SaveImages %d failed: %v", i, err)
		}
	}

	boards, err := store.ListImages(ctx)
	if err != nil {
		t.Fatalf("ListImages failed: %v", err)
	}
	if len(boards) != boardstore.MaxBoardsPerType {
		t.Fatalf("expected %d boards, got %d", boardstore.MaxBoardsPerType, len(boards))
	}
	if boards[0].ID != fmt.Sprintf("img-%03d", total-1) {
		t.Fatalf("expected newest first, got %s", boards[0].ID)
	}
	if got, _ := store.GetImages(ctx, "img-000"); got != nil {
		t.Fatal("expected oldest board to be pruned")
	}
}

func TestUpdateAndDeleteMissingReturnNotFound(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	if _, err := store.UpdateImages(ctx, "ghost", api.ImageBoard{Topic: "x"}); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found on update, got %v", err)
	}
	if err := store.DeleteResearch(ctx, "ghost"); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found on delete, got %v", err)
	}
}

func TestUpdateImagesReplacesBody(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg, boardstore.WithClock(fixedClock()))
	ctx := context.Background()

	board := api.ImageBoard{ID: "b1", Topic: "tea", Images: []string{"1.png"}}
	saved, err := store.SaveImages(ctx, board)
	if err != nil {
		t.Fatalf("SaveImages failed: %v", err)
	}
	saved.Images = append(saved.Images, "2.png")
	updated, err := store.UpdateImages(ctx, "b1", saved)
	if err != nil {
		t.Fatalf("UpdateImages failed: %v", err)
	}
	if updated.UpdatedAt == "" {
		t.Fatal("expected updatedAt to be set")
	}
	got, err := store.GetImages(ctx, "b1")
	if err != nil || got == nil {
		t.Fatalf("GetImages failed: %v", err)
	}
	if diff := cmp.Diff([]string{"1.png", "2.png"}, got.Images); diff != "" {
		t.Fatalf("images mismatch (-want +got):\n%s", diff)
	}
}

func TestResearchMirrorWrittenAndRemoved(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	board := researchBoard("r42", "History of Tea!")
	if _, err := store.SaveResearch(ctx, board); err != nil {
		t.Fatalf("SaveResearch failed: %v", err)
	}
	path := filepath.Join(cfg.Paths.ResearchDir, "history-of-tea-r42.md")
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected markdown mirror at %s: %v", path, err)
	}

	if err := store.DeleteResearch(ctx, "r42"); err != nil {
		t.Fatalf("DeleteResearch failed: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("expected mirror removed, stat err=%v", err)
	}
}

func TestMirrorFailureDoesNotFailSave(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	if err := os.RemoveAll(cfg.Paths.ResearchDir); err != nil {
		t.Fatalf("remove research dir: %v", err)
	}
	if err := os.WriteFile(cfg.Paths.ResearchDir, []byte("x"), 0o644); err != nil {
		t.Fatalf("write blocker: %v", err)
	}

	ctx := context.Background()
	if _, err := store.SaveResearch(ctx, researchBoard("r1", "tea")); err != nil {
		t.Fatalf("expected save to succeed despite mirror failure, got %v", err)
	}
	got, err := store.GetResearch(ctx, "r1")
	if err != nil || got == nil {
		t.Fatalf("expected board in database, got %v err=%v", got, err)
	}
}

func TestCustomStyles(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg, boardstore.WithClock(fixedClock()))
	ctx := context.Background()

	if _, err := store.SaveStyle(ctx, style.Style{Name: "Half"}); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error for incomplete style, got %v", err)
	}

	custom := style.Predefined()[1]
	custom.ID = ""
	custom.Name = "Moody"
	saved, err := store.SaveStyle(ctx, custom)
	if err != nil {
		t.Fatalf("SaveStyle failed: %v", err)
	}
	if saved.ID == "" || !saved.Custom {
		t.Fatalf("expected id and custom flag, got %#v", saved)
	}

	styles, err := store.ListStyles(ctx)
	if err != nil {
		t.Fatalf("ListStyles failed: %v", err)
	}
	if len(styles) != 1 || styles[0].Name != "Moody" {
		t.Fatalf("unexpected styles: %#v", styles)
	}

	catalog := style.NewCatalog(store)
	found, ok, err := catalog.Lookup(ctx, saved.ID)
	if err != nil || !ok {
		t.Fatalf("catalog lookup failed: ok=%v err=%v", ok, err)
	}
	if found.Name != "Moody" {
		t.Fatalf("unexpected style: %#v", found)
	}

	if err := store.DeleteStyle(ctx, saved.ID); err != nil {
		t.Fatalf("DeleteStyle failed: %v", err)
	}
	if err := store.DeleteStyle(ctx, saved.ID); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found on second delete, got %v", err)
	}
	if err := store.DeleteStyle(ctx, style.Predefined()[0].ID); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected predefined style delete to report not found, got %v", err)
	}
	if styles, err := store.ListStyles(ctx); err != nil || len(styles) != 0 {
		t.Fatalf("expected no custom styles after delete, got %d (%v)", len(styles), err)
	}
}

func TestResearchSlidesBoundedAndRenumbered(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithoutResearchMirror())
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	board := researchBoard("r1", "tea")
	board.Slides[0].SlideNumber = 4
	board.Slides[1].SlideNumber = 9
	saved, err := store.SaveResearch(ctx, board)
	if err != nil {
		t.Fatalf("SaveResearch failed: %v", err)
	}
	if saved.Slides[0].SlideNumber != 1 || saved.Slides[1].SlideNumber != 2 {
		t.Fatalf("expected dense numbering, got %+v", saved.Slides)
	}

	for _, n := range []int{0, storyplan.MaxSlides + 1} {
		bad := researchBoard("r1", "tea")
		bad.Slides = make([]storyplan.Slide, n)
		if _, err := store.UpdateResearch(ctx, "r1", bad); !errors.Is(err, services.ErrValidation) {
			t.Fatalf("%d slides: expected validation error, got %v", n, err)
		}
		bad.ID = fmt.Sprintf("r-%d", n)
		if _, err := store.SaveResearch(ctx, bad); !errors.Is(err, services.ErrValidation) {
			t.Fatalf("%d slides: expected validation error on save, got %v", n, err)
		}
	}
	got, err := store.GetResearch(ctx, "r1")
	if err != nil || got == nil {
		t.Fatalf("GetResearch: %v", err)
	}
	if len(got.Slides) != 2 {
		t.Fatalf("rejected update changed the board: %+v", got.Slides)
	}
}
