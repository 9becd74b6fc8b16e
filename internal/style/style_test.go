package style_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"narrativ/internal/services"
	"narrativ/internal/style"
)

type fakeCustom struct {
	styles []style.Style
	err    error
}

func (f fakeCustom) ListStyles(context.Context) ([]style.Style, error) {
	return f.styles, f.err
}

func TestPredefinedOrder(t *testing.T) {
	got := style.Predefined()
	want := []string{"pop_art", "cinematic", "minimalist", "anime", "cyberpunk"}
	if len(got) != len(want) {
		t.Fatalf("expected %d styles, got %d", len(want), len(got))
	}
	for i, id := range want {
		if got[i].ID != id {
			t.Fatalf("style %d = %q, want %q", i, got[i].ID, id)
		}
		if err := got[i].Validate(); err != nil {
			t.Fatalf("predefined style %s invalid: %v", id, err)
		}
	}
}

func TestPredefinedReturnsCopy(t *testing.T) {
	first := style.Predefined()
	first[0].Name = "mutated"
	if style.Predefined()[0].Name == "mutated" {
		t.Fatal("expected Predefined to return an independent copy")
	}
}

func TestLookupPrefersPredefined(t *testing.T) {
	catalog := style.NewCatalog(fakeCustom{styles: []style.Style{{ID: "cinematic", Name: "Shadow"}}})
	got, ok, err := catalog.Lookup(context.Background(), "cinematic")
	if err != nil || !ok {
		t.Fatalf("lookup failed: ok=%v err=%v", ok, err)
	}
	if got.Name != "Cinematic" || got.Custom {
		t.Fatalf("expected predefined cinematic, got %+v", got)
	}
}

func TestLookupFallsBackToCustom(t *testing.T) {
	catalog := style.NewCatalog(fakeCustom{styles: []style.Style{{ID: "extracted_1", Name: "Watercolor", ArtStyle: "soft watercolor"}}})
	got, ok, err := catalog.Lookup(context.Background(), "extracted_1")
	if err != nil || !ok {
		t.Fatalf("lookup failed: ok=%v err=%v", ok, err)
	}
	if !got.Custom || got.ArtStyle != "soft watercolor" {
		t.Fatalf("unexpected custom style %+v", got)
	}

	if _, ok, _ := catalog.Lookup(context.Background(), "nope"); ok {
		t.Fatal("expected unknown id to miss")
	}
}

func TestAllPropagatesSourceError(t *testing.T) {
	boom := errors.New("db locked")
	catalog := style.NewCatalog(fakeCustom{err: boom})
	if _, err := catalog.All(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("expected source error, got %v", err)
	}
}

func TestValidateNamesMissingField(t *testing.T) {
	s := style.Predefined()[1]
	s.Lighting = "  "
	err := s.Validate()
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if !strings.Contains(err.Error(), "lighting") {
		t.Fatalf("expected field name in error, got %q", err.Error())
	}
}

func TestDescriptionSkipsEmptyFields(t *testing.T) {
	s := style.Style{ArtStyle: "ink wash", Lighting: "dusk"}
	if got := s.Description(); got != "Art style: ink wash. Lighting: dusk" {
		t.Fatalf("unexpected description %q", got)
	}
	if !(style.Style{}).IsZero() {
		t.Fatal("expected zero style")
	}
}
