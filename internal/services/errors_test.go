package services_test

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"narrativ/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrPlanning, "researching", "plan_story", "request failed", base)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrPlanning) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"researching", "plan_story", "request failed"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestWrapDefaultsToTransient(t *testing.T) {
	err := services.Wrap(nil, "", "", "", nil)
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient marker, got %v", err)
	}
	if !strings.Contains(err.Error(), "service failure") {
		t.Fatalf("expected fallback detail, got %q", err.Error())
	}
}

func TestHTTPStatusMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, http.StatusOK},
		{"validation", services.Wrap(services.ErrValidation, "boards", "save", "id required", nil), http.StatusBadRequest},
		{"not found", services.Wrap(services.ErrNotFound, "boards", "update", "missing", nil), http.StatusNotFound},
		{"planning", services.Wrap(services.ErrPlanning, "research", "llm", "failed", errors.New("x")), http.StatusBadGateway},
		{"generation", services.Wrap(services.ErrGeneration, "images", "fal", "failed", nil), http.StatusBadGateway},
		{"plain", fmt.Errorf("disk full"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := services.HTTPStatus(tt.err); got != tt.want {
				t.Fatalf("HTTPStatus() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestKindPrefersEmptyResultOverGeneration(t *testing.T) {
	err := fmt.Errorf("%w: %w", services.ErrEmptyResult, services.ErrGeneration)
	if got := services.Kind(err); got != "empty_result" {
		t.Fatalf("Kind() = %q, want empty_result", got)
	}
}
