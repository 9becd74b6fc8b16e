package main

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"narrativ/internal/events"
	"narrativ/internal/orchestrator"
)

func TestParseSelection(t *testing.T) {
	tests := []struct {
		in      string
		want    []int
		wantErr bool
	}{
		{in: "", want: nil},
		{in: "2", want: []int{2}},
		{in: "3,1, 3", want: []int{1, 3}},
		{in: "1,4-6", want: []int{1, 4, 5, 6}},
		{in: "0", wantErr: true},
		{in: "5-2", wantErr: true},
		{in: "a", wantErr: true},
		{in: "1-", wantErr: true},
	}
	for _, tt := range tests {
		got, err := parseSelection(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("parseSelection(%q) expected error", tt.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("parseSelection(%q): %v", tt.in, err)
			continue
		}
		if diff := cmp.Diff(tt.want, got); diff != "" {
			t.Errorf("parseSelection(%q) mismatch (-want +got):\n%s", tt.in, diff)
		}
	}
}

func TestReadTextInputFromStdin(t *testing.T) {
	got, err := readTextInput("-", strings.NewReader("pasted"))
	if err != nil || got != "pasted" {
		t.Fatalf("readTextInput = %q, %v", got, err)
	}
	if _, err := readTextInput("/does/not/exist", nil); err == nil {
		t.Fatal("expected missing file to fail")
	}
}

func TestDescribeEvent(t *testing.T) {
	tests := []struct {
		evt  events.Event
		want string
	}{
		{events.Event{Payload: orchestrator.Researching{}}, "Researching..."},
		{events.Event{Payload: orchestrator.GeneratingImages{Expected: 4}}, "Generating 4 image(s)..."},
		{events.Event{Payload: events.Progress{Current: 2, Expected: 4}}, "  slide 2 of 4"},
		{events.Event{Payload: events.Notice{Level: events.NoticeWarn, Message: "sync failed"}}, "[warn] sync failed"},
		{events.Event{Payload: orchestrator.Failed{Kind: "planning", Message: "boom"}}, "Failed (planning): boom"},
		{events.Event{Payload: orchestrator.Idle{}}, ""},
	}
	for _, tt := range tests {
		if got := describeEvent(tt.evt); got != tt.want {
			t.Errorf("describeEvent(%T) = %q, want %q", tt.evt.Payload, got, tt.want)
		}
	}
}

func TestRenderTableWithoutColor(t *testing.T) {
	out := renderTable([]string{"ID", "Name"}, [][]string{{"1", "Noir"}, {"2"}}, []columnAlignment{alignRight}, false)
	requireContains(t, out, "Noir")
	if strings.Contains(out, "\x1b[") {
		t.Fatalf("expected no ANSI escapes, got %q", out)
	}
	if renderTable(nil, nil, nil, false) != "" {
		t.Fatal("expected empty render without headers")
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("  short ", 10); got != "short" {
		t.Fatalf("truncate short = %q", got)
	}
	if got := truncate("abcdefghij", 5); got != "abcd…" {
		t.Fatalf("truncate long = %q", got)
	}
}
