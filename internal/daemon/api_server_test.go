package daemon

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"narrativ/internal/api"
	"narrativ/internal/imagegen"
	"narrativ/internal/logging"
	"narrativ/internal/services"
	"narrativ/internal/storyplan"
	"narrativ/internal/style"
	"narrativ/internal/testsupport"
)

type plannerStub struct {
	plan    storyplan.Plan
	err     error
	lastReq any
}

func (p *plannerStub) PlanStory(_ context.Context, req api.PlanStoryRequest) (storyplan.Plan, error) {
	p.lastReq = req
	return p.plan, p.err
}

func (p *plannerStub) PlanFromText(_ context.Context, req api.PlanFromTextRequest) (storyplan.Plan, error) {
	p.lastReq = req
	return p.plan, p.err
}

func (p *plannerStub) AddSlides(_ context.Context, req api.AddSlidesRequest) (api.AddSlidesResponse, error) {
	p.lastReq = req
	if p.err != nil {
		return api.AddSlidesResponse{}, p.err
	}
	return api.AddSlidesResponse{Slides: p.plan.Slides}, nil
}

type imagesStub struct {
	dir   string
	story imagegen.Story
	err   error
	opts  imagegen.GenerateOptions
}

func (i *imagesStub) GenerateStory(_ context.Context, _ storyplan.Plan, opts imagegen.GenerateOptions) (imagegen.Story, error) {
	i.opts = opts
	return i.story, i.err
}

func (i *imagesStub) OutputDir() string { return i.dir }

type fixture struct {
	server    *httptest.Server
	planner   *plannerStub
	images    *imagesStub
	extractor *extractorStub
	logPath   string
}

func newFixture(t *testing.T, token string) *fixture {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	planner := &plannerStub{}
	images := &imagesStub{dir: cfg.Paths.OutputDir}
	extractor := &extractorStub{}
	srv := newAPIServer("127.0.0.1:0", Handlers{
		Planner:         planner,
		Images:          images,
		Store:           store,
		Styles:          style.NewCatalog(store),
		Extractor:       extractor,
		DefaultProvider: "gemini-flash",
		PublicBaseURL:   "http://localhost:8000",
		Token:           token,
		LogPath:         cfg.DaemonLogPath(),
		ProviderStatus: func(context.Context) api.ProviderStatus {
			return api.ProviderStatus{LLM: api.LLMStatus{Gemini: api.Availability{Available: true}}}
		},
	}, logging.NewNop())
	server := httptest.NewServer(srv.routes())
	t.Cleanup(server.Close)
	return &fixture{server: server, planner: planner, images: images, extractor: extractor, logPath: cfg.DaemonLogPath()}
}

func (f *fixture) do(t *testing.T, method, path string, body any, out any) int {
	t.Helper()
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequest(method, f.server.URL+path, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	resp, err := f.server.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s %s: %v", method, path, err)
		}
	}
	return resp.StatusCode
}

func TestHealthEndpoints(t *testing.T) {
	f := newFixture(t, "")
	for _, path := range []string{"/", "/health"} {
		var resp api.HealthResponse
		if code := f.do(t, http.MethodGet, path, nil, &resp); code != http.StatusOK || resp.Status != "ok" {
			t.Fatalf("GET %s = %d %+v", path, code, resp)
		}
	}
}

func TestPlanStoryReturnsPlan(t *testing.T) {
	f := newFixture(t, "")
	f.planner.plan = storyplan.Plan{Topic: "Octopus", Slides: []storyplan.Slide{{SlideNumber: 1, Title: "Arms"}}, ImageSize: storyplan.SizeStory}

	var resp api.PlanResponse
	code := f.do(t, http.MethodPost, "/plan_story", api.PlanStoryRequest{Topic: "Octopus", NumSlides: 1}, &resp)
	if code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if diff := cmp.Diff(f.planner.plan, resp.Plan); diff != "" {
		t.Fatalf("plan mismatch (-want +got):\n%s", diff)
	}
	if got := f.planner.lastReq.(api.PlanStoryRequest); got.NumSlides != 1 || got.Topic != "Octopus" {
		t.Fatalf("planner got %+v", got)
	}
}

func TestPlanErrorsMapToStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation", services.Wrap(services.ErrValidation, "plan", "plan story", "Topic is required", nil), http.StatusBadRequest},
		{"planning", services.Wrap(services.ErrPlanning, "plan", "llm", "bad json", nil), http.StatusBadGateway},
		{"configuration", services.Wrap(services.ErrConfiguration, "llm", "route", "No LLM provider available", nil), http.StatusInternalServerError},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t, "")
			f.planner.err = tc.err
			var resp api.ErrorResponse
			code := f.do(t, http.MethodPost, "/plan_from_text", api.PlanFromTextRequest{Text: "x", NumSlides: 1}, &resp)
			if code != tc.want {
				t.Fatalf("status = %d, want %d", code, tc.want)
			}
			if resp.Error != tc.err.Error() {
				t.Fatalf("error body = %q", resp.Error)
			}
		})
	}
}

func TestMalformedBodyIsBadRequest(t *testing.T) {
	f := newFixture(t, "")
	resp, err := f.server.Client().Post(f.server.URL+"/add_slides", "application/json", strings.NewReader("{not json"))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}

func TestGenerateBuildsImageURLs(t *testing.T) {
	f := newFixture(t, "")
	f.images.story = imagegen.Story{
		Folder:       "Octopus_20250101_120000",
		Files:        []string{"slide1.png", "slide3.png"},
		SlideNumbers: []int{1, 3},
	}
	var resp api.GenerateResponse
	code := f.do(t, http.MethodPost, "/generate_from_plan", api.GenerateRequest{
		Plan:    storyplan.Plan{Topic: "Octopus"},
		BrandID: "brand-1",
	}, &resp)
	if code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	want := api.GenerateResponse{
		Images: []string{
			"http://localhost:8000/images/Octopus_20250101_120000/slide1.png",
			"http://localhost:8000/images/Octopus_20250101_120000/slide3.png",
		},
		SlideNumbers: []int{1, 3},
	}
	if diff := cmp.Diff(want, resp); diff != "" {
		t.Fatalf("response mismatch (-want +got):\n%s", diff)
	}
	if f.images.opts.Provider != "gemini-flash" || f.images.opts.BrandID != "brand-1" {
		t.Fatalf("unexpected generate options %+v", f.images.opts)
	}
}

func TestGenerateRequiresTopic(t *testing.T) {
	f := newFixture(t, "")
	var resp api.ErrorResponse
	if code := f.do(t, http.MethodPost, "/generate_from_plan", api.GenerateRequest{}, &resp); code != http.StatusBadRequest {
		t.Fatalf("status = %d", code)
	}
	if !strings.Contains(resp.Error, "Valid plan is required") {
		t.Fatalf("error = %q", resp.Error)
	}
}

func TestGenerateRejectsCollidingSlideNumbers(t *testing.T) {
	f := newFixture(t, "")
	f.images.story = imagegen.Story{Folder: "never", Files: []string{"slide1.png"}, SlideNumbers: []int{1}}
	tests := []struct {
		name   string
		slides []storyplan.Slide
	}{
		{"duplicate", []storyplan.Slide{{SlideNumber: 1, Title: "a"}, {SlideNumber: 1, Title: "b"}}},
		{"omitted", []storyplan.Slide{{Title: "a"}, {Title: "b"}}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var resp api.ErrorResponse
			code := f.do(t, http.MethodPost, "/generate_from_plan", api.GenerateRequest{
				Plan: storyplan.Plan{Topic: "Octopus", Slides: tc.slides},
			}, &resp)
			if code != http.StatusBadRequest {
				t.Fatalf("status = %d", code)
			}
			if !strings.Contains(resp.Error, "slide") {
				t.Fatalf("error = %q", resp.Error)
			}
		})
	}
	if f.images.opts.Provider != "" {
		t.Fatalf("generator should not run, got options %+v", f.images.opts)
	}
}

func TestBoardsLifecycle(t *testing.T) {
	f := newFixture(t, "")
	board := api.ResearchBoard{ID: "101", Topic: "Octopus", ImageSize: "story", Slides: []storyplan.Slide{{SlideNumber: 1, Title: "Arms"}}}

	var created api.ResearchBoardResponse
	if code := f.do(t, http.MethodPost, "/boards/research", board, &created); code != http.StatusOK {
		t.Fatalf("create status = %d", code)
	}
	if created.Board.CreatedAt == "" {
		t.Fatal("expected createdAt to be assigned")
	}

	board.Caption = "updated"
	var updated api.ResearchBoardResponse
	if code := f.do(t, http.MethodPut, "/boards/research/101", board, &updated); code != http.StatusOK {
		t.Fatalf("update status = %d", code)
	}

	var list api.ResearchBoardsResponse
	if code := f.do(t, http.MethodGet, "/boards/research", nil, &list); code != http.StatusOK {
		t.Fatalf("list status = %d", code)
	}
	if len(list.Boards) != 1 || list.Boards[0].Caption != "updated" {
		t.Fatalf("unexpected boards %+v", list.Boards)
	}

	if code := f.do(t, http.MethodDelete, "/boards/research/101", nil, nil); code != http.StatusOK {
		t.Fatalf("delete status = %d", code)
	}
	if code := f.do(t, http.MethodDelete, "/boards/research/101", nil, nil); code != http.StatusNotFound {
		t.Fatalf("second delete status = %d", code)
	}
	if code := f.do(t, http.MethodPut, "/boards/images/404", api.ImageBoard{Topic: "x"}, nil); code != http.StatusNotFound {
		t.Fatalf("update missing status = %d", code)
	}
}

func TestResearchBoardSlideBounds(t *testing.T) {
	f := newFixture(t, "")
	board := api.ResearchBoard{ID: "202", Topic: "Moss", ImageSize: "story", Slides: []storyplan.Slide{
		{SlideNumber: 4, Title: "Spores"}, {SlideNumber: 9, Title: "Rhizoids"},
	}}
	var created api.ResearchBoardResponse
	if code := f.do(t, http.MethodPost, "/boards/research", board, &created); code != http.StatusOK {
		t.Fatalf("create status = %d", code)
	}
	if got := []int{created.Board.Slides[0].SlideNumber, created.Board.Slides[1].SlideNumber}; got[0] != 1 || got[1] != 2 {
		t.Fatalf("slides not renumbered: %v", got)
	}

	empty := board
	empty.Slides = nil
	if code := f.do(t, http.MethodPut, "/boards/research/202", empty, nil); code != http.StatusBadRequest {
		t.Fatalf("empty update status = %d", code)
	}
	crowded := board
	crowded.Slides = make([]storyplan.Slide, storyplan.MaxSlides+1)
	if code := f.do(t, http.MethodPut, "/boards/research/202", crowded, nil); code != http.StatusBadRequest {
		t.Fatalf("oversized update status = %d", code)
	}
}

func TestBoardsRejectUnknownTypeAndMissingID(t *testing.T) {
	f := newFixture(t, "")
	if code := f.do(t, http.MethodGet, "/boards/notes", nil, nil); code != http.StatusBadRequest {
		t.Fatalf("unknown type status = %d", code)
	}
	if code := f.do(t, http.MethodPost, "/boards/images", api.ImageBoard{Topic: "no id"}, nil); code != http.StatusBadRequest {
		t.Fatalf("missing id status = %d", code)
	}
}

func TestStylesEndpoints(t *testing.T) {
	f := newFixture(t, "")
	custom := style.Style{
		Name:            "Ink Wash",
		ArtStyle:        "sumi-e",
		ColorPalette:    "black and grey",
		Lighting:        "soft",
		Texture:         "rice paper",
		TypographyStyle: "brush",
		BackgroundStyle: "blank",
	}
	var saved api.StyleResponse
	if code := f.do(t, http.MethodPost, "/styles", custom, &saved); code != http.StatusOK {
		t.Fatalf("save status = %d", code)
	}
	if saved.Style.ID == "" || !saved.Style.Custom {
		t.Fatalf("unexpected saved style %+v", saved.Style)
	}
	var list api.StylesResponse
	if code := f.do(t, http.MethodGet, "/styles", nil, &list); code != http.StatusOK {
		t.Fatalf("list status = %d", code)
	}
	if got := list.Styles[len(list.Styles)-1]; got.ID != saved.Style.ID {
		t.Fatalf("custom style missing from list: %+v", list.Styles)
	}
	if code := f.do(t, http.MethodPost, "/styles", style.Style{Name: "empty"}, nil); code != http.StatusBadRequest {
		t.Fatalf("invalid style status = %d", code)
	}
}

func TestServeImage(t *testing.T) {
	f := newFixture(t, "")
	folder := filepath.Join(f.images.dir, "Octopus_20250101_120000")
	if err := os.MkdirAll(folder, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(folder, "slide1.png"), []byte("PNG"), 0o644); err != nil {
		t.Fatal(err)
	}

	resp, err := f.server.Client().Get(f.server.URL + "/images/Octopus_20250101_120000/slide1.png")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || string(body) != "PNG" || resp.Header.Get("Content-Type") != "image/png" {
		t.Fatalf("unexpected response %d %q %q", resp.StatusCode, body, resp.Header.Get("Content-Type"))
	}

	if code := f.do(t, http.MethodGet, "/images/Octopus_20250101_120000/slide9.png", nil, nil); code != http.StatusNotFound {
		t.Fatalf("missing image status = %d", code)
	}
	if code := f.do(t, http.MethodGet, "/images/..hidden/slide1.png", nil, nil); code != http.StatusBadRequest {
		t.Fatalf("traversal status = %d", code)
	}
}

func TestSafeSegment(t *testing.T) {
	for value, want := range map[string]bool{
		"slide1.png": true,
		"":           false,
		"..":         false,
		"a/b":        false,
		`a\b`:        false,
		"..secret":   false,
	} {
		if got := safeSegment(value); got != want {
			t.Errorf("safeSegment(%q) = %v, want %v", value, got, want)
		}
	}
}

func TestAuthRequiredExceptHealth(t *testing.T) {
	f := newFixture(t, "s3cret")
	if code := f.do(t, http.MethodGet, "/health", nil, nil); code != http.StatusOK {
		t.Fatalf("health status = %d", code)
	}
	if code := f.do(t, http.MethodGet, "/check_providers", nil, nil); code != http.StatusUnauthorized {
		t.Fatalf("unauthenticated status = %d", code)
	}

	req, _ := http.NewRequest(http.MethodGet, f.server.URL+"/check_providers", nil)
	req.Header.Set("Authorization", "Bearer s3cret")
	resp, err := f.server.Client().Do(req)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	var status api.ProviderStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.StatusCode != http.StatusOK || !status.LLM.Gemini.Available {
		t.Fatalf("unexpected provider response %d %+v", resp.StatusCode, status)
	}
}

func TestRequestIDEchoed(t *testing.T) {
	f := newFixture(t, "")
	req, _ := http.NewRequest(http.MethodGet, f.server.URL+"/health", nil)
	req.Header.Set("X-Request-ID", "req-42")
	resp, err := f.server.Client().Do(req)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if got := resp.Header.Get("X-Request-ID"); got != "req-42" {
		t.Fatalf("request id = %q", got)
	}

	resp, err = f.server.Client().Get(f.server.URL + "/health")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.Header.Get("X-Request-ID") == "" {
		t.Fatal("expected generated request id")
	}
}

func TestLogsEndpoint(t *testing.T) {
	f := newFixture(t, "")

	var empty api.LogTailResponse
	if code := f.do(t, http.MethodGet, "/logs", nil, &empty); code != http.StatusOK {
		t.Fatalf("GET /logs without file = %d", code)
	}
	if len(empty.Lines) != 0 || empty.Offset != 0 {
		t.Fatalf("expected empty tail, got %+v", empty)
	}

	if err := os.MkdirAll(filepath.Dir(f.logPath), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(f.logPath, []byte("one\ntwo\nthree\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	var tail api.LogTailResponse
	if code := f.do(t, http.MethodGet, "/logs?lines=2", nil, &tail); code != http.StatusOK {
		t.Fatalf("GET /logs?lines=2 = %d", code)
	}
	if diff := cmp.Diff([]string{"two", "three"}, tail.Lines); diff != "" {
		t.Fatalf("tail mismatch (-want +got):\n%s", diff)
	}

	fh, err := os.OpenFile(f.logPath, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatal(err)
	}
	_, _ = fh.WriteString("four\n")
	_ = fh.Close()

	var next api.LogTailResponse
	path := "/logs?offset=" + strconv.FormatInt(tail.Offset, 10) + "&follow=true"
	if code := f.do(t, http.MethodGet, path, nil, &next); code != http.StatusOK {
		t.Fatalf("GET %s = %d", path, code)
	}
	if diff := cmp.Diff([]string{"four"}, next.Lines); diff != "" {
		t.Fatalf("follow mismatch (-want +got):\n%s", diff)
	}

	for _, bad := range []string{"/logs?lines=-1", "/logs?lines=abc", "/logs?offset=x"} {
		if code := f.do(t, http.MethodGet, bad, nil, nil); code != http.StatusBadRequest {
			t.Errorf("GET %s = %d, want 400", bad, code)
		}
	}
}
