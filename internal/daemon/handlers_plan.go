package daemon

import (
	"net/http"
	"net/url"
	"strings"

	"narrativ/internal/api"
	"narrativ/internal/imagegen"
	"narrativ/internal/services"
	"narrativ/internal/storyplan"
)

func (s *apiServer) handlePlanStory(w http.ResponseWriter, r *http.Request) {
	var req api.PlanStoryRequest
	if err := s.decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	plan, err := s.h.Planner.PlanStory(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.PlanResponse{Plan: plan})
}

func (s *apiServer) handlePlanFromText(w http.ResponseWriter, r *http.Request) {
	var req api.PlanFromTextRequest
	if err := s.decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	plan, err := s.h.Planner.PlanFromText(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.PlanResponse{Plan: plan})
}

func (s *apiServer) handleAddSlides(w http.ResponseWriter, r *http.Request) {
	var req api.AddSlidesRequest
	if err := s.decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	resp, err := s.h.Planner.AddSlides(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *apiServer) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req api.GenerateRequest
	if err := s.decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if strings.TrimSpace(req.Plan.Topic) == "" {
		s.writeError(w, r, services.Wrap(services.ErrValidation, "generate", "plan", "Valid plan is required", nil))
		return
	}
	if err := storyplan.CheckNumbers(req.Plan.Slides); err != nil {
		s.writeError(w, r, err)
		return
	}
	provider := strings.TrimSpace(req.Provider)
	if provider == "" {
		provider = s.h.DefaultProvider
	}
	ctx := services.WithStage(services.WithTopic(r.Context(), req.Plan.Topic), "generate")
	story, err := s.h.Images.GenerateStory(ctx, req.Plan, imagegen.GenerateOptions{
		Provider:      provider,
		HFQualityMode: req.HFQualityMode,
		BrandID:       req.BrandID,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.GenerateResponse{
		Images:       s.imageURLs(story),
		SlideNumbers: story.SlideNumbers,
	})
}

// imageURLs maps story files to the /images route on the public base URL.
func (s *apiServer) imageURLs(story imagegen.Story) []string {
	urls := make([]string, 0, len(story.Files))
	base := strings.TrimRight(s.h.PublicBaseURL, "/")
	for _, file := range story.Files {
		urls = append(urls, base+"/images/"+url.PathEscape(story.Folder)+"/"+url.PathEscape(file))
	}
	return urls
}
