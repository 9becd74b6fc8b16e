package studio

import (
	"context"
	"net/http"

	"narrativ/internal/api"
	"narrativ/internal/services"
	"narrativ/internal/storyplan"
)

// GenerateRequest asks the daemon to render one image per plan slide.
type GenerateRequest struct {
	Plan          storyplan.Plan
	Provider      string
	BrandID       string
	HFQualityMode string
}

// Generated is the outcome of one generation call.
type Generated struct {
	Images       []string
	SlideNumbers []int
}

// Slides returns the plan slides that produced each image, in image order.
func (g Generated) Slides(plan storyplan.Plan) []storyplan.Slide {
	if len(g.SlideNumbers) == len(g.Images) && len(g.SlideNumbers) > 0 {
		byNumber := make(map[int]storyplan.Slide, len(plan.Slides))
		for _, s := range plan.Slides {
			byNumber[s.SlideNumber] = s
		}
		out := make([]storyplan.Slide, 0, len(g.SlideNumbers))
		for _, n := range g.SlideNumbers {
			if s, ok := byNumber[n]; ok {
				out = append(out, s)
			}
		}
		if len(out) == len(g.Images) {
			return out
		}
	}
	n := min(len(g.Images), len(plan.Slides))
	return append([]storyplan.Slide(nil), plan.Slides[:n]...)
}

// Generate renders images for every slide in req.Plan. Images[i] belongs to
// req.Plan.Slides[i] unless SlideNumbers says otherwise. An empty list is
// returned without error.
func (c *Client) Generate(ctx context.Context, req GenerateRequest) (Generated, error) {
	if len(req.Plan.Slides) == 0 {
		return Generated{}, services.Wrap(services.ErrValidation, "generation", "generate", "plan has no slides", nil)
	}
	body := api.GenerateRequest{
		Plan:          req.Plan,
		Provider:      req.Provider,
		BrandID:       req.BrandID,
		HFQualityMode: req.HFQualityMode,
	}
	var resp api.GenerateResponse
	if err := c.do(ctx, http.MethodPost, "/generate_from_plan", body, &resp); err != nil {
		return Generated{}, services.Wrap(services.ErrGeneration, "generation", "generate", "image request failed", err)
	}
	out := Generated{Images: resp.Images, SlideNumbers: resp.SlideNumbers}
	if out.Images == nil {
		out.Images = []string{}
	}
	return out, nil
}
