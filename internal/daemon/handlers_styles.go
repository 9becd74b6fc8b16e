package daemon

import (
	"errors"
	"io"
	"net/http"
	"slices"
	"strings"

	"narrativ/internal/api"
	"narrativ/internal/research"
	"narrativ/internal/services"
	"narrativ/internal/services/llm"
)

const maxStyleImage = 10 << 20

var styleImageTypes = []string{"image/jpeg", "image/png", "image/webp", "image/gif"}

func (s *apiServer) handleDeleteStyle(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("style_id")
	if err := s.h.Store.DeleteStyle(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "deleted": id})
}

// handleExtractStyle takes a multipart upload with a "file" image and an
// optional "name", "llm_provider" and "ollama_model".
func (s *apiServer) handleExtractStyle(w http.ResponseWriter, r *http.Request) {
	if s.h.Extractor == nil {
		s.writeError(w, r, services.Wrap(services.ErrConfiguration, "styles", "extract", "style extraction is not configured", nil))
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxStyleImage+1<<20)
	if err := r.ParseMultipartForm(maxStyleImage); err != nil {
		s.writeError(w, r, services.Wrap(services.ErrValidation, "styles", "extract", "expected a multipart image upload of at most 10MB", err))
		return
	}
	img, err := readStyleImage(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	extracted, err := s.h.Extractor.Extract(r.Context(), research.ExtractStyleRequest{
		Name:        r.FormValue("name"),
		Image:       img,
		LLMProvider: r.FormValue("llm_provider"),
		OllamaModel: r.FormValue("ollama_model"),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.StyleResponse{Style: extracted})
}

func readStyleImage(r *http.Request) (llm.Image, error) {
	file, header, err := r.FormFile("file")
	if err != nil {
		return llm.Image{}, services.Wrap(services.ErrValidation, "styles", "extract", "file is required", err)
	}
	defer file.Close()
	data, err := io.ReadAll(io.LimitReader(file, maxStyleImage+1))
	if err != nil {
		return llm.Image{}, services.Wrap(services.ErrValidation, "styles", "extract", "read upload", err)
	}
	if len(data) > maxStyleImage {
		return llm.Image{}, services.Wrap(services.ErrValidation, "styles", "extract", "file too large, max 10MB", nil)
	}
	if len(data) == 0 {
		return llm.Image{}, services.Wrap(services.ErrValidation, "styles", "extract", "file is empty", nil)
	}
	mime := strings.TrimSpace(header.Header.Get("Content-Type"))
	if mime == "" || mime == "application/octet-stream" {
		mime = http.DetectContentType(data)
	}
	if !slices.Contains(styleImageTypes, mime) {
		return llm.Image{}, services.Wrap(services.ErrValidation, "styles", "extract",
			"invalid file type, allowed: "+strings.Join(styleImageTypes, ", "), errors.New(mime))
	}
	return llm.Image{MIMEType: mime, Data: data}, nil
}
