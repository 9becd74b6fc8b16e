package daemon

import (
	"errors"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"narrativ/internal/services"
)

// safeSegment rejects anything that could escape the output directory.
func safeSegment(value string) bool {
	if value == "" || value == "." || value == ".." {
		return false
	}
	if strings.ContainsAny(value, `/\`) || strings.Contains(value, "..") {
		return false
	}
	return filepath.Base(value) == value
}

func (s *apiServer) handleImage(w http.ResponseWriter, r *http.Request) {
	folder, file := r.PathValue("folder"), r.PathValue("file")
	if !safeSegment(folder) || !safeSegment(file) {
		s.writeError(w, r, services.Wrap(services.ErrValidation, "images", "serve", "invalid image path", nil))
		return
	}
	path := filepath.Join(s.h.Images.OutputDir(), folder, file)
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			s.writeError(w, r, services.Wrap(services.ErrNotFound, "images", "serve", "Image not found", nil))
			return
		}
		s.writeError(w, r, err)
		return
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil || info.IsDir() {
		s.writeError(w, r, services.Wrap(services.ErrNotFound, "images", "serve", "Image not found", nil))
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "public, max-age=86400")
	http.ServeContent(w, r, file, info.ModTime(), f)
}
