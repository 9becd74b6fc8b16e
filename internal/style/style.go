// Package style holds the visual aesthetic definitions that steer slide
// planning and image generation.
package style

import (
	"context"
	"fmt"
	"strings"

	"narrativ/internal/services"
)

// Style is a set of descriptive strings controlling visual generation.
type Style struct {
	ID              string `json:"id,omitempty"`
	Name            string `json:"name,omitempty"`
	ArtStyle        string `json:"art_style"`
	ColorPalette    string `json:"color_palette"`
	Lighting        string `json:"lighting"`
	Texture         string `json:"texture"`
	TypographyStyle string `json:"typography_style"`
	BackgroundStyle string `json:"background_style"`
	Custom          bool   `json:"custom,omitempty"`
}

// IsZero reports whether no descriptive field is set.
func (s Style) IsZero() bool {
	return s.ArtStyle == "" && s.ColorPalette == "" && s.Lighting == "" &&
		s.Texture == "" && s.TypographyStyle == "" && s.BackgroundStyle == ""
}

// Description renders the one-line aesthetic description sent to the planner.
func (s Style) Description() string {
	parts := make([]string, 0, 6)
	add := func(label, value string) {
		if value = strings.TrimSpace(value); value != "" {
			parts = append(parts, label+": "+value)
		}
	}
	add("Art style", s.ArtStyle)
	add("Colors", s.ColorPalette)
	add("Lighting", s.Lighting)
	add("Texture", s.Texture)
	add("Typography", s.TypographyStyle)
	add("Background", s.BackgroundStyle)
	return strings.Join(parts, ". ")
}

// Validate checks a custom style carries a name and every descriptive field.
func (s Style) Validate() error {
	fields := []struct {
		key   string
		value string
	}{
		{"name", s.Name},
		{"art_style", s.ArtStyle},
		{"color_palette", s.ColorPalette},
		{"lighting", s.Lighting},
		{"texture", s.Texture},
		{"typography_style", s.TypographyStyle},
		{"background_style", s.BackgroundStyle},
	}
	for _, f := range fields {
		if strings.TrimSpace(f.value) == "" {
			return services.Wrap(services.ErrValidation, "styles", "validate", fmt.Sprintf("missing required field: %s", f.key), nil)
		}
	}
	return nil
}

// CustomSource supplies user-defined styles.
type CustomSource interface {
	ListStyles(ctx context.Context) ([]Style, error)
}

// Catalog resolves styles from the predefined set first, then custom styles.
type Catalog struct {
	custom CustomSource
}

// NewCatalog returns a catalog backed by the optional custom source.
func NewCatalog(custom CustomSource) *Catalog {
	return &Catalog{custom: custom}
}

// All returns predefined styles followed by custom ones.
func (c *Catalog) All(ctx context.Context) ([]Style, error) {
	out := Predefined()
	if c == nil || c.custom == nil {
		return out, nil
	}
	custom, err := c.custom.ListStyles(ctx)
	if err != nil {
		return nil, err
	}
	for _, s := range custom {
		s.Custom = true
		out = append(out, s)
	}
	return out, nil
}

// Lookup finds a style by id.
func (c *Catalog) Lookup(ctx context.Context, id string) (Style, bool, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Style{}, false, nil
	}
	if s, ok := predefinedByID(id); ok {
		return s, true, nil
	}
	if c == nil || c.custom == nil {
		return Style{}, false, nil
	}
	custom, err := c.custom.ListStyles(ctx)
	if err != nil {
		return Style{}, false, err
	}
	for _, s := range custom {
		if s.ID == id {
			s.Custom = true
			return s, true, nil
		}
	}
	return Style{}, false, nil
}
