package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"narrativ/internal/services"
	"narrativ/internal/storyplan"
	"narrativ/internal/style"
)

const defaultSlideCount = 5

// parseSelection turns "1,3,5-7" into sorted unique slide numbers.
func parseSelection(value string) ([]int, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	seen := make(map[int]struct{})
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		lo, hi := part, part
		if i := strings.Index(part, "-"); i > 0 {
			lo, hi = part[:i], part[i+1:]
		}
		start, err := strconv.Atoi(strings.TrimSpace(lo))
		if err != nil {
			return nil, fmt.Errorf("invalid slide selection %q", part)
		}
		end, err := strconv.Atoi(strings.TrimSpace(hi))
		if err != nil || end < start || start < 1 {
			return nil, fmt.Errorf("invalid slide selection %q", part)
		}
		for n := start; n <= end; n++ {
			seen[n] = struct{}{}
		}
	}
	out := make([]int, 0, len(seen))
	for n := range seen {
		out = append(out, n)
	}
	sort.Ints(out)
	return out, nil
}

// readTextInput reads pasted content from path, or stdin when path is "-".
func readTextInput(path string, stdin io.Reader) (string, error) {
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return "", fmt.Errorf("read text input: %w", err)
	}
	return string(data), nil
}

type styleSource interface {
	ListStyles(ctx context.Context) ([]style.Style, error)
}

// resolveStyle looks up a style id among predefined and daemon custom styles.
// An empty id returns the zero style, which lets the daemon choose.
func resolveStyle(ctx context.Context, custom styleSource, id string) (style.Style, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return style.Style{}, nil
	}
	st, ok, err := style.NewCatalog(custom).Lookup(ctx, id)
	if err != nil {
		return style.Style{}, err
	}
	if !ok {
		return style.Style{}, services.Wrap(services.ErrNotFound, "styles", "lookup", fmt.Sprintf("style %q not found; see `narrativ styles list`", id), nil)
	}
	return st, nil
}

func truncate(value string, limit int) string {
	runes := []rune(strings.TrimSpace(value))
	if len(runes) <= limit {
		return string(runes)
	}
	return string(runes[:limit-1]) + "…"
}

func slideRows(slides []storyplan.Slide, selected func(int) bool) [][]string {
	rows := make([][]string, 0, len(slides))
	for _, s := range slides {
		mark := ""
		if selected == nil || selected(s.SlideNumber) {
			mark = "*"
		}
		rows = append(rows, []string{
			strconv.Itoa(s.SlideNumber),
			mark,
			truncate(s.Title, 40),
			truncate(s.KeyFact, 60),
		})
	}
	return rows
}

func printPlan(w io.Writer, plan storyplan.Plan, selected func(int) bool) {
	fmt.Fprintf(w, "Topic: %s\n", plan.Topic)
	if plan.StyleName != "" {
		fmt.Fprintf(w, "Style: %s\n", plan.StyleName)
	}
	fmt.Fprintf(w, "Size:  %s\n", plan.ImageSize)
	printTable(w, []string{"#", "Sel", "Title", "Key fact"}, slideRows(plan.Slides, selected), []columnAlignment{alignRight})
	if plan.Caption != "" {
		fmt.Fprintf(w, "Caption: %s\n", plan.Caption)
	}
	if len(plan.Hashtags) > 0 {
		fmt.Fprintf(w, "Hashtags: %s\n", strings.Join(plan.Hashtags, " "))
	}
	for _, src := range plan.Sources {
		fmt.Fprintf(w, "Source: %s <%s>\n", src.Title, src.URL)
	}
}
