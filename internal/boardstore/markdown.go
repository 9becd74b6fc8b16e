package boardstore

import (
	"bytes"
	"errors"
	"fmt"
	"hash/fnv"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
	"gopkg.in/yaml.v3"

	"narrativ/internal/api"
	"narrativ/internal/fileutil"
	"narrativ/internal/services"
	"narrativ/internal/storyplan"
	"narrativ/internal/style"
)

const maxSlugLength = 50

type frontmatter struct {
	ID        string `yaml:"id"`
	Topic     string `yaml:"topic"`
	Style     string `yaml:"style"`
	ImageSize string `yaml:"image_size"`
	Created   string `yaml:"created"`
}

// Slugify lower-cases text, drops punctuation, and hyphenates whitespace.
func Slugify(value string) string {
	var b strings.Builder
	lastHyphen := false
	for _, r := range strings.ToLower(value) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_':
			b.WriteRune(r)
			lastHyphen = false
		case r == '-' || unicode.IsSpace(r):
			if !lastHyphen && b.Len() > 0 {
				b.WriteRune('-')
				lastHyphen = true
			}
		}
	}
	slug := strings.Trim(b.String(), "-")
	if runes := []rune(slug); len(runes) > maxSlugLength {
		slug = strings.TrimRight(string(runes[:maxSlugLength]), "-")
	}
	if slug == "" {
		return "untitled"
	}
	return slug
}

// MarkdownFilename names the mirror file for a research board.
func MarkdownFilename(board api.ResearchBoard) string {
	return Slugify(board.Topic) + "-" + board.ID + ".md"
}

// ExportResearchMarkdown renders a research board as markdown with YAML frontmatter.
func ExportResearchMarkdown(board api.ResearchBoard) ([]byte, error) {
	styleName := board.StyleName
	if styleName == "" {
		styleName = board.Aesthetic.Name
	}
	if styleName == "" {
		styleName = "Default"
	}
	size := board.ImageSize
	if size == "" {
		size = string(storyplan.SizeStory)
	}
	topic := board.Topic
	if strings.TrimSpace(topic) == "" {
		topic = "Untitled"
	}
	meta, err := yaml.Marshal(frontmatter{
		ID:        board.ID,
		Topic:     topic,
		Style:     styleName,
		ImageSize: size,
		Created:   board.CreatedAt,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal frontmatter: %w", err)
	}

	var buf bytes.Buffer
	buf.WriteString("---\n")
	buf.Write(meta)
	buf.WriteString("---\n\n")
	fmt.Fprintf(&buf, "# %s\n\n", topic)
	for i, slide := range board.Slides {
		fmt.Fprintf(&buf, "## Slide %d: %s\n\n", i+1, slide.Title)
		fmt.Fprintf(&buf, "**Key Fact**: %s\n\n", slide.KeyFact)
		fmt.Fprintf(&buf, "**Visual**: %s\n\n", slide.VisualDescription)
		if slide.Mood != "" {
			fmt.Fprintf(&buf, "**Mood**: %s\n\n", slide.Mood)
		}
		buf.WriteString("---\n\n")
	}
	if board.Caption != "" {
		fmt.Fprintf(&buf, "## Caption\n\n%s\n\n", board.Caption)
	}
	if len(board.Hashtags) > 0 {
		fmt.Fprintf(&buf, "## Hashtags\n\n%s\n\n", strings.Join(board.Hashtags, " "))
	}
	if len(board.Sources) > 0 {
		buf.WriteString("## Sources\n\n")
		for _, src := range board.Sources {
			title := src.Title
			if title == "" {
				title = "Source"
			}
			fmt.Fprintf(&buf, "- [%s](%s)\n", title, src.URL)
		}
		buf.WriteString("\n")
	}
	return buf.Bytes(), nil
}

var (
	slideHeading = regexp.MustCompile(`^Slide\s+\d+:\s*(.*)$`)
	hashtagToken = regexp.MustCompile(`#[\p{L}\p{N}_]+`)
)

// ParseResearchMarkdown reads a board written by ExportResearchMarkdown. The
// aesthetic is resolved from the frontmatter style name against the
// predefined catalog when possible.
func ParseResearchMarkdown(content []byte, filename string) (api.ResearchBoard, error) {
	meta, body, err := splitFrontmatter(content)
	if err != nil {
		return api.ResearchBoard{}, err
	}
	board := api.ResearchBoard{
		ID:        meta.ID,
		Topic:     meta.Topic,
		StyleName: meta.Style,
		ImageSize: meta.ImageSize,
		CreatedAt: meta.Created,
	}
	for _, st := range style.Predefined() {
		if st.Name == meta.Style {
			board.Aesthetic = st
		}
	}

	src := body
	doc := goldmark.DefaultParser().Parse(text.NewReader(src))

	const (
		sectionNone = iota
		sectionSlide
		sectionCaption
		sectionHashtags
		sectionSources
	)
	section := sectionNone
	var captions []string
	var current *storyplan.Slide

	for node := doc.FirstChild(); node != nil; node = node.NextSibling() {
		switch n := node.(type) {
		case *ast.Heading:
			heading := strings.TrimSpace(nodeText(n, src))
			if n.Level == 1 {
				if board.Topic == "" {
					board.Topic = heading
				}
				section = sectionNone
				continue
			}
			if n.Level != 2 {
				continue
			}
			if m := slideHeading.FindStringSubmatch(heading); m != nil {
				board.Slides = append(board.Slides, storyplan.Slide{Title: strings.TrimSpace(m[1])})
				current = &board.Slides[len(board.Slides)-1]
				section = sectionSlide
				continue
			}
			current = nil
			switch strings.ToLower(heading) {
			case "caption":
				section = sectionCaption
			case "hashtags":
				section = sectionHashtags
			case "sources":
				section = sectionSources
			default:
				section = sectionNone
			}
		case *ast.Paragraph:
			line := strings.TrimSpace(nodeText(n, src))
			switch section {
			case sectionSlide:
				if current == nil {
					continue
				}
				label, value, ok := strings.Cut(line, ":")
				if !ok {
					continue
				}
				value = strings.TrimSpace(value)
				switch strings.ToLower(strings.TrimSpace(label)) {
				case "key fact":
					current.KeyFact = value
				case "visual":
					current.VisualDescription = value
				case "mood":
					current.Mood = value
				}
			case sectionCaption:
				captions = append(captions, line)
			case sectionHashtags:
				board.Hashtags = append(board.Hashtags, hashtagToken.FindAllString(line, -1)...)
			}
		case *ast.List:
			if section != sectionSources {
				continue
			}
			_ = ast.Walk(n, func(child ast.Node, entering bool) (ast.WalkStatus, error) {
				if !entering {
					return ast.WalkContinue, nil
				}
				if link, ok := child.(*ast.Link); ok {
					board.Sources = append(board.Sources, storyplan.Source{
						Title: strings.TrimSpace(nodeText(link, src)),
						URL:   string(link.Destination),
					})
					return ast.WalkSkipChildren, nil
				}
				return ast.WalkContinue, nil
			})
		}
	}

	board.Caption = strings.Join(captions, "\n\n")
	storyplan.Renumber(board.Slides)
	if board.ID == "" {
		h := fnv.New32a()
		_, _ = h.Write([]byte(filename))
		board.ID = strconv.FormatUint(uint64(h.Sum32()), 10)
	}
	if board.Topic == "" {
		board.Topic = strings.TrimSuffix(filepath.Base(filename), ".md")
	}
	if board.ImageSize == "" {
		board.ImageSize = string(storyplan.SizeStory)
	}
	if len(board.Slides) > storyplan.MaxSlides {
		return api.ResearchBoard{}, services.Wrap(services.ErrValidation, "boards", "import", fmt.Sprintf("%d slides exceeds maximum of %d", len(board.Slides), storyplan.MaxSlides), nil)
	}
	return board, nil
}

func splitFrontmatter(content []byte) (frontmatter, []byte, error) {
	var meta frontmatter
	normalized := bytes.ReplaceAll(content, []byte("\r\n"), []byte("\n"))
	if !bytes.HasPrefix(normalized, []byte("---\n")) {
		return meta, normalized, nil
	}
	rest := normalized[len("---\n"):]
	end := bytes.Index(rest, []byte("\n---\n"))
	if end < 0 {
		return meta, normalized, nil
	}
	if err := yaml.Unmarshal(rest[:end], &meta); err != nil {
		return meta, nil, services.Wrap(services.ErrValidation, "boards", "import", "invalid frontmatter", err)
	}
	return meta, rest[end+len("\n---\n"):], nil
}

func nodeText(n ast.Node, src []byte) string {
	var b strings.Builder
	_ = ast.Walk(n, func(child ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch t := child.(type) {
		case *ast.Text:
			b.Write(t.Segment.Value(src))
			if t.SoftLineBreak() || t.HardLineBreak() {
				b.WriteByte(' ')
			}
		case *ast.String:
			b.Write(t.Value)
		}
		return ast.WalkContinue, nil
	})
	return b.String()
}

// WriteResearchMarkdown writes the board's mirror file into dir.
func WriteResearchMarkdown(dir string, board api.ResearchBoard) error {
	content, err := ExportResearchMarkdown(board)
	if err != nil {
		return err
	}
	path := filepath.Join(dir, MarkdownFilename(board))
	if err := fileutil.WriteFileAtomic(path, content, 0o644); err != nil {
		return fmt.Errorf("write research markdown: %w", err)
	}
	return nil
}

// RemoveResearchMarkdown deletes the board's mirror file if present.
func RemoveResearchMarkdown(dir string, board api.ResearchBoard) error {
	err := os.Remove(filepath.Join(dir, MarkdownFilename(board)))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}
