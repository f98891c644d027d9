package saga

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"sagashark/internal/pathutil"
)

const maxSlugLength = 30

var (
	wordPattern    = regexp.MustCompile(`[\p{L}\p{N}_]+`)
	nonSlugPattern = regexp.MustCompile(`[^\p{L}\p{N}_\s-]`)
	dashPattern    = regexp.MustCompile(`[-\s]+`)
)

var skipWords = map[string]bool{
	"the": true, "a": true, "an": true, "and": true, "or": true, "but": true,
	"in": true, "on": true, "at": true, "to": true, "for": true, "of": true,
	"with": true, "by": true, "from": true, "up": true, "about": true,
	"into": true, "through": true, "during": true, "how": true, "when": true,
	"where": true, "why": true, "what": true, "is": true, "are": true,
	"was": true, "were": true, "been": true, "be": true, "have": true,
	"has": true, "had": true, "do": true, "does": true, "did": true,
	"will": true, "would": true, "could": true, "should": true, "may": true,
	"might": true, "must": true, "can": true, "this": true, "that": true,
	"these": true, "those": true,
}

// Filename is YYYY-MM-DD-HHMM-<slug>.md in the saga's own timestamp.
func (s *Saga) Filename() string {
	return fmt.Sprintf("%s-%s.md", s.Timestamp.Format("2006-01-02-1504"), Slug(s.Title))
}

// Slug keeps up to four meaningful words of title, hyphen-joined and cut at
// a word boundary within 30 characters. It is never empty.
func Slug(title string) string {
	words := wordPattern.FindAllString(strings.ToLower(title), -1)
	important := make([]string, 0, len(words))
	for _, w := range words {
		if skipWords[w] || utf8.RuneCountInString(w) <= 2 {
			continue
		}
		important = append(important, w)
	}
	if len(important) < 2 {
		important = words
		if len(important) > 3 {
			important = important[:3]
		}
	}
	if len(important) > 4 {
		important = important[:4]
	}

	slug := strings.Join(important, "-")
	if utf8.RuneCountInString(slug) > maxSlugLength {
		slug = string([]rune(slug)[:maxSlugLength])
		if idx := strings.LastIndex(slug, "-"); idx > 0 {
			slug = slug[:idx]
		}
	}
	if slug == "" {
		slug = slugify(title)
	}
	if slug == "" {
		slug = "saga"
	}
	return slug
}

func slugify(text string) string {
	slug := nonSlugPattern.ReplaceAllString(strings.ToLower(text), "")
	slug = strings.Trim(dashPattern.ReplaceAllString(slug, "-"), "-")
	if utf8.RuneCountInString(slug) > maxSlugLength {
		slug = strings.TrimRight(string([]rune(slug)[:maxSlugLength]), "-")
	}
	return slug
}

// Organizer moves a freshly written saga file into its final location.
type Organizer interface {
	Organize(path string, date time.Time) (string, error)
}

// Save writes the saga under dir and hands it to org when one is given.
// An existing file at the staging path is never overwritten.
func (s *Saga) Save(dir string, org Organizer) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create saga dir: %w", err)
	}
	text, err := s.Markdown()
	if err != nil {
		return "", err
	}
	path := pathutil.UniquePath(filepath.Join(dir, s.Filename()))
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		return "", fmt.Errorf("write saga: %w", err)
	}
	if org == nil {
		return path, nil
	}
	final, err := org.Organize(path, s.Timestamp)
	if err != nil {
		return path, fmt.Errorf("organize saga: %w", err)
	}
	return final, nil
}
