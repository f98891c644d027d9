package search

import (
	"log/slog"
	"sort"
	"strings"
	"time"

	"sagashark/internal/saga"
)

// Hit is a ranked saga.
type Hit struct {
	Saga  *saga.Saga
	Path  string
	Score float64
}

// TextSearcher ranks saga files by keyword relevance without an index.
type TextSearcher struct {
	dir    string
	logger *slog.Logger
	now    func() time.Time
}

func NewTextSearcher(dir string, logger *slog.Logger) *TextSearcher {
	return &TextSearcher{dir: dir, logger: logger, now: time.Now}
}

func (t *TextSearcher) Search(query string, limit int) ([]Hit, error) {
	return t.SearchFiltered(query, limit, Filter{})
}

// SearchFiltered keeps sagas with a positive relevance that pass filter,
// best first. Ties keep the newest-file-first scan order.
func (t *TextSearcher) SearchFiltered(query string, limit int, filter Filter) ([]Hit, error) {
	filter, err := filter.Compile()
	if err != nil {
		return nil, err
	}
	entries, err := Scan(t.dir, t.logger)
	if err != nil {
		return nil, err
	}
	now := t.now()
	var hits []Hit
	for _, e := range entries {
		if !filter.Match(e.Saga) {
			continue
		}
		if score := Relevance(e.Saga, query, now); score > 0 {
			hits = append(hits, Hit{Saga: e.Saga, Path: e.Path, Score: score})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

func (t *TextSearcher) ByType(typ saga.Type, limit int) ([]Hit, error) {
	return t.Recent(limit, Filter{Type: typ})
}

func (t *TextSearcher) ByTag(tag string, limit int) ([]Hit, error) {
	return t.Recent(limit, Filter{Tag: tag})
}

// Recent lists sagas newest file first.
func (t *TextSearcher) Recent(limit int, filter Filter) ([]Hit, error) {
	filter, err := filter.Compile()
	if err != nil {
		return nil, err
	}
	entries, err := Scan(t.dir, t.logger)
	if err != nil {
		return nil, err
	}
	var hits []Hit
	for _, e := range entries {
		if !filter.Match(e.Saga) {
			continue
		}
		hits = append(hits, Hit{Saga: e.Saga, Path: e.Path})
		if limit > 0 && len(hits) == limit {
			break
		}
	}
	return hits, nil
}

// Relevance scores s against query. Title hits weigh most, then content,
// tags, branch and type, plus a small bonus for recent sagas.
func Relevance(s *saga.Saga, query string, now time.Time) float64 {
	query = strings.ToLower(query)
	if strings.TrimSpace(query) == "" {
		return 0
	}
	words := wordSet(query)
	score := 0.0

	title := strings.ToLower(s.Title)
	if strings.Contains(title, query) {
		score += 10
	} else {
		score += 3 * float64(overlap(words, wordSet(title)))
	}

	content := strings.ToLower(s.Content)
	if strings.Contains(content, query) {
		score += 5
		extra := strings.Count(content, query) - 1
		if extra > 5 {
			extra = 5
		}
		score += 0.5 * float64(extra)
	} else {
		score += min(0.5*float64(overlap(words, wordSet(content))), 3)
	}

	for _, tag := range s.Tags {
		tag = strings.ToLower(tag)
		if strings.Contains(tag, query) {
			score += 2
			continue
		}
		for w := range words {
			if strings.Contains(tag, w) {
				score++
				break
			}
		}
	}

	if strings.Contains(query, string(s.Type)) {
		score += 1.5
	}

	age := now.Sub(s.Timestamp)
	switch {
	case age < 7*24*time.Hour:
		score += 1
	case age < 30*24*time.Hour:
		score += 0.5
	}

	if branch := strings.ToLower(s.Branch); branch != "" && strings.Contains(query, branch) {
		score += 2
	}
	return score
}

func wordSet(text string) map[string]struct{} {
	out := map[string]struct{}{}
	for _, w := range strings.Fields(text) {
		out[w] = struct{}{}
	}
	return out
}

func overlap(a, b map[string]struct{}) int {
	n := 0
	for w := range a {
		if _, ok := b[w]; ok {
			n++
		}
	}
	return n
}
