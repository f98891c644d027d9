package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"sagashark/internal/embed"
	"sagashark/internal/logging"
	"sagashark/internal/saga"
	"sagashark/internal/store"
)

const embedBatchSize = 16

var ErrVectorsDisabled = errors.New("vector search disabled")

// Index pairs the SQLite FTS index with optional embeddings.
type Index struct {
	store         *store.Store
	provider      embed.Provider
	status        embed.Status
	minSimilarity float64
	logger        *slog.Logger
}

func NewIndex(st *store.Store, provider embed.Provider, status embed.Status, minSimilarity float64, logger *slog.Logger) *Index {
	if minSimilarity < 0 {
		minSimilarity = 0
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &Index{store: st, provider: provider, status: status, minSimilarity: minSimilarity, logger: logger}
}

func (ix *Index) Status() embed.Status {
	return ix.status
}

type ReindexResult struct {
	store.ReindexStats
	Embedded   int    `json:"embedded"`
	EmbedError string `json:"embed_error,omitempty"`
}

// Reindex syncs the index with entries and embeds what changed. Embedding
// failures are reported in the result and never fail the reindex.
func (ix *Index) Reindex(ctx context.Context, entries []Entry) (ReindexResult, error) {
	records := make([]store.Record, 0, len(entries))
	for _, e := range entries {
		records = append(records, store.RecordFromSaga(e.Path, e.Saga))
	}
	stats, err := ix.store.Reindex(ctx, records)
	if err != nil {
		return ReindexResult{}, err
	}
	result := ReindexResult{ReindexStats: stats}
	if ix.provider == nil {
		return result, nil
	}
	embedded, err := ix.embedPending(ctx)
	result.Embedded = embedded
	if err != nil {
		ix.logger.Debug("embedding failed", "err", err)
		result.EmbedError = err.Error()
	}
	return result, nil
}

func (ix *Index) embedPending(ctx context.Context) (int, error) {
	model := ix.provider.Model()
	pending, err := ix.store.PendingEmbeddings(model)
	if err != nil {
		return 0, err
	}
	done := 0
	for start := 0; start < len(pending); start += embedBatchSize {
		end := min(start+embedBatchSize, len(pending))
		batch := pending[start:end]
		texts := make([]string, len(batch))
		for i, rec := range batch {
			texts[i] = rec.EmbeddingText()
		}
		vectors, err := ix.provider.Embed(ctx, texts)
		if err != nil {
			return done, err
		}
		for i, rec := range batch {
			if err := ix.store.UpsertEmbedding(store.Embedding{
				SagaID:      rec.ID,
				Model:       model,
				ContentHash: rec.ContentHash,
				Vector:      vectors[i],
			}); err != nil {
				return done, err
			}
			done++
		}
	}
	return done, nil
}

// Search runs a full-text query against the index.
func (ix *Index) Search(query string, limit int) ([]Hit, error) {
	results, err := ix.store.Search(query, limit)
	if err != nil {
		return nil, err
	}
	hits := make([]Hit, 0, len(results))
	for _, res := range results {
		hits = append(hits, Hit{Saga: recordSaga(res.Record), Path: res.Record.Path, Score: res.Score})
	}
	return hits, nil
}

// Similar ranks indexed sagas by embedding similarity to text, dropping
// matches below the configured minimum.
func (ix *Index) Similar(ctx context.Context, text string, limit int) ([]Hit, error) {
	if ix.provider == nil {
		if ix.status.Error != "" {
			return nil, fmt.Errorf("%w: %s", ErrVectorsDisabled, ix.status.Error)
		}
		return nil, ErrVectorsDisabled
	}
	embeddings, stale, err := ix.store.ListEmbeddings(ix.provider.Model())
	if err != nil {
		return nil, fmt.Errorf("embedding lookup failed: %w", err)
	}
	if stale > 0 {
		ix.logger.Debug("stale embeddings skipped", "count", stale)
	}
	if len(embeddings) == 0 {
		return nil, nil
	}
	vectors, err := ix.provider.Embed(ctx, []string{text})
	if err != nil {
		return nil, fmt.Errorf("embedding query failed: %w", err)
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("embedding query returned empty vector")
	}

	candidates := make([]embed.Vector, 0, len(embeddings))
	for _, e := range embeddings {
		candidates = append(candidates, embed.Vector{ID: e.SagaID, Values: e.Vector})
	}
	matches := embed.FilterMin(embed.Rank(vectors[0], candidates, limit), ix.minSimilarity)

	hits := make([]Hit, 0, len(matches))
	for _, m := range matches {
		rec, err := ix.store.Get(m.ID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				continue
			}
			return nil, err
		}
		hits = append(hits, Hit{Saga: recordSaga(rec), Path: rec.Path, Score: m.Score})
	}
	return hits, nil
}

func recordSaga(rec store.Record) *saga.Saga {
	typ, ok := saga.ParseType(rec.Type)
	if !ok {
		typ = saga.TypeGeneral
	}
	return &saga.Saga{
		ID:           rec.ID,
		Title:        rec.Title,
		Content:      rec.Content,
		Type:         typ,
		Timestamp:    rec.CreatedAt.Local(),
		Branch:       rec.Branch,
		Tags:         rec.Tags,
		FilesChanged: rec.Files,
		Status:       saga.Status(rec.Status),
	}
}

// Mode reports which backend answered a similarity query.
type Mode string

const (
	ModeVector Mode = "vector"
	ModeText   Mode = "text"
	ModeHybrid Mode = "hybrid"
)

// FindSimilar ranks sagas against query with both backends and interleaves
// the results. Text ranking alone answers when vectors are unavailable or
// return nothing. Sagas listed in exclude never appear in the result.
func FindSimilar(ctx context.Context, ix *Index, text *TextSearcher, query string, limit int, exclude ...string) ([]Hit, Mode, error) {
	fetch := limit + len(exclude)
	var vector []Hit
	if ix != nil {
		hits, err := ix.Similar(ctx, query, fetch)
		if err != nil {
			ix.logger.Debug("vector search unavailable, using text search", "err", err)
		}
		vector = without(hits, exclude)
	}
	textHits, err := text.Search(query, fetch)
	if err != nil {
		if len(vector) > 0 {
			ix.logger.Debug("text search failed, using vector results", "err", err)
			return Merge(vector, nil, limit), ModeVector, nil
		}
		return nil, ModeText, err
	}
	textHits = without(textHits, exclude)

	switch {
	case len(vector) == 0:
		return Merge(nil, textHits, limit), ModeText, nil
	case len(textHits) == 0:
		return Merge(vector, nil, limit), ModeVector, nil
	}
	return Merge(vector, textHits, limit), ModeHybrid, nil
}

// Merge interleaves vector and text hits, vector first, keeping the first
// occurrence of each saga ID. A non-positive limit keeps everything.
func Merge(vector, text []Hit, limit int) []Hit {
	merged := make([]Hit, 0, len(vector)+len(text))
	seen := make(map[string]bool, len(vector)+len(text))
	add := func(h Hit) {
		id := hitID(h)
		if seen[id] {
			return
		}
		seen[id] = true
		merged = append(merged, h)
	}
	for i := 0; i < max(len(vector), len(text)); i++ {
		if i < len(vector) {
			add(vector[i])
		}
		if i < len(text) {
			add(text[i])
		}
	}
	if limit > 0 && len(merged) > limit {
		merged = merged[:limit]
	}
	return merged
}

func without(hits []Hit, ids []string) []Hit {
	if len(ids) == 0 {
		return hits
	}
	kept := make([]Hit, 0, len(hits))
	for _, h := range hits {
		if !slices.Contains(ids, hitID(h)) {
			kept = append(kept, h)
		}
	}
	return kept
}

// hitID falls back to the path for sagas saved without an ID.
func hitID(h Hit) string {
	if h.Saga != nil && h.Saga.ID != "" {
		return h.Saga.ID
	}
	return h.Path
}
