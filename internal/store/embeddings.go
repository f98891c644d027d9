package store

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

type Embedding struct {
	SagaID      string
	Model       string
	ContentHash string
	Vector      []float64
	UpdatedAt   time.Time
}

func (s *Store) UpsertEmbedding(embedding Embedding) error {
	sagaID := strings.TrimSpace(embedding.SagaID)
	model := strings.TrimSpace(embedding.Model)
	if sagaID == "" || model == "" {
		return fmt.Errorf("embedding requires saga_id and model")
	}
	if strings.TrimSpace(embedding.ContentHash) == "" {
		return fmt.Errorf("embedding requires content_hash")
	}
	if len(embedding.Vector) == 0 {
		return fmt.Errorf("embedding vector is empty")
	}
	vectorJSON, err := json.Marshal(embedding.Vector)
	if err != nil {
		return err
	}
	updatedAt := embedding.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}

	_, err = s.db.Exec(`
		INSERT INTO embeddings (saga_id, model, content_hash, vector_json, vector_dim, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(saga_id, model)
		DO UPDATE SET
			content_hash = excluded.content_hash,
			vector_json = excluded.vector_json,
			vector_dim = excluded.vector_dim,
			updated_at = excluded.updated_at
	`, sagaID, model, embedding.ContentHash, string(vectorJSON), len(embedding.Vector), updatedAt.UTC().Format(time.RFC3339Nano))
	return err
}

// ListEmbeddings returns the vectors for model whose saga content has not
// changed since they were computed. stale counts the ones skipped.
func (s *Store) ListEmbeddings(model string) ([]Embedding, int, error) {
	model = strings.TrimSpace(model)
	if model == "" {
		return nil, 0, fmt.Errorf("embedding search requires a model")
	}
	rows, err := s.db.Query(`
		SELECT e.saga_id, e.content_hash, e.vector_json, e.updated_at, s.content_hash
		FROM embeddings e
		JOIN sagas s ON s.id = e.saga_id
		WHERE e.model = ?
		ORDER BY e.saga_id
	`, model)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Embedding
	stale := 0
	for rows.Next() {
		var emb Embedding
		var vectorJSON, updatedAt, current string
		if err := rows.Scan(&emb.SagaID, &emb.ContentHash, &vectorJSON, &updatedAt, &current); err != nil {
			return nil, 0, err
		}
		if emb.ContentHash != current {
			stale++
			continue
		}
		if err := json.Unmarshal([]byte(vectorJSON), &emb.Vector); err != nil {
			return nil, 0, err
		}
		emb.Model = model
		emb.UpdatedAt = parseTime(updatedAt)
		out = append(out, emb)
	}
	return out, stale, rows.Err()
}

// PendingEmbeddings lists indexed sagas that have no current vector for
// model.
func (s *Store) PendingEmbeddings(model string) ([]Record, error) {
	rows, err := s.db.Query(`
		SELECT `+prefixed("s.", recordColumns)+`
		FROM sagas s
		LEFT JOIN embeddings e ON e.saga_id = s.id AND e.model = ?
		WHERE e.saga_id IS NULL OR e.content_hash != s.content_hash
		ORDER BY s.created_at, s.id
	`, strings.TrimSpace(model))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		rec, err := scanRecord(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func prefixed(prefix, columns string) string {
	parts := strings.Split(columns, ", ")
	for i, part := range parts {
		parts[i] = prefix + part
	}
	return strings.Join(parts, ", ")
}
