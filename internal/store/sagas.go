package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"sagashark/internal/saga"
)

// Record is one indexed saga file.
type Record struct {
	ID          string
	Path        string
	Title       string
	Type        string
	Branch      string
	Status      string
	Tags        []string
	Files       []string
	Content     string
	ContentHash string
	CreatedAt   time.Time
}

func RecordFromSaga(path string, s *saga.Saga) Record {
	rec := Record{
		ID:        s.ID,
		Path:      path,
		Title:     s.Title,
		Type:      string(s.Type),
		Branch:    s.Branch,
		Status:    string(s.Status),
		Tags:      s.Tags,
		Files:     s.FilesChanged,
		Content:   s.Content,
		CreatedAt: s.Timestamp,
	}
	rec.ContentHash = rec.hash()
	return rec
}

// EmbeddingText is what gets embedded for a record.
func (r Record) EmbeddingText() string {
	parts := []string{r.Title}
	if len(r.Tags) > 0 {
		parts = append(parts, strings.Join(r.Tags, " "))
	}
	if r.Content != "" {
		parts = append(parts, r.Content)
	}
	return strings.Join(parts, "\n")
}

func (r Record) hash() string {
	return sha256Hex(strings.Join([]string{
		r.Title, r.Type, r.Branch, r.Status,
		joinList(r.Tags), joinList(r.Files),
		r.CreatedAt.UTC().Format(time.RFC3339), r.Content,
	}, "\x1e"))
}

type ReindexStats struct {
	Indexed   int `json:"indexed"`
	Unchanged int `json:"unchanged"`
	Removed   int `json:"removed"`
}

// Reindex makes the index match records exactly: new and changed records
// are written, records no longer present are removed.
func (s *Store) Reindex(ctx context.Context, records []Record) (ReindexStats, error) {
	var stats ReindexStats
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return stats, err
	}
	defer tx.Rollback()

	existing := map[string]string{}
	rows, err := tx.QueryContext(ctx, `SELECT id, content_hash || '|' || path FROM sagas`)
	if err != nil {
		return stats, err
	}
	for rows.Next() {
		var id, key string
		if err := rows.Scan(&id, &key); err != nil {
			rows.Close()
			return stats, err
		}
		existing[id] = key
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return stats, err
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	seen := make(map[string]bool, len(records))
	for _, rec := range records {
		if rec.ID == "" || seen[rec.ID] {
			continue
		}
		seen[rec.ID] = true
		if rec.ContentHash == "" {
			rec.ContentHash = rec.hash()
		}
		if existing[rec.ID] == rec.ContentHash+"|"+rec.Path {
			stats.Unchanged++
			continue
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO sagas (id, path, title, type, branch, status, tags_text, files_text, content, content_hash, created_at, indexed_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id)
			DO UPDATE SET
				path = excluded.path,
				title = excluded.title,
				type = excluded.type,
				branch = excluded.branch,
				status = excluded.status,
				tags_text = excluded.tags_text,
				files_text = excluded.files_text,
				content = excluded.content,
				content_hash = excluded.content_hash,
				created_at = excluded.created_at,
				indexed_at = excluded.indexed_at
		`, rec.ID, rec.Path, rec.Title, rec.Type, rec.Branch, rec.Status,
			joinList(rec.Tags), joinList(rec.Files), rec.Content, rec.ContentHash,
			rec.CreatedAt.UTC().Format(time.RFC3339Nano), now)
		if err != nil {
			return stats, fmt.Errorf("index %s: %w", rec.ID, err)
		}
		stats.Indexed++
	}

	for id := range existing {
		if seen[id] {
			continue
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM sagas WHERE id = ?`, id); err != nil {
			return stats, err
		}
		stats.Removed++
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO meta (key, value)
		VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, MetaLastReindex, now); err != nil {
		return stats, err
	}
	return stats, tx.Commit()
}

// listSep separates tags and files in their text columns. Paths and tags may
// contain spaces; the FTS tokenizer treats the control character as a break.
const listSep = "\x1f"

func joinList(items []string) string {
	return strings.Join(items, listSep)
}

func splitList(text string) []string {
	if text == "" {
		return nil
	}
	return strings.Split(text, listSep)
}

const recordColumns = `id, path, title, type, branch, status, tags_text, files_text, content, content_hash, created_at`

func scanRecord(scan func(dest ...any) error) (Record, error) {
	var rec Record
	var tagsText, filesText, createdAt string
	if err := scan(&rec.ID, &rec.Path, &rec.Title, &rec.Type, &rec.Branch, &rec.Status,
		&tagsText, &filesText, &rec.Content, &rec.ContentHash, &createdAt); err != nil {
		return Record{}, err
	}
	rec.Tags = splitList(tagsText)
	rec.Files = splitList(filesText)
	rec.CreatedAt = parseTime(createdAt)
	return rec, nil
}

func (s *Store) Get(id string) (Record, error) {
	row := s.db.QueryRow(`SELECT `+recordColumns+` FROM sagas WHERE id = ?`, id)
	rec, err := scanRecord(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	return rec, err
}

func (s *Store) Count() (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM sagas`).Scan(&n)
	return n, err
}

func parseTime(value string) time.Time {
	parsed, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}
	}
	return parsed
}
