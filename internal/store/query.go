package store

import (
	"fmt"
	"strings"
)

// Result is an FTS hit. Score is the negated bm25 rank, so larger is better.
type Result struct {
	Record Record
	Score  float64
}

// Search runs an FTS5 query over title, tags, files and content, weighted
// in that order.
func (s *Store) Search(query string, limit int) ([]Result, error) {
	if limit <= 0 {
		limit = 10
	}
	match := SanitizeQuery(query)
	if match == `""` {
		return nil, nil
	}
	rows, err := s.db.Query(`
		SELECT s.id, s.path, s.title, s.type, s.branch, s.status, s.tags_text, s.files_text, s.content, s.content_hash, s.created_at,
			bm25(sagas_fts, 5.0, 3.0, 2.0, 1.0)
		FROM sagas_fts
		JOIN sagas s ON s.rowid = sagas_fts.rowid
		WHERE sagas_fts MATCH ?
		ORDER BY bm25(sagas_fts, 5.0, 3.0, 2.0, 1.0), s.id
		LIMIT ?
	`, match, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var rank float64
		rec, err := scanRecord(func(dest ...any) error {
			return rows.Scan(append(dest, &rank)...)
		})
		if err != nil {
			return nil, err
		}
		results = append(results, Result{Record: rec, Score: -rank})
	}
	return results, rows.Err()
}

// SanitizeQuery turns free text into a safe FTS5 expression: every token is
// quoted, tokens are ANDed, and a NEAR group is offered as an alternative.
// A lone token also matches as a prefix.
func SanitizeQuery(q string) string {
	tokens := strings.Fields(strings.TrimSpace(q))
	if len(tokens) == 0 {
		return `""`
	}

	terms := make([]string, 0, len(tokens))
	for _, token := range tokens {
		variants := []string{formatFTSVariant(token)}
		if len(tokens) == 1 && len(token) >= 3 && isPrefixSafe(token) {
			variants = append(variants, token+"*")
		}
		if len(variants) == 1 {
			terms = append(terms, variants[0])
			continue
		}
		terms = append(terms, "("+strings.Join(variants, " OR ")+")")
	}

	andExpr := strings.Join(terms, " AND ")
	if len(tokens) >= 2 {
		near := make([]string, 0, len(tokens))
		for _, token := range tokens {
			near = append(near, formatFTSVariant(token))
		}
		andExpr = fmt.Sprintf("(%s) OR (%s)", andExpr, strings.Join(near, " NEAR "))
	}
	return andExpr
}

func formatFTSVariant(value string) string {
	return `"` + strings.ReplaceAll(value, `"`, `""`) + `"`
}

func isPrefixSafe(value string) bool {
	for _, r := range value {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_' {
			continue
		}
		return false
	}
	return true
}
