package store

import (
	"database/sql"
	"errors"
	"time"
)

const MetaLastReindex = "last_reindex_at"

func (s *Store) GetMeta(key string) (string, error) {
	row := s.db.QueryRow(`SELECT value FROM meta WHERE key = ?`, key)
	var value string
	if err := row.Scan(&value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", err
	}
	return value, nil
}

func (s *Store) SetMeta(key, value string) error {
	_, err := s.db.Exec(`
		INSERT INTO meta (key, value)
		VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	return err
}

// LastReindex is zero when the index has never been built.
func (s *Store) LastReindex() time.Time {
	value, err := s.GetMeta(MetaLastReindex)
	if err != nil {
		return time.Time{}
	}
	return parseTime(value)
}
