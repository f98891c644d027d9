package store

import (
	"database/sql"
	"fmt"
	"time"
)

const schemaVersion = 2

func migrate(db *sql.DB) error {
	version, err := getUserVersion(db)
	if err != nil {
		return err
	}
	if version >= schemaVersion {
		return nil
	}
	if version < 2 {
		// v1 joined tags and files with spaces. A blank hash makes the next
		// reindex rewrite every row.
		if _, err := db.Exec(`UPDATE sagas SET content_hash = ''`); err != nil {
			return err
		}
	}
	if _, err := db.Exec(`INSERT INTO sagas_fts (sagas_fts) VALUES ('rebuild')`); err != nil {
		return err
	}
	if err := setUserVersion(db, schemaVersion); err != nil {
		return err
	}
	return setLastMigrationAt(db)
}

func getUserVersion(db *sql.DB) (int, error) {
	row := db.QueryRow("PRAGMA user_version;")
	var version int
	if err := row.Scan(&version); err != nil {
		return 0, err
	}
	return version, nil
}

func setUserVersion(db *sql.DB, version int) error {
	_, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d;", version))
	return err
}

func setLastMigrationAt(db *sql.DB) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := db.Exec(`
		INSERT INTO meta (key, value)
		VALUES ('last_migration_at', ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, now)
	return err
}

func SchemaVersion() int {
	return schemaVersion
}

func (s *Store) UserVersion() (int, error) {
	return getUserVersion(s.db)
}

// CheckFTS runs the fts5 integrity check against the sagas table.
func (s *Store) CheckFTS() error {
	_, err := s.db.Exec(`INSERT INTO sagas_fts (sagas_fts) VALUES ('integrity-check')`)
	return err
}

func (s *Store) RebuildFTS() error {
	_, err := s.db.Exec(`INSERT INTO sagas_fts (sagas_fts) VALUES ('rebuild')`)
	return err
}
