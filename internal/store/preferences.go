package store

import (
	"context"
	"database/sql"
)

// PreferenceStore keeps small named user preferences, such as the
// advanced-mode toggle or the last used configuration directory.
type PreferenceStore struct {
	db *sql.DB
}

func NewPreferenceStore(db *sql.DB) *PreferenceStore {
	return &PreferenceStore{db: db}
}

// List returns all stored preferences.
func (s *PreferenceStore) List(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, queryListPreferences)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	prefs := map[string]string{}
	for rows.Next() {
		var name, value string
		if err := rows.Scan(&name, &value); err != nil {
			return nil, err
		}
		prefs[name] = value
	}
	return prefs, rows.Err()
}

// Set stores or updates the named preferences.
func (s *PreferenceStore) Set(ctx context.Context, prefs map[string]string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	for name, value := range prefs {
		if _, err := tx.ExecContext(ctx, queryUpsertPreference, name, value); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}
