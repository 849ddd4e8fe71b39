package pg

import (
	"context"
	"errors"
	"time"
)

// GetSettings returns every control-plane setting as a flat key/value map.
func (s *Store) GetSettings(ctx context.Context) (map[string]string, error) {
	if s.db == nil {
		return nil, errors.New("database connection unavailable")
	}
	rows, err := s.db.QueryContext(ctx, `select key, value from settings order by key`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	settings := map[string]string{}
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, err
		}
		settings[key] = value
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return settings, nil
}

// PutSettings upserts the given keys, leaving keys not named untouched. All
// writes land in one transaction.
func (s *Store) PutSettings(ctx context.Context, settings map[string]string) error {
	if s.db == nil {
		return errors.New("database connection unavailable")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	for key, value := range settings {
		if _, err := tx.ExecContext(ctx, `
			insert into settings (key, value, updated_at)
			values ($1, $2, $3)
			on conflict (key) do update
			set value = excluded.value, updated_at = excluded.updated_at
		`, key, value, now); err != nil {
			return err
		}
	}
	return tx.Commit()
}
