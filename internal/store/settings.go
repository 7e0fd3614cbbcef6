package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/ayusman/magiccandle/internal/blow"
)

// Setting keys for persisted detector thresholds.
const (
	KeyMouthOpen   = "detector.mouth_open"
	KeyCheekShrink = "detector.cheek_shrink"
	KeyResetAfter  = "detector.reset_after_ms"
	KeyHistorySize = "detector.history_size"
)

// SettingsRepository provides access to key-value settings.
type SettingsRepository struct {
	db *sql.DB
}

// Settings returns the settings repository for this store.
func (s *Store) Settings() *SettingsRepository {
	return &SettingsRepository{db: s.db}
}

// Get returns the value stored under key, or ErrNotFound.
func (r *SettingsRepository) Get(key string) (string, error) {
	var value string
	err := r.db.QueryRow(`SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", err
	}
	return value, nil
}

// Set stores value under key, replacing any previous value.
func (r *SettingsRepository) Set(key, value string) error {
	_, err := r.db.Exec(
		`INSERT INTO settings (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value,
	)
	return err
}

// All returns every stored setting.
func (r *SettingsRepository) All() (map[string]string, error) {
	rows, err := r.db.Query(`SELECT key, value FROM settings`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	settings := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		settings[k] = v
	}
	return settings, rows.Err()
}

// LoadThresholds overlays persisted thresholds onto base.
func (r *SettingsRepository) LoadThresholds(base blow.Thresholds) (blow.Thresholds, error) {
	all, err := r.All()
	if err != nil {
		return base, err
	}

	ints := []struct {
		key string
		dst *int
	}{
		{KeyMouthOpen, &base.MouthOpen},
		{KeyCheekShrink, &base.CheekShrink},
		{KeyHistorySize, &base.HistorySize},
	}
	for _, f := range ints {
		v, ok := all[f.key]
		if !ok {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return base, fmt.Errorf("setting %s: %w", f.key, err)
		}
		*f.dst = n
	}

	if v, ok := all[KeyResetAfter]; ok {
		ms, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return base, fmt.Errorf("setting %s: %w", KeyResetAfter, err)
		}
		base.ResetAfter = time.Duration(ms) * time.Millisecond
	}

	return base, nil
}

// SaveThresholds persists all threshold fields in one transaction.
func (r *SettingsRepository) SaveThresholds(t blow.Thresholds) error {
	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(
		`INSERT INTO settings (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
	)
	if err != nil {
		return err
	}
	defer stmt.Close()

	values := map[string]string{
		KeyMouthOpen:   strconv.Itoa(t.MouthOpen),
		KeyCheekShrink: strconv.Itoa(t.CheekShrink),
		KeyHistorySize: strconv.Itoa(t.HistorySize),
		KeyResetAfter:  strconv.FormatInt(t.ResetAfter.Milliseconds(), 10),
	}
	for k, v := range values {
		if _, err := stmt.Exec(k, v); err != nil {
			return err
		}
	}

	return tx.Commit()
}
