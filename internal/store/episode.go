package store

import (
	"database/sql"
	"errors"
	"time"
)

// Episode records one blow: from the triggering frame until the auto reset.
type Episode struct {
	ID         string
	StartedAt  time.Time
	ResetAt    *time.Time // nil while the episode is still running
	BlowCount  int
	MouthOpen  int
	CheekWidth int
	MaxCheek   int
}

// EpisodeRepository provides CRUD operations for episodes.
type EpisodeRepository struct {
	db *sql.DB
}

// Episodes returns the episode repository for this store.
func (s *Store) Episodes() *EpisodeRepository {
	return &EpisodeRepository{db: s.db}
}

const episodeColumns = `id, started_at, reset_at, blow_count, mouth_open, cheek_width, max_cheek`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEpisode(row rowScanner) (*Episode, error) {
	e := &Episode{}
	var resetAt sql.NullTime

	if err := row.Scan(&e.ID, &e.StartedAt, &resetAt, &e.BlowCount, &e.MouthOpen, &e.CheekWidth, &e.MaxCheek); err != nil {
		return nil, err
	}

	if resetAt.Valid {
		t := resetAt.Time
		e.ResetAt = &t
	}
	return e, nil
}

// Create inserts a new episode.
func (r *EpisodeRepository) Create(e *Episode) error {
	if e.StartedAt.IsZero() {
		e.StartedAt = time.Now()
	}

	_, err := r.db.Exec(
		`INSERT INTO episodes (`+episodeColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.StartedAt, e.ResetAt, e.BlowCount, e.MouthOpen, e.CheekWidth, e.MaxCheek,
	)
	return err
}

// GetByID retrieves an episode by its ID.
func (r *EpisodeRepository) GetByID(id string) (*Episode, error) {
	e, err := scanEpisode(r.db.QueryRow(
		`SELECT `+episodeColumns+` FROM episodes WHERE id = ?`, id,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return e, nil
}

// List returns the most recent episodes first. A limit of 0 or less returns all.
func (r *EpisodeRepository) List(limit int) ([]*Episode, error) {
	if limit <= 0 {
		limit = -1
	}

	rows, err := r.db.Query(
		`SELECT `+episodeColumns+` FROM episodes ORDER BY started_at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var episodes []*Episode
	for rows.Next() {
		e, err := scanEpisode(rows)
		if err != nil {
			return nil, err
		}
		episodes = append(episodes, e)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return episodes, nil
}

// MarkReset records when an episode ended.
func (r *EpisodeRepository) MarkReset(id string, at time.Time) error {
	result, err := r.db.Exec(`UPDATE episodes SET reset_at = ? WHERE id = ?`, at, id)
	if err != nil {
		return err
	}
	return requireAffected(result)
}

// Delete removes an episode by its ID.
func (r *EpisodeRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM episodes WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return requireAffected(result)
}

// Count returns the total number of recorded episodes.
func (r *EpisodeRepository) Count() (int, error) {
	var n int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM episodes`).Scan(&n)
	return n, err
}

func requireAffected(result sql.Result) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
