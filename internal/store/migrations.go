package store

// runMigrations executes all database migrations.
func (s *Store) runMigrations() error {
	migrations := []string{
		// Episodes table - one row per trigger-to-reset interval
		`CREATE TABLE IF NOT EXISTS episodes (
			id TEXT PRIMARY KEY,
			started_at DATETIME NOT NULL,
			reset_at DATETIME,
			blow_count INTEGER NOT NULL DEFAULT 1,
			mouth_open INTEGER NOT NULL,
			cheek_width INTEGER NOT NULL,
			max_cheek INTEGER NOT NULL
		)`,

		// Settings table - stores application settings as key-value pairs
		`CREATE TABLE IF NOT EXISTS settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,

		`CREATE INDEX IF NOT EXISTS idx_episodes_started_at ON episodes(started_at)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return err
		}
	}

	return nil
}
