package repository

import (
	"database/sql"
	"fmt"

	"hoerbox/db"
	"hoerbox/model"
)

// SongRepository defines the interface for song catalog operations.
type SongRepository interface {
	GetAllSongs() ([]model.Track, error)
	GetSongByID(id int64) (*model.Track, error)
	GetSongByFilename(filename string) (*model.Track, error)
	ReplaceCatalog(tracks []model.Track) error
}

// mysqlSongRepository implements SongRepository for MySQL.
type mysqlSongRepository struct {
	DB *sql.DB
}

// NewMySQLSongRepository creates a new instance of mysqlSongRepository.
func NewMySQLSongRepository() SongRepository {
	return &mysqlSongRepository{DB: db.DB}
}

// GetAllSongs retrieves the full catalog ordered by title.
func (r *mysqlSongRepository) GetAllSongs() ([]model.Track, error) {
	query := `SELECT id, title, filename, COALESCE(cover_image, '') FROM songs ORDER BY title`
	rows, err := r.DB.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query songs: %w", err)
	}
	defer rows.Close()

	tracks := make([]model.Track, 0)
	for rows.Next() {
		var t model.Track
		if err := rows.Scan(&t.ID, &t.Title, &t.Filename, &t.CoverImage); err != nil {
			return nil, fmt.Errorf("failed to scan song row: %w", err)
		}
		tracks = append(tracks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during songs iteration: %w", err)
	}

	return tracks, nil
}

// GetSongByID retrieves a song by its ID. Returns nil when not found.
func (r *mysqlSongRepository) GetSongByID(id int64) (*model.Track, error) {
	query := `SELECT id, title, filename, COALESCE(cover_image, '') FROM songs WHERE id = ?`
	row := r.DB.QueryRow(query, id)

	t := &model.Track{}
	err := row.Scan(&t.ID, &t.Title, &t.Filename, &t.CoverImage)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to scan song by ID %d: %w", id, err)
	}
	return t, nil
}

// GetSongByFilename retrieves a song by its filename. Returns nil when not found.
func (r *mysqlSongRepository) GetSongByFilename(filename string) (*model.Track, error) {
	query := `SELECT id, title, filename, COALESCE(cover_image, '') FROM songs WHERE filename = ?`
	row := r.DB.QueryRow(query, filename)

	t := &model.Track{}
	err := row.Scan(&t.ID, &t.Title, &t.Filename, &t.CoverImage)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to scan song by filename %q: %w", filename, err)
	}
	return t, nil
}

// ReplaceCatalog synchronizes the songs table with a freshly scanned library.
// Existing rows keep their IDs (RFID tags reference them); rows whose file
// vanished are removed, new files are inserted.
func (r *mysqlSongRepository) ReplaceCatalog(tracks []model.Track) error {
	tx, err := r.DB.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin catalog transaction: %w", err)
	}
	defer tx.Rollback()

	seen := make(map[string]bool, len(tracks))
	for _, t := range tracks {
		seen[t.Filename] = true
		_, err := tx.Exec(`INSERT INTO songs (title, filename, cover_image)
			VALUES (?, ?, ?)
			ON DUPLICATE KEY UPDATE title = VALUES(title), cover_image = VALUES(cover_image)`,
			t.Title, t.Filename, t.CoverImage)
		if err != nil {
			return fmt.Errorf("failed to upsert song %q: %w", t.Filename, err)
		}
	}

	rows, err := tx.Query(`SELECT id, filename FROM songs`)
	if err != nil {
		return fmt.Errorf("failed to query songs for pruning: %w", err)
	}
	var stale []int64
	for rows.Next() {
		var id int64
		var filename string
		if err := rows.Scan(&id, &filename); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan song for pruning: %w", err)
		}
		if !seen[filename] {
			stale = append(stale, id)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error during pruning iteration: %w", err)
	}

	for _, id := range stale {
		if _, err := tx.Exec(`DELETE FROM songs WHERE id = ?`, id); err != nil {
			return fmt.Errorf("failed to prune song %d: %w", id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit catalog transaction: %w", err)
	}
	return nil
}
