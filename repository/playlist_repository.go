package repository

import (
	"database/sql"
	"fmt"
	"time"

	"hoerbox/db"
	"hoerbox/model"
)

// PlaylistRepository defines the interface for playlist data operations.
type PlaylistRepository interface {
	CreatePlaylist(name string) (*model.Playlist, error)
	GetPlaylistByID(id int64) (*model.Playlist, error)
	GetAllPlaylists() ([]model.Playlist, error)
	AppendSong(playlistID int64, title, filename string) (*model.Track, error)
}

// mysqlPlaylistRepository implements PlaylistRepository for MySQL.
type mysqlPlaylistRepository struct {
	DB *sql.DB
}

// NewMySQLPlaylistRepository creates a new instance of mysqlPlaylistRepository.
func NewMySQLPlaylistRepository() PlaylistRepository {
	return &mysqlPlaylistRepository{DB: db.DB}
}

// CreatePlaylist adds a new empty playlist.
func (r *mysqlPlaylistRepository) CreatePlaylist(name string) (*model.Playlist, error) {
	now := time.Now()
	res, err := r.DB.Exec(`INSERT INTO playlists (name, created_at, updated_at) VALUES (?, ?, ?)`,
		name, now, now)
	if err != nil {
		return nil, fmt.Errorf("failed to insert playlist: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get playlist insert ID: %w", err)
	}

	return &model.Playlist{
		ID:        id,
		Name:      name,
		Tracks:    []model.Track{},
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// GetPlaylistByID retrieves a playlist with its ordered tracks. Returns nil
// when the playlist does not exist.
func (r *mysqlPlaylistRepository) GetPlaylistByID(id int64) (*model.Playlist, error) {
	row := r.DB.QueryRow(`SELECT id, name, created_at, updated_at FROM playlists WHERE id = ?`, id)

	p := &model.Playlist{}
	err := row.Scan(&p.ID, &p.Name, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to scan playlist %d: %w", id, err)
	}

	tracks, err := r.playlistTracks(p.ID)
	if err != nil {
		return nil, err
	}
	p.Tracks = tracks
	return p, nil
}

// GetAllPlaylists retrieves every playlist with its tracks.
func (r *mysqlPlaylistRepository) GetAllPlaylists() ([]model.Playlist, error) {
	rows, err := r.DB.Query(`SELECT id, name, created_at, updated_at FROM playlists ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("failed to query playlists: %w", err)
	}
	defer rows.Close()

	playlists := make([]model.Playlist, 0)
	for rows.Next() {
		var p model.Playlist
		if err := rows.Scan(&p.ID, &p.Name, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan playlist row: %w", err)
		}
		playlists = append(playlists, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during playlists iteration: %w", err)
	}

	for i := range playlists {
		tracks, err := r.playlistTracks(playlists[i].ID)
		if err != nil {
			return nil, err
		}
		playlists[i].Tracks = tracks
	}

	return playlists, nil
}

// AppendSong adds one track to the end of a playlist.
func (r *mysqlPlaylistRepository) AppendSong(playlistID int64, title, filename string) (*model.Track, error) {
	var maxPos sql.NullInt64
	err := r.DB.QueryRow(`SELECT MAX(position) FROM playlist_songs WHERE playlist_id = ?`, playlistID).Scan(&maxPos)
	if err != nil {
		return nil, fmt.Errorf("failed to query playlist positions: %w", err)
	}
	position := int64(0)
	if maxPos.Valid {
		position = maxPos.Int64 + 1
	}

	res, err := r.DB.Exec(`INSERT INTO playlist_songs (playlist_id, title, filename, position) VALUES (?, ?, ?, ?)`,
		playlistID, title, filename, position)
	if err != nil {
		return nil, fmt.Errorf("failed to append song to playlist %d: %w", playlistID, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get playlist song insert ID: %w", err)
	}

	if _, err := r.DB.Exec(`UPDATE playlists SET updated_at = ? WHERE id = ?`, time.Now(), playlistID); err != nil {
		return nil, fmt.Errorf("failed to touch playlist %d: %w", playlistID, err)
	}

	return &model.Track{ID: id, Title: title, Filename: filename}, nil
}

func (r *mysqlPlaylistRepository) playlistTracks(playlistID int64) ([]model.Track, error) {
	rows, err := r.DB.Query(`SELECT id, title, filename FROM playlist_songs WHERE playlist_id = ? ORDER BY position`, playlistID)
	if err != nil {
		return nil, fmt.Errorf("failed to query tracks for playlist %d: %w", playlistID, err)
	}
	defer rows.Close()

	tracks := make([]model.Track, 0)
	for rows.Next() {
		var t model.Track
		if err := rows.Scan(&t.ID, &t.Title, &t.Filename); err != nil {
			return nil, fmt.Errorf("failed to scan playlist song row: %w", err)
		}
		tracks = append(tracks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during playlist songs iteration: %w", err)
	}
	return tracks, nil
}
