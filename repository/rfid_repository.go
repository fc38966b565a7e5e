package repository

import (
	"database/sql"
	"fmt"
	"time"

	"hoerbox/db"
	"hoerbox/model"
)

// RFIDTagRepository defines the interface for RFID tag registry operations.
type RFIDTagRepository interface {
	RegisterTag(tagID, name string, songID int64) (*model.RFIDTag, error)
	GetTagByTagID(tagID string) (*model.RFIDTag, error)
	GetAllTags() ([]model.RFIDTag, error)
	UnregisterTag(tagID string) (bool, error)
	TouchLastUsed(tagID string) error
}

// mysqlRFIDTagRepository implements RFIDTagRepository for MySQL.
type mysqlRFIDTagRepository struct {
	DB *sql.DB
}

// NewMySQLRFIDTagRepository creates a new instance of mysqlRFIDTagRepository.
func NewMySQLRFIDTagRepository() RFIDTagRepository {
	return &mysqlRFIDTagRepository{DB: db.DB}
}

// RegisterTag links a physical tag to a song.
func (r *mysqlRFIDTagRepository) RegisterTag(tagID, name string, songID int64) (*model.RFIDTag, error) {
	now := time.Now()
	res, err := r.DB.Exec(`INSERT INTO rfid_tags (tag_id, name, song_id, last_used, created_at) VALUES (?, ?, ?, ?, ?)`,
		tagID, name, songID, now, now)
	if err != nil {
		return nil, fmt.Errorf("failed to insert RFID tag %q: %w", tagID, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get RFID tag insert ID: %w", err)
	}

	return &model.RFIDTag{
		ID:        id,
		TagID:     tagID,
		Name:      name,
		SongID:    songID,
		LastUsed:  now,
		CreatedAt: now,
	}, nil
}

// GetTagByTagID looks up a tag by its physical identifier. Returns nil when
// the tag is not registered.
func (r *mysqlRFIDTagRepository) GetTagByTagID(tagID string) (*model.RFIDTag, error) {
	row := r.DB.QueryRow(`SELECT id, tag_id, COALESCE(name, ''), song_id, last_used, created_at FROM rfid_tags WHERE tag_id = ?`, tagID)

	t := &model.RFIDTag{}
	err := row.Scan(&t.ID, &t.TagID, &t.Name, &t.SongID, &t.LastUsed, &t.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to scan RFID tag %q: %w", tagID, err)
	}
	return t, nil
}

// GetAllTags retrieves all registered tags.
func (r *mysqlRFIDTagRepository) GetAllTags() ([]model.RFIDTag, error) {
	rows, err := r.DB.Query(`SELECT id, tag_id, COALESCE(name, ''), song_id, last_used, created_at FROM rfid_tags ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("failed to query RFID tags: %w", err)
	}
	defer rows.Close()

	tags := make([]model.RFIDTag, 0)
	for rows.Next() {
		var t model.RFIDTag
		if err := rows.Scan(&t.ID, &t.TagID, &t.Name, &t.SongID, &t.LastUsed, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan RFID tag row: %w", err)
		}
		tags = append(tags, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during RFID tags iteration: %w", err)
	}
	return tags, nil
}

// UnregisterTag removes a tag registration. Returns false when no such tag
// existed.
func (r *mysqlRFIDTagRepository) UnregisterTag(tagID string) (bool, error) {
	res, err := r.DB.Exec(`DELETE FROM rfid_tags WHERE tag_id = ?`, tagID)
	if err != nil {
		return false, fmt.Errorf("failed to delete RFID tag %q: %w", tagID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get affected rows for RFID tag delete: %w", err)
	}
	return affected > 0, nil
}

// TouchLastUsed records that a tag was just seen on the reader.
func (r *mysqlRFIDTagRepository) TouchLastUsed(tagID string) error {
	if _, err := r.DB.Exec(`UPDATE rfid_tags SET last_used = ? WHERE tag_id = ?`, time.Now(), tagID); err != nil {
		return fmt.Errorf("failed to update last_used for RFID tag %q: %w", tagID, err)
	}
	return nil
}
