package server

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"hoerbox/logger"
)

func (s *Server) handleRFIDStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.rfidStatus(r.Context())
	if err != nil {
		logger.Error("failed to load RFID status", logger.ErrorField(err))
		respondError(w, http.StatusInternalServerError, "failed to load RFID status")
		return
	}
	respondJSON(w, http.StatusOK, status)
}

func (s *Server) handleGetRFIDTags(w http.ResponseWriter, r *http.Request) {
	tags, err := s.rfidTags.GetAllTags()
	if err != nil {
		logger.Error("failed to load RFID tags", logger.ErrorField(err))
		respondError(w, http.StatusInternalServerError, "failed to load RFID tags")
		return
	}
	respondJSON(w, http.StatusOK, tags)
}

func (s *Server) handleRegisterRFIDTag(w http.ResponseWriter, r *http.Request) {
	var body struct {
		TagID  string `json:"tag_id"`
		Name   string `json:"name"`
		SongID int64  `json:"song_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	body.TagID = strings.TrimSpace(body.TagID)
	if body.TagID == "" || body.SongID == 0 {
		respondError(w, http.StatusBadRequest, "tag_id and song_id are required")
		return
	}

	song, err := s.songs.GetSongByID(body.SongID)
	if err != nil {
		logger.Error("failed to look up song", logger.Int64("song_id", body.SongID), logger.ErrorField(err))
		respondError(w, http.StatusInternalServerError, "failed to look up song")
		return
	}
	if song == nil {
		respondError(w, http.StatusNotFound, "song not found")
		return
	}

	existing, err := s.rfidTags.GetTagByTagID(body.TagID)
	if err != nil {
		logger.Error("failed to look up RFID tag", logger.String("tag_id", body.TagID), logger.ErrorField(err))
		respondError(w, http.StatusInternalServerError, "failed to look up RFID tag")
		return
	}
	if existing != nil {
		respondError(w, http.StatusConflict, "tag is already registered")
		return
	}

	tag, err := s.rfidTags.RegisterTag(body.TagID, body.Name, body.SongID)
	if err != nil {
		logger.Error("failed to register RFID tag", logger.String("tag_id", body.TagID), logger.ErrorField(err))
		respondError(w, http.StatusInternalServerError, "failed to register RFID tag")
		return
	}
	respondJSON(w, http.StatusCreated, tag)
}

func (s *Server) handleUnregisterRFIDTag(w http.ResponseWriter, r *http.Request) {
	tagID := mux.Vars(r)["tagID"]

	removed, err := s.rfidTags.UnregisterTag(tagID)
	if err != nil {
		logger.Error("failed to unregister RFID tag", logger.String("tag_id", tagID), logger.ErrorField(err))
		respondError(w, http.StatusInternalServerError, "failed to unregister RFID tag")
		return
	}
	if !removed {
		respondError(w, http.StatusNotFound, "tag not found")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
