package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"hoerbox/logger"
)

func (s *Server) handleGetPlaylists(w http.ResponseWriter, r *http.Request) {
	playlists, err := s.playlists.GetAllPlaylists()
	if err != nil {
		logger.Error("failed to load playlists", logger.ErrorField(err))
		respondError(w, http.StatusInternalServerError, "failed to load playlists")
		return
	}
	respondJSON(w, http.StatusOK, playlists)
}

func (s *Server) handleCreatePlaylist(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	name := strings.TrimSpace(body.Name)
	if name == "" {
		respondError(w, http.StatusBadRequest, "playlist name is required")
		return
	}

	playlist, err := s.playlists.CreatePlaylist(name)
	if err != nil {
		logger.Error("failed to create playlist", logger.ErrorField(err))
		respondError(w, http.StatusInternalServerError, "failed to create playlist")
		return
	}
	respondJSON(w, http.StatusCreated, playlist)
}

func (s *Server) handleAppendPlaylistSong(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid playlist ID")
		return
	}

	var body struct {
		Title    string `json:"title"`
		Filename string `json:"filename"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if body.Title == "" || body.Filename == "" {
		respondError(w, http.StatusBadRequest, "title and filename are required")
		return
	}

	playlist, err := s.playlists.GetPlaylistByID(id)
	if err != nil {
		logger.Error("failed to load playlist", logger.Int64("playlist_id", id), logger.ErrorField(err))
		respondError(w, http.StatusInternalServerError, "failed to load playlist")
		return
	}
	if playlist == nil {
		respondError(w, http.StatusNotFound, "playlist not found")
		return
	}

	track, err := s.playlists.AppendSong(id, body.Title, body.Filename)
	if err != nil {
		logger.Error("failed to append song", logger.Int64("playlist_id", id), logger.ErrorField(err))
		respondError(w, http.StatusInternalServerError, "failed to append song")
		return
	}
	respondJSON(w, http.StatusCreated, track)
}
