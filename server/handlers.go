package server

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gorilla/mux"

	"hoerbox/logger"
)

func (s *Server) handleGetSongs(w http.ResponseWriter, r *http.Request) {
	songs, err := s.songs.GetAllSongs()
	if err != nil {
		logger.Error("failed to load songs", logger.ErrorField(err))
		respondError(w, http.StatusInternalServerError, "failed to load songs")
		return
	}
	respondJSON(w, http.StatusOK, songs)
}

func (s *Server) handlePlayMedia(w http.ResponseWriter, r *http.Request) {
	filename := mux.Vars(r)["filename"]
	path, ok := s.libraryPath(filename)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid filename")
		return
	}

	if _, err := os.Stat(path); err != nil {
		respondError(w, http.StatusNotFound, "song not found")
		return
	}

	w.Header().Set("Content-Type", "audio/mpeg")
	// ServeFile handles range requests, which seeking relies on.
	http.ServeFile(w, r, path)
}

func (s *Server) handleCover(w http.ResponseWriter, r *http.Request) {
	ref := mux.Vars(r)["ref"]
	path, ok := s.libraryPath(ref)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid cover reference")
		return
	}

	if _, err := os.Stat(path); err != nil {
		respondError(w, http.StatusNotFound, "cover not found")
		return
	}
	http.ServeFile(w, r, path)
}

// libraryPath resolves a client-supplied relative path against the music
// directory, rejecting anything that would escape it.
func (s *Server) libraryPath(rel string) (string, bool) {
	if rel == "" {
		return "", false
	}
	clean := filepath.Clean(filepath.FromSlash(rel))
	if filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", false
	}
	return filepath.Join(s.musicDir, clean), true
}
