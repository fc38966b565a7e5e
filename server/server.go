package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"hoerbox/cache"
	"hoerbox/logger"
	"hoerbox/model"
	"hoerbox/repository"
)

// Server exposes the backend API: the song catalog, playlists, media
// streaming and the RFID status and registry endpoints.
type Server struct {
	router     *mux.Router
	httpServer *http.Server

	musicDir  string
	songs     repository.SongRepository
	playlists repository.PlaylistRepository
	rfidTags  repository.RFIDTagRepository

	// rfidStatus is swappable so handler tests run without Redis.
	rfidStatus func(ctx context.Context) (*model.RFIDStatus, error)
}

// NewServer creates a server over the given repositories.
func NewServer(musicDir string, songs repository.SongRepository, playlists repository.PlaylistRepository, rfidTags repository.RFIDTagRepository) *Server {
	s := &Server{
		router:     mux.NewRouter(),
		musicDir:   musicDir,
		songs:      songs,
		playlists:  playlists,
		rfidTags:   rfidTags,
		rfidStatus: cache.LatestRFIDStatus,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.router.Use(loggingMiddleware)
	s.router.Use(corsMiddleware)

	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/songs", s.handleGetSongs).Methods(http.MethodGet)
	api.HandleFunc("/playlists", s.handleGetPlaylists).Methods(http.MethodGet)
	api.HandleFunc("/playlists", s.handleCreatePlaylist).Methods(http.MethodPost)
	api.HandleFunc("/playlists/{id:[0-9]+}/songs", s.handleAppendPlaylistSong).Methods(http.MethodPost)
	api.HandleFunc("/play/{filename:.*}", s.handlePlayMedia).Methods(http.MethodGet)
	api.HandleFunc("/cover/{ref:.*}", s.handleCover).Methods(http.MethodGet)
	api.HandleFunc("/rfid/status", s.handleRFIDStatus).Methods(http.MethodGet)
	api.HandleFunc("/rfid/register", s.handleRegisterRFIDTag).Methods(http.MethodPost)
	api.HandleFunc("/rfid/tags", s.handleGetRFIDTags).Methods(http.MethodGet)
	api.HandleFunc("/rfid/tags/{tagID}", s.handleUnregisterRFIDTag).Methods(http.MethodDelete)

	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
}

// Handler returns the HTTP handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves on addr and blocks until the listener fails.
func (s *Server) Start(addr string) error {
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // media streams run as long as the track
		IdleTimeout:  60 * time.Second,
	}
	logger.Info("API server listening", logger.String("addr", addr))
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		logger.Debug("request handled",
			logger.String("method", r.Method),
			logger.String("path", r.URL.Path),
			logger.Duration("elapsed", time.Since(start)))
	})
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Error("failed to encode response", logger.ErrorField(err))
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
