package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"hoerbox/model"
)

type fakeSongRepo struct {
	songs []model.Track
}

func (f *fakeSongRepo) GetAllSongs() ([]model.Track, error) { return f.songs, nil }

func (f *fakeSongRepo) GetSongByID(id int64) (*model.Track, error) {
	for _, s := range f.songs {
		if s.ID == id {
			t := s
			return &t, nil
		}
	}
	return nil, nil
}

func (f *fakeSongRepo) GetSongByFilename(name string) (*model.Track, error) {
	for _, s := range f.songs {
		if s.Filename == name {
			t := s
			return &t, nil
		}
	}
	return nil, nil
}

func (f *fakeSongRepo) ReplaceCatalog(tracks []model.Track) error {
	f.songs = tracks
	return nil
}

type fakePlaylistRepo struct {
	playlists []model.Playlist
	nextID    int64
}

func (f *fakePlaylistRepo) CreatePlaylist(name string) (*model.Playlist, error) {
	f.nextID++
	p := model.Playlist{ID: f.nextID, Name: name, Tracks: []model.Track{}}
	f.playlists = append(f.playlists, p)
	return &p, nil
}

func (f *fakePlaylistRepo) GetPlaylistByID(id int64) (*model.Playlist, error) {
	for i := range f.playlists {
		if f.playlists[i].ID == id {
			p := f.playlists[i]
			return &p, nil
		}
	}
	return nil, nil
}

func (f *fakePlaylistRepo) GetAllPlaylists() ([]model.Playlist, error) {
	return f.playlists, nil
}

func (f *fakePlaylistRepo) AppendSong(playlistID int64, title, filename string) (*model.Track, error) {
	for i := range f.playlists {
		if f.playlists[i].ID == playlistID {
			t := model.Track{ID: int64(len(f.playlists[i].Tracks) + 1), Title: title, Filename: filename}
			f.playlists[i].Tracks = append(f.playlists[i].Tracks, t)
			return &t, nil
		}
	}
	return nil, nil
}

type fakeRFIDRepo struct {
	tags map[string]*model.RFIDTag
}

func (f *fakeRFIDRepo) RegisterTag(tagID, name string, songID int64) (*model.RFIDTag, error) {
	tag := &model.RFIDTag{ID: int64(len(f.tags) + 1), TagID: tagID, Name: name, SongID: songID}
	f.tags[tagID] = tag
	return tag, nil
}

func (f *fakeRFIDRepo) GetTagByTagID(tagID string) (*model.RFIDTag, error) {
	return f.tags[tagID], nil
}

func (f *fakeRFIDRepo) GetAllTags() ([]model.RFIDTag, error) {
	tags := make([]model.RFIDTag, 0, len(f.tags))
	for _, t := range f.tags {
		tags = append(tags, *t)
	}
	return tags, nil
}

func (f *fakeRFIDRepo) UnregisterTag(tagID string) (bool, error) {
	if _, ok := f.tags[tagID]; !ok {
		return false, nil
	}
	delete(f.tags, tagID)
	return true, nil
}

func (f *fakeRFIDRepo) TouchLastUsed(tagID string) error { return nil }

func newTestServer(t *testing.T) (*Server, string) {
	t.Helper()
	musicDir := t.TempDir()
	srv := NewServer(musicDir,
		&fakeSongRepo{songs: []model.Track{
			{ID: 1, Title: "Song A", Filename: "a.mp3"},
			{ID: 2, Title: "Song B", Filename: "b.mp3"},
		}},
		&fakePlaylistRepo{},
		&fakeRFIDRepo{tags: map[string]*model.RFIDTag{}},
	)
	srv.rfidStatus = func(ctx context.Context) (*model.RFIDStatus, error) {
		return &model.RFIDStatus{Status: model.RFIDStatusWaiting, Message: "No RFID activity yet"}, nil
	}
	return srv, musicDir
}

func doRequest(srv *Server, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func TestGetSongs(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doRequest(srv, http.MethodGet, "/api/songs", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var songs []model.Track
	if err := json.Unmarshal(rec.Body.Bytes(), &songs); err != nil {
		t.Fatalf("bad response: %v", err)
	}
	if len(songs) != 2 || songs[0].Title != "Song A" {
		t.Errorf("unexpected songs: %+v", songs)
	}
}

func TestCreatePlaylistValidation(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doRequest(srv, http.MethodPost, "/api/playlists", `{"name": "   "}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for a blank name, got %d", rec.Code)
	}

	rec = doRequest(srv, http.MethodPost, "/api/playlists", `{"name": "Abends"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var p model.Playlist
	if err := json.Unmarshal(rec.Body.Bytes(), &p); err != nil {
		t.Fatalf("bad response: %v", err)
	}
	if p.Name != "Abends" || p.ID == 0 {
		t.Errorf("unexpected playlist: %+v", p)
	}
}

func TestAppendSongToPlaylist(t *testing.T) {
	srv, _ := newTestServer(t)
	doRequest(srv, http.MethodPost, "/api/playlists", `{"name": "Abends"}`)

	rec := doRequest(srv, http.MethodPost, "/api/playlists/1/songs", `{"title": "Song A", "filename": "a.mp3"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = doRequest(srv, http.MethodPost, "/api/playlists/99/songs", `{"title": "Song A", "filename": "a.mp3"}`)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown playlist, got %d", rec.Code)
	}

	rec = doRequest(srv, http.MethodPost, "/api/playlists/1/songs", `{"title": "", "filename": ""}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for missing fields, got %d", rec.Code)
	}
}

func TestPlayMediaServesFile(t *testing.T) {
	srv, musicDir := newTestServer(t)
	if err := os.WriteFile(filepath.Join(musicDir, "a.mp3"), []byte("mp3-bytes"), 0o644); err != nil {
		t.Fatal(err)
	}

	rec := doRequest(srv, http.MethodGet, "/api/play/a.mp3", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec.Body.String() != "mp3-bytes" {
		t.Errorf("unexpected body %q", rec.Body.String())
	}
}

func TestPlayMediaRejectsTraversal(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doRequest(srv, http.MethodGet, "/api/play/../../etc/passwd", "")
	if rec.Code != http.StatusBadRequest && rec.Code != http.StatusNotFound && rec.Code != http.StatusMovedPermanently {
		t.Errorf("expected traversal rejected, got %d", rec.Code)
	}
	if rec.Code == http.StatusOK {
		t.Error("traversal must never serve a file")
	}
}

func TestPlayMediaUnknownFile(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doRequest(srv, http.MethodGet, "/api/play/missing.mp3", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestRFIDStatusEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doRequest(srv, http.MethodGet, "/api/rfid/status", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var status model.RFIDStatus
	if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
		t.Fatalf("bad response: %v", err)
	}
	if status.Status != model.RFIDStatusWaiting {
		t.Errorf("unexpected status: %+v", status)
	}
}

func TestRegisterRFIDTag(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doRequest(srv, http.MethodPost, "/api/rfid/register", `{"tag_id": "04:AB", "name": "Fuchs", "song_id": 1}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = doRequest(srv, http.MethodPost, "/api/rfid/register", `{"tag_id": "04:AB", "name": "Fuchs", "song_id": 2}`)
	if rec.Code != http.StatusConflict {
		t.Errorf("expected 409 for duplicate tag, got %d", rec.Code)
	}

	rec = doRequest(srv, http.MethodPost, "/api/rfid/register", `{"tag_id": "05:CD", "song_id": 99}`)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown song, got %d", rec.Code)
	}

	rec = doRequest(srv, http.MethodPost, "/api/rfid/register", `{"tag_id": "", "song_id": 1}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for missing tag_id, got %d", rec.Code)
	}

	rec = doRequest(srv, http.MethodGet, "/api/rfid/tags", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 listing tags, got %d", rec.Code)
	}
	var tags []model.RFIDTag
	if err := json.Unmarshal(rec.Body.Bytes(), &tags); err != nil {
		t.Fatalf("bad response: %v", err)
	}
	if len(tags) != 1 || tags[0].TagID != "04:AB" {
		t.Errorf("unexpected tags: %+v", tags)
	}
}

func TestUnregisterRFIDTag(t *testing.T) {
	srv, _ := newTestServer(t)
	doRequest(srv, http.MethodPost, "/api/rfid/register", `{"tag_id": "04:AB", "song_id": 1}`)

	rec := doRequest(srv, http.MethodDelete, "/api/rfid/tags/04:AB", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	rec = doRequest(srv, http.MethodDelete, "/api/rfid/tags/04:AB", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for an unknown tag, got %d", rec.Code)
	}
}

func TestCORSHeadersPresent(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doRequest(srv, http.MethodGet, "/api/songs", "")
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("expected CORS header, got %q", got)
	}
}
