package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"hoerbox/model"
)

// APIError is a non-2xx response from the backend, carrying the server's
// error message when one was provided.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("API error %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("API error %d", e.StatusCode)
}

// Client talks to the hoerbox backend API.
type Client struct {
	baseURL string
	http    *http.Client
	// media streams can outlive any sensible request timeout, so they go
	// through a client without one.
	media *http.Client
}

// New creates a client for the backend at baseURL.
func New(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 10 * time.Second},
		media:   &http.Client{},
	}
}

// Songs fetches the full song catalog.
func (c *Client) Songs(ctx context.Context) ([]model.Track, error) {
	var tracks []model.Track
	if err := c.getJSON(ctx, "/api/songs", &tracks); err != nil {
		return nil, err
	}
	return tracks, nil
}

// Playlists fetches all playlists with their tracks.
func (c *Client) Playlists(ctx context.Context) ([]model.Playlist, error) {
	var playlists []model.Playlist
	if err := c.getJSON(ctx, "/api/playlists", &playlists); err != nil {
		return nil, err
	}
	return playlists, nil
}

// CreatePlaylist creates a new empty playlist.
func (c *Client) CreatePlaylist(ctx context.Context, name string) (*model.Playlist, error) {
	body := map[string]string{"name": name}
	var p model.Playlist
	if err := c.postJSON(ctx, "/api/playlists", body, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// AppendPlaylistSong adds a song to the end of a playlist.
func (c *Client) AppendPlaylistSong(ctx context.Context, playlistID int64, title, filename string) (*model.Track, error) {
	body := map[string]string{"title": title, "filename": filename}
	var t model.Track
	if err := c.postJSON(ctx, fmt.Sprintf("/api/playlists/%d/songs", playlistID), body, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// RFIDStatus fetches the latest RFID presence status.
func (c *Client) RFIDStatus(ctx context.Context) (*model.RFIDStatus, error) {
	var status model.RFIDStatus
	if err := c.getJSON(ctx, "/api/rfid/status", &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// OpenMedia opens the audio stream for a track filename. The caller closes
// the returned reader.
func (c *Client) OpenMedia(filename string) (io.ReadCloser, error) {
	resp, err := c.media.Get(c.baseURL + "/api/play/" + escapePath(filename))
	if err != nil {
		return nil, fmt.Errorf("failed to request media %q: %w", filename, err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, apiErrorFrom(resp)
	}
	return resp.Body, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to build request for %s: %w", path, err)
	}
	return c.do(req, out)
}

func (c *Client) postJSON(ctx context.Context, path string, body, out interface{}) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request body for %s: %w", path, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("failed to build request for %s: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out interface{}) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request to %s failed: %w", req.URL.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return apiErrorFrom(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response from %s: %w", req.URL.Path, err)
	}
	return nil
}

func apiErrorFrom(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode}
	var envelope struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err == nil {
		apiErr.Message = envelope.Error
	}
	return apiErr
}

// escapePath escapes each path segment while keeping separators intact, so
// library files in subdirectories resolve correctly.
func escapePath(p string) string {
	parts := strings.Split(p, "/")
	for i := range parts {
		parts[i] = url.PathEscape(parts[i])
	}
	return strings.Join(parts, "/")
}
