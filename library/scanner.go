package library

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"hoerbox/logger"
	"hoerbox/model"
	"hoerbox/repository"
)

// rescanDelay batches bursts of filesystem events (a folder being copied in)
// into a single rescan.
const rescanDelay = 2 * time.Second

// coverExtensions are probed, in order, for a sidecar cover image sharing the
// audio file's stem.
var coverExtensions = []string{".jpg", ".jpeg", ".png", ".webp"}

// Scanner keeps the song catalog in sync with the music directory. Files are
// identified by their path relative to the music root, so moving the library
// wholesale does not orphan RFID tag registrations.
type Scanner struct {
	musicDir string
	songs    repository.SongRepository
}

// NewScanner creates a scanner over musicDir.
func NewScanner(musicDir string, songs repository.SongRepository) *Scanner {
	return &Scanner{musicDir: musicDir, songs: songs}
}

// Scan walks the music directory and returns the tracks found, sorted by
// title. The title is the file stem; a sidecar image with the same stem
// becomes the cover reference.
func (s *Scanner) Scan() ([]model.Track, error) {
	var tracks []model.Track

	err := filepath.WalkDir(s.musicDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if strings.HasPrefix(d.Name(), ".") && path != s.musicDir {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.EqualFold(filepath.Ext(path), ".mp3") {
			return nil
		}

		rel, err := filepath.Rel(s.musicDir, path)
		if err != nil {
			return err
		}
		tracks = append(tracks, model.Track{
			Title:      strings.TrimSuffix(d.Name(), filepath.Ext(d.Name())),
			Filename:   filepath.ToSlash(rel),
			CoverImage: s.coverFor(path),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan music directory %q: %w", s.musicDir, err)
	}

	sort.Slice(tracks, func(i, j int) bool {
		return tracks[i].Title < tracks[j].Title
	})
	return tracks, nil
}

// Sync scans the directory and replaces the catalog with the result.
func (s *Scanner) Sync() error {
	tracks, err := s.Scan()
	if err != nil {
		return err
	}
	if err := s.songs.ReplaceCatalog(tracks); err != nil {
		return err
	}
	logger.Info("music library synchronized", logger.Int("tracks", len(tracks)))
	return nil
}

// Watch rescans on filesystem changes until the context is canceled. Event
// bursts are debounced into one rescan.
func (s *Scanner) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create filesystem watcher: %w", err)
	}
	defer watcher.Close()

	if err := s.watchDirs(watcher); err != nil {
		return err
	}

	rescan := make(chan struct{}, 1)
	var debounce *time.Timer
	schedule := func() {
		if debounce != nil {
			debounce.Stop()
		}
		debounce = time.AfterFunc(rescanDelay, func() {
			select {
			case rescan <- struct{}{}:
			default:
			}
		})
	}
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			// fsnotify does not watch recursively; new directories must be
			// added as they appear.
			if ev.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(ev.Name); statErr == nil && info.IsDir() {
					if addErr := watcher.Add(ev.Name); addErr != nil {
						logger.Warn("failed to watch new directory",
							logger.String("path", ev.Name),
							logger.ErrorField(addErr))
					}
				}
			}
			schedule()
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("filesystem watcher error", logger.ErrorField(err))
		case <-rescan:
			if err := s.Sync(); err != nil {
				logger.Error("rescan after filesystem change failed", logger.ErrorField(err))
			}
		}
	}
}

func (s *Scanner) watchDirs(watcher *fsnotify.Watcher) error {
	return filepath.WalkDir(s.musicDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") && path != s.musicDir {
			return filepath.SkipDir
		}
		if err := watcher.Add(path); err != nil {
			return fmt.Errorf("failed to watch %q: %w", path, err)
		}
		return nil
	})
}

func (s *Scanner) coverFor(audioPath string) string {
	stem := strings.TrimSuffix(audioPath, filepath.Ext(audioPath))
	for _, ext := range coverExtensions {
		candidate := stem + ext
		if _, err := os.Stat(candidate); err == nil {
			rel, err := filepath.Rel(s.musicDir, candidate)
			if err != nil {
				continue
			}
			return filepath.ToSlash(rel)
		}
	}
	return ""
}
