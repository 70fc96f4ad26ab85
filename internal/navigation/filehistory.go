package navigation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/gofrs/flock"
)

// FileHistory is a History persisted as JSON, so the location survives restarts the
// way a browser tab survives a reload. Several processes may share one file; every
// read-modify-write happens under an exclusive file lock.
type FileHistory struct {
	path string

	mu   sync.Mutex
	feed feed
}

// NewFileHistory opens the history stored at path, creating its directory if needed.
// The file itself is created on the first write.
func NewFileHistory(path string) (*FileHistory, error) {
	if path == "" {
		return nil, errors.New("no history file provided")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create history directory: %w", err)
	}
	return &FileHistory{path: path}, nil
}

// Path returns the backing file.
func (h *FileHistory) Path() string {
	return h.path
}

func (h *FileHistory) Current() *url.URL {
	h.mu.Lock()
	defer h.mu.Unlock()

	fileLock := flock.New(h.path + ".lock")
	if err := fileLock.RLock(); err != nil {
		slog.Warn("failed to acquire history read lock", "path", h.path, "error", err)
		return Root()
	}
	defer h.unlock(fileLock)

	s, err := h.read()
	if err != nil {
		slog.Warn("failed to read history, starting at root", "path", h.path, "error", err)
		return Root()
	}
	return s.current()
}

func (h *FileHistory) Push(u *url.URL) error {
	_, err := h.update(func(s *stack) error {
		s.push(u)
		return nil
	})
	return err
}

func (h *FileHistory) Back() error    { return h.step(-1) }
func (h *FileHistory) Forward() error { return h.step(1) }

func (h *FileHistory) step(delta int) error {
	s, err := h.update(func(s *stack) error {
		if !s.move(delta) {
			return ErrNoEntry
		}
		return nil
	})
	if err != nil {
		return err
	}
	h.feed.emit(s.current())
	return nil
}

func (h *FileHistory) Subscribe() (<-chan *url.URL, func()) {
	return h.feed.subscribe()
}

// Watch notifies subscribers with the current location whenever the history file is
// replaced, which is how a back, forward or push made by another process reaches
// this one. Writes made through h are reported too; subscribers re-read the
// location and ignore moves that change nothing. Watch returns once the watcher is
// set up and stops watching when ctx is done.
func (h *FileHistory) Watch(ctx context.Context, debounce time.Duration) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create history watcher: %w", err)
	}
	// The file is replaced by rename, so the directory is watched rather than the file.
	if err := w.Add(filepath.Dir(h.path)); err != nil {
		_ = w.Close()
		return fmt.Errorf("failed to watch history directory: %w", err)
	}

	target := filepath.Clean(h.path)
	changed := make(chan struct{}, 1)

	go func() {
		defer w.Close()

		var timer *time.Timer
		for {
			select {
			case <-ctx.Done():
				if timer != nil {
					timer.Stop()
				}
				return
			case e, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(e.Name) != target || e.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
					continue
				}
				if timer != nil {
					timer.Stop()
				}
				timer = time.AfterFunc(debounce, func() {
					select {
					case changed <- struct{}{}:
					default:
					}
				})
			case <-changed:
				h.feed.emit(h.Current())
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				slog.Warn("history watcher error", "path", h.path, "error", err)
			}
		}
	}()
	return nil
}

// update applies fn to the stored stack and writes the result back. Nothing is
// written when fn fails.
func (h *FileHistory) update(fn func(*stack) error) (stack, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	fileLock := flock.New(h.path + ".lock")
	if err := fileLock.Lock(); err != nil {
		return stack{}, fmt.Errorf("failed to acquire history write lock: %w", err)
	}
	defer h.unlock(fileLock)

	s, err := h.read()
	if err != nil {
		slog.Warn("discarding unreadable history", "path", h.path, "error", err)
		s = newStack(nil)
	}
	if err := fn(&s); err != nil {
		return s, err
	}
	if err := h.write(s); err != nil {
		return s, err
	}
	return s, nil
}

// read loads the stack; the caller must hold the file lock.
func (h *FileHistory) read() (stack, error) {
	data, err := os.ReadFile(h.path)
	if errors.Is(err, fs.ErrNotExist) {
		return newStack(nil), nil
	}
	if err != nil {
		return stack{}, fmt.Errorf("failed to read history file: %w", err)
	}

	var s stack
	if err := json.Unmarshal(data, &s); err != nil {
		return stack{}, fmt.Errorf("failed to parse history file: %w", err)
	}
	if len(s.Entries) == 0 || s.Index < 0 || s.Index >= len(s.Entries) {
		return stack{}, errors.New("history file has no valid current entry")
	}
	return s, nil
}

// write replaces the file atomically; the caller must hold the file lock.
func (h *FileHistory) write(s stack) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode history: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(h.path), ".history-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp history file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write history: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write history: %w", err)
	}
	if err := os.Rename(tmp.Name(), h.path); err != nil {
		return fmt.Errorf("failed to replace history file: %w", err)
	}
	return nil
}

func (h *FileHistory) unlock(fileLock *flock.Flock) {
	if err := fileLock.Unlock(); err != nil {
		slog.Warn("failed to release history lock", "path", h.path, "error", err)
	}
}

var _ History = (*FileHistory)(nil)
