package upload

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/fsnotify/fsnotify"
)

// InboxConfig describes a drop folder. Files written into Dir are offered to the
// upload view as if they had been dragged onto it.
type InboxConfig struct {
	Dir string
	// Debounce coalesces the create/write bursts of a single copy.
	Debounce time.Duration
}

// WatchInbox watches cfg.Dir (not recursively) and emits the path of every file
// created or written in it. A path is emitted once; it is offered again only after
// it has been removed or renamed away. The extension filter is left to the view.
// Both channels close when ctx is done.
func WatchInbox(ctx context.Context, cfg InboxConfig) (<-chan string, <-chan error, error) {
	if cfg.Dir == "" {
		return nil, nil, errors.New("no inbox directory provided")
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		slog.Error("failed to create fsnotify watcher", "error", err)
		return nil, nil, err
	}
	if err := w.Add(cfg.Dir); err != nil {
		_ = w.Close()
		return nil, nil, err
	}

	evCh := make(chan string, 64)
	errCh := make(chan error, 1)
	flush := make(chan struct{}, 1)

	go func() {
		defer close(evCh)
		defer close(errCh)
		defer w.Close()

		var timer *time.Timer
		pending := map[string]struct{}{}
		emitted := map[string]struct{}{}
		var order []string

		sendPending := func() {
			for _, p := range order {
				if _, ok := pending[p]; !ok {
					continue
				}
				select {
				case evCh <- p:
					delete(pending, p)
					emitted[p] = struct{}{}
				case <-ctx.Done():
					return
				}
			}
			clear(pending)
			order = order[:0]
		}

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
				if e.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
					delete(emitted, e.Name)
					delete(pending, e.Name)
					continue
				}
				if e.Op&(fsnotify.Create|fsnotify.Write) == 0 {
					continue
				}
				if _, done := emitted[e.Name]; done {
					continue
				}
				if _, seen := pending[e.Name]; !seen {
					pending[e.Name] = struct{}{}
					order = append(order, e.Name)
				}
				if cfg.Debounce <= 0 {
					sendPending()
					continue
				}
				if timer != nil {
					timer.Stop()
				}
				timer = time.AfterFunc(cfg.Debounce, func() {
					select {
					case flush <- struct{}{}:
					default:
					}
				})
			case <-flush:
				sendPending()
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				slog.Error("inbox watcher error", "dir", cfg.Dir, "error", err)
				select {
				case errCh <- err:
				default:
				}
			}
		}
	}()

	return evCh, errCh, nil
}
