// Package watch monitors an episodes directory and keeps resolved,
// validated episode records up to date as files change. It backs the
// long-running preview mode used while preparing an episode locally.
package watch

import (
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"podcast-publisher/internal/metadata"
	"podcast-publisher/internal/models"
	"podcast-publisher/internal/validate"
)

// Entry pairs a resolved episode with its validation outcome.
type Entry struct {
	Record     models.EpisodeRecord
	Validation validate.Result
}

// Watcher monitors an episodes directory tree and re-resolves episode
// metadata after file-system changes, debounced so editor save bursts
// produce a single refresh.
type Watcher struct {
	root     string
	resolver *metadata.Resolver
	watcher  *fsnotify.Watcher
	logger   *log.Logger

	mu      sync.RWMutex
	entries []Entry

	refreshMu    sync.Mutex
	refreshTimer *time.Timer
	refreshDelay time.Duration

	done      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
	closeErr  error
}

// New creates a Watcher over root and performs the initial refresh before
// returning.
func New(root string, resolver *metadata.Resolver, debounce time.Duration, logger *log.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	if logger == nil {
		logger = log.Default()
	}

	w := &Watcher{
		root:         root,
		resolver:     resolver,
		watcher:      fsw,
		logger:       logger,
		refreshDelay: debounce,
		done:         make(chan struct{}),
	}

	w.addWatchRecursive(root)
	w.refresh()

	w.wg.Add(1)
	go w.run()

	return w, nil
}

// Close stops the watcher and waits for the event loop to exit.
func (w *Watcher) Close() error {
	w.closeOnce.Do(func() {
		close(w.done)

		w.refreshMu.Lock()
		if w.refreshTimer != nil {
			w.refreshTimer.Stop()
			w.refreshTimer = nil
		}
		w.refreshMu.Unlock()

		w.closeErr = w.watcher.Close()
		w.wg.Wait()
	})
	return w.closeErr
}

// Entries returns a snapshot of the current episode state.
func (w *Watcher) Entries() []Entry {
	w.mu.RLock()
	defer w.mu.RUnlock()

	result := make([]Entry, len(w.entries))
	copy(result, w.entries)
	return result
}

func (w *Watcher) run() {
	defer w.wg.Done()

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Printf("watcher error: %v", err)
		case <-w.done:
			return
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if event.Op&fsnotify.Create == fsnotify.Create {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			w.addWatchRecursive(event.Name)
		}
	}

	if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) != 0 {
		w.scheduleRefresh()
	}
}

func (w *Watcher) refresh() {
	records := w.resolver.CollectDirectories(w.root)

	entries := make([]Entry, 0, len(records))
	for _, rec := range records {
		result, err := validate.Record(rec)
		if err != nil {
			w.logger.Printf("validation error for %s: %v", rec.Slug, err)
			continue
		}
		entries = append(entries, Entry{Record: rec, Validation: result})
	}

	w.mu.Lock()
	w.entries = entries
	w.mu.Unlock()

	w.logger.Printf("refreshed %d episodes", len(entries))
}

func (w *Watcher) scheduleRefresh() {
	select {
	case <-w.done:
		return
	default:
	}

	w.refreshMu.Lock()
	defer w.refreshMu.Unlock()

	if w.refreshTimer != nil {
		w.refreshTimer.Stop()
	}

	var timer *time.Timer
	timer = time.AfterFunc(w.refreshDelay, func() {
		w.refresh()

		w.refreshMu.Lock()
		if w.refreshTimer == timer {
			w.refreshTimer = nil
		}
		w.refreshMu.Unlock()
	})

	w.refreshTimer = timer
}

func (w *Watcher) addWatchRecursive(path string) {
	filepath.WalkDir(path, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			w.logger.Printf("walk error for %s: %v", p, err)
			return nil
		}

		if d.IsDir() {
			if err := w.watcher.Add(p); err != nil {
				w.logger.Printf("watcher add failure for %s: %v", p, err)
			}
		}
		return nil
	})
}
