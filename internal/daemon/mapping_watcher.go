package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"git.home.luguber.info/inful/docsync/internal/logfields"
)

// DefaultMappingDebounce collapses editor save bursts into one reload.
const DefaultMappingDebounce = 2 * time.Second

// Reloader re-reads a file on change. *mirror.Store implements it.
type Reloader interface {
	Reload() error
	Path() string
}

// MappingWatcher reloads the mapping file when it changes on disk.
type MappingWatcher struct {
	path         string
	store        Reloader
	watcher      *fsnotify.Watcher
	debounceTime time.Duration
	reloadChan   chan struct{}
	stopChan     chan struct{}
	stopOnce     sync.Once
	onReload     func(error)
}

// NewMappingWatcher watches store.Path().
func NewMappingWatcher(store Reloader, debounce time.Duration) (*MappingWatcher, error) {
	if store.Path() == "" {
		return nil, fmt.Errorf("mapping store has no file to watch")
	}
	absPath, err := filepath.Abs(store.Path())
	if err != nil {
		return nil, fmt.Errorf("failed to resolve mapping path: %w", err)
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	if debounce <= 0 {
		debounce = DefaultMappingDebounce
	}
	return &MappingWatcher{
		path:         absPath,
		store:        store,
		watcher:      watcher,
		debounceTime: debounce,
		reloadChan:   make(chan struct{}, 1),
		stopChan:     make(chan struct{}),
	}, nil
}

// Start watches the directory holding the mapping file. Editors replace
// files on save, so the directory is more reliable than the file itself.
func (mw *MappingWatcher) Start(ctx context.Context) error {
	dir := filepath.Dir(mw.path)
	if err := mw.watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch mapping directory %s: %w", dir, err)
	}
	slog.Info("Starting mapping watcher", logfields.Path(mw.path))
	go mw.watchLoop(ctx)
	go mw.reloadLoop(ctx)
	return nil
}

// Stop ends both loops and closes the watcher. It is safe to call twice.
func (mw *MappingWatcher) Stop(context.Context) error {
	var err error
	mw.stopOnce.Do(func() {
		slog.Info("Stopping mapping watcher")
		close(mw.stopChan)
		err = mw.watcher.Close()
	})
	return err
}

func (mw *MappingWatcher) watchLoop(ctx context.Context) {
	name := filepath.Base(mw.path)
	for {
		select {
		case <-ctx.Done():
			return
		case <-mw.stopChan:
			return
		case ev, ok := <-mw.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(ev.Name) != name {
				continue
			}
			switch {
			case ev.Has(fsnotify.Write), ev.Has(fsnotify.Create), ev.Has(fsnotify.Rename):
				slog.Debug("Mapping file change detected", logfields.File(ev.Name), slog.String("op", ev.Op.String()))
				mw.triggerReload()
			case ev.Has(fsnotify.Remove):
				slog.Warn("Mapping file removed, keeping current rules", logfields.File(ev.Name))
			}
		case err, ok := <-mw.watcher.Errors:
			if !ok {
				return
			}
			slog.Error("Mapping watcher error", logfields.Error(err))
		}
	}
}

func (mw *MappingWatcher) reloadLoop(ctx context.Context) {
	var timer *time.Timer
	stop := func() {
		if timer != nil {
			timer.Stop()
		}
	}
	for {
		select {
		case <-ctx.Done():
			stop()
			return
		case <-mw.stopChan:
			stop()
			return
		case <-mw.reloadChan:
			stop()
			timer = time.AfterFunc(mw.debounceTime, mw.performReload)
		}
	}
}

func (mw *MappingWatcher) triggerReload() {
	select {
	case mw.reloadChan <- struct{}{}:
	default:
	}
}

// performReload swaps in the new rules. A broken file keeps the old ones.
func (mw *MappingWatcher) performReload() {
	err := mw.store.Reload()
	if err != nil {
		slog.Error("Failed to reload mapping file", logfields.Path(mw.path), logfields.Error(err))
	} else {
		slog.Info("Mapping file reloaded", logfields.Path(mw.path))
	}
	if mw.onReload != nil {
		mw.onReload(err)
	}
}
