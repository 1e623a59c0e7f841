// Package ingest turns a drop folder into transcription requests: new audio files
// are picked up with fsnotify and handed to a Handler with bounded concurrency.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/sync/semaphore"
)

// Handler processes one settled file.
type Handler func(ctx context.Context, path string) error

// DefaultExtensions are the containers the pipeline accepts from a drop folder.
var DefaultExtensions = []string{".mp3", ".m4a", ".wav", ".ogg", ".oga", ".flac", ".webm", ".mp4", ".mpeg", ".mpga", ".aac", ".opus"}

type Options struct {
	MaxConcurrent int
	Extensions    []string
	// SettleInterval is how long a file's size must stay unchanged before it is handled.
	SettleInterval time.Duration
}

type Watcher struct {
	dir        string
	handler    Handler
	fsw        *fsnotify.Watcher
	sem        *semaphore.Weighted
	extensions map[string]bool
	settle     time.Duration
	maxConc    int

	mu       sync.Mutex
	inFlight map[string]bool
	wg       sync.WaitGroup
}

func NewWatcher(dir string, handler Handler, opts Options) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("add watch path: %w", err)
	}

	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = 2
	}
	if len(opts.Extensions) == 0 {
		opts.Extensions = DefaultExtensions
	}
	if opts.SettleInterval <= 0 {
		opts.SettleInterval = 500 * time.Millisecond
	}

	exts := make(map[string]bool, len(opts.Extensions))
	for _, e := range opts.Extensions {
		exts[strings.ToLower(e)] = true
	}

	return &Watcher{
		dir:        dir,
		handler:    handler,
		fsw:        fsw,
		sem:        semaphore.NewWeighted(int64(opts.MaxConcurrent)),
		extensions: exts,
		settle:     opts.SettleInterval,
		maxConc:    opts.MaxConcurrent,
		inFlight:   map[string]bool{},
	}, nil
}

// Start blocks until ctx is done, then waits for in-flight files to finish.
func (w *Watcher) Start(ctx context.Context) error {
	slog.Info("watching drop folder", "dir", w.dir, "max_concurrent", w.maxConc)

	for {
		select {
		case <-ctx.Done():
			slog.Info("waiting for in-flight files")
			w.wg.Wait()
			return ctx.Err()

		case event, ok := <-w.fsw.Events:
			if !ok {
				return errors.New("watcher events channel closed")
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if !w.Accepts(event.Name) {
				slog.Debug("ignoring file", "path", event.Name)
				continue
			}
			w.dispatch(ctx, event.Name)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return errors.New("watcher errors channel closed")
			}
			slog.Error("watcher error", "error", err)
		}
	}
}

func (w *Watcher) Stop() error {
	return w.fsw.Close()
}

// Accepts reports whether path has a watched extension and is not a hidden or
// partial file.
func (w *Watcher) Accepts(path string) bool {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") || strings.HasSuffix(base, ".part") {
		return false
	}
	return w.extensions[strings.ToLower(filepath.Ext(base))]
}

func (w *Watcher) dispatch(ctx context.Context, path string) {
	w.mu.Lock()
	if w.inFlight[path] {
		w.mu.Unlock()
		return
	}
	w.inFlight[path] = true
	w.mu.Unlock()

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer func() {
			w.mu.Lock()
			delete(w.inFlight, path)
			w.mu.Unlock()
		}()

		if err := w.waitSettled(ctx, path); err != nil {
			if !errors.Is(err, context.Canceled) {
				slog.Warn("file did not settle", "path", path, "error", err)
			}
			return
		}
		if err := w.sem.Acquire(ctx, 1); err != nil {
			return
		}
		defer w.sem.Release(1)

		slog.Info("processing dropped file", "path", path)
		if err := w.handler(ctx, path); err != nil {
			slog.Error("failed to process dropped file", "path", path, "error", err)
		}
	}()
}

// waitSettled polls until two consecutive size reads agree and are non-zero.
func (w *Watcher) waitSettled(ctx context.Context, path string) error {
	last := int64(-1)
	ticker := time.NewTicker(w.settle)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
		info, err := os.Stat(path)
		if err != nil {
			return err
		}
		if info.IsDir() {
			return fmt.Errorf("%s is a directory", path)
		}
		if info.Size() > 0 && info.Size() == last {
			return nil
		}
		last = info.Size()
	}
}
