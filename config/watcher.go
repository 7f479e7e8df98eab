package config

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Tunables are the settings that may change while the simulation runs.
// Everything else is fixed at startup.
type Tunables struct {
	MaxStepsPerFrame int
	Paused           bool
	LogLevel         string
}

// Tunables extracts the run-time tunables.
func (s Settings) Tunables() Tunables {
	return Tunables{
		MaxStepsPerFrame: s.Loop.MaxStepsPerFrame,
		Paused:           s.Loop.Paused,
		LogLevel:         s.Log.Level,
	}
}

// Watcher reloads a settings file when it changes and forwards the
// tunables. Invalid files are logged and ignored.
type Watcher struct {
	path     string
	onChange func(Tunables)
	log      *zap.Logger
	watcher  *fsnotify.Watcher
	debounce time.Duration
}

// NewWatcher watches the directory holding path, so editors that replace
// the file on save are seen too.
func NewWatcher(path string, onChange func(Tunables), log *zap.Logger) (*Watcher, error) {
	if log == nil {
		log = zap.NewNop()
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	if err := fw.Add(filepath.Dir(abs)); err != nil {
		fw.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", filepath.Dir(abs), err)
	}
	return &Watcher{
		path:     abs,
		onChange: onChange,
		log:      log,
		watcher:  fw,
		debounce: 200 * time.Millisecond,
	}, nil
}

// Run processes events until ctx is cancelled, then closes the watcher.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.watcher.Close()

	timer := time.NewTimer(time.Hour)
	timer.Stop()

	for {
		select {
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != w.path || ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			w.log.Debug("settings file changed", zap.String("file", ev.Name), zap.String("op", ev.Op.String()))
			timer.Reset(w.debounce)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("settings watcher error", zap.Error(err))

		case <-timer.C:
			w.reload()

		case <-ctx.Done():
			return nil
		}
	}
}

func (w *Watcher) reload() {
	s, found, err := Load(w.path)
	if err != nil {
		w.log.Warn("ignoring invalid settings", zap.String("file", w.path), zap.Error(err))
		return
	}
	if !found {
		return
	}
	t := s.Tunables()
	w.log.Info("settings reloaded",
		zap.Int("maxStepsPerFrame", t.MaxStepsPerFrame),
		zap.Bool("paused", t.Paused),
		zap.String("logLevel", t.LogLevel))
	if w.onChange != nil {
		w.onChange(t)
	}
}
