package classify

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/erichter2018/rvutrack/pkg/logger"
)

// Debounce window for editors that write rule files in multiple events.
const reloadDebounce = 500 * time.Millisecond

// Watcher hot-reloads a rule file into an Engine. A successful parse swaps
// the whole table atomically; a failed parse keeps the previous table.
type Watcher struct {
	engine *Engine
	path   string
	fw     *fsnotify.Watcher
	log    logger.Logger
	done   chan struct{}
}

// NewWatcher creates a watcher for the given rule file.
func NewWatcher(engine *Engine, path string) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	// Watch the directory; many editors replace the file on save, which
	// drops a watch placed on the file itself.
	if err := fw.Add(filepath.Dir(path)); err != nil {
		_ = fw.Close()
		return nil, err
	}
	return &Watcher{
		engine: engine,
		path:   path,
		fw:     fw,
		log:    logger.Get().Named("rules-watcher"),
		done:   make(chan struct{}),
	}, nil
}

// Start begins watching until ctx is canceled. Non-blocking.
func (w *Watcher) Start(ctx context.Context) {
	go w.loop(ctx)
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	return w.fw.Close()
}

func (w *Watcher) loop(ctx context.Context) {
	defer close(w.done)

	var timer *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.fw.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != filepath.Clean(w.path) {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(reloadDebounce)
				fire = timer.C
			} else {
				timer.Reset(reloadDebounce)
			}
		case <-fire:
			timer = nil
			fire = nil
			w.reload(ctx)
		case err, ok := <-w.fw.Errors:
			if !ok {
				return
			}
			w.log.Warn(ctx, "rules watcher error", logger.Error(err))
		}
	}
}

func (w *Watcher) reload(ctx context.Context) {
	table, err := LoadFile(w.path)
	if err != nil {
		w.log.Warn(ctx, "rules reload failed; keeping previous table",
			logger.String("path", w.path),
			logger.Error(err),
		)
		return
	}
	w.engine.Swap(table)
	w.log.Info(ctx, "rules reloaded",
		logger.String("path", w.path),
		logger.Int("rules", w.engine.RuleCount()),
	)
}
