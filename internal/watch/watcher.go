package watch

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"

	"ico-maker-go/internal/converter"
	"ico-maker-go/internal/icon"
	"ico-maker-go/internal/logger"
)

// Event is emitted for every image the watcher converted or failed to convert.
type Event struct {
	FilePath string
	Result   converter.Result
}

// Watcher converts images as they appear in a directory.
type Watcher struct {
	dir        string
	target     converter.Target
	sizes      icon.Selection
	extensions []string
	debounce   time.Duration

	conv    converter.Converter
	logger  *logrus.Logger
	watcher *fsnotify.Watcher
	events  chan Event

	mu       sync.Mutex
	pending  map[string]*time.Timer
	inflight sync.WaitGroup
	started  bool
	closed   bool
	done     chan struct{}
}

// NewWatcher returns a watcher for dir. The target base name is ignored so every
// dropped image gets its own icon.
func NewWatcher(
	dir string,
	target converter.Target,
	sizes icon.Selection,
	extensions []string,
	debounce time.Duration,
	conv converter.Converter,
	log *logrus.Logger,
) (*Watcher, error) {
	if err := converter.ValidateInputs([]string{dir}, target.Directory, sizes); err != nil {
		return nil, err
	}
	if sameDir(dir, target.Directory) {
		return nil, fmt.Errorf("watch directory and output directory must differ")
	}

	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	target.BaseName = ""
	return &Watcher{
		dir:        dir,
		target:     target,
		sizes:      sizes,
		extensions: extensions,
		debounce:   debounce,
		conv:       conv,
		logger:     log,
		watcher:    fsWatcher,
		events:     make(chan Event, 100),
		pending:    make(map[string]*time.Timer),
		done:       make(chan struct{}),
	}, nil
}

// Start begins monitoring the directory.
func (w *Watcher) Start() error {
	if err := w.watcher.Add(w.dir); err != nil {
		return fmt.Errorf("failed to watch folder %s: %w", w.dir, err)
	}
	logger.WithOperation(w.logger, "watch").Infof("Watching folder: %s -> %s", w.dir, w.target.Directory)

	w.mu.Lock()
	w.started = true
	w.mu.Unlock()
	go w.processEvents()
	return nil
}

// Events returns the event channel. It is closed by Stop.
func (w *Watcher) Events() <-chan Event {
	return w.events
}

// Stop stops the watcher and waits for in-flight conversions.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	for name, timer := range w.pending {
		if timer.Stop() {
			w.inflight.Done()
		}
		delete(w.pending, name)
	}
	started := w.started
	w.mu.Unlock()

	err := w.watcher.Close()
	if started {
		<-w.done
	}
	close(w.events)
	return err
}

// processEvents debounces fsnotify events per file.
func (w *Watcher) processEvents() {
	defer func() {
		w.inflight.Wait()
		close(w.done)
	}()

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !w.wanted(event) {
				continue
			}

			w.mu.Lock()
			if w.closed {
				w.mu.Unlock()
				continue
			}
			if timer, exists := w.pending[event.Name]; exists && timer.Stop() {
				w.inflight.Done()
			}
			name := event.Name
			w.inflight.Add(1)
			w.pending[name] = time.AfterFunc(w.debounce, func() {
				defer w.inflight.Done()
				w.mu.Lock()
				delete(w.pending, name)
				closed := w.closed
				w.mu.Unlock()
				if !closed {
					w.convert(name)
				}
			})
			w.mu.Unlock()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Errorf("Watcher error: %v", err)
		}
	}
}

func (w *Watcher) wanted(event fsnotify.Event) bool {
	if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
		return false
	}
	base := filepath.Base(event.Name)
	if strings.HasPrefix(base, ".") {
		return false
	}
	ext := strings.ToLower(filepath.Ext(base))
	for _, e := range w.extensions {
		if ext == e {
			return true
		}
	}
	return false
}

func (w *Watcher) convert(path string) {
	res := w.conv.ConvertOne(path, w.target, w.sizes)
	if res.Err != nil {
		logger.WithImage(w.logger, path).Warnf("Watch conversion failed: %v", res.Err)
	}
	select {
	case w.events <- Event{FilePath: path, Result: res}:
	default:
		w.logger.Warnf("Watch event buffer full, dropping event for %s", path)
	}
}

func sameDir(a, b string) bool {
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	return errA == nil && errB == nil && absA == absB
}
