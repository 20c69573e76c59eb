package classifier

import (
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"textclf/logger"
)

// Watcher invokes a callback when a model artifact changes on disk. The
// parent directory is watched rather than the file itself, so artifacts
// replaced by rename are still picked up. Events are debounced because a
// save is often several writes.
type Watcher struct {
	path     string
	onChange func()
	fsw      *fsnotify.Watcher
	debounce time.Duration
	done     chan struct{}
}

// Watch starts watching the artifact at path. onChange may be called
// from a background goroutine and must be safe for concurrent use.
func Watch(path string, onChange func()) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(filepath.Dir(abs)); err != nil {
		fsw.Close()
		return nil, err
	}
	w := &Watcher{
		path:     abs,
		onChange: onChange,
		fsw:      fsw,
		debounce: 200 * time.Millisecond,
		done:     make(chan struct{}),
	}
	go w.loop()
	return w, nil
}

func (w *Watcher) loop() {
	defer close(w.done)
	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()
	for {
		select {
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != w.path {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if timer == nil {
				timer = time.AfterFunc(w.debounce, w.onChange)
			} else {
				timer.Reset(w.debounce)
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			logger.With("classifier").Warnf("watching %s: %v", w.path, err)
		}
	}
}

// Close stops the watcher and waits for its loop to exit.
func (w *Watcher) Close() error {
	err := w.fsw.Close()
	<-w.done
	return err
}
