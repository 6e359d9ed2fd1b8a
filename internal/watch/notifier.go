package watch

import (
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
)

// Notifier watches the document's directory with fsnotify. Editors replace
// files by rename, so the file itself is not watched; events are filtered by
// name instead.
//
// The event goroutine only raises a flag. Changed confirms it with a stat
// comparison so the coordinator's own write-through, already recorded by Sync,
// does not come back as an external change.
type Notifier struct {
	path string
	base string

	watcher *fsnotify.Watcher
	dirty   atomic.Bool
	done    chan struct{}
	wg      sync.WaitGroup

	mu   sync.Mutex
	seen stamp
	err  error
}

// NewNotifier starts watching path's directory.
func NewNotifier(path string) (*Notifier, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("watch %s: %w", path, err)
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch %s: %w", path, err)
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("watch %s: %w", path, err)
	}
	n := &Notifier{
		path:    abs,
		base:    filepath.Base(abs),
		watcher: w,
		done:    make(chan struct{}),
		seen:    statStamp(abs),
	}
	n.wg.Add(1)
	go n.loop()
	return n, nil
}

func (n *Notifier) loop() {
	defer n.wg.Done()
	for {
		select {
		case <-n.done:
			return
		case ev, ok := <-n.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(ev.Name) != n.base {
				continue
			}
			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Rename) {
				n.dirty.Store(true)
			}
		case err, ok := <-n.watcher.Errors:
			if !ok {
				return
			}
			n.mu.Lock()
			n.err = err
			n.mu.Unlock()
			// events may have been lost; let Changed fall back to stat
			n.dirty.Store(true)
		}
	}
}

// Path returns the absolute path of the watched file.
func (n *Notifier) Path() string { return n.path }

func (n *Notifier) Changed() bool {
	if !n.dirty.Swap(false) {
		return false
	}
	cur := statStamp(n.path)
	n.mu.Lock()
	defer n.mu.Unlock()
	if !cur.exists || cur.equal(n.seen) {
		return false
	}
	n.seen = cur
	return true
}

func (n *Notifier) Sync() {
	cur := statStamp(n.path)
	n.mu.Lock()
	n.seen = cur
	n.mu.Unlock()
}

// Err returns the last error reported by the watcher, if any.
func (n *Notifier) Err() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.err
}

// Close stops the event goroutine and releases the watcher.
func (n *Notifier) Close() error {
	select {
	case <-n.done:
		return nil
	default:
	}
	close(n.done)
	err := n.watcher.Close()
	n.wg.Wait()
	return err
}
