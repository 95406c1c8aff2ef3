package delaytail

import (
	"os"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// DefaultQueueSize is the capacity of the channel between the watcher and
// the engine.
const DefaultQueueSize = 1024

// EventKind says what a notification means for the tailed file.
type EventKind int

const (
	// EventGrew means the file may have new content. It can be duplicated
	// or spurious; readers must rely on the byte offset, not on the count.
	EventGrew EventKind = iota
	// EventRemoved means the path no longer names the file being tailed.
	EventRemoved
)

func (k EventKind) String() string {
	switch k {
	case EventGrew:
		return "grew"
	case EventRemoved:
		return "removed"
	default:
		return "unknown"
	}
}

// Event is one notification about the tailed path.
type Event struct {
	Kind EventKind
	Path string
}

// Watcher turns fsnotify events for one file into Events. Delivery blocks
// when the queue is full: events are never dropped on the floor, at the
// cost of stalling the fsnotify reader.
type Watcher struct {
	watcher *fsnotify.Watcher
	events  chan Event
	done    chan struct{}
	once    sync.Once
	wg      sync.WaitGroup
	log     *zap.Logger
}

// NewWatcher starts watching path. queueSize below 1 selects
// DefaultQueueSize.
func NewWatcher(path string, queueSize int, log *zap.Logger) (*Watcher, error) {
	if queueSize < 1 {
		queueSize = DefaultQueueSize
	}
	if log == nil {
		log = zap.NewNop()
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "could not create watcher")
	}
	if err := fw.Add(path); err != nil {
		fw.Close()
		return nil, errors.Wrapf(err, "could not watch %q", path)
	}
	w := &Watcher{
		watcher: fw,
		events:  make(chan Event, queueSize),
		done:    make(chan struct{}),
		log:     log.With(zap.String("path", path)),
	}
	w.wg.Add(1)
	go w.loop(path)
	return w, nil
}

// Events is closed after Close, or when fsnotify shuts down.
func (w *Watcher) Events() <-chan Event {
	return w.events
}

func (w *Watcher) Close() error {
	var err error
	w.once.Do(func() {
		close(w.done)
		err = w.watcher.Close()
		w.wg.Wait()
	})
	return err
}

func (w *Watcher) loop(path string) {
	defer w.wg.Done()
	defer close(w.events)
	for {
		select {
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			kind, relevant := classify(ev.Op)
			// Unlinking a file that is still open reports only a link count
			// change; the removal itself comes when the last handle closes.
			if !relevant && ev.Has(fsnotify.Chmod) && gone(ev.Name) {
				kind, relevant = EventRemoved, true
			}
			if !relevant {
				continue
			}
			if !w.send(Event{Kind: kind, Path: ev.Name}) {
				return
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			if !w.handleError(err, path) {
				return
			}
		case <-w.done:
			return
		}
	}
}

// handleError reports false once the watcher is closing.
func (w *Watcher) handleError(err error, path string) bool {
	if errors.Is(err, fsnotify.ErrEventOverflow) {
		// Some writes went unreported; one read catches up on all of them.
		w.log.Warn("notification queue overflowed")
		return w.send(Event{Kind: EventGrew, Path: path})
	}
	w.log.Warn("watcher error", zap.Error(err))
	return true
}

func (w *Watcher) send(ev Event) bool {
	select {
	case w.events <- ev:
		return true
	case <-w.done:
		return false
	}
}

func gone(path string) bool {
	_, err := os.Lstat(path)
	return errors.Is(err, os.ErrNotExist)
}

func classify(op fsnotify.Op) (EventKind, bool) {
	switch {
	case op.Has(fsnotify.Remove), op.Has(fsnotify.Rename):
		return EventRemoved, true
	case op.Has(fsnotify.Write), op.Has(fsnotify.Create):
		return EventGrew, true
	default:
		return 0, false
	}
}
