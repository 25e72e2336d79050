package mirror

import (
	"log/slog"
	"sync"
	"time"

	"github.com/rjeczalik/notify"
)

const (
	eventBufferSize        = 64
	defaultDebounceTimeout = 500 * time.Millisecond
)

// Watcher turns raw filesystem events under the source tree into debounced
// nudges for the daemon loop, so a burst of writes triggers one early pass
// instead of many.
type Watcher struct {
	watchDir string
	events   chan notify.EventInfo
	nudges   chan struct{}
	debounce time.Duration
	done     chan struct{}
	wg       sync.WaitGroup
}

func NewWatcher(watchDir string) *Watcher {
	return &Watcher{
		watchDir: watchDir,
		nudges:   make(chan struct{}, 1),
		debounce: defaultDebounceTimeout,
		done:     make(chan struct{}),
	}
}

// SetDebounce overrides the debounce window.
func (w *Watcher) SetDebounce(d time.Duration) {
	w.debounce = d
}

// Nudges delivers one signal per debounced burst of source changes.
func (w *Watcher) Nudges() <-chan struct{} {
	return w.nudges
}

func (w *Watcher) Start() error {
	slog.Info("watcher start", "dir", w.watchDir)

	w.events = make(chan notify.EventInfo, eventBufferSize)
	if err := notify.Watch(w.watchDir+"/...", w.events, notify.Write, notify.Create, notify.Rename); err != nil {
		return err
	}

	w.wg.Add(1)
	go w.debounceEvents()

	return nil
}

func (w *Watcher) Stop() {
	slog.Info("watcher stopping")
	close(w.done)
	notify.Stop(w.events)
	w.wg.Wait()
}

func (w *Watcher) debounceEvents() {
	defer w.wg.Done()

	var timer *time.Timer
	var timerC <-chan time.Time

	for {
		select {
		case <-w.done:
			if timer != nil {
				timer.Stop()
			}
			return

		case ev, ok := <-w.events:
			if !ok {
				return
			}
			slog.Debug("fs event", "path", ev.Path(), "event", ev.Event())
			if timer == nil {
				timer = time.NewTimer(w.debounce)
				timerC = timer.C
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(w.debounce)
			}

		case <-timerC:
			timer = nil
			timerC = nil
			select {
			case w.nudges <- struct{}{}:
			default:
				// a nudge is already pending
			}
		}
	}
}
