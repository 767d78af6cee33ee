package discovery

import (
	"time"

	"github.com/fsnotify/fsnotify"

	logx "warden/pkg/logx"
)

const debounce = 250 * time.Millisecond

// Watcher keeps an external view of the job root in sync. After a quiet
// period it rescans the directory and reports the diff against the last
// scan, so editor write/rename storms collapse into one update.
type Watcher struct {
	root string
	exts []string
	log  logx.Logger

	onAdd    func(name, path string)
	onRemove func(name string)

	fs    *fsnotify.Watcher
	known map[string]struct{}
	done  chan struct{}
}

// Watch starts watching root. onAdd fires for each newly discoverable job
// file, onRemove for each that disappeared. Callbacks run on the watcher
// goroutine; keep them short.
func Watch(root string, exts []string, log logx.Logger, onAdd func(name, path string), onRemove func(name string)) (*Watcher, error) {
	if err := CheckRoot(root); err != nil {
		return nil, err
	}
	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fs.Add(root); err != nil {
		_ = fs.Close()
		return nil, err
	}

	w := &Watcher{
		root:     root,
		exts:     exts,
		log:      log,
		onAdd:    onAdd,
		onRemove: onRemove,
		fs:       fs,
		known:    map[string]struct{}{},
		done:     make(chan struct{}),
	}
	if names, err := List(root, exts); err == nil {
		for _, n := range names {
			w.known[n] = struct{}{}
		}
	}
	go w.loop()
	return w, nil
}

func (w *Watcher) Close() error {
	err := w.fs.Close()
	<-w.done
	return err
}

func (w *Watcher) loop() {
	defer close(w.done)

	var timer *time.Timer
	var timerC <-chan time.Time
	for {
		select {
		case ev, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			// Debounce: rescan once the burst settles.
			if timer == nil {
				timer = time.NewTimer(debounce)
				timerC = timer.C
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(debounce)
			}
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			if err != nil {
				w.log.Warn("job root watcher error", logx.Err(err))
			}
		case <-timerC:
			timer = nil
			timerC = nil
			w.rescan()
		}
	}
}

func (w *Watcher) rescan() {
	names, err := List(w.root, w.exts)
	if err != nil {
		w.log.Warn("job root rescan failed", logx.Err(err))
		return
	}
	current := make(map[string]struct{}, len(names))
	for _, n := range names {
		current[n] = struct{}{}
		if _, ok := w.known[n]; !ok {
			path, err := Resolve(w.root, n, w.exts)
			if err != nil {
				continue
			}
			w.log.Debug("job file appeared", logx.String("job", n), logx.String("path", path))
			if w.onAdd != nil {
				w.onAdd(n, path)
			}
		}
	}
	for n := range w.known {
		if _, ok := current[n]; !ok {
			w.log.Debug("job file removed", logx.String("job", n))
			if w.onRemove != nil {
				w.onRemove(n)
			}
		}
	}
	w.known = current
}
