package source

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/MorganRO8/LoA-sub000/constants"
)

// Watch signals on the returned channel when document files are created, written or
// renamed into the directory. Bursts within debounce collapse into one signal. The
// channel closes when ctx is done.
func (d *Directory) Watch(ctx context.Context, debounce time.Duration) (<-chan struct{}, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := w.Add(d.root); err != nil {
		_ = w.Close()
		return nil, err
	}

	out := make(chan struct{}, 1)
	go func() {
		defer close(out)
		defer w.Close()

		var timer *time.Timer
		var fire <-chan time.Time
		signal := func() {
			select {
			case out <- struct{}{}:
			default:
			}
		}

		for {
			select {
			case <-ctx.Done():
				if timer != nil {
					timer.Stop()
				}
				return
			case e, ok := <-w.Events:
				if !ok {
					return
				}
				if e.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 || !d.isDocument(e.Name) {
					continue
				}
				d.logger.Debug("source.watch.event", "path", e.Name, "op", e.Op.String())
				if debounce <= 0 {
					signal()
					continue
				}
				if timer == nil {
					timer = time.NewTimer(debounce)
				} else {
					timer.Reset(debounce)
				}
				fire = timer.C
			case <-fire:
				fire = nil
				signal()
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				d.logger.Warn("source.watch.error", "root", d.root, "error", err)
			}
		}
	}()
	return out, nil
}

func (d *Directory) isDocument(path string) bool {
	name := filepath.Base(path)
	if !d.includeHidden && strings.HasPrefix(name, ".") {
		return false
	}
	_, ok := constants.DocumentExtensions[constants.NormalizeExt(filepath.Ext(name))]
	return ok
}
