package sysfs

import (
	"context"
	"fmt"
	"path/filepath"
	"regexp"

	"github.com/charlesren/ylog"
	"github.com/fsnotify/fsnotify"

	ucsi "github.com/usbctools/go-ucsi"
)

var deviceRe = regexp.MustCompile(`^port\d+(-partner|-cable)?$`)

// PortEvent reports a typec class device appearing or disappearing.
type PortEvent struct {
	// Name is the device name, e.g. "port0" or "port0-partner".
	Name  string
	Added bool
}

// Watch reports hot-plug events from the typec class tree until ctx is
// cancelled. It runs independently of the snapshot operations; the returned
// channel is closed when the watcher stops.
func Watch(ctx context.Context, cfg *ucsi.Config) (<-chan PortEvent, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch: %w", err)
	}
	if err := w.Add(cfg.SysfsRoot); err != nil {
		w.Close()
		return nil, fmt.Errorf("%w: %s", ucsi.ErrNotSupported, cfg.SysfsRoot)
	}
	ch := make(chan PortEvent)
	go func() {
		defer close(ch)
		defer w.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				name := filepath.Base(ev.Name)
				if !deviceRe.MatchString(name) {
					continue
				}
				var pe PortEvent
				switch {
				case ev.Has(fsnotify.Create):
					pe = PortEvent{Name: name, Added: true}
				case ev.Has(fsnotify.Remove):
					pe = PortEvent{Name: name}
				default:
					continue
				}
				ylog.Debugf(logModule, "hotplug: %s added=%v", pe.Name, pe.Added)
				select {
				case ch <- pe:
				case <-ctx.Done():
					return
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				ylog.Warnf(logModule, "watch error: %v", err)
			}
		}
	}()
	return ch, nil
}
