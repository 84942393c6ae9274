package source

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	gerrors "github.com/matzehuels/graphlens/pkg/errors"
	"github.com/matzehuels/graphlens/pkg/graph"
	gio "github.com/matzehuels/graphlens/pkg/io"
)

// DefaultDebounce collapses bursts of write events into one reload.
const DefaultDebounce = 200 * time.Millisecond

// File is a JSON or YAML dataset on disk. Edits are not written back; the
// file is the source of truth and a change on disk replaces them.
type File struct {
	path     string
	debounce time.Duration
}

// NewFile returns a file source.
func NewFile(path string) *File {
	return &File{path: path, debounce: DefaultDebounce}
}

// Path returns the dataset path.
func (f *File) Path() string { return f.path }

// Load reads, decodes and validates the file.
func (f *File) Load(_ context.Context) (graph.Batch, error) {
	return gio.ReadFile(f.path)
}

// Close implements Source.
func (f *File) Close() error { return nil }

// Watch reports writes to the file. The directory is watched rather than
// the file so that editors replacing the file atomically are seen too.
func (f *File) Watch(ctx context.Context, onChange func()) error {
	abs, err := filepath.Abs(f.path)
	if err != nil {
		return err
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return gerrors.Wrap(gerrors.ErrCodeInternal, err, "watch %s", f.path)
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		w.Close()
		return gerrors.Wrap(gerrors.ErrCodeInternal, err, "watch %s", f.path)
	}

	go func() {
		defer w.Close()
		var timer *time.Timer
		var fire <-chan time.Time
		for {
			select {
			case <-ctx.Done():
				if timer != nil {
					timer.Stop()
				}
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != abs || !ev.Has(fsnotify.Write|fsnotify.Create|fsnotify.Rename) {
					continue
				}
				if timer == nil {
					timer = time.NewTimer(f.debounce)
				} else {
					timer.Reset(f.debounce)
				}
				fire = timer.C
			case <-fire:
				fire = nil
				onChange()
			case _, ok := <-w.Errors:
				if !ok {
					return
				}
			}
		}
	}()
	return nil
}

var (
	_ Source  = (*File)(nil)
	_ Watcher = (*File)(nil)
)
