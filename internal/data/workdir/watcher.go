package workdir

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/colonyops/workboard/internal/core/backlog"
	"github.com/colonyops/workboard/internal/core/logging"
	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// Watcher reports edits made to the work dir by anything other than the
// engine itself, such as an editor or git checkout.
type Watcher struct {
	dir      *Dir
	watcher  *fsnotify.Watcher
	debounce time.Duration
	log      zerolog.Logger
}

// NewWatcher watches every folder of the work dir, including folders created
// later.
func NewWatcher(d *Dir, debounce time.Duration, log zerolog.Logger) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}
	if debounce <= 0 {
		debounce = 250 * time.Millisecond
	}

	w := &Watcher{
		dir:      d,
		watcher:  fw,
		debounce: debounce,
		log:      logging.For(log, "watcher"),
	}
	if err := w.addRecursive(d.abs(d.opts.WorkDir)); err != nil {
		_ = fw.Close()
		return nil, err
	}
	return w, nil
}

// Run blocks until ctx is done, calling onChange with the sorted source
// paths touched during each debounce window.
func (w *Watcher) Run(ctx context.Context, onChange func(sources []string)) error {
	defer func() { _ = w.watcher.Close() }()

	pending := make(map[string]bool)
	timer := time.NewTimer(w.debounce)
	timer.Stop()

	for {
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}

			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					_ = w.addRecursive(event.Name)
				}
			}

			source, ok := w.source(event.Name)
			if !ok {
				continue
			}
			w.log.Debug().Str("path", source).Str("op", event.Op.String()).Msg("file system event")

			pending[source] = true
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(w.debounce)

		case <-timer.C:
			if len(pending) == 0 {
				continue
			}
			sources := make([]string, 0, len(pending))
			for s := range pending {
				sources = append(sources, s)
			}
			sort.Strings(sources)
			pending = make(map[string]bool)
			onChange(sources)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.log.Error().Err(err).Msg("watcher error")
		}
	}
}

// Close stops the watcher without waiting for Run.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}

// source maps an absolute path to a source path, dropping temp files,
// dotfiles, ignored paths and the manifest.
func (w *Watcher) source(abs string) (string, bool) {
	rel, err := filepath.Rel(w.dir.root, abs)
	if err != nil {
		return "", false
	}
	source := filepath.ToSlash(rel)
	if !strings.HasPrefix(source, w.dir.opts.WorkDir+"/") {
		return "", false
	}

	base := filepath.Base(abs)
	if strings.HasPrefix(base, ".") || base == backlog.ManifestFile {
		return "", false
	}
	// Atomic writes go through temp files with a random suffix.
	if ext := filepath.Ext(base); ext != ".md" && ext != "" {
		return "", false
	}
	if w.dir.ignored(source) {
		return "", false
	}
	return source, true
}

func (w *Watcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			w.log.Debug().Err(err).Str("path", p).Msg("skipping path during walk")
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if p != root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		return w.watcher.Add(p)
	})
}
