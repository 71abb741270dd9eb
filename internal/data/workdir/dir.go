// Package workdir is the disk side of a backlog: it reads the work dir into a
// snapshot, applies changesets with a staleness check, creates and removes
// item and task files, maintains the manifest and watches for hand edits.
package workdir

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/colonyops/workboard/internal/core/backlog"
)

// ErrInvalidSource is returned for a source path outside the work dir.
var ErrInvalidSource = errors.New("invalid source path")

// Options configure a Dir.
type Options struct {
	// WorkDir is the directory below the root holding item folders.
	WorkDir string
	// ArchiveDir is where DeleteItem moves archived folders, relative to root.
	ArchiveDir string
	// Ignore holds doublestar patterns matched against source paths.
	Ignore []string
}

// Dir is a backlog root on disk.
type Dir struct {
	root string
	opts Options
}

// Open returns the Dir for root. The work dir is created when missing.
func Open(root string, opts Options) (*Dir, error) {
	if opts.WorkDir == "" {
		opts.WorkDir = "work"
	}
	if opts.ArchiveDir == "" {
		opts.ArchiveDir = "archive"
	}
	for _, p := range opts.Ignore {
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("invalid ignore pattern %q", p)
		}
	}

	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("open backlog root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("backlog root %s is not a directory", root)
	}

	d := &Dir{root: filepath.Clean(root), opts: opts}
	if err := os.MkdirAll(d.abs(opts.WorkDir), 0o755); err != nil {
		return nil, fmt.Errorf("create work dir: %w", err)
	}
	return d, nil
}

// Root returns the backlog root directory.
func (d *Dir) Root() string { return d.root }

// WorkDir returns the work dir name, which prefixes every source path.
func (d *Dir) WorkDir() string { return d.opts.WorkDir }

// ManifestSource is the source path of the manifest file.
func (d *Dir) ManifestSource() string {
	return d.opts.WorkDir + "/" + backlog.ManifestFile
}

func (d *Dir) abs(source string) string {
	return filepath.Join(d.root, filepath.FromSlash(source))
}

// resolve validates a source path and returns its absolute path.
func (d *Dir) resolve(source string) (string, error) {
	clean := path.Clean(source)
	if clean != source || path.IsAbs(source) || strings.Contains(source, "\\") {
		return "", fmt.Errorf("%w: %q", ErrInvalidSource, source)
	}
	if !strings.HasPrefix(clean, d.opts.WorkDir+"/") {
		return "", fmt.Errorf("%w: %q is outside %s", ErrInvalidSource, source, d.opts.WorkDir)
	}
	for _, part := range strings.Split(clean, "/") {
		if part == ".." {
			return "", fmt.Errorf("%w: %q", ErrInvalidSource, source)
		}
	}
	return d.abs(clean), nil
}

func (d *Dir) ignored(source string) bool {
	for _, p := range d.opts.Ignore {
		if ok, _ := doublestar.Match(p, source); ok {
			return true
		}
	}
	return false
}

// Snapshot reads every item folder of the work dir. Only markdown files and
// the manifest are read; other files are listed with empty content so the
// model can still see them. Ignored paths are skipped entirely.
func (d *Dir) Snapshot() (backlog.Snapshot, error) {
	snap := backlog.Snapshot{
		WorkDir: d.opts.WorkDir,
		Folders: []string{},
		Files:   make(map[string]string),
	}

	entries, err := os.ReadDir(d.abs(d.opts.WorkDir))
	if err != nil {
		return snap, fmt.Errorf("read work dir: %w", err)
	}

	for _, e := range entries {
		name := e.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}

		if !e.IsDir() {
			if name == backlog.ManifestFile {
				source := d.ManifestSource()
				data, err := os.ReadFile(d.abs(source))
				if err != nil {
					return snap, fmt.Errorf("read %s: %w", source, err)
				}
				snap.Files[source] = string(data)
			}
			continue
		}

		folder := snap.Path(name, "")
		if d.ignored(folder) {
			continue
		}
		snap.Folders = append(snap.Folders, name)

		if err := d.readFolder(&snap, name); err != nil {
			return snap, err
		}
	}

	sort.Strings(snap.Folders)
	return snap, nil
}

func (d *Dir) readFolder(snap *backlog.Snapshot, folder string) error {
	entries, err := os.ReadDir(d.abs(snap.Path(folder, "")))
	if err != nil {
		return fmt.Errorf("read item folder %s: %w", folder, err)
	}

	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		source := snap.Path(folder, e.Name())
		if d.ignored(source) {
			continue
		}
		if !strings.HasSuffix(e.Name(), ".md") {
			snap.Files[source] = ""
			continue
		}

		data, err := os.ReadFile(d.abs(source))
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				// Removed between listing and reading.
				continue
			}
			return fmt.Errorf("read %s: %w", source, err)
		}
		snap.Files[source] = string(data)
	}
	return nil
}

// Scan reads and assembles the full model. Per-file problems end up in the
// model's report; only I/O failures on the work dir itself are returned.
func (d *Dir) Scan(opts backlog.BuildOptions) (backlog.Backlog, error) {
	snap, err := d.Snapshot()
	if err != nil {
		return backlog.Backlog{}, err
	}
	return backlog.Build(snap, opts), nil
}

// ReadFile returns the raw content of a backlog file.
func (d *Dir) ReadFile(source string) (string, error) {
	p, err := d.resolve(source)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", backlog.NotFound("file", source)
		}
		return "", fmt.Errorf("read %s: %w", source, err)
	}
	return string(data), nil
}
