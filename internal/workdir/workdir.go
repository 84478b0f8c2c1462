// Package workdir manages the scratch directory that holds a run's segment
// and fragment files.
package workdir

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/gofrs/flock"
	"github.com/pkg/errors"
	"golang.org/x/exp/slices"
)

// File name prefixes. Each is followed by the sequence index.
const (
	SegmentPrefix   = "subclip_"
	ProcessedPrefix = "processed_subclip_"
	FragmentPrefix  = "frag_"
)

// ErrLocked is returned when another process holds the scratch directory.
var ErrLocked = errors.New("scratch directory is in use by another run")

// Dir is an exclusively locked scratch directory.
type Dir struct {
	path string
	lock *flock.Flock
}

// Open creates path if needed, takes its lock and removes every file left in
// it by earlier runs.
func Open(path string) (*Dir, error) {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, errors.Wrap(err, "create scratch directory")
	}

	lock := flock.New(filepath.Clean(path) + ".lock")
	ok, err := lock.TryLock()
	if err != nil {
		return nil, errors.Wrap(err, "acquire scratch lock")
	}
	if !ok {
		return nil, errors.Wrap(ErrLocked, path)
	}

	d := &Dir{path: path, lock: lock}
	if err := d.Clear(); err != nil {
		_ = lock.Unlock()
		return nil, err
	}
	return d, nil
}

// Path returns the directory path.
func (d *Dir) Path() string {
	return d.path
}

// Clear removes every regular file in the directory.
func (d *Dir) Clear() error {
	entries, err := os.ReadDir(d.path)
	if err != nil {
		return errors.Wrap(err, "read scratch directory")
	}
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		if err := os.Remove(filepath.Join(d.path, e.Name())); err != nil {
			return errors.Wrap(err, "clear scratch directory")
		}
	}
	return nil
}

// Close removes the lock file and releases the lock. Files in the directory
// are left in place.
func (d *Dir) Close() error {
	// unlink while still holding the lock so a waiting run creates a fresh file
	if err := os.Remove(d.lock.Path()); err != nil && !os.IsNotExist(err) {
		_ = d.lock.Unlock()
		return errors.Wrap(err, "remove scratch lock")
	}
	return d.lock.Unlock()
}

// SegmentPath returns the file for source segment seq.
func (d *Dir) SegmentPath(seq int, ext string) string {
	return d.named(SegmentPrefix, seq, ext)
}

// ProcessedPath returns the file for the processed counterpart of segment seq.
func (d *Dir) ProcessedPath(seq int, ext string) string {
	return d.named(ProcessedPrefix, seq, ext)
}

// FragmentPath returns the file for fragment n.
func (d *Dir) FragmentPath(n int, ext string) string {
	return d.named(FragmentPrefix, n, ext)
}

func (d *Dir) named(prefix string, n int, ext string) string {
	return filepath.Join(d.path, fmt.Sprintf("%s%d%s", prefix, n, ext))
}

// List returns the files whose names start with prefix, ordered by their
// sequence index.
func (d *Dir) List(prefix string) ([]string, error) {
	entries, err := os.ReadDir(d.path)
	if err != nil {
		return nil, errors.Wrap(err, "read scratch directory")
	}

	var files []string
	for _, e := range entries {
		name := e.Name()
		if !e.Type().IsRegular() || !strings.HasPrefix(name, prefix) {
			continue
		}
		// skip concat lists and other helper files
		if _, ok := indexAfter(name, prefix); !ok {
			continue
		}
		files = append(files, filepath.Join(d.path, name))
	}
	SortBySequence(files)
	return files, nil
}

var digits = regexp.MustCompile(`\d+`)

// SequenceIndex returns the first number embedded in the base name of path.
func SequenceIndex(path string) (int, bool) {
	m := digits.FindString(filepath.Base(path))
	if m == "" {
		return 0, false
	}
	n, err := strconv.Atoi(m)
	if err != nil {
		return 0, false
	}
	return n, true
}

func indexAfter(name, prefix string) (int, bool) {
	rest := strings.TrimPrefix(name, prefix)
	m := digits.FindStringIndex(rest)
	if m == nil || m[0] != 0 {
		return 0, false
	}
	n, err := strconv.Atoi(rest[m[0]:m[1]])
	return n, err == nil
}

// SortBySequence orders paths by their numeric sequence index, so that
// "subclip_10" follows "subclip_9". Paths without an index sort last.
func SortBySequence(paths []string) {
	slices.SortStableFunc(paths, func(a, b string) int {
		ia, oka := SequenceIndex(a)
		ib, okb := SequenceIndex(b)
		switch {
		case oka && okb:
			return ia - ib
		case oka:
			return -1
		case okb:
			return 1
		default:
			return 0
		}
	})
}
