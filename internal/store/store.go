// Package store owns the download directory: it allocates artifact
// identifiers, resolves them to files, and enumerates and deletes files for
// the retention reaper.
package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"iter"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ytget/yt-download-server/internal/platform"
)

// Store errors
var (
	ErrStoreUnavailable = errors.New("artifact store unavailable")
	ErrNotFound         = errors.New("artifact not found")
	ErrAmbiguous        = errors.New("artifact id matches several files")
	ErrOutsideStore     = errors.New("path is outside the artifact store")
	ErrUnreadableEntry  = errors.New("store entry cannot be read")
)

// listBatchSize bounds how many directory entries are read per syscall batch
const listBatchSize = 64

// OutputTemplateExt is the yt-dlp placeholder for the final extension
const OutputTemplateExt = "%(ext)s"

var validID = regexp.MustCompile(`^[A-Za-z0-9-]+$`)

// Entry describes one file in the store
type Entry struct {
	Name    string
	Path    string
	ModTime time.Time
	Size    int64
}

// Store is the on-disk artifact store. It keeps no in-memory state besides
// its directory, so it is safe for concurrent use.
type Store struct {
	dir string
}

// New opens the store at dir, creating the directory if needed and probing it
// for writability
func New(dir string) (*Store, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if err := platform.CreateDirectoryIfNotExists(abs); err != nil {
		return nil, fmt.Errorf("%w: create %s: %v", ErrStoreUnavailable, abs, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrStoreUnavailable, abs)
	}

	probe, err := os.CreateTemp(abs, ".probe-*")
	if err != nil {
		return nil, fmt.Errorf("%w: %s is not writable: %v", ErrStoreUnavailable, abs, err)
	}
	name := probe.Name()
	_ = probe.Close()
	if err := os.Remove(name); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	return &Store{dir: abs}, nil
}

// Dir returns the absolute store directory
func (s *Store) Dir() string {
	return s.dir
}

// AllocateID returns a fresh random identifier
func (s *Store) AllocateID() string {
	return uuid.NewString()
}

// ValidID reports whether id can address a file in the store
func ValidID(id string) bool {
	return validID.MatchString(id)
}

// Path returns the path of id with the given extension
func (s *Store) Path(id, ext string) string {
	ext = strings.TrimPrefix(ext, ".")
	if ext == "" {
		return filepath.Join(s.dir, id)
	}
	return filepath.Join(s.dir, id+"."+ext)
}

// OutputTemplate returns the output path template handed to the extraction
// engine for id
func (s *Store) OutputTemplate(id string) string {
	return filepath.Join(s.dir, id+"."+OutputTemplateExt)
}

// Resolve finds the file stored for id. The exact "<id>.<extHint>" path is
// tried first; otherwise the directory is scanned for final "<id>.*" files
// and the most recently written one is returned. Two candidates sharing the
// newest modification time yield ErrAmbiguous. Partial and pre-merge files
// never resolve, even when asked for by their exact extension.
func (s *Store) Resolve(id, extHint string) (string, error) {
	if !ValidID(id) {
		return "", fmt.Errorf("%w: invalid id", ErrNotFound)
	}

	if extHint = strings.TrimPrefix(extHint, "."); extHint != "" {
		if platform.IsIntermediateFile(id+"."+extHint, id) {
			return "", fmt.Errorf("%w: %s.%s is not a final file", ErrNotFound, id, extHint)
		}
		exact := s.Path(id, extHint)
		if info, err := os.Stat(exact); err == nil && info.Mode().IsRegular() {
			return exact, nil
		}
	}

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return "", fmt.Errorf("read store: %w", err)
	}

	prefix := id + "."
	var (
		best      string
		bestTime  time.Time
		ambiguous bool
	)
	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasPrefix(name, prefix) || platform.IsIntermediateFile(name, id) {
			continue
		}
		info, err := entry.Info()
		if err != nil || !info.Mode().IsRegular() {
			// removed since ReadDir, or not a file
			continue
		}
		switch mod := info.ModTime(); {
		case best == "" || mod.After(bestTime):
			best, bestTime, ambiguous = filepath.Join(s.dir, name), mod, false
		case mod.Equal(bestTime):
			ambiguous = true
		}
	}

	if best == "" {
		return "", ErrNotFound
	}
	if ambiguous {
		return "", fmt.Errorf("%w: %s", ErrAmbiguous, id)
	}
	return best, nil
}

// List lazily enumerates regular files in the store. Files that vanish while
// the listing runs are skipped. A file that cannot be stat'ed is yielded with
// an ErrUnreadableEntry error and the listing goes on; a directory read
// failure is yielded once and ends the sequence.
func (s *Store) List(ctx context.Context) iter.Seq2[Entry, error] {
	return func(yield func(Entry, error) bool) {
		dir, err := os.Open(s.dir)
		if err != nil {
			yield(Entry{}, fmt.Errorf("open store: %w", err))
			return
		}
		defer dir.Close()

		for {
			if err := ctx.Err(); err != nil {
				yield(Entry{}, err)
				return
			}

			batch, err := dir.ReadDir(listBatchSize)
			for _, de := range batch {
				info, statErr := de.Info()
				if statErr != nil {
					if errors.Is(statErr, fs.ErrNotExist) {
						continue
					}
					bad := Entry{Name: de.Name(), Path: filepath.Join(s.dir, de.Name())}
					if !yield(bad, fmt.Errorf("%w: stat %s: %w", ErrUnreadableEntry, de.Name(), statErr)) {
						return
					}
					continue
				}
				if !info.Mode().IsRegular() {
					continue
				}
				entry := Entry{
					Name:    de.Name(),
					Path:    filepath.Join(s.dir, de.Name()),
					ModTime: info.ModTime(),
					Size:    info.Size(),
				}
				if !yield(entry, nil) {
					return
				}
			}

			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				yield(Entry{}, fmt.Errorf("read store: %w", err))
				return
			}
		}
	}
}

// Delete removes the file at path. Deleting a file that is already gone is
// not an error; removed reports whether this call removed it.
func (s *Store) Delete(path string) (removed bool, err error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return false, err
	}
	if filepath.Dir(abs) != s.dir {
		return false, fmt.Errorf("%w: %s", ErrOutsideStore, path)
	}

	if err := os.Remove(abs); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Discard removes every file stored under id, final or intermediate, and
// returns how many were removed. Used after a failed download.
func (s *Store) Discard(id string) (int, error) {
	if !ValidID(id) {
		return 0, fmt.Errorf("%w: invalid id", ErrNotFound)
	}
	matches, err := filepath.Glob(filepath.Join(s.dir, id+".*"))
	if err != nil {
		return 0, err
	}

	removed := 0
	var errs []error
	for _, path := range matches {
		ok, err := s.Delete(path)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if ok {
			removed++
		}
	}
	return removed, errors.Join(errs...)
}
