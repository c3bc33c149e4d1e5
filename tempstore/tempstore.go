// Package tempstore manages the short-lived files of in-flight operations.
//
// A Store owns one directory. Files are named with a random UUID followed by
// a caller-supplied suffix, so concurrent operations never collide and need
// no locking. Files are released explicitly; a Janitor removes whatever a
// crashed or abandoned operation left behind.
package tempstore

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wudi/pdfmaster/observability"
	"github.com/wudi/pdfmaster/pdferr"
)

// DefaultDirName is the directory created under os.TempDir by Default.
const DefaultDirName = "pdf-master-pro"

type Store struct {
	dir    string
	newID  func() string
	logger observability.Logger

	mu   sync.Mutex
	live map[string]bool
}

type Option func(*Store)

func WithLogger(l observability.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithIDFunc replaces the UUID generator used for file names.
func WithIDFunc(fn func() string) Option {
	return func(s *Store) {
		if fn != nil {
			s.newID = fn
		}
	}
}

// New returns a store rooted at dir, creating it if needed.
func New(dir string, opts ...Option) (*Store, error) {
	if dir == "" {
		dir = filepath.Join(os.TempDir(), DefaultDirName)
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, pdferr.IO("create temp dir", err)
	}
	s := &Store{
		dir:    dir,
		newID:  uuid.NewString,
		logger: observability.NopLogger{},
		live:   make(map[string]bool),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *Store) Dir() string { return s.dir }

// Create makes a new empty file whose name ends in suffix.
func (s *Store) Create(suffix string) (*File, error) {
	path := filepath.Join(s.dir, s.newID()+safeSuffix(suffix))
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return nil, pdferr.IO("create temp file", err)
	}
	s.mu.Lock()
	s.live[path] = true
	s.mu.Unlock()
	return &File{File: f, store: s, path: path}, nil
}

// Save copies r into a new file named after the original file name and
// rewinds it for reading.
func (s *Store) Save(name string, r io.Reader) (*File, error) {
	f, err := s.Create("_" + name)
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Release()
		return nil, pdferr.IO("save "+name, err)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		f.Release()
		return nil, pdferr.IO("save "+name, err)
	}
	return f, nil
}

// Count returns the number of entries in the store's directory.
func (s *Store) Count() (int, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, pdferr.IO("list temp dir", err)
	}
	return len(entries), nil
}

// Sweep removes entries last modified before now-idle that are not held by a
// live File. It returns the number of entries removed.
func (s *Store) Sweep(idle time.Duration, now time.Time) (int, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, pdferr.IO("sweep temp dir", err)
	}
	removed := 0
	var errs []error
	for _, entry := range entries {
		path := filepath.Join(s.dir, entry.Name())
		if s.inUse(path) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				errs = append(errs, err)
			}
			continue
		}
		if now.Sub(info.ModTime()) <= idle {
			continue
		}
		if err := os.RemoveAll(path); err != nil {
			errs = append(errs, err)
			continue
		}
		removed++
	}
	if len(errs) > 0 {
		return removed, pdferr.IO("sweep temp dir", errors.Join(errs...))
	}
	return removed, nil
}

func (s *Store) inUse(path string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.live[path]
}

func (s *Store) forget(path string) {
	s.mu.Lock()
	delete(s.live, path)
	s.mu.Unlock()
}

// File is an open temporary file. Release closes and removes it.
type File struct {
	*os.File
	store *Store
	path  string
	once  sync.Once
	err   error
}

func (f *File) Path() string { return f.path }

// Rewind seeks to the start of the file.
func (f *File) Rewind() error {
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return pdferr.IO("rewind temp file", err)
	}
	return nil
}

// Release closes and deletes the file. It is safe to call more than once.
func (f *File) Release() error {
	f.once.Do(func() {
		closeErr := f.File.Close()
		if closeErr != nil && errors.Is(closeErr, os.ErrClosed) {
			closeErr = nil
		}
		rmErr := os.Remove(f.path)
		if errors.Is(rmErr, os.ErrNotExist) {
			rmErr = nil
		}
		f.store.forget(f.path)
		if err := errors.Join(closeErr, rmErr); err != nil {
			f.err = pdferr.IO("release temp file", err)
			f.store.logger.Warn("temp file release failed",
				observability.String("path", f.path), observability.Error("error", err))
		}
	})
	return f.err
}

// Scope releases every file it tracks when Release is called, unless
// ownership was handed over with Keep.
type Scope struct {
	mu    sync.Mutex
	files []*File
}

// Track adds f to the scope and returns it.
func (sc *Scope) Track(f *File) *File {
	sc.mu.Lock()
	sc.files = append(sc.files, f)
	sc.mu.Unlock()
	return f
}

// Keep removes f from the scope so it survives Release.
func (sc *Scope) Keep(f *File) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	for i, tracked := range sc.files {
		if tracked == f {
			sc.files = append(sc.files[:i], sc.files[i+1:]...)
			return
		}
	}
}

// Release releases all tracked files, returning the joined errors.
func (sc *Scope) Release() error {
	sc.mu.Lock()
	files := sc.files
	sc.files = nil
	sc.mu.Unlock()
	var errs []error
	for _, f := range files {
		if err := f.Release(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// safeSuffix keeps the base name of an uploaded file and replaces characters
// that are not portable in file names.
func safeSuffix(s string) string {
	if s == "" {
		return ""
	}
	prefix := ""
	if strings.HasPrefix(s, "_") {
		prefix, s = "_", s[1:]
	}
	s = filepath.Base(strings.ReplaceAll(s, "\\", "/"))
	if s == "." || s == "/" {
		s = ""
	}
	s = strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|', 0:
			return '_'
		}
		return r
	}, s)
	if len(s) > 128 {
		s = s[len(s)-128:]
	}
	return prefix + s
}
