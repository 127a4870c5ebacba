// Package uploads stores images received by the /ocr endpoint.
package uploads

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"ocrd/internal/common/fsutil"
)

// Store writes uploads as <uuid>.<ext> under a directory.
type Store struct {
	dir string
}

// Upload is one stored image.
type Upload struct {
	ID       string
	Path     string // absolute
	Filename string // as sent by the client
	Size     int64
}

// New creates dir if needed.
func New(dir string) (*Store, error) {
	if strings.TrimSpace(dir) == "" {
		dir = "uploads"
	}
	abs, err := fsutil.EnsureDir(dir)
	if err != nil {
		return nil, fmt.Errorf("upload dir: %w", err)
	}
	return &Store{dir: abs}, nil
}

// Dir returns the absolute upload directory.
func (s *Store) Dir() string { return s.dir }

// Save copies r to a new file named after a fresh id and the extension of
// filename. At most limit bytes are accepted when limit > 0.
func (s *Store) Save(filename string, r io.Reader, limit int64) (Upload, error) {
	id := uuid.New().String()
	p := filepath.Join(s.dir, id+Ext(filename))
	f, err := os.OpenFile(p, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return Upload{}, fmt.Errorf("create upload: %w", err)
	}
	src := r
	if limit > 0 {
		src = io.LimitReader(r, limit+1)
	}
	n, err := io.Copy(f, src)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err == nil && limit > 0 && n > limit {
		err = fmt.Errorf("upload exceeds %d bytes", limit)
	}
	if err != nil {
		os.Remove(p)
		return Upload{}, fmt.Errorf("write upload: %w", err)
	}
	return Upload{ID: id, Path: p, Filename: filename, Size: n}, nil
}

// Remove deletes a stored upload; a missing file is not an error.
func (s *Store) Remove(u Upload) error {
	if err := os.Remove(u.Path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Ext returns the lower-cased extension of the client filename including the
// dot, or "" when it has none or it is not a plain extension.
func Ext(filename string) string {
	ext := strings.ToLower(filepath.Ext(filepath.Base(filename)))
	if len(ext) < 2 || len(ext) > 8 {
		return ""
	}
	for _, r := range ext[1:] {
		if !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9') {
			return ""
		}
	}
	return ext
}
