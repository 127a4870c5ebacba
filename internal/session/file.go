package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"ocrd/internal/common/fsutil"
	"ocrd/pkg/types"
)

const (
	filePrefix = "table_"
	fileSuffix = ".json"
)

// FileStore keeps one JSON document per session in a directory, named
// table_<id>.json.
type FileStore struct {
	dir string
}

// NewFileStore creates dir if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if strings.TrimSpace(dir) == "" {
		dir = "data"
	}
	abs, err := fsutil.EnsureDir(dir)
	if err != nil {
		return nil, fmt.Errorf("session dir: %w", err)
	}
	return &FileStore{dir: abs}, nil
}

// Dir returns the directory holding the session files.
func (s *FileStore) Dir() string { return s.dir }

func (s *FileStore) path(id string) (string, error) {
	safe, err := SanitizeID(id)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.dir, filePrefix+safe+fileSuffix), nil
}

// Save writes the session atomically (temp file + rename).
func (s *FileStore) Save(_ context.Context, sess types.Session) error {
	p, err := s.path(sess.ID)
	if err != nil {
		return err
	}
	b, err := json.MarshalIndent(sess, "", "  ")
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(s.dir, ".save-*")
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("save session: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("save session: %w", err)
	}
	if err := os.Rename(tmp.Name(), p); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// List reads every *.json document in the directory. Unreadable or malformed
// files are skipped.
func (s *FileStore) List(ctx context.Context) ([]types.Session, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []types.Session{}, nil
		}
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	out := make([]types.Session, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), fileSuffix) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		b, err := os.ReadFile(filepath.Join(s.dir, e.Name()))
		if err != nil {
			zlog.Warn().Err(err).Str("file", e.Name()).Msg("skip unreadable session")
			continue
		}
		var sess types.Session
		if err := json.Unmarshal(b, &sess); err != nil {
			zlog.Warn().Err(err).Str("file", e.Name()).Msg("skip malformed session")
			continue
		}
		out = append(out, sess)
	}
	sortNewestFirst(out)
	return out, nil
}

func (s *FileStore) Delete(_ context.Context, id string) error {
	p, err := s.path(id)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return ErrNotFound
		}
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func (s *FileStore) Close() error { return nil }
