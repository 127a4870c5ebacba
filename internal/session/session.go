// Package session persists saved recognition results ("sessions") and lists
// them newest first.
package session

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"ocrd/pkg/types"
)

// TimestampLayout is the wire format of Session.Timestamp. It sorts
// lexicographically in chronological order.
const TimestampLayout = "2006-01-02 15:04:05"

// DefaultName is used when a save request carries no name.
const DefaultName = "Untitled"

// ErrNotFound is returned by Delete for an unknown id.
var ErrNotFound = errors.New("session not found")

// ErrInvalidID is returned for ids that reduce to nothing after sanitizing.
var ErrInvalidID = errors.New("invalid session id")

// Store is a session backend.
type Store interface {
	// Save creates or overwrites the session with s.ID.
	Save(ctx context.Context, s types.Session) error
	// List returns all sessions sorted by timestamp, newest first.
	List(ctx context.Context) ([]types.Session, error)
	// Delete removes a session; ErrNotFound if it does not exist.
	Delete(ctx context.Context, id string) error
	Close() error
}

var zlog = zerolog.Nop()

// SetLogger installs a structured logger used by the stores.
func SetLogger(l zerolog.Logger) { zlog = l }

// SanitizeID strips any directory component from id so it can be used as a
// file or key name.
func SanitizeID(id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", ErrInvalidID
	}
	base := filepath.Base(filepath.ToSlash(id))
	if i := strings.LastIndexAny(base, `/\`); i >= 0 {
		base = base[i+1:]
	}
	if base == "" || base == "." || base == ".." || base == "/" {
		return "", ErrInvalidID
	}
	return base, nil
}

// NewID returns a fresh session id.
func NewID() string { return uuid.New().String() }

// FromRequest builds the session to store for a save request at time now.
// A missing id gets a fresh one and a missing name becomes DefaultName.
func FromRequest(req types.SaveRequest, now time.Time) (types.Session, error) {
	id := NewID()
	if strings.TrimSpace(req.ID) != "" {
		safe, err := SanitizeID(req.ID)
		if err != nil {
			return types.Session{}, err
		}
		id = safe
	}
	name := req.Name
	if strings.TrimSpace(name) == "" {
		name = DefaultName
	}
	return types.Session{
		ID:        id,
		Timestamp: now.Format(TimestampLayout),
		Name:      name,
		Content:   req.Content,
	}, nil
}

func sortNewestFirst(s []types.Session) {
	sort.SliceStable(s, func(i, j int) bool { return s[i].Timestamp > s[j].Timestamp })
}

// Options selects and configures a Store.
type Options struct {
	// Driver is one of "file" (default), "redis", "mysql".
	Driver    string
	DataDir   string
	RedisAddr string
	RedisDB   int
	RedisKey  string
	MySQLDSN  string
}

// Open returns the Store for opts.Driver.
func Open(ctx context.Context, opts Options) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(opts.Driver)) {
	case "", "file":
		return NewFileStore(opts.DataDir)
	case "redis":
		return NewRedisStore(ctx, opts.RedisAddr, opts.RedisDB, opts.RedisKey)
	case "mysql":
		return NewMySQLStore(ctx, opts.MySQLDSN)
	default:
		return nil, fmt.Errorf("unknown session driver %q", opts.Driver)
	}
}
