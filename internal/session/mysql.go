package session

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/go-sql-driver/mysql"

	"ocrd/pkg/types"
)

const (
	insertSessionSQL = "INSERT INTO ocr_session (id, saved_at, name, content) VALUES (?, ?, ?, ?) " +
		"ON DUPLICATE KEY UPDATE saved_at = VALUES(saved_at), name = VALUES(name), content = VALUES(content)"
	listSessionsSQL  = "SELECT id, saved_at, name, content FROM ocr_session ORDER BY saved_at DESC"
	deleteSessionSQL = "DELETE FROM ocr_session WHERE id = ?"
)

const createSessionsTable = `CREATE TABLE IF NOT EXISTS ocr_session (
	id VARCHAR(191) NOT NULL PRIMARY KEY,
	saved_at CHAR(19) NOT NULL,
	name VARCHAR(256) NOT NULL,
	content LONGTEXT NOT NULL,
	INDEX idx_saved_at (saved_at)
)`

// MySQLStore keeps sessions in a single table.
type MySQLStore struct {
	db *sql.DB
}

// NewMySQLStore opens dsn, pings it and creates the table if missing.
func NewMySQLStore(ctx context.Context, dsn string) (*MySQLStore, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("open mysql: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping mysql: %w", err)
	}
	s, err := newMySQLStore(ctx, db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func newMySQLStore(ctx context.Context, db *sql.DB) (*MySQLStore, error) {
	s := &MySQLStore{db: db}
	if err := s.migrate(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *MySQLStore) migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, createSessionsTable); err != nil {
		return fmt.Errorf("create session table: %w", err)
	}
	return nil
}

func (s *MySQLStore) Save(ctx context.Context, sess types.Session) error {
	id, err := SanitizeID(sess.ID)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, insertSessionSQL, id, sess.Timestamp, sess.Name, sess.Content)
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (s *MySQLStore) List(ctx context.Context) ([]types.Session, error) {
	rows, err := s.db.QueryContext(ctx, listSessionsSQL)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()
	out := []types.Session{}
	for rows.Next() {
		var sess types.Session
		if err := rows.Scan(&sess.ID, &sess.Timestamp, &sess.Name, &sess.Content); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		out = append(out, sess)
	}
	return out, rows.Err()
}

func (s *MySQLStore) Delete(ctx context.Context, id string) error {
	id, err := SanitizeID(id)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, deleteSessionSQL, id)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MySQLStore) Close() error { return s.db.Close() }
