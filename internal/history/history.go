// Package history provides SQLite-based persistence for chat messages.
// If the DB cannot be opened or its schema created, the store keeps
// messages in memory instead.
package history

import (
	"context"
	"database/sql"
	"sync"
	"time"

	_ "github.com/glebarez/go-sqlite"

	"github.com/comigor/mem0-azure-go/internal/logger"
)

const schema = `CREATE TABLE IF NOT EXISTS messages (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    session_id TEXT NOT NULL,
    role TEXT NOT NULL,
    content TEXT NOT NULL,
    created_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS messages_session ON messages(session_id, id);`

// Store keeps chat messages per session.
type Store struct {
	db *sql.DB

	mu     sync.Mutex
	mem    []Message
	nextID int64
}

// Open opens (or creates) the SQLite database at path. An empty path or any
// database failure yields a memory-only store.
func Open(path string) *Store {
	s := &Store{}
	if path == "" {
		return s
	}

	db, err := sql.Open("sqlite", "file:"+path+"?_pragma=busy_timeout(10000)")
	if err != nil {
		logger.L.Warn("sqlite open failed; using in-memory history", "error", err)
		return s
	}
	if _, err := db.Exec(schema); err != nil {
		logger.L.Warn("sqlite table creation failed; using in-memory history", "error", err)
		_ = db.Close()
		return s
	}
	logger.L.Info("sqlite history DB initialized", "path", path)
	s.db = db
	return s
}

// Persistent reports whether messages are written to SQLite.
func (s *Store) Persistent() bool {
	return s.db != nil
}

// Save stores msg. A zero CreatedAt is set to now.
func (s *Store) Save(ctx context.Context, msg Message) error {
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}

	if s.db != nil {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO messages (session_id, role, content, created_at) VALUES (?,?,?,?);`,
			msg.SessionID, msg.Role, msg.Content, msg.CreatedAt)
		return err
	}

	s.mu.Lock()
	s.nextID++
	msg.ID = s.nextID
	s.mem = append(s.mem, msg)
	s.mu.Unlock()
	return nil
}

// List returns all messages of a session in chronological order.
func (s *Store) List(ctx context.Context, sessionID string) ([]Message, error) {
	if s.db != nil {
		rows, err := s.db.QueryContext(ctx,
			`SELECT id, session_id, role, content, created_at FROM messages WHERE session_id = ? ORDER BY id ASC;`,
			sessionID)
		if err != nil {
			return nil, err
		}
		defer rows.Close()

		var out []Message
		for rows.Next() {
			var m Message
			if err := rows.Scan(&m.ID, &m.SessionID, &m.Role, &m.Content, &m.CreatedAt); err != nil {
				return nil, err
			}
			out = append(out, m)
		}
		return out, rows.Err()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Message
	for _, m := range s.mem {
		if m.SessionID == sessionID {
			out = append(out, m)
		}
	}
	return out, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}
