// Package history persists conversation threads in a local SQLite
// database so runs can replay prior turns into the model context.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"aiopschat/agent"
	"aiopschat/dbpool"
)

// Migration represents a schema migration.
type Migration struct {
	Version     int
	Description string
	Up          string
}

func migrations() []Migration {
	return []Migration{
		{
			Version:     1,
			Description: "Create messages table",
			Up: `
				CREATE TABLE IF NOT EXISTS messages (
					id TEXT PRIMARY KEY,
					thread_id TEXT NOT NULL,
					role TEXT NOT NULL,
					content TEXT NOT NULL,
					created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
				);

				CREATE INDEX IF NOT EXISTS idx_messages_thread ON messages(thread_id, created_at);
			`,
		},
	}
}

// Store is a SQLite-backed conversation store.
type Store struct {
	db *sql.DB
}

// NewStore opens (creating if needed) the history database at dbPath and
// applies pending migrations.
func NewStore(pool *dbpool.DBManager, dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	db, err := pool.OpenWritable(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func migrate(db *sql.DB) error {
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);
	`); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	var current int
	if err := db.QueryRow(`SELECT COALESCE(MAX(version), 0) FROM schema_migrations`).Scan(&current); err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}

	for _, m := range migrations() {
		if m.Version <= current {
			continue
		}
		if _, err := db.Exec(m.Up); err != nil {
			return fmt.Errorf("migration %d (%s) failed: %w", m.Version, m.Description, err)
		}
		if _, err := db.Exec(`INSERT INTO schema_migrations (version) VALUES (?)`, m.Version); err != nil {
			return fmt.Errorf("failed to record migration %d: %w", m.Version, err)
		}
	}
	return nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// AppendMessage stores one message at the end of a thread.
func (s *Store) AppendMessage(ctx context.Context, threadID string, msg agent.Message) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (id, thread_id, role, content, created_at) VALUES (?, ?, ?, ?, ?)`,
		msg.ID, threadID, msg.Role, msg.Content, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to store message: %w", err)
	}
	return nil
}

// Messages returns the thread's messages in chronological order.
func (s *Store) Messages(ctx context.Context, threadID string) ([]agent.Message, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, role, content FROM messages WHERE thread_id = ? ORDER BY created_at, rowid`,
		threadID)
	if err != nil {
		return nil, fmt.Errorf("failed to load messages: %w", err)
	}
	defer rows.Close()

	var msgs []agent.Message
	for rows.Next() {
		var m agent.Message
		if err := rows.Scan(&m.ID, &m.Role, &m.Content); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

// Threads lists distinct thread IDs, most recently active first.
func (s *Store) Threads(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT thread_id FROM messages GROUP BY thread_id ORDER BY MAX(created_at) DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list threads: %w", err)
	}
	defer rows.Close()

	var threads []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan thread: %w", err)
		}
		threads = append(threads, id)
	}
	return threads, rows.Err()
}

// DeleteThread removes a thread and all of its messages.
func (s *Store) DeleteThread(ctx context.Context, threadID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM messages WHERE thread_id = ?`, threadID)
	if err != nil {
		return fmt.Errorf("failed to delete thread: %w", err)
	}
	return nil
}
