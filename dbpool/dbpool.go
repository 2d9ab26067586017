// Package dbpool provides a unified database connection manager that
// abstracts away engine-specific details (SQLite, PostgreSQL, DB2) and
// handles retry logic and connection pooling.
//
// All code that needs a *sql.DB should go through DBManager instead of
// calling sql.Open directly. This gives us a single place to:
//   - add retry/backoff for file-lock contention on the SQLite store
//   - enforce connection pool settings
//   - keep driver names out of the query tools
package dbpool

import (
	"database/sql"
	"fmt"
)

// Engine identifies the database engine to use.
type Engine string

const (
	EngineSQLite   Engine = "sqlite"
	EnginePostgres Engine = "postgres"
	EngineDB2      Engine = "db2"
)

// OpenOptions configures how a database connection is opened.
type OpenOptions struct {
	// Engine to use. Defaults to EngineSQLite if empty.
	Engine Engine
	// Path is the file path for SQLite. For PostgreSQL and DB2 this is
	// the DSN / connection string.
	Path string
	// MaxRetries overrides the default retry count (0 = use default).
	MaxRetries int
	// RetryBaseMs overrides the base retry interval in milliseconds (0 = use default).
	RetryBaseMs int
}

// Logger is a simple logging function signature.
type Logger func(string)

// DBManager is the central connection manager.
type DBManager struct {
	logger Logger
	engine Engine // default engine for the application
}

// New creates a new DBManager with the given default engine and logger.
func New(defaultEngine Engine, logger Logger) *DBManager {
	if logger == nil {
		logger = func(string) {}
	}
	return &DBManager{
		engine: defaultEngine,
		logger: logger,
	}
}

// Open opens a database connection with the given options. Remote
// engines (PostgreSQL, DB2) are acquired per query by the tools and
// released unconditionally after use.
func (m *DBManager) Open(opts OpenOptions) (*sql.DB, error) {
	eng := opts.Engine
	if eng == "" {
		eng = m.engine
	}

	switch eng {
	case EngineSQLite:
		return m.openSQLite(opts)
	case EnginePostgres:
		return m.openPostgres(opts)
	case EngineDB2:
		return m.openDB2(opts)
	default:
		return nil, fmt.Errorf("dbpool: unsupported engine %q", eng)
	}
}

// OpenWritable is a convenience wrapper for opening the default engine
// by path.
func (m *DBManager) OpenWritable(path string) (*sql.DB, error) {
	return m.Open(OpenOptions{Path: path})
}

// configurePool sets connection pool parameters that ensure file locks
// are released immediately on Close().
func configurePool(db *sql.DB) {
	db.SetMaxIdleConns(0)
	db.SetMaxOpenConns(1)
}

// retryParams returns (maxRetries, baseMs) from opts or defaults.
func retryParams(opts OpenOptions) (int, int) {
	maxRetries := opts.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 8
	}
	baseMs := opts.RetryBaseMs
	if baseMs <= 0 {
		baseMs = 400
	}
	return maxRetries, baseMs
}
