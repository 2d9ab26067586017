package dbpool

import (
	"database/sql"
	"fmt"
	"time"
)

// openSQLite opens a SQLite database with retry logic. SQLite uses WAL
// mode for better concurrency, but still needs retry for SQLITE_BUSY.
//
// NOTE: The application must import the driver
// (_ "modernc.org/sqlite") which registers as "sqlite".
func (m *DBManager) openSQLite(opts OpenOptions) (*sql.DB, error) {
	maxRetries, baseMs := retryParams(opts)

	connStr := opts.Path + "?_journal_mode=WAL&_busy_timeout=5000"

	var lastErr error
	for i := 0; i < maxRetries; i++ {
		db, err := sql.Open("sqlite", connStr)
		if err != nil {
			lastErr = err
			m.logger(fmt.Sprintf("[dbpool] SQLite open attempt %d/%d failed: %v", i+1, maxRetries, err))
			if maxRetries > 1 {
				time.Sleep(time.Duration(baseMs*(i+1)) * time.Millisecond)
			}
			continue
		}

		configurePool(db)

		if err := db.Ping(); err != nil {
			db.Close()
			lastErr = err
			m.logger(fmt.Sprintf("[dbpool] SQLite ping attempt %d/%d failed: %v", i+1, maxRetries, err))
			if maxRetries > 1 {
				time.Sleep(time.Duration(baseMs*(i+1)) * time.Millisecond)
			}
			continue
		}

		return db, nil
	}

	return nil, fmt.Errorf("dbpool: failed to open SQLite %q after %d retries: %w", opts.Path, maxRetries, lastErr)
}
