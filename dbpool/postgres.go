package dbpool

import (
	"database/sql"
	"fmt"
)

// openPostgres opens a PostgreSQL connection. Query tools acquire a
// fresh connection per query, so no retry loop here; a failed ping is a
// tool-level error the agent can react to.
//
// NOTE: The application must import the driver (_ "github.com/lib/pq").
func (m *DBManager) openPostgres(opts OpenOptions) (*sql.DB, error) {
	db, err := sql.Open("postgres", opts.Path)
	if err != nil {
		return nil, fmt.Errorf("dbpool: failed to open PostgreSQL: %w", err)
	}

	configurePool(db)

	if err := db.Ping(); err != nil {
		db.Close()
		m.logger(fmt.Sprintf("[dbpool] PostgreSQL ping failed: %v", err))
		return nil, fmt.Errorf("dbpool: failed to connect to PostgreSQL: %w", err)
	}

	return db, nil
}
