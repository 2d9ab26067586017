package dbpool

import (
	"database/sql"
	"fmt"
)

// openDB2 opens an IBM DB2 connection. The DSN uses DB2's keyword form:
// DATABASE=...;HOSTNAME=...;PORT=...;PROTOCOL=TCPIP;UID=...;PWD=...;
//
// NOTE: The application must import the driver
// (_ "github.com/ibmdb/go_ibm_db") which registers as "go_ibm_db".
func (m *DBManager) openDB2(opts OpenOptions) (*sql.DB, error) {
	db, err := sql.Open("go_ibm_db", opts.Path)
	if err != nil {
		return nil, fmt.Errorf("dbpool: failed to open DB2: %w", err)
	}

	configurePool(db)

	if err := db.Ping(); err != nil {
		db.Close()
		m.logger(fmt.Sprintf("[dbpool] DB2 ping failed: %v", err))
		return nil, fmt.Errorf("dbpool: failed to connect to DB2: %w", err)
	}

	return db, nil
}
