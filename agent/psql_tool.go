package agent

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"

	"aiopschat/config"
	"aiopschat/dbpool"
)

const (
	psqlQueryTimeout   = 30 * time.Second
	psqlMaxDisplayRows = 100
)

// PSQLTool executes SQL against a PostgreSQL database. Read results are
// previewed as a column-aligned table.
type PSQLTool struct {
	cfg  config.PSQLConfig
	pool *dbpool.DBManager
}

// NewPSQLTool creates the PostgreSQL query tool.
func NewPSQLTool(cfg config.PSQLConfig, pool *dbpool.DBManager) *PSQLTool {
	return &PSQLTool{cfg: cfg, pool: pool}
}

type psqlInput struct {
	Query    string `json:"query"`
	Database string `json:"database"`
}

// Kind identifies the tool variant.
func (t *PSQLTool) Kind() ToolKind { return KindPSQL }

// Name returns the tool name the model calls.
func (t *PSQLTool) Name() string { return KindPSQL.String() }

func (t *PSQLTool) Info(ctx context.Context) (*schema.ToolInfo, error) {
	return &schema.ToolInfo{
		Name: t.Name(),
		Desc: "A tool for executing PostgreSQL queries.\n" +
			"Use this tool to query databases, retrieve data, insert records, update data, or delete records.\n" +
			"IMPORTANT: Always use parameterized queries to prevent SQL injection.",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"query": {
				Type:     schema.String,
				Desc:     "SQL query to execute. Can be SELECT, INSERT, UPDATE, DELETE, etc.",
				Required: true,
			},
			"database": {
				Type: schema.String,
				Desc: "Database name to connect to (default: postgres)",
			},
		}),
	}, nil
}

// InvokableRun satisfies the eino tool contract.
func (t *PSQLTool) InvokableRun(ctx context.Context, input string, opts ...tool.Option) (string, error) {
	out, err := t.Run(ctx, input)
	if err != nil {
		return "", err
	}
	return out.ResultText(), nil
}

// Run executes one query on a connection acquired for this call only.
func (t *PSQLTool) Run(ctx context.Context, argumentsJSON string) (StepOutput, error) {
	var in psqlInput
	if err := json.Unmarshal([]byte(argumentsJSON), &in); err != nil {
		return nil, fmt.Errorf("invalid input: %v", err)
	}

	if !t.cfg.Configured() {
		return nil, fmt.Errorf("PostgreSQL credentials not configured. " +
			"Please provide PSQL_HOST, PSQL_USERNAME, and PSQL_PASSWORD environment variables.")
	}

	database := in.Database
	if database == "" {
		database = "postgres"
	}

	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable connect_timeout=30",
		t.cfg.Host, t.cfg.Port, t.cfg.Username, t.cfg.Password, database)

	db, err := t.pool.Open(dbpool.OpenOptions{Engine: dbpool.EnginePostgres, Path: dsn})
	if err != nil {
		return nil, fmt.Errorf("PostgreSQL error: %v", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(ctx, psqlQueryTimeout)
	defer cancel()

	query := strings.TrimSpace(in.Query)
	if isPSQLRead(query) {
		return t.runSelect(ctx, db, query)
	}
	return t.runExec(ctx, db, query)
}

// isPSQLRead reports whether the statement only reads data. PostgreSQL
// also exposes metadata through SHOW/DESCRIBE/EXPLAIN.
func isPSQLRead(query string) bool {
	upper := strings.ToUpper(strings.TrimSpace(query))
	for _, prefix := range []string{"SELECT", "SHOW", "DESCRIBE", "EXPLAIN"} {
		if strings.HasPrefix(upper, prefix) {
			return true
		}
	}
	return false
}

func (t *PSQLTool) runSelect(ctx context.Context, db *sql.DB, query string) (StepOutput, error) {
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("PostgreSQL error: %v", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to get columns: %v", err)
	}

	var records [][]string
	for rows.Next() {
		values := make([]interface{}, len(cols))
		pointers := make([]interface{}, len(cols))
		for i := range values {
			pointers[i] = &values[i]
		}
		if err := rows.Scan(pointers...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %v", err)
		}

		record := make([]string, len(cols))
		for i, v := range values {
			record[i] = formatSQLValue(v)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("PostgreSQL error: %v", err)
	}

	if len(records) == 0 {
		return &SQLOutput{Result: "Query executed successfully. No rows returned."}, nil
	}

	return &SQLOutput{Result: formatAlignedTable(cols, records, psqlMaxDisplayRows)}, nil
}

func (t *PSQLTool) runExec(ctx context.Context, db *sql.DB, query string) (StepOutput, error) {
	result, err := db.ExecContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("PostgreSQL error: %v", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return &SQLOutput{Result: "Query executed successfully."}, nil
	}
	return &SQLOutput{
		Result: fmt.Sprintf("Query executed successfully. %d %s affected.", affected, plural(int(affected), "row", "rows")),
	}, nil
}

// formatAlignedTable renders records as a padded text table with a
// separator line, capped at maxRows display rows plus a count summary.
func formatAlignedTable(cols []string, records [][]string, maxRows int) string {
	widths := make([]int, len(cols))
	for i, col := range cols {
		widths[i] = len(col)
	}
	for _, record := range records {
		for i, val := range record {
			if len(val) > widths[i] {
				widths[i] = len(val)
			}
		}
	}

	pad := func(s string, w int) string {
		return s + strings.Repeat(" ", w-len(s))
	}

	var lines []string

	headerCells := make([]string, len(cols))
	sepCells := make([]string, len(cols))
	for i, col := range cols {
		headerCells[i] = pad(col, widths[i])
		sepCells[i] = strings.Repeat("-", widths[i])
	}
	lines = append(lines, strings.Join(headerCells, " | "))
	lines = append(lines, strings.Join(sepCells, "-+-"))

	display := records
	if len(display) > maxRows {
		display = display[:maxRows]
	}
	for _, record := range display {
		cells := make([]string, len(record))
		for i, val := range record {
			cells[i] = pad(val, widths[i])
		}
		lines = append(lines, strings.Join(cells, " | "))
	}

	total := len(records)
	if total > maxRows {
		lines = append(lines, fmt.Sprintf("\n... showing %d of %d rows", maxRows, total))
	} else {
		lines = append(lines, fmt.Sprintf("\nTotal: %d %s", total, plural(total, "row", "rows")))
	}

	return strings.Join(lines, "\n")
}
