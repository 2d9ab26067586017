package agent

import (
	"context"
	"database/sql"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"

	"aiopschat/config"
	"aiopschat/dbpool"
)

const (
	db2QueryTimeout    = 30 * time.Second
	db2MaxDisplayRows  = 20
	db2ToolDescription = `A tool for executing IBM DB2 queries on the AIOps REPORTER database.

This tool connects to the Cloud Pak for AIOps database (REPORTER) with schema DB2INST1.

Main tables available:
- DB2INST1.ALERTS_REPORTER_STATUS: Current state of all alerts (severity, state, owner, team, etc.)
- DB2INST1.INCIDENTS_REPORTER_STATUS: Current state of all incidents (priority, state, owner, team, etc.)
- DB2INST1.ALERTS_AUDIT_SEVERITY: Historical severity changes for alerts
- DB2INST1.ALERTS_SEVERITY_TYPES: Lookup table for severity codes (0-6)

Use this tool to:
- Query alert data (active alerts, critical alerts, unacknowledged alerts, etc.)
- Query incident data (open incidents, incidents by priority, etc.)
- Analyze historical severity changes
- Get counts and distributions by severity, team, owner, etc.

IMPORTANT:
- Always prefix table names with DB2INST1 schema (e.g., DB2INST1.ALERTS_REPORTER_STATUS)
- Use FETCH FIRST N ROWS ONLY to limit results
- Severity codes: 0=Clear, 1=Indeterminate, 2=Information, 3=Warning, 4=Minor, 5=Major, 6=Critical
- State codes: 0=active/open, 1=closed/resolved`
)

// DB2Tool executes SQL against the warehouse (IBM DB2) database. Read
// results are previewed tab-separated and persisted to a CSV the Python
// tool can consume as an input file.
type DB2Tool struct {
	cfg       config.DB2Config
	pool      *dbpool.DBManager
	outputDir string // CSVs land in <outputDir>/db2/
}

// NewDB2Tool creates the warehouse query tool. outputDir is where result
// CSVs are written; empty disables persistence.
func NewDB2Tool(cfg config.DB2Config, pool *dbpool.DBManager, outputDir string) *DB2Tool {
	return &DB2Tool{cfg: cfg, pool: pool, outputDir: outputDir}
}

type db2Input struct {
	Query    string `json:"query"`
	Database string `json:"database"`
}

// Kind identifies the tool variant.
func (t *DB2Tool) Kind() ToolKind { return KindDB2 }

// Name returns the tool name the model calls.
func (t *DB2Tool) Name() string { return KindDB2.String() }

func (t *DB2Tool) Info(ctx context.Context) (*schema.ToolInfo, error) {
	return &schema.ToolInfo{
		Name: t.Name(),
		Desc: db2ToolDescription,
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"query": {
				Type:     schema.String,
				Desc:     "SQL query to execute. Can be SELECT, INSERT, UPDATE, DELETE, etc.",
				Required: true,
			},
			"database": {
				Type: schema.String,
				Desc: "Database name to connect to (optional, defaults to the configured database)",
			},
		}),
	}, nil
}

// InvokableRun satisfies the eino tool contract.
func (t *DB2Tool) InvokableRun(ctx context.Context, input string, opts ...tool.Option) (string, error) {
	out, err := t.Run(ctx, input)
	if err != nil {
		return "", err
	}
	return out.ResultText(), nil
}

// Run executes one query on a connection acquired for this call only.
func (t *DB2Tool) Run(ctx context.Context, argumentsJSON string) (StepOutput, error) {
	var in db2Input
	if err := json.Unmarshal([]byte(argumentsJSON), &in); err != nil {
		return nil, fmt.Errorf("invalid input: %v", err)
	}

	database := in.Database
	if database == "" {
		database = t.cfg.Database
	}

	// Missing credentials fail fast, before any connection attempt.
	if t.cfg.Host == "" || database == "" || t.cfg.Username == "" || t.cfg.Password == "" {
		return nil, fmt.Errorf("DB2 credentials not configured. " +
			"Please provide DB2_HOST, DB2_DATABASE, DB2_USERNAME, and DB2_PASSWORD environment variables.")
	}

	connStr := fmt.Sprintf("DATABASE=%s;HOSTNAME=%s;PORT=%d;PROTOCOL=TCPIP;UID=%s;PWD=%s;",
		database, t.cfg.Host, t.cfg.Port, t.cfg.Username, t.cfg.Password)

	db, err := t.pool.Open(dbpool.OpenOptions{Engine: dbpool.EngineDB2, Path: connStr})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to DB2: %v", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(ctx, db2QueryTimeout)
	defer cancel()

	query := strings.TrimSpace(in.Query)
	if isDB2Read(query) {
		return t.runSelect(ctx, db, query)
	}
	return t.runExec(ctx, db, query)
}

// isDB2Read reports whether the statement only reads data.
func isDB2Read(query string) bool {
	upper := strings.ToUpper(strings.TrimSpace(query))
	return strings.HasPrefix(upper, "SELECT") ||
		strings.HasPrefix(upper, "WITH") ||
		strings.HasPrefix(upper, "VALUES")
}

func (t *DB2Tool) runSelect(ctx context.Context, db *sql.DB, query string) (StepOutput, error) {
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("DB2 query execution error: %v", err)
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
			return nil, fmt.Errorf("%s", db2FetchRemediation(err))
		}

		record := make([]string, len(cols))
		for i, v := range values {
			record[i] = formatSQLValue(v)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s", db2FetchRemediation(err))
	}

	if len(records) == 0 {
		return &SQLOutput{Result: "Query executed successfully. No rows returned."}, nil
	}

	var lines []string
	lines = append(lines, strings.Join(cols, "\t"))

	display := records
	if len(display) > db2MaxDisplayRows {
		display = display[:db2MaxDisplayRows]
	}
	for _, record := range display {
		lines = append(lines, strings.Join(record, "\t"))
	}

	total := len(records)
	if total > db2MaxDisplayRows {
		lines = append(lines, fmt.Sprintf("\n... showing %d of %d rows", db2MaxDisplayRows, total))
	} else {
		lines = append(lines, fmt.Sprintf("\nTotal: %d %s", total, plural(total, "row", "rows")))
	}

	if info := t.saveCSV(cols, records); info != nil {
		lines = append(lines, fmt.Sprintf("\nCSV file saved: %s (%d rows)", info.filename, info.rowCount))
		lines = append(lines, fmt.Sprintf("To analyze this data with Python, use: input_files=['%s']", info.workspacePath))
	}

	return &SQLOutput{Result: strings.Join(lines, "\n")}, nil
}

func (t *DB2Tool) runExec(ctx context.Context, db *sql.DB, query string) (StepOutput, error) {
	result, err := db.ExecContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("DB2 query execution error: %v", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		affected = 0
	}
	return &SQLOutput{
		Result: fmt.Sprintf("Query executed successfully. %d %s affected.", affected, plural(int(affected), "row", "rows")),
	}, nil
}

type csvFileInfo struct {
	filename      string
	workspacePath string
	rowCount      int
}

// saveCSV persists the full result set (not just the preview) to a
// timestamped CSV under <outputDir>/db2/, reachable by the interpreter
// as /workspace/<filename>. Returns nil when persistence is disabled or
// fails; the preview alone is still useful.
func (t *DB2Tool) saveCSV(cols []string, records [][]string) *csvFileInfo {
	if t.outputDir == "" {
		return nil
	}

	dir := filepath.Join(t.outputDir, "db2")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil
	}

	timestamp := time.Now().Format("20060102_150405.000")
	timestamp = strings.ReplaceAll(timestamp, ".", "_")
	filename := fmt.Sprintf("db2_results_%s.csv", timestamp)

	f, err := os.Create(filepath.Join(dir, filename))
	if err != nil {
		return nil
	}
	defer f.Close()

	w := csv.NewWriter(f)
	w.Write(cols)
	w.WriteAll(records)
	w.Flush()
	if w.Error() != nil {
		return nil
	}

	return &csvFileInfo{
		filename:      filename,
		workspacePath: "/workspace/" + filename,
		rowCount:      len(records),
	}
}

// db2FetchRemediation turns a row-fetch failure into actionable guidance
// for the agent. The SQL0420N / DECFLOAT signature gets its own path:
// that class of error nearly always means a text column was compared
// against a numeric literal.
func db2FetchRemediation(err error) string {
	detail := err.Error()
	if strings.Contains(detail, "SQL0420N") || strings.Contains(detail, "DECFLOAT") {
		return fmt.Sprintf("Fetch Failure: %s\n\n", detail) +
			"ERROR: SQL0420N (DECFLOAT conversion error)\n\n" +
			"COMMON CAUSES:\n" +
			"1. Using wrong data type in WHERE clause (e.g., state=0 when state is TEXT)\n" +
			"2. Selecting columns with invalid DECFLOAT values\n" +
			"3. Using SELECT * which includes problematic columns\n\n" +
			"SOLUTIONS TO TRY:\n" +
			"1. Check data types: Use state='open' not state=0 (state is TEXT, not numeric)\n" +
			"2. Avoid SELECT * - specify only the columns you need\n" +
			"3. Try removing 'summary' or other text columns if the query still fails\n" +
			"4. Simplify the query: Remove JOIN, subqueries, or complex expressions\n\n" +
			"EXAMPLE - For 'Count alerts by team':\n" +
			"   OK:  SELECT team, COUNT(*) FROM ALERTS_REPORTER_STATUS WHERE state='open' GROUP BY team\n" +
			"   BAD: SELECT team, COUNT(*) FROM ALERTS_REPORTER_STATUS WHERE state=0 GROUP BY team\n\n" +
			"SAFE COLUMNS:\n" +
			"   uuid, id, severity, state, owner, team, firstOccurrenceTime, lastOccurrenceTime\n\n" +
			"NO CSV FILE WAS CREATED! Do not try to use the Python tool until the DB2 tool succeeds.\n"
	}

	return fmt.Sprintf("Fetch Failure: %s\n\n", detail) +
		"COMMON CAUSES AND SOLUTIONS:\n" +
		"1. Try selecting specific columns instead of SELECT *\n" +
		"2. Try casting problematic columns:\n" +
		"   - Use CAST(column AS VARCHAR(100)) for numeric columns\n" +
		"   - Example: SELECT CAST(businessCriticality AS VARCHAR(20))\n" +
		"3. Query a different table or use a view (_VW tables may have cleaner data)\n"
}

// formatSQLValue renders a scanned column value for display.
func formatSQLValue(v interface{}) string {
	if v == nil {
		return "NULL"
	}
	switch val := v.(type) {
	case []byte:
		return string(val)
	case time.Time:
		return val.Format("2006-01-02 15:04:05")
	case json.Number:
		return val.String()
	default:
		return fmt.Sprintf("%v", val)
	}
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
