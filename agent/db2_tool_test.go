package agent

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"aiopschat/config"
)

func TestIsDB2Read(t *testing.T) {
	tests := []struct {
		query string
		want  bool
	}{
		{"SELECT * FROM t", true},
		{"  select 1 from sysibm.sysdummy1", true},
		{"WITH x AS (SELECT 1) SELECT * FROM x", true},
		{"VALUES CURRENT TIMESTAMP", true},
		{"INSERT INTO t VALUES (1)", false},
		{"UPDATE t SET a=1", false},
		{"DELETE FROM t", false},
		{"DROP TABLE t", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := isDB2Read(tt.query); got != tt.want {
			t.Errorf("isDB2Read(%q) = %v, want %v", tt.query, got, tt.want)
		}
	}
}

func TestFormatSQLValue(t *testing.T) {
	ts := time.Date(2026, 8, 25, 10, 30, 0, 0, time.UTC)
	tests := []struct {
		value interface{}
		want  string
	}{
		{nil, "NULL"},
		{[]byte("hello"), "hello"},
		{ts, "2026-08-25 10:30:00"},
		{int64(42), "42"},
		{3.14, "3.14"},
	}
	for _, tt := range tests {
		if got := formatSQLValue(tt.value); got != tt.want {
			t.Errorf("formatSQLValue(%v) = %q, want %q", tt.value, got, tt.want)
		}
	}
}

func TestDB2FetchRemediationDecfloat(t *testing.T) {
	err := errors.New("SQL0420N Invalid character found in a character string argument of the function \"DECFLOAT\"")
	msg := db2FetchRemediation(err)

	if !strings.HasPrefix(msg, "Fetch Failure: ") {
		t.Errorf("missing failure prefix: %q", msg)
	}
	if !strings.Contains(msg, "state='open' not state=0") {
		t.Errorf("missing type-mismatch guidance: %q", msg)
	}
	if !strings.Contains(msg, "NO CSV FILE WAS CREATED!") {
		t.Errorf("missing CSV warning: %q", msg)
	}
}

func TestDB2FetchRemediationGeneric(t *testing.T) {
	msg := db2FetchRemediation(errors.New("connection reset"))

	if !strings.Contains(msg, "Fetch Failure: connection reset") {
		t.Errorf("missing error detail: %q", msg)
	}
	if strings.Contains(msg, "SQL0420N") {
		t.Errorf("generic failure should not mention DECFLOAT guidance: %q", msg)
	}
	if !strings.Contains(msg, "CAST(column AS VARCHAR(100))") {
		t.Errorf("missing cast guidance: %q", msg)
	}
}

func TestSaveCSVWritesUnderDB2Subdir(t *testing.T) {
	outputDir := t.TempDir()
	tool := NewDB2Tool(config.DB2Config{}, nil, outputDir)

	info := tool.saveCSV([]string{"id", "severity"}, [][]string{{"1", "6"}, {"2", "4"}})
	if info == nil {
		t.Fatal("saveCSV returned nil")
	}

	if !strings.HasPrefix(info.filename, "db2_results_") || !strings.HasSuffix(info.filename, ".csv") {
		t.Errorf("filename = %q", info.filename)
	}
	if info.workspacePath != "/workspace/"+info.filename {
		t.Errorf("workspacePath = %q", info.workspacePath)
	}
	if info.rowCount != 2 {
		t.Errorf("rowCount = %d, want 2", info.rowCount)
	}

	// The tool owns the single db2/ subdirectory under its output dir.
	content, err := os.ReadFile(filepath.Join(outputDir, "db2", info.filename))
	if err != nil {
		t.Fatalf("CSV not at <outputDir>/db2/<filename>: %v", err)
	}
	if string(content) != "id,severity\n1,6\n2,4\n" {
		t.Errorf("CSV content = %q", string(content))
	}
}

func TestSaveCSVDisabledWithoutOutputDir(t *testing.T) {
	tool := NewDB2Tool(config.DB2Config{}, nil, "")
	if info := tool.saveCSV([]string{"id"}, [][]string{{"1"}}); info != nil {
		t.Errorf("saveCSV with empty output dir = %+v, want nil", info)
	}
}

func TestPlural(t *testing.T) {
	if plural(1, "row", "rows") != "row" {
		t.Error("plural(1) != row")
	}
	if plural(0, "row", "rows") != "rows" || plural(2, "row", "rows") != "rows" {
		t.Error("plural(n != 1) != rows")
	}
}
