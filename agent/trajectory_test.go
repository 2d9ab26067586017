package agent

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func newTestContext() *RunContext {
	return NewRunContext("thread-1", nil)
}

func TestRenderThink(t *testing.T) {
	r := &TrajectoryRenderer{}
	step := &Step{
		ID:    "s1",
		Tool:  &ToolRef{Kind: KindThink, Name: "think"},
		Input: map[string]interface{}{"thoughts": "I should query the alerts table first."},
	}

	events := r.Render(newTestContext(), step)
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].Title != "Thinking" {
		t.Errorf("title = %q, want Thinking", events[0].Title)
	}
	if events[0].Content != "I should query the alerts table first." {
		t.Errorf("content = %q", events[0].Content)
	}
}

func TestRenderThinkEmptyThoughts(t *testing.T) {
	r := &TrajectoryRenderer{}
	step := &Step{ID: "s1", Tool: &ToolRef{Kind: KindThink, Name: "think"}}

	events := r.Render(newTestContext(), step)
	if len(events) != 1 || events[0].Content != "Thinking..." {
		t.Fatalf("expected placeholder content, got %+v", events)
	}
}

func TestRenderPythonErrorTruncatesCode(t *testing.T) {
	r := &TrajectoryRenderer{}
	longCode := strings.Repeat("x", 350)
	step := &Step{
		ID:    "s1",
		Tool:  &ToolRef{Kind: KindPython, Name: "Python"},
		Input: map[string]interface{}{"code": longCode},
		Err:   &StepError{Message: "execution failed"},
	}

	events := r.Render(newTestContext(), step)
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[1].Title != "PythonTool Error" {
		t.Errorf("title = %q", events[1].Title)
	}
	if !strings.Contains(events[1].Content, "**Error:** execution failed") {
		t.Errorf("missing error message: %q", events[1].Content)
	}
	wantPreview := longCode[:200] + "..."
	if !strings.Contains(events[1].Content, wantPreview) {
		t.Errorf("code preview not truncated to 200 chars: %q", events[1].Content)
	}
	if strings.Contains(events[1].Content, longCode) {
		t.Error("full code leaked into error event")
	}
}

func TestRenderPythonAccumulatesGeneratedFiles(t *testing.T) {
	r := &TrajectoryRenderer{}
	rc := newTestContext()
	step := &Step{
		ID:    "s1",
		Tool:  &ToolRef{Kind: KindPython, Name: "Python"},
		Input: map[string]interface{}{"code": "print('hi')"},
		Output: &PythonOutput{
			Result:         "hi",
			GeneratedFiles: []string{"aaaa", "bbbb"},
		},
	}

	r.Render(rc, step)

	got := rc.GeneratedFiles()
	if len(got) != 2 || got[0] != "aaaa" || got[1] != "bbbb" {
		t.Errorf("generated files = %v", got)
	}
}

func TestRenderDB2(t *testing.T) {
	r := &TrajectoryRenderer{}
	step := &Step{
		ID:    "s1",
		Tool:  &ToolRef{Kind: KindDB2, Name: "DB2"},
		Input: map[string]interface{}{"query": "SELECT COUNT(*) FROM DB2INST1.ALERTS_REPORTER_STATUS"},
	}

	events := r.Render(newTestContext(), step)
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	want := "```sql\nSELECT COUNT(*) FROM DB2INST1.ALERTS_REPORTER_STATUS\n```"
	if events[0].Title != "DB2Tool" || events[0].Content != want {
		t.Errorf("event = %+v", events[0])
	}
}

func TestRenderDB2ErrorIsBareMessage(t *testing.T) {
	r := &TrajectoryRenderer{}
	step := &Step{
		ID:    "s1",
		Tool:  &ToolRef{Kind: KindDB2, Name: "DB2"},
		Input: map[string]interface{}{"query": "SELECT 1"},
		Err:   &StepError{Message: "SQL0204N  \"FOO\" is an undefined name."},
	}

	events := r.Render(newTestContext(), step)
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[1].Title != "DB2Tool Error" {
		t.Errorf("title = %q", events[1].Title)
	}
	if events[1].Content != step.Err.Message {
		t.Errorf("content = %q, want bare error message", events[1].Content)
	}
}

func TestRenderPSQL(t *testing.T) {
	r := &TrajectoryRenderer{}
	step := &Step{
		ID:   "s1",
		Tool: &ToolRef{Kind: KindPSQL, Name: "PSQL"},
		Input: map[string]interface{}{
			"query":    "SELECT version()",
			"database": "metrics",
		},
	}

	events := r.Render(newTestContext(), step)
	want := "Database: metrics\n\nQuery:\n```sql\nSELECT version()\n```"
	if len(events) != 1 || events[0].Title != "PSQLTool" || events[0].Content != want {
		t.Errorf("event = %+v", events)
	}
}

func TestRenderPSQLDefaultsDatabase(t *testing.T) {
	r := &TrajectoryRenderer{}
	step := &Step{
		ID:    "s1",
		Tool:  &ToolRef{Kind: KindPSQL, Name: "PSQL"},
		Input: map[string]interface{}{"query": "SELECT 1"},
	}

	events := r.Render(newTestContext(), step)
	if len(events) != 1 || !strings.HasPrefix(events[0].Content, "Database: postgres\n") {
		t.Errorf("event = %+v", events)
	}
}

func TestRenderPSQLErrorTruncatesQuery(t *testing.T) {
	r := &TrajectoryRenderer{}
	longQuery := "SELECT " + strings.Repeat("c", 400)
	step := &Step{
		ID:    "s1",
		Tool:  &ToolRef{Kind: KindPSQL, Name: "PSQL"},
		Input: map[string]interface{}{"query": longQuery, "database": "postgres"},
		Err:   &StepError{Message: "syntax error"},
	}

	events := r.Render(newTestContext(), step)
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if !strings.Contains(events[1].Content, longQuery[:300]+"...") {
		t.Errorf("query preview not truncated to 300 chars")
	}
	if !strings.Contains(events[1].Content, "- database: postgres") {
		t.Errorf("tool input listing missing database field: %q", events[1].Content)
	}
}

func TestRenderPSQLOutputAlwaysEmitted(t *testing.T) {
	step := &Step{
		ID:     "s1",
		Tool:   &ToolRef{Kind: KindPSQL, Name: "PSQL"},
		Input:  map[string]interface{}{"query": "SELECT 1"},
		Output: &SQLOutput{Result: "a | b\n--+--\n1 | 2"},
	}

	events := (&TrajectoryRenderer{Verbose: false}).Render(newTestContext(), step)
	if len(events) != 2 {
		t.Fatalf("rendered %d events, want 2", len(events))
	}
	if events[1].Title != "PSQLTool Output" || !strings.HasPrefix(events[1].Content, "```\n") {
		t.Errorf("output event = %+v", events[1])
	}
}

func TestRenderPythonStdoutVerboseOnly(t *testing.T) {
	step := &Step{
		ID:     "s1",
		Tool:   &ToolRef{Kind: KindPython, Name: "Python"},
		Input:  map[string]interface{}{"code": "print(1)"},
		Output: &PythonOutput{Result: "1\n"},
	}

	quiet := (&TrajectoryRenderer{Verbose: false}).Render(newTestContext(), step)
	if len(quiet) != 1 {
		t.Errorf("non-verbose rendered %d events, want 1", len(quiet))
	}

	verbose := (&TrajectoryRenderer{Verbose: true}).Render(newTestContext(), step)
	if len(verbose) != 2 || verbose[1].Title != "PythonTool Output" {
		t.Errorf("verbose events = %+v", verbose)
	}
}

func TestTruncateKeepsRuneBoundaries(t *testing.T) {
	tests := []struct {
		name  string
		s     string
		limit int
		want  string
	}{
		{"short unchanged", "abc", 200, "abc"},
		{"ascii cut", strings.Repeat("x", 10), 4, "xxxx..."},
		{"multibyte mid-rune", "aéé", 2, "a..."}, // é is 2 bytes; byte 2 splits it
		{"multibyte on boundary", "aéé", 3, "aé..."},
	}
	for _, tt := range tests {
		got := truncate(tt.s, tt.limit)
		if got != tt.want {
			t.Errorf("%s: truncate(%q, %d) = %q, want %q", tt.name, tt.s, tt.limit, got, tt.want)
		}
		if !utf8.ValidString(got) {
			t.Errorf("%s: truncate produced invalid UTF-8: %q", tt.name, got)
		}
	}
}

func TestRenderErrorPreviewValidUTF8(t *testing.T) {
	r := &TrajectoryRenderer{}
	// 2-byte runes ensure the 200-byte cap falls inside a rune unless the
	// cut backs up to a boundary.
	code := "x" + strings.Repeat("é", 150)
	step := &Step{
		ID:    "s1",
		Tool:  &ToolRef{Kind: KindPython, Name: "Python"},
		Input: map[string]interface{}{"code": code},
		Err:   &StepError{Message: "boom"},
	}

	events := r.Render(newTestContext(), step)
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if !utf8.ValidString(events[1].Content) {
		t.Errorf("error event content is not valid UTF-8: %q", events[1].Content)
	}
}

func TestRenderSkipsUnknownAndFinalAnswer(t *testing.T) {
	r := &TrajectoryRenderer{}
	steps := []*Step{
		{ID: "s1", Tool: &ToolRef{Kind: KindFinalAnswer, Name: "final_answer"}},
		{ID: "s2", Tool: &ToolRef{Kind: KindUnknown, Name: "mystery"}},
		{ID: "s3"},
	}
	for _, step := range steps {
		if events := r.Render(newTestContext(), step); len(events) != 0 {
			t.Errorf("step %s rendered %d events, want 0", step.ID, len(events))
		}
	}
}
