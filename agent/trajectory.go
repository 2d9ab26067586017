package agent

import (
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"
)

// TrajectoryEvent is one rendered (title, content) pair streamed to the
// caller while the run is in progress. It is distinct from the final
// answer message.
type TrajectoryEvent struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

const (
	codePreviewLimit      = 200
	queryPreviewLimit     = 300
	knowledgePreviewLimit = 500
)

// TrajectoryRenderer turns a Step into zero or more trajectory events.
// Rendering is side-effect-free except for one thing: generated-file
// handles found on successful code-execution steps are appended to the
// run's accumulator.
type TrajectoryRenderer struct {
	// Verbose re-emits successful Python stdout. PSQL tables are always
	// emitted; DB2 result previews never are, the data travels to Python
	// via CSV instead.
	Verbose bool
}

// Render dispatches on the step's tool kind. Steps without a tool and
// unrecognized tool kinds yield no events.
func (r *TrajectoryRenderer) Render(rc *RunContext, step *Step) []TrajectoryEvent {
	if step.Tool == nil {
		return nil
	}

	switch step.Tool.Kind {
	case KindThink:
		return r.renderThink(step)
	case KindPython:
		return r.renderPython(rc, step)
	case KindDB2:
		return r.renderDB2(step)
	case KindPSQL:
		return r.renderPSQL(step)
	case KindKnowledge:
		return r.renderKnowledge(step)
	default:
		// KindFinalAnswer is handled by the orchestrator; unknown kinds
		// are silently ignored.
		return nil
	}
}

func (r *TrajectoryRenderer) renderThink(step *Step) []TrajectoryEvent {
	thoughts := step.InputString("thoughts")
	if thoughts == "" {
		thoughts = "Thinking..."
	}
	return []TrajectoryEvent{{Title: "Thinking", Content: thoughts}}
}

func (r *TrajectoryRenderer) renderPython(rc *RunContext, step *Step) []TrajectoryEvent {
	content := step.InputString("code")
	if content == "" {
		content = "Executing Python code..."
	}
	events := []TrajectoryEvent{{Title: "PythonTool", Content: content}}

	if step.Err != nil {
		events = append(events, TrajectoryEvent{
			Title:   "PythonTool Error",
			Content: errorDetails(step, "code", codePreviewLimit),
		})
		return events
	}

	if out, ok := step.Output.(*PythonOutput); ok && out != nil {
		if r.Verbose && strings.TrimSpace(out.Result) != "" {
			events = append(events, TrajectoryEvent{
				Title:   "PythonTool Output",
				Content: out.Result,
			})
		}
		// The only renderer side effect: accumulate generated files for
		// final-answer resolution.
		rc.AddGeneratedFiles(out.GeneratedFiles)
	}
	return events
}

func (r *TrajectoryRenderer) renderDB2(step *Step) []TrajectoryEvent {
	query := step.InputString("query")
	content := "Executing SQL query on DB2..."
	if query != "" {
		content = fmt.Sprintf("```sql\n%s\n```", query)
	}
	events := []TrajectoryEvent{{Title: "DB2Tool", Content: content}}

	if step.Err != nil {
		events = append(events, TrajectoryEvent{
			Title:   "DB2Tool Error",
			Content: step.Err.Message,
		})
	}
	return events
}

func (r *TrajectoryRenderer) renderPSQL(step *Step) []TrajectoryEvent {
	query := step.InputString("query")
	database := step.InputString("database")
	if database == "" {
		database = "postgres"
	}

	content := "Executing SQL query..."
	if query != "" {
		content = fmt.Sprintf("Database: %s\n\nQuery:\n```sql\n%s\n```", database, query)
	}
	events := []TrajectoryEvent{{Title: "PSQLTool", Content: content}}

	if step.Err != nil {
		events = append(events, TrajectoryEvent{
			Title:   "PSQLTool Error",
			Content: errorDetails(step, "query", queryPreviewLimit),
		})
		return events
	}

	if out := step.Output; out != nil && strings.TrimSpace(out.ResultText()) != "" {
		events = append(events, TrajectoryEvent{
			Title:   "PSQLTool Output",
			Content: fmt.Sprintf("```\n%s\n```", out.ResultText()),
		})
	}
	return events
}

func (r *TrajectoryRenderer) renderKnowledge(step *Step) []TrajectoryEvent {
	query := step.InputString("query")
	content := "Looking up reference material..."
	if query != "" {
		content = query
	}
	events := []TrajectoryEvent{{Title: "WikipediaTool", Content: content}}

	if step.Err != nil {
		events = append(events, TrajectoryEvent{
			Title:   "WikipediaTool Error",
			Content: step.Err.Message,
		})
		return events
	}

	if out := step.Output; out != nil && strings.TrimSpace(out.ResultText()) != "" {
		events = append(events, TrajectoryEvent{
			Title:   "WikipediaTool Output",
			Content: truncate(out.ResultText(), knowledgePreviewLimit),
		})
	}
	return events
}

// errorDetails formats a tool failure: the error message followed by a
// listing of every input key/value pair, with the named long field
// truncated so a runaway code block can't flood the event stream.
func errorDetails(step *Step, longKey string, limit int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "**Error:** %s\n\n", step.Err.Message)
	b.WriteString("**Tool input:**\n")

	keys := make([]string, 0, len(step.Input))
	for k := range step.Input {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		value := step.InputString(k)
		if k == longKey {
			value = truncate(value, limit)
		}
		fmt.Fprintf(&b, "- %s: %s\n", k, value)
	}
	return b.String()
}

// truncate caps s at limit bytes, backing up to a rune boundary so a
// multi-byte character is never split.
func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
