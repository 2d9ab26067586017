package agent

import "fmt"

// ToolKind identifies the closed set of tool variants a reasoning loop
// can invoke. Unknown kinds are carried as KindUnknown and rendered as
// no-ops so that newer loops with extra tools don't break older readers.
type ToolKind int

const (
	KindUnknown ToolKind = iota
	KindThink
	KindPython
	KindDB2
	KindPSQL
	KindKnowledge
	KindFinalAnswer
)

// String returns the canonical tool name for the kind.
func (k ToolKind) String() string {
	switch k {
	case KindThink:
		return "think"
	case KindPython:
		return "Python"
	case KindDB2:
		return "DB2"
	case KindPSQL:
		return "PSQL"
	case KindKnowledge:
		return "Wikipedia"
	case KindFinalAnswer:
		return "final_answer"
	default:
		return "unknown"
	}
}

// KindForTool maps a tool name reported by the reasoning loop to its kind.
func KindForTool(name string) ToolKind {
	switch name {
	case "think":
		return KindThink
	case "Python":
		return KindPython
	case "DB2":
		return KindDB2
	case "PSQL":
		return KindPSQL
	case "Wikipedia":
		return KindKnowledge
	case "final_answer":
		return KindFinalAnswer
	default:
		return KindUnknown
	}
}

// ToolRef describes the tool a step invoked.
type ToolRef struct {
	Kind ToolKind
	Name string
}

// StepError captures a tool-level failure. Tool errors are rendered as
// trajectory events; they never abort the run.
type StepError struct {
	Message string
}

func (e *StepError) Error() string {
	return e.Message
}

// StepOutput is the per-kind result of a successful tool invocation.
// Each tool kind has its own concrete variant; only the Python variant
// carries generated-file handles.
type StepOutput interface {
	ResultText() string
}

// ThinkOutput acknowledges a reasoning step.
type ThinkOutput struct {
	Result string
}

func (o *ThinkOutput) ResultText() string { return o.Result }

// PythonOutput is the result of a code-execution step. GeneratedFiles
// holds the content hashes of files the sandbox produced, in the order
// the backend reported them.
type PythonOutput struct {
	Result         string
	GeneratedFiles []string
}

func (o *PythonOutput) ResultText() string { return o.Result }

// SQLOutput is the result of a relational-query step (DB2 or PSQL).
type SQLOutput struct {
	Result string
}

func (o *SQLOutput) ResultText() string { return o.Result }

// KnowledgeOutput is the result of an encyclopedia lookup step.
type KnowledgeOutput struct {
	Result string
}

func (o *KnowledgeOutput) ResultText() string { return o.Result }

// Step is one agent action: a tool invocation with its resolved input,
// output and error. Steps are immutable once emitted by the loop; the
// orchestrator guarantees at-most-once rendering per step ID.
type Step struct {
	ID     string
	Tool   *ToolRef
	Input  map[string]interface{}
	Output StepOutput
	Err    *StepError
}

// InputString returns the named input field as a string, or the empty
// string when absent or of another type.
func (s *Step) InputString(key string) string {
	if s.Input == nil {
		return ""
	}
	v, ok := s.Input[key]
	if !ok || v == nil {
		return ""
	}
	if str, ok := v.(string); ok {
		return str
	}
	return fmt.Sprintf("%v", v)
}
