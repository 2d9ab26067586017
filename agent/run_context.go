package agent

// Message is one entry of the conversation history.
type Message struct {
	ID      string `json:"id"`
	Role    string `json:"role"` // "user" or "assistant"
	Content string `json:"content"`
}

// RunContext is the per-run mutable state: the loaded conversation
// history, the set of step IDs already rendered, and the ordered list of
// generated-file handles accumulated across steps. One RunContext exists
// per request and is never shared between concurrent runs, so no locking
// is needed.
type RunContext struct {
	ThreadID string
	History  []Message

	processed      map[string]struct{}
	generatedFiles []string
}

// NewRunContext creates the state for a single run.
func NewRunContext(threadID string, history []Message) *RunContext {
	return &RunContext{
		ThreadID:  threadID,
		History:   history,
		processed: make(map[string]struct{}),
	}
}

// MarkProcessed records a step ID and reports whether it was new. The
// reasoning loop re-emits growing state snapshots, so the same step can
// arrive more than once; only the first arrival is rendered.
func (rc *RunContext) MarkProcessed(stepID string) bool {
	if _, seen := rc.processed[stepID]; seen {
		return false
	}
	rc.processed[stepID] = struct{}{}
	return true
}

// AddGeneratedFiles appends handles in generation order. Duplicates
// across steps are kept; resolution dedupes per hash later.
func (rc *RunContext) AddGeneratedFiles(hashes []string) {
	rc.generatedFiles = append(rc.generatedFiles, hashes...)
}

// GeneratedFiles returns the accumulated handles.
func (rc *RunContext) GeneratedFiles() []string {
	return rc.generatedFiles
}
