package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"
)

// StepTool is a tool the reasoning loop can invoke. It extends the eino
// tool contract with a kind tag and a typed Run so the loop can build
// per-kind step outputs instead of bare strings.
type StepTool interface {
	tool.InvokableTool
	Kind() ToolKind
	Name() string
	Run(ctx context.Context, argumentsJSON string) (StepOutput, error)
}

// PythonTool executes Python code through the sandboxed interpreter and
// reports generated files as urn file references.
type PythonTool struct {
	interpreter *InterpreterClient
	// Files written by the sandbox land in interpreterDir keyed by
	// content hash; localDir receives a copy under the display name so
	// follow-up executions can use them as input files.
	interpreterDir string
	localDir       string
	namespace      string
}

// NewPythonTool creates the code-execution tool.
func NewPythonTool(interpreter *InterpreterClient, interpreterDir, localDir, namespace string) *PythonTool {
	return &PythonTool{
		interpreter:    interpreter,
		interpreterDir: interpreterDir,
		localDir:       localDir,
		namespace:      namespace,
	}
}

type pythonInput struct {
	Code       string   `json:"code"`
	Language   string   `json:"language"`
	InputFiles []string `json:"input_files"`
}

// Kind identifies the tool variant.
func (t *PythonTool) Kind() ToolKind { return KindPython }

// Name returns the tool name the model calls.
func (t *PythonTool) Name() string { return KindPython.String() }

func (t *PythonTool) Info(ctx context.Context) (*schema.ToolInfo, error) {
	return &schema.ToolInfo{
		Name: t.Name(),
		Desc: "A tool for writing and executing Python code. Suitable for data analysis, " +
			"file operations, computations, plotting, and more. The code will be executed " +
			"in a sandboxed environment.",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"code": {
				Type:     schema.String,
				Desc:     "Python code to execute. Must be written in English. No special characters. No accents.",
				Required: true,
			},
			"input_files": {
				Type: schema.Array,
				Desc: "List of input files to make accessible to the code.",
				ElemInfo: &schema.ParameterInfo{
					Type: schema.String,
				},
			},
		}),
	}, nil
}

// InvokableRun satisfies the eino tool contract.
func (t *PythonTool) InvokableRun(ctx context.Context, input string, opts ...tool.Option) (string, error) {
	out, err := t.Run(ctx, input)
	if err != nil {
		return "", err
	}
	return out.ResultText(), nil
}

// Run executes the code and returns a PythonOutput carrying the
// generated-file hashes alongside the textual result.
func (t *PythonTool) Run(ctx context.Context, argumentsJSON string) (StepOutput, error) {
	var in pythonInput
	if err := json.Unmarshal([]byte(argumentsJSON), &in); err != nil {
		truncated := argumentsJSON
		if len(truncated) > 500 {
			truncated = truncated[:500] + "... (truncated)"
		}
		return nil, fmt.Errorf("invalid input: %v. Input received (first 500 chars): %s", err, truncated)
	}

	result, err := t.interpreter.Execute(ctx, ExecuteRequest{
		Language:   "Language.PYTHON",
		SourceCode: in.Code,
		InputFiles: in.InputFiles,
	})
	if err != nil {
		return nil, err
	}

	t.copyGeneratedFiles(result.Files)

	var parts []string
	if result.Stdout != "" {
		parts = append(parts, result.Stdout)
	}
	if result.Stderr != "" {
		parts = append(parts, fmt.Sprintf("Errors:\n%s", result.Stderr))
	}
	if result.ExitCode != 0 {
		parts = append(parts, fmt.Sprintf("Exit code: %d", result.ExitCode))
	}
	if len(result.Files) > 0 {
		parts = append(parts, t.filesBlock(result.Files))
	}
	if len(parts) == 0 {
		parts = append(parts, "Code executed successfully (no output)")
	}

	hashes := make([]string, 0, len(result.Files))
	for _, name := range sortedKeys(result.Files) {
		hashes = append(hashes, result.Files[name])
	}

	return &PythonOutput{
		Result:         strings.Join(parts, "\n\n"),
		GeneratedFiles: hashes,
	}, nil
}

// filesBlock renders the generated files as urn references together with
// the copy-exactly instructions. The model must carry these references
// verbatim into its final answer; resolution to real URLs happens there.
func (t *PythonTool) filesBlock(files map[string]string) string {
	lines := make([]string, 0, len(files))
	for _, name := range sortedKeys(files) {
		base := filepath.Base(name)
		lines = append(lines, fmt.Sprintf("![%s](urn:%s:file:%s)", base, t.namespace, files[name]))
	}

	return "SUCCESS: Files were created. " +
		"IMPORTANT: To show these files to the user, you MUST copy the EXACT markdown below into your final answer. " +
		"DO NOT modify it, DO NOT create your own URLs, DO NOT add extra text. " +
		"Just copy this EXACTLY as-is:\n\n" +
		strings.Join(lines, "\n") +
		"\n\nRemember: Use the markdown EXACTLY as shown above. The system will convert it to the correct URL automatically."
}

// copyGeneratedFiles mirrors sandbox outputs into the local working dir
// under their display names. Failures are ignored; the canonical copy in
// the interpreter dir is what resolution reads.
func (t *PythonTool) copyGeneratedFiles(files map[string]string) {
	if t.localDir == "" {
		return
	}
	for name, hash := range files {
		src := filepath.Join(t.interpreterDir, hash)
		content, err := os.ReadFile(src)
		if err != nil {
			continue
		}
		dst := filepath.Join(t.localDir, filepath.Base(name))
		os.WriteFile(dst, content, 0644)
	}
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
