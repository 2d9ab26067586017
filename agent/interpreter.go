package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ExecuteRequest is the payload sent to the code interpreter.
type ExecuteRequest struct {
	Language   string   `json:"language"`
	SourceCode string   `json:"source_code"`
	InputFiles []string `json:"input_files,omitempty"`
}

// ExecuteResult is the interpreter's response. Files maps each generated
// file's display name to the content hash under which the interpreter
// stored it in the shared working directory.
type ExecuteResult struct {
	Stdout   string            `json:"stdout"`
	Stderr   string            `json:"stderr"`
	ExitCode int               `json:"exit_code"`
	Files    map[string]string `json:"files"`
}

// InterpreterClient talks to the sandboxed code execution backend.
type InterpreterClient struct {
	executeURL string
	client     *http.Client
}

// NewInterpreterClient creates a client for the interpreter at baseURL.
func NewInterpreterClient(baseURL string) *InterpreterClient {
	return &InterpreterClient{
		executeURL: strings.TrimRight(baseURL, "/") + "/v1/execute",
		client:     &http.Client{Timeout: 60 * time.Second},
	}
}

// Execute submits source code and waits for the run to finish. A non-2xx
// response or transport failure is returned as an error carrying the
// diagnostics; the caller surfaces it as a tool-level error event.
func (c *InterpreterClient) Execute(ctx context.Context, req ExecuteRequest) (*ExecuteResult, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode execute request: %v", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.executeURL, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to code interpreter at %s: %v", c.executeURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("code interpreter returned error %d: %s", resp.StatusCode, string(body))
	}

	var result ExecuteResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode interpreter response: %v", err)
	}
	return &result, nil
}
