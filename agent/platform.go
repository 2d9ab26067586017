package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// LocalFileStore reads generated files from the interpreter working
// directory, where the execution backend drops each output under its
// content hash.
type LocalFileStore struct {
	Dir string
}

// Read returns the bytes of the file named by the hash.
func (s *LocalFileStore) Read(hash string) ([]byte, error) {
	// Hashes are hex tokens; reject anything that could escape the dir.
	if strings.ContainsAny(hash, "/\\.") {
		return nil, fmt.Errorf("invalid file hash: %q", hash)
	}
	return os.ReadFile(filepath.Join(s.Dir, hash))
}

// HTTPPlatformClient uploads files to the platform file API.
type HTTPPlatformClient struct {
	BaseURL string
	Client  *http.Client
}

// NewHTTPPlatformClient creates a client for the given platform base URL.
func NewHTTPPlatformClient(baseURL string) *HTTPPlatformClient {
	return &HTTPPlatformClient{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Client:  &http.Client{Timeout: 30 * time.Second},
	}
}

// CreateFile uploads content as a multipart form and returns the stored
// file with its platform-assigned ID.
func (c *HTTPPlatformClient) CreateFile(ctx context.Context, filename, contentType string, content []byte) (*PlatformFile, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("failed to build upload request: %v", err)
	}
	if _, err := part.Write(content); err != nil {
		return nil, fmt.Errorf("failed to build upload request: %v", err)
	}
	if err := writer.WriteField("content_type", contentType); err != nil {
		return nil, fmt.Errorf("failed to build upload request: %v", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to build upload request: %v", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/api/v1/files", &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to reach platform at %s: %v", c.BaseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("platform returned error %d: %s", resp.StatusCode, string(respBody))
	}

	var result struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode platform response: %v", err)
	}

	return &PlatformFile{
		ID:          result.ID,
		Filename:    filename,
		ContentType: contentType,
		Content:     content,
	}, nil
}

// MemoryPlatformStore keeps uploaded files in memory and doubles as the
// backend of the local /api/v1/files retrieval endpoint. Useful for
// self-contained deployments and tests.
type MemoryPlatformStore struct {
	mu    sync.RWMutex
	files map[string]*PlatformFile
}

// NewMemoryPlatformStore creates an empty store.
func NewMemoryPlatformStore() *MemoryPlatformStore {
	return &MemoryPlatformStore{files: make(map[string]*PlatformFile)}
}

// CreateFile stores the content under a fresh ID.
func (s *MemoryPlatformStore) CreateFile(ctx context.Context, filename, contentType string, content []byte) (*PlatformFile, error) {
	file := &PlatformFile{
		ID:          uuid.NewString(),
		Filename:    filename,
		ContentType: contentType,
		Content:     content,
	}
	s.mu.Lock()
	s.files[file.ID] = file
	s.mu.Unlock()
	return file, nil
}

// Get returns a stored file by ID.
func (s *MemoryPlatformStore) Get(id string) (*PlatformFile, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	file, ok := s.files[id]
	return file, ok
}
