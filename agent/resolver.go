package agent

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// PlatformFile is the persisted, externally addressable form of a
// resolved generated file.
type PlatformFile struct {
	ID          string
	Filename    string
	ContentType string
	Content     []byte
}

// FileStore retrieves the raw bytes of a generated file by its content
// hash. A miss is not fatal: the reference is simply left unresolved.
type FileStore interface {
	Read(hash string) ([]byte, error)
}

// PlatformClient persists classified content to the addressable store
// and returns its stable identifier.
type PlatformClient interface {
	CreateFile(ctx context.Context, filename, contentType string, content []byte) (*PlatformFile, error)
}

// Boilerplate phrases that precede a CSV download link. When the link is
// stripped (CSVs travel as attachments, not inline links) these would be
// left dangling, so they are removed too.
var downloadPhrasePattern = regexp.MustCompile(
	`(You can download it here:|Puedes descargarlo aquí:|Descarga el archivo:|Download file:)\s*`)

// FileReferenceResolver rewrites urn:<ns>:file:<hash> references in a
// final answer into externally resolvable links, uploading the backing
// content once per distinct hash.
type FileReferenceResolver struct {
	store         FileStore
	platform      PlatformClient
	publicBaseURL string
	namespace     string
	refPattern    *regexp.Regexp
	logger        func(string)
}

// NewFileReferenceResolver creates a resolver for the given URN
// namespace ("bee" yields urn:bee:file:<hash> references).
func NewFileReferenceResolver(store FileStore, platform PlatformClient, publicBaseURL, namespace string) *FileReferenceResolver {
	return &FileReferenceResolver{
		store:         store,
		platform:      platform,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
		namespace:     namespace,
		refPattern: regexp.MustCompile(
			`!?\[([^\]]+)\]\(urn:` + regexp.QuoteMeta(namespace) + `:file:([a-f0-9]+)\)`),
		logger: func(string) {},
	}
}

// SetLogger sets the debug logging function.
func (r *FileReferenceResolver) SetLogger(logger func(string)) {
	if logger != nil {
		r.logger = logger
	}
}

func (r *FileReferenceResolver) urn(hash string) string {
	return fmt.Sprintf("urn:%s:file:%s", r.namespace, hash)
}

// FileURL builds the retrieval URL for an uploaded file.
func (r *FileReferenceResolver) FileURL(fileID string) string {
	return fmt.Sprintf("%s/api/v1/files/%s/content", r.publicBaseURL, fileID)
}

// Resolve scans the answer text for file references, uploads every
// retrievable generated file exactly once per distinct hash, rewrites
// inline-capable references (images, PDFs) to retrieval URLs and strips
// CSV references from the text. It returns the rewritten text plus the
// CSV files to deliver as downloadable attachments. References whose
// hash is not among the generated handles are left verbatim.
func (r *FileReferenceResolver) Resolve(ctx context.Context, answerText string, generatedHashes []string) (string, []*PlatformFile) {
	matches := r.refPattern.FindAllStringSubmatch(answerText, -1)
	if len(matches) == 0 || len(generatedHashes) == 0 {
		return answerText, nil
	}

	urnToURL := make(map[string]string)
	csvHashes := make(map[string]struct{})
	uploaded := make(map[string]struct{})
	var attachments []*PlatformFile

	for _, hash := range generatedHashes {
		if _, done := uploaded[hash]; done {
			continue
		}
		uploaded[hash] = struct{}{}

		content, err := r.store.Read(hash)
		if err != nil {
			// Resolution miss: the reference stays as-is in the text.
			r.logger(fmt.Sprintf("[RESOLVER] generated file %s not retrievable: %v", hash, err))
			continue
		}

		contentType, filename := ClassifyContent(content, hash)

		file, err := r.platform.CreateFile(ctx, filename, contentType, content)
		if err != nil {
			r.logger(fmt.Sprintf("[RESOLVER] upload failed for %s: %v", hash, err))
			continue
		}

		if contentType == "text/csv" {
			csvHashes[hash] = struct{}{}
			attachments = append(attachments, file)
		} else {
			urnToURL[r.urn(hash)] = r.FileURL(file.ID)
		}
	}

	modified := answerText
	for _, match := range matches {
		name, hash := match[1], match[2]
		if _, isCSV := csvHashes[hash]; isCSV {
			// CSVs are delivered as attachments: drop the whole markdown
			// reference and any download boilerplate left behind.
			refPattern := regexp.MustCompile(
				`!?\[` + regexp.QuoteMeta(name) + `\]\(urn:` + regexp.QuoteMeta(r.namespace) + `:file:` + hash + `\)`)
			modified = refPattern.ReplaceAllString(modified, "")
			modified = downloadPhrasePattern.ReplaceAllString(modified, "")
		} else if url, ok := urnToURL[r.urn(hash)]; ok {
			modified = strings.ReplaceAll(modified, r.urn(hash), url)
		}
	}

	return modified, attachments
}

// ClassifyContent sniffs the media type from the leading bytes and
// synthesizes a filename from the classification and the hash prefix.
// Content-based sniffing is required because the execution backend names
// its outputs opaquely.
func ClassifyContent(content []byte, hash string) (contentType, filename string) {
	prefix := hash
	if len(prefix) > 8 {
		prefix = prefix[:8]
	}

	switch {
	case bytes.HasPrefix(content, []byte("\x89PNG")):
		return "image/png", fmt.Sprintf("plot_%s.png", prefix)
	case bytes.HasPrefix(content, []byte("\xff\xd8\xff")):
		return "image/jpeg", fmt.Sprintf("plot_%s.jpg", prefix)
	case bytes.HasPrefix(content, []byte("%PDF")):
		return "application/pdf", fmt.Sprintf("document_%s.pdf", prefix)
	}

	if utf8.Valid(content) {
		text := string(content)
		if (strings.Contains(text, ",") || strings.Contains(text, "\t")) && strings.Contains(text, "\n") {
			return "text/csv", fmt.Sprintf("data_%s.csv", prefix)
		}
	}

	return "application/octet-stream", fmt.Sprintf("file_%s.bin", prefix)
}
