package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"
)

const wikiResultLimit = 4000

// WikipediaTool looks up encyclopedia articles for background knowledge
// (severity taxonomies, protocol names, vendor products and the like).
type WikipediaTool struct {
	baseURL    string
	httpClient *http.Client
}

// NewWikipediaTool creates the knowledge-lookup tool.
func NewWikipediaTool() *WikipediaTool {
	return &WikipediaTool{
		baseURL: "https://en.wikipedia.org/wiki/",
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return fmt.Errorf("too many redirects")
				}
				return nil
			},
		},
	}
}

type wikiInput struct {
	Query string `json:"query"`
}

// Kind identifies the tool variant.
func (t *WikipediaTool) Kind() ToolKind { return KindKnowledge }

// Name returns the tool name the model calls.
func (t *WikipediaTool) Name() string { return KindKnowledge.String() }

func (t *WikipediaTool) Info(ctx context.Context) (*schema.ToolInfo, error) {
	return &schema.ToolInfo{
		Name: t.Name(),
		Desc: "Look up an encyclopedia article for background knowledge about a concept, " +
			"product or technology. Returns a text extract of the article.",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"query": {
				Type:     schema.String,
				Desc:     "The article title to look up (e.g. 'PostgreSQL').",
				Required: true,
			},
		}),
	}, nil
}

// InvokableRun satisfies the eino tool contract.
func (t *WikipediaTool) InvokableRun(ctx context.Context, input string, opts ...tool.Option) (string, error) {
	out, err := t.Run(ctx, input)
	if err != nil {
		return "", err
	}
	return out.ResultText(), nil
}

// Run fetches the article page and extracts its paragraph text.
func (t *WikipediaTool) Run(ctx context.Context, argumentsJSON string) (StepOutput, error) {
	var in wikiInput
	if err := json.Unmarshal([]byte(argumentsJSON), &in); err != nil {
		return nil, fmt.Errorf("invalid input: %v", err)
	}
	if strings.TrimSpace(in.Query) == "" {
		return nil, fmt.Errorf("query is required")
	}

	title := strings.ReplaceAll(strings.TrimSpace(in.Query), " ", "_")
	pageURL := t.baseURL + url.PathEscape(title)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "aiopschat/1.0")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch article: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("no article found for %q", in.Query)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("article fetch returned %d: %s", resp.StatusCode, string(body))
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse article: %v", err)
	}

	var paragraphs []string
	doc.Find("div.mw-parser-output > p").Each(func(i int, s *goquery.Selection) {
		text := strings.TrimSpace(s.Text())
		if text != "" {
			paragraphs = append(paragraphs, text)
		}
	})

	if len(paragraphs) == 0 {
		return nil, fmt.Errorf("no article content found for %q", in.Query)
	}

	result := truncate(strings.Join(paragraphs, "\n\n"), wikiResultLimit)

	return &KnowledgeOutput{Result: result}, nil
}
