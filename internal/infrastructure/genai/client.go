package genai

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/alphaboard/research-qa/internal/core/domain"
	"github.com/alphaboard/research-qa/internal/infrastructure/resilience"
)

// Client talks to the generation service. GenerateJSON uses the
// structured-output mode at low temperature so responses stay parseable.
type Client struct {
	baseURL    string
	model      string
	httpClient *http.Client
	executor   *resilience.Executor
}

func New(baseURL, model string, resilienceCfg resilience.Config) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
		httpClient: &http.Client{Timeout: 120 * time.Second},
		executor:   resilience.NewExecutor(resilienceCfg, classifyGenAIError),
	}
}

func (c *Client) GenerateJSON(ctx context.Context, prompt string) (string, error) {
	reqBody := map[string]any{
		"model":       c.model,
		"prompt":      prompt,
		"stream":      false,
		"format":      "json",
		"temperature": 0.1,
	}
	return c.generate(ctx, "generate_json", reqBody)
}

func (c *Client) GenerateText(ctx context.Context, prompt string) (string, error) {
	reqBody := map[string]any{
		"model":  c.model,
		"prompt": prompt,
		"stream": false,
	}
	return c.generate(ctx, "generate_text", reqBody)
}

// AnswerFromIndex asks the service to answer directly against a whole
// index, without any of the enhanced pipeline stages.
func (c *Client) AnswerFromIndex(ctx context.Context, question, indexID string) (*domain.LegacyAnswer, error) {
	reqBody := map[string]any{
		"model":    c.model,
		"question": question,
	}

	var response struct {
		Answer  string `json:"answer"`
		Sources []struct {
			URI     string `json:"uri"`
			Label   string `json:"label"`
			PageRef string `json:"page_ref"`
			Quote   string `json:"quote"`
		} `json:"sources"`
	}

	path := "/v1/indexes/" + url.PathEscape(indexID) + "/answer"
	err := c.executor.Execute(ctx, "answer_from_index", func(ctx context.Context) error {
		return c.postJSON(ctx, path, reqBody, &response, "answer_from_index")
	})
	if err != nil {
		return nil, wrapTemporaryIfNeeded("answer_from_index", err)
	}

	answer := &domain.LegacyAnswer{
		Answer:  strings.TrimSpace(response.Answer),
		Sources: make([]domain.SourceRef, 0, len(response.Sources)),
	}
	for _, s := range response.Sources {
		answer.Sources = append(answer.Sources, domain.SourceRef{
			URI:     s.URI,
			Label:   s.Label,
			PageRef: s.PageRef,
			Quote:   s.Quote,
		})
	}
	return answer, nil
}

func (c *Client) generate(ctx context.Context, operation string, reqBody map[string]any) (string, error) {
	var response struct {
		Output string `json:"output"`
	}
	err := c.executor.Execute(ctx, operation, func(ctx context.Context) error {
		return c.postJSON(ctx, "/v1/generate", reqBody, &response, operation)
	})
	if err != nil {
		return "", wrapTemporaryIfNeeded(operation, err)
	}

	output := strings.TrimSpace(response.Output)
	if output == "" {
		return "", fmt.Errorf("genai %s: empty output", operation)
	}
	return output, nil
}
