package docindex

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/alphaboard/research-qa/internal/core/domain"
	"github.com/alphaboard/research-qa/internal/infrastructure/resilience"
)

// Client talks to the document index service. One SearchPassages call is
// one text query against an index; passages come back provenance-tagged.
type Client struct {
	baseURL    string
	httpClient *http.Client
	executor   *resilience.Executor
}

func New(baseURL string, resilienceCfg resilience.Config) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 60 * time.Second},
		executor:   resilience.NewExecutor(resilienceCfg, classifyIndexError),
	}
}

func (c *Client) SearchPassages(ctx context.Context, query, indexID string, limit int) ([]domain.RetrievedChunk, error) {
	reqBody := map[string]any{
		"query":         query,
		"limit":         limit,
		"with_metadata": true,
	}

	var searchResp struct {
		Passages []struct {
			Text       string  `json:"text"`
			Score      float64 `json:"score"`
			DocumentID string  `json:"document_id"`
			Title      string  `json:"document_title"`
			URI        string  `json:"document_uri"`
			Page       int     `json:"page_number"`
			ChunkIndex int     `json:"chunk_index"`
			ChunkHash  string  `json:"chunk_hash"`
		} `json:"passages"`
	}

	path := "/v1/indexes/" + url.PathEscape(indexID) + "/search"
	err := c.executor.Execute(ctx, "search_passages", func(ctx context.Context) error {
		return c.postJSON(ctx, path, reqBody, &searchResp)
	})
	if err != nil {
		if classifyIndexError(err).Retryable || resilience.IsCircuitOpen(err) {
			return nil, domain.WrapError(domain.ErrTemporary, "search_passages", err)
		}
		return nil, err
	}

	out := make([]domain.RetrievedChunk, 0, len(searchResp.Passages))
	for _, p := range searchResp.Passages {
		out = append(out, domain.RetrievedChunk{
			Text:           p.Text,
			DocumentID:     p.DocumentID,
			DocumentTitle:  p.Title,
			DocumentURI:    p.URI,
			PageNumber:     p.Page,
			ChunkIndex:     p.ChunkIndex,
			RelevanceScore: p.Score,
			ChunkHash:      p.ChunkHash,
		})
	}
	return out, nil
}

func (c *Client) postJSON(ctx context.Context, path string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal search body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create search request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("index search request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		if msg := strings.TrimSpace(string(respBody)); msg != "" {
			return &statusError{code: resp.StatusCode, msg: fmt.Sprintf("index search status: %s: %s", resp.Status, msg)}
		}
		return &statusError{code: resp.StatusCode, msg: fmt.Sprintf("index search status: %s", resp.Status)}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode search response: %w", err)
	}
	return nil
}
