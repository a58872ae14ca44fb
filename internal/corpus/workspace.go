package corpus

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"golang.org/x/time/rate"

	"ragsync/internal/contextutil"
)

const pageSize = 100

// WorkspaceClient fetches documents from a workspace API that paginates with
// a next_cursor token and a has_more flag. Requests are rate limited so a
// full-corpus crawl stays inside the API's quota.
type WorkspaceClient struct {
	baseURL string
	token   string
	client  *http.Client
	limiter *rate.Limiter
}

// NewWorkspaceClient creates a client for the given API base URL. The token
// is sent as a bearer credential on every request.
func NewWorkspaceClient(baseURL, token string) *WorkspaceClient {
	return &WorkspaceClient{
		baseURL: baseURL,
		token:   token,
		client:  http.DefaultClient,
		// Workspace APIs in this class allow ~3 requests per second.
		limiter: rate.NewLimiter(rate.Limit(3), 3),
	}
}

type listRequest struct {
	PageSize    int    `json:"page_size"`
	StartCursor string `json:"start_cursor,omitempty"`
}

type pageResult struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Text  string `json:"text"`
}

type listResponse struct {
	Results    []pageResult `json:"results"`
	HasMore    bool         `json:"has_more"`
	NextCursor string       `json:"next_cursor"`
}

// ListAll pages through the workspace until has_more is false.
func (c *WorkspaceClient) ListAll(ctx context.Context) ([]Document, error) {
	logger := contextutil.LoggerFromContext(ctx)

	var docs []Document
	cursor := ""
	for {
		page, err := c.listPage(ctx, cursor)
		if err != nil {
			return nil, err
		}
		for _, result := range page.Results {
			docs = append(docs, Document{
				ID:    result.ID,
				Title: result.Title,
				Text:  result.Text,
			})
		}
		if !page.HasMore {
			break
		}
		cursor = page.NextCursor
	}

	logger.DebugContext(ctx, "listed workspace documents", "count", len(docs))
	return docs, nil
}

func (c *WorkspaceClient) listPage(ctx context.Context, cursor string) (*listResponse, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter wait: %w", err)
	}

	body, err := json.Marshal(listRequest{PageSize: pageSize, StartCursor: cursor})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal list request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/pages/list", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to list pages: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("workspace API status %d: %s", resp.StatusCode, string(raw))
	}

	var page listResponse
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, fmt.Errorf("failed to decode list response: %w", err)
	}
	return &page, nil
}
