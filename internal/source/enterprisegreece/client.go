// Package enterprisegreece fetches the curated strategic-investment project
// list published by the national investment promotion agency.
package enterprisegreece

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/christosporios/strategic-investments-gr/internal/model"
)

const maxResponseBytes = 8 << 20

// Client fetches the published project list. The list is a single JSON
// document, so there is no pagination or rate limiting here.
type Client struct {
	url        string
	httpClient *http.Client
}

// NewClient creates a client for the given list URL.
func NewClient(url string) *Client {
	return &Client{
		url:        url,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// WithHTTPClient replaces the HTTP client, mainly for tests.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.httpClient = hc
	return c
}

// project is one entry of the published list.
type project struct {
	Title       string `json:"title"`
	URL         string `json:"url"`
	DetailURL   string `json:"detailUrl"`
	PublishedAt string `json:"publishedAt"`
	ADA         string `json:"ada"`
}

// Fetch downloads and parses the project list into candidates.
func (c *Client) Fetch(ctx context.Context) ([]model.Candidate, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, eris.Wrap(err, "enterprisegreece: build request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "enterprisegreece: request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("enterprisegreece: status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, eris.Wrap(err, "enterprisegreece: read body")
	}

	var projects []project
	if err := json.Unmarshal(body, &projects); err != nil {
		return nil, eris.Wrap(err, "enterprisegreece: parse project list")
	}

	var out []model.Candidate
	for _, p := range projects {
		if p.Title == "" {
			continue
		}
		docURL := p.DetailURL
		if docURL == "" {
			docURL = p.URL
		}
		out = append(out, model.Candidate{
			ADA:         p.ADA,
			Subject:     p.Title,
			URL:         p.URL,
			DocumentURL: docURL,
			IssueDate:   p.PublishedAt,
			Source:      model.SourceEnterpriseGreece,
		})
	}
	zap.L().Debug("project list fetched", zap.Int("candidates", len(out)))
	return out, nil
}
