// Package diavgeia queries the Greek transparency registry (Δι@ύγεια) for
// ministerial decisions about strategic investments.
package diavgeia

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/christosporios/strategic-investments-gr/internal/model"
	"github.com/christosporios/strategic-investments-gr/internal/resilience"
)

const (
	defaultBaseURL  = "https://diavgeia.gov.gr/opendata"
	defaultPageSize = 100

	// Decision type for approvals under the strategic investment framework.
	decisionType = "Β.1.3"

	maxDocumentBytes = 4 << 20
)

// Client talks to the registry's open-data API. It is rate limited and
// retries transient failures behind a circuit breaker.
type Client struct {
	baseURL    string
	orgUID     string
	pageSize   int
	httpClient *http.Client
	limiter    *rate.Limiter
	breaker    *resilience.Breaker
	retry      resilience.RetryConfig
}

// Option configures the client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithPageSize sets the search page size.
func WithPageSize(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.pageSize = n
		}
	}
}

// WithRateLimit sets the requests-per-second limit for API calls.
func WithRateLimit(rps int) Option {
	return func(c *Client) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), rps)
		}
	}
}

// WithOrganization restricts searches to one issuing organization UID.
func WithOrganization(uid string) Option {
	return func(c *Client) { c.orgUID = uid }
}

// NewClient creates a registry client for the given base URL. An empty
// baseURL uses the public endpoint.
func NewClient(baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	c := &Client{
		baseURL:    baseURL,
		pageSize:   defaultPageSize,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		limiter:    rate.NewLimiter(5, 5),
		breaker:    resilience.NewBreaker(5, 60*time.Second),
		retry:      resilience.DefaultRetryConfig(),
	}
	c.retry.OnRetry = resilience.RetryLogger("diavgeia", "api")
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// searchResponse is one page of the advanced-search API.
type searchResponse struct {
	Decisions []decision `json:"decisions"`
	Info      struct {
		Page       int `json:"page"`
		Size       int `json:"size"`
		Total      int `json:"total"`
		ActualSize int `json:"actualSize"`
	} `json:"info"`
}

// decision is a registry decision listing.
type decision struct {
	ADA                string `json:"ada"`
	Subject            string `json:"subject"`
	IssueDate          int64  `json:"issueDate"` // epoch millis
	URL                string `json:"url"`
	DocumentURL        string `json:"documentUrl"`
	CorrectedVersionID string `json:"correctedVersionId"`
	ExtraFieldValues   struct {
		RelatedDecisions []string `json:"relatedDecisions"`
	} `json:"extraFieldValues"`
}

// Search returns all decisions of the strategic-investment type issued inside
// the date window, walking the paginated results to exhaustion.
func (c *Client) Search(ctx context.Context, r model.DateRange) ([]model.Candidate, error) {
	var out []model.Candidate
	for page := 0; ; page++ {
		resp, err := c.searchPage(ctx, r, page)
		if err != nil {
			return nil, err
		}
		for _, d := range resp.Decisions {
			out = append(out, toCandidate(d))
		}
		fetched := (resp.Info.Page + 1) * resp.Info.Size
		if len(resp.Decisions) < c.pageSize || fetched >= resp.Info.Total {
			break
		}
	}
	zap.L().Debug("registry search complete",
		zap.String("from", r.From),
		zap.String("to", r.To),
		zap.Int("candidates", len(out)),
	)
	return out, nil
}

func (c *Client) searchPage(ctx context.Context, r model.DateRange, page int) (*searchResponse, error) {
	params := url.Values{
		"type": {decisionType},
		"page": {strconv.Itoa(page)},
		"size": {strconv.Itoa(c.pageSize)},
	}
	if r.From != "" {
		params.Set("from_issue_date", r.From)
	}
	if r.To != "" {
		params.Set("to_issue_date", r.To)
	}
	if c.orgUID != "" {
		params.Set("org", c.orgUID)
	}

	var resp searchResponse
	body, err := c.get(ctx, c.baseURL+"/search/advanced.json?"+params.Encode())
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, eris.Wrap(err, "diavgeia: parse search response")
	}
	return &resp, nil
}

// LookupRevisionTarget resolves a corrected-version marker to the ADA of the
// decision version it replaces.
func (c *Client) LookupRevisionTarget(ctx context.Context, versionID string) (string, error) {
	body, err := c.get(ctx, c.baseURL+"/decisions/v/"+url.PathEscape(versionID)+".json")
	if err != nil {
		return "", err
	}
	var version struct {
		ADA string `json:"ada"`
	}
	if err := json.Unmarshal(body, &version); err != nil {
		return "", eris.Wrap(err, "diavgeia: parse version response")
	}
	if version.ADA == "" {
		return "", eris.Errorf("diavgeia: version %s has no ada", versionID)
	}
	return version.ADA, nil
}

// FetchText downloads the decision document body for extraction.
func (c *Client) FetchText(ctx context.Context, docURL string) (string, error) {
	body, err := c.get(ctx, docURL)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// get performs one rate-limited GET with retry and circuit breaking.
func (c *Client) get(ctx context.Context, reqURL string) ([]byte, error) {
	return resilience.ExecuteVal(ctx, c.breaker, func(ctx context.Context) ([]byte, error) {
		body, _, err := resilience.DoVal(ctx, c.retry, func(ctx context.Context) ([]byte, error) {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, eris.Wrap(err, "diavgeia: rate limit")
			}
			return c.doGet(ctx, reqURL)
		})
		return body, err
	})
}

func (c *Client) doGet(ctx context.Context, reqURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "diavgeia: build request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, resilience.NewTransientError(eris.Wrap(err, "diavgeia: request"), 0)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		err := eris.Errorf("diavgeia: status %d for %s", resp.StatusCode, reqURL)
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return nil, resilience.NewTransientError(err, resp.StatusCode)
		}
		return nil, err
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentBytes))
	if err != nil {
		return nil, resilience.NewTransientError(eris.Wrap(err, "diavgeia: read body"), 0)
	}
	return body, nil
}

func toCandidate(d decision) model.Candidate {
	var issued string
	if d.IssueDate > 0 {
		issued = time.UnixMilli(d.IssueDate).UTC().Format("2006-01-02")
	}
	docURL := d.DocumentURL
	if docURL == "" && d.ADA != "" {
		docURL = fmt.Sprintf("%s/decisions/%s/document.txt", defaultBaseURL, url.PathEscape(d.ADA))
	}
	return model.Candidate{
		ADA:                d.ADA,
		Subject:            d.Subject,
		URL:                d.URL,
		DocumentURL:        docURL,
		IssueDate:          issued,
		RelatedDecisions:   d.ExtraFieldValues.RelatedDecisions,
		CorrectedVersionID: d.CorrectedVersionID,
		Source:             model.SourceDiavgeia,
	}
}
