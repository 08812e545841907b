// Package extract turns a relevant decision document into a structured
// investment record via the LLM, with per-item retry and normalization.
package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/christosporios/strategic-investments-gr/internal/model"
	"github.com/christosporios/strategic-investments-gr/internal/resilience"
	"github.com/christosporios/strategic-investments-gr/pkg/anthropic"
)

// maxDocumentChars caps the decision text sent to the model.
const maxDocumentChars = 60000

// DocFetcher retrieves the text content of a decision document.
type DocFetcher interface {
	FetchText(ctx context.Context, url string) (string, error)
}

// Extractor extracts investment records from decision documents.
type Extractor struct {
	client  anthropic.Client
	fetcher DocFetcher
	model   string
	retry   resilience.RetryConfig
}

// NewExtractor creates an extractor. The retry policy is the extraction
// contract: up to 5 attempts on rate limits, exponential backoff from 2s,
// server-provided delays honored.
func NewExtractor(client anthropic.Client, fetcher DocFetcher, modelID string) *Extractor {
	cfg := resilience.DefaultRetryConfig()
	cfg.ShouldRetry = resilience.IsRateLimited
	cfg.OnRetry = resilience.RetryLogger("anthropic", "extract")
	return &Extractor{client: client, fetcher: fetcher, model: modelID, retry: cfg}
}

const extractionSystemPrompt = `You extract structured data from Greek ministerial decisions approving strategic investments. Return a valid JSON object:
{"dateApproved": "<YYYY-MM-DD or null>", "beneficiary": "<company>", "name": "<project title>", "totalAmount": <number, 0 if unknown>, "amountBreakdown": [{"amount": <number>, "description": "<text>"}], "locations": [{"description": "<text>", "textLocation": "<address or null>"}], "fundingSource": [{"source": "<text>", "perc": <0-1 or null>, "amount": <number or null>}], "incentivesApproved": [{"name": "<text>", "incentiveType": "<fast_track_licensing|tax_exemption|grant|leasing_subsidy|payroll_subsidy|shore_use|expropriation or null>"}], "category": "<production|tourism|services|energy|real-estate or null>"}
If the decision is not an investment approval, return {"skip": true}.`

const extractionUserPrompt = `Decision %s — %s

Document text:
%s

Extract the investment record as JSON.`

// Extract returns the structured record for one candidate, or nil when
// extraction failed for this item. Failures are logged and never abort the
// batch; only context cancellation is returned as an error.
func (e *Extractor) Extract(ctx context.Context, cand model.Candidate) (*model.Investment, error) {
	log := zap.L().With(zap.String("ada", cand.ADA), zap.String("source", string(cand.Source)))

	text, err := e.fetcher.FetchText(ctx, cand.DocumentURL)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		log.Warn("extract: document fetch failed", zap.Error(err))
		return nil, nil
	}
	if len(text) > maxDocumentChars {
		text = text[:maxDocumentChars]
	}

	prompt := fmt.Sprintf(extractionUserPrompt, cand.ADA, cand.Subject, text)

	resp, outcome, err := resilience.DoVal(ctx, e.retry, func(ctx context.Context) (*anthropic.MessageResponse, error) {
		return e.client.CreateMessage(ctx, anthropic.MessageRequest{
			Model:     e.model,
			MaxTokens: 4096,
			System:    extractionSystemPrompt,
			Messages:  []anthropic.Message{{Role: "user", Content: prompt}},
		})
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		log.Warn("extract: extraction failed for candidate",
			zap.String("outcome", outcome.String()),
			zap.Error(err),
		)
		return nil, nil
	}
	resp.Usage.LogCost(e.model, "extract")

	inv, perr := parseInvestment(resp.Text())
	if perr != nil {
		log.Warn("extract: unparsable extraction response",
			zap.String("raw", resp.Text()),
			zap.Error(perr),
		)
		return nil, nil
	}
	if inv == nil {
		log.Info("extract: model skipped non-investment decision")
		return nil, nil
	}

	inv.Reference.DiavgeiaADA = cand.ADA
	if inv.Reference.URL == "" {
		inv.Reference.URL = cand.URL
	}
	Normalize(inv)
	return inv, nil
}

// parseInvestment decodes the model response into an Investment. A nil
// record with nil error means the model marked the document as out of scope.
func parseInvestment(text string) (*model.Investment, error) {
	cleaned := cleanJSON(text)

	var probe struct {
		Skip bool `json:"skip"`
	}
	if err := json.Unmarshal([]byte(cleaned), &probe); err == nil && probe.Skip {
		return nil, nil
	}

	var inv model.Investment
	dec := json.NewDecoder(strings.NewReader(cleaned))
	if err := dec.Decode(&inv); err != nil {
		return nil, err
	}
	if inv.Name == "" && inv.Beneficiary == "" {
		return nil, fmt.Errorf("record missing both name and beneficiary")
	}
	return &inv, nil
}

// cleanJSON strips markdown fences and leading prose around the payload.
func cleanJSON(s string) string {
	s = strings.TrimSpace(s)
	if idx := strings.Index(s, "```"); idx >= 0 {
		s = s[idx+3:]
		s = strings.TrimPrefix(s, "json")
		if end := strings.Index(s, "```"); end >= 0 {
			s = s[:end]
		}
	}
	if idx := strings.Index(s, "{"); idx > 0 {
		s = s[idx:]
	}
	return strings.TrimSpace(s)
}
