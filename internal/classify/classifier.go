// Package classify wraps the LLM behind the two advisory calls the pipeline
// makes: relevance filtering of raw candidates and duplicate arbitration
// between sources. Both outputs are advisory; callers re-verify invariants.
package classify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/christosporios/strategic-investments-gr/internal/model"
	"github.com/christosporios/strategic-investments-gr/internal/resilience"
	"github.com/christosporios/strategic-investments-gr/pkg/anthropic"
)

// Tier is the arbitration confidence tier.
type Tier string

const (
	TierLow    Tier = "low"
	TierMedium Tier = "medium"
	TierHigh   Tier = "high"
)

// Verdict is the arbiter's answer for one cross-source candidate.
type Verdict struct {
	IsDuplicate bool   `json:"isDuplicate"`
	MatchedADA  string `json:"matchedAda"`
	Confidence  Tier   `json:"confidence"`
}

// Classifier is the external classification capability.
type Classifier interface {
	// ClassifyRelevant returns the ADA codes of the candidates that concern
	// strategic-investment approvals. False positives and negatives are
	// possible; the reconciliation engine re-verifies consistency.
	ClassifyRelevant(ctx context.Context, cands []model.Candidate) ([]string, error)

	// Arbitrate decides whether cand duplicates one of the shortlisted
	// primary-source records.
	Arbitrate(ctx context.Context, cand model.Investment, shortlist []model.Investment) (*Verdict, error)
}

const relevanceSystemPrompt = `You screen Greek public-sector decision listings. Decide which listed decisions approve, amend or revoke a strategic investment (νόμος 4608/2019 / στρατηγικές επενδύσεις). Respond with a valid JSON object: {"relevant": ["<ADA>", ...]} containing only ADA codes from the input.`

const relevanceUserPrompt = `Decision listings:
%s

Return the ADA codes of the relevant decisions as JSON.`

const arbitrationSystemPrompt = `You compare investment records from two government sources. Decide whether the candidate record describes the same real-world investment as one of the listed existing records. Respond with a valid JSON object: {"isDuplicate": <bool>, "matchedAda": "<ADA or empty>", "confidence": "low"|"medium"|"high"}.`

const arbitrationUserPrompt = `Candidate record:
%s

Existing records:
%s

Is the candidate a duplicate of one of the existing records?`

// LLMClassifier implements Classifier on top of the Anthropic client.
type LLMClassifier struct {
	client anthropic.Client
	model  string
	retry  resilience.RetryConfig
}

// NewLLMClassifier creates a classifier using the given model.
func NewLLMClassifier(client anthropic.Client, modelID string) *LLMClassifier {
	cfg := resilience.DefaultRetryConfig()
	cfg.OnRetry = resilience.RetryLogger("anthropic", "classify")
	return &LLMClassifier{client: client, model: modelID, retry: cfg}
}

func (c *LLMClassifier) ClassifyRelevant(ctx context.Context, cands []model.Candidate) ([]string, error) {
	if len(cands) == 0 {
		return nil, nil
	}

	var b strings.Builder
	for _, cand := range cands {
		fmt.Fprintf(&b, "- ADA %s (%s): %s\n", cand.ADA, cand.IssueDate, cand.Subject)
	}
	prompt := fmt.Sprintf(relevanceUserPrompt, b.String())

	resp, _, err := resilience.DoVal(ctx, c.retry, func(ctx context.Context) (*anthropic.MessageResponse, error) {
		return c.client.CreateMessage(ctx, anthropic.MessageRequest{
			Model:     c.model,
			MaxTokens: 2048,
			System:    relevanceSystemPrompt,
			Messages:  []anthropic.Message{{Role: "user", Content: prompt}},
		})
	})
	if err != nil {
		return nil, eris.Wrap(err, "classify: relevance call")
	}
	resp.Usage.LogCost(c.model, "classify_relevance")

	raw := resp.Text()
	var parsed struct {
		Relevant []string `json:"relevant"`
	}
	if err := json.Unmarshal([]byte(cleanJSON(raw)), &parsed); err != nil {
		zap.L().Warn("classify: malformed relevance response",
			zap.String("raw", raw),
			zap.Error(err),
		)
		return nil, eris.Wrap(err, "classify: parse relevance response")
	}

	// Keep only codes that were actually in the input; the model sometimes
	// hallucinates codes or echoes subjects.
	known := make(map[string]bool, len(cands))
	for _, cand := range cands {
		known[cand.ADA] = true
	}
	var out []string
	for _, ada := range parsed.Relevant {
		ada = strings.TrimSpace(ada)
		if known[ada] {
			out = append(out, ada)
		} else if ada != "" {
			zap.L().Warn("classify: dropped unknown ADA from relevance response", zap.String("ada", ada))
		}
	}
	return out, nil
}

func (c *LLMClassifier) Arbitrate(ctx context.Context, cand model.Investment, shortlist []model.Investment) (*Verdict, error) {
	candJSON, _ := json.Marshal(summarize(cand))
	var b strings.Builder
	for _, inv := range shortlist {
		line, _ := json.Marshal(summarize(inv))
		b.Write(line)
		b.WriteString("\n")
	}
	prompt := fmt.Sprintf(arbitrationUserPrompt, string(candJSON), b.String())

	resp, _, err := resilience.DoVal(ctx, c.retry, func(ctx context.Context) (*anthropic.MessageResponse, error) {
		return c.client.CreateMessage(ctx, anthropic.MessageRequest{
			Model:     c.model,
			MaxTokens: 256,
			System:    arbitrationSystemPrompt,
			Messages:  []anthropic.Message{{Role: "user", Content: prompt}},
		})
	})
	if err != nil {
		return nil, eris.Wrap(err, "classify: arbitration call")
	}
	resp.Usage.LogCost(c.model, "arbitrate_duplicate")

	raw := resp.Text()
	var verdict Verdict
	if err := json.Unmarshal([]byte(cleanJSON(raw)), &verdict); err != nil {
		zap.L().Warn("classify: malformed arbitration response",
			zap.String("raw", raw),
			zap.Error(err),
		)
		return nil, eris.Wrap(err, "classify: parse arbitration response")
	}
	switch verdict.Confidence {
	case TierLow, TierMedium, TierHigh:
	default:
		verdict.Confidence = TierLow
	}
	return &verdict, nil
}

// summary is the compact record view sent to the arbiter.
type summary struct {
	ADA         string  `json:"ada,omitempty"`
	Name        string  `json:"name"`
	Beneficiary string  `json:"beneficiary"`
	TotalAmount float64 `json:"totalAmount"`
}

func summarize(inv model.Investment) summary {
	return summary{
		ADA:         inv.ADA(),
		Name:        inv.Name,
		Beneficiary: inv.Beneficiary,
		TotalAmount: inv.TotalAmount,
	}
}

// cleanJSON strips markdown code fences and leading prose so the payload can
// be unmarshalled even when the model wraps it.
func cleanJSON(s string) string {
	s = strings.TrimSpace(s)
	if idx := strings.Index(s, "```"); idx >= 0 {
		s = s[idx+3:]
		s = strings.TrimPrefix(s, "json")
		if end := strings.Index(s, "```"); end >= 0 {
			s = s[:end]
		}
	}
	if idx := strings.IndexAny(s, "{["); idx > 0 {
		s = s[idx:]
	}
	return strings.TrimSpace(s)
}
