// Package dedupe reconciles records arriving from the secondary source
// against the primary set, so the same real-world investment is never
// counted twice. Cheap heuristics build a shortlist; an LLM arbitration call
// settles the ambiguous cases.
package dedupe

import (
	"context"
	"math"
	"strings"
	"unicode"

	"go.uber.org/zap"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/christosporios/strategic-investments-gr/internal/classify"
	"github.com/christosporios/strategic-investments-gr/internal/model"
)

const (
	// prefixRunes is how much of a title/beneficiary the overlap heuristic
	// compares.
	prefixRunes = 10
	// amountTolerance is the relative total-amount difference under which
	// two records are considered possible duplicates.
	amountTolerance = 0.20
	// maxShortlist caps arbitration prompt size per candidate.
	maxShortlist = 20
)

// Arbiter is the duplicate-arbitration capability, satisfied by
// classify.Classifier.
type Arbiter interface {
	Arbitrate(ctx context.Context, cand model.Investment, shortlist []model.Investment) (*classify.Verdict, error)
}

// Exclusion records a secondary record dropped as a duplicate, for audit.
type Exclusion struct {
	Name       string        `json:"name"`
	MatchedADA string        `json:"matchedAda"`
	Confidence classify.Tier `json:"confidence"`
}

// Dedupe merges the secondary set into the primary set. Primary records pass
// through unaltered; secondary records that already carry an ADA code are
// kept as-is (they were reconciled by identity upstream); the rest are
// shortlist-matched and arbitrated. A positive verdict below medium
// confidence, or any arbitration failure, keeps the candidate: dropping
// data on a weak signal is irreversible.
func Dedupe(ctx context.Context, primary, secondary []model.Investment, arb Arbiter) ([]model.Investment, []Exclusion) {
	merged := make([]model.Investment, 0, len(primary)+len(secondary))
	merged = append(merged, primary...)

	var exclusions []Exclusion
	for _, cand := range secondary {
		if cand.ADA() != "" {
			merged = append(merged, cand)
			continue
		}

		shortlist := Shortlist(cand, primary)
		if len(shortlist) == 0 {
			merged = append(merged, cand)
			continue
		}

		verdict, err := arb.Arbitrate(ctx, cand, shortlist)
		if err != nil {
			zap.L().Warn("dedupe: arbitration failed, keeping candidate",
				zap.String("name", cand.Name),
				zap.Error(err),
			)
			merged = append(merged, cand)
			continue
		}

		if accepted(verdict, shortlist) {
			zap.L().Info("dedupe: secondary record dropped as duplicate",
				zap.String("name", cand.Name),
				zap.String("matched_ada", verdict.MatchedADA),
				zap.String("confidence", string(verdict.Confidence)),
			)
			exclusions = append(exclusions, Exclusion{
				Name:       cand.Name,
				MatchedADA: verdict.MatchedADA,
				Confidence: verdict.Confidence,
			})
			continue
		}
		merged = append(merged, cand)
	}

	return merged, exclusions
}

// accepted reports whether a verdict is strong enough to drop the candidate:
// a positive match, above the lowest confidence tier, pointing at a record
// that was actually in the shortlist.
func accepted(v *classify.Verdict, shortlist []model.Investment) bool {
	if !v.IsDuplicate || v.Confidence == classify.TierLow {
		return false
	}
	for i := range shortlist {
		if shortlist[i].ADA() == v.MatchedADA {
			return true
		}
	}
	zap.L().Warn("dedupe: verdict matched ADA outside shortlist", zap.String("ada", v.MatchedADA))
	return false
}

// Shortlist returns up to maxShortlist primary records that plausibly match
// cand: folded 10-rune prefix containment of title or beneficiary in either
// direction, or total amounts within 20% of each other.
func Shortlist(cand model.Investment, primary []model.Investment) []model.Investment {
	var out []model.Investment
	for i := range primary {
		if len(out) >= maxShortlist {
			break
		}
		p := primary[i]
		if prefixOverlap(cand.Name, p.Name) ||
			prefixOverlap(cand.Beneficiary, p.Beneficiary) ||
			amountsClose(cand.TotalAmount, p.TotalAmount) {
			out = append(out, p)
		}
	}
	return out
}

// prefixOverlap reports whether the folded prefix of either string appears
// in the other.
func prefixOverlap(a, b string) bool {
	fa, fb := fold(a), fold(b)
	pa, pb := runePrefix(fa, prefixRunes), runePrefix(fb, prefixRunes)
	if pa == "" || pb == "" {
		return false
	}
	return strings.Contains(fb, pa) || strings.Contains(fa, pb)
}

func amountsClose(a, b float64) bool {
	if a <= 0 || b <= 0 {
		return false
	}
	larger := math.Max(a, b)
	return math.Abs(a-b)/larger < amountTolerance
}

// foldTransformer strips combining marks after NFD decomposition, removing
// Greek accents so "Ξενοδοχείο" and "Ξενοδοχειο" compare equal.
var foldTransformer = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

func fold(s string) string {
	folded, _, err := transform.String(foldTransformer, s)
	if err != nil {
		folded = s
	}
	return strings.ToLower(strings.TrimSpace(folded))
}

func runePrefix(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
