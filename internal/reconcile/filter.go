package reconcile

import (
	"context"

	"go.uber.org/zap"

	"github.com/christosporios/strategic-investments-gr/internal/classify"
	"github.com/christosporios/strategic-investments-gr/internal/dedupe"
	"github.com/christosporios/strategic-investments-gr/internal/model"
)

// filterSuperseded applies the revision edges discovered among the selected
// candidates, as an explicit two-pass: collect the edges first, then filter.
// A superseded candidate is dropped only when its superseding candidate is
// itself present in the selected set; an edge pointing at an absent target
// must never cost us the only copy of a record.
func filterSuperseded(selected []model.Candidate, revisions map[string]model.RevisionResult, log *zap.Logger) ([]model.Candidate, []string) {
	selectedSet := make(map[string]bool, len(selected))
	for _, c := range selected {
		selectedSet[c.ADA] = true
	}

	// Pass 1: collect superseded→superseding edges whose superseding side
	// survived relevance filtering.
	supersededBy := make(map[string]string)
	for _, c := range selected {
		r, ok := revisions[c.ADA]
		if !ok || r.RevisesADA == "" {
			continue
		}
		supersededBy[r.RevisesADA] = c.ADA
	}

	// Pass 2: filter. Keeping both sides of an edge selected means the
	// relevance classifier contradicted itself; log it as such before
	// dropping the stale side.
	var filtered []model.Candidate
	var dropped []string
	for _, c := range selected {
		if by, ok := supersededBy[c.ADA]; ok && selectedSet[by] {
			log.Warn("classifier self-consistency: superseded candidate was still selected",
				zap.String("ada", c.ADA),
				zap.String("superseded_by", by),
			)
			dropped = append(dropped, c.ADA)
			continue
		}
		filtered = append(filtered, c)
	}

	// Runtime invariant check: no surviving candidate may be the original
	// of an edge whose superseding side also survived.
	survivors := make(map[string]bool, len(filtered))
	for _, c := range filtered {
		survivors[c.ADA] = true
	}
	for original, by := range supersededBy {
		if survivors[original] && survivors[by] {
			log.Error("invariant violation: superseded candidate survived filtering",
				zap.String("ada", original),
				zap.String("superseded_by", by),
			)
		}
	}

	return filtered, dropped
}

// checkInvariants verifies the persisted-set invariants on the outgoing
// snapshot: unique registry codes, unique source URLs, and no superseded
// code present. Violations are logged loudly, never fatal.
func checkInvariants(snap *model.Snapshot, log *zap.Logger) {
	seenADA := make(map[string]bool)
	seenURL := make(map[string]bool)
	superseded := snap.SupersededADAs()

	for i := range snap.Investments {
		ref := snap.Investments[i].Reference
		if ref.DiavgeiaADA != "" {
			if seenADA[ref.DiavgeiaADA] {
				log.Error("invariant violation: duplicate registry code persisted",
					zap.String("ada", ref.DiavgeiaADA),
				)
			}
			seenADA[ref.DiavgeiaADA] = true
			if superseded[ref.DiavgeiaADA] {
				log.Error("invariant violation: superseded record persisted",
					zap.String("ada", ref.DiavgeiaADA),
				)
			}
		}
		if ref.URL != "" {
			if seenURL[ref.URL] {
				log.Error("invariant violation: duplicate source URL persisted",
					zap.String("url", ref.URL),
				)
			}
			seenURL[ref.URL] = true
		}
	}
}

// dedupeRecords adapts the cross-source deduplicator; the classifier's
// Arbitrate method satisfies dedupe.Arbiter.
func dedupeRecords(ctx context.Context, primary, secondary []model.Investment, arb classify.Classifier) ([]model.Investment, []dedupe.Exclusion) {
	return dedupe.Dedupe(ctx, primary, secondary, arb)
}
