package reconcile

import (
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/christosporios/strategic-investments-gr/internal/identity"
	"github.com/christosporios/strategic-investments-gr/internal/model"
)

// mergeResult carries the merged record list plus the audit numbers and the
// accumulated revision-edge list for the new snapshot.
type mergeResult struct {
	investments       []model.Investment
	edges             []model.RevisionEdge
	added             int
	keptPrior         int
	supersededDropped int
}

// mergeWithPrior folds the new records into the prior snapshot:
//   - prior records stay in prior order unless superseded by an applied
//     revision edge or refreshed by a new record with the same identity;
//   - new records are appended in batch order, skipping co-arriving
//     identity duplicates;
//   - a revision edge is applied only when the superseding record is
//     actually present in the merged output, so a failed re-extraction never
//     removes the only copy.
func mergeWithPrior(prior *model.Snapshot, newRecords []model.Investment, revisions map[string]model.RevisionResult, log *zap.Logger) mergeResult {
	out := mergeResult{}

	// Identities of the new batch, first occurrence wins.
	newByIdentity := make(map[identity.Identity]int, len(newRecords))
	var accepted []model.Investment
	for i := range newRecords {
		id := identity.Identify(&newRecords[i])
		if _, dup := newByIdentity[id]; dup {
			log.Warn("co-arriving duplicate identity dropped",
				zap.String("identity", id.String()),
				zap.String("name", newRecords[i].Name),
			)
			continue
		}
		if id.Weak() {
			log.Warn("record persisted with weak content-hash identity",
				zap.String("name", newRecords[i].Name),
				zap.String("beneficiary", newRecords[i].Beneficiary),
			)
		}
		newByIdentity[id] = len(accepted)
		accepted = append(accepted, newRecords[i])
	}

	// Collect applicable revision edges: superseding record present among
	// the accepted new records or already persisted.
	presentADA := make(map[string]bool)
	for i := range accepted {
		if ada := accepted[i].ADA(); ada != "" {
			presentADA[ada] = true
		}
	}
	priorKnown := prior.KnownADAs()
	priorSuperseded := prior.SupersededADAs()

	appliedEdges := make(map[string]string) // original → replacedBy
	for supersedingADA, r := range revisions {
		if r.RevisesADA == "" {
			continue
		}
		if presentADA[supersedingADA] || priorKnown[supersedingADA] {
			appliedEdges[r.RevisesADA] = supersedingADA
		} else {
			log.Warn("revision edge not applied: superseding record absent",
				zap.String("original", r.RevisesADA),
				zap.String("replaced_by", supersedingADA),
			)
		}
	}

	// Prior records: keep unchanged, in order, unless superseded or
	// refreshed by an identical identity in the new batch.
	for i := range prior.Investments {
		rec := prior.Investments[i]
		ada := rec.ADA()
		if by, ok := appliedEdges[ada]; ok && ada != "" {
			log.Info("prior record superseded",
				zap.String("ada", ada),
				zap.String("replaced_by", by),
			)
			out.supersededDropped++
			continue
		}
		if _, ok := newByIdentity[identity.Identify(&rec)]; ok {
			// Policy: a re-extraction is an intentional refresh; the new
			// record replaces the stored one (see DESIGN.md).
			log.Warn("refreshed_existing: new extraction replaces stored record",
				zap.String("ada", ada),
			)
			continue
		}
		out.investments = append(out.investments, rec)
		out.keptPrior++
	}

	// Append the new batch, minus records superseded by co-arriving edges
	// or by an edge recorded in a prior run. A code the snapshot already
	// marks as replaced never comes back.
	for i := range accepted {
		rec := accepted[i]
		if ada := rec.ADA(); ada != "" {
			if _, ok := appliedEdges[ada]; ok {
				out.supersededDropped++
				continue
			}
			if priorSuperseded[ada] {
				log.Warn("superseded record resurfaced, dropped",
					zap.String("ada", ada),
				)
				out.supersededDropped++
				continue
			}
		}
		out.investments = append(out.investments, rec)
		out.added++
	}

	// Accumulate edges: everything applied before plus this run's.
	seen := make(map[model.RevisionEdge]bool)
	for _, e := range prior.Metadata.RevisionsExcluded {
		if !seen[e] {
			seen[e] = true
			out.edges = append(out.edges, e)
		}
	}
	originals := make([]string, 0, len(appliedEdges))
	for original := range appliedEdges {
		originals = append(originals, original)
	}
	sort.Strings(originals)
	for _, original := range originals {
		e := model.RevisionEdge{Original: original, ReplacedBy: appliedEdges[original]}
		if !seen[e] {
			seen[e] = true
			out.edges = append(out.edges, e)
		}
	}

	return out
}

// snapshot materializes the merge into a persistable snapshot.
func (m mergeResult) snapshot(now time.Time) *model.Snapshot {
	edges := m.edges
	if edges == nil {
		edges = []model.RevisionEdge{}
	}
	return &model.Snapshot{
		Metadata: model.Metadata{
			GeneratedAt:       now.UTC().Format(time.RFC3339),
			TotalInvestments:  len(m.investments),
			RevisionsExcluded: edges,
		},
		Investments: m.investments,
	}
}
