// Package revision decides whether an incoming decision supersedes an
// earlier one, and which one, from its subject line and registry metadata.
package revision

import (
	"context"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/christosporios/strategic-investments-gr/internal/model"
)

// adaPattern matches Diavgeia registry codes (ADA): ten uppercase
// Greek/Latin alphanumerics, a dash, and a 3-4 character suffix.
var adaPattern = regexp.MustCompile(`[Α-ΩA-Z0-9]{10}-[Α-ΩA-Z0-9]{3,4}`)

// DefaultKeywords is the Diavgeia revision vocabulary. The list is
// jurisdiction-specific and normally supplied through configuration;
// matching is exact substring, case-sensitive.
var DefaultKeywords = []string{
	"Τροποποίηση",
	"Διόρθωση",
	"Ανάκληση",
	"Αντικατάσταση",
	"ΟΡΘΗ ΕΠΑΝΑΛΗΨΗ",
}

// Lookup resolves a corrected-version pointer to the ADA of the decision it
// corrects. Implementations call the source registry and may fail.
type Lookup interface {
	LookupRevisionTarget(ctx context.Context, versionID string) (string, error)
}

// Detector inspects candidate metadata for revision signals.
type Detector struct {
	keywords []string
	lookup   Lookup
}

// NewDetector creates a detector with the given keyword list. An empty list
// falls back to DefaultKeywords. lookup may be nil when the registry offers
// no version resolution.
func NewDetector(keywords []string, lookup Lookup) *Detector {
	if len(keywords) == 0 {
		keywords = DefaultKeywords
	}
	return &Detector{keywords: keywords, lookup: lookup}
}

// Detect reports whether cand supersedes an earlier decision. The result
// distinguishes three cases: not a revision; a revision of a known ADA; and
// a revision whose target could not be resolved (IsRevision true, RevisesADA
// empty). The last must never be collapsed into the first.
func (d *Detector) Detect(ctx context.Context, cand model.Candidate) model.RevisionResult {
	lexical := d.subjectFlagsRevision(cand.Subject)

	// Explicit related-decision list is the highest-confidence source.
	if len(cand.RelatedDecisions) > 0 {
		return model.RevisionResult{IsRevision: true, RevisesADA: cand.RelatedDecisions[0]}
	}

	if lexical {
		if ada := d.adaFromSubject(cand.Subject, cand.ADA); ada != "" {
			return model.RevisionResult{IsRevision: true, RevisesADA: ada}
		}
	}

	if cand.CorrectedVersionID != "" {
		// The corrected-version marker itself signals a revision; without a
		// resolver the target simply stays unknown.
		if d.lookup == nil {
			return model.RevisionResult{IsRevision: true}
		}
		target, err := d.lookup.LookupRevisionTarget(ctx, cand.CorrectedVersionID)
		if err != nil {
			// The corrected-version marker is meaningful even when the
			// target cannot be resolved.
			zap.L().Warn("revision: target lookup failed",
				zap.String("ada", cand.ADA),
				zap.String("version_id", cand.CorrectedVersionID),
				zap.Error(err),
			)
			return model.RevisionResult{IsRevision: true}
		}
		if target != "" && target != cand.ADA {
			return model.RevisionResult{IsRevision: true, RevisesADA: target}
		}
		return model.RevisionResult{IsRevision: true}
	}

	if lexical {
		// Known-unresolved revision.
		return model.RevisionResult{IsRevision: true}
	}

	return model.RevisionResult{}
}

// subjectFlagsRevision checks the subject for revision vocabulary. Matching
// stays case-sensitive: the administrative phrasing is fixed.
func (d *Detector) subjectFlagsRevision(subject string) bool {
	for _, kw := range d.keywords {
		if strings.Contains(subject, kw) {
			return true
		}
	}
	return false
}

// adaFromSubject returns the first ADA-shaped token in the subject that is
// not the candidate's own code.
func (d *Detector) adaFromSubject(subject, own string) string {
	for _, m := range adaPattern.FindAllString(subject, -1) {
		if m != own {
			return m
		}
	}
	return ""
}
