package model

// Source identifies which upstream system produced a candidate.
type Source string

const (
	SourceDiavgeia         Source = "diavgeia"
	SourceEnterpriseGreece Source = "enterprise_greece"
)

// Candidate is a raw decision listing from a source, not yet confirmed
// relevant or extracted.
type Candidate struct {
	ADA     string `json:"ada,omitempty"`
	Subject string `json:"subject"`
	URL     string `json:"url,omitempty"`
	// DocumentURL points at the decision PDF/text used for extraction.
	DocumentURL string `json:"documentUrl,omitempty"`
	IssueDate   string `json:"issueDate,omitempty"`
	// RelatedDecisions lists ADA codes of decisions this one references,
	// first entry being the decision it directly amends when present.
	RelatedDecisions []string `json:"relatedDecisions,omitempty"`
	// CorrectedVersionID is set when the registry marks this document as a
	// corrected re-upload of an earlier version.
	CorrectedVersionID string `json:"correctedVersionId,omitempty"`
	Source             Source `json:"source"`
}

// RevisionResult is the revision detector's verdict for one candidate.
// IsRevision with an empty RevisesADA means the candidate is known to revise
// something but the target could not be resolved; callers must not collapse
// that into "not a revision".
type RevisionResult struct {
	IsRevision bool
	RevisesADA string
}

// DateRange bounds a primary-source query window. Dates are ISO "2006-01-02".
type DateRange struct {
	From string
	To   string
}
