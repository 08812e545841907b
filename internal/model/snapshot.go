package model

// RevisionEdge records that one decision superseded another. Edges accumulate
// across runs inside the snapshot metadata as the audit trail of every
// exclusion ever applied.
type RevisionEdge struct {
	Original   string `json:"original"`
	ReplacedBy string `json:"replacedBy"`
}

// Metadata describes a snapshot generation.
type Metadata struct {
	GeneratedAt       string         `json:"generatedAt"`
	TotalInvestments  int            `json:"totalInvestments"`
	RevisionsExcluded []RevisionEdge `json:"revisionsExcluded"`
}

// Snapshot is the full persisted dataset: one JSON document, replaced
// atomically at the end of each run.
type Snapshot struct {
	Metadata    Metadata     `json:"metadata"`
	Investments []Investment `json:"investments"`
}

// KnownADAs returns the set of registry codes present in the snapshot.
func (s *Snapshot) KnownADAs() map[string]bool {
	known := make(map[string]bool, len(s.Investments))
	for i := range s.Investments {
		if ada := s.Investments[i].ADA(); ada != "" {
			known[ada] = true
		}
	}
	return known
}

// SupersededADAs returns the set of codes excluded by any accumulated
// revision edge.
func (s *Snapshot) SupersededADAs() map[string]bool {
	out := make(map[string]bool, len(s.Metadata.RevisionsExcluded))
	for _, e := range s.Metadata.RevisionsExcluded {
		out[e.Original] = true
	}
	return out
}
