// Package model defines the canonical investment entities shared across the
// ingestion and reconciliation pipeline.
package model

// Category classifies an investment into one of the fixed sector buckets.
type Category string

const (
	CategoryProduction  Category = "production"
	CategoryTourism     Category = "tourism"
	CategoryServices    Category = "services"
	CategoryEnergy      Category = "energy"
	CategoryRealEstate  Category = "real-estate"
	CategoryUnspecified Category = ""
)

// ValidCategory reports whether c is one of the five known sector values.
func ValidCategory(c Category) bool {
	switch c {
	case CategoryProduction, CategoryTourism, CategoryServices, CategoryEnergy, CategoryRealEstate:
		return true
	default:
		return false
	}
}

// IncentiveType tags an approved incentive with its legal instrument kind.
type IncentiveType string

const (
	IncentiveFastTrack      IncentiveType = "fast_track_licensing"
	IncentiveTax            IncentiveType = "tax_exemption"
	IncentiveGrant          IncentiveType = "grant"
	IncentiveLeasingSubsidy IncentiveType = "leasing_subsidy"
	IncentivePayrollSubsidy IncentiveType = "payroll_subsidy"
	IncentiveShoreUse       IncentiveType = "shore_use"
	IncentiveExpropriation  IncentiveType = "expropriation"
)

// AmountEntry is a single line of the total-amount breakdown.
type AmountEntry struct {
	Amount      float64 `json:"amount"`
	Description string  `json:"description"`
}

// Location is a project site, optionally geocoded.
type Location struct {
	Description  string   `json:"description"`
	TextLocation string   `json:"textLocation,omitempty"`
	Lat          *float64 `json:"lat,omitempty"`
	Lon          *float64 `json:"lon,omitempty"`
}

// FundingSource describes who funds what share of the investment.
// Perc is a fraction of the total in [0,1] when present.
type FundingSource struct {
	Source string   `json:"source"`
	Perc   *float64 `json:"perc,omitempty"`
	Amount *float64 `json:"amount,omitempty"`
}

// Incentive is an approved incentive entry.
type Incentive struct {
	Name string        `json:"name"`
	Type IncentiveType `json:"incentiveType,omitempty"`
}

// Reference carries the identity-bearing fields of an investment. A persisted
// record must have at least a Diavgeia ADA or a source URL; FEK is a gazette
// citation kept for display only.
type Reference struct {
	DiavgeiaADA string `json:"diavgeiaADA,omitempty"`
	URL         string `json:"url,omitempty"`
	FEK         string `json:"fek,omitempty"`
	// RevisesADA is the ADA of a decision this one supersedes.
	RevisesADA string `json:"revisesADA,omitempty"`
}

// Investment is the canonical record extracted from a ministerial decision.
type Investment struct {
	DateApproved       *string         `json:"dateApproved"`
	Beneficiary        string          `json:"beneficiary"`
	Name               string          `json:"name"`
	TotalAmount        float64         `json:"totalAmount"`
	AmountBreakdown    []AmountEntry   `json:"amountBreakdown,omitempty"`
	Locations          []Location      `json:"locations,omitempty"`
	FundingSources     []FundingSource `json:"fundingSource,omitempty"`
	IncentivesApproved []Incentive     `json:"incentivesApproved,omitempty"`
	Category           Category        `json:"category,omitempty"`
	Reference          Reference       `json:"reference"`
}

// ADA returns the record's Diavgeia registry code, empty if none.
func (inv *Investment) ADA() string {
	return inv.Reference.DiavgeiaADA
}
