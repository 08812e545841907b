package reconcile

import (
	"math"

	"go.uber.org/zap"

	"github.com/christosporios/strategic-investments-gr/internal/model"
)

// sumTolerance is the relative slack allowed before a funding or breakdown
// sum counts as mismatched against the record total.
const sumTolerance = 0.01

// WarningCounts summarizes the data-quality issues in a snapshot. The report
// is emitted after every run whether or not anything was violated.
type WarningCounts struct {
	MissingCoordinates  int `json:"missingCoordinates"`
	FundingSumMismatch  int `json:"fundingSumMismatch"`
	BreakdownMismatch   int `json:"breakdownMismatch"`
	ZeroTotalAmount     int `json:"zeroTotalAmount"`
	MissingRegistryCode int `json:"missingRegistryCode"`
}

// CollectWarnings scans the snapshot for data-quality issues.
func CollectWarnings(snap *model.Snapshot) WarningCounts {
	var w WarningCounts
	for i := range snap.Investments {
		inv := &snap.Investments[i]

		for _, loc := range inv.Locations {
			if loc.Lat == nil || loc.Lon == nil {
				w.MissingCoordinates++
				break
			}
		}

		if inv.TotalAmount == 0 {
			w.ZeroTotalAmount++
		}

		if inv.ADA() == "" {
			w.MissingRegistryCode++
		}

		if mismatchedFundingSum(inv) {
			w.FundingSumMismatch++
		}
		if mismatchedBreakdownSum(inv) {
			w.BreakdownMismatch++
		}
	}
	return w
}

// Log emits the per-category counts as one structured line.
func (w WarningCounts) Log(log *zap.Logger) {
	log.Info("data quality report",
		zap.Int("missing_coordinates", w.MissingCoordinates),
		zap.Int("funding_sum_mismatch", w.FundingSumMismatch),
		zap.Int("breakdown_sum_mismatch", w.BreakdownMismatch),
		zap.Int("zero_total_amount", w.ZeroTotalAmount),
		zap.Int("missing_registry_code", w.MissingRegistryCode),
	)
}

// mismatchedFundingSum reports whether the funding fractions are present and
// fail to cover the total within tolerance.
func mismatchedFundingSum(inv *model.Investment) bool {
	if len(inv.FundingSources) == 0 || inv.TotalAmount == 0 {
		return false
	}
	var sum float64
	var any bool
	for _, fs := range inv.FundingSources {
		switch {
		case fs.Perc != nil:
			sum += *fs.Perc
			any = true
		case fs.Amount != nil:
			sum += *fs.Amount / inv.TotalAmount
			any = true
		}
	}
	if !any {
		return false
	}
	return math.Abs(sum-1) > sumTolerance
}

// mismatchedBreakdownSum reports whether a present breakdown disagrees with
// the total within tolerance.
func mismatchedBreakdownSum(inv *model.Investment) bool {
	if len(inv.AmountBreakdown) == 0 || inv.TotalAmount == 0 {
		return false
	}
	var sum float64
	for _, e := range inv.AmountBreakdown {
		sum += e.Amount
	}
	return math.Abs(sum-inv.TotalAmount)/inv.TotalAmount > sumTolerance
}
