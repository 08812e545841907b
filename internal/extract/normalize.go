package extract

import (
	"go.uber.org/zap"

	"github.com/christosporios/strategic-investments-gr/internal/model"
)

// Normalize repairs the extraction artifacts that recur in model output:
// missing totals when a breakdown exists, whole-number percentages, and
// category values outside the fixed enumeration. It mutates inv in place.
func Normalize(inv *model.Investment) {
	if inv.TotalAmount == 0 && len(inv.AmountBreakdown) > 0 {
		var sum float64
		for _, e := range inv.AmountBreakdown {
			sum += e.Amount
		}
		inv.TotalAmount = sum
	}

	for i := range inv.FundingSources {
		if p := inv.FundingSources[i].Perc; p != nil && *p > 1 {
			fixed := *p / 100
			inv.FundingSources[i].Perc = &fixed
		}
	}

	if inv.Category != model.CategoryUnspecified && !model.ValidCategory(inv.Category) {
		zap.L().Debug("extract: clearing unknown category",
			zap.String("ada", inv.ADA()),
			zap.String("category", string(inv.Category)),
		)
		inv.Category = model.CategoryUnspecified
	}
}
