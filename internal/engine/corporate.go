package engine

import (
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/tradefolio/tradefolio/internal/domain"
	"github.com/tradefolio/tradefolio/pkg/logger"
	"github.com/tradefolio/tradefolio/pkg/metrics"
)

// AdjustLots rescales every lot acquired before the action's effective date:
// quantity is multiplied by ratio_to/ratio_from and unit prices divided by
// it, so each lot's total cost is preserved. Later lots already trade
// post-split and pass through untouched.
//
// The adjuster keeps no applied-state; idempotence is the caller's job by
// always feeding it a ledger rebuilt from unadjusted trades.
func AdjustLots(lots []domain.Lot, action domain.CorporateAction) []domain.Lot {
	factor := action.RatioTo / action.RatioFrom
	out := make([]domain.Lot, len(lots))
	for i, l := range lots {
		if l.AcquisitionDate.Before(action.EffectiveDate) {
			l.Quantity *= factor
			l.GrossUnitPrice /= factor
			l.NetUnitPrice /= factor
		}
		out[i] = l
	}
	return out
}

// AdjustLedger applies the given corporate actions to the ledger in
// ascending effective-date order. Inactive rows, non-split types and
// non-positive ratios are skipped with a diagnostic, never an error: a bad
// upstream action row must not sink the whole holdings report.
func AdjustLedger(ledger Ledger, actions []domain.CorporateAction) []domain.SkippedAction {
	ordered := make([]domain.CorporateAction, len(actions))
	copy(ordered, actions)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].EffectiveDate.Before(ordered[j].EffectiveDate)
	})

	var skipped []domain.SkippedAction
	for _, action := range ordered {
		if reason := checkAction(action); reason != "" {
			skipped = append(skipped, domain.SkippedAction{Action: action, Reason: reason})
			metrics.SkippedCorporateActions.Inc()
			logger.Warn("corporate action skipped",
				zap.String("symbol", action.Symbol),
				zap.String("action_type", action.ActionType),
				zap.String("reason", reason))
			continue
		}
		q, ok := ledger[action.Symbol]
		if !ok {
			continue
		}
		q.lots = AdjustLots(q.lots, action)
	}
	return skipped
}

func checkAction(a domain.CorporateAction) string {
	if !a.Active {
		return "action is inactive"
	}
	if a.ActionType != domain.ActionSplit {
		// Bonus issues and mergers are stored but not yet consumed here.
		return fmt.Sprintf("action type %s not handled by lot adjustment", a.ActionType)
	}
	if a.RatioFrom <= 0 || a.RatioTo <= 0 {
		return fmt.Sprintf("non-positive split ratio %v:%v", a.RatioFrom, a.RatioTo)
	}
	return ""
}
