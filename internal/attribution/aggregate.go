package attribution

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/homeauto/cosmo-monitor/internal/history"
)

// #region aggregate

// Aggregate walks delta oldest to newest and credits each increase to the
// category in effect at the start of the interval that carries it.
//
// A zero reading resets the running value. A decrease without a reset is
// recorded as an InvariantViolation and credited as zero. Non-numeric
// readings are skipped without touching the running value. logger may be nil.
func Aggregate(delta, category *history.History, logger *slog.Logger) Result {
	if logger == nil {
		logger = slog.Default()
	}

	res := Result{ByCategory: make(map[string]Accumulation)}
	var prev float64
	hasPrev := false

	for iv := range delta.Chronological() {
		value, ok := iv.Float()
		if !ok {
			logger.Debug("skipping non-numeric delta", "entity", delta.EntityID(), "state", iv.State, "start", iv.Start)
			continue
		}
		previous, hadPrev := prev, hasPrev
		prev, hasPrev = value, true

		if value == 0 || (hadPrev && value == previous) {
			continue
		}

		amount := value - previous
		if amount < 0 {
			v := InvariantViolation{At: iv.Start, Previous: previous, Value: value}
			res.Violations = append(res.Violations, v)
			logger.Error("invariant violation: negative delta",
				"entity", delta.EntityID(),
				"at", iv.Start,
				"previous", previous,
				"value", value,
			)
			continue
		}

		cat, err := category.StateAt(iv.Start)
		if err != nil {
			logger.Warn("no category for delta", "entity", category.EntityID(), "at", iv.Start, "amount", amount, "err", err)
			res.Unattributed += amount
			continue
		}

		acc := res.ByCategory[cat.State]
		acc.Amount += amount
		acc.LastEnd = iv.End
		res.ByCategory[cat.State] = acc
	}

	logger.Info("attributed deltas",
		"entity", delta.EntityID(),
		"categories", len(res.ByCategory),
		"unattributed", res.Unattributed,
		"violations", len(res.Violations),
	)
	return res
}

// #endregion aggregate

// #region decide

// Decide compares every accumulated category against its threshold. A
// category with no threshold is never met. Decisions are sorted by category.
func Decide(res Result, thresholds map[string]float64) []Decision {
	out := make([]Decision, 0, len(res.ByCategory))
	for cat, acc := range res.ByCategory {
		d := Decision{Category: cat, Amount: acc.Amount}

		threshold, ok := thresholds[cat]
		switch {
		case !ok:
			d.Reason = "no threshold configured"
		case acc.Amount >= threshold:
			d.Threshold = threshold
			d.Met = true
			d.LastEnd = acc.LastEnd
			d.Reason = fmt.Sprintf("cleaned enough (%.2f >= %.2f)", acc.Amount, threshold)
		default:
			d.Threshold = threshold
			d.Reason = fmt.Sprintf("not cleaned enough (%.2f < %.2f)", acc.Amount, threshold)
		}
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Category < out[j].Category })
	return out
}

// #endregion decide
