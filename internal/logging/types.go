package logging

import "time"

// #region decision-entry
// DecisionEntry is a single row in the decision_log table: one room's
// verdict for one monitor run.
type DecisionEntry struct {
	RunID     string
	Room      string
	Area      float64
	Threshold float64
	Decision  string // "cleaned" | "not_cleaned" | "no_threshold"
	Reason    string
	LastEnd   time.Time // zero unless cleaned
	CreatedAt time.Time
}

// Decision values.
const (
	DecisionCleaned     = "cleaned"
	DecisionNotCleaned  = "not_cleaned"
	DecisionNoThreshold = "no_threshold"
)
// #endregion decision-entry
