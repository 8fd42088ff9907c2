// Package attribution splits a cumulative numeric signal across the
// categories that were active while it grew.
package attribution

import (
	"fmt"
	"time"
)

// #region accumulation

// Accumulation is the amount credited to one category.
type Accumulation struct {
	Amount  float64   `json:"amount"`
	LastEnd time.Time `json:"last_end"` // end of the last interval credited to the category
}

// InvariantViolation records a delta that went down without resetting to zero.
// The delta is counted as zero and aggregation continues.
type InvariantViolation struct {
	At       time.Time `json:"at"`
	Previous float64   `json:"previous"`
	Value    float64   `json:"value"`
}

func (v InvariantViolation) String() string {
	return fmt.Sprintf("delta decreased from %.2f to %.2f at %s", v.Previous, v.Value, v.At.Format(time.RFC3339))
}

// Result is the output of one Aggregate call.
type Result struct {
	ByCategory   map[string]Accumulation `json:"by_category"`
	Unattributed float64                 `json:"unattributed"` // growth with no category in effect
	Violations   []InvariantViolation    `json:"violations,omitempty"`
}

// #endregion accumulation

// #region decision

// Decision compares one category's accumulation to its threshold.
type Decision struct {
	Category  string    `json:"category"`
	Amount    float64   `json:"amount"`
	Threshold float64   `json:"threshold"`
	Met       bool      `json:"met"`
	LastEnd   time.Time `json:"last_end,omitzero"` // set only when Met
	Reason    string    `json:"reason"`
}

// #endregion decision
