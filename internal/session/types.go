// Package session derives bounded activity windows from a reconstructed
// status history.
package session

import (
	"errors"
	"fmt"
	"time"
)

// ErrNoSessionFound means the scanned history held no active interval.
var ErrNoSessionFound = errors.New("no session found")

// #region session

// Session is a window of activity, possibly interrupted by pauses.
type Session struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Duration returns End - Start.
func (s Session) Duration() time.Duration {
	return s.End.Sub(s.Start)
}

func (s Session) String() string {
	return fmt.Sprintf("%s - %s (%s)", s.Start.Format(time.RFC3339), s.End.Format(time.RFC3339), s.Duration())
}

// #endregion session

// #region classifier

// Classifier decides which states make up a session.
type Classifier interface {
	// IsActive reports whether the state counts as activity.
	IsActive(state string) bool
	// IsPausable reports whether the state interrupts a session without ending it.
	IsPausable(state string) bool
}

// Classes is a set-based Classifier.
type Classes struct {
	active   map[string]struct{}
	pausable map[string]struct{}
}

// NewClasses builds a Classifier from explicit state lists.
func NewClasses(active, pausable []string) Classes {
	c := Classes{
		active:   make(map[string]struct{}, len(active)),
		pausable: make(map[string]struct{}, len(pausable)),
	}
	for _, s := range active {
		c.active[s] = struct{}{}
	}
	for _, s := range pausable {
		c.pausable[s] = struct{}{}
	}
	return c
}

// IsActive implements Classifier.
func (c Classes) IsActive(state string) bool {
	_, ok := c.active[state]
	return ok
}

// IsPausable implements Classifier.
func (c Classes) IsPausable(state string) bool {
	_, ok := c.pausable[state]
	return ok
}

// #endregion classifier
