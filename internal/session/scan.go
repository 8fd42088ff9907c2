package session

import (
	"fmt"
	"log/slog"

	"github.com/homeauto/cosmo-monitor/internal/history"
)

// #region scan

// Scan walks h from its newest interval backwards and returns the most recent
// run of active intervals. Pausable intervals inside the run are absorbed;
// the first interval that is neither active nor pausable ends the scan once
// an active interval has been seen. logger may be nil.
func Scan(h *history.History, c Classifier, logger *slog.Logger) (Session, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var s Session
	found := false
	for iv := range h.Backward() {
		switch {
		case c.IsActive(iv.State):
			if !found {
				s.End = iv.End
				found = true
			}
			s.Start = iv.Start
		case found && c.IsPausable(iv.State):
			// paused mid-session
		case found:
			logger.Debug("session found", "entity", h.EntityID(), "start", s.Start, "end", s.End, "closed_by", iv.State)
			return s, nil
		}
	}

	if !found {
		return Session{}, fmt.Errorf("%w in %s between %s and %s",
			ErrNoSessionFound, h.EntityID(), h.LowerLimit(), h.UpperLimit())
	}

	logger.Warn("session reaches start of history, start may be truncated",
		"entity", h.EntityID(),
		"start", s.Start,
		"end", s.End,
	)
	return s, nil
}

// #endregion scan

// #region refine

// RefineEnd moves the session end to the end of the newest interval in h whose
// state is confirming. The session is returned unchanged, with false, when h
// holds no such interval.
func RefineEnd(s Session, h *history.History, confirming string) (Session, bool) {
	for iv := range h.Backward() {
		if iv.State != confirming {
			continue
		}
		if iv.End.Before(s.Start) {
			break
		}
		s.End = iv.End
		return s, true
	}
	return s, false
}

// TrimAt moves the session end back to the start of the newest interval in h
// whose state is marker, e.g. the moment a device began returning home.
func TrimAt(s Session, h *history.History, marker string) (Session, bool) {
	for iv := range h.Backward() {
		if iv.State != marker {
			continue
		}
		if iv.Start.Before(s.Start) {
			break
		}
		s.End = iv.Start
		return s, true
	}
	return s, false
}

// #endregion refine
