// Package result defines the outcome of a single backlink check and the
// taxonomy used to explain failed checks.
package result

import (
	"time"

	"github.com/lukemcguire/backlinkwatch/anchor"
)

// Status is the terminal classification of a page fetch.
type Status string

const (
	StatusPending     Status = "pending" // never checked
	StatusLive        Status = "live"
	StatusError       Status = "error"
	StatusUnreachable Status = "unreachable"
)

// Failed reports whether the status counts as a failed check.
func (s Status) Failed() bool {
	return s == StatusError || s == StatusUnreachable
}

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusLive, StatusError, StatusUnreachable:
		return true
	default:
		return false
	}
}

// Fixed context and detail text.
const (
	NotFoundContext = "Target link not found on page"
	MaxContextLen   = 300
)

// Verification is the outcome of one check attempt against one backlink.
type Verification struct {
	Status        Status        `json:"status"`
	HTTPStatus    int           `json:"http_status,omitempty"` // 0 when no response was received
	LinkFound     bool          `json:"link_found"`
	MatchType     anchor.Kind   `json:"match_type"`
	Context       string        `json:"context,omitempty"`
	ErrorDetail   string        `json:"error_detail,omitempty"`
	ErrorCategory ErrorCategory `json:"error_category,omitempty"`
	FinalURL      string        `json:"final_url,omitempty"` // page URL after redirects
	CheckedAt     time.Time     `json:"checked_at"`
	Duration      time.Duration `json:"-"`
	DurationMS    int64         `json:"duration_ms"`
}

// BatchStats contains aggregate statistics for a batch run.
type BatchStats struct {
	Selected    int           // records handed to the run
	Checked     int           // records with a persisted verdict
	Live        int           // fetched with HTTP 200
	LinksFound  int           // live and carrying the target link
	Errors      int           // non-200 responses
	Unreachable int           // transport failures
	Skipped     int           // not checked because the run was cancelled
	Removed     int           // deleted by another caller before the verdict was saved
	Duration    time.Duration // wall time of the run
}

// Add folds one verification into the counters.
func (s *BatchStats) Add(v Verification) {
	s.Checked++
	switch v.Status {
	case StatusLive:
		s.Live++
		if v.LinkFound {
			s.LinksFound++
		}
	case StatusError:
		s.Errors++
	case StatusUnreachable:
		s.Unreachable++
	}
}

// Missing is the number of live pages that no longer carry the link.
func (s BatchStats) Missing() int {
	return s.Live - s.LinksFound
}
