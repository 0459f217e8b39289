package backlink

import (
	"fmt"

	"github.com/lukemcguire/backlinkwatch/anchor"
	"github.com/lukemcguire/backlinkwatch/result"
)

// Stats aggregates the state of a set of records.
type Stats struct {
	Total          int `json:"total" db:"total"`
	Live           int `json:"live_count" db:"live_count"`
	Errors         int `json:"error_count" db:"error_count"`
	Unreachable    int `json:"unreachable_count" db:"unreachable_count"`
	LinksFound     int `json:"links_found" db:"links_found"`
	Pending        int `json:"pending_count" db:"pending_count"`
	NotFound       int `json:"not_found_404" db:"not_found_404"`
	Redirects      int `json:"redirects" db:"redirects"`
	ExactMatches   int `json:"exact_matches" db:"exact_matches"`
	PartialMatches int `json:"partial_matches" db:"partial_matches"`
}

// Summarize counts records the same way the store's stats query does.
func Summarize(records []Record) Stats {
	var s Stats
	for _, r := range records {
		s.Total++
		switch r.Status {
		case result.StatusLive:
			s.Live++
		case result.StatusError:
			s.Errors++
		case result.StatusUnreachable:
			s.Unreachable++
		case result.StatusPending, "":
			s.Pending++
		}
		if r.LinkFound {
			s.LinksFound++
		}
		if r.HTTPStatus == 404 {
			s.NotFound++
		}
		if r.HTTPStatus >= 300 && r.HTTPStatus < 400 {
			s.Redirects++
		}
		switch r.MatchType {
		case anchor.Exact:
			s.ExactMatches++
		case anchor.Partial:
			s.PartialMatches++
		}
	}
	return s
}

// Percent formats n as a share of the total with two decimals.
func (s Stats) Percent(n int) string {
	if s.Total == 0 {
		return "0.00%"
	}
	return fmt.Sprintf("%.2f%%", float64(n)*100/float64(s.Total))
}
