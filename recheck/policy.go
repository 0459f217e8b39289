// Package recheck decides which backlinks are due for another check and in
// which order a backlog is worked through.
package recheck

import (
	"slices"
	"time"

	"github.com/lukemcguire/backlinkwatch/backlink"
)

// Default policy values.
const (
	DefaultRetryCooldown  = 2 * time.Hour
	DefaultStableInterval = 24 * time.Hour
	DefaultMaxRetries     = 3
)

// Policy holds the recheck intervals.
//
// A failing record is retried after RetryCooldown while its retry count is
// below MaxRetries. Healthy records, and failing records that reached the
// ceiling, are rechecked every StableInterval so a permanently dead page is
// not hammered but a recovery is still noticed.
type Policy struct {
	RetryCooldown  time.Duration
	StableInterval time.Duration
	MaxRetries     int
}

// DefaultPolicy returns the policy used when nothing is configured.
func DefaultPolicy() Policy {
	return Policy{
		RetryCooldown:  DefaultRetryCooldown,
		StableInterval: DefaultStableInterval,
		MaxRetries:     DefaultMaxRetries,
	}
}

// Interval returns how long rec must rest after its last check.
func (p Policy) Interval(rec backlink.Record) time.Duration {
	if rec.Status.Failed() && rec.RetryCount < p.MaxRetries {
		return p.RetryCooldown
	}
	return p.StableInterval
}

// Due reports whether rec should be checked at now.
func (p Policy) Due(rec backlink.Record, now time.Time) bool {
	if rec.NeverChecked() {
		return true
	}
	return !now.Before(rec.LastChecked.Add(p.Interval(rec)))
}

// SelectDue returns the due records in check order. A limit of zero or less
// returns all of them.
func (p Policy) SelectDue(records []backlink.Record, now time.Time, limit int) []backlink.Record {
	due := make([]backlink.Record, 0, len(records))
	for _, rec := range records {
		if p.Due(rec, now) {
			due = append(due, rec)
		}
	}
	Order(due)
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}
	return due
}

// Order sorts records in place: never-checked records first, then ascending
// retry count, then oldest last check. ID breaks the remaining ties.
func Order(records []backlink.Record) {
	slices.SortStableFunc(records, Compare)
}

// Compare orders two records for a backlog run.
func Compare(a, b backlink.Record) int {
	aNew, bNew := a.LastChecked == nil, b.LastChecked == nil
	switch {
	case aNew && !bNew:
		return -1
	case !aNew && bNew:
		return 1
	}

	if a.RetryCount != b.RetryCount {
		if a.RetryCount < b.RetryCount {
			return -1
		}
		return 1
	}

	if !aNew {
		if c := a.LastChecked.Compare(*b.LastChecked); c != 0 {
			return c
		}
	}

	switch {
	case a.ID < b.ID:
		return -1
	case a.ID > b.ID:
		return 1
	default:
		return 0
	}
}
