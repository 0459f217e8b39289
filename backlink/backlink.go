// Package backlink defines the record tracked for each placed backlink and
// how a verification outcome is folded into it.
package backlink

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lukemcguire/backlinkwatch/anchor"
	"github.com/lukemcguire/backlinkwatch/result"
)

// ErrInvalidRecord is returned when a record lacks a live link, target URL or
// target anchor.
var ErrInvalidRecord = errors.New("invalid backlink record")

// ErrNotFound is returned when a record no longer exists, e.g. because it was
// deleted while a check was in flight.
var ErrNotFound = errors.New("backlink not found")

// Record is one claimed backlink placement and the state of its last check.
type Record struct {
	ID           int64         `json:"id"`
	LiveLink     string        `json:"live_link"`
	TargetURL    string        `json:"target_url"`
	TargetAnchor string        `json:"target_anchor"`
	Status       result.Status `json:"status"`
	LinkFound    bool          `json:"link_found"`
	MatchType    anchor.Kind   `json:"anchor_match_type,omitempty"`
	Context      string        `json:"link_context,omitempty"`
	HTTPStatus   int           `json:"http_status,omitempty"`
	LastError    string        `json:"last_error,omitempty"`
	LastChecked  *time.Time    `json:"last_checked,omitempty"`
	RetryCount   int           `json:"retry_count"`
	CreatedAt    time.Time     `json:"created_at"`
}

// New returns a pending record with trimmed fields.
func New(liveLink, targetURL, targetAnchor string) Record {
	return Record{
		LiveLink:     strings.TrimSpace(liveLink),
		TargetURL:    strings.TrimSpace(targetURL),
		TargetAnchor: strings.TrimSpace(targetAnchor),
		Status:       result.StatusPending,
	}
}

// Validate checks that the fields needed for a verification are present.
func (r Record) Validate() error {
	var missing []string
	if strings.TrimSpace(r.LiveLink) == "" {
		missing = append(missing, "live_link")
	}
	if strings.TrimSpace(r.TargetURL) == "" {
		missing = append(missing, "target_url")
	}
	if strings.TrimSpace(r.TargetAnchor) == "" {
		missing = append(missing, "target_anchor")
	}
	if r.RetryCount < 0 {
		missing = append(missing, "retry_count")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: record %d: missing or invalid %s", ErrInvalidRecord, r.ID, strings.Join(missing, ", "))
	}
	return nil
}

// NeverChecked reports whether the record has no completed check.
func (r Record) NeverChecked() bool {
	return r.LastChecked == nil || r.Status == result.StatusPending || r.Status == ""
}

// NextRetryCount returns the retry counter after a check ending in status:
// failures increment it, anything else resets it to zero.
func NextRetryCount(prev int, status result.Status) int {
	if !status.Failed() {
		return 0
	}
	if prev < 0 {
		prev = 0
	}
	return prev + 1
}

// Apply returns a copy of r updated with the outcome of a check.
func (r Record) Apply(v result.Verification) Record {
	checked := v.CheckedAt
	r.Status = v.Status
	r.LinkFound = v.LinkFound
	r.MatchType = v.MatchType
	r.Context = v.Context
	r.HTTPStatus = v.HTTPStatus
	r.LastError = v.ErrorDetail
	r.LastChecked = &checked
	r.RetryCount = NextRetryCount(r.RetryCount, v.Status)
	return r
}
