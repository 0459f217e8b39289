package checker

import (
	"github.com/lukemcguire/backlinkwatch/anchor"
	"github.com/lukemcguire/backlinkwatch/result"
)

// CheckEvent reports progress after one record has been checked.
type CheckEvent struct {
	RecordID   int64
	LiveLink   string
	Status     result.Status
	HTTPStatus int
	LinkFound  bool
	MatchType  anchor.Kind
	Detail     string
	Checked    int // records checked so far in this run
	Total      int // records selected for this run
	Found      int // checked records carrying the link so far
	Failed     int // error or unreachable so far
}
