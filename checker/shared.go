package checker

import (
	"context"

	"golang.org/x/sync/singleflight"

	"github.com/lukemcguire/backlinkwatch/urlutil"
)

// sharedFetcher collapses concurrent fetches of the same page into one
// request. Several backlinks often sit on one live page.
type sharedFetcher struct {
	next  PageFetcher
	group singleflight.Group
}

func newSharedFetcher(next PageFetcher) *sharedFetcher {
	return &sharedFetcher{next: next}
}

func (s *sharedFetcher) Fetch(ctx context.Context, rawURL string) (*Page, error) {
	key, err := urlutil.Normalize(rawURL)
	if err != nil {
		key = rawURL
	}

	v, err, _ := s.group.Do(key, func() (any, error) {
		return s.next.Fetch(ctx, rawURL)
	})
	page, _ := v.(*Page)
	return page, err
}
