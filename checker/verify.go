package checker

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/net/html/charset"

	"github.com/lukemcguire/backlinkwatch/anchor"
	"github.com/lukemcguire/backlinkwatch/backlink"
	"github.com/lukemcguire/backlinkwatch/logger"
	"github.com/lukemcguire/backlinkwatch/result"
)

// Verifier turns one backlink record into one verdict.
type Verifier struct {
	fetcher PageFetcher
	log     logger.Logger
	now     func() time.Time
}

// NewVerifier creates a Verifier. A nil logger disables logging.
func NewVerifier(fetcher PageFetcher, log logger.Logger) *Verifier {
	if log == nil {
		log = logger.NewNop()
	}
	return &Verifier{fetcher: fetcher, log: log, now: time.Now}
}

// Verify fetches rec.LiveLink and decides whether the target link is on it.
//
// Fetch, HTTP and parse failures are reported in the Verification, never as
// an error. The error return is reserved for records that fail Validate.
func (v *Verifier) Verify(ctx context.Context, rec backlink.Record) (result.Verification, error) {
	if err := rec.Validate(); err != nil {
		return result.Verification{}, err
	}

	start := v.now()
	page, err := v.fetcher.Fetch(ctx, rec.LiveLink)
	out := result.Verification{MatchType: anchor.None, CheckedAt: start}

	switch {
	case err != nil:
		fe := asFetchError(rec.LiveLink, err)
		out.Status = result.StatusUnreachable
		out.ErrorCategory = fe.Category
		out.ErrorDetail = fe.Detail
		v.log.Debug("page unreachable",
			logger.Int64("record_id", rec.ID),
			logger.String("live_link", rec.LiveLink),
			logger.String("category", string(fe.Category)),
			logger.Error(err),
		)

	case page.StatusCode != http.StatusOK:
		out.Status = result.StatusError
		out.HTTPStatus = page.StatusCode
		out.FinalURL = page.FinalURL
		out.ErrorCategory = result.ClassifyError(nil, page.StatusCode)
		out.ErrorDetail = StatusDetail(page.StatusCode)

	default:
		out.Status = result.StatusLive
		out.HTTPStatus = page.StatusCode
		out.FinalURL = page.FinalURL
		v.applyScan(&out, rec, page)
	}

	out.Duration = v.now().Sub(start)
	out.DurationMS = out.Duration.Milliseconds()
	return out, nil
}

func (v *Verifier) applyScan(out *result.Verification, rec backlink.Record, page *Page) {
	scan, err := Scan(decodeBody(page), page.FinalURL, rec.TargetURL, rec.TargetAnchor)
	if err != nil {
		v.log.Warn("html parse degraded",
			logger.Int64("record_id", rec.ID),
			logger.String("live_link", rec.LiveLink),
			logger.Error(err),
		)
	}

	if !scan.Found {
		out.Context = result.NotFoundContext
		out.ErrorDetail = result.NotFoundContext
		return
	}
	out.LinkFound = true
	out.MatchType = scan.MatchType
	out.Context = scan.Context
}

// decodeBody converts the body to UTF-8 using the declared or sniffed charset.
func decodeBody(page *Page) io.Reader {
	raw := bytes.NewReader(page.Body)
	decoded, err := charset.NewReader(raw, page.ContentType)
	if err != nil {
		return bytes.NewReader(page.Body)
	}
	return decoded
}

// StatusDetail describes a non-200 response for display.
func StatusDetail(code int) string {
	switch {
	case code == http.StatusNotFound:
		return "Page not found (404)"
	case code >= 300 && code <= 399:
		return fmt.Sprintf("Redirect (%d) - Check redirect destination", code)
	}
	if text := http.StatusText(code); text != "" {
		return fmt.Sprintf("HTTP %d - %s", code, text)
	}
	return fmt.Sprintf("HTTP %d", code)
}
