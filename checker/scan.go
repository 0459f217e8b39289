package checker

import (
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"

	"github.com/lukemcguire/backlinkwatch/anchor"
	"github.com/lukemcguire/backlinkwatch/result"
	"github.com/lukemcguire/backlinkwatch/urlutil"
)

// ScanResult is the best link to the target found on a page.
type ScanResult struct {
	Found      bool
	MatchType  anchor.Kind
	Context    string // longest surrounding text across qualifying links
	Href       string // resolved href of the reported link
	AnchorText string // visible text of the reported link
	Candidates int    // anchors pointing at the target URL, qualifying or not
}

// Scan parses an HTML page and looks for a link to targetURL carrying
// targetAnchor. Relative hrefs are resolved against baseURL, which should be
// the page's URL after redirects. Malformed markup is parsed best effort.
func Scan(body io.Reader, baseURL, targetURL, targetAnchor string) (ScanResult, error) {
	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return ScanResult{MatchType: anchor.None}, fmt.Errorf("parse html: %w", err)
	}
	return ScanDocument(doc, baseURL, targetURL, targetAnchor), nil
}

// ScanDocument walks every anchor with a non-empty href in document order.
//
// A link qualifies when its URL matches the target and either its text
// matches the expected anchor or its text is merely non-empty. The latter is
// reported as a partial match, since publishers often rewrite anchor text.
// The reported match is the strongest qualifying link (exact, partial,
// word-based, then the non-empty-text fallback); ties go to the earliest
// link. Context is the longest context among all qualifying links.
func ScanDocument(doc *goquery.Document, baseURL, targetURL, targetAnchor string) ScanResult {
	res := ScanResult{MatchType: anchor.None}
	best := -1

	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href := strings.TrimSpace(s.AttrOr("href", ""))
		if href == "" {
			return
		}

		resolved, ok := urlutil.ResolveHref(baseURL, href)
		if !ok || !urlutil.URLsMatch(targetURL, resolved) {
			return
		}
		res.Candidates++

		text := collapseSpace(s.Text())
		strength, kind := candidateStrength(targetAnchor, text)
		if strength < 0 {
			return
		}

		surrounding := linkContext(s, text, resolved)
		if utf8.RuneCountInString(surrounding) > utf8.RuneCountInString(res.Context) {
			res.Context = surrounding
		}

		if strength > best {
			best = strength
			res.Found = true
			res.MatchType = kind
			res.Href = resolved
			res.AnchorText = text
		}
	})

	return res
}

// candidateStrength ranks a link's text. Genuine matches rank by kind,
// the non-empty fallback ranks below every genuine match, and links
// with no text do not qualify (-1).
func candidateStrength(expected, text string) (int, anchor.Kind) {
	m := anchor.Match(expected, text)
	if m.IsMatch {
		return m.Kind.Rank(), m.Kind
	}
	if text != "" {
		return 0, anchor.Partial
	}
	return -1, anchor.None
}

// linkContext returns the parent element's text, or a synthesized line
// when the parent carries none.
func linkContext(s *goquery.Selection, text, href string) string {
	context := collapseSpace(s.Parent().Text())
	if context == "" {
		context = fmt.Sprintf("Link found: \"%s\" -> %s", text, href)
	}
	return result.Truncate(context, result.MaxContextLen)
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
