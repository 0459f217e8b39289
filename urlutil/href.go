package urlutil

import "net/url"

// ResolveHref makes href absolute against pageURL, the page the link was
// found on. ok is false when the link cannot lead to a web page (mailto:,
// tel:, javascript:, ftp:). If either URL fails to parse, href is returned
// unchanged so it can still be compared literally.
func ResolveHref(pageURL, href string) (resolved string, ok bool) {
	base, err := url.Parse(pageURL)
	if err != nil {
		return href, true
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href, true
	}

	abs := base.ResolveReference(ref)
	if abs.Scheme != "http" && abs.Scheme != "https" {
		return "", false
	}
	return abs.String(), true
}
