// Package urlutil provides URL normalization and comparison helpers used to
// decide whether a link found on a page points at a backlink's target.
package urlutil

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Normalize takes a raw URL string and returns a normalized version suitable
// as a fetch key. Normalization includes:
// - Lowercasing the scheme and host
// - Stripping fragments (#section)
// - Stripping trailing slashes (except for root path "/")
// - Preserving query parameters
//
// Returns an error if the input is empty or cannot be parsed as a valid URL.
func Normalize(rawURL string) (string, error) {
	if rawURL == "" {
		return "", errors.New("cannot normalize empty URL")
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("normalize URL %q: %w", rawURL, err)
	}

	if parsed.Scheme == "" || parsed.Host == "" {
		return "", errors.New("URL must have both scheme and host")
	}

	parsed.Scheme = strings.ToLower(parsed.Scheme)
	parsed.Host = strings.ToLower(parsed.Host)
	parsed.Fragment = ""

	if parsed.Path != "/" && strings.HasSuffix(parsed.Path, "/") {
		parsed.Path = strings.TrimSuffix(parsed.Path, "/")
	}

	return parsed.String(), nil
}

// Canonical returns the comparison form of a URL: the lowercased host with
// any leading "www." labels removed, followed by the escaped path without
// trailing slashes. Scheme, port, credentials, query and fragment are dropped,
// so "https://www.Example.com/about/" and "example.com/about" share one form.
//
// Canonical never fails. Input that cannot be parsed even after prefixing
// "https://" is lowercased and stripped of its scheme and "www." prefix with
// plain text substitution. Empty input yields "".
func Canonical(rawURL string) string {
	trimmed := strings.TrimSpace(rawURL)
	if trimmed == "" {
		return ""
	}

	parsed, err := url.Parse(withScheme(trimmed))
	if err != nil {
		return fallbackCanonical(trimmed)
	}

	host := stripWWW(strings.ToLower(parsed.Hostname()))
	return host + strings.TrimRight(parsed.EscapedPath(), "/")
}

// URLsMatch reports whether foundURL points at targetURL. The canonical forms
// must be identical, or the domains must be equal while at least one side is
// domain-only: a homepage placement satisfies any target on that domain and
// vice versa. Empty input on either side never matches.
func URLsMatch(targetURL, foundURL string) bool {
	target := Canonical(targetURL)
	found := Canonical(foundURL)
	if target == "" || found == "" {
		return false
	}
	if target == found {
		return true
	}

	targetDomain, targetPath := splitDomain(target)
	foundDomain, foundPath := splitDomain(found)
	if targetDomain == "" || targetDomain != foundDomain {
		return false
	}
	return targetPath == "" || foundPath == ""
}

// withScheme prefixes https:// to input that carries no scheme of its own.
func withScheme(s string) string {
	switch {
	case hasScheme(s):
		return s
	case strings.HasPrefix(s, "//"):
		return "https:" + s
	default:
		return "https://" + s
	}
}

// hasScheme reports whether s starts with "scheme://".
func hasScheme(s string) bool {
	scheme, _, ok := strings.Cut(s, "://")
	if !ok || scheme == "" {
		return false
	}
	for i, r := range scheme {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case i > 0 && (r >= '0' && r <= '9' || r == '+' || r == '-' || r == '.'):
		default:
			return false
		}
	}
	return true
}

// fallbackCanonical cleans input that url.Parse rejects.
func fallbackCanonical(s string) string {
	out := strings.ToLower(s)
	for {
		stripped := strings.TrimPrefix(out, "https://")
		stripped = strings.TrimPrefix(stripped, "http://")
		stripped = stripWWW(stripped)
		if stripped == out {
			break
		}
		out = stripped
	}
	return strings.TrimRight(out, "/")
}

// stripWWW removes every leading "www." label so the result is stable under
// repeated application.
func stripWWW(host string) string {
	for strings.HasPrefix(host, "www.") {
		host = strings.TrimPrefix(host, "www.")
	}
	return host
}

// splitDomain splits a canonical form at its first slash.
func splitDomain(canonical string) (domain, path string) {
	domain, path, _ = strings.Cut(canonical, "/")
	return domain, path
}
