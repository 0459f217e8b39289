package result

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"net"
	"strings"
	"syscall"
	"unicode/utf8"
)

// ErrorCategory represents the classification of a failed check.
type ErrorCategory string

const (
	CategoryTimeout           ErrorCategory = "timeout"
	CategoryDNSFailure        ErrorCategory = "dns_failure"
	CategoryConnectionRefused ErrorCategory = "connection_refused"
	CategoryTLS               ErrorCategory = "tls"
	Category3xx               ErrorCategory = "3xx"
	Category4xx               ErrorCategory = "4xx"
	Category5xx               ErrorCategory = "5xx"
	CategoryRedirectLoop      ErrorCategory = "redirect_loop"
	CategoryUnknown           ErrorCategory = "unknown"
)

// ErrRedirectLoop is returned by the fetcher's redirect policy when a
// redirect chain revisits a URL.
var ErrRedirectLoop = errors.New("redirect loop detected")

// MaxDetailLen bounds the transport error text kept as an error detail.
const MaxDetailLen = 100

// ClassifyError determines the error category from a transport error or, when
// a response was received, from its HTTP status code.
func ClassifyError(err error, statusCode int) ErrorCategory {
	if errors.Is(err, ErrRedirectLoop) {
		return CategoryRedirectLoop
	}

	switch {
	case statusCode >= 300 && statusCode <= 399:
		return Category3xx
	case statusCode >= 400 && statusCode <= 499:
		return Category4xx
	case statusCode >= 500:
		return Category5xx
	}

	if err == nil {
		return CategoryUnknown
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return CategoryTimeout
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		if dnsErr.IsTimeout {
			return CategoryTimeout
		}
		return CategoryDNSFailure
	}

	if errors.Is(err, syscall.ECONNREFUSED) {
		return CategoryConnectionRefused
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return CategoryTimeout
	}

	if isTLSError(err) {
		return CategoryTLS
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" && strings.Contains(opErr.Error(), "connection refused") {
		return CategoryConnectionRefused
	}

	return CategoryUnknown
}

func isTLSError(err error) bool {
	var (
		recordErr   tls.RecordHeaderError
		certErr     *tls.CertificateVerificationError
		unknownAuth x509.UnknownAuthorityError
		hostnameErr x509.HostnameError
		invalidErr  x509.CertificateInvalidError
	)
	return errors.As(err, &recordErr) ||
		errors.As(err, &certErr) ||
		errors.As(err, &unknownAuth) ||
		errors.As(err, &hostnameErr) ||
		errors.As(err, &invalidErr)
}

// TransportDetail renders a transport failure as text for a dashboard cell.
// DNS failures and timeouts get fixed wording; anything else is the error
// message cut to MaxDetailLen runes.
func TransportDetail(cat ErrorCategory, err error) string {
	switch cat {
	case CategoryDNSFailure:
		return "Domain not found (DNS error)"
	case CategoryTimeout:
		return "Connection timeout"
	case CategoryConnectionRefused:
		return "Connection refused"
	case CategoryRedirectLoop:
		return "Redirect loop detected"
	}
	if err == nil {
		return "Request failed"
	}
	return Truncate(err.Error(), MaxDetailLen)
}

// Truncate cuts s to at most n runes.
func Truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}

// FormatCategory returns a human-readable label for an error category.
func FormatCategory(cat ErrorCategory) string {
	switch cat {
	case CategoryTimeout:
		return "Timeouts"
	case CategoryDNSFailure:
		return "DNS Failures"
	case CategoryConnectionRefused:
		return "Connection Refused"
	case CategoryTLS:
		return "TLS Failures"
	case Category3xx:
		return "Redirects (3xx)"
	case Category4xx:
		return "Client Errors (4xx)"
	case Category5xx:
		return "Server Errors (5xx)"
	case CategoryRedirectLoop:
		return "Redirect Loops"
	default:
		return "Other Errors"
	}
}
