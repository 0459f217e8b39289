package urlutil

import "testing"

func TestNormalize(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
		wantErr  bool
	}{
		{
			name:     "fragment stripping",
			input:    "https://example.com/page#section",
			expected: "https://example.com/page",
		},
		{
			name:     "trailing slash stripping",
			input:    "https://example.com/about/",
			expected: "https://example.com/about",
		},
		{
			name:     "root path keeps slash",
			input:    "https://example.com/",
			expected: "https://example.com/",
		},
		{
			name:     "query params preserved",
			input:    "https://example.com/search?q=foo",
			expected: "https://example.com/search?q=foo",
		},
		{
			name:     "scheme lowercased",
			input:    "HTTPS://Example.Com/Page",
			expected: "https://example.com/Page",
		},
		{
			name:    "empty string returns error",
			input:   "",
			wantErr: true,
		},
		{
			name:    "invalid URL returns error",
			input:   "://invalid",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Normalize(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("Normalize() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if got != tt.expected {
				t.Errorf("Normalize() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestCanonical(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "scheme and trailing slash", input: "https://example.com/", expected: "example.com"},
		{name: "www stripped", input: "http://www.example.com/blog", expected: "example.com/blog"},
		{name: "host lowercased path kept", input: "HTTPS://Example.COM/Blog/Post", expected: "example.com/Blog/Post"},
		{name: "no scheme", input: "example.com/about/", expected: "example.com/about"},
		{name: "protocol relative", input: "//www.example.com/x", expected: "example.com/x"},
		{name: "query and fragment dropped", input: "https://example.com/p?utm_source=x#top", expected: "example.com/p"},
		{name: "port dropped", input: "https://example.com:8443/p", expected: "example.com/p"},
		{name: "repeated trailing slashes", input: "https://example.com/a//", expected: "example.com/a"},
		{name: "surrounding whitespace", input: "  https://example.com  ", expected: "example.com"},
		{name: "empty", input: "", expected: ""},
		{name: "whitespace only", input: "   ", expected: ""},
		{name: "unparseable falls back to text cleanup", input: "HTTP://WWW.Exa mple.com/", expected: "exa mple.com"},
		{name: "invalid port falls back", input: "https://example.com:abc/", expected: "example.com:abc"},
		{name: "other scheme keeps host", input: "ftp://files.example.com/y/", expected: "files.example.com/y"},
		{name: "scheme in query is not a scheme", input: "example.com/go?to=https://other.com", expected: "example.com/go"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Canonical(tt.input); got != tt.expected {
				t.Errorf("Canonical(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestCanonicalIdempotent(t *testing.T) {
	inputs := []string{
		"https://Example.com/",
		"http://www.www.example.com/a/b/",
		"example.com",
		"https://example.com/caf%C3%A9",
		"https://example.com/a b",
		"https://example.com/x%3Fy",
		"HTTP://WWW.Exa mple.com/",
		"https://example.com:abc/",
		"/relative/path/",
		"mailto:someone@example.com",
		"ftp://www.example.com/y",
	}

	for _, input := range inputs {
		once := Canonical(input)
		twice := Canonical(once)
		if once != twice {
			t.Errorf("Canonical not idempotent for %q: %q then %q", input, once, twice)
		}
	}
}

func TestURLsMatch(t *testing.T) {
	tests := []struct {
		name   string
		target string
		found  string
		want   bool
	}{
		{name: "case slash and scheme insensitive", target: "https://Example.com/", found: "example.com", want: true},
		{name: "identical paths", target: "https://example.com/products", found: "http://www.example.com/products/", want: true},
		{name: "different non-empty paths", target: "https://example.com/products", found: "https://example.com/about", want: false},
		{name: "homepage target matches deep link", target: "https://example.com", found: "https://example.com/blog/post", want: true},
		{name: "deep target matches homepage link", target: "https://example.com/products", found: "https://www.example.com/", want: true},
		{name: "different domains", target: "https://example.com", found: "https://example.org", want: false},
		{name: "subdomain is a different domain", target: "https://example.com", found: "https://blog.example.com", want: false},
		{name: "tracking query ignored", target: "https://example.com/p", found: "https://example.com/p?ref=partner", want: true},
		{name: "empty target", target: "", found: "https://example.com", want: false},
		{name: "empty found", target: "https://example.com", found: "", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := URLsMatch(tt.target, tt.found); got != tt.want {
				t.Errorf("URLsMatch(%q, %q) = %v, want %v", tt.target, tt.found, got, tt.want)
			}
		})
	}
}
