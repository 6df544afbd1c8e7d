package discover

import (
	"errors"
	"fmt"
	"net/url"
	"path"
	"sort"
	"strings"
)

// Document URLs key the per-document completion ledger, so the same
// document expressed through different URL spellings must canonicalise to
// one string or it will be processed twice.

// strippedParams lists query parameters that never affect which document a
// URL points at.
var strippedParams = map[string]struct{}{
	"utm_source":   {},
	"utm_medium":   {},
	"utm_campaign": {},
	"utm_term":     {},
	"utm_content":  {},
}

var defaultPorts = map[string]string{
	"http":  "80",
	"https": "443",
}

var (
	errEmptyURL    = errors.New("canonicalize url: empty input")
	errRelativeURL = errors.New("canonicalize url: missing scheme or host")
)

// CanonicalDocumentURL rewrites a document URL into its canonical form:
// lowercased scheme and host, default ports and fragments removed,
// dot-segments resolved, trailing slashes trimmed, query keys sorted with
// tracking parameters dropped.
func CanonicalDocumentURL(rawURL string) (string, error) {
	if rawURL == "" {
		return "", errEmptyURL
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("canonicalize url: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return "", errRelativeURL
	}

	parsed.Scheme = strings.ToLower(parsed.Scheme)
	parsed.Host = canonicalHost(parsed)
	parsed.Fragment = ""
	parsed.RawQuery = canonicalQuery(parsed.Query())
	parsed.Path = canonicalPath(parsed.Path)

	return parsed.String(), nil
}

// canonicalHost lowercases the hostname and drops the port when it is the
// scheme's default.
func canonicalHost(u *url.URL) string {
	hostname := strings.ToLower(u.Hostname())
	port := u.Port()

	if port == "" || port == defaultPorts[u.Scheme] {
		return hostname
	}
	return hostname + ":" + port
}

// canonicalQuery drops tracking parameters and sorts the remaining keys so
// parameter order cannot split one document into two ledger entries.
func canonicalQuery(values url.Values) string {
	keys := make([]string, 0, len(values))
	for key := range values {
		if _, tracked := strippedParams[key]; !tracked {
			keys = append(keys, key)
		}
	}
	if len(keys) == 0 {
		return ""
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, key := range keys {
		if i > 0 {
			b.WriteByte('&')
		}
		for j, val := range values[key] {
			if j > 0 {
				b.WriteByte('&')
			}
			b.WriteString(url.QueryEscape(key))
			b.WriteByte('=')
			b.WriteString(url.QueryEscape(val))
		}
	}
	return b.String()
}

// canonicalPath resolves dot-segments and trims trailing slashes while
// preserving the root "/".
func canonicalPath(p string) string {
	if p == "" || p == "/" {
		return "/"
	}
	return strings.TrimRight(path.Clean(p), "/")
}
