package sources

import (
	"net/url"
	"strings"
)

const (
	schemeHTTP  = "http"
	schemeHTTPS = "https"
	wwwPrefix   = "www."
	defaultHTTP = "80"
	defaultTLS  = "443"
)

// NormalizeURL canonicalizes a feed URL for comparison. Hosts are lowercased
// and lose any leading "www.", default ports and trailing path slashes are
// dropped, an empty path becomes "/", query parameters are sorted and
// fragments removed. Input that does
// not parse as an absolute URL is only lowercased.
func NormalizeURL(raw string) string {
	trimmed := strings.TrimSpace(raw)

	u, err := url.Parse(trimmed)
	if err != nil || u.Host == "" || u.Scheme == "" {
		return strings.ToLower(trimmed)
	}

	u.Scheme = strings.ToLower(u.Scheme)

	host := stripWWW(strings.ToLower(u.Hostname()))
	if strings.Contains(host, ":") {
		host = "[" + host + "]"
	}

	if port := u.Port(); port != "" && !isDefaultPort(u.Scheme, port) {
		host += ":" + port
	}

	u.Host = host

	u.Path = strings.TrimRight(u.Path, "/")
	if u.Path == "" {
		u.Path = "/"
	}

	u.RawPath = ""
	u.RawQuery = u.Query().Encode()
	u.Fragment = ""
	u.RawFragment = ""

	return u.String()
}

// Host returns the lowercased host of raw without "www." and port.
func Host(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return ""
	}

	return stripWWW(strings.ToLower(u.Hostname()))
}

// alternateScheme swaps http and https on an already normalized URL.
func alternateScheme(normalized string) string {
	switch {
	case strings.HasPrefix(normalized, schemeHTTPS+"://"):
		return schemeHTTP + strings.TrimPrefix(normalized, schemeHTTPS)
	case strings.HasPrefix(normalized, schemeHTTP+"://"):
		return schemeHTTPS + strings.TrimPrefix(normalized, schemeHTTP)
	default:
		return ""
	}
}

// comparisonKey drops the http/https scheme from a normalized URL.
func comparisonKey(normalized string) string {
	for _, scheme := range []string{schemeHTTPS, schemeHTTP} {
		if rest, ok := strings.CutPrefix(normalized, scheme+"://"); ok {
			return rest
		}
	}

	return normalized
}

// lookupLinks lists the stored forms under which raw may already be registered.
func lookupLinks(raw string) []string {
	normalized := NormalizeURL(raw)
	links := []string{strings.TrimSpace(raw), normalized}

	if alt := alternateScheme(normalized); alt != "" {
		links = append(links, alt)
	}

	return dedupeStrings(links)
}

func stripWWW(host string) string {
	for strings.HasPrefix(host, wwwPrefix) {
		host = strings.TrimPrefix(host, wwwPrefix)
	}

	return host
}

func isDefaultPort(scheme, port string) bool {
	return (scheme == schemeHTTP && port == defaultHTTP) || (scheme == schemeHTTPS && port == defaultTLS)
}

func dedupeStrings(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := values[:0]

	for _, v := range values {
		if v == "" {
			continue
		}

		if _, ok := seen[v]; ok {
			continue
		}

		seen[v] = struct{}{}
		out = append(out, v)
	}

	return out
}
