package sources

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeURL(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "www and trailing slash", in: "https://www.EX.com/a/", want: "https://ex.com/a"},
		{name: "already canonical", in: "https://ex.com/a", want: "https://ex.com/a"},
		{name: "root path kept", in: "https://ex.com/", want: "https://ex.com/"},
		{name: "empty path becomes root", in: "https://ex.com", want: "https://ex.com/"},
		{name: "repeated root slashes", in: "https://www.ex.com//", want: "https://ex.com/"},
		{name: "empty path with query", in: "https://ex.com?b=2&a=1", want: "https://ex.com/?a=1&b=2"},
		{name: "default http port", in: "http://ex.com:80/rss", want: "http://ex.com/rss"},
		{name: "default https port", in: "https://ex.com:443/rss", want: "https://ex.com/rss"},
		{name: "custom port kept", in: "http://ex.com:8080/rss", want: "http://ex.com:8080/rss"},
		{name: "query sorted", in: "https://ex.com/feed?b=2&a=1", want: "https://ex.com/feed?a=1&b=2"},
		{name: "fragment dropped", in: "https://ex.com/feed#top", want: "https://ex.com/feed"},
		{name: "scheme lowercased", in: "HTTPS://Ex.com/Feed", want: "https://ex.com/Feed"},
		{name: "repeated www", in: "https://www.www.ex.com/rss", want: "https://ex.com/rss"},
		{name: "malformed falls back", in: "  Not A URL  ", want: "not a url"},
		{name: "missing scheme falls back", in: "Example.com/RSS", want: "example.com/rss"},
		{name: "bad escape falls back", in: "https://ex.com/%zz", want: "https://ex.com/%zz"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeURL(tt.in))
		})
	}
}

func TestNormalizeURLRootForms(t *testing.T) {
	assert.Equal(t, NormalizeURL("https://example.com"), NormalizeURL("https://www.example.com/"))
	assert.Equal(t, comparisonKey(NormalizeURL("http://example.com")), comparisonKey(NormalizeURL("https://example.com/")))
}

func TestNormalizeURLIdempotent(t *testing.T) {
	inputs := []string{
		"https://www.EX.com/a/",
		"http://www.www.news.example.org:80/rss//?z=1&a=2#frag",
		"https://[::1]:8443/feed/",
		"ftp://Files.Example.com/pub/",
		"garbage input",
		"https://ex.com/",
		"https://ex.com",
		"https://ex.com?b=2",
	}

	for _, in := range inputs {
		once := NormalizeURL(in)
		assert.Equal(t, once, NormalizeURL(once), "input %q", in)
	}
}

func TestHost(t *testing.T) {
	tests := map[string]string{
		"https://www.Example.com:8443/rss": "example.com",
		"http://news.example.com/feed":     "news.example.com",
		"not a url":                        "",
	}

	for in, want := range tests {
		assert.Equal(t, want, Host(in), "input %q", in)
	}
}

func TestLookupLinks(t *testing.T) {
	got := lookupLinks("https://www.example.com/rss/")
	require.Equal(t, []string{"https://www.example.com/rss/", "https://example.com/rss", "http://example.com/rss"}, got)

	assert.Len(t, lookupLinks("http://example.com/rss"), 2)
}

func TestComparisonKey(t *testing.T) {
	assert.Equal(t, comparisonKey("http://ex.com/rss"), comparisonKey("https://ex.com/rss"))
	assert.NotEqual(t, comparisonKey("ftp://ex.com/rss"), comparisonKey("https://ex.com/rss"))
}
