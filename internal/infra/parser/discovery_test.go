package parser_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"feedproxy/internal/infra/parser"
)

func TestDiscoverFeedLink_FindsRelativeRSSLink(t *testing.T) {
	html := `<html><head><link rel="alternate" type="application/rss+xml" href="/rss"></head></html>`
	link, err := parser.DiscoverFeedLink([]byte(html), "https://example.com/blog/")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/rss", link)
}

func TestDiscoverFeedLink_FindsAbsoluteAtomLink(t *testing.T) {
	html := `<html><head>
	<link rel="alternate" type="application/atom+xml" href="https://cdn.example.com/feed.atom">
	</head></html>`
	link, err := parser.DiscoverFeedLink([]byte(html), "https://example.com/")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/feed.atom", link)
}

func TestDiscoverFeedLink_IgnoresUnrelatedLinkTypes(t *testing.T) {
	html := `<html><head><link rel="alternate" type="application/json" href="/data.json"></head></html>`
	link, err := parser.DiscoverFeedLink([]byte(html), "https://example.com/")
	require.NoError(t, err)
	assert.Empty(t, link)
}

func TestDiscoverFeedLink_ReturnsEmptyWhenNoFeedLinkPresent(t *testing.T) {
	html := `<html><body><p>No feeds here</p></body></html>`
	link, err := parser.DiscoverFeedLink([]byte(html), "https://example.com/")
	require.NoError(t, err)
	assert.Empty(t, link)
}

func TestDiscoverFeedLink_PrefersFirstMatch(t *testing.T) {
	html := `<html><head>
	<link rel="alternate" type="application/rss+xml" href="/feed1.xml">
	<link rel="alternate" type="application/rss+xml" href="/feed2.xml">
	</head></html>`
	link, err := parser.DiscoverFeedLink([]byte(html), "https://example.com/")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/feed1.xml", link)
}
