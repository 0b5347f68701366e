package parser_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"feedproxy/internal/infra/parser"
)

const rssDoc = `<?xml version="1.0"?>
<rss version="2.0">
<channel>
	<title>Example Feed</title>
	<description>An example feed</description>
	<language>en-us</language>
	<item>
		<title>First Post</title>
		<link>https://example.com/first</link>
		<description>First post body</description>
		<comments>https://example.com/first#comments</comments>
		<pubDate>Mon, 02 Jan 2006 15:04:05 GMT</pubDate>
	</item>
	<item>
		<title>Second Post</title>
		<link>https://example.com/second</link>
		<description>Second post body</description>
	</item>
</channel>
</rss>`

const atomDoc = `<?xml version="1.0" encoding="utf-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
	<title>Atom Feed</title>
	<entry>
		<title>Atom Entry</title>
		<link href="https://example.com/entry" rel="alternate"/>
		<summary>Entry summary</summary>
		<published>2006-01-02T15:04:05Z</published>
	</entry>
</feed>`

const malformedDoc = `<rss><channel><title>Broken</title><item><title>Unterminated`

func TestParser_Parse_RSS(t *testing.T) {
	p := parser.New()
	feed, err := p.Parse([]byte(rssDoc), "https://example.com/feed")
	require.NoError(t, err)

	assert.Equal(t, "Example Feed", feed.Title)
	assert.Equal(t, "en-us", feed.Language)
	require.Len(t, feed.Articles, 2)

	first := feed.Articles[0]
	assert.Equal(t, "First Post", first.Title)
	assert.Equal(t, "https://example.com/first", first.URL)
	assert.Equal(t, "https://example.com/first#comments", first.CommentsURL)
	require.NotNil(t, first.PubDate)
	assert.Equal(t, 2006, first.PubDate.Year())

	second := feed.Articles[1]
	assert.Empty(t, second.CommentsURL)
}

func TestParser_Parse_Atom(t *testing.T) {
	p := parser.New()
	feed, err := p.Parse([]byte(atomDoc), "https://example.com/feed.atom")
	require.NoError(t, err)

	assert.Equal(t, "Atom Feed", feed.Title)
	require.Len(t, feed.Articles, 1)
	assert.Equal(t, "https://example.com/entry", feed.Articles[0].URL)
	assert.Equal(t, "Entry summary", feed.Articles[0].Description)
}

func TestParser_Parse_FallsBackToContentWhenDescriptionEmpty(t *testing.T) {
	const doc = `<rss version="2.0"><channel><title>T</title>
	<item><title>Only content</title><link>https://example.com/a</link>
	<content:encoded xmlns:content="http://purl.org/rss/1.0/modules/content/">full body</content:encoded></item>
	</channel></rss>`

	p := parser.New()
	feed, err := p.Parse([]byte(doc), "https://example.com/feed")
	require.NoError(t, err)
	require.Len(t, feed.Articles, 1)
	assert.Equal(t, "full body", feed.Articles[0].Description)
}

func TestParser_Parse_MalformedDocumentIsError(t *testing.T) {
	p := parser.New()
	_, err := p.Parse([]byte(malformedDoc), "https://example.com/feed")
	assert.Error(t, err)
}

func TestParser_Parse_EmptyFeedIsError(t *testing.T) {
	p := parser.New()
	_, err := p.Parse([]byte(`<rss version="2.0"><channel></channel></rss>`), "https://example.com/feed")
	assert.Error(t, err)
}
