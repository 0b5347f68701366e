// Package parser turns a fetched feed document into the canonical shape the
// rest of the pipeline stores and ranks: gofeed.Parser already normalizes
// RSS 1.0/2.0 and Atom into one Go structure, handling the namespace and
// date-format differences between formats; this package narrows that down
// to the handful of fields the domain cares about.
package parser

import (
	"fmt"
	"time"

	"github.com/mmcdole/gofeed"
)

// ParsedArticle is one item/entry extracted from a feed document.
type ParsedArticle struct {
	Title       string
	URL         string
	Description string
	CommentsURL string
	PubDate     *time.Time
}

// ParsedFeed is the canonical, format-agnostic result of parsing a feed
// document, regardless of whether the source was RSS or Atom.
type ParsedFeed struct {
	URL         string
	Title       string
	Description string
	Language    string
	Logo        string
	Articles    []ParsedArticle
}

// Parser wraps gofeed.Parser. The zero value is not usable; use New.
type Parser struct {
	gofeed *gofeed.Parser
}

func New() *Parser {
	return &Parser{gofeed: gofeed.NewParser()}
}

// Parse converts a feed document's raw bytes into a ParsedFeed. feedURL is
// the URL the document was fetched from (or its final URL after redirects);
// it is used as ParsedFeed.URL and as the base for resolving relative item
// links that gofeed leaves unresolved.
//
// gofeed recovers from malformed XML on a best-effort basis already; this
// method does not add its own recover-mode pass on top of it.
func (p *Parser) Parse(body []byte, feedURL string) (*ParsedFeed, error) {
	feed, err := p.gofeed.ParseString(string(body))
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}
	if feed.Title == "" && len(feed.Items) == 0 {
		return nil, fmt.Errorf("parse feed: no title or items found")
	}

	out := &ParsedFeed{
		URL:         feedURL,
		Title:       feed.Title,
		Description: feed.Description,
		Articles:    make([]ParsedArticle, 0, len(feed.Items)),
	}
	if feed.Language != "" {
		out.Language = feed.Language
	}
	if feed.Image != nil {
		out.Logo = feed.Image.URL
	}

	for _, item := range feed.Items {
		out.Articles = append(out.Articles, convertItem(item))
	}
	return out, nil
}

func convertItem(item *gofeed.Item) ParsedArticle {
	article := ParsedArticle{
		Title:       item.Title,
		URL:         item.Link,
		Description: item.Description,
	}
	if article.Description == "" {
		article.Description = item.Content
	}
	if item.GUID != "" && article.URL == "" {
		article.URL = item.GUID
	}

	// RSS 2.0 <comments> has no dedicated field on gofeed.Item; it surfaces
	// as an unprefixed (namespace "") extension instead.
	if exts, ok := item.Extensions[""]; ok {
		if comments, ok := exts["comments"]; ok && len(comments) > 0 {
			article.CommentsURL = comments[0].Value
		}
	}

	if item.PublishedParsed != nil {
		t := *item.PublishedParsed
		article.PubDate = &t
	} else if item.UpdatedParsed != nil {
		t := *item.UpdatedParsed
		article.PubDate = &t
	}

	return article
}
