// Package rewrite turns a feed's articles into an RSS 2.0 document whose
// links all point back through the proxy's click-logging endpoint, so every
// click a user makes can be attributed before they leave for the original
// site.
package rewrite

import (
	"encoding/xml"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"feedproxy/internal/domain/entity"
)

// hrefPattern matches an href="..." attribute inside an article's HTML
// description, so each link inside the body can be routed through the
// tracker the same way the article's own link is.
var hrefPattern = regexp.MustCompile(`href="([^"]*)"`)

type rssDocument struct {
	XMLName xml.Name   `xml:"rss"`
	Version string     `xml:"version,attr"`
	AtomXML string     `xml:"xmlns:atom,attr"`
	Channel rssChannel `xml:"channel"`
}

type rssChannel struct {
	Title       string      `xml:"title"`
	Link        string      `xml:"link"`
	SelfLink    atomLink    `xml:"atom:link"`
	Description string      `xml:"description"`
	Language    string      `xml:"language,omitempty"`
	Items       []rssItem   `xml:"item"`
}

type atomLink struct {
	Href string `xml:"href,attr"`
	Rel  string `xml:"rel,attr"`
	Type string `xml:"type,attr"`
}

type rssItem struct {
	GUID        string `xml:"guid"`
	Title       string `xml:"title"`
	Link        string `xml:"link"`
	Description string `xml:"description"`
	Comments    string `xml:"comments,omitempty"`
	PubDate     string `xml:"pubDate,omitempty"`
}

// Rewrite builds the RSS 2.0 document returned for feed, substituting every
// outbound link with a tracker URL scoped to userID and the article's id so
// a later click can be attributed back to it.
func Rewrite(baseURL, rootPath string, feed *entity.Feed, articles []entity.Article, userID string) ([]byte, error) {
	selfLink := fmt.Sprintf("%s%s/v1/feed/%s/%s", baseURL, rootPath, userID, feed.URL)

	doc := rssDocument{
		Version: "2.0",
		AtomXML: "http://www.w3.org/2005/Atom",
		Channel: rssChannel{
			Title:       feed.Title,
			Link:        selfLink,
			SelfLink:    atomLink{Href: selfLink, Rel: "self", Type: "application/rss+xml"},
			Description: description(feed),
			Language:    feed.Language,
			Items:       make([]rssItem, 0, len(articles)),
		},
	}

	for _, article := range articles {
		doc.Channel.Items = append(doc.Channel.Items, rewriteArticle(baseURL, rootPath, userID, article))
	}

	out, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal rss document: %w", err)
	}
	return append([]byte(xml.Header), out...), nil
}

func description(feed *entity.Feed) string {
	if feed.Description != "" {
		return feed.Description
	}
	return feed.Title
}

func rewriteArticle(baseURL, rootPath, userID string, article entity.Article) rssItem {
	logPrefix := fmt.Sprintf("%s%s/v1/log/%s/%s", baseURL, rootPath, userID, strconv.FormatInt(article.ID, 10))

	item := rssItem{
		GUID:        article.URL,
		Title:       article.Title,
		Link:        trackerLink(logPrefix, article.URL),
		Description: rewriteHrefs(logPrefix, article.Description),
	}
	if article.CommentsURL != "" {
		item.Comments = trackerLink(logPrefix, article.CommentsURL)
	}
	if article.PubDate != nil {
		item.PubDate = article.PubDate.UTC().Format(time.RFC1123Z)
	}
	return item
}

func rewriteHrefs(logPrefix, html string) string {
	return hrefPattern.ReplaceAllStringFunc(html, func(match string) string {
		target := hrefPattern.FindStringSubmatch(match)[1]
		return fmt.Sprintf(`href="%s"`, trackerLink(logPrefix, target))
	})
}

func trackerLink(logPrefix, target string) string {
	return logPrefix + "/" + encodeURLSegment(target)
}

// encodeURLSegment percent-encodes target for safe embedding as a single
// path segment, including slashes; leaving "/" unescaped would let an
// encoded article URL be misread as extra path segments by the log-click
// route.
func encodeURLSegment(target string) string {
	const hex = "0123456789ABCDEF"
	var b strings.Builder
	for i := 0; i < len(target); i++ {
		c := target[i]
		if isUnreserved(c) {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(hex[c>>4])
		b.WriteByte(hex[c&0xf])
	}
	return b.String()
}

func isUnreserved(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') ||
		c == '-' || c == '_' || c == '.' || c == '~'
}
