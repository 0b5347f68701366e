package parser

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// feedLinkType matches the RSS/Atom/generic "feed" MIME types a discovery
// <link rel="alternate"> element may advertise.
var feedLinkType = regexp.MustCompile(`^application/(rss|atom|feed)\+?\w*$`)

// DiscoverFeedLink scans an HTML document for the first
// <link rel="alternate" type="application/(rss|atom|feed)..."> element and
// resolves its href against base. It returns an empty string, nil if the
// document advertises no feed link.
func DiscoverFeedLink(body []byte, base string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(body)))
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}

	baseURL, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}

	var found string
	doc.Find(`link[rel="alternate"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		typ, _ := s.Attr("type")
		if !feedLinkType.MatchString(strings.ToLower(typ)) {
			return true
		}
		href, ok := s.Attr("href")
		if !ok || href == "" {
			return true
		}
		resolved, err := baseURL.Parse(href)
		if err != nil {
			return true
		}
		found = resolved.String()
		return false
	})

	return found, nil
}
