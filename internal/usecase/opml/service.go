// Package opml rewrites an uploaded OPML subscription list so every rss
// outline points at this proxy instead of the original feed, matching
// process_opml's xmlUrl substitution.
package opml

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
)

// MaxUploadSize caps the OPML body process_opml will read, guarding
// against a client streaming an unbounded multipart body into memory.
const MaxUploadSize = 10 << 20

type opmlDocument struct {
	XMLName xml.Name    `xml:"opml"`
	Version string      `xml:"version,attr"`
	Head    opmlHead    `xml:"head"`
	Body    opmlBody    `xml:"body"`
}

type opmlHead struct {
	Title string `xml:"title"`
}

type opmlBody struct {
	Outlines []outline `xml:"outline"`
}

// outline is recursive: OPML nests folders of feeds as nested <outline>
// elements, and only the rss-typed leaves carry an xmlUrl to rewrite.
type outline struct {
	Text     string    `xml:"text,attr"`
	Title    string    `xml:"title,attr,omitempty"`
	Type     string    `xml:"type,attr,omitempty"`
	XMLURL   string    `xml:"xmlUrl,attr,omitempty"`
	HTMLURL  string    `xml:"htmlUrl,attr,omitempty"`
	Outlines []outline `xml:"outline"`
}

// Service builds proxied feed URLs for RewriteUpload.
type Service struct {
	BaseURL  string
	RootPath string
}

func NewService(baseURL, rootPath string) *Service {
	return &Service{BaseURL: baseURL, RootPath: rootPath}
}

// RewriteUpload parses an OPML document and rewrites every rss outline's
// xmlUrl to route through GET /v1/feed/{userID}/{originalURL}, returning
// the document re-serialized as XML.
func (s *Service) RewriteUpload(body io.Reader, userID string) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(body, MaxUploadSize+1))
	if err != nil {
		return nil, fmt.Errorf("read opml upload: %w", err)
	}
	if len(data) > MaxUploadSize {
		return nil, fmt.Errorf("opml upload exceeds %d bytes", MaxUploadSize)
	}

	var doc opmlDocument
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse opml: %w", err)
	}
	rewriteOutlines(doc.Body.Outlines, s.BaseURL, s.RootPath, userID)

	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return nil, fmt.Errorf("encode opml: %w", err)
	}
	return buf.Bytes(), nil
}

func rewriteOutlines(outlines []outline, baseURL, rootPath, userID string) {
	for i := range outlines {
		o := &outlines[i]
		if o.Type == "rss" && o.XMLURL != "" {
			o.XMLURL = feedURL(baseURL, rootPath, userID, o.XMLURL)
		}
		rewriteOutlines(o.Outlines, baseURL, rootPath, userID)
	}
}

func feedURL(baseURL, rootPath, userID, originalURL string) string {
	if rootPath != "" {
		return fmt.Sprintf("%s/%s/v1/feed/%s/%s", baseURL, rootPath, userID, originalURL)
	}
	return fmt.Sprintf("%s/v1/feed/%s/%s", baseURL, userID, originalURL)
}
