// Package entity defines the core domain entities and validation logic for
// the feed proxy. It contains the fundamental business objects (User, Feed,
// Article, and the link tables joining them), their validation rules, and
// domain-specific errors.
package entity

import "time"

// Article is one item/entry of a Feed, unique per feed by URL.
type Article struct {
	ID          int64
	FeedID      int64
	Title       string
	URL         string
	Description string
	CommentsURL string
	PubDate     *time.Time
	Updated     time.Time
	Embedding   []float32 // nil if not yet computed, or aged out
}

// EffectiveDate returns PubDate when present, falling back to Updated — the
// same tie-break the ranker and recent-article listing use.
func (a *Article) EffectiveDate() time.Time {
	if a.PubDate != nil {
		return *a.PubDate
	}
	return a.Updated
}

// HasEmbedding reports whether the article carries a usable embedding vector.
func (a *Article) HasEmbedding() bool {
	return len(a.Embedding) > 0
}
