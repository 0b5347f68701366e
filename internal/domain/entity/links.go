package entity

import "time"

// UserFeedLink records that a user is subscribed to a feed. The pair
// (UserID, FeedID) is unique at the conceptual subscription level — linking
// twice is a no-op, not a new row.
type UserFeedLink struct {
	UserID    string
	FeedID    int64
	CreatedAt time.Time
}

// UserArticleLink records a single click event. CreatedAt is part of the
// identity: repeated clicks on the same article produce separate rows.
type UserArticleLink struct {
	UserID    string
	ArticleID int64
	CreatedAt time.Time
}
