package entity

import "time"

// Feed is a remote RSS/Atom document tracked by canonical URL.
type Feed struct {
	ID                 int64
	URL                string
	OriginalURL        string // set once, first time a permanent redirect changes URL
	Title              string
	Description        string
	Language           string
	Logo               string
	CreatedAt          time.Time
	UpdatedAt          time.Time // last successful fetch
	ConsecutiveFailures int
	LastError          string
	IsDisabled         bool
}

// DefaultMaxConsecutiveFailures is the threshold at which a feed is
// automatically disabled after repeated fetch failures.
const DefaultMaxConsecutiveFailures = 5

// RecordSuccess clears the feed's failure-tracking fields after a clean fetch.
func (f *Feed) RecordSuccess(at time.Time) {
	f.ConsecutiveFailures = 0
	f.LastError = ""
	f.UpdatedAt = at
}

// RecordFailure increments the failure counter and disables the feed once it
// crosses maxFailures. It never decreases ConsecutiveFailures.
func (f *Feed) RecordFailure(err error, maxFailures int) {
	f.ConsecutiveFailures++
	if err != nil {
		f.LastError = err.Error()
	}
	if maxFailures <= 0 {
		maxFailures = DefaultMaxConsecutiveFailures
	}
	if f.ConsecutiveFailures >= maxFailures {
		f.IsDisabled = true
	}
}

// Stale reports whether the feed has not been fetched within interval.
func (f *Feed) Stale(interval time.Duration, now time.Time) bool {
	return now.Sub(f.UpdatedAt) >= interval
}
