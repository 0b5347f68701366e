package entity

import "time"

// User is an opaque, client-chosen subscriber identity. The proxy never
// authenticates a user; it trusts whatever token the caller presents and
// creates the row on first appearance.
type User struct {
	ID            string
	CreatedAt     time.Time
	LastRequest   time.Time
	Clusters      [][]float32
	ClustersAt    *time.Time
	IsFrozen      bool
	FrozenAt      *time.Time
}

// Dormant reports whether the user's last request predates the threshold.
func (u *User) Dormant(threshold time.Duration, now time.Time) bool {
	return !u.IsFrozen && now.Sub(u.LastRequest) >= threshold
}

// HasClusters reports whether a cluster model has been computed for the user.
func (u *User) HasClusters() bool {
	return len(u.Clusters) > 0
}
