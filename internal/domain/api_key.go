package domain

import "time"

// APIKey is an issued credential for programmatic access to the portal API.
type APIKey struct {
	ID        string
	OwnerID   int64
	Name      string
	Key       string
	CreatedAt time.Time
	RevokedAt *time.Time
}

// Notice is a published announcement shown on the portal. Members-only
// notices are listed to signed-in callers only.
type Notice struct {
	ID          int64
	Title       string
	Body        string
	Pinned      bool
	MembersOnly bool
	CreatedAt   time.Time
}
