package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/portal-session/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventSignedIn       EventType = "session_signed_in"
	EventSignedOut      EventType = "session_signed_out"
	EventSessionExpired EventType = "session_expired"
)

// Types lists every event type, for subscribers that want all of them.
var Types = []EventType{EventSignedIn, EventSignedOut, EventSessionExpired}

// Event represents a change of a role's session.
type Event struct {
	ID        string           `json:"id"`
	Type      EventType        `json:"type"`
	Role      domain.Role      `json:"role"`
	AccountID int64            `json:"account_id,omitempty"`
	Code      domain.ErrorCode `json:"code,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
}

// NewEvent stamps an event of type t for role.
func NewEvent(t EventType, role domain.Role) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      t,
		Role:      role,
		Timestamp: time.Now().UTC(),
	}
}
