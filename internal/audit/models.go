package audit

import "time"

// Event is an immutable, append-only record of an account action taken by a
// delivery worker.
//
// Invariants:
// - Events are never updated or deleted.
// - worker_id is required; anonymous actions are not audited.
// - ip capture is best-effort; do not block account flows on audit failures.
type Event struct {
	ID       string    `json:"id" db:"id"`
	WorkerID int64     `json:"worker_id" db:"worker_id"`
	Type     EventType `json:"type" db:"type"`

	// IPAddress is the resolved client IP as seen by the API.
	IPAddress string `json:"ip_address,omitempty" db:"ip_address"`

	// Message is a short human-readable description for ops.
	Message string `json:"message,omitempty" db:"message"`

	// Metadata is optional JSON for full details.
	Metadata string `json:"metadata,omitempty" db:"metadata"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type EventType string

const (
	EventTypeRegister       EventType = "register"
	EventTypeLogin          EventType = "login"
	EventTypeLogout         EventType = "logout"
	EventTypeStatusChange   EventType = "status_change"
	EventTypeProfileUpdate  EventType = "profile_update"
	EventTypePasswordChange EventType = "password_change"
)

func (t EventType) Valid() bool {
	switch t {
	case EventTypeRegister, EventTypeLogin, EventTypeLogout,
		EventTypeStatusChange, EventTypeProfileUpdate, EventTypePasswordChange:
		return true
	}
	return false
}
