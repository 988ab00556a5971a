package history

import (
	"time"

	"github.com/google/uuid"
)

// Message is a single conversational message stored for a session.
type Message struct {
	ID        int64     `json:"id"`
	SessionID string    `json:"session_id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// NewSessionID returns a fresh random session identifier.
func NewSessionID() string {
	return uuid.NewString()
}

// ValidSessionID reports whether id is a well-formed session identifier.
func ValidSessionID(id string) bool {
	return uuid.Validate(id) == nil
}
