package event

import (
	"time"

	"github.com/google/uuid"
)

// Event represents a notification with metadata and payload.
type Event struct {
	ID        string    `json:"id"`         // Unique identifier for the event
	Name      string    `json:"name"`       // Event name (e.g., "job:completed")
	Payload   any       `json:"payload"`    // Event data (typically a struct snapshot)
	CreatedAt time.Time `json:"created_at"` // When the event was created
}

// New creates a new Event with an auto-generated ID and timestamp.
//
// Example:
//
//	evt := event.New("job:completed", jobSnapshot)
//	// evt.ID will be a UUID
//	// evt.CreatedAt will be time.Now()
func New(name string, payload any) Event {
	return Event{
		ID:        uuid.New().String(),
		Name:      name,
		Payload:   payload,
		CreatedAt: time.Now(),
	}
}
