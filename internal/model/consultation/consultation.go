package consultation

import "time"

// Status values reported by the consultations API.
const (
	StatusActive    = "active"
	StatusCompleted = "completed"
)

// ContextGoal marks a consultation whose background comes from a goal.
const ContextGoal = "goal"

// Consultation is a chat session with an AI persona, optionally bound to a domain object.
type Consultation struct {
	ID          string    `json:"id"`
	Persona     string    `json:"persona"`
	Status      string    `json:"status,omitempty"`
	ContextType string    `json:"context_type,omitempty"`
	ContextID   string    `json:"context_id,omitempty"`
	CreatedAt   time.Time `json:"created_at,omitempty"`
}

// HasContext reports whether a context reference is attached.
func (c Consultation) HasContext() bool {
	return c.ContextType != "" && c.ContextID != ""
}

// CreateRequest is the body of POST /api/v1/consultations.
type CreateRequest struct {
	Persona     string `json:"persona"`
	ContextType string `json:"context_type,omitempty"`
	ContextID   string `json:"context_id,omitempty"`
}
