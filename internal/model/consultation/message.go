package consultation

import "time"

// Message persists individual turns of a consultation for the AI history.
type Message struct {
	ID             string    `json:"id"`
	ConsultationID string    `json:"consultation_id"`
	Sender         string    `json:"sender"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"created_at"`
}

// Message senders.
const (
	SenderUser      = "user"
	SenderAssistant = "assistant"
)
