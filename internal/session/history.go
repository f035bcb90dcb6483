package session

import "welcome-backend/internal/models"

// History is an ordered message list capped at a maximum length.
// Appending past the cap evicts the oldest entries first.
type History struct {
	max      int
	messages []models.Message
}

func NewHistory(max int) *History {
	if max < 1 {
		max = 1
	}
	return &History{max: max}
}

func (h *History) Append(msgs ...models.Message) {
	h.messages = append(h.messages, msgs...)
	if over := len(h.messages) - h.max; over > 0 {
		kept := make([]models.Message, h.max)
		copy(kept, h.messages[over:])
		h.messages = kept
	}
}

// Messages returns a copy of the history, oldest first.
func (h *History) Messages() []models.Message {
	out := make([]models.Message, len(h.messages))
	copy(out, h.messages)
	return out
}

func (h *History) Len() int { return len(h.messages) }
