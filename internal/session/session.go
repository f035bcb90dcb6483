package session

import (
	"context"

	"welcome-backend/internal/models"
)

// Session is one visitor's conversation. The system prompt is prepended to
// snapshots but never stored, so it can never be evicted.
type Session struct {
	store        Store
	key          string
	systemPrompt string
}

func New(store Store, key, systemPrompt string) *Session {
	return &Session{store: store, key: key, systemPrompt: systemPrompt}
}

func (s *Session) AppendUser(ctx context.Context, text string) error {
	return s.store.Append(ctx, s.key, models.Message{Role: models.RoleUser, Content: text})
}

func (s *Session) AppendAssistant(ctx context.Context, text string) error {
	return s.store.Append(ctx, s.key, models.Message{Role: models.RoleAssistant, Content: text})
}

// SnapshotForCompletion returns the system message followed by the stored history.
func (s *Session) SnapshotForCompletion(ctx context.Context) ([]models.Message, error) {
	history, err := s.store.Messages(ctx, s.key)
	if err != nil {
		return nil, err
	}
	out := make([]models.Message, 0, len(history)+1)
	out = append(out, models.Message{Role: models.RoleSystem, Content: s.systemPrompt})
	return append(out, history...), nil
}

func (s *Session) Reset(ctx context.Context) error {
	return s.store.Reset(ctx, s.key)
}

func (s *Session) Len(ctx context.Context) (int, error) {
	return s.store.Len(ctx, s.key)
}
