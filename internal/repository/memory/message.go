package memory

import (
	"context"
	"sync"

	"eventsponsor.messaging/internal/model"
)

// MessageRepo keeps message logs in insertion order.
type MessageRepo struct {
	mu       sync.RWMutex
	messages map[string][]model.Message
}

// NewMessageRepo creates an empty repository.
func NewMessageRepo() *MessageRepo {
	return &MessageRepo{messages: make(map[string][]model.Message)}
}

func (r *MessageRepo) Append(ctx context.Context, msg *model.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored := *msg
	stored.ReadBy = make(map[string]int64, len(msg.ReadBy))
	for k, v := range msg.ReadBy {
		stored.ReadBy[k] = v
	}
	r.messages[msg.ConversationID] = append(r.messages[msg.ConversationID], stored)
	return nil
}

func (r *MessageRepo) ListByConversation(ctx context.Context, conversationID string) ([]model.Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	src := r.messages[conversationID]
	out := make([]model.Message, len(src))
	for i, m := range src {
		out[i] = m
		out[i].ReadBy = make(map[string]int64, len(m.ReadBy))
		for k, v := range m.ReadBy {
			out[i].ReadBy[k] = v
		}
	}
	return out, nil
}
