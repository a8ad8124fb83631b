package redis

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"eventsponsor.messaging/internal/model"
)

// MessageRepo stores each conversation's messages in a sorted set scored by
// timestamp. Members are the JSON encoding of the message.
type MessageRepo struct {
	client redis.UniversalClient
	logger *slog.Logger
}

// NewMessageRepo creates a Redis-backed message repository.
func NewMessageRepo(client redis.UniversalClient) *MessageRepo {
	return &MessageRepo{
		client: client,
		logger: slog.Default(),
	}
}

func (r *MessageRepo) Append(ctx context.Context, msg *model.Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return r.client.ZAdd(ctx, BuildChatMessagesKey(msg.ConversationID), redis.Z{
		Score:  float64(msg.Timestamp),
		Member: string(data),
	}).Err()
}

func (r *MessageRepo) ListByConversation(ctx context.Context, conversationID string) ([]model.Message, error) {
	members, err := r.client.ZRange(ctx, BuildChatMessagesKey(conversationID), 0, -1).Result()
	if err != nil {
		return nil, err
	}

	messages := make([]model.Message, 0, len(members))
	for _, m := range members {
		var msg model.Message
		if err := json.Unmarshal([]byte(m), &msg); err != nil {
			r.logger.Warn("Skipping undecodable message", "conversationId", conversationID, "error", err)
			continue
		}
		messages = append(messages, msg)
	}
	return messages, nil
}
