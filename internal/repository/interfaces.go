package repository

import (
	"context"

	"eventsponsor.messaging/internal/model"
)

// ConversationRepository stores conversation metadata. Getters return (nil, nil)
// when the conversation does not exist.
type ConversationRepository interface {
	// Create stores conv unless its id is already taken; it reports whether it wrote.
	Create(ctx context.Context, conv *model.Conversation) (bool, error)
	GetByID(ctx context.Context, id string) (*model.Conversation, error)
	// ListAll scans every conversation in the system.
	ListAll(ctx context.Context) ([]model.Conversation, error)
	// ListByPair returns the conversations between a and b in creation order.
	ListByPair(ctx context.Context, a, b string) ([]model.Conversation, error)
	ListByParticipant(ctx context.Context, userID string) ([]model.Conversation, error)
	UpdateLastMessage(ctx context.Context, id string, last model.LastMessage, updatedAt int64) error
	// IncrementUnread adds one to userID's counter and stamps its last activity.
	IncrementUnread(ctx context.Context, id, userID string, at int64) error
	SetUnread(ctx context.Context, id, userID string, n int) error
	SetArchived(ctx context.Context, id, userID string, archived bool) error
	UpdateParticipant(ctx context.Context, id string, p model.Participant) error
	// Delete removes the conversation and its index entries. Deleting a missing id
	// is not an error.
	Delete(ctx context.Context, id string) error
}

// MessageRepository stores the append-only message log of each conversation.
type MessageRepository interface {
	Append(ctx context.Context, msg *model.Message) error
	ListByConversation(ctx context.Context, conversationID string) ([]model.Message, error)
}

// ProfileRepository reads user profiles. FindByID returns (nil, nil) when missing.
type ProfileRepository interface {
	FindByID(ctx context.Context, id string) (*model.Profile, error)
}

// PresenceRepository tracks online state and last-seen time.
type PresenceRepository interface {
	Get(ctx context.Context, userID string) (online bool, lastSeen int64, err error)
	MarkOnline(ctx context.Context, userID string) error
	MarkOffline(ctx context.Context, userID string) error
}

// MessageArchive persists messages for long-term history.
type MessageArchive interface {
	SaveBatch(ctx context.Context, msgs []model.Message) error
}

// SortedPair returns a and b in ascending order.
func SortedPair(a, b string) (string, string) {
	if a > b {
		return b, a
	}
	return a, b
}
