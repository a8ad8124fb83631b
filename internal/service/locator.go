package service

import (
	"context"
	"log/slog"

	"eventsponsor.messaging/internal/model"
	"eventsponsor.messaging/internal/repository"
	appErrors "eventsponsor.messaging/pkg/errors"
)

// LocatorService finds the conversation between two participants.
type LocatorService struct {
	conversations repository.ConversationRepository
	logger        *slog.Logger
}

func NewLocatorService(conversations repository.ConversationRepository) *LocatorService {
	return &LocatorService{
		conversations: conversations,
		logger:        slog.Default(),
	}
}

// FindExistingChat returns the id of a conversation between a and b. With a
// correlation id only an exact match counts. Without one, a conversation that has
// no correlation id is preferred, then the oldest conversation of the pair.
func (s *LocatorService) FindExistingChat(ctx context.Context, a, b, correlationID string) (string, bool, error) {
	if a == "" || b == "" {
		return "", false, nil
	}

	convs, err := s.conversations.ListByPair(ctx, a, b)
	if err != nil {
		s.logger.Error("Failed to list conversations of pair", "userA", a, "userB", b, "error", err)
		return "", false, appErrors.ErrStoreError.Wrap(err)
	}

	first := ""
	for _, conv := range convs {
		if !conv.HasParticipant(a) || !conv.HasParticipant(b) {
			continue
		}
		if correlationID != "" {
			if conv.CorrelationID == correlationID {
				return conv.ID, true, nil
			}
			continue
		}
		if conv.CorrelationID == "" {
			return conv.ID, true, nil
		}
		if first == "" {
			first = conv.ID
		}
	}

	if first != "" {
		return first, true, nil
	}
	return "", false, nil
}

// ListConversations scans every conversation in the store.
func (s *LocatorService) ListConversations(ctx context.Context) ([]model.Conversation, error) {
	convs, err := s.conversations.ListAll(ctx)
	if err != nil {
		return nil, appErrors.ErrStoreError.Wrap(err)
	}
	return convs, nil
}

// GetChat returns conversationID if userID takes part in it.
func (s *LocatorService) GetChat(ctx context.Context, userID, conversationID string) (*model.Conversation, error) {
	if !validConversationID(conversationID) {
		return nil, appErrors.ErrChatNotFound
	}
	conv, err := s.conversations.GetByID(ctx, conversationID)
	if err != nil {
		return nil, appErrors.ErrStoreError.Wrap(err)
	}
	if conv == nil {
		return nil, appErrors.ErrChatNotFound
	}
	if !conv.HasParticipant(userID) {
		return nil, appErrors.ErrNotParticipant
	}
	return conv, nil
}
