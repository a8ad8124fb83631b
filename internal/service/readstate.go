package service

import (
	"context"
	"log/slog"

	"eventsponsor.messaging/internal/feed"
	"eventsponsor.messaging/internal/model"
	"eventsponsor.messaging/internal/repository"
	appErrors "eventsponsor.messaging/pkg/errors"
)

// ReadStateService tracks per-participant unread counters and archive flags.
type ReadStateService struct {
	conversations repository.ConversationRepository
	feed          feed.Feed
	logger        *slog.Logger
}

func NewReadStateService(conversations repository.ConversationRepository, f feed.Feed) *ReadStateService {
	return &ReadStateService{
		conversations: conversations,
		feed:          f,
		logger:        slog.Default(),
	}
}

// MarkAsRead zeroes actor's unread counter. It is best effort: failures are logged
// and never returned.
func (s *ReadStateService) MarkAsRead(ctx context.Context, actor model.Identity, conversationID string) {
	if !actor.Authenticated() || !validConversationID(conversationID) {
		return
	}

	conv, err := s.conversations.GetByID(ctx, conversationID)
	if err != nil {
		s.logger.Warn("Failed to load conversation for read state", "conversationId", conversationID, "error", err)
		return
	}
	if conv == nil || !conv.HasParticipant(actor.ID) {
		s.logger.Debug("Ignoring read mark", "conversationId", conversationID, "userId", actor.ID)
		return
	}

	if err := s.conversations.SetUnread(ctx, conversationID, actor.ID, 0); err != nil {
		s.logger.Warn("Failed to mark conversation read", "conversationId", conversationID, "userId", actor.ID, "error", err)
		return
	}

	publish(ctx, s.feed, s.logger, feed.UserChatsTopic(actor.ID), feed.Event{
		ConversationID: conversationID, UserID: actor.ID, Kind: feed.KindReadState,
	})
}

// SetArchived hides or restores the conversation in actor's list. The conversation
// itself is left in place.
func (s *ReadStateService) SetArchived(ctx context.Context, actor model.Identity, conversationID string, archived bool) error {
	if !actor.Authenticated() {
		return appErrors.ErrUnauthenticated
	}
	if !validConversationID(conversationID) {
		return appErrors.ErrChatNotFound
	}

	conv, err := s.conversations.GetByID(ctx, conversationID)
	if err != nil {
		return appErrors.ErrStoreError.Wrap(err)
	}
	if conv == nil {
		return appErrors.ErrChatNotFound
	}
	if !conv.HasParticipant(actor.ID) {
		return appErrors.ErrNotParticipant
	}

	if err := s.conversations.SetArchived(ctx, conversationID, actor.ID, archived); err != nil {
		s.logger.Error("Failed to set archived", "conversationId", conversationID, "userId", actor.ID, "error", err)
		return appErrors.ErrStoreError.Wrap(err)
	}

	publish(ctx, s.feed, s.logger, feed.UserChatsTopic(actor.ID), feed.Event{
		ConversationID: conversationID, UserID: actor.ID, Kind: feed.KindArchived,
	})
	return nil
}
