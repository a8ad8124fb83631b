package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"eventsponsor.messaging/internal/feed"
	"eventsponsor.messaging/internal/metrics"
	"eventsponsor.messaging/internal/model"
	"eventsponsor.messaging/internal/repository"
	appErrors "eventsponsor.messaging/pkg/errors"
	"eventsponsor.messaging/pkg/snowflake"
)

// Notifier shows a user-visible notice, such as a toast, to a user.
type Notifier interface {
	Notify(ctx context.Context, userID, message string)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, userID, message string)

func (f NotifierFunc) Notify(ctx context.Context, userID, message string) {
	f(ctx, userID, message)
}

// LogNotifier only logs notices; used when no live channel to the user exists.
type LogNotifier struct {
	Logger *slog.Logger
}

func (n LogNotifier) Notify(ctx context.Context, userID, message string) {
	logger := n.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("User notice", "userId", userID, "message", message)
}

// SendFailedNotice is shown to the sender when a message could not be stored.
const SendFailedNotice = "Failed to send message"

// MessageQueue accepts messages for asynchronous archiving.
type MessageQueue interface {
	Enqueue(msg model.Message) bool
}

// ChannelService appends messages to conversations.
type ChannelService struct {
	conversations repository.ConversationRepository
	messages      repository.MessageRepository
	directory     *DirectoryService
	archive       MessageQueue
	feed          feed.Feed
	notifier      Notifier
	ids           *snowflake.Node
	now           func() int64
	logger        *slog.Logger
}

// NewChannelService creates the message channel. archive may be nil.
func NewChannelService(
	conversations repository.ConversationRepository,
	messages repository.MessageRepository,
	directory *DirectoryService,
	archive MessageQueue,
	f feed.Feed,
	notifier Notifier,
	ids *snowflake.Node,
) *ChannelService {
	if notifier == nil {
		notifier = LogNotifier{}
	}
	return &ChannelService{
		conversations: conversations,
		messages:      messages,
		directory:     directory,
		archive:       archive,
		feed:          f,
		notifier:      notifier,
		ids:           ids,
		now:           func() int64 { return time.Now().UnixMilli() },
		logger:        slog.Default(),
	}
}

// SendMessage appends text from actor to the conversation. Blank text or an
// anonymous actor is a no-op that returns (nil, nil). Once the input is accepted,
// every failure is shown to the actor through the Notifier and returned.
func (s *ChannelService) SendMessage(ctx context.Context, actor model.Identity, conversationID, text string, msgType model.MessageType) (*model.Message, error) {
	text = strings.TrimSpace(text)
	if text == "" || !actor.Authenticated() {
		return nil, nil
	}
	if msgType == "" {
		msgType = model.MessageTypeText
	}
	if !msgType.Valid() {
		return nil, appErrors.ErrInvalidParams
	}

	if !validConversationID(conversationID) {
		return nil, s.fail(ctx, actor, conversationID, appErrors.ErrChatNotFound)
	}
	conv, err := s.conversations.GetByID(ctx, conversationID)
	if err != nil {
		return nil, s.fail(ctx, actor, conversationID, appErrors.ErrStoreError.Wrap(err))
	}
	if conv == nil {
		return nil, s.fail(ctx, actor, conversationID, appErrors.ErrChatNotFound)
	}
	if !conv.HasParticipant(actor.ID) {
		return nil, s.fail(ctx, actor, conversationID, appErrors.ErrNotParticipant)
	}

	senderName := actor.DisplayName
	if senderName == "" {
		senderName = conv.Participants[actor.ID].Name
	}

	now := s.now()
	msg := &model.Message{
		ID:             s.ids.Generate().String(),
		ConversationID: conv.ID,
		SenderID:       actor.ID,
		SenderName:     senderName,
		SenderRole:     s.directory.GetUserRole(ctx, actor.ID),
		Text:           text,
		Timestamp:      now,
		Type:           msgType,
		ReadBy:         map[string]int64{actor.ID: now},
	}

	if err := s.messages.Append(ctx, msg); err != nil {
		return nil, s.fail(ctx, actor, conversationID, appErrors.ErrStoreError.Wrap(err))
	}
	if err := s.conversations.UpdateLastMessage(ctx, conv.ID, msg.Summary(), now); err != nil {
		return nil, s.fail(ctx, actor, conversationID, appErrors.ErrStoreError.Wrap(err))
	}
	for _, uid := range conv.ParticipantIDs() {
		if uid == actor.ID {
			continue
		}
		if err := s.conversations.IncrementUnread(ctx, conv.ID, uid, now); err != nil {
			return nil, s.fail(ctx, actor, conversationID, appErrors.ErrStoreError.Wrap(err))
		}
	}

	if s.archive != nil && !s.archive.Enqueue(*msg) {
		s.logger.Warn("Message not queued for archive", "messageId", msg.ID)
	}
	metrics.MessagesSent.WithLabelValues(string(msgType)).Inc()

	publish(ctx, s.feed, s.logger, feed.ChatMessagesTopic(conv.ID), feed.Event{
		ConversationID: conv.ID, UserID: actor.ID, Kind: feed.KindMessageAdded, At: now,
	})
	for _, uid := range conv.ParticipantIDs() {
		publish(ctx, s.feed, s.logger, feed.UserChatsTopic(uid), feed.Event{
			ConversationID: conv.ID, UserID: uid, Kind: feed.KindMessageAdded, At: now,
		})
	}

	s.logger.Debug("Message sent", "conversationId", conv.ID, "messageId", msg.ID, "senderId", actor.ID)
	return msg, nil
}

func (s *ChannelService) fail(ctx context.Context, actor model.Identity, conversationID string, err error) error {
	metrics.SendFailures.Inc()
	s.logger.Error("Failed to send message",
		"conversationId", conversationID,
		"senderId", actor.ID,
		"error", err,
	)
	s.notifier.Notify(ctx, actor.ID, SendFailedNotice)
	return err
}
