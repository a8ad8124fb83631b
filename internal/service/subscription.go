package service

import (
	"cmp"
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"eventsponsor.messaging/internal/feed"
	"eventsponsor.messaging/internal/metrics"
	"eventsponsor.messaging/internal/model"
	"eventsponsor.messaging/internal/repository"
	appErrors "eventsponsor.messaging/pkg/errors"
)

// SubscriptionState is the lifecycle state of a live subscription.
type SubscriptionState int

const (
	StateUnattached SubscriptionState = iota
	StateLoading
	StateAttached
	StateError
)

func (s SubscriptionState) String() string {
	switch s {
	case StateUnattached:
		return "unattached"
	case StateLoading:
		return "loading"
	case StateAttached:
		return "attached"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

const (
	viewChats    = "chats"
	viewMessages = "messages"

	refreshTimeout = 10 * time.Second
)

// Subscription is a live view that re-reads its data and calls its listener on
// every change event. Listener calls never overlap.
type Subscription struct {
	view   string
	reload func(ctx context.Context) error
	logger *slog.Logger

	// mu serializes reloads and guards the fields below.
	mu          sync.Mutex
	state       SubscriptionState
	unsubscribe func()
}

// State returns the current lifecycle state.
func (s *Subscription) State() SubscriptionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Unsubscribe detaches the listener. It is safe to call more than once.
func (s *Subscription) Unsubscribe() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.release(StateUnattached)
}

// release must be called with mu held.
func (s *Subscription) release(next SubscriptionState) {
	if s.state == StateAttached {
		metrics.ActiveSubscriptions.WithLabelValues(s.view).Dec()
	}
	if s.unsubscribe != nil {
		s.unsubscribe()
		s.unsubscribe = nil
	}
	s.state = next
}

func (s *Subscription) onEvent(ev feed.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
	defer cancel()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateAttached {
		return
	}
	if err := s.reload(ctx); err != nil {
		s.logger.Warn("Subscription refresh failed", "view", s.view, "kind", ev.Kind, "error", err)
	}
}

// SubscriptionService attaches live views to the change feed.
type SubscriptionService struct {
	conversations repository.ConversationRepository
	messages      repository.MessageRepository
	feed          feed.Feed
	logger        *slog.Logger
}

func NewSubscriptionService(
	conversations repository.ConversationRepository,
	messages repository.MessageRepository,
	f feed.Feed,
) *SubscriptionService {
	return &SubscriptionService{
		conversations: conversations,
		messages:      messages,
		feed:          f,
		logger:        slog.Default(),
	}
}

// SubscribeToChats publishes userID's visible conversations, newest first, now and
// after every change. On an initial failure the returned Subscription is already
// in StateError and released.
func (s *SubscriptionService) SubscribeToChats(ctx context.Context, userID string, listener func(model.ChatList)) (*Subscription, error) {
	reload := func(ctx context.Context) error {
		list, err := s.LoadChats(ctx, userID)
		if err != nil {
			return err
		}
		listener(list)
		return nil
	}
	return s.attach(ctx, viewChats, feed.UserChatsTopic(userID), reload)
}

// SubscribeToChat publishes the messages of a conversation in display order, now
// and after every change.
func (s *SubscriptionService) SubscribeToChat(ctx context.Context, conversationID string, listener func([]model.Message)) (*Subscription, error) {
	reload := func(ctx context.Context) error {
		msgs, err := s.LoadMessages(ctx, conversationID)
		if err != nil {
			return err
		}
		listener(msgs)
		return nil
	}
	return s.attach(ctx, viewMessages, feed.ChatMessagesTopic(conversationID), reload)
}

func (s *SubscriptionService) attach(ctx context.Context, view, topic string, reload func(context.Context) error) (*Subscription, error) {
	sub := &Subscription{
		view:   view,
		reload: reload,
		logger: s.logger,
		state:  StateLoading,
	}

	// Hold the lock so events arriving before the first snapshot wait for it.
	sub.mu.Lock()
	defer sub.mu.Unlock()

	unsubscribe, err := s.feed.Subscribe(topic, sub.onEvent)
	if err != nil {
		sub.state = StateError
		s.logger.Error("Failed to attach subscription", "view", view, "topic", topic, "error", err)
		return sub, appErrors.ErrStoreError.Wrap(err)
	}
	sub.unsubscribe = unsubscribe

	if err := reload(ctx); err != nil {
		sub.release(StateError)
		s.logger.Error("Initial subscription load failed", "view", view, "topic", topic, "error", err)
		return sub, appErrors.ErrStoreError.Wrap(err)
	}

	sub.state = StateAttached
	metrics.ActiveSubscriptions.WithLabelValues(view).Inc()
	return sub, nil
}

// LoadChats reads the conversation list of userID once: archived conversations
// are left out and the rest sorted by updatedAt, newest first.
func (s *SubscriptionService) LoadChats(ctx context.Context, userID string) (model.ChatList, error) {
	convs, err := s.conversations.ListByParticipant(ctx, userID)
	if err != nil {
		return model.ChatList{}, err
	}

	list := model.ChatList{Chats: make([]model.Conversation, 0, len(convs))}
	for _, conv := range convs {
		if !conv.HasParticipant(userID) || conv.IsArchivedFor(userID) {
			continue
		}
		list.UnreadTotal += conv.UnreadFor(userID)
		list.Chats = append(list.Chats, conv)
	}

	slices.SortStableFunc(list.Chats, func(a, b model.Conversation) int {
		if c := cmp.Compare(b.UpdatedAt, a.UpdatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return list, nil
}

// LoadMessages reads the messages of a conversation once, ascending by timestamp
// with ties broken by message id.
func (s *SubscriptionService) LoadMessages(ctx context.Context, conversationID string) ([]model.Message, error) {
	msgs, err := s.messages.ListByConversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	slices.SortStableFunc(msgs, func(a, b model.Message) int {
		if c := cmp.Compare(a.Timestamp, b.Timestamp); c != 0 {
			return c
		}
		return compareMessageIDs(a.ID, b.ID)
	})
	return msgs, nil
}
