package service

import (
	"context"
	"slices"
	"sync"

	"eventsponsor.messaging/internal/model"
	appErrors "eventsponsor.messaging/pkg/errors"
)

// Session holds one actor's live messaging state: the conversation list, the
// messages of the active conversation, and the operations bound to the actor.
type Session struct {
	m        *Messenger
	identity model.Identity

	mu          sync.RWMutex
	chats       []model.Conversation
	unreadTotal int
	messages    []model.Message
	activeChat  string
	loadingN    int
	chatsSub    *Subscription
	chatSub     *Subscription
	onChats     func(model.ChatList)
	onMessages  func(conversationID string, msgs []model.Message)
}

func newSession(m *Messenger, identity model.Identity) *Session {
	return &Session{m: m, identity: identity}
}

// Identity returns the actor of the session.
func (s *Session) Identity() model.Identity {
	return s.identity
}

// OnChats registers a listener called after every chat list update.
func (s *Session) OnChats(fn func(model.ChatList)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onChats = fn
}

// OnMessages registers a listener called after every message list update.
func (s *Session) OnMessages(fn func(conversationID string, msgs []model.Message)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onMessages = fn
}

func (s *Session) Chats() []model.Conversation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.chats)
}

func (s *Session) Messages() []model.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.messages)
}

func (s *Session) UnreadTotal() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.unreadTotal
}

// ActiveChat returns the id of the conversation whose messages are subscribed.
func (s *Session) ActiveChat() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.activeChat
}

// Loading reports whether a subscription is waiting for its first snapshot.
func (s *Session) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loadingN > 0
}

// SubscribeToChats replaces the session's chat list subscription.
func (s *Session) SubscribeToChats(ctx context.Context) error {
	if !s.identity.Authenticated() {
		return appErrors.ErrUnauthenticated
	}

	s.mu.Lock()
	prev := s.chatsSub
	s.chatsSub = nil
	s.loadingN++
	s.mu.Unlock()
	if prev != nil {
		prev.Unsubscribe()
	}

	sub, err := s.m.Subscriptions.SubscribeToChats(ctx, s.identity.ID, s.setChats)

	s.mu.Lock()
	s.loadingN--
	if err == nil {
		s.chatsSub = sub
	}
	s.mu.Unlock()
	return err
}

// SubscribeToChat makes conversationID the active chat and subscribes to its
// messages, replacing any previous message subscription.
func (s *Session) SubscribeToChat(ctx context.Context, conversationID string) error {
	if !s.identity.Authenticated() {
		return appErrors.ErrUnauthenticated
	}

	s.mu.Lock()
	prev := s.chatSub
	s.chatSub = nil
	s.activeChat = conversationID
	s.messages = nil
	s.loadingN++
	s.mu.Unlock()
	if prev != nil {
		prev.Unsubscribe()
	}

	sub, err := s.m.Subscriptions.SubscribeToChat(ctx, conversationID, func(msgs []model.Message) {
		s.setMessages(conversationID, msgs)
	})

	s.mu.Lock()
	s.loadingN--
	if err == nil && s.activeChat == conversationID {
		s.chatSub = sub
		sub = nil
	}
	s.mu.Unlock()
	if sub != nil && err == nil {
		// the active chat changed while attaching
		sub.Unsubscribe()
	}
	return err
}

// UnsubscribeChat drops the active chat and its message subscription.
func (s *Session) UnsubscribeChat() {
	s.mu.Lock()
	prev := s.chatSub
	s.chatSub = nil
	s.activeChat = ""
	s.messages = nil
	s.mu.Unlock()
	if prev != nil {
		prev.Unsubscribe()
	}
}

func (s *Session) setChats(list model.ChatList) {
	s.mu.Lock()
	s.chats = list.Chats
	s.unreadTotal = list.UnreadTotal
	fn := s.onChats
	s.mu.Unlock()
	if fn != nil {
		fn(list)
	}
}

func (s *Session) setMessages(conversationID string, msgs []model.Message) {
	s.mu.Lock()
	if s.activeChat != conversationID {
		s.mu.Unlock()
		return
	}
	s.messages = msgs
	fn := s.onMessages
	s.mu.Unlock()
	if fn != nil {
		fn(conversationID, msgs)
	}
}

func (s *Session) SendMessage(ctx context.Context, conversationID, text string, msgType model.MessageType) (*model.Message, error) {
	return s.m.Channel.SendMessage(ctx, s.identity, conversationID, text, msgType)
}

func (s *Session) MarkAsRead(ctx context.Context, conversationID string) {
	s.m.ReadState.MarkAsRead(ctx, s.identity, conversationID)
}

func (s *Session) SetArchived(ctx context.Context, conversationID string, archived bool) error {
	return s.m.ReadState.SetArchived(ctx, s.identity, conversationID, archived)
}

func (s *Session) CreateChat(ctx context.Context, organizerID, sponsorID string, opts CreateOptions) (string, error) {
	return s.m.Factory.CreateChat(ctx, s.identity, organizerID, sponsorID, opts)
}

func (s *Session) FindOrCreateChatForEnquiry(ctx context.Context, organizerID, sponsorID, enquiryID, eventTitle, eventID string) (string, error) {
	return s.m.Factory.FindOrCreateChatForEnquiry(ctx, s.identity, organizerID, sponsorID, enquiryID, eventTitle, eventID)
}

func (s *Session) FindExistingChat(ctx context.Context, a, b, correlationID string) (string, bool, error) {
	return s.m.Locator.FindExistingChat(ctx, a, b, correlationID)
}

func (s *Session) GetUserRole(ctx context.Context, userID string) model.Role {
	return s.m.Directory.GetUserRole(ctx, userID)
}

// Close releases both subscriptions.
func (s *Session) Close() {
	s.mu.Lock()
	chats, chat := s.chatsSub, s.chatSub
	s.chatsSub, s.chatSub = nil, nil
	s.activeChat = ""
	s.mu.Unlock()

	if chats != nil {
		chats.Unsubscribe()
	}
	if chat != nil {
		chat.Unsubscribe()
	}
}
