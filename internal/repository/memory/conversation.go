package memory

import (
	"context"
	"slices"
	"sync"

	"eventsponsor.messaging/internal/model"
	"eventsponsor.messaging/internal/repository"
)

// ConversationRepo keeps conversations in process memory. Used for local
// development and tests.
type ConversationRepo struct {
	mu            sync.RWMutex
	conversations map[string]*model.Conversation
	order         []string            // creation order, the scan order of ListAll
	pairIndex     map[string][]string // "a|b" -> conversation ids
	userIndex     map[string][]string // userID -> conversation ids
}

// NewConversationRepo creates an empty repository.
func NewConversationRepo() *ConversationRepo {
	return &ConversationRepo{
		conversations: make(map[string]*model.Conversation),
		pairIndex:     make(map[string][]string),
		userIndex:     make(map[string][]string),
	}
}

func pairKey(a, b string) string {
	a, b = repository.SortedPair(a, b)
	return a + "|" + b
}

func (r *ConversationRepo) Create(ctx context.Context, conv *model.Conversation) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.conversations[conv.ID]; exists {
		return false, nil
	}

	stored := cloneConversation(conv)
	r.conversations[conv.ID] = stored
	r.order = append(r.order, conv.ID)

	ids := conv.ParticipantIDs()
	if len(ids) == 2 {
		key := pairKey(ids[0], ids[1])
		r.pairIndex[key] = append(r.pairIndex[key], conv.ID)
	}
	for _, id := range ids {
		r.userIndex[id] = append(r.userIndex[id], conv.ID)
	}
	return true, nil
}

func (r *ConversationRepo) GetByID(ctx context.Context, id string) (*model.Conversation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conv, ok := r.conversations[id]
	if !ok {
		return nil, nil
	}
	return cloneConversation(conv), nil
}

func (r *ConversationRepo) ListAll(ctx context.Context) ([]model.Conversation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.collect(r.order), nil
}

func (r *ConversationRepo) ListByPair(ctx context.Context, a, b string) ([]model.Conversation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.collect(r.pairIndex[pairKey(a, b)]), nil
}

func (r *ConversationRepo) ListByParticipant(ctx context.Context, userID string) ([]model.Conversation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.collect(r.userIndex[userID]), nil
}

func (r *ConversationRepo) UpdateLastMessage(ctx context.Context, id string, last model.LastMessage, updatedAt int64) error {
	return r.mutate(id, func(c *model.Conversation) {
		l := last
		c.LastMessage = &l
		c.UpdatedAt = updatedAt
	})
}

func (r *ConversationRepo) IncrementUnread(ctx context.Context, id, userID string, at int64) error {
	return r.mutate(id, func(c *model.Conversation) {
		if c.UnreadCount == nil {
			c.UnreadCount = make(map[string]int)
		}
		if c.LastActivityAt == nil {
			c.LastActivityAt = make(map[string]int64)
		}
		c.UnreadCount[userID]++
		c.LastActivityAt[userID] = at
	})
}

func (r *ConversationRepo) SetUnread(ctx context.Context, id, userID string, n int) error {
	return r.mutate(id, func(c *model.Conversation) {
		if c.UnreadCount == nil {
			c.UnreadCount = make(map[string]int)
		}
		c.UnreadCount[userID] = n
	})
}

func (r *ConversationRepo) SetArchived(ctx context.Context, id, userID string, archived bool) error {
	return r.mutate(id, func(c *model.Conversation) {
		if c.Archived == nil {
			c.Archived = make(map[string]bool)
		}
		c.Archived[userID] = archived
	})
}

func (r *ConversationRepo) UpdateParticipant(ctx context.Context, id string, p model.Participant) error {
	return r.mutate(id, func(c *model.Conversation) {
		if _, ok := c.Participants[p.ID]; ok {
			c.Participants[p.ID] = p
		}
	})
}

func (r *ConversationRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	conv, ok := r.conversations[id]
	if !ok {
		return nil
	}
	delete(r.conversations, id)

	match := func(v string) bool { return v == id }
	r.order = slices.DeleteFunc(r.order, match)
	ids := conv.ParticipantIDs()
	if len(ids) == 2 {
		key := pairKey(ids[0], ids[1])
		r.pairIndex[key] = slices.DeleteFunc(r.pairIndex[key], match)
	}
	for _, uid := range ids {
		r.userIndex[uid] = slices.DeleteFunc(r.userIndex[uid], match)
	}
	return nil
}

// mutate applies fn to the stored conversation. Updates of a missing id are
// dropped, matching a partial update on an absent document path.
func (r *ConversationRepo) mutate(id string, fn func(c *model.Conversation)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if conv, ok := r.conversations[id]; ok {
		fn(conv)
	}
	return nil
}

func (r *ConversationRepo) collect(ids []string) []model.Conversation {
	out := make([]model.Conversation, 0, len(ids))
	for _, id := range ids {
		if conv, ok := r.conversations[id]; ok {
			out = append(out, *cloneConversation(conv))
		}
	}
	return out
}

func cloneConversation(c *model.Conversation) *model.Conversation {
	out := *c
	out.Participants = make(map[string]model.Participant, len(c.Participants))
	for k, v := range c.Participants {
		out.Participants[k] = v
	}
	if c.LastMessage != nil {
		l := *c.LastMessage
		out.LastMessage = &l
	}
	out.Tags = append([]string(nil), c.Tags...)
	out.UnreadCount = make(map[string]int, len(c.UnreadCount))
	for k, v := range c.UnreadCount {
		out.UnreadCount[k] = v
	}
	if c.LastActivityAt != nil {
		out.LastActivityAt = make(map[string]int64, len(c.LastActivityAt))
		for k, v := range c.LastActivityAt {
			out.LastActivityAt[k] = v
		}
	}
	out.Archived = make(map[string]bool, len(c.Archived))
	for k, v := range c.Archived {
		out.Archived[k] = v
	}
	return &out
}
