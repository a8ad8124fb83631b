package service

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eventsponsor.messaging/internal/feed"
	"eventsponsor.messaging/internal/model"
	appErrors "eventsponsor.messaging/pkg/errors"
)

func TestSession_EndToEnd(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	org := f.m.Session(orgActor)
	spo := f.m.Session(spoActor)
	defer org.Close()
	defer spo.Close()

	var mu sync.Mutex
	var pushed []string
	spo.OnMessages(func(conversationID string, msgs []model.Message) {
		mu.Lock()
		defer mu.Unlock()
		pushed = append(pushed, msgs[len(msgs)-1].Text)
	})

	require.NoError(t, org.SubscribeToChats(ctx))
	require.NoError(t, spo.SubscribeToChats(ctx))
	assert.False(t, org.Loading())
	assert.Empty(t, org.Chats())

	id, err := org.CreateChat(ctx, "org-1", "spo-1", CreateOptions{EventTitle: "Tech Summit", Priority: model.PriorityHigh})
	require.NoError(t, err)

	require.Len(t, spo.Chats(), 1)
	assert.Equal(t, 1, spo.UnreadTotal())
	assert.Equal(t, 0, org.UnreadTotal())

	require.NoError(t, spo.SubscribeToChat(ctx, id))
	assert.Equal(t, id, spo.ActiveChat())
	require.Len(t, spo.Messages(), 1)
	assert.Equal(t, model.MessageTypeSystem, spo.Messages()[0].Type)

	_, err = org.SendMessage(ctx, id, "Welcome aboard", "")
	require.NoError(t, err)
	assert.Len(t, spo.Messages(), 2)
	assert.Equal(t, 2, spo.UnreadTotal())

	spo.MarkAsRead(ctx, id)
	assert.Equal(t, 0, spo.UnreadTotal())

	found, ok, err := spo.FindExistingChat(ctx, "spo-1", "org-1", "")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, id, found)
	assert.Equal(t, model.RoleOrganizer, spo.GetUserRole(ctx, "org-1"))

	mu.Lock()
	assert.Equal(t, []string{"Conversation started about Tech Summit", "Welcome aboard"}, pushed)
	mu.Unlock()

	require.NoError(t, spo.SetArchived(ctx, id, true))
	assert.Empty(t, spo.Chats())
	assert.Len(t, org.Chats(), 1)
}

func TestSession_SwitchingChatsReplacesSubscription(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.m.Session(orgActor)

	first := createChat(t, f)
	second, err := s.FindOrCreateChatForEnquiry(ctx, "org-1", "spo-1", "enq-1", "Expo", "evt-1")
	require.NoError(t, err)

	require.NoError(t, s.SubscribeToChat(ctx, first))
	require.NoError(t, s.SubscribeToChat(ctx, second))
	assert.Equal(t, second, s.ActiveChat())
	assert.Zero(t, f.feed.Subscribers(feed.ChatMessagesTopic(first)))
	assert.Equal(t, 1, f.feed.Subscribers(feed.ChatMessagesTopic(second)))

	// a message in the inactive chat does not touch the visible messages
	_, err = s.SendMessage(ctx, first, "elsewhere", "")
	require.NoError(t, err)
	require.Len(t, s.Messages(), 1)
	assert.Equal(t, "Conversation started about Expo", s.Messages()[0].Text)

	s.UnsubscribeChat()
	assert.Empty(t, s.ActiveChat())
	assert.Empty(t, s.Messages())
	assert.Zero(t, f.feed.Subscribers(feed.ChatMessagesTopic(second)))
}

func TestSession_CloseReleasesSubscriptions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := createChat(t, f)

	s := f.m.Session(spoActor)
	require.NoError(t, s.SubscribeToChats(ctx))
	require.NoError(t, s.SubscribeToChat(ctx, id))

	s.Close()
	s.Close()

	assert.Zero(t, f.feed.Subscribers(feed.UserChatsTopic("spo-1")))
	assert.Zero(t, f.feed.Subscribers(feed.ChatMessagesTopic(id)))
}

func TestSession_Anonymous(t *testing.T) {
	f := newFixture(t)
	s := f.m.Session(anon)

	assert.ErrorIs(t, s.SubscribeToChats(context.Background()), appErrors.ErrUnauthenticated)
	assert.ErrorIs(t, s.SubscribeToChat(context.Background(), "c1"), appErrors.ErrUnauthenticated)

	_, err := s.CreateChat(context.Background(), "org-1", "spo-1", CreateOptions{})
	assert.ErrorIs(t, err, appErrors.ErrUnauthenticated)

	msg, err := s.SendMessage(context.Background(), "c1", "hello", "")
	assert.NoError(t, err)
	assert.Nil(t, msg)
}
