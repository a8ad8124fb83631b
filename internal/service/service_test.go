package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"eventsponsor.messaging/internal/feed"
	"eventsponsor.messaging/internal/model"
	"eventsponsor.messaging/internal/repository"
	"eventsponsor.messaging/internal/repository/memory"
	"eventsponsor.messaging/pkg/snowflake"
)

var (
	errBoom = errors.New("boom")

	orgActor = model.Identity{ID: "org-1", DisplayName: "Olivia", Email: "olivia@events.test"}
	spoActor = model.Identity{ID: "spo-1", DisplayName: "Sam", Email: "sam@acme.test"}
	anon     = model.Identity{}
)

type fixture struct {
	convs    *memory.ConversationRepo
	msgs     *memory.MessageRepo
	profiles *memory.ProfileRepo
	presence *memory.PresenceRepo
	feed     *feed.Local
	notices  *noticeRecorder
	queue    *queueRecorder
	ids      *snowflake.Node
	clock    *fakeClock
	m        *Messenger
}

// fakeClock advances one second per reading so timestamps never tie.
type fakeClock struct {
	ms atomic.Int64
}

func (c *fakeClock) now() int64 {
	return c.ms.Add(1000)
}

type noticeRecorder struct {
	mu      sync.Mutex
	notices []string
}

func (r *noticeRecorder) Notify(ctx context.Context, userID, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notices = append(r.notices, userID+": "+message)
}

func (r *noticeRecorder) all() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.notices...)
}

type queueRecorder struct {
	mu   sync.Mutex
	msgs []model.Message
}

func (q *queueRecorder) Enqueue(msg model.Message) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.msgs = append(q.msgs, msg)
	return true
}

func (q *queueRecorder) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.msgs)
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	ids, err := snowflake.NewNode(1)
	require.NoError(t, err)

	f := &fixture{
		convs: memory.NewConversationRepo(),
		msgs:  memory.NewMessageRepo(),
		profiles: memory.NewProfileRepo(
			model.Profile{ID: "org-1", Name: "Olivia Organizer", Email: "olivia@events.test", Role: model.RoleOrganizer},
			model.Profile{ID: "spo-1", Name: "Sam Sponsor", Email: "sam@acme.test", Role: model.RoleSponsor, CompanyName: "Acme"},
			model.Profile{ID: "spo-2", Name: "Sue Sponsor", Email: "sue@globex.test", Role: model.RoleSponsor, CompanyName: "Globex"},
		),
		presence: memory.NewPresenceRepo(),
		feed:     feed.NewLocal(),
		notices:  &noticeRecorder{},
		queue:    &queueRecorder{},
		ids:      ids,
		clock:    &fakeClock{},
	}
	f.clock.ms.Store(1_700_000_000_000)
	f.m = f.messenger(f.convs, f.msgs)
	return f
}

// messenger builds a Messenger over the fixture's stores with the given
// conversation and message repositories substituted.
func (f *fixture) messenger(convs repository.ConversationRepository, msgs repository.MessageRepository) *Messenger {
	m := NewMessenger(Deps{
		Conversations: convs,
		Messages:      msgs,
		Profiles:      f.profiles,
		Presence:      f.presence,
		Feed:          f.feed,
		Archive:       f.queue,
		Notifier:      f.notices,
		IDs:           f.ids,
	})
	m.Factory.now = f.clock.now
	m.Channel.now = f.clock.now
	return m
}

func (f *fixture) conversation(t *testing.T, id string) *model.Conversation {
	t.Helper()
	conv, err := f.convs.GetByID(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, conv)
	return conv
}

func (f *fixture) messages(t *testing.T, id string) []model.Message {
	t.Helper()
	msgs, err := f.msgs.ListByConversation(context.Background(), id)
	require.NoError(t, err)
	return msgs
}
