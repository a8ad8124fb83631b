package service

import (
	"eventsponsor.messaging/internal/feed"
	"eventsponsor.messaging/internal/model"
	"eventsponsor.messaging/internal/repository"
	"eventsponsor.messaging/pkg/snowflake"
)

// Deps are the collaborators of a Messenger. Presence, Archive and Notifier are
// optional.
type Deps struct {
	Conversations repository.ConversationRepository
	Messages      repository.MessageRepository
	Profiles      repository.ProfileRepository
	Presence      repository.PresenceRepository
	Feed          feed.Feed
	Archive       MessageQueue
	Notifier      Notifier
	IDs           *snowflake.Node
}

// Messenger wires the messaging components around one set of stores.
type Messenger struct {
	Directory     *DirectoryService
	Locator       *LocatorService
	Factory       *FactoryService
	Channel       *ChannelService
	ReadState     *ReadStateService
	Subscriptions *SubscriptionService
}

func NewMessenger(deps Deps) *Messenger {
	directory := NewDirectoryService(deps.Profiles, deps.Presence, deps.Conversations, deps.Feed)
	locator := NewLocatorService(deps.Conversations)

	return &Messenger{
		Directory:     directory,
		Locator:       locator,
		Factory:       NewFactoryService(locator, directory, deps.Conversations, deps.Messages, deps.Feed, deps.IDs),
		Channel:       NewChannelService(deps.Conversations, deps.Messages, directory, deps.Archive, deps.Feed, deps.Notifier, deps.IDs),
		ReadState:     NewReadStateService(deps.Conversations, deps.Feed),
		Subscriptions: NewSubscriptionService(deps.Conversations, deps.Messages, deps.Feed),
	}
}

// Session binds the messenger to one authenticated actor.
func (m *Messenger) Session(identity model.Identity) *Session {
	return newSession(m, identity)
}
