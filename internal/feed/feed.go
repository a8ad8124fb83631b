// Package feed carries change notifications from writers to live subscriptions.
package feed

import (
	"context"
	"strings"
)

// Kind names what changed.
type Kind string

const (
	KindChatCreated  Kind = "chat_created"
	KindMessageAdded Kind = "message_added"
	KindReadState    Kind = "read_state"
	KindArchived     Kind = "archived"
	KindSnapshot     Kind = "snapshot"
)

// Event is the payload published on a topic.
type Event struct {
	ConversationID string `json:"conversationId"`
	UserID         string `json:"userId,omitempty"`
	Kind           Kind   `json:"kind"`
	At             int64  `json:"at"`
}

// Handler receives events for a subscribed topic.
type Handler func(Event)

// Feed publishes events to topics and fans them out to handlers.
type Feed interface {
	Publish(ctx context.Context, topic string, ev Event) error
	// Subscribe registers h for topic. The returned func removes it and is safe to
	// call more than once.
	Subscribe(topic string, h Handler) (func(), error)
}

const topicPrefix = "es."

// UserChatsTopic carries changes to the conversation list of a user.
// Subject: es.chats.user.{userId}
func UserChatsTopic(userID string) string {
	return topicPrefix + "chats.user." + sanitize(userID)
}

// ChatMessagesTopic carries changes to the message list of a conversation.
// Subject: es.chat.{conversationId}.messages
func ChatMessagesTopic(conversationID string) string {
	return topicPrefix + "chat." + sanitize(conversationID) + ".messages"
}

// sanitize keeps ids from introducing extra subject tokens or wildcards.
func sanitize(id string) string {
	return strings.NewReplacer(".", "_", "*", "_", ">", "_", " ", "_").Replace(id)
}
