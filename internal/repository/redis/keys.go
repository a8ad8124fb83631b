package redis

import (
	"strings"
	"time"

	"eventsponsor.messaging/internal/repository"
)

const (
	keyPrefix = "es:"

	// ChatIndexKey lists every conversation id scored by createdAt.
	ChatIndexKey = keyPrefix + "chat:index"

	// PresenceTTL bounds how long a user stays online without a heartbeat.
	PresenceTTL = 90 * time.Second
)

// hash fields of a conversation
const (
	fieldID            = "id"
	fieldCorrelationID = "correlation_id"
	fieldSubjectTitle  = "subject_title"
	fieldSubjectID     = "subject_id"
	fieldPriority      = "priority"
	fieldTags          = "tags"
	fieldLastMessage   = "last_message"
	fieldCreatedAt     = "created_at"
	fieldUpdatedAt     = "updated_at"

	prefixParticipant = "participant:"
	prefixUnread      = "unread:"
	prefixActivity    = "activity:"
	prefixArchived    = "archived:"
)

// BuildChatKey returns the hash key of a conversation.
// Key: es:chat:{id}
func BuildChatKey(id string) string {
	return keyPrefix + "chat:" + id
}

// BuildChatMessagesKey returns the sorted set holding a conversation's messages.
// Key: es:chat:{id}:messages
func BuildChatMessagesKey(id string) string {
	return BuildChatKey(id) + ":messages"
}

// BuildPairKey returns the pair index key; argument order does not matter.
// Key: es:chat:pair:{low}:{high}
func BuildPairKey(a, b string) string {
	a, b = repository.SortedPair(a, b)
	return keyPrefix + "chat:pair:" + a + ":" + b
}

// BuildUserChatsKey returns a user's conversation index scored by updatedAt.
// Key: es:chat:user:{userId}
func BuildUserChatsKey(userID string) string {
	return keyPrefix + "chat:user:" + userID
}

// BuildPresenceKey returns the expiring online marker of a user.
func BuildPresenceKey(userID string) string {
	return keyPrefix + "presence:" + userID
}

// BuildLastSeenKey returns the last-seen timestamp key of a user.
func BuildLastSeenKey(userID string) string {
	return keyPrefix + "lastseen:" + userID
}

func participantField(userID string) string { return prefixParticipant + userID }
func unreadField(userID string) string      { return prefixUnread + userID }
func activityField(userID string) string    { return prefixActivity + userID }
func archivedField(userID string) string    { return prefixArchived + userID }

// splitField returns the user id of a per-user field, or ok=false.
func splitField(field, prefix string) (string, bool) {
	if !strings.HasPrefix(field, prefix) {
		return "", false
	}
	return field[len(prefix):], true
}
