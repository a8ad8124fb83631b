package service

import (
	"strconv"
	"strings"

	"github.com/google/uuid"

	"eventsponsor.messaging/internal/repository"
)

// conversationNamespace scopes the name-based conversation ids.
var conversationNamespace = uuid.MustParse("6f1c1f5e-7d0a-4c55-9b8e-3f6a2c9d4e10")

// ConversationID derives the id of the conversation between a and b for an
// optional correlation id. The result does not depend on argument order, so two
// concurrent creates for the same pair collide on the same key.
func ConversationID(a, b, correlationID string) string {
	lo, hi := repository.SortedPair(a, b)
	var name []byte
	for _, part := range []string{lo, hi, correlationID} {
		// length-prefixed so no part can spill into the next
		name = strconv.AppendInt(name, int64(len(part)), 10)
		name = append(name, ':')
		name = append(name, part...)
	}
	return uuid.NewSHA1(conversationNamespace, name).String()
}

// validConversationID reports whether id has the canonical form of a derived
// conversation id. Other strings never reach the store.
func validConversationID(id string) bool {
	if len(id) != 36 {
		return false
	}
	_, err := uuid.Parse(id)
	return err == nil
}

// compareMessageIDs orders numeric ids by value and falls back to byte order.
func compareMessageIDs(a, b string) int {
	if len(a) != len(b) && isDigits(a) && isDigits(b) {
		if len(a) < len(b) {
			return -1
		}
		return 1
	}
	return strings.Compare(a, b)
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
