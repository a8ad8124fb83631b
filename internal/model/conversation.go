package model

// Role is a marketplace participant role.
type Role string

const (
	RoleOrganizer Role = "organizer"
	RoleSponsor   Role = "sponsor"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleOrganizer || r == RoleSponsor
}

// Priority of a conversation in the inbox.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Valid reports whether p is a known priority.
func (p Priority) Valid() bool {
	return p == PriorityLow || p == PriorityMedium || p == PriorityHigh
}

// DefaultTag is applied to conversations created without tags.
const DefaultTag = "general"

// Participant is the snapshot of a user embedded in a conversation at creation.
type Participant struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Email       string `json:"email"`
	Role        Role   `json:"role"`
	Avatar      string `json:"avatar,omitempty"`
	CompanyName string `json:"companyName,omitempty"`
	LastSeen    int64  `json:"lastSeen"`
	IsOnline    bool   `json:"isOnline"`
}

// LastMessage mirrors the most recently appended message.
type LastMessage struct {
	Text        string      `json:"text"`
	Timestamp   int64       `json:"timestamp"`
	SenderID    string      `json:"senderId"`
	SenderName  string      `json:"senderName"`
	MessageType MessageType `json:"messageType"`
}

// Conversation is the aggregate root shared by exactly two participants.
type Conversation struct {
	ID             string                 `json:"id"`
	Participants   map[string]Participant `json:"participants"`
	LastMessage    *LastMessage           `json:"lastMessage,omitempty"`
	CorrelationID  string                 `json:"correlationId,omitempty"`
	SubjectTitle   string                 `json:"subjectTitle,omitempty"`
	SubjectID      string                 `json:"subjectId,omitempty"`
	Priority       Priority               `json:"priority"`
	Tags           []string               `json:"tags"`
	CreatedAt      int64                  `json:"createdAt"`
	UpdatedAt      int64                  `json:"updatedAt"`
	UnreadCount    map[string]int         `json:"unreadCount"`
	LastActivityAt map[string]int64       `json:"lastActivityAt,omitempty"`
	Archived       map[string]bool        `json:"archived"`
}

// HasParticipant reports whether userID is one of the two participants.
func (c *Conversation) HasParticipant(userID string) bool {
	_, ok := c.Participants[userID]
	return ok
}

// ParticipantIDs returns the participant ids in no particular order.
func (c *Conversation) ParticipantIDs() []string {
	ids := make([]string, 0, len(c.Participants))
	for id := range c.Participants {
		ids = append(ids, id)
	}
	return ids
}

// IsArchivedFor reports whether userID hid the conversation.
func (c *Conversation) IsArchivedFor(userID string) bool {
	return c.Archived[userID]
}

// UnreadFor returns userID's unread counter; negative or missing values count as 0.
func (c *Conversation) UnreadFor(userID string) int {
	n := c.UnreadCount[userID]
	if n < 0 {
		return 0
	}
	return n
}

// ChatList is one publication of the conversation list of a user.
type ChatList struct {
	Chats       []Conversation `json:"chats"`
	UnreadTotal int            `json:"unreadTotal"`
}
