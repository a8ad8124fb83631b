package model

// MessageType of a chat message.
type MessageType string

const (
	MessageTypeText   MessageType = "text"
	MessageTypeSystem MessageType = "system"
	MessageTypeFile   MessageType = "file"
)

// Valid reports whether t is a known type.
func (t MessageType) Valid() bool {
	return t == MessageTypeText || t == MessageTypeSystem || t == MessageTypeFile
}

// SystemSenderID is the sender of synthetic messages.
const SystemSenderID = "system"

// Message belongs to exactly one conversation and is never modified after append.
type Message struct {
	ID             string           `json:"id"`
	ConversationID string           `json:"conversationId"`
	SenderID       string           `json:"senderId"`
	SenderName     string           `json:"senderName"`
	SenderRole     Role             `json:"senderRole,omitempty"`
	Text           string           `json:"text"`
	Timestamp      int64            `json:"timestamp"`
	Type           MessageType      `json:"type"`
	FileURL        string           `json:"fileUrl,omitempty"`
	FileName       string           `json:"fileName,omitempty"`
	FileSize       int64            `json:"fileSize,omitempty"`
	ReadBy         map[string]int64 `json:"readBy"`
	Edited         bool             `json:"edited,omitempty"`
	EditedAt       int64            `json:"editedAt,omitempty"`
}

// Summary returns the LastMessage view of m.
func (m *Message) Summary() LastMessage {
	return LastMessage{
		Text:        m.Text,
		Timestamp:   m.Timestamp,
		SenderID:    m.SenderID,
		SenderName:  m.SenderName,
		MessageType: m.Type,
	}
}
