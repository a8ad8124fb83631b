package handler

import (
	"github.com/gin-gonic/gin"

	"eventsponsor.messaging/internal/middleware"
	"eventsponsor.messaging/internal/model"
	"eventsponsor.messaging/internal/service"
	appErrors "eventsponsor.messaging/pkg/errors"
	"eventsponsor.messaging/pkg/response"
)

// ChatHandler serves the conversation endpoints.
type ChatHandler struct {
	messenger *service.Messenger
}

// NewChatHandler creates a chat handler.
func NewChatHandler(messenger *service.Messenger) *ChatHandler {
	return &ChatHandler{messenger: messenger}
}

// CreateChatRequest is the body of POST /chats.
type CreateChatRequest struct {
	OrganizerID   string         `json:"organizerId" binding:"required"`
	SponsorID     string         `json:"sponsorId" binding:"required"`
	EventTitle    string         `json:"eventTitle"`
	EventID       string         `json:"eventId"`
	CorrelationID string         `json:"correlationId"`
	Priority      model.Priority `json:"priority"`
	Tags          []string       `json:"tags"`
}

// EnquiryChatRequest is the body of POST /chats/enquiry.
type EnquiryChatRequest struct {
	OrganizerID string `json:"organizerId" binding:"required"`
	SponsorID   string `json:"sponsorId" binding:"required"`
	EnquiryID   string `json:"enquiryId" binding:"required"`
	EventTitle  string `json:"eventTitle"`
	EventID     string `json:"eventId"`
}

// SendMessageRequest is the body of POST /chats/:id/messages.
type SendMessageRequest struct {
	Text string            `json:"text"`
	Type model.MessageType `json:"type"`
}

// ArchiveRequest is the body of PUT /chats/:id/archive.
type ArchiveRequest struct {
	Archived *bool `json:"archived" binding:"required"`
}

// Create opens a conversation, or returns the matching one.
// POST /api/v1/chats
func (h *ChatHandler) Create(c *gin.Context) {
	var req CreateChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithMsg(c, appErrors.CodeInvalidParams, err.Error())
		return
	}

	id, err := h.messenger.Factory.CreateChat(c.Request.Context(), middleware.GetIdentity(c),
		req.OrganizerID, req.SponsorID, service.CreateOptions{
			EventTitle:    req.EventTitle,
			EventID:       req.EventID,
			CorrelationID: req.CorrelationID,
			Priority:      req.Priority,
			Tags:          req.Tags,
		})
	if err != nil {
		response.ErrorFromAppError(c, err)
		return
	}

	response.Success(c, gin.H{"id": id})
}

// CreateForEnquiry opens the conversation of a sponsorship enquiry.
// POST /api/v1/chats/enquiry
func (h *ChatHandler) CreateForEnquiry(c *gin.Context) {
	var req EnquiryChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithMsg(c, appErrors.CodeInvalidParams, err.Error())
		return
	}

	id, err := h.messenger.Factory.FindOrCreateChatForEnquiry(c.Request.Context(), middleware.GetIdentity(c),
		req.OrganizerID, req.SponsorID, req.EnquiryID, req.EventTitle, req.EventID)
	if err != nil {
		response.ErrorFromAppError(c, err)
		return
	}

	response.Success(c, gin.H{"id": id})
}

// Find looks up the conversation between two users.
// GET /api/v1/chats/find?userA=&userB=&correlationId=
func (h *ChatHandler) Find(c *gin.Context) {
	id, found, err := h.messenger.Locator.FindExistingChat(c.Request.Context(),
		c.Query("userA"), c.Query("userB"), c.Query("correlationId"))
	if err != nil {
		response.ErrorFromAppError(c, err)
		return
	}

	response.Success(c, gin.H{"id": id, "found": found})
}

// List returns the caller's visible conversations, newest first.
// GET /api/v1/chats
func (h *ChatHandler) List(c *gin.Context) {
	list, err := h.messenger.Subscriptions.LoadChats(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		response.ErrorFromAppError(c, appErrors.ErrStoreError.Wrap(err))
		return
	}

	response.Success(c, list)
}

// Messages returns the ordered messages of a conversation.
// GET /api/v1/chats/:id/messages
func (h *ChatHandler) Messages(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")

	if _, err := h.messenger.Locator.GetChat(ctx, middleware.GetUserID(c), id); err != nil {
		response.ErrorFromAppError(c, err)
		return
	}

	msgs, err := h.messenger.Subscriptions.LoadMessages(ctx, id)
	if err != nil {
		response.ErrorFromAppError(c, appErrors.ErrStoreError.Wrap(err))
		return
	}

	response.Success(c, gin.H{"chatId": id, "messages": msgs})
}

// Send appends a message. Blank text is accepted and ignored.
// POST /api/v1/chats/:id/messages
func (h *ChatHandler) Send(c *gin.Context) {
	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithMsg(c, appErrors.CodeInvalidParams, err.Error())
		return
	}
	if req.Type == "" {
		req.Type = model.MessageTypeText
	}

	msg, err := h.messenger.Channel.SendMessage(c.Request.Context(), middleware.GetIdentity(c),
		c.Param("id"), req.Text, req.Type)
	if err != nil {
		response.ErrorFromAppError(c, err)
		return
	}

	response.Success(c, msg)
}

// MarkRead resets the caller's unread counter.
// POST /api/v1/chats/:id/read
func (h *ChatHandler) MarkRead(c *gin.Context) {
	h.messenger.ReadState.MarkAsRead(c.Request.Context(), middleware.GetIdentity(c), c.Param("id"))
	response.Success(c, nil)
}

// Archive hides or restores a conversation for the caller.
// PUT /api/v1/chats/:id/archive
func (h *ChatHandler) Archive(c *gin.Context) {
	var req ArchiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithMsg(c, appErrors.CodeInvalidParams, err.Error())
		return
	}

	if err := h.messenger.ReadState.SetArchived(c.Request.Context(), middleware.GetIdentity(c),
		c.Param("id"), *req.Archived); err != nil {
		response.ErrorFromAppError(c, err)
		return
	}

	response.Success(c, gin.H{"archived": *req.Archived})
}

// ListAll returns every conversation in the store.
// GET /api/v1/admin/chats
func (h *ChatHandler) ListAll(c *gin.Context) {
	convs, err := h.messenger.Locator.ListConversations(c.Request.Context())
	if err != nil {
		response.ErrorFromAppError(c, err)
		return
	}

	response.Success(c, gin.H{"chats": convs, "total": len(convs)})
}
