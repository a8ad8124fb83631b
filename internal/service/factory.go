package service

import (
	"context"
	"log/slog"
	"time"

	"eventsponsor.messaging/internal/feed"
	"eventsponsor.messaging/internal/metrics"
	"eventsponsor.messaging/internal/model"
	"eventsponsor.messaging/internal/repository"
	appErrors "eventsponsor.messaging/pkg/errors"
	"eventsponsor.messaging/pkg/snowflake"
)

// EnquiryTags are applied to conversations opened from a sponsorship enquiry.
var EnquiryTags = []string{"enquiry", "sponsorship"}

// CreateOptions are the optional attributes of a new conversation.
type CreateOptions struct {
	EventTitle    string
	EventID       string
	CorrelationID string
	Priority      model.Priority
	Tags          []string
}

// FactoryService creates conversations, reusing an existing one when possible.
type FactoryService struct {
	locator       *LocatorService
	directory     *DirectoryService
	conversations repository.ConversationRepository
	messages      repository.MessageRepository
	feed          feed.Feed
	ids           *snowflake.Node
	now           func() int64
	logger        *slog.Logger
}

func NewFactoryService(
	locator *LocatorService,
	directory *DirectoryService,
	conversations repository.ConversationRepository,
	messages repository.MessageRepository,
	f feed.Feed,
	ids *snowflake.Node,
) *FactoryService {
	return &FactoryService{
		locator:       locator,
		directory:     directory,
		conversations: conversations,
		messages:      messages,
		feed:          f,
		ids:           ids,
		now:           func() int64 { return time.Now().UnixMilli() },
		logger:        slog.Default(),
	}
}

// CreateChat returns the id of the conversation between organizerID and sponsorID,
// creating it with a system message when none matches. The acting user starts
// with nothing unread and the other participant with the system message unread;
// an actor outside the pair is treated as the organizer.
func (s *FactoryService) CreateChat(ctx context.Context, actor model.Identity, organizerID, sponsorID string, opts CreateOptions) (string, error) {
	if !actor.Authenticated() {
		return "", appErrors.ErrUnauthenticated
	}
	if organizerID == "" || sponsorID == "" {
		return "", appErrors.ErrInvalidParams
	}
	if organizerID == sponsorID {
		return "", appErrors.ErrInvalidParticipants
	}

	priority := opts.Priority
	if priority == "" {
		priority = model.PriorityMedium
	}
	if !priority.Valid() {
		return "", appErrors.ErrInvalidParams
	}

	if id, found, err := s.locator.FindExistingChat(ctx, organizerID, sponsorID, opts.CorrelationID); err != nil {
		return "", err
	} else if found {
		return id, nil
	}

	organizer, orgStatus := s.directory.FetchUserInfo(ctx, organizerID)
	sponsor, spoStatus := s.directory.FetchUserInfo(ctx, sponsorID)
	if orgStatus == LookupUnavailable || spoStatus == LookupUnavailable {
		s.logger.Warn("Creating conversation with placeholder participant",
			"organizerId", organizerID, "sponsorId", sponsorID)
	}

	creator, other := organizerID, sponsorID
	if actor.ID == sponsorID {
		creator, other = sponsorID, organizerID
	}

	now := s.now()
	system := s.systemMessage(opts.EventTitle, creator, now)

	orgSnapshot := organizer.Snapshot()
	orgSnapshot.Role = model.RoleOrganizer
	spoSnapshot := sponsor.Snapshot()
	spoSnapshot.Role = model.RoleSponsor

	tags := opts.Tags
	if len(tags) == 0 {
		tags = []string{model.DefaultTag}
	}
	last := system.Summary()

	conv := &model.Conversation{
		ID: ConversationID(organizerID, sponsorID, opts.CorrelationID),
		Participants: map[string]model.Participant{
			organizerID: orgSnapshot,
			sponsorID:   spoSnapshot,
		},
		LastMessage:    &last,
		CorrelationID:  opts.CorrelationID,
		SubjectTitle:   opts.EventTitle,
		SubjectID:      opts.EventID,
		Priority:       priority,
		Tags:           append([]string(nil), tags...),
		CreatedAt:      now,
		UpdatedAt:      now,
		UnreadCount:    map[string]int{creator: 0, other: 1},
		LastActivityAt: map[string]int64{other: now},
		Archived:       map[string]bool{organizerID: false, sponsorID: false},
	}
	system.ConversationID = conv.ID

	created, err := s.conversations.Create(ctx, conv)
	if err != nil {
		s.logger.Error("Failed to create conversation", "conversationId", conv.ID, "error", err)
		return "", appErrors.ErrStoreError.Wrap(err)
	}
	if !created {
		// a concurrent create for the same key won
		s.logger.Debug("Conversation already exists", "conversationId", conv.ID)
		return conv.ID, nil
	}

	if err := s.messages.Append(ctx, system); err != nil {
		s.logger.Error("Failed to write system message", "conversationId", conv.ID, "error", err)
		// a conversation without its system message must not be found later
		if delErr := s.conversations.Delete(ctx, conv.ID); delErr != nil {
			s.logger.Error("Failed to roll back conversation", "conversationId", conv.ID, "error", delErr)
		}
		return "", appErrors.ErrStoreError.Wrap(err)
	}

	metrics.ChatsCreated.Inc()
	s.logger.Info("Conversation created",
		"conversationId", conv.ID,
		"organizerId", organizerID,
		"sponsorId", sponsorID,
		"correlationId", opts.CorrelationID,
	)

	publish(ctx, s.feed, s.logger, feed.ChatMessagesTopic(conv.ID), feed.Event{
		ConversationID: conv.ID, Kind: feed.KindChatCreated, At: now,
	})
	for _, uid := range []string{organizerID, sponsorID} {
		publish(ctx, s.feed, s.logger, feed.UserChatsTopic(uid), feed.Event{
			ConversationID: conv.ID, UserID: uid, Kind: feed.KindChatCreated, At: now,
		})
	}
	return conv.ID, nil
}

// FindOrCreateChatForEnquiry opens the conversation of a sponsorship enquiry.
func (s *FactoryService) FindOrCreateChatForEnquiry(ctx context.Context, actor model.Identity, organizerID, sponsorID, enquiryID, eventTitle, eventID string) (string, error) {
	return s.CreateChat(ctx, actor, organizerID, sponsorID, CreateOptions{
		EventTitle:    eventTitle,
		EventID:       eventID,
		CorrelationID: enquiryID,
		Priority:      model.PriorityMedium,
		Tags:          EnquiryTags,
	})
}

func (s *FactoryService) systemMessage(eventTitle, creator string, now int64) *model.Message {
	text := "Conversation started"
	if eventTitle != "" {
		text = "Conversation started about " + eventTitle
	}
	return &model.Message{
		ID:         s.ids.Generate().String(),
		SenderID:   model.SystemSenderID,
		SenderName: "System",
		Text:       text,
		Timestamp:  now,
		Type:       model.MessageTypeSystem,
		ReadBy:     map[string]int64{creator: now},
	}
}
