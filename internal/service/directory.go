package service

import (
	"context"
	"log/slog"

	"eventsponsor.messaging/internal/feed"
	"eventsponsor.messaging/internal/metrics"
	"eventsponsor.messaging/internal/model"
	"eventsponsor.messaging/internal/repository"
	appErrors "eventsponsor.messaging/pkg/errors"
)

// LookupStatus tells a caller of FetchUserInfo which kind of result it got.
type LookupStatus int

const (
	LookupFound LookupStatus = iota
	LookupNotFound
	LookupUnavailable
)

func (s LookupStatus) String() string {
	switch s {
	case LookupFound:
		return "found"
	case LookupNotFound:
		return "not_found"
	case LookupUnavailable:
		return "unavailable"
	default:
		return "unknown"
	}
}

// DirectoryService resolves display metadata for participants.
type DirectoryService struct {
	profiles      repository.ProfileRepository
	presence      repository.PresenceRepository
	conversations repository.ConversationRepository
	feed          feed.Feed
	logger        *slog.Logger
}

// NewDirectoryService creates the user directory. presence may be nil.
func NewDirectoryService(
	profiles repository.ProfileRepository,
	presence repository.PresenceRepository,
	conversations repository.ConversationRepository,
	f feed.Feed,
) *DirectoryService {
	return &DirectoryService{
		profiles:      profiles,
		presence:      presence,
		conversations: conversations,
		feed:          f,
		logger:        slog.Default(),
	}
}

// FetchUserInfo always returns a usable UserInfo. When the profile is missing or
// the store fails it returns the placeholder user; the status says which.
func (s *DirectoryService) FetchUserInfo(ctx context.Context, id string) (model.UserInfo, LookupStatus) {
	info, status := s.lookup(ctx, id)
	metrics.DirectoryLookups.WithLabelValues(status.String()).Inc()
	return info, status
}

func (s *DirectoryService) lookup(ctx context.Context, id string) (model.UserInfo, LookupStatus) {
	if id == "" {
		return model.PlaceholderUser(id), LookupNotFound
	}

	profile, err := s.profiles.FindByID(ctx, id)
	if err != nil {
		s.logger.Warn("User lookup failed", "userId", id, "error", err)
		return model.PlaceholderUser(id), LookupUnavailable
	}
	if profile == nil {
		s.logger.Info("User profile not found", "userId", id)
		return model.PlaceholderUser(id), LookupNotFound
	}

	info := model.UserInfo{
		ID:          profile.ID,
		Name:        profile.Name,
		Email:       profile.Email,
		Role:        profile.Role,
		Avatar:      profile.Avatar,
		CompanyName: profile.CompanyName,
	}
	if !info.Role.Valid() {
		info.Role = model.RoleSponsor
	}

	if s.presence != nil {
		online, lastSeen, err := s.presence.Get(ctx, id)
		if err != nil {
			s.logger.Debug("Presence lookup failed", "userId", id, "error", err)
		} else {
			info.IsOnline = online
			info.LastSeen = lastSeen
		}
	}
	return info, LookupFound
}

// GetUserRole returns the profile role, or sponsor when it cannot be resolved.
func (s *DirectoryService) GetUserRole(ctx context.Context, id string) model.Role {
	info, _ := s.FetchUserInfo(ctx, id)
	return info.Role
}

// RefreshSnapshots rewrites the participant snapshot of id in every conversation it
// belongs to and returns how many snapshots changed. A missing profile is skipped.
func (s *DirectoryService) RefreshSnapshots(ctx context.Context, id string) (int, error) {
	info, status := s.FetchUserInfo(ctx, id)
	switch status {
	case LookupNotFound:
		return 0, nil
	case LookupUnavailable:
		return 0, appErrors.ErrDirectoryUnavailable
	}

	convs, err := s.conversations.ListByParticipant(ctx, id)
	if err != nil {
		return 0, appErrors.ErrStoreError.Wrap(err)
	}

	updated := 0
	for _, conv := range convs {
		current, ok := conv.Participants[id]
		if !ok {
			continue
		}
		next := info.Snapshot()
		next.Role = current.Role
		if next == current {
			continue
		}
		if err := s.conversations.UpdateParticipant(ctx, conv.ID, next); err != nil {
			return updated, appErrors.ErrStoreError.Wrap(err)
		}
		updated++
		for _, uid := range conv.ParticipantIDs() {
			publish(ctx, s.feed, s.logger, feed.UserChatsTopic(uid), feed.Event{
				ConversationID: conv.ID,
				UserID:         id,
				Kind:           feed.KindSnapshot,
			})
		}
	}

	s.logger.Info("Refreshed participant snapshots", "userId", id, "updated", updated)
	return updated, nil
}

// MarkOnline records a heartbeat for id. Errors are logged only.
func (s *DirectoryService) MarkOnline(ctx context.Context, id string) {
	if s.presence == nil || id == "" {
		return
	}
	if err := s.presence.MarkOnline(ctx, id); err != nil {
		s.logger.Warn("Failed to mark user online", "userId", id, "error", err)
	}
}

// MarkOffline clears the online marker of id. Errors are logged only.
func (s *DirectoryService) MarkOffline(ctx context.Context, id string) {
	if s.presence == nil || id == "" {
		return
	}
	if err := s.presence.MarkOffline(ctx, id); err != nil {
		s.logger.Warn("Failed to mark user offline", "userId", id, "error", err)
	}
}
