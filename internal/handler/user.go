package handler

import (
	"github.com/gin-gonic/gin"

	"eventsponsor.messaging/internal/middleware"
	"eventsponsor.messaging/internal/service"
	appErrors "eventsponsor.messaging/pkg/errors"
	"eventsponsor.messaging/pkg/response"
)

// UserHandler serves the user directory endpoints.
type UserHandler struct {
	directory *service.DirectoryService
	admins    map[string]struct{}
}

// NewUserHandler creates a user handler. adminIDs may refresh any user's snapshots.
func NewUserHandler(directory *service.DirectoryService, adminIDs []string) *UserHandler {
	admins := make(map[string]struct{}, len(adminIDs))
	for _, id := range adminIDs {
		admins[id] = struct{}{}
	}
	return &UserHandler{directory: directory, admins: admins}
}

// Get returns a user's display metadata. A missing or unreachable profile yields
// the placeholder user; status says which.
// GET /api/v1/users/:id
func (h *UserHandler) Get(c *gin.Context) {
	info, status := h.directory.FetchUserInfo(c.Request.Context(), c.Param("id"))
	response.Success(c, gin.H{
		"user":   info,
		"status": status.String(),
	})
}

// Role returns a user's role, sponsor when unknown.
// GET /api/v1/users/:id/role
func (h *UserHandler) Role(c *gin.Context) {
	role := h.directory.GetUserRole(c.Request.Context(), c.Param("id"))
	response.Success(c, gin.H{"role": role})
}

// RefreshSnapshots rewrites the user's participant snapshots from the profile
// store. Callers may refresh themselves; admins may refresh anyone.
// POST /api/v1/users/:id/refresh-snapshots
func (h *UserHandler) RefreshSnapshots(c *gin.Context) {
	id := c.Param("id")
	caller := middleware.GetUserID(c)
	if _, admin := h.admins[caller]; caller != id && !admin {
		response.ErrorFromAppError(c, appErrors.ErrNotParticipant)
		return
	}

	updated, err := h.directory.RefreshSnapshots(c.Request.Context(), id)
	if err != nil {
		response.ErrorFromAppError(c, err)
		return
	}

	response.Success(c, gin.H{"updated": updated})
}
