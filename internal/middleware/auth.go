package middleware

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"

	"eventsponsor.messaging/internal/model"
	appErrors "eventsponsor.messaging/pkg/errors"
	"eventsponsor.messaging/pkg/jwt"
	"eventsponsor.messaging/pkg/response"
)

const (
	ctxUserID = "user_id"
	ctxName   = "name"
	ctxEmail  = "email"
)

// JWTAuth verifies the bearer token and stores the caller identity in the context.
// With allowQuery the token may also come from the "token" query parameter, which
// browsers need for WebSocket upgrades.
func JWTAuth(jwtService *jwt.Service, allowQuery bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractToken(c.GetHeader("Authorization"))
		if token == "" && allowQuery {
			token = c.Query("token")
		}
		if token == "" {
			response.Unauthorized(c, appErrors.ErrUnauthenticated)
			return
		}

		claims, err := jwtService.ValidateAccessToken(token)
		if err != nil {
			if errors.Is(err, jwt.ErrTokenExpired) {
				response.Unauthorized(c, appErrors.ErrTokenExpired)
			} else {
				response.Unauthorized(c, appErrors.ErrTokenInvalid)
			}
			return
		}

		c.Set(ctxUserID, claims.UserID)
		c.Set(ctxName, claims.Name)
		c.Set(ctxEmail, claims.Email)
		c.Next()
	}
}

// RequireAdmin rejects callers whose id is not in adminIDs. It must run after
// JWTAuth.
func RequireAdmin(adminIDs []string) gin.HandlerFunc {
	admins := make(map[string]struct{}, len(adminIDs))
	for _, id := range adminIDs {
		if id = strings.TrimSpace(id); id != "" {
			admins[id] = struct{}{}
		}
	}

	return func(c *gin.Context) {
		if _, ok := admins[GetUserID(c)]; !ok {
			response.ErrorFromAppError(c, appErrors.ErrNotParticipant)
			c.Abort()
			return
		}
		c.Next()
	}
}

func extractToken(authHeader string) string {
	if authHeader == "" {
		return ""
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return ""
	}

	return strings.TrimSpace(parts[1])
}

// GetUserID returns the authenticated user id, or "".
func GetUserID(c *gin.Context) string {
	return c.GetString(ctxUserID)
}

// GetIdentity returns the authenticated caller. The zero Identity means anonymous.
func GetIdentity(c *gin.Context) model.Identity {
	return model.Identity{
		ID:          c.GetString(ctxUserID),
		DisplayName: c.GetString(ctxName),
		Email:       c.GetString(ctxEmail),
	}
}
