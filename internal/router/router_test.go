package router

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eventsponsor.messaging/internal/config"
	"eventsponsor.messaging/internal/feed"
	"eventsponsor.messaging/internal/handler"
	"eventsponsor.messaging/internal/model"
	"eventsponsor.messaging/internal/repository/memory"
	"eventsponsor.messaging/internal/service"
	"eventsponsor.messaging/pkg/jwt"
	"eventsponsor.messaging/pkg/snowflake"
)

func setupRouter(t *testing.T, rateLimit bool) (*gin.Engine, *jwt.Service) {
	t.Helper()

	ids, err := snowflake.NewNode(2)
	require.NoError(t, err)

	cfg := &config.Config{
		App:       config.AppConfig{Mode: gin.TestMode, AdminIDs: []string{"admin-1"}},
		RateLimit: config.RateLimitConfig{Enabled: rateLimit, RPS: 0.001, Burst: 1},
		WebSocket: config.WebSocketConfig{AllowedOrigins: []string{"http://localhost:3000"}},
	}
	hub := handler.NewHub()
	m := service.NewMessenger(service.Deps{
		Conversations: memory.NewConversationRepo(),
		Messages:      memory.NewMessageRepo(),
		Profiles: memory.NewProfileRepo(
			model.Profile{ID: "org-1", Name: "Olivia", Role: model.RoleOrganizer},
			model.Profile{ID: "spo-1", Name: "Sam", Role: model.RoleSponsor},
		),
		Feed:     feed.NewLocal(),
		Notifier: hub,
		IDs:      ids,
	})
	jwtService := jwt.NewService("router-secret", time.Hour)

	r := SetupRouter(cfg, jwtService, Handlers{
		Chat: handler.NewChatHandler(m),
		User: handler.NewUserHandler(m.Directory, cfg.App.AdminIDs),
		WS:   handler.NewWSHandler(m, hub, cfg.WebSocket, nil),
	})
	return r, jwtService
}

func request(t *testing.T, r *gin.Engine, jwtService *jwt.Service, userID, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		token, err := jwtService.GenerateAccessToken(userID, userID, "")
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestSetupRouter_Routes(t *testing.T) {
	r, jwtService := setupRouter(t, false)

	tests := []struct {
		name   string
		user   string
		method string
		path   string
		body   string
		want   int
	}{
		{"list requires auth", "", http.MethodGet, "/api/v1/chats", "", http.StatusUnauthorized},
		{"list", "org-1", http.MethodGet, "/api/v1/chats", "", http.StatusOK},
		{"create", "org-1", http.MethodPost, "/api/v1/chats", `{"organizerId":"org-1","sponsorId":"spo-1"}`, http.StatusOK},
		{"enquiry", "org-1", http.MethodPost, "/api/v1/chats/enquiry", `{"organizerId":"org-1","sponsorId":"spo-1","enquiryId":"e1"}`, http.StatusOK},
		{"find", "org-1", http.MethodGet, "/api/v1/chats/find?userA=org-1&userB=spo-1", "", http.StatusOK},
		{"messages of missing chat", "org-1", http.MethodGet, "/api/v1/chats/nope/messages", "", http.StatusNotFound},
		{"read", "org-1", http.MethodPost, "/api/v1/chats/nope/read", "", http.StatusOK},
		{"archive missing chat", "org-1", http.MethodPut, "/api/v1/chats/nope/archive", `{"archived":true}`, http.StatusNotFound},
		{"user", "org-1", http.MethodGet, "/api/v1/users/spo-1", "", http.StatusOK},
		{"role", "org-1", http.MethodGet, "/api/v1/users/spo-1/role", "", http.StatusOK},
		{"refresh self", "spo-1", http.MethodPost, "/api/v1/users/spo-1/refresh-snapshots", "", http.StatusOK},
		{"admin denied", "org-1", http.MethodGet, "/api/v1/admin/chats", "", http.StatusForbidden},
		{"admin", "admin-1", http.MethodGet, "/api/v1/admin/chats", "", http.StatusOK},
		{"ws requires token", "", http.MethodGet, "/api/v1/ws", "", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := request(t, r, jwtService, tt.user, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.want, w.Code, w.Body.String())
		})
	}
}

func TestSetupRouter_SendIsRateLimited(t *testing.T) {
	r, jwtService := setupRouter(t, true)

	w := request(t, r, jwtService, "org-1", http.MethodPost, "/api/v1/chats/nope/messages", `{"text":"hi"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = request(t, r, jwtService, "org-1", http.MethodPost, "/api/v1/chats/nope/messages", `{"text":"hi"}`)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)

	// reads are not throttled
	w = request(t, r, jwtService, "org-1", http.MethodGet, "/api/v1/chats", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestSetupRouter_Preflight(t *testing.T) {
	r, _ := setupRouter(t, false)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/chats", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))
}
