package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eventsponsor.messaging/internal/feed"
	"eventsponsor.messaging/internal/middleware"
	"eventsponsor.messaging/internal/model"
	"eventsponsor.messaging/internal/repository/memory"
	"eventsponsor.messaging/internal/service"
	appErrors "eventsponsor.messaging/pkg/errors"
	"eventsponsor.messaging/pkg/jwt"
	"eventsponsor.messaging/pkg/snowflake"
)

// APIResponse is the decoded response envelope.
type APIResponse struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type testEnv struct {
	engine   *gin.Engine
	jwt      *jwt.Service
	profiles *memory.ProfileRepo
	hub      *Hub
	m        *service.Messenger
}

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return setupLimitedTestEnv(t, nil)
}

// setupLimitedTestEnv throttles sends on both transports through limiter.
func setupLimitedTestEnv(t *testing.T, limiter *middleware.LimiterPool) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	ids, err := snowflake.NewNode(1)
	require.NoError(t, err)

	env := &testEnv{
		jwt: jwt.NewService("test-secret", time.Hour),
		profiles: memory.NewProfileRepo(
			model.Profile{ID: "org-1", Name: "Olivia Organizer", Email: "olivia@events.test", Role: model.RoleOrganizer},
			model.Profile{ID: "spo-1", Name: "Sam Sponsor", Email: "sam@acme.test", Role: model.RoleSponsor, CompanyName: "Acme"},
			model.Profile{ID: "spo-2", Name: "Sue Sponsor", Email: "sue@globex.test", Role: model.RoleSponsor, CompanyName: "Globex"},
		),
		hub: NewHub(),
	}
	env.m = service.NewMessenger(service.Deps{
		Conversations: memory.NewConversationRepo(),
		Messages:      memory.NewMessageRepo(),
		Profiles:      env.profiles,
		Presence:      memory.NewPresenceRepo(),
		Feed:          feed.NewLocal(),
		Notifier:      env.hub,
		IDs:           ids,
	})

	chat := NewChatHandler(env.m)
	user := NewUserHandler(env.m.Directory, []string{"admin-1"})
	ws := NewWSHandler(env.m, env.hub, wsTestConfig(), limiter)

	r := gin.New()
	v1 := r.Group("/api/v1")
	v1.GET("/ws", middleware.JWTAuth(env.jwt, true), ws.Serve)

	auth := v1.Group("", middleware.JWTAuth(env.jwt, false))
	auth.POST("/chats", chat.Create)
	auth.POST("/chats/enquiry", chat.CreateForEnquiry)
	auth.GET("/chats/find", chat.Find)
	auth.GET("/chats", chat.List)
	auth.GET("/chats/:id/messages", chat.Messages)
	if limiter != nil {
		auth.POST("/chats/:id/messages", middleware.RateLimit(limiter), chat.Send)
	} else {
		auth.POST("/chats/:id/messages", chat.Send)
	}
	auth.POST("/chats/:id/read", chat.MarkRead)
	auth.PUT("/chats/:id/archive", chat.Archive)
	auth.GET("/users/:id", user.Get)
	auth.GET("/users/:id/role", user.Role)
	auth.POST("/users/:id/refresh-snapshots", user.RefreshSnapshots)
	auth.GET("/admin/chats", chat.ListAll)

	env.engine = r
	return env
}

func (e *testEnv) token(t *testing.T, userID, name string) string {
	t.Helper()
	token, err := e.jwt.GenerateAccessToken(userID, name, userID+"@test")
	require.NoError(t, err)
	return token
}

// do sends a request as userID ("" for anonymous) and decodes the envelope.
func (e *testEnv) do(t *testing.T, userID, method, path string, body interface{}) (int, APIResponse) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set("Authorization", "Bearer "+e.token(t, userID, userID))
	}
	w := httptest.NewRecorder()
	e.engine.ServeHTTP(w, req)

	var resp APIResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return w.Code, resp
}

func (e *testEnv) createChat(t *testing.T, actor, organizerID, sponsorID, title string) string {
	t.Helper()
	status, resp := e.do(t, actor, http.MethodPost, "/api/v1/chats", gin.H{
		"organizerId": organizerID,
		"sponsorId":   sponsorID,
		"eventTitle":  title,
	})
	require.Equal(t, http.StatusOK, status, resp.Message)

	var data struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &data))
	require.NotEmpty(t, data.ID)
	return data.ID
}

func (e *testEnv) chatList(t *testing.T, userID string) model.ChatList {
	t.Helper()
	status, resp := e.do(t, userID, http.MethodGet, "/api/v1/chats", nil)
	require.Equal(t, http.StatusOK, status)

	var list model.ChatList
	require.NoError(t, json.Unmarshal(resp.Data, &list))
	return list
}

func TestChatHandler_CreateAndList(t *testing.T) {
	env := setupTestEnv(t)

	id := env.createChat(t, "org-1", "org-1", "spo-1", "Tech Summit")
	assert.Equal(t, id, env.createChat(t, "org-1", "org-1", "spo-1", "Tech Summit"), "create is idempotent")

	sponsor := env.chatList(t, "spo-1")
	require.Len(t, sponsor.Chats, 1)
	assert.Equal(t, 1, sponsor.UnreadTotal)
	assert.Equal(t, "Tech Summit", sponsor.Chats[0].SubjectTitle)
	assert.Equal(t, "Conversation started about Tech Summit", sponsor.Chats[0].LastMessage.Text)

	assert.Equal(t, 0, env.chatList(t, "org-1").UnreadTotal)
	assert.Empty(t, env.chatList(t, "spo-2").Chats)
}

func TestChatHandler_CreateValidation(t *testing.T) {
	env := setupTestEnv(t)

	status, resp := env.do(t, "org-1", http.MethodPost, "/api/v1/chats", gin.H{"organizerId": "org-1"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, appErrors.CodeInvalidParams, resp.Code)

	status, resp = env.do(t, "org-1", http.MethodPost, "/api/v1/chats", gin.H{"organizerId": "org-1", "sponsorId": "org-1"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, appErrors.CodeInvalidParticipants, resp.Code)

	status, resp = env.do(t, "org-1", http.MethodPost, "/api/v1/chats", gin.H{"organizerId": "org-1", "sponsorId": "spo-1", "priority": "urgent"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, appErrors.CodeInvalidParams, resp.Code)

	status, resp = env.do(t, "", http.MethodPost, "/api/v1/chats", gin.H{"organizerId": "org-1", "sponsorId": "spo-1"})
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, appErrors.CodeUnauthenticated, resp.Code)
}

func TestChatHandler_EnquiryAndFind(t *testing.T) {
	env := setupTestEnv(t)

	plain := env.createChat(t, "org-1", "org-1", "spo-1", "")

	body := gin.H{"organizerId": "org-1", "sponsorId": "spo-1", "enquiryId": "enq-7", "eventTitle": "Expo"}
	status, resp := env.do(t, "spo-1", http.MethodPost, "/api/v1/chats/enquiry", body)
	require.Equal(t, http.StatusOK, status, resp.Message)
	var enquiry struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &enquiry))
	assert.NotEqual(t, plain, enquiry.ID)

	type found struct {
		ID    string `json:"id"`
		Found bool   `json:"found"`
	}
	find := func(query string) found {
		status, resp := env.do(t, "org-1", http.MethodGet, "/api/v1/chats/find?"+query, nil)
		require.Equal(t, http.StatusOK, status)
		var f found
		require.NoError(t, json.Unmarshal(resp.Data, &f))
		return f
	}

	assert.Equal(t, found{ID: enquiry.ID, Found: true}, find("userA=spo-1&userB=org-1&correlationId=enq-7"))
	assert.Equal(t, found{ID: plain, Found: true}, find("userA=org-1&userB=spo-1"))
	assert.Equal(t, found{}, find("userA=org-1&userB=spo-2"))
}

func TestChatHandler_Messages(t *testing.T) {
	env := setupTestEnv(t)
	id := env.createChat(t, "org-1", "org-1", "spo-1", "")

	status, resp := env.do(t, "spo-1", http.MethodGet, "/api/v1/chats/"+id+"/messages", nil)
	require.Equal(t, http.StatusOK, status)
	var data struct {
		ChatID   string          `json:"chatId"`
		Messages []model.Message `json:"messages"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &data))
	assert.Equal(t, id, data.ChatID)
	require.Len(t, data.Messages, 1)
	assert.Equal(t, model.MessageTypeSystem, data.Messages[0].Type)
	assert.Equal(t, "Conversation started", data.Messages[0].Text)

	status, resp = env.do(t, "spo-2", http.MethodGet, "/api/v1/chats/"+id+"/messages", nil)
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, appErrors.CodeNotParticipant, resp.Code)

	status, resp = env.do(t, "spo-1", http.MethodGet, "/api/v1/chats/missing/messages", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, appErrors.CodeChatNotFound, resp.Code)

	// ids that would name an index key in the store
	for _, bad := range []string{"index", "user:spo-1"} {
		status, resp = env.do(t, "spo-1", http.MethodGet, "/api/v1/chats/"+bad+"/messages", nil)
		assert.Equal(t, http.StatusNotFound, status, bad)
		assert.Equal(t, appErrors.CodeChatNotFound, resp.Code, bad)

		status, resp = env.do(t, "spo-1", http.MethodPut, "/api/v1/chats/"+bad+"/archive", gin.H{"archived": true})
		assert.Equal(t, http.StatusNotFound, status, bad)
		assert.Equal(t, appErrors.CodeChatNotFound, resp.Code, bad)
	}
}

func TestChatHandler_SendReadArchive(t *testing.T) {
	env := setupTestEnv(t)
	id := env.createChat(t, "org-1", "org-1", "spo-1", "")

	status, resp := env.do(t, "org-1", http.MethodPost, "/api/v1/chats/"+id+"/messages", gin.H{"text": "  Hello Acme  "})
	require.Equal(t, http.StatusOK, status, resp.Message)
	var msg model.Message
	require.NoError(t, json.Unmarshal(resp.Data, &msg))
	assert.Equal(t, "Hello Acme", msg.Text)
	assert.Equal(t, model.MessageTypeText, msg.Type)
	assert.Equal(t, model.RoleOrganizer, msg.SenderRole)

	assert.Equal(t, 2, env.chatList(t, "spo-1").UnreadTotal)

	status, resp = env.do(t, "org-1", http.MethodPost, "/api/v1/chats/"+id+"/messages", gin.H{"text": "   "})
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "null", string(resp.Data), "blank text is ignored")

	status, resp = env.do(t, "spo-2", http.MethodPost, "/api/v1/chats/"+id+"/messages", gin.H{"text": "hi"})
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, appErrors.CodeNotParticipant, resp.Code)

	status, _ = env.do(t, "spo-1", http.MethodPost, "/api/v1/chats/"+id+"/read", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, 0, env.chatList(t, "spo-1").UnreadTotal)

	status, resp = env.do(t, "spo-1", http.MethodPut, "/api/v1/chats/"+id+"/archive", gin.H{})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, appErrors.CodeInvalidParams, resp.Code)

	status, _ = env.do(t, "spo-1", http.MethodPut, "/api/v1/chats/"+id+"/archive", gin.H{"archived": true})
	assert.Equal(t, http.StatusOK, status)
	assert.Empty(t, env.chatList(t, "spo-1").Chats)
	assert.Len(t, env.chatList(t, "org-1").Chats, 1, "archiving is per user")

	status, _ = env.do(t, "spo-1", http.MethodPut, "/api/v1/chats/"+id+"/archive", gin.H{"archived": false})
	assert.Equal(t, http.StatusOK, status)
	assert.Len(t, env.chatList(t, "spo-1").Chats, 1)
}

func TestChatHandler_ListAll(t *testing.T) {
	env := setupTestEnv(t)
	env.createChat(t, "org-1", "org-1", "spo-1", "")
	env.createChat(t, "org-1", "org-1", "spo-2", "")

	status, resp := env.do(t, "admin-1", http.MethodGet, "/api/v1/admin/chats", nil)
	require.Equal(t, http.StatusOK, status)
	var data struct {
		Chats []model.Conversation `json:"chats"`
		Total int                  `json:"total"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &data))
	assert.Equal(t, 2, data.Total)
	assert.Len(t, data.Chats, 2)
}

func TestUserHandler(t *testing.T) {
	env := setupTestEnv(t)

	type userResp struct {
		User   model.UserInfo `json:"user"`
		Status string         `json:"status"`
	}
	get := func(id string) userResp {
		status, resp := env.do(t, "org-1", http.MethodGet, "/api/v1/users/"+id, nil)
		require.Equal(t, http.StatusOK, status)
		var u userResp
		require.NoError(t, json.Unmarshal(resp.Data, &u))
		return u
	}

	sam := get("spo-1")
	assert.Equal(t, "found", sam.Status)
	assert.Equal(t, "Acme", sam.User.CompanyName)

	ghost := get("ghost")
	assert.Equal(t, "not_found", ghost.Status)
	assert.Equal(t, model.UnknownUserName, ghost.User.Name)
	assert.Equal(t, model.RoleSponsor, ghost.User.Role)

	status, resp := env.do(t, "spo-1", http.MethodGet, "/api/v1/users/org-1/role", nil)
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"role":"organizer"}`, string(resp.Data))
}

func TestUserHandler_RefreshSnapshots(t *testing.T) {
	env := setupTestEnv(t)
	id := env.createChat(t, "org-1", "org-1", "spo-1", "")

	env.profiles.Put(model.Profile{ID: "spo-1", Name: "Samantha Sponsor", Email: "sam@acme.test", Role: model.RoleSponsor, CompanyName: "Acme Corp"})

	status, resp := env.do(t, "spo-2", http.MethodPost, "/api/v1/users/spo-1/refresh-snapshots", nil)
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, appErrors.CodeNotParticipant, resp.Code)

	status, resp = env.do(t, "spo-1", http.MethodPost, "/api/v1/users/spo-1/refresh-snapshots", nil)
	require.Equal(t, http.StatusOK, status, resp.Message)
	assert.JSONEq(t, `{"updated":1}`, string(resp.Data))

	list := env.chatList(t, "org-1")
	require.Len(t, list.Chats, 1)
	assert.Equal(t, id, list.Chats[0].ID)
	assert.Equal(t, "Acme Corp", list.Chats[0].Participants["spo-1"].CompanyName)

	status, resp = env.do(t, "admin-1", http.MethodPost, "/api/v1/users/spo-1/refresh-snapshots", nil)
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"updated":0}`, string(resp.Data), "nothing changed since the last refresh")
}
