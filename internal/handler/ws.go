package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"eventsponsor.messaging/internal/config"
	"eventsponsor.messaging/internal/metrics"
	"eventsponsor.messaging/internal/middleware"
	"eventsponsor.messaging/internal/model"
	"eventsponsor.messaging/internal/service"
	appErrors "eventsponsor.messaging/pkg/errors"
)

// Client actions.
const (
	actionSubscribeChats  = "subscribe_chats"
	actionSubscribeChat   = "subscribe_chat"
	actionUnsubscribeChat = "unsubscribe_chat"
	actionSend            = "send"
	actionRead            = "read"
)

// Server frame types.
const (
	frameChats    = "chats"
	frameMessages = "messages"
	frameError    = "error"
)

const (
	sendBufferSize = 64
	writeWait      = 10 * time.Second
)

type clientFrame struct {
	Action string            `json:"action"`
	ChatID string            `json:"chatId,omitempty"`
	Text   string            `json:"text,omitempty"`
	Type   model.MessageType `json:"type,omitempty"`
}

// serverFrame is a JSON object with a "type" key.
type serverFrame map[string]any

func chatsFrame(list model.ChatList) serverFrame {
	chats := list.Chats
	if chats == nil {
		chats = []model.Conversation{}
	}
	return serverFrame{"type": frameChats, "chats": chats, "unreadTotal": list.UnreadTotal}
}

func messagesFrame(chatID string, msgs []model.Message) serverFrame {
	if msgs == nil {
		msgs = []model.Message{}
	}
	return serverFrame{"type": frameMessages, "chatId": chatID, "messages": msgs}
}

func errorFrame(message string) serverFrame {
	return serverFrame{"type": frameError, "message": message}
}

// wsConn is one WebSocket client. Frames are written by a single writer goroutine
// fed through send.
type wsConn struct {
	id     string
	userID string
	conn   *websocket.Conn
	send   chan []byte
	done   chan struct{}
	once   sync.Once
	logger *slog.Logger
}

// enqueue queues a frame without blocking; frames for a slow client are dropped.
func (c *wsConn) enqueue(frame serverFrame) {
	data, err := json.Marshal(frame)
	if err != nil {
		c.logger.Error("Failed to encode frame", "connId", c.id, "type", frame["type"], "error", err)
		return
	}
	select {
	case <-c.done:
	case c.send <- data:
	default:
		c.logger.Warn("Dropping frame for slow client", "connId", c.id, "type", frame["type"])
	}
}

func (c *wsConn) close() {
	c.once.Do(func() {
		close(c.done)
		_ = c.conn.Close()
	})
}

// WSHandler upgrades authenticated requests to WebSocket sessions carrying live
// chat list and message updates.
type WSHandler struct {
	messenger *service.Messenger
	hub       *Hub
	limiter   *middleware.LimiterPool
	upgrader  websocket.Upgrader
	cfg       config.WebSocketConfig
	logger    *slog.Logger
}

// NewWSHandler creates a WebSocket handler. Sends are throttled through limiter,
// shared with the HTTP send route; a nil limiter disables throttling.
func NewWSHandler(messenger *service.Messenger, hub *Hub, cfg config.WebSocketConfig, limiter *middleware.LimiterPool) *WSHandler {
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = 30 * time.Second
	}
	if cfg.ReadLimit <= 0 {
		cfg.ReadLimit = 64 * 1024
	}

	return &WSHandler{
		messenger: messenger,
		hub:       hub,
		limiter:   limiter,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				// non-browser clients send no Origin
				return origin == "" || middleware.OriginAllowed(cfg.AllowedOrigins, origin)
			},
		},
		cfg:    cfg,
		logger: slog.Default(),
	}
}

// Serve runs one WebSocket session until the client disconnects.
// GET /api/v1/ws?token=
func (h *WSHandler) Serve(c *gin.Context) {
	identity := middleware.GetIdentity(c)

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("WebSocket upgrade failed", "userId", identity.ID, "error", err)
		return
	}

	wc := &wsConn{
		id:     uuid.NewString(),
		userID: identity.ID,
		conn:   conn,
		send:   make(chan []byte, sendBufferSize),
		done:   make(chan struct{}),
		logger: h.logger,
	}

	ctx, cancel := context.WithCancel(context.Background())
	session := h.messenger.Session(identity)
	session.OnChats(func(list model.ChatList) {
		wc.enqueue(chatsFrame(list))
	})
	session.OnMessages(func(chatID string, msgs []model.Message) {
		wc.enqueue(messagesFrame(chatID, msgs))
	})

	h.hub.register(wc)
	h.messenger.Directory.MarkOnline(ctx, identity.ID)
	metrics.WebSocketConnections.Inc()
	h.logger.Info("WebSocket connected", "connId", wc.id, "userId", identity.ID)

	defer func() {
		cancel()
		session.Close()
		wc.close()
		if h.hub.unregister(wc) == 0 {
			h.messenger.Directory.MarkOffline(context.Background(), identity.ID)
		}
		metrics.WebSocketConnections.Dec()
		h.logger.Info("WebSocket disconnected", "connId", wc.id, "userId", identity.ID)
	}()

	go h.writeLoop(ctx, wc)
	h.readLoop(ctx, wc, session)
}

func (h *WSHandler) readLoop(ctx context.Context, wc *wsConn, session *service.Session) {
	pongWait := 2 * h.cfg.PingInterval

	wc.conn.SetReadLimit(h.cfg.ReadLimit)
	_ = wc.conn.SetReadDeadline(time.Now().Add(pongWait))
	wc.conn.SetPongHandler(func(string) error {
		return wc.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var frame clientFrame
		if err := wc.conn.ReadJSON(&frame); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.logger.Warn("WebSocket read failed", "connId", wc.id, "error", err)
			}
			return
		}
		_ = wc.conn.SetReadDeadline(time.Now().Add(pongWait))
		h.handleFrame(ctx, wc, session, frame)
	}
}

func (h *WSHandler) handleFrame(ctx context.Context, wc *wsConn, session *service.Session, frame clientFrame) {
	switch frame.Action {
	case actionSubscribeChats:
		if err := session.SubscribeToChats(ctx); err != nil {
			wc.enqueue(errorFrame(appErrors.GetMessage(err)))
		}

	case actionSubscribeChat:
		if _, err := h.messenger.Locator.GetChat(ctx, wc.userID, frame.ChatID); err != nil {
			wc.enqueue(errorFrame(appErrors.GetMessage(err)))
			return
		}
		if err := session.SubscribeToChat(ctx, frame.ChatID); err != nil {
			wc.enqueue(errorFrame(appErrors.GetMessage(err)))
		}

	case actionUnsubscribeChat:
		session.UnsubscribeChat()

	case actionSend:
		if h.limiter != nil && !h.limiter.Allow(wc.userID) {
			metrics.RateLimited.Inc()
			wc.enqueue(errorFrame(appErrors.GetMessage(appErrors.ErrTooManyRequests)))
			return
		}
		msgType := frame.Type
		if msgType == "" {
			msgType = model.MessageTypeText
		}
		// other failures already reached the user through the hub
		if _, err := session.SendMessage(ctx, frame.ChatID, frame.Text, msgType); err != nil &&
			appErrors.Is(err, appErrors.ErrInvalidParams) {
			wc.enqueue(errorFrame(appErrors.GetMessage(err)))
		}

	case actionRead:
		session.MarkAsRead(ctx, frame.ChatID)

	default:
		wc.enqueue(errorFrame("unknown action"))
	}
}

func (h *WSHandler) writeLoop(ctx context.Context, wc *wsConn) {
	ticker := time.NewTicker(h.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-wc.done:
			return

		case data := <-wc.send:
			_ = wc.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := wc.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				h.logger.Warn("WebSocket write failed", "connId", wc.id, "error", err)
				wc.close()
				return
			}

		case <-ticker.C:
			_ = wc.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := wc.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				if !errors.Is(err, websocket.ErrCloseSent) {
					h.logger.Warn("WebSocket ping failed", "connId", wc.id, "error", err)
				}
				wc.close()
				return
			}
			// keep the presence marker from expiring
			h.messenger.Directory.MarkOnline(ctx, wc.userID)
		}
	}
}
