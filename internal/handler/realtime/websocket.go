package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	chatHandler "github.com/zhouzirui/startup-vision/backend/internal/handler/chat"
	"github.com/zhouzirui/startup-vision/backend/internal/middleware"
	chatservice "github.com/zhouzirui/startup-vision/backend/internal/service/chat"
)

const (
	readTimeout  = 60 * time.Second
	pingInterval = 54 * time.Second
	writeTimeout = 10 * time.Second
)

// WebSocketHandler 实时聊天处理器：一个连接对应一个身份的工作区
type WebSocketHandler struct {
	chatSvc  *chatservice.Service
	upgrader websocket.Upgrader
}

// NewWebSocketHandler 创建WebSocket处理器
func NewWebSocketHandler(chatSvc *chatservice.Service) *WebSocketHandler {
	return &WebSocketHandler{
		chatSvc: chatSvc,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// RegisterRoutes 注册WebSocket路由
func (h *WebSocketHandler) RegisterRoutes(r chi.Router) {
	r.Get("/ws", h.handleWebSocket)
}

type inboundMessage struct {
	Type      string          `json:"type"`
	SessionID string          `json:"sessionId"`
	Data      json.RawMessage `json:"data"`
	Timestamp int64           `json:"timestamp"`
}

// TextMessage 文本消息
type TextMessage struct {
	Content string `json:"content"`
}

type outgoingMessage struct {
	Type      string      `json:"type"`
	Action    string      `json:"action,omitempty"`
	SessionID string      `json:"sessionId,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

// connection 串行化写操作，gorilla 连接不支持并发写
type connection struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *connection) writeJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.conn.WriteJSON(v)
}

// handleWebSocket 处理WebSocket连接
func (h *WebSocketHandler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}

	snapshot, err := h.chatSvc.Open(r.Context(), identity)
	if err != nil {
		chatHandler.RespondServiceError(w, err)
		return
	}

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[websocket] upgrade failed: %v", err)
		return
	}
	defer ws.Close()
	conn := &connection{conn: ws}

	log.Printf("[websocket] new connection for identity: %s", identity)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	_ = ws.SetReadDeadline(time.Now().Add(readTimeout))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(readTimeout))
	})

	go h.pingLoop(ctx, ws)

	h.sendResult(conn, "connected", snapshot.CurrentSessionID, snapshot)

	for {
		var msg inboundMessage
		if err := ws.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[websocket] read error: %v", err)
			}
			return
		}
		_ = ws.SetReadDeadline(time.Now().Add(readTimeout))

		h.handleMessage(ctx, conn, identity, &msg)
	}
}

// handleMessage 按类型分发入站消息
func (h *WebSocketHandler) handleMessage(ctx context.Context, conn *connection, identity string, msg *inboundMessage) {
	switch msg.Type {
	case "send":
		h.handleSend(ctx, conn, identity, msg.Data)
	case "create":
		session, err := h.chatSvc.CreateSession(ctx, identity)
		if err != nil {
			h.sendError(conn, msg.Type, err)
			return
		}
		h.sendResult(conn, msg.Type, session.ID, session)
	case "load":
		session, err := h.chatSvc.LoadSession(ctx, identity, msg.SessionID)
		if err != nil {
			h.sendError(conn, msg.Type, err)
			return
		}
		h.sendResult(conn, msg.Type, session.ID, session)
	case "delete":
		if err := h.chatSvc.DeleteSession(ctx, identity, msg.SessionID); err != nil {
			h.sendError(conn, msg.Type, err)
			return
		}
		snapshot, err := h.chatSvc.Open(ctx, identity)
		if err != nil {
			h.sendError(conn, msg.Type, err)
			return
		}
		h.sendResult(conn, msg.Type, snapshot.CurrentSessionID, snapshot)
	default:
		h.sendError(conn, msg.Type, errors.New("unsupported message type"))
	}
}

// handleSend 先确保当前会话存在，再执行一次完整发送
func (h *WebSocketHandler) handleSend(ctx context.Context, conn *connection, identity string, raw json.RawMessage) {
	var text TextMessage
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &text); err != nil {
			h.sendError(conn, "send", errors.New("invalid send payload"))
			return
		}
	}
	if strings.TrimSpace(text.Content) == "" {
		h.sendError(conn, "send", chatservice.ErrEmptyMessage)
		return
	}

	if _, _, err := h.chatSvc.EnsureCurrentSession(ctx, identity); err != nil {
		h.sendError(conn, "send", err)
		return
	}

	result, err := h.chatSvc.SendMessage(ctx, identity, text.Content)
	if err != nil {
		h.sendError(conn, "send", err)
		return
	}
	h.sendResult(conn, "send", result.Session.ID, result)
}

func (h *WebSocketHandler) sendResult(conn *connection, action, sessionID string, data any) {
	msg := outgoingMessage{
		Type:      "result",
		Action:    action,
		SessionID: sessionID,
		Data:      data,
		Timestamp: time.Now().Unix(),
	}
	if err := conn.writeJSON(msg); err != nil {
		log.Printf("[websocket] write result failed: %v", err)
	}
}

func (h *WebSocketHandler) sendError(conn *connection, action string, err error) {
	message := err.Error()
	if errors.Is(err, chatservice.ErrPersistFailed) {
		log.Printf("[websocket] %s failed: %v", action, err)
		message = chatservice.SendFailureText
	}

	msg := outgoingMessage{
		Type:      "error",
		Action:    action,
		Data:      map[string]string{"message": message},
		Timestamp: time.Now().Unix(),
	}
	if err := conn.writeJSON(msg); err != nil {
		log.Printf("[websocket] write error failed: %v", err)
	}
}

// pingLoop 定期发送ping消息
func (h *WebSocketHandler) pingLoop(ctx context.Context, ws *websocket.Conn) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
				return
			}
		}
	}
}
