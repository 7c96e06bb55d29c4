package stream

import (
	"log"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	chatHandler "github.com/zhouzirui/startup-vision/backend/internal/handler/chat"
	"github.com/zhouzirui/startup-vision/backend/internal/middleware"
	chatService "github.com/zhouzirui/startup-vision/backend/internal/service/chat"
	"github.com/zhouzirui/startup-vision/backend/pkg/utils"
)

// Handler 通过 Server-Sent Events 推送一次完整的发送过程
type Handler struct {
	chatSvc *chatService.Service
}

// New creates a new stream handler
func New(chatSvc *chatService.Service) *Handler {
	return &Handler{chatSvc: chatSvc}
}

// StreamResponse represents one SSE frame
type StreamResponse struct {
	Event     string `json:"event"`
	SessionID string `json:"sessionId,omitempty"`
	Content   string `json:"content,omitempty"`
	Finished  bool   `json:"finished,omitempty"`
	Error     string `json:"error,omitempty"`
	Result    any    `json:"result,omitempty"`
}

// RegisterRoutes 注册流式路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/stream", h.handleStream)
}

// handleStream 确保存在当前会话后发送消息，依次推送 start / message / end
func (h *Handler) handleStream(w http.ResponseWriter, r *http.Request) {
	userMessage := r.URL.Query().Get("message")
	if strings.TrimSpace(userMessage) == "" {
		utils.RespondError(w, http.StatusBadRequest, "message query parameter is required")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.RespondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	ctx := r.Context()
	identity, _ := middleware.IdentityFromContext(ctx)
	session, created, err := h.chatSvc.EnsureCurrentSession(ctx, identity)
	if err != nil {
		chatHandler.RespondServiceError(w, err)
		return
	}
	if created {
		log.Printf("[stream] created session=%s for identity=%s", session.ID, identity)
	}

	utils.SetupSSEHeaders(w)
	w.WriteHeader(http.StatusOK)

	utils.SendSSEEvent(w, flusher, "start", StreamResponse{
		Event:     "start",
		SessionID: session.ID,
	})

	result, err := h.chatSvc.SendMessage(ctx, identity, userMessage)
	if err != nil {
		log.Printf("[stream] send failed for session=%s: %v", session.ID, err)
		utils.SendSSEEvent(w, flusher, "error", StreamResponse{
			Event:     "error",
			SessionID: session.ID,
			Error:     errorText(err),
		})
		return
	}

	utils.SendSSEEvent(w, flusher, "message", StreamResponse{
		Event:     "message",
		SessionID: result.Session.ID,
		Content:   result.AssistantMessage.Content,
		Result:    result,
	})
	utils.SendSSEEvent(w, flusher, "end", StreamResponse{
		Event:     "end",
		SessionID: result.Session.ID,
		Finished:  true,
	})

	log.Printf("[stream] completed response for session=%s", result.Session.ID)
}

func errorText(err error) string {
	if chatHandler.StatusFor(err) == http.StatusInternalServerError {
		return chatService.SendFailureText
	}
	return err.Error()
}
