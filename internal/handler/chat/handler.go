package chat

import (
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/startup-vision/backend/internal/middleware"
	chatService "github.com/zhouzirui/startup-vision/backend/internal/service/chat"
	"github.com/zhouzirui/startup-vision/backend/pkg/utils"
)

// Handler 会话与消息的HTTP处理器
type Handler struct {
	chatSvc *chatService.Service
}

// New 创建聊天处理器
func New(chatSvc *chatService.Service) *Handler {
	return &Handler{chatSvc: chatSvc}
}

// RegisterRoutes 注册聊天相关的路由，调用方负责挂载身份中间件
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/sessions", h.handleListSessions)
	r.Post("/sessions", h.handleCreateSession)
	r.Get("/sessions/current", h.handleCurrentSession)
	r.Put("/sessions/current", h.handleLoadSession)
	r.Delete("/sessions/{sessionID}", h.handleDeleteSession)
	r.Post("/messages", h.handleSendMessage)
	r.Get("/status", h.handleStatus)
}

func (h *Handler) handleListSessions(w http.ResponseWriter, r *http.Request) {
	identity, _ := middleware.IdentityFromContext(r.Context())
	snapshot, err := h.chatSvc.Open(r.Context(), identity)
	if err != nil {
		RespondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, snapshot)
}

func (h *Handler) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	identity, _ := middleware.IdentityFromContext(r.Context())
	session, err := h.chatSvc.CreateSession(r.Context(), identity)
	if err != nil {
		RespondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusCreated, session)
}

func (h *Handler) handleCurrentSession(w http.ResponseWriter, r *http.Request) {
	identity, _ := middleware.IdentityFromContext(r.Context())
	session, ok, err := h.chatSvc.Current(r.Context(), identity)
	if err != nil {
		RespondServiceError(w, err)
		return
	}
	if !ok {
		utils.RespondError(w, http.StatusNotFound, chatService.ErrNoCurrentSession.Error())
		return
	}
	utils.RespondJSON(w, http.StatusOK, session)
}

func (h *Handler) handleLoadSession(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		SessionID string `json:"sessionId"`
	}
	if err := utils.DecodeJSON(r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if payload.SessionID == "" {
		utils.RespondError(w, http.StatusBadRequest, "sessionId is required")
		return
	}

	identity, _ := middleware.IdentityFromContext(r.Context())
	session, err := h.chatSvc.LoadSession(r.Context(), identity, payload.SessionID)
	if err != nil {
		RespondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, session)
}

func (h *Handler) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	identity, _ := middleware.IdentityFromContext(r.Context())
	if err := h.chatSvc.DeleteSession(r.Context(), identity, chi.URLParam(r, "sessionID")); err != nil {
		RespondServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Content string `json:"content"`
	}
	if err := utils.DecodeJSON(r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	identity, _ := middleware.IdentityFromContext(r.Context())
	result, err := h.chatSvc.SendMessage(r.Context(), identity, payload.Content)
	if err != nil {
		RespondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, result)
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	identity, _ := middleware.IdentityFromContext(r.Context())
	status, err := h.chatSvc.Status(r.Context(), identity)
	if err != nil {
		RespondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, status)
}

// StatusFor 将会话服务错误映射为HTTP状态码
func StatusFor(err error) int {
	switch {
	case errors.Is(err, chatService.ErrAuthRequired):
		return http.StatusUnauthorized
	case errors.Is(err, chatService.ErrEmptyMessage):
		return http.StatusBadRequest
	case errors.Is(err, chatService.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, chatService.ErrNoCurrentSession):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// RespondServiceError 输出会话服务错误；持久化失败返回工作区的提示文案
func RespondServiceError(w http.ResponseWriter, err error) {
	status := StatusFor(err)
	if status == http.StatusInternalServerError {
		log.Printf("[chat] request failed: %v", err)
		utils.RespondError(w, status, chatService.SendFailureText)
		return
	}
	utils.RespondError(w, status, err.Error())
}
