package auth

import (
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/startup-vision/backend/internal/middleware"
	"github.com/zhouzirui/startup-vision/backend/internal/model/profile"
	authService "github.com/zhouzirui/startup-vision/backend/internal/service/auth"
	chatService "github.com/zhouzirui/startup-vision/backend/internal/service/chat"
	"github.com/zhouzirui/startup-vision/backend/pkg/utils"
)

// Handler 账号与个人资料的HTTP处理器
type Handler struct {
	authSvc *authService.Service
	tokens  *authService.TokenIssuer
	chatSvc *chatService.Service
}

// New 创建账号处理器；chatSvc 用于登录时加载、登出时释放会话工作区
func New(authSvc *authService.Service, tokens *authService.TokenIssuer, chatSvc *chatService.Service) *Handler {
	return &Handler{authSvc: authSvc, tokens: tokens, chatSvc: chatSvc}
}

type sessionResponse struct {
	Token     string          `json:"token"`
	ExpiresAt time.Time       `json:"expiresAt"`
	User      profile.Profile `json:"user"`
}

// RegisterPublicRoutes 注册无需身份的路由
func (h *Handler) RegisterPublicRoutes(r chi.Router) {
	r.Post("/auth/signup", h.handleSignup)
	r.Post("/auth/login", h.handleLogin)
}

// RegisterRoutes 注册需要身份的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/auth/logout", h.handleLogout)
	r.Get("/profile", h.handleGetProfile)
	r.Put("/profile", h.handleUpdateProfile)
}

func (h *Handler) handleSignup(w http.ResponseWriter, r *http.Request) {
	var payload authService.SignupInput
	if err := utils.DecodeJSON(r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	user, err := h.authSvc.Signup(r.Context(), payload)
	switch {
	case errors.Is(err, authService.ErrMissingFields):
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, authService.ErrUserExists):
		utils.RespondError(w, http.StatusConflict, err.Error())
		return
	case err != nil:
		log.Printf("[auth] signup failed: %v", err)
		utils.RespondError(w, http.StatusInternalServerError, "registration failed")
		return
	}

	h.respondSession(w, r, http.StatusCreated, user)
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		RegNumber string `json:"regNumber"`
		Password  string `json:"password"`
	}
	if err := utils.DecodeJSON(r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if payload.RegNumber == "" || payload.Password == "" {
		utils.RespondError(w, http.StatusBadRequest, "regNumber and password are required")
		return
	}

	user, err := h.authSvc.Login(r.Context(), payload.RegNumber, payload.Password)
	if errors.Is(err, authService.ErrInvalidCredentials) {
		utils.RespondError(w, http.StatusUnauthorized, err.Error())
		return
	}
	if err != nil {
		log.Printf("[auth] login failed: %v", err)
		utils.RespondError(w, http.StatusInternalServerError, "login failed")
		return
	}

	h.respondSession(w, r, http.StatusOK, user)
}

func (h *Handler) respondSession(w http.ResponseWriter, r *http.Request, status int, user profile.Profile) {
	token, expiresAt, err := h.tokens.Issue(user.RegNumber, user.Name)
	if err != nil {
		log.Printf("[auth] issue token failed: %v", err)
		utils.RespondError(w, http.StatusInternalServerError, "failed to issue token")
		return
	}

	if h.chatSvc != nil {
		if _, err := h.chatSvc.Open(r.Context(), user.RegNumber); err != nil {
			log.Printf("[auth] restore sessions for %s failed: %v", user.RegNumber, err)
		}
	}

	utils.RespondJSON(w, status, sessionResponse{Token: token, ExpiresAt: expiresAt, User: user})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	identity, _ := middleware.IdentityFromContext(r.Context())
	if h.chatSvc != nil {
		h.chatSvc.Close(identity)
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	identity, _ := middleware.IdentityFromContext(r.Context())
	user, err := h.authSvc.Profile(r.Context(), identity)
	if err != nil {
		h.respondProfileError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, user)
}

func (h *Handler) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	var update profile.Update
	if err := utils.DecodeJSON(r, &update); err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	identity, _ := middleware.IdentityFromContext(r.Context())
	user, err := h.authSvc.UpdateProfile(r.Context(), identity, update)
	if err != nil {
		h.respondProfileError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, user)
}

func (h *Handler) respondProfileError(w http.ResponseWriter, err error) {
	if errors.Is(err, authService.ErrUserNotFound) {
		utils.RespondError(w, http.StatusNotFound, err.Error())
		return
	}
	log.Printf("[auth] profile request failed: %v", err)
	utils.RespondError(w, http.StatusInternalServerError, "profile request failed")
}
