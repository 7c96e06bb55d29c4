package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/zhouzirui/startup-vision/backend/internal/handler/auth"
	"github.com/zhouzirui/startup-vision/backend/internal/handler/chat"
	"github.com/zhouzirui/startup-vision/backend/internal/handler/credential"
	"github.com/zhouzirui/startup-vision/backend/internal/handler/realtime"
	"github.com/zhouzirui/startup-vision/backend/internal/handler/stream"
	middlewarePkg "github.com/zhouzirui/startup-vision/backend/internal/middleware"
	aiService "github.com/zhouzirui/startup-vision/backend/internal/service/ai"
	authService "github.com/zhouzirui/startup-vision/backend/internal/service/auth"
	chatService "github.com/zhouzirui/startup-vision/backend/internal/service/chat"
	"github.com/zhouzirui/startup-vision/backend/pkg/utils"
)

// Services 汇总路由依赖的核心服务
type Services struct {
	Chat   *chatService.Service
	AI     *aiService.Service
	Auth   *authService.Service
	Tokens *authService.TokenIssuer
}

// NewRouter wires HTTP routes to core services.
func NewRouter(svc Services) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	authHandler := auth.New(svc.Auth, svc.Tokens, svc.Chat)
	chatHandler := chat.New(svc.Chat)
	credentialHandler := credential.New(svc.AI)
	streamHandler := stream.New(svc.Chat)
	wsHandler := realtime.NewWebSocketHandler(svc.Chat)

	r.Route("/api", func(api chi.Router) {
		api.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		})
		authHandler.RegisterPublicRoutes(api)

		// 以下路由需要身份令牌
		api.Group(func(protected chi.Router) {
			protected.Use(middlewarePkg.RequireIdentity(svc.Tokens))

			authHandler.RegisterRoutes(protected)
			chatHandler.RegisterRoutes(protected)
			credentialHandler.RegisterRoutes(protected)
			streamHandler.RegisterRoutes(protected)
			wsHandler.RegisterRoutes(protected)
		})
	})

	return r
}
