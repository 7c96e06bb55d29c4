package credential

import (
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	aiService "github.com/zhouzirui/startup-vision/backend/internal/service/ai"
	"github.com/zhouzirui/startup-vision/backend/pkg/utils"
)

// Handler 管理补全服务的 API Key，密钥本身从不回传
type Handler struct {
	aiSvc *aiService.Service
}

// New 创建凭据处理器
func New(aiSvc *aiService.Service) *Handler {
	return &Handler{aiSvc: aiSvc}
}

type credentialStatus struct {
	Configured bool `json:"configured"`
}

// RegisterRoutes 注册凭据路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/credential", h.handleStatus)
	r.Put("/credential", h.handleSet)
	r.Delete("/credential", h.handleClear)
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, credentialStatus{Configured: h.aiSvc.HasCredential(r.Context())})
}

func (h *Handler) handleSet(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		APIKey string `json:"apiKey"`
	}
	if err := utils.DecodeJSON(r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.aiSvc.SetCredential(r.Context(), payload.APIKey); err != nil {
		if errors.Is(err, aiService.ErrEmptyCredential) {
			utils.RespondError(w, http.StatusBadRequest, err.Error())
			return
		}
		log.Printf("[credential] save failed: %v", err)
		utils.RespondError(w, http.StatusInternalServerError, "failed to save api key")
		return
	}
	utils.RespondJSON(w, http.StatusOK, credentialStatus{Configured: true})
}

func (h *Handler) handleClear(w http.ResponseWriter, r *http.Request) {
	if err := h.aiSvc.ClearCredential(r.Context()); err != nil {
		log.Printf("[credential] clear failed: %v", err)
		utils.RespondError(w, http.StatusInternalServerError, "failed to clear api key")
		return
	}
	utils.RespondJSON(w, http.StatusOK, credentialStatus{Configured: false})
}
