package auth

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	authService "github.com/zhouzirui/goalprobe/internal/service/auth"
	"github.com/zhouzirui/goalprobe/pkg/utils"
)

// Handler 登录接口
type Handler struct {
	authSvc *authService.Service
}

// New 创建登录处理器
func New(authSvc *authService.Service) *Handler {
	return &Handler{authSvc: authSvc}
}

// RegisterRoutes 注册登录路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/auth/login", h.handleLogin)
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}

	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	token, err := h.authSvc.Login(r.Context(), payload.Email, payload.Password)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, authService.ErrInvalidCredentials) {
			status = http.StatusUnauthorized
		}
		utils.RespondError(w, status, err.Error())
		return
	}

	utils.RespondData(w, http.StatusOK, map[string]string{
		"access_token": token,
		"token_type":   "bearer",
	})
}
