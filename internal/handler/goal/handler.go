package goal

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/goalprobe/internal/model/goal"
	goalService "github.com/zhouzirui/goalprobe/internal/service/goal"
	"github.com/zhouzirui/goalprobe/pkg/utils"
)

// Handler 目标服务的HTTP处理器
type Handler struct {
	goalSvc *goalService.Service
}

// New 创建目标处理器
func New(goalSvc *goalService.Service) *Handler {
	return &Handler{goalSvc: goalSvc}
}

// RegisterRoutes 注册目标相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/goals", h.handleCreate)
	r.Get("/goals/{goalID}", h.handleGet)
	r.Delete("/goals/{goalID}", h.handleDelete)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var payload goal.Goal
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	created, err := h.goalSvc.Create(r.Context(), payload)
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	utils.RespondData(w, http.StatusCreated, map[string]any{"goal": created})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	g, err := h.goalSvc.Get(r.Context(), chi.URLParam(r, "goalID"))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	utils.RespondData(w, http.StatusOK, map[string]any{"goal": g})
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.goalSvc.Delete(r.Context(), chi.URLParam(r, "goalID")); err != nil {
		respondServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func respondServiceError(w http.ResponseWriter, err error) {
	if errors.Is(err, goalService.ErrGoalNotFound) {
		utils.RespondError(w, http.StatusNotFound, err.Error())
		return
	}
	utils.RespondError(w, http.StatusInternalServerError, err.Error())
}
