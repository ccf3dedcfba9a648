package persona

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/goalprobe/internal/model/persona"
	"github.com/zhouzirui/goalprobe/pkg/utils"
)

// Handler 暴露可用于创建咨询的角色。
type Handler struct {
	personas persona.Store
}

// New 创建persona处理器
func New(personas persona.Store) *Handler {
	return &Handler{personas: personas}
}

// RegisterRoutes 注册persona相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/personas", h.handleList)
	r.Get("/personas/{personaID}", h.handleGet)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	utils.RespondData(w, http.StatusOK, map[string]any{"personas": h.personas.List()})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	p, ok := h.personas.FindByID(chi.URLParam(r, "personaID"))
	if !ok {
		utils.RespondError(w, http.StatusNotFound, "persona not found")
		return
	}
	utils.RespondData(w, http.StatusOK, map[string]any{"persona": p})
}
