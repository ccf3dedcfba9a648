package consultation

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/goalprobe/internal/model/consultation"
	"github.com/zhouzirui/goalprobe/internal/model/persona"
	consultationService "github.com/zhouzirui/goalprobe/internal/service/consultation"
	"github.com/zhouzirui/goalprobe/pkg/utils"
)

// Handler 咨询服务的HTTP处理器
type Handler struct {
	consultationSvc *consultationService.Service
	personaStore    persona.Store
}

// New 创建咨询处理器
func New(consultationSvc *consultationService.Service, personaStore persona.Store) *Handler {
	return &Handler{
		consultationSvc: consultationSvc,
		personaStore:    personaStore,
	}
}

// RegisterRoutes 注册咨询相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/consultations", h.handleList)
	r.Post("/consultations", h.handleCreate)
	r.Delete("/consultations/{consultationID}", h.handleDelete)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	items := h.consultationSvc.List(r.Context(), r.URL.Query().Get("status"))
	utils.RespondData(w, http.StatusOK, map[string]any{"consultations": items})
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var payload consultation.CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if payload.Persona == "" {
		utils.RespondError(w, http.StatusBadRequest, "persona is required")
		return
	}
	p, ok := h.personaStore.FindByID(payload.Persona)
	if !ok {
		utils.RespondError(w, http.StatusBadRequest, "persona not found, expected one of: "+strings.Join(h.personaStore.IDs(), ", "))
		return
	}
	payload.Persona = p.ID

	created, err := h.consultationSvc.Create(r.Context(), payload)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	utils.RespondData(w, http.StatusCreated, map[string]any{"consultation": created})
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.consultationSvc.Delete(r.Context(), chi.URLParam(r, "consultationID")); err != nil {
		respondServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, consultationService.ErrConsultationNotFound),
		errors.Is(err, consultationService.ErrContextNotFound):
		utils.RespondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, consultationService.ErrPersonaRequired),
		errors.Is(err, consultationService.ErrUnsupportedContext):
		utils.RespondError(w, http.StatusBadRequest, err.Error())
	default:
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
	}
}
