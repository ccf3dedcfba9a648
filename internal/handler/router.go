package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/zhouzirui/goalprobe/internal/handler/auth"
	"github.com/zhouzirui/goalprobe/internal/handler/consultation"
	"github.com/zhouzirui/goalprobe/internal/handler/goal"
	"github.com/zhouzirui/goalprobe/internal/handler/persona"
	middlewarePkg "github.com/zhouzirui/goalprobe/internal/middleware"
	personaModel "github.com/zhouzirui/goalprobe/internal/model/persona"
	aiService "github.com/zhouzirui/goalprobe/internal/service/ai"
	authService "github.com/zhouzirui/goalprobe/internal/service/auth"
	consultationService "github.com/zhouzirui/goalprobe/internal/service/consultation"
	goalService "github.com/zhouzirui/goalprobe/internal/service/goal"
	"github.com/zhouzirui/goalprobe/pkg/utils"
)

// Services bundles everything the mock backend routes need.
type Services struct {
	Auth          *authService.Service
	Goals         *goalService.Service
	Consultations *consultationService.Service
	Personas      personaModel.Store
	Responder     aiService.Responder
	APIKey        string
	BatchFrames   bool
	// Quiet drops the per-request access log, used by tests.
	Quiet bool
}

// NewRouter wires the /api/v1 contract to the in-memory services.
func NewRouter(svc Services) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	if !svc.Quiet {
		r.Use(middleware.Logger)
	}
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	authHandler := auth.New(svc.Auth)
	goalHandler := goal.New(svc.Goals)
	personaHandler := persona.New(svc.Personas)
	consultationHandler := consultation.New(svc.Consultations, svc.Personas)
	wsHandler := consultation.NewWebSocketHandler(svc.Consultations, svc.Personas, svc.Responder, svc.BatchFrames)

	r.Route("/api/v1", func(api chi.Router) {
		api.Use(middlewarePkg.APIKey(svc.APIKey))

		authHandler.RegisterRoutes(api)

		api.Group(func(private chi.Router) {
			private.Use(middlewarePkg.Bearer(svc.Auth))

			goalHandler.RegisterRoutes(private)
			personaHandler.RegisterRoutes(private)
			consultationHandler.RegisterRoutes(private)
			wsHandler.RegisterWebSocketRoutes(private)
		})
	})

	return r
}

// NewInMemoryServices builds fresh in-memory services for a single account.
func NewInMemoryServices(email, password, apiKey string, responder aiService.Responder) Services {
	goals := goalService.NewService()
	return Services{
		Auth:          authService.NewService(email, password, 0),
		Goals:         goals,
		Consultations: consultationService.NewService(goals),
		Personas:      personaModel.NewMemoryStore(personaModel.Seed()),
		Responder:     responder,
		APIKey:        apiKey,
	}
}
