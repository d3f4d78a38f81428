package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"studybuddy-backend/internal/handlers"
	"studybuddy-backend/internal/middleware"
	"studybuddy-backend/internal/websocket"
)

type Handlers struct {
	Auth      *handlers.AuthHandler
	Courses   *handlers.CourseHandler
	Plans     *handlers.StudyPlanHandler
	Sessions  *handlers.StudySessionHandler
	Jobs      *handlers.JobHandler
	Assistant *handlers.AssistantHandler
}

func New(jwtAuth *middleware.JWTAuth, h Handlers, wsHub *websocket.Hub, frontendURL string) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.CORS(frontendURL))

	// Auth rate limiter (10 req/min per IP)
	authLimiter := middleware.NewRateLimiter(10, time.Minute)
	// Plan generation is the expensive write path.
	planLimiter := middleware.NewRateLimiter(20, time.Minute)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api/v1", func(r chi.Router) {

		// ──── Auth Routes (public) ────
		r.Route("/auth", func(r chi.Router) {
			r.Use(authLimiter.Middleware)
			r.Post("/register", h.Auth.Register)
			r.Post("/login", h.Auth.Login)
			r.Post("/refresh", h.Auth.Refresh)

			r.Group(func(r chi.Router) {
				r.Use(jwtAuth.Middleware)
				r.Post("/logout", h.Auth.Logout)
			})
		})

		// ──── User Routes ────
		r.Route("/user", func(r chi.Router) {
			r.Use(jwtAuth.Middleware)
			r.Get("/me", h.Auth.GetMe)
			r.Put("/me/profile", h.Auth.UpdateProfile)
		})

		// ──── Course Routes ────
		r.Route("/courses", func(r chi.Router) {
			r.Use(jwtAuth.Middleware)
			r.Post("/", h.Courses.Create)
			r.Get("/", h.Courses.List)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.Courses.Get)
				r.Put("/outline", h.Courses.AmendOutline)
				r.Get("/analysis", h.Courses.Analyze)

				r.Get("/materials", h.Courses.ListMaterials)
				r.Post("/materials", h.Courses.AddMaterial)
				r.Post("/materials/upload", h.Courses.Upload)

				r.Get("/study-plan", h.Plans.GetActive)
				r.With(planLimiter.Middleware).Post("/study-plan", h.Plans.Generate)
				r.Post("/study-plan/content", h.Plans.ApplyContent)

				r.Get("/progress", h.Plans.CourseProgress)
			})
		})

		// ──── Study Plan Routes ────
		r.Route("/study-plans", func(r chi.Router) {
			r.Use(jwtAuth.Middleware)
			r.Get("/{id}/sessions", h.Sessions.ListByPlan)
		})

		// ──── Study Session Routes ────
		r.Route("/study-sessions", func(r chi.Router) {
			r.Use(jwtAuth.Middleware)
			r.Get("/{id}", h.Sessions.Get)
			r.Get("/{id}/guide", h.Sessions.Guide)
			r.Post("/{id}/start", h.Sessions.Start)
			r.Post("/{id}/skip", h.Sessions.Skip)
			r.Post("/{id}/complete", h.Sessions.Complete)
		})

		// ──── Dashboard Routes ────
		r.Route("/dashboard", func(r chi.Router) {
			r.Use(jwtAuth.Middleware)
			r.Get("/progress", h.Plans.UserProgress)
		})

		// ──── Ad-hoc Study Log Routes ────
		r.Route("/progress", func(r chi.Router) {
			r.Use(jwtAuth.Middleware)
			r.Post("/sessions", h.Plans.RecordStudyLog)
		})

		// ──── Job Routes ────
		r.Route("/jobs", func(r chi.Router) {
			r.Use(jwtAuth.Middleware)
			r.Get("/{id}", h.Jobs.GetJob)
		})

		// ──── Assistant Tool Routes ────
		r.Route("/assistant/tools", func(r chi.Router) {
			r.Use(jwtAuth.Middleware)
			r.Get("/", h.Assistant.ListTools)
			r.Post("/{name}", h.Assistant.CallTool)
		})

		// ──── WebSocket ────
		r.Get("/ws", wsHub.HandleWebSocket)
	})

	return r
}
