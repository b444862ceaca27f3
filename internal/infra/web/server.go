package web

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"telegram-bulk-ops/internal/infra/logging"
	"telegram-bulk-ops/internal/usecase"
)

// Server is the admin HTTP API: job control for dashboards and scripts, plus
// health and metrics endpoints. Login exchanges the static API key for a
// short-lived JWT session.
type Server struct {
	control usecase.JobControl
	auth    *AuthManager
	apiKey  string
	log     *zerolog.Logger
}

func NewServer(control usecase.JobControl, apiKey, jwtSecret string, secure bool, logger *zerolog.Logger) *Server {
	webLog := logger.With().Str("component", "AdminAPI").Logger()
	return &Server{
		control: control,
		auth:    NewAuthManager(jwtSecret, secure, "", 30*time.Minute),
		apiKey:  apiKey,
		log:     &webLog,
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			// request id doubles as the trace id in log context
			ctx := logging.WithTraceID(req.Context(), middleware.GetReqID(req.Context()))
			next.ServeHTTP(w, req.WithContext(ctx))
		})
	})

	r.Get("/health", s.healthHandler)
	r.Handle("/metrics", promhttp.Handler())
	r.Post("/api/v1/auth/login", s.loginHandler)
	r.Post("/api/v1/auth/logout", s.logoutHandler)

	r.Route("/api/v1/jobs", func(r chi.Router) {
		r.Use(s.sessionMiddleware)
		r.Get("/", s.jobsListHandler)
		r.Post("/", s.jobsCreateHandler)
		r.Get("/{id}", s.jobGetHandler)
		r.Post("/{id}/pause", s.jobPauseHandler)
		r.Post("/{id}/resume", s.jobResumeHandler)
		r.Post("/{id}/cancel", s.jobCancelHandler)
	})

	return r
}

// sessionMiddleware requires a valid admin JWT minted by the login handler.
func (s *Server) sessionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := s.auth.ParseFromRequest(r); err != nil {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}
