package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	auth "github.com/mind-engage/mindengage-testseries/internal/auth/middleware"
	"github.com/mind-engage/mindengage-testseries/internal/exam"
	"github.com/mind-engage/mindengage-testseries/internal/logging"
	"github.com/mind-engage/mindengage-testseries/internal/rbac"
	syncx "github.com/mind-engage/mindengage-testseries/internal/sync"
)

type RouterDeps struct {
	Store  exam.Store
	Events *syncx.EventRepo // nil for the in-memory store
	Auth   *auth.AuthService
	Log    *zap.Logger

	CORSOrigins    []string
	RequestTimeout time.Duration
}

func NewRouter(d RouterDeps) http.Handler {
	log := d.Log
	if log == nil {
		log = zap.NewNop()
	}
	timeout := d.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	origins := d.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000"}
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, logging.RequestLogger(log), middleware.Recoverer)
	r.Use(middleware.Timeout(timeout))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })

	r.Group(func(pr chi.Router) {
		pr.Use(auth.JWTMiddleware(d.Auth))

		pr.With(rbac.Require(rbac.PermTestView)).
			Get("/tests", ListTestsHandler(d.Store, log))
		pr.With(rbac.Require(rbac.PermTestView)).
			Get("/tests/{testId}", GetTestHandler(d.Store, log))

		pr.With(rbac.RequireAccess(rbac.PermProgressViewOwn, rbac.PermProgressViewAll, func(r *http.Request) string {
			return chi.URLParam(r, "userId")
		})).Get("/tests/{testId}/progress/{userId}", GetProgressHandler(d.Store, log))

		pr.With(rbac.Require(rbac.PermProgressSave)).
			Post("/tests/{testId}/save-progress", SaveProgressHandler(d.Store, log))
		pr.With(rbac.Require(rbac.PermAttemptSubmit)).
			Post("/tests/{testId}/submit", SubmitHandler(d.Store, log))

		// owner check happens in the handler once the attempt is loaded
		pr.With(rbac.RequireAny(rbac.PermAttemptViewOwn, rbac.PermAttemptViewAll)).
			Get("/attempts/{attemptId}", GetAttemptHandler(d.Store, log))

		pr.With(rbac.Require(rbac.PermEventsRead)).
			Get("/events", EventsHandler(d.Events, log))
	})
	return r
}
