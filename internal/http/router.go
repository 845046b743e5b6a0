package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/pribylovaa/users-directory/internal/errors"
	"github.com/pribylovaa/users-directory/internal/http/handlers"
	"github.com/pribylovaa/users-directory/internal/http/middleware"
	"github.com/pribylovaa/users-directory/internal/metrics"
)

// Options — параметры сборки HTTP-роутера.
type Options struct {
	Logger  *slog.Logger
	Timeout time.Duration
	// Metrics — если nil, метрики HTTP не снимаются.
	Metrics *metrics.HTTP
}

// NewRouter собирает http.Handler с chi и подключёнными middleware/роутами.
func NewRouter(users handlers.UsersService, opts Options) http.Handler {
	root := chi.NewRouter()

	// Middleware (внешний -> внутренний).
	root.Use(
		middleware.RequestID(),          // формируем/прокидываем X-Request-Id (до логирования!)
		middleware.Logging(opts.Logger), // кладём request-scoped логгер в контекст и логируем
	)
	if opts.Metrics != nil {
		root.Use(opts.Metrics.Middleware) // снаружи Recover: паника считается как 500
	}
	root.Use(middleware.Recover()) // ловим паники уже с request-scoped логгером
	if opts.Timeout > 0 {
		root.Use(middleware.Timeout(opts.Timeout)) // общий дедлайн запроса
	}

	root.NotFound(func(w http.ResponseWriter, r *http.Request) {
		apierrors.WriteMessage(w, r, http.StatusNotFound, "route not found")
	})
	root.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		apierrors.WriteMessage(w, r, http.StatusMethodNotAllowed, "method not allowed")
	})

	registerRoutes(root, handlers.New(users))

	return root
}

// registerRoutes — единая точка регистрации всех REST-эндпойнтов.
// Коллекция доступна и как /v1/users, и как /v1/users/.
func registerRoutes(r chi.Router, h *handlers.Handlers) {
	r.Route("/v1/users", func(r chi.Router) {
		r.Post("/", h.CreateUser)
		r.Get("/", h.ListUsers)
		r.Get("/{id}", h.GetUser)
		r.Put("/{id}", h.UpdateUser)
		r.Delete("/{id}", h.DeleteUser)
		r.Get("/{id}/matches", h.FindMatches)
	})
}
