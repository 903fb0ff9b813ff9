package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"recipeshare/internal/handler"
	"recipeshare/internal/httputil"
	authmw "recipeshare/internal/transport/http/middleware"
)

// RouterConfig holds the dependencies needed to create routes
type RouterConfig struct {
	PanelHandler        *handler.PanelHandler
	NotificationHandler *handler.NotificationHandler
	DeviceHandler       *handler.DeviceHandler
	Verifier            authmw.TokenVerifier
}

// NewRouter creates and configures a new Chi router with all route groups
func NewRouter(cfg RouterConfig) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)

	// Health check endpoint (useful for deployment/monitoring)
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteJSON(w, 200, map[string]string{"status": "ok"})
	})

	// Panels can be browsed signed out; mutations report AUTH_REQUIRED themselves.
	r.Group(func(r chi.Router) {
		r.Use(authmw.OptionalAuthMiddleware(cfg.Verifier))

		ph := cfg.PanelHandler
		r.Post("/items/{itemID}/panels", ph.Open)

		r.Route("/panels/{panelID}", func(r chi.Router) {
			r.Get("/", ph.Get)
			r.Delete("/", ph.Close)
			r.Put("/sort", ph.SetSort)
			r.Post("/more", ph.LoadMore)

			r.Post("/comments", ph.CreateComment)
			r.Route("/comments/{commentID}", func(r chi.Router) {
				r.Patch("/", ph.Edit)
				r.Delete("/", ph.Delete)
				r.Post("/like", ph.ToggleLike)
				r.Post("/menu", ph.ToggleMenu)
				r.Post("/edit", ph.StartEdit)
				r.Delete("/edit", ph.CancelEdit)

				r.Post("/replies/toggle", ph.ToggleReplies)
				r.Post("/replies", ph.CreateReply)
				r.Route("/replies/{replyID}", func(r chi.Router) {
					r.Patch("/", ph.Edit)
					r.Delete("/", ph.Delete)
					r.Post("/like", ph.ToggleLike)
					r.Post("/menu", ph.ToggleMenu)
					r.Post("/edit", ph.StartEdit)
					r.Delete("/edit", ph.CancelEdit)
				})
			})
		})
	})

	// Protected routes - require authentication
	r.Group(func(r chi.Router) {
		r.Use(authmw.AuthMiddleware(cfg.Verifier))

		r.Get("/me/notifications", cfg.NotificationHandler.List)
		r.Post("/me/notifications/read-all", cfg.NotificationHandler.MarkAllRead)

		// Push device registration
		r.Post("/me/devices", cfg.DeviceHandler.Register)
		r.Delete("/me/devices", cfg.DeviceHandler.Remove)
	})

	return r
}
