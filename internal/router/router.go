package router

import (
	"net/http"

	"github.com/senyabanana/engagement-service/internal/auth"
	"github.com/senyabanana/engagement-service/internal/handlers"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// InitRoutes собирает HTTP API. /api/ping доступен без аутентификации.
func InitRoutes(requestHandler *handlers.RequestHandler, negotiationHandler *handlers.NegotiationHandler, authCfg auth.Config) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Route("/api", func(root chi.Router) {
		root.Get("/ping", handlers.PingHandler)

		root.Group(func(api chi.Router) {
			api.Use(auth.Middleware(authCfg))

			api.Post("/requests", requestHandler.CreateRequest)
			api.Get("/requests", requestHandler.ListRequests)
			api.Route("/requests/{requestId}", func(req chi.Router) {
				req.Get("/", requestHandler.GetRequest)
				req.Post("/proposals", negotiationHandler.SubmitProposal)
				req.Get("/thread", negotiationHandler.GetThread)
				req.Post("/cancel", requestHandler.CancelRequest)
				req.Post("/start", requestHandler.StartWork)
				req.Post("/submit_review", requestHandler.SubmitForReview)
				req.Post("/complete", requestHandler.Complete)
				req.Post("/comments", requestHandler.AddComment)
				req.Get("/comments", requestHandler.ListComments)
			})

			api.Post("/cards/{cardId}/responses", negotiationHandler.Respond)
			api.Post("/cards/{cardId}/finalize", negotiationHandler.Finalize)

			api.Post("/providers", requestHandler.RegisterProvider)
		})
	})

	return r
}
