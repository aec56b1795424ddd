package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func NewRouter(apiHandler *APIHandler, ws http.Handler) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Logger)       // Basic request logging
	r.Use(middleware.Recoverer)    // Recover from panics
	r.Use(middleware.StripSlashes) // Ensure consistent path handling

	// All API routes will be under /api
	r.Route("/api", func(r chi.Router) {
		r.Get("/health", apiHandler.HealthHandler)

		// Anonymous or token-identified routes
		r.Group(func(r chi.Router) {
			r.Use(apiHandler.OptionalAuthMiddleware)

			r.Route("/chat", func(r chi.Router) {
				r.Post("/start", apiHandler.StartChatHandler)
				r.Post("/send", apiHandler.SendMessageHandler)
				r.Get("/ws", ws.ServeHTTP)

				r.Post("/{sessionID}/end", apiHandler.EndChatHandler)
				r.Post("/{sessionID}/escalate", apiHandler.EscalateHandler)
				r.Get("/{sessionID}/messages", apiHandler.TranscriptHandler)
			})

			// Message feedback route
			r.Post("/messages/{messageID}/feedback", apiHandler.MessageFeedbackHandler)

			r.Get("/knowledge/search", apiHandler.KnowledgeSearchHandler)
		})
	})

	return r
}
