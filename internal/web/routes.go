package web

import (
	"github.com/go-chi/chi/v5"

	"github.com/ngxtan/rollcall/internal/database"
	"github.com/ngxtan/rollcall/internal/web/handlers"
	"github.com/ngxtan/rollcall/internal/web/middleware"
)

func (s *Server) setupRoutes(tokens *middleware.TokenManager) {
	authHandler := handlers.NewAuthHandler(s.stores.Persons, tokens)
	personsHandler := handlers.NewPersonsHandler(s.stores.Persons, s.service)
	classesHandler := handlers.NewClassesHandler(s.stores.Classes)
	sessionsHandler := handlers.NewSessionsHandler(s.stores.Sessions, s.service)

	// Health check (no auth required)
	s.router.Get("/api/v1/health", handlers.HealthCheck)

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Post("/auth/login", authHandler.Login)

		// Everything else requires a valid token.
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAuth(tokens))

			// Read access for any authenticated person.
			r.Get("/persons", personsHandler.List)
			r.Get("/persons/{id}", personsHandler.Get)
			r.Get("/persons/{id}/records", personsHandler.Records)
			r.Get("/classes", classesHandler.List)
			r.Get("/classes/{id}", classesHandler.Get)
			r.Get("/classes/{id}/roster", classesHandler.Roster)
			r.Get("/classes/{id}/sessions", sessionsHandler.ListForClass)
			r.Get("/sessions/{id}", sessionsHandler.Get)
			r.Get("/sessions/{id}/records", sessionsHandler.Records)
			r.Get("/sessions/{id}/report", sessionsHandler.Report)

			// Teachers run sessions and fix records.
			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireRole(database.RoleTeacher, database.RoleAdmin))

				r.Post("/classes/{id}/sessions", sessionsHandler.Start)
				r.Post("/sessions/{id}/end", sessionsHandler.End)
				r.Post("/sessions/{id}/recognize", sessionsHandler.Recognize)
				r.Put("/sessions/{id}/records/{personId}", sessionsHandler.SetStatus)
			})

			// Admins manage the directory and rosters.
			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireRole(database.RoleAdmin))

				r.Post("/persons", personsHandler.Create)
				r.Post("/persons/{id}/enroll", personsHandler.Enroll)
				r.Post("/persons/identify", personsHandler.Identify)
				r.Post("/classes", classesHandler.Create)
				r.Put("/classes/{id}", classesHandler.Update)
				r.Delete("/classes/{id}", classesHandler.Delete)
				r.Post("/classes/{id}/members", classesHandler.AddMember)
				r.Delete("/classes/{id}/members/{personId}", classesHandler.RemoveMember)
			})
		})
	})
}
