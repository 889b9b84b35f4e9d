// Package router builds the HTTP handler tree for the campus API.
//
// Route table:
//
//	POST   /api/chatbot                    chat proxy (public)
//	POST   /api/auth/signup                create an account
//	POST   /api/auth/signin                issue a session token
//	GET    /api/auth/me                    current profile
//	GET    /api/lost-found                 list posts (?status, ?category)
//	POST   /api/lost-found                 create a post
//	GET    /api/lost-found/{id}            one post
//	PATCH  /api/lost-found/{id}/status     change status (poster or admin)
//	DELETE /api/lost-found/{id}            delete (poster or admin)
//	GET    /api/events                     list events (?category)
//	POST   /api/events                     create (faculty or admin)
//	GET    /api/events/{id}                one event
//	POST   /api/events/{id}/register       register the caller
//	DELETE /api/events/{id}                delete (organizer or admin)
//	GET    /api/clubs                      list clubs
//	POST   /api/clubs                      create (faculty or admin)
//	POST   /api/clubs/{id}/join            join the caller
//	GET    /api/feedback                   own feedback (admins: ?all=true)
//	POST   /api/feedback                   submit feedback
//	PATCH  /api/feedback/{id}              respond (admin)
//	GET    /realtime/v1/{table}            WebSocket change feed
//	GET    /healthz                        liveness and dependencies
//	GET    /metrics                        Prometheus
package router

import (
	"context"
	"net/http"

	"github.com/smartcampus/campus-api/internal/auth"
	"github.com/smartcampus/campus-api/internal/chat"
	"github.com/smartcampus/campus-api/internal/health"
	"github.com/smartcampus/campus-api/internal/http/handlers/chatbot"
	"github.com/smartcampus/campus-api/internal/http/handlers/club"
	"github.com/smartcampus/campus-api/internal/http/handlers/event"
	"github.com/smartcampus/campus-api/internal/http/handlers/feedback"
	"github.com/smartcampus/campus-api/internal/http/handlers/live"
	"github.com/smartcampus/campus-api/internal/http/handlers/lostfound"
	"github.com/smartcampus/campus-api/internal/http/handlers/session"
	"github.com/smartcampus/campus-api/internal/http/middleware"
	"github.com/smartcampus/campus-api/internal/metrics"
	"github.com/smartcampus/campus-api/internal/realtime"
	"github.com/smartcampus/campus-api/internal/storage"
	"github.com/smartcampus/campus-api/internal/types"
	"go.uber.org/zap"
)

// Deps is everything the handlers need.
type Deps struct {
	Store   storage.Storage
	Auth    *auth.Service
	Chat    *chat.Proxy
	Hub     *realtime.Hub
	Changes realtime.Publisher // where handlers publish; the hub or a broker
	Health  *health.Checker
	Metrics *metrics.Metrics
	Log     *zap.Logger

	// Stop closes open WebSocket streams when done.
	Stop context.Context
}

// New registers every route and wraps the mux in CORS, logging and
// metrics.
func New(d Deps) http.Handler {
	if d.Stop == nil {
		d.Stop = context.Background()
	}
	if d.Changes == nil {
		d.Changes = d.Hub
	}

	user := d.Auth.RequireUser
	staff := func(h http.HandlerFunc) http.HandlerFunc {
		return d.Auth.RequireRole(h, types.RoleFaculty, types.RoleAdmin)
	}
	admin := func(h http.HandlerFunc) http.HandlerFunc {
		return d.Auth.RequireRole(h, types.RoleAdmin)
	}

	s, pub, log := d.Store, d.Changes, d.Log
	router := http.NewServeMux()

	router.HandleFunc("POST /api/chatbot", chatbot.New(d.Chat))

	router.HandleFunc("POST /api/auth/signup", session.SignUp(d.Auth, log))
	router.HandleFunc("POST /api/auth/signin", session.SignIn(d.Auth, log))
	router.HandleFunc("GET /api/auth/me", user(session.Me()))

	router.HandleFunc("GET /api/lost-found", user(lostfound.List(s, log)))
	router.HandleFunc("POST /api/lost-found", user(lostfound.New(s, pub, log)))
	router.HandleFunc("GET /api/lost-found/{id}", user(lostfound.GetByID(s)))
	router.HandleFunc("PATCH /api/lost-found/{id}/status", user(lostfound.UpdateStatus(s, pub, log)))
	router.HandleFunc("DELETE /api/lost-found/{id}", user(lostfound.Delete(s, pub, log)))

	router.HandleFunc("GET /api/events", user(event.List(s, log)))
	router.HandleFunc("POST /api/events", staff(event.New(s, pub, log)))
	router.HandleFunc("GET /api/events/{id}", user(event.GetByID(s)))
	router.HandleFunc("POST /api/events/{id}/register", user(event.Register(s, pub, log)))
	router.HandleFunc("DELETE /api/events/{id}", user(event.Delete(s, pub, log)))

	router.HandleFunc("GET /api/clubs", user(club.List(s, log)))
	router.HandleFunc("POST /api/clubs", staff(club.New(s, pub, log)))
	router.HandleFunc("POST /api/clubs/{id}/join", user(club.Join(s, pub, log)))

	router.HandleFunc("GET /api/feedback", user(feedback.List(s, log)))
	router.HandleFunc("POST /api/feedback", user(feedback.New(s, pub, log)))
	router.HandleFunc("PATCH /api/feedback/{id}", admin(feedback.Respond(s, pub, log)))

	router.HandleFunc("GET /realtime/v1/{table}", user(live.Subscribe(d.Hub, d.Stop, log)))

	if d.Health != nil {
		router.HandleFunc("GET /healthz", d.Health.Handler())
	}
	if d.Metrics != nil {
		router.Handle("GET /metrics", d.Metrics.Handler())
	}

	return middleware.Chain(router,
		middleware.CORS,
		middleware.Observe(log, d.Metrics),
	)
}
