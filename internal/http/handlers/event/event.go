// Package event contains the handlers for campus events and registration.
package event

import (
	"errors"
	"net/http"

	"github.com/smartcampus/campus-api/internal/auth"
	"github.com/smartcampus/campus-api/internal/realtime"
	"github.com/smartcampus/campus-api/internal/storage"
	"github.com/smartcampus/campus-api/internal/types"
	"github.com/smartcampus/campus-api/internal/utils/response"
	"go.uber.org/zap"
)

var errNotOrganizer = errors.New("only the organizer or an admin may delete this event")

// List handles GET /api/events?category=tech. Earliest event first.
func List(store storage.Events, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		events, err := store.ListEvents(r.Context(), r.URL.Query().Get("category"))
		if err != nil {
			log.Error("error listing events", zap.Error(err))
			response.StoreError(w, err)
			return
		}
		response.WriteJSON(w, http.StatusOK, events)
	}
}

// GetByID handles GET /api/events/{id}
func GetByID(store storage.Events) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		event, err := store.GetEvent(r.Context(), r.PathValue("id"))
		if err != nil {
			response.StoreError(w, err)
			return
		}
		response.WriteJSON(w, http.StatusOK, event)
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// New handles POST /api/events (faculty and admins).
//
// Request body (JSON):
//
//	{ "title": "Hackathon", "description": "24h build", "category": "tech",
//	  "location": "Lab 3", "event_date": "2026-11-20T10:00:00Z", "max_attendees": 120 }
//
// The organizer is the signed-in user.
// ─────────────────────────────────────────────────────────────────────────────
func New(store storage.Events, pub realtime.Publisher, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, _ := auth.UserFrom(r.Context())

		var req types.CreateEventRequest
		if !response.ReadJSON(w, r, &req) {
			return
		}

		created, err := store.CreateEvent(r.Context(), &types.Event{
			Title:        req.Title,
			Description:  req.Description,
			Category:     req.Category,
			Location:     req.Location,
			EventDate:    req.EventDate.UTC(),
			MaxAttendees: req.MaxAttendees,
			OrganizerID:  user.ID,
		})
		if err != nil {
			log.Error("error creating event", zap.Error(err))
			response.StoreError(w, err)
			return
		}

		realtime.Notify(r.Context(), pub, log, types.TableEvents, realtime.Insert, created)
		response.WriteJSON(w, http.StatusCreated, created)
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Register handles POST /api/events/{id}/register
//
// Success response (201 Created): the event with its new attendee_count.
//
// Error responses:
//
//	404: no such event
//	409: already registered, or the event is full
//
// ─────────────────────────────────────────────────────────────────────────────
func Register(store storage.Events, pub realtime.Publisher, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, _ := auth.UserFrom(r.Context())
		id := r.PathValue("id")

		event, err := store.RegisterAttendee(r.Context(), id, user.ID)
		if err != nil {
			log.Info("registration refused", zap.String("event_id", id), zap.Error(err))
			response.StoreError(w, err)
			return
		}

		realtime.Notify(r.Context(), pub, log, types.TableEvents, realtime.Update, event)
		response.WriteJSON(w, http.StatusCreated, event)
	}
}

// Delete handles DELETE /api/events/{id}. Organizer or admin only.
func Delete(store storage.Events, pub realtime.Publisher, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, _ := auth.UserFrom(r.Context())
		id := r.PathValue("id")

		event, err := store.GetEvent(r.Context(), id)
		if err != nil {
			response.StoreError(w, err)
			return
		}
		if event.OrganizerID != user.ID && user.Role != types.RoleAdmin {
			response.WriteJSON(w, http.StatusForbidden, response.GeneralError(errNotOrganizer))
			return
		}

		if err := store.DeleteEvent(r.Context(), id); err != nil {
			response.StoreError(w, err)
			return
		}

		log.Info("event deleted", zap.String("id", id))
		realtime.NotifyDelete(r.Context(), pub, log, types.TableEvents, id)
		response.WriteJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	}
}
