// Package feedback contains the handlers for suggestions and grievances.
//
// Students see only their own entries; admins can list everything and
// respond.
package feedback

import (
	"net/http"

	"github.com/smartcampus/campus-api/internal/auth"
	"github.com/smartcampus/campus-api/internal/realtime"
	"github.com/smartcampus/campus-api/internal/storage"
	"github.com/smartcampus/campus-api/internal/types"
	"github.com/smartcampus/campus-api/internal/utils/response"
	"go.uber.org/zap"
)

// List handles GET /api/feedback. Admins may pass ?all=true; for anyone
// else the flag is ignored.
func List(store storage.Feedback, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, _ := auth.UserFrom(r.Context())

		owner := user.ID
		if user.Role == types.RoleAdmin && r.URL.Query().Get("all") == "true" {
			owner = ""
		}

		entries, err := store.ListFeedback(r.Context(), owner)
		if err != nil {
			log.Error("error listing feedback", zap.Error(err))
			response.StoreError(w, err)
			return
		}
		response.WriteJSON(w, http.StatusOK, entries)
	}
}

// New handles POST /api/feedback. New entries always start as pending.
func New(store storage.Feedback, pub realtime.Publisher, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, _ := auth.UserFrom(r.Context())

		var req types.CreateFeedbackRequest
		if !response.ReadJSON(w, r, &req) {
			return
		}

		created, err := store.CreateFeedback(r.Context(), &types.Feedback{
			Category: req.Category,
			Subject:  req.Subject,
			Message:  req.Message,
			UserID:   user.ID,
		})
		if err != nil {
			log.Error("error creating feedback", zap.Error(err))
			response.StoreError(w, err)
			return
		}

		realtime.Notify(r.Context(), pub, log, types.TableFeedback, realtime.Insert, created)
		response.WriteJSON(w, http.StatusCreated, created)
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Respond handles PATCH /api/feedback/{id} (admins only).
//
// Request body (JSON):
//
//	{ "status": "resolved", "response": "Boiler repaired" }
//
// ─────────────────────────────────────────────────────────────────────────────
func Respond(store storage.Feedback, pub realtime.Publisher, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")

		var req types.RespondFeedbackRequest
		if !response.ReadJSON(w, r, &req) {
			return
		}

		updated, err := store.RespondFeedback(r.Context(), id, req.Status, req.Response)
		if err != nil {
			response.StoreError(w, err)
			return
		}

		log.Info("feedback answered", zap.String("id", id), zap.String("status", string(updated.Status)))
		realtime.Notify(r.Context(), pub, log, types.TableFeedback, realtime.Update, updated)
		response.WriteJSON(w, http.StatusOK, updated)
	}
}
