// Package club contains the handlers for student clubs.
package club

import (
	"net/http"

	"github.com/smartcampus/campus-api/internal/auth"
	"github.com/smartcampus/campus-api/internal/realtime"
	"github.com/smartcampus/campus-api/internal/storage"
	"github.com/smartcampus/campus-api/internal/types"
	"github.com/smartcampus/campus-api/internal/utils/response"
	"go.uber.org/zap"
)

func List(store storage.Clubs, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		clubs, err := store.ListClubs(r.Context())
		if err != nil {
			log.Error("error listing clubs", zap.Error(err))
			response.StoreError(w, err)
			return
		}
		response.WriteJSON(w, http.StatusOK, clubs)
	}
}

// New handles POST /api/clubs (faculty and admins). president_id is
// optional and must name an existing profile.
func New(store storage.Clubs, pub realtime.Publisher, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req types.CreateClubRequest
		if !response.ReadJSON(w, r, &req) {
			return
		}

		club := types.Club{
			Name:        req.Name,
			Description: req.Description,
			Category:    req.Category,
		}
		if req.PresidentID != "" {
			club.PresidentID = &req.PresidentID
		}

		created, err := store.CreateClub(r.Context(), &club)
		if err != nil {
			log.Error("error creating club", zap.String("name", req.Name), zap.Error(err))
			response.StoreError(w, err)
			return
		}

		realtime.Notify(r.Context(), pub, log, types.TableClubs, realtime.Insert, created)
		response.WriteJSON(w, http.StatusCreated, created)
	}
}

// Join handles POST /api/clubs/{id}/join. Joining twice is a 409.
func Join(store storage.Clubs, pub realtime.Publisher, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, _ := auth.UserFrom(r.Context())

		club, err := store.JoinClub(r.Context(), r.PathValue("id"), user.ID)
		if err != nil {
			response.StoreError(w, err)
			return
		}

		realtime.Notify(r.Context(), pub, log, types.TableClubs, realtime.Update, club)
		response.WriteJSON(w, http.StatusCreated, club)
	}
}
