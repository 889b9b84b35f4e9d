// Package lostfound contains the handlers for lost and found posts.
//
// Every successful write is followed by a realtime change on the
// lost_and_found table so open boards update without polling.
package lostfound

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

var errNotOwner = errors.New("only the poster or an admin may change this item")

// ─────────────────────────────────────────────────────────────────────────────
// List handles GET /api/lost-found?status=lost&category=electronics
// Both query parameters are optional. Newest posts come first.
// ─────────────────────────────────────────────────────────────────────────────
func List(store storage.LostAndFound, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filter := types.LostItemFilter{
			Status:   types.ItemStatus(r.URL.Query().Get("status")),
			Category: r.URL.Query().Get("category"),
		}

		items, err := store.ListLostItems(r.Context(), filter)
		if err != nil {
			log.Error("error listing lost items", zap.Error(err))
			response.StoreError(w, err)
			return
		}

		response.WriteJSON(w, http.StatusOK, items)
	}
}

// GetByID handles GET /api/lost-found/{id}
func GetByID(store storage.LostAndFound) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		item, err := store.GetLostItem(r.Context(), r.PathValue("id"))
		if err != nil {
			response.StoreError(w, err)
			return
		}
		response.WriteJSON(w, http.StatusOK, item)
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// New handles POST /api/lost-found
//
// Request body (JSON):
//
//	{ "title": "Blue umbrella", "description": "Left in reading room",
//	  "category": "accessories", "location": "Library", "status": "lost" }
//
// The poster is the signed-in user. status defaults to "lost".
// Success response (201 Created): the stored item, including owner_name.
// ─────────────────────────────────────────────────────────────────────────────
func New(store storage.LostAndFound, pub realtime.Publisher, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, _ := auth.UserFrom(r.Context())

		var req types.CreateLostItemRequest
		if !response.ReadJSON(w, r, &req) {
			return
		}

		item := types.LostItem{
			Title:       req.Title,
			Description: req.Description,
			Category:    req.Category,
			Location:    req.Location,
			Status:      req.Status,
			ContactInfo: optional(req.ContactInfo),
			ImageURL:    optional(req.ImageURL),
			UserID:      user.ID,
		}
		if item.Status == "" {
			item.Status = types.ItemLost
		}

		created, err := store.CreateLostItem(r.Context(), &item)
		if err != nil {
			log.Error("error creating lost item", zap.Error(err))
			response.StoreError(w, err)
			return
		}

		realtime.Notify(r.Context(), pub, log, types.TableLostAndFound, realtime.Insert, created)
		response.WriteJSON(w, http.StatusCreated, created)
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// UpdateStatus handles PATCH /api/lost-found/{id}/status
//
// Request body (JSON):
//
//	{ "status": "claimed" }
//
// Only the poster or an admin may change the status (403 otherwise).
// ─────────────────────────────────────────────────────────────────────────────
func UpdateStatus(store storage.LostAndFound, pub realtime.Publisher, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")

		var req types.UpdateItemStatusRequest
		if !response.ReadJSON(w, r, &req) {
			return
		}

		if !authorize(w, r, store, id) {
			return
		}

		updated, err := store.UpdateLostItemStatus(r.Context(), id, req.Status)
		if err != nil {
			response.StoreError(w, err)
			return
		}

		log.Info("lost item status changed", zap.String("id", id), zap.String("status", string(updated.Status)))
		realtime.Notify(r.Context(), pub, log, types.TableLostAndFound, realtime.Update, updated)
		response.WriteJSON(w, http.StatusOK, updated)
	}
}

// Delete handles DELETE /api/lost-found/{id}. Poster or admin only.
func Delete(store storage.LostAndFound, pub realtime.Publisher, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")

		if !authorize(w, r, store, id) {
			return
		}

		if err := store.DeleteLostItem(r.Context(), id); err != nil {
			response.StoreError(w, err)
			return
		}

		log.Info("lost item deleted", zap.String("id", id))
		realtime.NotifyDelete(r.Context(), pub, log, types.TableLostAndFound, id)
		response.WriteJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	}
}

func authorize(w http.ResponseWriter, r *http.Request, store storage.LostAndFound, id string) bool {
	user, _ := auth.UserFrom(r.Context())

	item, err := store.GetLostItem(r.Context(), id)
	if err != nil {
		response.StoreError(w, err)
		return false
	}

	if item.UserID != user.ID && user.Role != types.RoleAdmin {
		response.WriteJSON(w, http.StatusForbidden, response.GeneralError(errNotOwner))
		return false
	}
	return true
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
