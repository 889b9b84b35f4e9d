// Package session contains the account handlers: sign-up, sign-in and
// the current-user lookup.
package session

import (
	"errors"
	"net/http"

	"github.com/smartcampus/campus-api/internal/auth"
	"github.com/smartcampus/campus-api/internal/types"
	"github.com/smartcampus/campus-api/internal/utils/response"
	"go.uber.org/zap"
)

// ─────────────────────────────────────────────────────────────────────────────
// SignUp handles POST /api/auth/signup
//
// Request body (JSON):
//
//	{ "email": "asha@campus.edu", "password": "secret1", "full_name": "Asha Rao",
//	  "department": "CSE", "role": "student" }
//
// Success response (201 Created): the new profile.
//
// Error responses:
//
//	400: empty body, malformed JSON, or failed validation
//	409: email already registered
//
// ─────────────────────────────────────────────────────────────────────────────
func SignUp(svc *auth.Service, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req types.SignUpRequest
		if !response.ReadJSON(w, r, &req) {
			return
		}

		profile, err := svc.SignUp(r.Context(), req)
		if err != nil {
			if errors.Is(err, auth.ErrEmailTaken) {
				response.WriteJSON(w, http.StatusConflict, response.GeneralError(err))
				return
			}
			log.Error("sign-up failed", zap.Error(err))
			response.WriteJSON(w, http.StatusInternalServerError, response.GeneralError(err))
			return
		}

		response.WriteJSON(w, http.StatusCreated, profile)
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// SignIn handles POST /api/auth/signin
//
// Success response (200 OK):
//
//	{ "access_token": "...", "token_type": "bearer", "expires_at": "...", "user": {...} }
//
// Error responses:
//
//	400: failed validation
//	401: unknown email or wrong password
//
// ─────────────────────────────────────────────────────────────────────────────
func SignIn(svc *auth.Service, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req types.SignInRequest
		if !response.ReadJSON(w, r, &req) {
			return
		}

		session, err := svc.SignIn(r.Context(), req)
		if err != nil {
			if errors.Is(err, auth.ErrInvalidCredentials) {
				response.WriteJSON(w, http.StatusUnauthorized, response.GeneralError(err))
				return
			}
			log.Error("sign-in failed", zap.Error(err))
			response.WriteJSON(w, http.StatusInternalServerError, response.GeneralError(err))
			return
		}

		log.Info("user signed in", zap.String("user_id", session.User.ID))
		response.WriteJSON(w, http.StatusOK, session)
	}
}

// Me handles GET /api/auth/me. Mount behind auth.Service.RequireUser.
func Me() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		profile, _ := auth.UserFrom(r.Context())
		response.WriteJSON(w, http.StatusOK, profile)
	}
}
