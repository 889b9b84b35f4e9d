package auth

import (
	"context"
	"errors"
	"net/http"
	"slices"
	"strings"

	"github.com/smartcampus/campus-api/internal/types"
	"github.com/smartcampus/campus-api/internal/utils/response"
)

type ctxKey struct{}

// WithUser stores p on ctx.
func WithUser(ctx context.Context, p types.Profile) context.Context {
	return context.WithValue(ctx, ctxKey{}, p)
}

// UserFrom returns the profile stored by RequireUser.
func UserFrom(ctx context.Context) (types.Profile, bool) {
	p, ok := ctx.Value(ctxKey{}).(types.Profile)
	return p, ok
}

// BearerToken extracts the token from "Authorization: Bearer <t>", falling
// back to the access_token query parameter (browsers cannot set headers on
// WebSocket upgrades).
func BearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, token, ok := strings.Cut(h, " ")
		if ok && strings.EqualFold(scheme, "bearer") {
			return strings.TrimSpace(token)
		}
		return ""
	}
	return r.URL.Query().Get("access_token")
}

// RequireUser rejects requests without a valid session with 401.
func (s *Service) RequireUser(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := BearerToken(r)
		if token == "" {
			response.WriteJSON(w, http.StatusUnauthorized,
				response.GeneralError(errors.New("missing bearer token")))
			return
		}

		profile, err := s.Authenticate(r.Context(), token)
		if err != nil {
			status := http.StatusInternalServerError
			if errors.Is(err, ErrInvalidToken) {
				status = http.StatusUnauthorized
			}
			response.WriteJSON(w, status, response.GeneralError(err))
			return
		}

		next(w, r.WithContext(WithUser(r.Context(), profile)))
	}
}

// RequireRole is RequireUser plus a role check answering 403.
func (s *Service) RequireRole(next http.HandlerFunc, roles ...types.Role) http.HandlerFunc {
	return s.RequireUser(func(w http.ResponseWriter, r *http.Request) {
		profile, _ := UserFrom(r.Context())
		if !slices.Contains(roles, profile.Role) {
			response.WriteJSON(w, http.StatusForbidden,
				response.GeneralError(errors.New("access forbidden")))
			return
		}
		next(w, r)
	})
}
