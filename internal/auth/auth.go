// Package auth signs users up and in, issues HS256 session tokens and
// resolves a bearer token back to its profile.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/smartcampus/campus-api/internal/storage"
	"github.com/smartcampus/campus-api/internal/types"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrInvalidCredentials covers both unknown email and wrong password.
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidToken       = errors.New("invalid or expired token")
)

// Claims is the JWT payload.
type Claims struct {
	Role types.Role `json:"role"`
	jwt.RegisteredClaims
}

// Service needs only the profile half of storage.
type Service struct {
	profiles storage.Profiles
	secret   []byte
	ttl      time.Duration
	log      *zap.Logger
	now      func() time.Time
}

func NewService(profiles storage.Profiles, secret string, ttl time.Duration, log *zap.Logger) *Service {
	return &Service{
		profiles: profiles,
		secret:   []byte(secret),
		ttl:      ttl,
		log:      log,
		now:      time.Now,
	}
}

// SignUp creates a profile. Admin cannot be self-assigned; an empty role
// becomes student.
func (s *Service) SignUp(ctx context.Context, req types.SignUpRequest) (types.Profile, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return types.Profile{}, fmt.Errorf("auth.SignUp: hash password: %w", err)
	}

	role := req.Role
	if role != types.RoleFaculty {
		role = types.RoleStudent
	}

	profile := types.Profile{
		Email:        normalizeEmail(req.Email),
		PasswordHash: string(hash),
		FullName:     strings.TrimSpace(req.FullName),
		Department:   req.Department,
		StudentID:    req.StudentID,
		Role:         role,
	}

	if err := s.profiles.CreateProfile(ctx, &profile); err != nil {
		if errors.Is(err, storage.ErrConflict) {
			return types.Profile{}, ErrEmailTaken
		}
		return types.Profile{}, err
	}

	s.log.Info("user signed up", zap.String("user_id", profile.ID), zap.String("role", string(profile.Role)))
	return profile, nil
}

// normalizeEmail makes addresses that differ only in case or surrounding
// space the same account.
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// SignIn checks the password and returns a fresh session.
func (s *Service) SignIn(ctx context.Context, req types.SignInRequest) (types.Session, error) {
	profile, err := s.profiles.GetProfileByEmail(ctx, normalizeEmail(req.Email))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return types.Session{}, ErrInvalidCredentials
		}
		return types.Session{}, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(profile.PasswordHash), []byte(req.Password)); err != nil {
		s.log.Debug("password mismatch", zap.String("user_id", profile.ID))
		return types.Session{}, ErrInvalidCredentials
	}

	return s.issue(profile)
}

func (s *Service) issue(profile types.Profile) (types.Session, error) {
	now := s.now().UTC()
	expires := now.Add(s.ttl)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Role: profile.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   profile.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	})

	signed, err := token.SignedString(s.secret)
	if err != nil {
		return types.Session{}, fmt.Errorf("auth: sign token: %w", err)
	}

	return types.Session{
		AccessToken: signed,
		TokenType:   "bearer",
		ExpiresAt:   expires,
		User:        profile,
	}, nil
}

// ParseToken validates signature and expiry and returns the claims.
func (s *Service) ParseToken(raw string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// Authenticate resolves a token to the current profile, so role changes
// and deleted accounts take effect before the token expires.
func (s *Service) Authenticate(ctx context.Context, raw string) (types.Profile, error) {
	claims, err := s.ParseToken(raw)
	if err != nil {
		return types.Profile{}, err
	}

	profile, err := s.profiles.GetProfileByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return types.Profile{}, ErrInvalidToken
		}
		return types.Profile{}, err
	}
	return profile, nil
}
