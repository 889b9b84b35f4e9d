package sqldb

import (
	"context"
	"strings"

	"github.com/smartcampus/campus-api/internal/types"
	"go.uber.org/zap"
)

func (s *Store) CreateProfile(ctx context.Context, p *types.Profile) error {
	p.Email = strings.ToLower(strings.TrimSpace(p.Email))
	if p.Role == "" {
		p.Role = types.RoleStudent
	}

	if err := s.db.WithContext(ctx).Create(p).Error; err != nil {
		return translate("CreateProfile", err)
	}

	s.log.Info("profile created", zap.String("id", p.ID), zap.String("role", string(p.Role)))
	return nil
}

func (s *Store) GetProfileByID(ctx context.Context, id string) (types.Profile, error) {
	var p types.Profile
	if err := s.db.WithContext(ctx).Where("id = ?", id).Take(&p).Error; err != nil {
		return types.Profile{}, translate("GetProfileByID", err)
	}
	return p, nil
}

func (s *Store) GetProfileByEmail(ctx context.Context, email string) (types.Profile, error) {
	var p types.Profile
	email = strings.ToLower(strings.TrimSpace(email))
	if err := s.db.WithContext(ctx).Where("email = ?", email).Take(&p).Error; err != nil {
		return types.Profile{}, translate("GetProfileByEmail", err)
	}
	return p, nil
}
