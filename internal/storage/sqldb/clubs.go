package sqldb

import (
	"context"

	"github.com/smartcampus/campus-api/internal/types"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func clubQuery(db *gorm.DB) *gorm.DB {
	return db.Model(&types.Club{}).
		Select("clubs.*, profiles.full_name AS president_name").
		Joins("LEFT JOIN profiles ON profiles.id = clubs.president_id")
}

func (s *Store) CreateClub(ctx context.Context, club *types.Club) (types.Club, error) {
	club.MemberCount = 0
	if err := s.db.WithContext(ctx).Omit("President").Create(club).Error; err != nil {
		return types.Club{}, translate("CreateClub", err)
	}

	s.log.Info("club created", zap.String("id", club.ID), zap.String("name", club.Name))
	return s.GetClub(ctx, club.ID)
}

func (s *Store) GetClub(ctx context.Context, id string) (types.Club, error) {
	return getClub(s.db.WithContext(ctx), id)
}

func getClub(db *gorm.DB, id string) (types.Club, error) {
	var club types.Club
	if err := clubQuery(db).Where("clubs.id = ?", id).Take(&club).Error; err != nil {
		return types.Club{}, translate("GetClub", err)
	}
	return club, nil
}

func (s *Store) ListClubs(ctx context.Context) ([]types.Club, error) {
	clubs := make([]types.Club, 0)
	if err := clubQuery(s.db.WithContext(ctx)).Order("clubs.name ASC").Find(&clubs).Error; err != nil {
		s.log.Error("failed to list clubs", zap.Error(err))
		return nil, translate("ListClubs", err)
	}
	return clubs, nil
}

// JoinClub inserts the membership and bumps member_count in one
// transaction, so the stored count always matches club_members.
func (s *Store) JoinClub(ctx context.Context, clubID, userID string) (types.Club, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := getClub(tx, clubID); err != nil {
			return err
		}

		member := types.ClubMember{ClubID: clubID, UserID: userID}
		if err := tx.Omit("Club", "User").Create(&member).Error; err != nil {
			return translate("JoinClub", err)
		}

		err := tx.Model(&types.Club{}).
			Where("id = ?", clubID).
			UpdateColumn("member_count", gorm.Expr("member_count + ?", 1)).Error
		if err != nil {
			return translate("JoinClub: member count", err)
		}
		return nil
	})
	if err != nil {
		return types.Club{}, err
	}

	s.log.Info("club joined", zap.String("club_id", clubID), zap.String("user_id", userID))
	return s.GetClub(ctx, clubID)
}
