package sqldb

import (
	"context"
	"fmt"

	"github.com/smartcampus/campus-api/internal/storage"
	"github.com/smartcampus/campus-api/internal/types"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// lostItemQuery selects items joined with the owner's display name.
func lostItemQuery(db *gorm.DB) *gorm.DB {
	return db.Model(&types.LostItem{}).
		Select("lost_and_found.*, COALESCE(profiles.full_name, '') AS owner_name").
		Joins("LEFT JOIN profiles ON profiles.id = lost_and_found.user_id")
}

func (s *Store) CreateLostItem(ctx context.Context, item *types.LostItem) (types.LostItem, error) {
	if item.Status == "" {
		item.Status = types.ItemLost
	}

	if err := s.db.WithContext(ctx).Omit("Owner").Create(item).Error; err != nil {
		return types.LostItem{}, translate("CreateLostItem", err)
	}

	s.log.Info("lost item created", zap.String("id", item.ID), zap.String("status", string(item.Status)))
	return s.GetLostItem(ctx, item.ID)
}

func (s *Store) GetLostItem(ctx context.Context, id string) (types.LostItem, error) {
	var item types.LostItem
	err := lostItemQuery(s.db.WithContext(ctx)).
		Where("lost_and_found.id = ?", id).
		Take(&item).Error
	if err != nil {
		return types.LostItem{}, translate("GetLostItem", err)
	}
	return item, nil
}

func (s *Store) ListLostItems(ctx context.Context, filter types.LostItemFilter) ([]types.LostItem, error) {
	query := lostItemQuery(s.db.WithContext(ctx))

	if filter.Status != "" {
		query = query.Where("lost_and_found.status = ?", filter.Status)
	}
	if filter.Category != "" {
		query = query.Where("lost_and_found.category = ?", filter.Category)
	}

	items := make([]types.LostItem, 0)
	if err := query.Order("lost_and_found.created_at DESC").Find(&items).Error; err != nil {
		s.log.Error("failed to list lost items", zap.Error(err))
		return nil, translate("ListLostItems", err)
	}

	return items, nil
}

func (s *Store) UpdateLostItemStatus(ctx context.Context, id string, status types.ItemStatus) (types.LostItem, error) {
	result := s.db.WithContext(ctx).Model(&types.LostItem{}).
		Where("id = ?", id).
		Update("status", status)
	if result.Error != nil {
		return types.LostItem{}, translate("UpdateLostItemStatus", result.Error)
	}
	if result.RowsAffected == 0 {
		return types.LostItem{}, fmt.Errorf("UpdateLostItemStatus: %w", storage.ErrNotFound)
	}

	s.log.Info("lost item status changed", zap.String("id", id), zap.String("status", string(status)))
	return s.GetLostItem(ctx, id)
}

func (s *Store) DeleteLostItem(ctx context.Context, id string) error {
	result := s.db.WithContext(ctx).Where("id = ?", id).Delete(&types.LostItem{})
	if result.Error != nil {
		return translate("DeleteLostItem", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("DeleteLostItem: %w", storage.ErrNotFound)
	}

	s.log.Info("lost item deleted", zap.String("id", id))
	return nil
}
