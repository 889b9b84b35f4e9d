package sqldb

import (
	"context"
	"fmt"

	"github.com/smartcampus/campus-api/internal/storage"
	"github.com/smartcampus/campus-api/internal/types"
	"go.uber.org/zap"
)

func (s *Store) CreateFeedback(ctx context.Context, fb *types.Feedback) (types.Feedback, error) {
	fb.Status = types.FeedbackPending
	fb.Response = nil

	if err := s.db.WithContext(ctx).Omit("Author").Create(fb).Error; err != nil {
		return types.Feedback{}, translate("CreateFeedback", err)
	}

	s.log.Info("feedback submitted", zap.String("id", fb.ID), zap.String("category", fb.Category))
	return s.GetFeedback(ctx, fb.ID)
}

func (s *Store) GetFeedback(ctx context.Context, id string) (types.Feedback, error) {
	var fb types.Feedback
	if err := s.db.WithContext(ctx).Where("id = ?", id).Take(&fb).Error; err != nil {
		return types.Feedback{}, translate("GetFeedback", err)
	}
	return fb, nil
}

func (s *Store) ListFeedback(ctx context.Context, userID string) ([]types.Feedback, error) {
	query := s.db.WithContext(ctx).Model(&types.Feedback{})
	if userID != "" {
		query = query.Where("user_id = ?", userID)
	}

	entries := make([]types.Feedback, 0)
	if err := query.Order("created_at DESC").Find(&entries).Error; err != nil {
		s.log.Error("failed to list feedback", zap.Error(err))
		return nil, translate("ListFeedback", err)
	}
	return entries, nil
}

// RespondFeedback sets the status and the admin response. An empty
// response clears it.
func (s *Store) RespondFeedback(ctx context.Context, id string, status types.FeedbackStatus, response string) (types.Feedback, error) {
	var resp *string
	if response != "" {
		resp = &response
	}

	result := s.db.WithContext(ctx).Model(&types.Feedback{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":   status,
			"response": resp,
		})
	if result.Error != nil {
		return types.Feedback{}, translate("RespondFeedback", result.Error)
	}
	if result.RowsAffected == 0 {
		return types.Feedback{}, fmt.Errorf("RespondFeedback: %w", storage.ErrNotFound)
	}

	s.log.Info("feedback answered", zap.String("id", id), zap.String("status", string(status)))
	return s.GetFeedback(ctx, id)
}
