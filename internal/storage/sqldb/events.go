package sqldb

import (
	"context"
	"errors"
	"fmt"

	"github.com/smartcampus/campus-api/internal/storage"
	"github.com/smartcampus/campus-api/internal/types"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// eventQuery selects events with the organizer's name and a live count of
// registrations.
func eventQuery(db *gorm.DB) *gorm.DB {
	return db.Model(&types.Event{}).
		Select("events.*, COALESCE(profiles.full_name, '') AS organizer_name, " +
			"(SELECT COUNT(*) FROM event_attendees WHERE event_attendees.event_id = events.id) AS attendee_count").
		Joins("LEFT JOIN profiles ON profiles.id = events.organizer_id")
}

func (s *Store) CreateEvent(ctx context.Context, event *types.Event) (types.Event, error) {
	if err := s.db.WithContext(ctx).Omit("Organizer").Create(event).Error; err != nil {
		return types.Event{}, translate("CreateEvent", err)
	}

	s.log.Info("event created", zap.String("id", event.ID), zap.String("title", event.Title))
	return s.GetEvent(ctx, event.ID)
}

func (s *Store) GetEvent(ctx context.Context, id string) (types.Event, error) {
	return getEvent(s.db.WithContext(ctx), id)
}

func getEvent(db *gorm.DB, id string) (types.Event, error) {
	var event types.Event
	if err := eventQuery(db).Where("events.id = ?", id).Take(&event).Error; err != nil {
		return types.Event{}, translate("GetEvent", err)
	}
	return event, nil
}

func (s *Store) ListEvents(ctx context.Context, category string) ([]types.Event, error) {
	query := eventQuery(s.db.WithContext(ctx))
	if category != "" {
		query = query.Where("events.category = ?", category)
	}

	events := make([]types.Event, 0)
	if err := query.Order("events.event_date ASC").Find(&events).Error; err != nil {
		s.log.Error("failed to list events", zap.Error(err))
		return nil, translate("ListEvents", err)
	}

	return events, nil
}

// lockEvent takes a row lock on the event for the rest of tx, so concurrent
// registrations for the same event run their capacity checks one at a time.
// The outer join in eventQuery cannot be locked on postgres, so only the
// columns the check needs are read here.
func lockEvent(tx *gorm.DB, id string, event *types.Event) *gorm.DB {
	return tx.Clauses(clause.Locking{Strength: clause.LockingStrengthUpdate}).
		Model(&types.Event{}).
		Select("id", "max_attendees").
		Where("id = ?", id).
		Take(event)
}

// RegisterAttendee checks capacity and inserts the registration in one
// transaction, holding the event row lock between the two.
func (s *Store) RegisterAttendee(ctx context.Context, eventID, userID string) (types.Event, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var event types.Event
		if err := lockEvent(tx, eventID, &event).Error; err != nil {
			return translate("RegisterAttendee", err)
		}

		if event.MaxAttendees != nil {
			var registered int64
			if err := tx.Model(&types.EventAttendee{}).Where("event_id = ?", eventID).Count(&registered).Error; err != nil {
				return translate("RegisterAttendee: count", err)
			}
			if registered >= int64(*event.MaxAttendees) {
				return fmt.Errorf("RegisterAttendee %s: %w", eventID, storage.ErrEventFull)
			}
		}

		attendee := types.EventAttendee{EventID: eventID, UserID: userID}
		if err := tx.Omit("Event", "User").Create(&attendee).Error; err != nil {
			return translate("RegisterAttendee", err)
		}
		return nil
	})
	if err != nil {
		if !errors.Is(err, storage.ErrConflict) && !errors.Is(err, storage.ErrEventFull) &&
			!errors.Is(err, storage.ErrNotFound) {
			s.log.Error("failed to register attendee",
				zap.String("event_id", eventID), zap.String("user_id", userID), zap.Error(err))
		}
		return types.Event{}, err
	}

	s.log.Info("attendee registered", zap.String("event_id", eventID), zap.String("user_id", userID))
	return s.GetEvent(ctx, eventID)
}

// DeleteEvent removes the event and its registrations.
func (s *Store) DeleteEvent(ctx context.Context, id string) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("event_id = ?", id).Delete(&types.EventAttendee{}).Error; err != nil {
			return translate("DeleteEvent: attendees", err)
		}

		result := tx.Where("id = ?", id).Delete(&types.Event{})
		if result.Error != nil {
			return translate("DeleteEvent", result.Error)
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("DeleteEvent: %w", storage.ErrNotFound)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.log.Info("event deleted", zap.String("id", id))
	return nil
}
