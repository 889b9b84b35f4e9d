// Package storage defines the Storage interface: the contract any database
// backend must satisfy to serve the campus API.
//
// Handlers depend only on these interfaces, so tests can pass a fake and
// the production wiring can swap SQLite for PostgreSQL without touching
// the HTTP layer.
package storage

import (
	"context"
	"errors"

	"github.com/smartcampus/campus-api/internal/types"
)

var (
	// ErrNotFound is returned when the requested row does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrConflict is returned when a write violates a uniqueness rule,
	// e.g. registering twice for the same event.
	ErrConflict = errors.New("record already exists")

	// ErrEventFull is returned when an event has reached max_attendees.
	ErrEventFull = errors.New("event is full")
)

// Profiles stores registered users.
type Profiles interface {
	// CreateProfile inserts p and fills in its generated ID.
	CreateProfile(ctx context.Context, p *types.Profile) error
	GetProfileByID(ctx context.Context, id string) (types.Profile, error)
	GetProfileByEmail(ctx context.Context, email string) (types.Profile, error)
}

// LostAndFound stores lost/found posts. Reads include the owner's name.
type LostAndFound interface {
	CreateLostItem(ctx context.Context, item *types.LostItem) (types.LostItem, error)
	GetLostItem(ctx context.Context, id string) (types.LostItem, error)
	// ListLostItems returns matching items, newest first.
	ListLostItems(ctx context.Context, filter types.LostItemFilter) ([]types.LostItem, error)
	UpdateLostItemStatus(ctx context.Context, id string, status types.ItemStatus) (types.LostItem, error)
	DeleteLostItem(ctx context.Context, id string) error
}

// Events stores events and registrations. Reads include the organizer's
// name and the current attendee count.
type Events interface {
	CreateEvent(ctx context.Context, event *types.Event) (types.Event, error)
	GetEvent(ctx context.Context, id string) (types.Event, error)
	// ListEvents returns events in ascending event_date order. An empty
	// category matches all.
	ListEvents(ctx context.Context, category string) ([]types.Event, error)
	// RegisterAttendee adds userID to the event and returns the event with
	// its new attendee count.
	RegisterAttendee(ctx context.Context, eventID, userID string) (types.Event, error)
	DeleteEvent(ctx context.Context, id string) error
}

// Clubs stores clubs and memberships.
type Clubs interface {
	CreateClub(ctx context.Context, club *types.Club) (types.Club, error)
	GetClub(ctx context.Context, id string) (types.Club, error)
	// ListClubs returns clubs ordered by name.
	ListClubs(ctx context.Context) ([]types.Club, error)
	// JoinClub adds userID as a member and returns the club with its new
	// member count.
	JoinClub(ctx context.Context, clubID, userID string) (types.Club, error)
}

// Feedback stores feedback entries.
type Feedback interface {
	CreateFeedback(ctx context.Context, fb *types.Feedback) (types.Feedback, error)
	GetFeedback(ctx context.Context, id string) (types.Feedback, error)
	// ListFeedback returns userID's feedback, newest first. An empty userID
	// returns every entry.
	ListFeedback(ctx context.Context, userID string) ([]types.Feedback, error)
	RespondFeedback(ctx context.Context, id string, status types.FeedbackStatus, response string) (types.Feedback, error)
}

// Storage is the full database contract.
type Storage interface {
	Profiles
	LostAndFound
	Events
	Clubs
	Feedback

	Ping(ctx context.Context) error
	Close() error
}
