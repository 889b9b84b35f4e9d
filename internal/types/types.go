// Package types holds all shared data structures (models) used across
// the application. Keeping them in one place prevents import cycles:
// handlers, storage, realtime and the client can all import types without
// depending on each other.
//
// Struct tags serve three purposes:
//
//  1. json:"...": wire names, matching the table column names.
//  2. gorm:"...": schema for the relational store. Columns tagged
//     "->;-:migration" are read-only values produced by joins.
//  3. validate:"...": rules checked by go-playground/validator on
//     request payloads.
package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Role is the campus role stored on a profile.
type Role string

const (
	RoleStudent Role = "student"
	RoleFaculty Role = "faculty"
	RoleAdmin   Role = "admin"
)

// ItemStatus is the lifecycle state of a lost/found post.
type ItemStatus string

const (
	ItemLost    ItemStatus = "lost"
	ItemFound   ItemStatus = "found"
	ItemClaimed ItemStatus = "claimed"
)

// FeedbackStatus tracks how far an admin got with a feedback entry.
type FeedbackStatus string

const (
	FeedbackPending  FeedbackStatus = "pending"
	FeedbackInReview FeedbackStatus = "in_review"
	FeedbackResolved FeedbackStatus = "resolved"
)

// Table names double as realtime channel names.
const (
	TableProfiles       = "profiles"
	TableLostAndFound   = "lost_and_found"
	TableEvents         = "events"
	TableEventAttendees = "event_attendees"
	TableClubs          = "clubs"
	TableClubMembers    = "club_members"
	TableFeedback       = "feedback"
)

// Profile is a registered campus user.
type Profile struct {
	ID           string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Email        string    `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"`
	PasswordHash string    `gorm:"not null" json:"-"`
	FullName     string    `gorm:"type:varchar(255);not null" json:"full_name"`
	Department   string    `gorm:"type:varchar(255)" json:"department,omitempty"`
	StudentID    string    `gorm:"type:varchar(64)" json:"student_id,omitempty"`
	Role         Role      `gorm:"type:varchar(20);not null;default:'student'" json:"role"`
	CreatedAt    time.Time `json:"created_at"`
}

func (Profile) TableName() string { return TableProfiles }

func (p *Profile) BeforeCreate(tx *gorm.DB) error {
	assignID(&p.ID)
	return nil
}

// LostItem is a lost or found post.
type LostItem struct {
	ID          string     `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Title       string     `gorm:"type:varchar(255);not null" json:"title"`
	Description string     `gorm:"type:text;not null" json:"description"`
	Category    string     `gorm:"type:varchar(50);not null;index" json:"category"`
	Location    string     `gorm:"type:varchar(255);not null" json:"location"`
	Status      ItemStatus `gorm:"type:varchar(20);not null;default:'lost';index" json:"status"`
	ImageURL    *string    `gorm:"type:text" json:"image_url,omitempty"`
	ContactInfo *string    `gorm:"type:varchar(255)" json:"contact_info,omitempty"`
	UserID      string     `gorm:"type:varchar(36);not null;index" json:"user_id"`
	OwnerName   string     `gorm:"->;-:migration" json:"owner_name"`
	CreatedAt   time.Time  `gorm:"index" json:"created_at"`

	Owner *Profile `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
}

func (LostItem) TableName() string { return TableLostAndFound }

func (i *LostItem) BeforeCreate(tx *gorm.DB) error {
	assignID(&i.ID)
	return nil
}

func (i LostItem) Key() string { return i.ID }

// Event is a campus event. AttendeeCount is computed from event_attendees.
type Event struct {
	ID            string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Title         string    `gorm:"type:varchar(255);not null" json:"title"`
	Description   string    `gorm:"type:text;not null" json:"description"`
	Category      string    `gorm:"type:varchar(50);not null;index" json:"category"`
	Location      string    `gorm:"type:varchar(255);not null" json:"location"`
	EventDate     time.Time `gorm:"not null;index" json:"event_date"`
	Status        string    `gorm:"type:varchar(20);not null;default:'upcoming'" json:"status"`
	MaxAttendees  *int      `json:"max_attendees,omitempty"`
	OrganizerID   string    `gorm:"type:varchar(36);not null;index" json:"organizer_id"`
	OrganizerName string    `gorm:"->;-:migration" json:"organizer_name"`
	AttendeeCount int       `gorm:"->;-:migration" json:"attendee_count"`
	CreatedAt     time.Time `json:"created_at"`

	Organizer *Profile `gorm:"foreignKey:OrganizerID;constraint:OnDelete:CASCADE" json:"-"`
}

func (Event) TableName() string { return TableEvents }

func (e *Event) BeforeCreate(tx *gorm.DB) error {
	assignID(&e.ID)
	if e.Status == "" {
		e.Status = "upcoming"
	}
	return nil
}

func (e Event) Key() string { return e.ID }

// EventAttendee is one registration. A user registers for an event once.
type EventAttendee struct {
	ID        string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	EventID   string    `gorm:"type:varchar(36);not null;uniqueIndex:idx_event_attendee" json:"event_id"`
	UserID    string    `gorm:"type:varchar(36);not null;uniqueIndex:idx_event_attendee" json:"user_id"`
	CreatedAt time.Time `json:"created_at"`

	Event *Event   `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	User  *Profile `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}

func (EventAttendee) TableName() string { return TableEventAttendees }

func (a *EventAttendee) BeforeCreate(tx *gorm.DB) error {
	assignID(&a.ID)
	return nil
}

// Club is a student organisation.
type Club struct {
	ID            string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Name          string    `gorm:"type:varchar(255);not null;uniqueIndex" json:"name"`
	Description   string    `gorm:"type:text;not null" json:"description"`
	Category      string    `gorm:"type:varchar(50);not null" json:"category"`
	MemberCount   int       `gorm:"not null;default:0" json:"member_count"`
	PresidentID   *string   `gorm:"type:varchar(36)" json:"president_id,omitempty"`
	PresidentName *string   `gorm:"->;-:migration" json:"president_name"`
	CreatedAt     time.Time `json:"created_at"`

	President *Profile `gorm:"foreignKey:PresidentID;constraint:OnDelete:SET NULL" json:"-"`
}

func (Club) TableName() string { return TableClubs }

func (c *Club) BeforeCreate(tx *gorm.DB) error {
	assignID(&c.ID)
	return nil
}

func (c Club) Key() string { return c.ID }

// ClubMember is one membership. A user joins a club once.
type ClubMember struct {
	ID        string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	ClubID    string    `gorm:"type:varchar(36);not null;uniqueIndex:idx_club_member" json:"club_id"`
	UserID    string    `gorm:"type:varchar(36);not null;uniqueIndex:idx_club_member" json:"user_id"`
	CreatedAt time.Time `json:"created_at"`

	Club *Club    `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	User *Profile `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}

func (ClubMember) TableName() string { return TableClubMembers }

func (m *ClubMember) BeforeCreate(tx *gorm.DB) error {
	assignID(&m.ID)
	return nil
}

// Feedback is a suggestion or grievance, optionally answered by an admin.
type Feedback struct {
	ID        string         `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Category  string         `gorm:"type:varchar(50);not null" json:"category"`
	Subject   string         `gorm:"type:varchar(255);not null" json:"subject"`
	Message   string         `gorm:"type:text;not null" json:"message"`
	Status    FeedbackStatus `gorm:"type:varchar(20);not null;default:'pending'" json:"status"`
	Response  *string        `gorm:"type:text" json:"response,omitempty"`
	UserID    string         `gorm:"type:varchar(36);not null;index" json:"user_id"`
	CreatedAt time.Time      `gorm:"index" json:"created_at"`

	Author *Profile `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
}

func (Feedback) TableName() string { return TableFeedback }

func (f *Feedback) BeforeCreate(tx *gorm.DB) error {
	assignID(&f.ID)
	if f.Status == "" {
		f.Status = FeedbackPending
	}
	return nil
}

func (f Feedback) Key() string { return f.ID }

func assignID(id *string) {
	if *id == "" {
		*id = uuid.NewString()
	}
}
