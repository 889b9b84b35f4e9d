package types

import "time"

// Request payloads. Only required-field and enum checks are applied.

type SignUpRequest struct {
	Email      string `json:"email"      validate:"required,email"`
	Password   string `json:"password"   validate:"required,min=6"`
	FullName   string `json:"full_name"  validate:"required"`
	Department string `json:"department"`
	StudentID  string `json:"student_id"`
	Role       Role   `json:"role"       validate:"omitempty,oneof=student faculty"`
}

type SignInRequest struct {
	Email    string `json:"email"    validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// Session is returned by a successful sign-in.
type Session struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
	User        Profile   `json:"user"`
}

type CreateLostItemRequest struct {
	Title       string     `json:"title"        validate:"required"`
	Description string     `json:"description"  validate:"required"`
	Category    string     `json:"category"     validate:"required,oneof=electronics accessories documents clothing other"`
	Location    string     `json:"location"     validate:"required"`
	Status      ItemStatus `json:"status"       validate:"omitempty,oneof=lost found"`
	ContactInfo string     `json:"contact_info"`
	ImageURL    string     `json:"image_url"    validate:"omitempty,url"`
}

type UpdateItemStatusRequest struct {
	Status ItemStatus `json:"status" validate:"required,oneof=lost found claimed"`
}

// LostItemFilter narrows a lost/found listing. Empty fields match all.
type LostItemFilter struct {
	Status   ItemStatus
	Category string
}

type CreateEventRequest struct {
	Title        string    `json:"title"         validate:"required"`
	Description  string    `json:"description"   validate:"required"`
	Category     string    `json:"category"      validate:"required,oneof=academic cultural sports tech social"`
	Location     string    `json:"location"      validate:"required"`
	EventDate    time.Time `json:"event_date"    validate:"required"`
	MaxAttendees *int      `json:"max_attendees" validate:"omitempty,min=1"`
}

type CreateClubRequest struct {
	Name        string `json:"name"         validate:"required"`
	Description string `json:"description"  validate:"required"`
	Category    string `json:"category"     validate:"required"`
	PresidentID string `json:"president_id" validate:"omitempty,uuid"`
}

type CreateFeedbackRequest struct {
	Category string `json:"category" validate:"required,oneof=academic infrastructure hostel canteen sports other"`
	Subject  string `json:"subject"  validate:"required"`
	Message  string `json:"message"  validate:"required"`
}

type RespondFeedbackRequest struct {
	Status   FeedbackStatus `json:"status"   validate:"required,oneof=pending in_review resolved"`
	Response string         `json:"response"`
}
