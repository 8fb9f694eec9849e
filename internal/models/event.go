package models

import (
	"time"
)

type EventType string

const (
	EventAcademic EventType = "academic"
	EventSocial   EventType = "social"
	EventCareer   EventType = "career"
	EventStudy    EventType = "study"
	EventClub     EventType = "club"
	EventSports   EventType = "sports"
	EventOther    EventType = "other"
)

func ParseEventType(s string) (EventType, bool) {
	switch t := EventType(s); t {
	case EventAcademic, EventSocial, EventCareer, EventStudy, EventClub, EventSports, EventOther:
		return t, true
	}
	return "", false
}

type EventVisibility string

const (
	VisibilityPublic  EventVisibility = "public"
	VisibilityCollege EventVisibility = "college-only"
	VisibilityPrivate EventVisibility = "private"
)

func ParseEventVisibility(s string) (EventVisibility, bool) {
	switch v := EventVisibility(s); v {
	case VisibilityPublic, VisibilityCollege, VisibilityPrivate:
		return v, true
	}
	return "", false
}

type EventStatus string

const (
	EventScheduled   EventStatus = "scheduled"
	EventCanceled    EventStatus = "canceled"
	EventCompleted   EventStatus = "completed"
	EventRescheduled EventStatus = "rescheduled"
)

type Event struct {
	ID           int64  `gorm:"primaryKey;autoIncrement:false" json:"id,string"`
	Title        string `gorm:"size:200;not null" json:"title"`
	Description  string `gorm:"type:text;not null" json:"description"`
	CollegeID    int64  `gorm:"not null;index" json:"college_id,string"`
	CourseID     *int64 `gorm:"index" json:"course_id,omitempty,string"`
	StudyGroupID *int64 `gorm:"index" json:"study_group_id,omitempty,string"`
	OrganizerID  int64  `gorm:"not null;index" json:"organizer_id,string"`

	StartTime time.Time `gorm:"not null;index" json:"start_time"`
	EndTime   time.Time `gorm:"not null" json:"end_time"`
	Location  string    `gorm:"size:200;not null" json:"location"`
	IsVirtual bool      `gorm:"not null;default:false" json:"is_virtual"`
	EventType EventType `gorm:"size:20;not null;default:'other'" json:"event_type"`

	RegistrationRequired bool       `gorm:"not null;default:false" json:"registration_required"`
	RegistrationDeadline *time.Time `json:"registration_deadline,omitempty"`
	MaxAttendees         int        `gorm:"not null;default:0" json:"max_attendees"` // 0 表示不限人数
	AttendeeCount        int        `gorm:"not null;default:0" json:"attendee_count"`
	InterestedCount      int        `gorm:"not null;default:0" json:"interested_count"`

	Visibility EventVisibility `gorm:"size:20;not null;default:'college-only'" json:"visibility"`
	Status     EventStatus     `gorm:"size:20;not null;default:'scheduled';index" json:"status"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// HasEnded reports whether the event is over at now.
func (e *Event) HasEnded(now time.Time) bool {
	return now.After(e.EndTime)
}

// RegistrationOpen reports whether one more attendee may register at now.
// Deadline and capacity only bind events that require registration.
func (e *Event) RegistrationOpen(now time.Time) bool {
	if e.Status == EventCanceled || e.Status == EventCompleted || e.HasEnded(now) {
		return false
	}
	if !e.RegistrationRequired {
		return true
	}
	if e.RegistrationDeadline != nil && now.After(*e.RegistrationDeadline) {
		return false
	}
	return e.MaxAttendees == 0 || e.AttendeeCount < e.MaxAttendees
}

// Capacity is the attendee limit the store enforces; 0 means none.
func (e *Event) Capacity() int {
	if !e.RegistrationRequired {
		return 0
	}
	return e.MaxAttendees
}

type AttendeeStatus string

const (
	AttendeeRegistered AttendeeStatus = "registered"
	AttendeeAttended   AttendeeStatus = "attended"
	AttendeeCanceled   AttendeeStatus = "canceled"
)

type EventAttendee struct {
	EventID      int64          `gorm:"primaryKey;autoIncrement:false" json:"event_id,string"`
	UserID       int64          `gorm:"primaryKey;autoIncrement:false;index" json:"user_id,string"`
	Status       AttendeeStatus `gorm:"size:20;not null;default:'registered'" json:"status"`
	RegisteredAt time.Time      `json:"registered_at"`
}

type EventInterest struct {
	EventID   int64     `gorm:"primaryKey;autoIncrement:false" json:"event_id,string"`
	UserID    int64     `gorm:"primaryKey;autoIncrement:false" json:"user_id,string"`
	CreatedAt time.Time `json:"created_at"`
}

// InterestResult is the outcome of toggling interest in an event.
type InterestResult struct {
	EventID         int64 `json:"event_id,string"`
	Interested      bool  `json:"interested"`
	InterestedCount int   `json:"interested_count"`
}
