package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// SessionStatus is the booking lifecycle state.
type SessionStatus string

const (
	SessionBooked    SessionStatus = "booked"
	SessionCompleted SessionStatus = "completed"
	SessionCancelled SessionStatus = "cancelled"
)

// Session is a booked mentorship slot. Its price is held against the
// mentee's credit balance for as long as the session stays in "booked".
type Session struct {
	ID              string          `json:"id" db:"id"`
	MenteeID        string          `json:"menteeId" db:"mentee_id"`
	MentorID        string          `json:"mentorId" db:"mentor_id"`
	ScheduledAt     time.Time       `json:"scheduledAt" db:"scheduled_at"`
	DurationMinutes int             `json:"durationMinutes" db:"duration_minutes"`
	Price           decimal.Decimal `json:"price" db:"price"`
	Status          SessionStatus   `json:"status" db:"status"`
	CreatedAt       time.Time       `json:"createdAt" db:"created_at"`
	UpdatedAt       time.Time       `json:"updatedAt" db:"updated_at"`
}
