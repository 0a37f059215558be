package mentor

import "time"

// Mentor carries its own seat counter. CurrentMentees only ever moves
// through ReserveSeat and ReleaseSeat so it can never exceed MaxMentees.
type Mentor struct {
	ID             string    `json:"id" db:"mentor_id"`
	UserID         string    `json:"userId" db:"user_id"`
	Name           string    `json:"name" db:"name"`
	Headline       string    `json:"headline" db:"headline"`
	CurrentMentees int       `json:"currentMentees" db:"current_mentees"`
	MaxMentees     int       `json:"maxMentees" db:"max_mentees"`
	CreatedAt      time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt      time.Time `json:"updatedAt" db:"updated_at"`
	Plans          []Plan    `json:"plans" db:"-"`
}

// Plan ids are only unique within a mentor's plan list, so every lookup
// carries the mentor id as well.
type Plan struct {
	ID           string    `json:"id" db:"plan_id"`
	MentorID     string    `json:"-" db:"mentor_id"`
	Title        string    `json:"title" db:"title"`
	Price        int       `json:"price" db:"price"`
	DurationDays int       `json:"durationDays" db:"duration_days"`
	CreatedAt    time.Time `json:"createdAt" db:"created_at"`
}

type MentorNew struct {
	UserID     string    `json:"userId" validate:"required,uuid"`
	Name       string    `json:"name" validate:"required"`
	Headline   string    `json:"headline"`
	MaxMentees int       `json:"maxMentees" validate:"required,gte=1,lte=500"`
	Plans      []PlanNew `json:"plans" validate:"required,min=1,dive"`
}

type PlanNew struct {
	Title        string `json:"title" validate:"required"`
	Price        int    `json:"price" validate:"required,gte=0,lte=100000"`
	DurationDays int    `json:"durationDays" validate:"required,gte=1,lte=730"`
}
