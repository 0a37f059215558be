package subscription

import (
	"fmt"
	"time"

	"github.com/edumart/edumart/core/mentor"
)

type Status string

const (
	Active     Status = "active"
	Completed  Status = "completed"
	Terminated Status = "terminated"
	Paused     Status = "paused"
)

// transitions lists the allowed status moves. Completed and terminated are
// terminal.
var transitions = map[Status][]Status{
	Active: {Completed, Terminated, Paused},
	Paused: {Active, Terminated},
}

func CanTransition(from Status, to Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

func (s Status) Terminal() bool {
	return s == Completed || s == Terminated
}

// Subscription binds a mentee to a mentor for the duration bought. The plan
// terms are embedded as a snapshot: later edits to the live plan must not
// change what an existing subscriber paid for.
type Subscription struct {
	ID               string    `json:"id" db:"subscription_id"`
	MentorID         string    `json:"mentorId" db:"mentor_id"`
	MenteeID         string    `json:"menteeId" db:"mentee_id"`
	PlanTitle        string    `json:"planTitle" db:"plan_title"`
	PlanPrice        int       `json:"planPrice" db:"plan_price"`
	PlanDurationDays int       `json:"planDurationDays" db:"plan_duration_days"`
	Status           Status    `json:"status" db:"status"`
	StartDate        time.Time `json:"startDate" db:"start_date"`
	EndDate          time.Time `json:"endDate" db:"end_date"`
	PaymentID        string    `json:"paymentId" db:"payment_id"`
	CreatedAt        time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt        time.Time `json:"updatedAt" db:"updated_at"`
}

// FromPlan builds a fresh active subscription starting now, snapshotting the
// plan terms.
func FromPlan(id string, menteeID string, p mentor.Plan, paymentID string, now time.Time) Subscription {
	return Subscription{
		ID:               id,
		MentorID:         p.MentorID,
		MenteeID:         menteeID,
		PlanTitle:        p.Title,
		PlanPrice:        p.Price,
		PlanDurationDays: p.DurationDays,
		Status:           Active,
		StartDate:        now,
		EndDate:          now.AddDate(0, 0, p.DurationDays),
		PaymentID:        paymentID,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

type StatusUp struct {
	Status Status `json:"status" validate:"required,oneof=active completed terminated paused"`
}

func (s StatusUp) check(from Status) error {
	if !CanTransition(from, s.Status) {
		return fmt.Errorf("cannot move subscription from %q to %q", from, s.Status)
	}
	return nil
}
