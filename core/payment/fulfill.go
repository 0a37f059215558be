package payment

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/edumart/edumart/core/mentor"
	"github.com/edumart/edumart/core/purchase"
	"github.com/edumart/edumart/core/subscription"
	"github.com/edumart/edumart/database"
	"github.com/edumart/edumart/validate"
	"github.com/jmoiron/sqlx"
)

var (
	// ErrPlanNotFound means the notes reference a plan the mentor does not
	// have: stale or forged metadata. Nothing is created and retrying the
	// delivery cannot fix it.
	ErrPlanNotFound = errors.New("mentorship plan not found")

	// ErrSeatLimitReached is the expected outcome of losing the race for a
	// mentor's last seat. The whole fulfillment rolls back, including the
	// ledger entry, so a redelivery retries cleanly.
	ErrSeatLimitReached = errors.New("mentor seat limit reached")

	// ErrAlreadySubscribed guards the one-active-subscription-per-mentor
	// rule for payments that are not duplicates of each other.
	ErrAlreadySubscribed = errors.New("mentee already holds an active subscription with this mentor")
)

// FulfillCourse turns a captured course payment into a purchase order
// exactly once. A duplicate delivery returns the order the first delivery
// created, with fresh reporting false.
func FulfillCourse(ctx context.Context, db *sqlx.DB, evt Event) (ord purchase.Order, fresh bool, err error) {
	pay := evt.Payload.Payment.Entity
	if err := validate.Check(pay.Notes); err != nil {
		return purchase.Order{}, false, fmt.Errorf("notes of payment[%s]: %w", pay.ID, err)
	}

	err = database.Transaction(db, func(tx sqlx.ExtContext) error {
		isNew, err := RecordOnce(ctx, tx, pay.ID, KindCourse)
		if err != nil {
			return err
		}

		if !isNew {
			ord, err = purchase.FetchByPaymentID(ctx, tx, pay.ID)
			return err
		}

		fresh = true
		ord = purchase.Order{
			ID:        validate.GenerateID(),
			UserID:    pay.Notes.User,
			CourseID:  pay.Notes.Product,
			PaymentID: pay.ID,
			Discount:  pay.Notes.Discount,
			CreatedAt: time.Now().UTC(),
		}
		return purchase.Create(ctx, tx, ord)
	})
	if err != nil {
		return purchase.Order{}, false, fmt.Errorf("fulfilling course purchase for payment[%s]: %w", pay.ID, err)
	}
	return ord, fresh, nil
}

// FulfillMentorship turns a captured mentorship payment into an active
// subscription exactly once. The seat is reserved before the subscription
// row is written, and both live or die with the same transaction, so an
// active subscription can never exist without a successful reservation.
func FulfillMentorship(ctx context.Context, db *sqlx.DB, evt Event) (sub subscription.Subscription, fresh bool, err error) {
	pay := evt.Payload.Payment.Entity
	if err := validate.Check(pay.Notes); err != nil {
		return subscription.Subscription{}, false, fmt.Errorf("notes of payment[%s]: %w", pay.ID, err)
	}
	if pay.Notes.Mentor == "" {
		return subscription.Subscription{}, false, fmt.Errorf("notes of payment[%s] carry no mentor", pay.ID)
	}

	err = database.Transaction(db, func(tx sqlx.ExtContext) error {
		isNew, err := RecordOnce(ctx, tx, pay.ID, KindMentorship)
		if err != nil {
			return err
		}

		if !isNew {
			sub, err = subscription.FetchByPaymentID(ctx, tx, pay.ID)
			return err
		}

		// The plan is re-derived from the (mentor, plan) pair in the notes,
		// not from any local order state.
		plan, err := mentor.FetchPlan(ctx, tx, pay.Notes.Mentor, pay.Notes.Product)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrPlanNotFound
			}
			return err
		}

		exists, err := subscription.ActiveExists(ctx, tx, plan.MentorID, pay.Notes.User)
		if err != nil {
			return err
		}
		if exists {
			return ErrAlreadySubscribed
		}

		ok, err := mentor.ReserveSeat(ctx, tx, plan.MentorID)
		if err != nil {
			return err
		}
		if !ok {
			return ErrSeatLimitReached
		}

		fresh = true
		sub = subscription.FromPlan(validate.GenerateID(), pay.Notes.User, plan, pay.ID, time.Now().UTC())
		return subscription.Create(ctx, tx, sub)
	})
	if err != nil {
		return subscription.Subscription{}, false, fmt.Errorf("fulfilling mentorship for payment[%s]: %w", pay.ID, err)
	}
	return sub, fresh, nil
}
