package subscription

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

func Create(ctx context.Context, db sqlx.ExtContext, s Subscription) error {
	const q = `
	INSERT INTO subscriptions (subscription_id, mentor_id, mentee_id, plan_title, plan_price,
		plan_duration_days, status, start_date, end_date, payment_id, created_at, updated_at)
	VALUES (:subscription_id, :mentor_id, :mentee_id, :plan_title, :plan_price,
		:plan_duration_days, :status, :start_date, :end_date, :payment_id, :created_at, :updated_at)`

	if _, err := sqlx.NamedExecContext(ctx, db, q, s); err != nil {
		return fmt.Errorf("inserting subscription: %w", err)
	}
	return nil
}

func Fetch(ctx context.Context, db sqlx.ExtContext, id string) (Subscription, error) {
	const q = `SELECT * FROM subscriptions WHERE subscription_id = $1`

	var s Subscription
	if err := sqlx.GetContext(ctx, db, &s, q, id); err != nil {
		return Subscription{}, fmt.Errorf("selecting subscription[%s]: %w", id, err)
	}
	return s, nil
}

func FetchByPaymentID(ctx context.Context, db sqlx.ExtContext, paymentID string) (Subscription, error) {
	const q = `SELECT * FROM subscriptions WHERE payment_id = $1`

	var s Subscription
	if err := sqlx.GetContext(ctx, db, &s, q, paymentID); err != nil {
		return Subscription{}, fmt.Errorf("selecting subscription bound to payment[%s]: %w", paymentID, err)
	}
	return s, nil
}

func FetchByUser(ctx context.Context, db sqlx.ExtContext, userID string) ([]Subscription, error) {
	const q = `
	SELECT s.* FROM subscriptions s
	LEFT JOIN mentors m ON m.mentor_id = s.mentor_id
	WHERE s.mentee_id = $1 OR m.user_id = $1
	ORDER BY s.created_at DESC`

	ss := []Subscription{}
	if err := sqlx.SelectContext(ctx, db, &ss, q, userID); err != nil {
		return nil, fmt.Errorf("selecting subscriptions of user[%s]: %w", userID, err)
	}
	return ss, nil
}

// ActiveExists reports whether the mentee already holds an active
// subscription with the mentor.
func ActiveExists(ctx context.Context, db sqlx.ExtContext, mentorID string, menteeID string) (bool, error) {
	const q = `
	SELECT EXISTS (
		SELECT 1 FROM subscriptions
		WHERE mentor_id = $1 AND mentee_id = $2 AND status = 'active'
	)`

	var exists bool
	if err := db.QueryRowxContext(ctx, q, mentorID, menteeID).Scan(&exists); err != nil {
		return false, fmt.Errorf("checking active subscription for mentor[%s] mentee[%s]: %w", mentorID, menteeID, err)
	}
	return exists, nil
}

// UpdateStatus moves a subscription between statuses as a single conditional
// update and reports whether it won. The from guard keeps two concurrent
// writers from both observing the same prior status: the loser matches zero
// rows instead of re-applying the change.
func UpdateStatus(ctx context.Context, db sqlx.ExtContext, id string, from Status, to Status, now time.Time) (bool, error) {
	const q = `UPDATE subscriptions SET status = $2, updated_at = $3 WHERE subscription_id = $1 AND status = $4`

	res, err := db.ExecContext(ctx, q, id, to, now, from)
	if err != nil {
		return false, fmt.Errorf("updating status of subscription[%s]: %w", id, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("checking updated subscription rows: %w", err)
	}
	return n == 1, nil
}
