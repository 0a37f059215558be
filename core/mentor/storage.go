package mentor

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

func Create(ctx context.Context, db sqlx.ExtContext, m Mentor) error {
	const q = `
	INSERT INTO mentors (mentor_id, user_id, name, headline, current_mentees, max_mentees, created_at, updated_at)
	VALUES (:mentor_id, :user_id, :name, :headline, :current_mentees, :max_mentees, :created_at, :updated_at)`

	if _, err := sqlx.NamedExecContext(ctx, db, q, m); err != nil {
		return fmt.Errorf("inserting mentor: %w", err)
	}
	return nil
}

func CreatePlan(ctx context.Context, db sqlx.ExtContext, p Plan) error {
	const q = `
	INSERT INTO mentor_plans (plan_id, mentor_id, title, price, duration_days, created_at)
	VALUES (:plan_id, :mentor_id, :title, :price, :duration_days, :created_at)`

	if _, err := sqlx.NamedExecContext(ctx, db, q, p); err != nil {
		return fmt.Errorf("inserting plan: %w", err)
	}
	return nil
}

func Fetch(ctx context.Context, db sqlx.ExtContext, id string) (Mentor, error) {
	const q = `SELECT * FROM mentors WHERE mentor_id = $1`

	var m Mentor
	if err := sqlx.GetContext(ctx, db, &m, q, id); err != nil {
		return Mentor{}, fmt.Errorf("selecting mentor[%s]: %w", id, err)
	}

	const qp = `SELECT * FROM mentor_plans WHERE mentor_id = $1 ORDER BY created_at`

	plans := []Plan{}
	if err := sqlx.SelectContext(ctx, db, &plans, qp, id); err != nil {
		return Mentor{}, fmt.Errorf("selecting plans of mentor[%s]: %w", id, err)
	}

	m.Plans = plans
	return m, nil
}

func FetchAll(ctx context.Context, db sqlx.ExtContext) ([]Mentor, error) {
	const q = `SELECT * FROM mentors ORDER BY created_at DESC`

	ms := []Mentor{}
	if err := sqlx.SelectContext(ctx, db, &ms, q); err != nil {
		return nil, fmt.Errorf("selecting mentors: %w", err)
	}
	return ms, nil
}

// FetchPlan resolves a plan by the (mentor id, plan id) pair. A plan id that
// exists under a different mentor does not match.
func FetchPlan(ctx context.Context, db sqlx.ExtContext, mentorID string, planID string) (Plan, error) {
	const q = `SELECT * FROM mentor_plans WHERE mentor_id = $1 AND plan_id = $2`

	var p Plan
	if err := sqlx.GetContext(ctx, db, &p, q, mentorID, planID); err != nil {
		return Plan{}, fmt.Errorf("selecting plan[%s] of mentor[%s]: %w", planID, mentorID, err)
	}
	return p, nil
}

// ReserveSeat bumps the mentor's seat count by one as a single conditional
// update. It reports false when the mentor is already at capacity, which is
// the only way the count is kept below the maximum under concurrent
// enrollments: the compare and the increment must not be separate calls.
func ReserveSeat(ctx context.Context, db sqlx.ExtContext, mentorID string) (bool, error) {
	const q = `
	UPDATE mentors SET
		current_mentees = current_mentees + 1,
		updated_at = $2
	WHERE mentor_id = $1 AND current_mentees < max_mentees`

	res, err := db.ExecContext(ctx, q, mentorID, time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("reserving seat of mentor[%s]: %w", mentorID, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("checking reserved seat rows: %w", err)
	}
	return n == 1, nil
}

// ReleaseSeat is the symmetric decrement used when a subscription reaches a
// terminal state, floored at zero.
func ReleaseSeat(ctx context.Context, db sqlx.ExtContext, mentorID string) error {
	const q = `
	UPDATE mentors SET
		current_mentees = current_mentees - 1,
		updated_at = $2
	WHERE mentor_id = $1 AND current_mentees > 0`

	if _, err := db.ExecContext(ctx, q, mentorID, time.Now().UTC()); err != nil {
		return fmt.Errorf("releasing seat of mentor[%s]: %w", mentorID, err)
	}
	return nil
}
