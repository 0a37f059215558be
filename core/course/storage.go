package course

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

func Create(ctx context.Context, db sqlx.ExtContext, c Course) error {
	const q = `
	INSERT INTO courses (course_id, name, description, image_url, price, discount_price, created_at, updated_at)
	VALUES (:course_id, :name, :description, :image_url, :price, :discount_price, :created_at, :updated_at)`

	if _, err := sqlx.NamedExecContext(ctx, db, q, c); err != nil {
		return fmt.Errorf("inserting course: %w", err)
	}
	return nil
}

func Update(ctx context.Context, db sqlx.ExtContext, c Course) error {
	const q = `
	UPDATE courses SET
		name = :name,
		description = :description,
		image_url = :image_url,
		price = :price,
		discount_price = :discount_price,
		updated_at = :updated_at,
		version = version + 1
	WHERE course_id = :course_id AND version = :version`

	res, err := sqlx.NamedExecContext(ctx, db, q, c)
	if err != nil {
		return fmt.Errorf("updating course[%s]: %w", c.ID, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking updated rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("updating course[%s]: stale version %d", c.ID, c.Version)
	}
	return nil
}

func Fetch(ctx context.Context, db sqlx.ExtContext, id string) (Course, error) {
	const q = `SELECT * FROM courses WHERE course_id = $1`

	var c Course
	if err := sqlx.GetContext(ctx, db, &c, q, id); err != nil {
		return Course{}, fmt.Errorf("selecting course[%s]: %w", id, err)
	}
	return c, nil
}

func FetchAll(ctx context.Context, db sqlx.ExtContext) ([]Course, error) {
	const q = `SELECT * FROM courses ORDER BY created_at DESC`

	cs := []Course{}
	if err := sqlx.SelectContext(ctx, db, &cs, q); err != nil {
		return nil, fmt.Errorf("selecting courses: %w", err)
	}
	return cs, nil
}
