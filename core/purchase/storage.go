package purchase

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

func Create(ctx context.Context, db sqlx.ExtContext, o Order) error {
	const q = `
	INSERT INTO purchase_orders (order_id, user_id, course_id, payment_id, discount, created_at)
	VALUES (:order_id, :user_id, :course_id, :payment_id, :discount, :created_at)`

	if _, err := sqlx.NamedExecContext(ctx, db, q, o); err != nil {
		return fmt.Errorf("inserting purchase order: %w", err)
	}
	return nil
}

func FetchByPaymentID(ctx context.Context, db sqlx.ExtContext, paymentID string) (Order, error) {
	const q = `SELECT * FROM purchase_orders WHERE payment_id = $1`

	var o Order
	if err := sqlx.GetContext(ctx, db, &o, q, paymentID); err != nil {
		return Order{}, fmt.Errorf("selecting purchase order bound to payment[%s]: %w", paymentID, err)
	}
	return o, nil
}

func FetchByUser(ctx context.Context, db sqlx.ExtContext, userID string) ([]Order, error) {
	const q = `SELECT * FROM purchase_orders WHERE user_id = $1 ORDER BY created_at DESC`

	os := []Order{}
	if err := sqlx.SelectContext(ctx, db, &os, q, userID); err != nil {
		return nil, fmt.Errorf("selecting purchase orders of user[%s]: %w", userID, err)
	}
	return os, nil
}
