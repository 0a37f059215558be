package payment

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// Ledger kinds, one per fulfillment processor.
const (
	KindCourse     = "course"
	KindMentorship = "mentorship"
)

type LedgerEntry struct {
	PaymentID string    `db:"payment_id"`
	Kind      string    `db:"kind"`
	CreatedAt time.Time `db:"created_at"`
}

// RecordOnce claims the (paymentID, kind) pair with a single insert-if-absent
// statement and reports whether this caller got there first. The gateway may
// deliver the same notification to two handler instances at once; a
// read-then-write check would let both through, the atomic insert lets
// exactly one through. A concurrent duplicate blocks on the uncommitted row
// and observes the conflict once the winner commits.
func RecordOnce(ctx context.Context, db sqlx.ExtContext, paymentID string, kind string) (bool, error) {
	const q = `
	INSERT INTO payment_ledger (payment_id, kind, created_at)
	VALUES ($1, $2, $3)
	ON CONFLICT (payment_id, kind) DO NOTHING`

	res, err := db.ExecContext(ctx, q, paymentID, kind, time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("recording payment[%s] in ledger: %w", paymentID, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("checking ledger rows: %w", err)
	}
	return n == 1, nil
}
