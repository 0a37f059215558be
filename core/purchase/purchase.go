package purchase

import "time"

// Order is the persisted record of a paid course purchase. PaymentID is
// unique, so at most one order can ever exist per gateway payment.
type Order struct {
	ID        string    `json:"id" db:"order_id"`
	UserID    string    `json:"userId" db:"user_id"`
	CourseID  string    `json:"courseId" db:"course_id"`
	PaymentID string    `json:"paymentId" db:"payment_id"`
	Discount  int       `json:"discount" db:"discount"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}
