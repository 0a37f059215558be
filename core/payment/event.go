package payment

// The gateway delivers webhook events wrapped in this envelope. Deliveries
// are at-least-once and unordered, so nothing here may be trusted to arrive
// exactly once or exactly when the payment happened.

const (
	EventPaymentCaptured = "payment.captured"
	EventPaymentFailed   = "payment.failed"
)

type Event struct {
	Entity    string  `json:"entity"`
	Event     string  `json:"event"`
	Payload   Payload `json:"payload"`
	CreatedAt int64   `json:"created_at"`
}

type Payload struct {
	Payment PaymentWrap `json:"payment"`
}

type PaymentWrap struct {
	Entity PaymentEntity `json:"entity"`
}

type PaymentEntity struct {
	ID               string `json:"id"`
	OrderID          string `json:"order_id"`
	Amount           int    `json:"amount"`
	Currency         string `json:"currency"`
	Status           string `json:"status"`
	ErrorDescription string `json:"error_description"`
	Notes            Notes  `json:"notes"`
}

// Notes is the metadata bag attached to the gateway order at intent time and
// echoed back inside every webhook for it. It is the only state carried
// across the gateway round-trip: fulfillment must be able to replay from it
// alone. A non-empty Mentor is what routes a capture to mentorship
// fulfillment.
type Notes struct {
	User     string `json:"user" validate:"required"`
	Product  string `json:"product" validate:"required"`
	Mentor   string `json:"mentor,omitempty"`
	Discount int    `json:"discount" validate:"gte=0"`
}

func (n Notes) toMap() map[string]interface{} {
	m := map[string]interface{}{
		"user":     n.User,
		"product":  n.Product,
		"discount": n.Discount,
	}
	if n.Mentor != "" {
		m["mentor"] = n.Mentor
	}
	return m
}
