package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/edumart/edumart/config"
	razorpay "github.com/razorpay/razorpay-go"
)

// ErrGatewayUnavailable is surfaced to the order-intent caller when the
// gateway cannot be reached within the configured timeout. The caller may
// retry; nothing was persisted on our side.
var ErrGatewayUnavailable = errors.New("payment gateway unavailable")

// Order is the gateway-side payment order. It is never persisted locally:
// the checkout UI consumes it once and the webhook echoes its notes back.
type Order struct {
	ID       string `json:"id"`
	Amount   int    `json:"amount"`
	Currency string `json:"currency"`
}

type OrderParams struct {
	Amount   int
	Currency string
	Receipt  string
	Notes    Notes
}

type Gateway interface {
	CreateOrder(ctx context.Context, p OrderParams) (Order, error)
}

// RazorpayGateway creates payment orders against the Razorpay API.
type RazorpayGateway struct {
	client  *razorpay.Client
	timeout time.Duration
}

func NewRazorpayGateway(cfg config.Gateway) *RazorpayGateway {
	return &RazorpayGateway{
		client:  razorpay.NewClient(cfg.KeyID, cfg.KeySecret),
		timeout: cfg.Timeout,
	}
}

func (g *RazorpayGateway) CreateOrder(ctx context.Context, p OrderParams) (Order, error) {
	data := map[string]interface{}{
		"amount":   p.Amount,
		"currency": p.Currency,
		"receipt":  p.Receipt,
		"notes":    p.Notes.toMap(),
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	type created struct {
		ord map[string]interface{}
		err error
	}
	ch := make(chan created, 1)

	// The SDK call is not context-aware, so the timeout is enforced around it.
	go func() {
		ord, err := g.client.Order.Create(data, nil)
		ch <- created{ord: ord, err: err}
	}()

	select {
	case <-ctx.Done():
		return Order{}, fmt.Errorf("creating gateway order: timed out: %w", ErrGatewayUnavailable)

	case res := <-ch:
		if res.err != nil {
			return Order{}, fmt.Errorf("creating gateway order: %v: %w", res.err, ErrGatewayUnavailable)
		}

		ord := Order{Amount: p.Amount, Currency: p.Currency}
		if id, ok := res.ord["id"].(string); ok {
			ord.ID = id
		}
		if amount, ok := res.ord["amount"].(float64); ok {
			ord.Amount = int(amount)
		}
		if currency, ok := res.ord["currency"].(string); ok {
			ord.Currency = currency
		}

		if ord.ID == "" {
			return Order{}, fmt.Errorf("gateway order carries no id: %w", ErrGatewayUnavailable)
		}
		return ord, nil
	}
}
