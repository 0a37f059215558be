package test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/edumart/edumart/core/payment"
	"github.com/edumart/edumart/core/subscription"
)

// TestSubscriptionLifecycle enrolls a mentee, then walks the subscription to
// a terminal state and checks the seat is released exactly once.
func TestSubscriptionLifecycle(t *testing.T) {
	pt := newPaymentTest(t, "subscription_lifecycle_test")

	m := pt.createMentor(t, 3, 1200, 30)
	notes := payment.Notes{User: pt.userID, Product: m.Plans[0].ID, Mentor: m.ID}

	body := capturedEvent(t, "pay_lifecycle_1", notes)
	if got := pt.deliver(t, body, sign(body, pt.WebhookSecret)); got != http.StatusOK {
		t.Fatalf("webhook status: expected 200, got %d", got)
	}

	var subID string
	if err := pt.DB.Get(&subID, `SELECT subscription_id FROM subscriptions WHERE payment_id = $1`, "pay_lifecycle_1"); err != nil {
		t.Fatalf("reading subscription id: %v", err)
	}

	if n := pt.seatCount(t, m.ID); n != 1 {
		t.Fatalf("seat count after enrollment: expected 1, got %d", n)
	}

	// A pause holds the seat.
	pt.updateStatus(t, subID, subscription.Paused, http.StatusOK)
	if n := pt.seatCount(t, m.ID); n != 1 {
		t.Fatalf("seat count while paused: expected 1, got %d", n)
	}

	// Terminating from paused releases it.
	pt.updateStatus(t, subID, subscription.Terminated, http.StatusOK)
	if n := pt.seatCount(t, m.ID); n != 0 {
		t.Fatalf("seat count after termination: expected 0, got %d", n)
	}

	// Terminal states accept no further transitions.
	pt.updateStatus(t, subID, subscription.Active, http.StatusUnprocessableEntity)
	if n := pt.seatCount(t, m.ID); n != 0 {
		t.Fatalf("seat count must stay 0, got %d", n)
	}
}

// TestConcurrentTermination races two terminate requests for the same
// subscription. Only one may win, so the seat is given back exactly once no
// matter how the requests interleave.
func TestConcurrentTermination(t *testing.T) {
	pt := newPaymentTest(t, "concurrent_termination_test")

	m := pt.createMentor(t, 2, 1000, 30)

	for i, menteeID := range []string{pt.userID, pt.otherID} {
		notes := payment.Notes{User: menteeID, Product: m.Plans[0].ID, Mentor: m.ID}
		body := capturedEvent(t, fmt.Sprintf("pay_race_%d", i), notes)
		if got := pt.deliver(t, body, sign(body, pt.WebhookSecret)); got != http.StatusOK {
			t.Fatalf("webhook status: expected 200, got %d", got)
		}
	}

	if n := pt.seatCount(t, m.ID); n != 2 {
		t.Fatalf("seat count after enrollments: expected 2, got %d", n)
	}

	var subID string
	if err := pt.DB.Get(&subID, `SELECT subscription_id FROM subscriptions WHERE payment_id = $1`, "pay_race_0"); err != nil {
		t.Fatalf("reading subscription id: %v", err)
	}

	pt.Login(t, adminEmail, testPass)
	defer pt.Logout(t)

	codes := make(chan int, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			codes <- pt.putStatus(t, subID, subscription.Terminated, nil)
		}()
	}
	wg.Wait()
	close(codes)

	var won int
	for code := range codes {
		if code == http.StatusOK {
			won++
		}
	}
	if won != 1 {
		t.Fatalf("exactly one terminate may succeed, got %d", won)
	}

	// One reservation released, the other mentee's seat still held.
	if n := pt.seatCount(t, m.ID); n != 1 {
		t.Fatalf("seat count after double terminate: expected 1, got %d", n)
	}

	var status subscription.Status
	if err := pt.DB.Get(&status, `SELECT status FROM subscriptions WHERE subscription_id = $1`, subID); err != nil {
		t.Fatalf("reading subscription status: %v", err)
	}
	if status != subscription.Terminated {
		t.Fatalf("subscription status: expected terminated, got %s", status)
	}
}

func (pt *paymentTest) updateStatus(t *testing.T, subID string, status subscription.Status, wantStatus int) {
	pt.Login(t, adminEmail, testPass)
	defer pt.Logout(t)

	var got subscription.Subscription
	if code := pt.putStatus(t, subID, status, &got); code != wantStatus {
		t.Fatalf("PUT status %s: expected %d, got %d", status, wantStatus, code)
	}

	if wantStatus != http.StatusOK {
		return
	}

	// The response must reflect the write, not the pre-update snapshot.
	var stored subscription.Subscription
	if err := pt.DB.Get(&stored, `SELECT * FROM subscriptions WHERE subscription_id = $1`, subID); err != nil {
		t.Fatalf("reading subscription back: %v", err)
	}
	if got.Status != status || stored.Status != status {
		t.Fatalf("status after update: response %s, stored %s, expected %s", got.Status, stored.Status, status)
	}
	if d := stored.UpdatedAt.Sub(got.UpdatedAt); d < -time.Millisecond || d > time.Millisecond {
		t.Fatalf("response updatedAt %s does not match stored %s", got.UpdatedAt, stored.UpdatedAt)
	}
}

// putStatus sends the status update on the current session and returns the
// response code, decoding the body into out when given and the call succeeds.
func (pt *paymentTest) putStatus(t *testing.T, subID string, status subscription.Status, out *subscription.Subscription) int {
	b, err := json.Marshal(map[string]string{"status": string(status)})
	if err != nil {
		t.Fatal(err)
	}

	r, err := http.NewRequest(http.MethodPut, pt.URL+"/subscriptions/"+subID+"/status", bytes.NewReader(b))
	if err != nil {
		t.Fatal(err)
	}
	r.Header.Set("Content-Type", "application/json")

	w, err := pt.Client().Do(r)
	if err != nil {
		t.Fatal(err)
	}
	defer w.Body.Close()

	if out != nil && w.StatusCode == http.StatusOK {
		if err := json.NewDecoder(w.Body).Decode(out); err != nil {
			t.Fatalf("decoding status response: %v", err)
		}
		return w.StatusCode
	}

	io.Copy(io.Discard, w.Body)
	return w.StatusCode
}
