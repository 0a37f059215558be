package test

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/edumart/edumart/core/course"
	"github.com/edumart/edumart/core/mentor"
	"github.com/edumart/edumart/core/payment"
	"github.com/edumart/edumart/core/purchase"
	"github.com/edumart/edumart/core/subscription"
	"github.com/google/go-cmp/cmp"
)

const (
	adminEmail = "admin@edumart.dev"
	userEmail  = "mentee@edumart.dev"
	otherEmail = "other@edumart.dev"
	testPass   = "s3cret-pass"
)

type paymentTest struct {
	*TestEnv
	adminID string
	userID  string
	otherID string
}

func newPaymentTest(t *testing.T, name string) *paymentTest {
	env, err := NewTestEnv(t, name)
	if err != nil {
		t.Fatalf("initializing test env: %v", err)
	}

	pt := &paymentTest{TestEnv: env}
	pt.adminID = env.Signup(t, "Admin", adminEmail, testPass, true)
	pt.userID = env.Signup(t, "Mentee", userEmail, testPass, false)
	pt.otherID = env.Signup(t, "Other", otherEmail, testPass, false)
	return pt
}

func (pt *paymentTest) createCourse(t *testing.T, price int, discountPrice int) course.Course {
	pt.Login(t, adminEmail, testPass)
	defer pt.Logout(t)

	body := map[string]interface{}{
		"name":          "Distributed Systems",
		"description":   "From logical clocks to consensus.",
		"imageUrl":      "https://img.edumart.dev/ds.png",
		"price":         price,
		"discountPrice": discountPrice,
	}

	var c course.Course
	pt.postJSON(t, "/courses", body, http.StatusCreated, &c)
	return c
}

func (pt *paymentTest) createMentor(t *testing.T, maxMentees int, planPrice int, durationDays int) mentor.Mentor {
	pt.Login(t, adminEmail, testPass)
	defer pt.Logout(t)

	body := map[string]interface{}{
		"userId":     pt.adminID,
		"name":       "Grace",
		"headline":   "Staff engineer",
		"maxMentees": maxMentees,
		"plans": []map[string]interface{}{
			{"title": "Monthly 1:1", "price": planPrice, "durationDays": durationDays},
		},
	}

	var m mentor.Mentor
	pt.postJSON(t, "/mentors", body, http.StatusCreated, &m)
	return m
}

func (pt *paymentTest) createOrder(t *testing.T, email string, body map[string]interface{}, wantStatus int) payment.Order {
	pt.Login(t, email, testPass)
	defer pt.Logout(t)

	var ord payment.Order
	out := interface{}(&ord)
	if wantStatus != http.StatusOK {
		out = nil
	}
	pt.postJSON(t, "/payment/order", body, wantStatus, out)
	return ord
}

func (pt *paymentTest) countRows(t *testing.T, query string, args ...interface{}) int {
	var n int
	if err := pt.DB.Get(&n, query, args...); err != nil {
		t.Fatalf("counting rows: %v", err)
	}
	return n
}

func (pt *paymentTest) seatCount(t *testing.T, mentorID string) int {
	var n int
	if err := pt.DB.Get(&n, `SELECT current_mentees FROM mentors WHERE mentor_id = $1`, mentorID); err != nil {
		t.Fatalf("reading seat count: %v", err)
	}
	return n
}

// TestCoursePurchase walks the whole course flow: the intent charges the
// discount price, the captured webhook creates exactly one purchase order,
// and a redelivery of the same payment changes nothing.
func TestCoursePurchase(t *testing.T) {
	pt := newPaymentTest(t, "course_purchase_test")

	c := pt.createCourse(t, 500, 400)

	ord := pt.createOrder(t, userEmail, map[string]interface{}{"productId": c.ID}, http.StatusOK)

	if ord.Amount != 400*100 {
		t.Fatalf("order amount: expected %d, got %d", 400*100, ord.Amount)
	}
	if ord.Currency != "INR" {
		t.Fatalf("order currency: expected INR, got %s", ord.Currency)
	}

	params := pt.Gateway.last(t)
	want := payment.Notes{User: pt.userID, Product: c.ID, Discount: 0}
	if diff := cmp.Diff(want, params.Notes); diff != "" {
		t.Fatalf("order notes mismatch (-want +got):\n%s", diff)
	}

	body := capturedEvent(t, "pay_course_1", params.Notes)
	if got := pt.deliver(t, body, sign(body, pt.WebhookSecret)); got != http.StatusOK {
		t.Fatalf("webhook status: expected 200, got %d", got)
	}

	po, err := purchase.FetchByPaymentID(context.Background(), pt.DB, "pay_course_1")
	if err != nil {
		t.Fatalf("fetching purchase order: %v", err)
	}
	if po.UserID != pt.userID || po.CourseID != c.ID || po.Discount != 0 {
		t.Fatalf("unexpected purchase order: %+v", po)
	}

	// Same payment id delivered again: the ledger short-circuits it.
	if got := pt.deliver(t, body, sign(body, pt.WebhookSecret)); got != http.StatusOK {
		t.Fatalf("duplicate webhook status: expected 200, got %d", got)
	}

	if n := pt.countRows(t, `SELECT count(*) FROM purchase_orders WHERE payment_id = $1`, "pay_course_1"); n != 1 {
		t.Fatalf("expected exactly 1 purchase order, found %d", n)
	}
}

// TestWebhookSignatureRejected checks that a body whose signature does not
// match its raw bytes is rejected outright and leaves no trace.
func TestWebhookSignatureRejected(t *testing.T) {
	pt := newPaymentTest(t, "webhook_signature_test")

	c := pt.createCourse(t, 100, 100)
	body := capturedEvent(t, "pay_forged_1", payment.Notes{User: pt.userID, Product: c.ID})

	if got := pt.deliver(t, body, sign(body, "some-other-secret")); got != http.StatusUnauthorized {
		t.Fatalf("forged webhook status: expected 401, got %d", got)
	}

	tampered := append([]byte(nil), body...)
	tampered[len(tampered)-2] ^= 0x01
	if got := pt.deliver(t, tampered, sign(body, pt.WebhookSecret)); got != http.StatusUnauthorized {
		t.Fatalf("tampered webhook status: expected 401, got %d", got)
	}

	if got := pt.deliver(t, body, ""); got != http.StatusUnauthorized {
		t.Fatalf("unsigned webhook status: expected 401, got %d", got)
	}

	if n := pt.countRows(t, `SELECT count(*) FROM payment_ledger`); n != 0 {
		t.Fatalf("rejected webhooks must not touch the ledger, found %d rows", n)
	}
}

// TestMentorshipEnrollment checks the happy path: plan snapshot, computed
// end date, seat reservation, and idempotent redelivery.
func TestMentorshipEnrollment(t *testing.T) {
	pt := newPaymentTest(t, "mentorship_enrollment_test")

	m := pt.createMentor(t, 2, 1500, 30)
	plan := m.Plans[0]

	ord := pt.createOrder(t, userEmail, map[string]interface{}{
		"productId": plan.ID,
		"mentorId":  m.ID,
	}, http.StatusOK)

	if ord.Amount != 1500*100 {
		t.Fatalf("order amount: expected %d, got %d", 1500*100, ord.Amount)
	}

	notes := pt.Gateway.last(t).Notes
	if notes.Mentor != m.ID {
		t.Fatalf("order notes must carry the mentor id, got %q", notes.Mentor)
	}

	body := capturedEvent(t, "pay_mentorship_1", notes)
	if got := pt.deliver(t, body, sign(body, pt.WebhookSecret)); got != http.StatusOK {
		t.Fatalf("webhook status: expected 200, got %d", got)
	}

	sub, err := subscription.FetchByPaymentID(context.Background(), pt.DB, "pay_mentorship_1")
	if err != nil {
		t.Fatalf("fetching subscription: %v", err)
	}

	if sub.Status != subscription.Active {
		t.Fatalf("subscription status: expected active, got %s", sub.Status)
	}
	if sub.PlanTitle != plan.Title || sub.PlanPrice != plan.Price || sub.PlanDurationDays != plan.DurationDays {
		t.Fatalf("plan snapshot mismatch: %+v", sub)
	}
	if got := sub.EndDate.Sub(sub.StartDate); got != 30*24*time.Hour {
		t.Fatalf("subscription span: expected 720h, got %s", got)
	}
	if n := pt.seatCount(t, m.ID); n != 1 {
		t.Fatalf("seat count after enrollment: expected 1, got %d", n)
	}

	if got := pt.deliver(t, body, sign(body, pt.WebhookSecret)); got != http.StatusOK {
		t.Fatalf("duplicate webhook status: expected 200, got %d", got)
	}

	if n := pt.countRows(t, `SELECT count(*) FROM subscriptions`); n != 1 {
		t.Fatalf("expected exactly 1 subscription, found %d", n)
	}
	if n := pt.seatCount(t, m.ID); n != 1 {
		t.Fatalf("seat count after duplicate delivery: expected 1, got %d", n)
	}
}

// TestCapacityBound races two different payments for a mentor's last seat.
// Exactly one may win, no matter how the deliveries interleave.
func TestCapacityBound(t *testing.T) {
	pt := newPaymentTest(t, "capacity_bound_test")

	m := pt.createMentor(t, 1, 1000, 30)
	plan := m.Plans[0]

	bodies := [][]byte{
		capturedEvent(t, "pay_seat_a", payment.Notes{User: pt.userID, Product: plan.ID, Mentor: m.ID}),
		capturedEvent(t, "pay_seat_b", payment.Notes{User: pt.otherID, Product: plan.ID, Mentor: m.ID}),
	}

	var wg sync.WaitGroup
	for _, body := range bodies {
		body := body
		wg.Add(1)
		go func() {
			defer wg.Done()
			if got := pt.deliver(t, body, sign(body, pt.WebhookSecret)); got != http.StatusOK {
				t.Errorf("concurrent webhook status: expected 200, got %d", got)
			}
		}()
	}
	wg.Wait()

	if n := pt.countRows(t, `SELECT count(*) FROM subscriptions WHERE status = 'active'`); n != 1 {
		t.Fatalf("expected exactly 1 active subscription, found %d", n)
	}
	if n := pt.seatCount(t, m.ID); n != 1 {
		t.Fatalf("seat count: expected 1, got %d", n)
	}
}

// TestPlanMismatch looks a plan up under the wrong mentor: stale or forged
// metadata must not create anything, while the webhook is still acknowledged.
func TestPlanMismatch(t *testing.T) {
	pt := newPaymentTest(t, "plan_mismatch_test")

	a := pt.createMentor(t, 5, 800, 30)
	b := pt.createMentor(t, 5, 900, 60)

	body := capturedEvent(t, "pay_mismatch_1", payment.Notes{
		User:    pt.userID,
		Product: a.Plans[0].ID,
		Mentor:  b.ID,
	})

	if got := pt.deliver(t, body, sign(body, pt.WebhookSecret)); got != http.StatusOK {
		t.Fatalf("webhook status: expected 200, got %d", got)
	}

	if n := pt.countRows(t, `SELECT count(*) FROM subscriptions`); n != 0 {
		t.Fatalf("expected no subscription, found %d", n)
	}
	if n := pt.seatCount(t, a.ID) + pt.seatCount(t, b.ID); n != 0 {
		t.Fatalf("no seat may be held, found %d", n)
	}
}

// TestRoutingDiscriminator: without a mentor note a capture always takes the
// course path, even when the product id happens to be a mentor id.
func TestRoutingDiscriminator(t *testing.T) {
	pt := newPaymentTest(t, "routing_discriminator_test")

	m := pt.createMentor(t, 5, 800, 30)

	body := capturedEvent(t, "pay_route_1", payment.Notes{
		User:    pt.userID,
		Product: m.ID,
	})

	if got := pt.deliver(t, body, sign(body, pt.WebhookSecret)); got != http.StatusOK {
		t.Fatalf("webhook status: expected 200, got %d", got)
	}

	po, err := purchase.FetchByPaymentID(context.Background(), pt.DB, "pay_route_1")
	if err != nil {
		t.Fatalf("the event must be fulfilled as a course purchase: %v", err)
	}
	if po.CourseID != m.ID {
		t.Fatalf("purchase must reference the product id as-is, got %q", po.CourseID)
	}

	if n := pt.countRows(t, `SELECT count(*) FROM subscriptions`); n != 0 {
		t.Fatalf("expected no subscription, found %d", n)
	}
	if n := pt.seatCount(t, m.ID); n != 0 {
		t.Fatalf("no seat may be held, found %d", n)
	}
}

// TestAlreadySubscribed: a second, distinct payment for the same mentor and
// mentee while a subscription is active must not create a second one.
func TestAlreadySubscribed(t *testing.T) {
	pt := newPaymentTest(t, "already_subscribed_test")

	m := pt.createMentor(t, 5, 800, 30)
	notes := payment.Notes{User: pt.userID, Product: m.Plans[0].ID, Mentor: m.ID}

	first := capturedEvent(t, "pay_again_1", notes)
	if got := pt.deliver(t, first, sign(first, pt.WebhookSecret)); got != http.StatusOK {
		t.Fatalf("webhook status: expected 200, got %d", got)
	}

	second := capturedEvent(t, "pay_again_2", notes)
	if got := pt.deliver(t, second, sign(second, pt.WebhookSecret)); got != http.StatusOK {
		t.Fatalf("webhook status: expected 200, got %d", got)
	}

	if n := pt.countRows(t, `SELECT count(*) FROM subscriptions`); n != 1 {
		t.Fatalf("expected exactly 1 subscription, found %d", n)
	}
	if n := pt.seatCount(t, m.ID); n != 1 {
		t.Fatalf("seat count: expected 1, got %d", n)
	}
}

// TestFailedPaymentIgnored: payment.failed and unknown events are
// acknowledged without any domain mutation.
func TestFailedPaymentIgnored(t *testing.T) {
	pt := newPaymentTest(t, "failed_payment_test")

	body := []byte(`{"entity":"event","event":"payment.failed","payload":{"payment":{"entity":{"id":"pay_failed_1","error_description":"card declined"}}}}`)
	if got := pt.deliver(t, body, sign(body, pt.WebhookSecret)); got != http.StatusOK {
		t.Fatalf("failed-payment webhook status: expected 200, got %d", got)
	}

	body = []byte(`{"entity":"event","event":"refund.processed","payload":{}}`)
	if got := pt.deliver(t, body, sign(body, pt.WebhookSecret)); got != http.StatusOK {
		t.Fatalf("unknown-event webhook status: expected 200, got %d", got)
	}

	if n := pt.countRows(t, `SELECT count(*) FROM payment_ledger`); n != 0 {
		t.Fatalf("non-captured events must not touch the ledger, found %d rows", n)
	}
}

// TestOrderIntentErrors covers the two synchronous failure modes of the
// order-intent endpoint.
func TestOrderIntentErrors(t *testing.T) {
	pt := newPaymentTest(t, "order_intent_errors_test")

	m := pt.createMentor(t, 5, 800, 30)

	// Unknown course id.
	pt.createOrder(t, userEmail, map[string]interface{}{
		"productId": "3f0f1a34-5e7a-4a0a-9c8e-6f9b1d2a3c4d",
	}, http.StatusBadRequest)

	// Plan looked up under the wrong mentor: the pair must match.
	other := pt.createMentor(t, 5, 900, 60)
	pt.createOrder(t, userEmail, map[string]interface{}{
		"productId": m.Plans[0].ID,
		"mentorId":  other.ID,
	}, http.StatusBadRequest)

	// Gateway down surfaces as 502 and retries are left to the caller.
	pt.Gateway.fail(payment.ErrGatewayUnavailable)
	pt.createOrder(t, userEmail, map[string]interface{}{
		"productId": m.Plans[0].ID,
		"mentorId":  m.ID,
	}, http.StatusBadGateway)
	pt.Gateway.fail(nil)
}
