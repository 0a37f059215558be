package payment

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/edumart/edumart/api/background"
	"github.com/edumart/edumart/api/web"
	"github.com/edumart/edumart/api/weberr"
	"github.com/edumart/edumart/core/claims"
	"github.com/edumart/edumart/core/course"
	"github.com/edumart/edumart/core/mentor"
	"github.com/edumart/edumart/core/user"
	"github.com/edumart/edumart/email"
	"github.com/edumart/edumart/random"
	"github.com/edumart/edumart/validate"
	"github.com/jmoiron/sqlx"
	"github.com/razorpay/razorpay-go/utils"
	"github.com/sirupsen/logrus"
)

const SignatureHeader = "X-Razorpay-Signature"

// OrderIntent asks for a gateway order for one product: a course on its
// own, or a plan when mentorId is set (productId is then the plan id).
type OrderIntent struct {
	ProductID string `json:"productId" validate:"required,uuid"`
	MentorID  string `json:"mentorId" validate:"omitempty,uuid"`
	Discount  int    `json:"discount" validate:"gte=0"`
}

// HandleCreateOrder resolves the product's price and creates the gateway
// order whose notes carry everything fulfillment will need later. No local
// state is written.
func HandleCreateOrder(db *sqlx.DB, gw Gateway) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		var oi OrderIntent
		if err := web.Decode(w, r, &oi); err != nil {
			return weberr.BadRequest(fmt.Errorf("unable to decode payload: %w", err))
		}

		if err := validate.Check(oi); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusUnprocessableEntity)
		}

		notes := Notes{
			User:     clm.UserID,
			Product:  oi.ProductID,
			Discount: oi.Discount,
		}

		var price int
		if oi.MentorID != "" {
			plan, err := mentor.FetchPlan(ctx, db, oi.MentorID, oi.ProductID)
			if err != nil {
				if errors.Is(err, sql.ErrNoRows) {
					return weberr.NewError(err, "product not found", http.StatusBadRequest)
				}
				return err
			}
			price = plan.Price
			notes.Mentor = oi.MentorID
		} else {
			c, err := course.Fetch(ctx, db, oi.ProductID)
			if err != nil {
				if errors.Is(err, sql.ErrNoRows) {
					return weberr.NewError(err, "product not found", http.StatusBadRequest)
				}
				return err
			}
			price = c.DiscountPrice
		}

		ord, err := gw.CreateOrder(ctx, OrderParams{
			Amount:   price * 100, // the gateway wants the smallest currency unit
			Currency: "INR",
			Receipt:  "rcpt_" + random.String(16),
			Notes:    notes,
		})
		if err != nil {
			if errors.Is(err, ErrGatewayUnavailable) {
				return weberr.NewError(err, "payment gateway unavailable", http.StatusBadGateway)
			}
			return err
		}

		return web.Respond(ctx, w, ord, http.StatusOK)
	}
}

type webhookAck struct {
	Success bool `json:"success"`
}

// HandleWebhook authenticates a gateway notification and routes it. Only a
// signature mismatch is rejected; once authenticated, every routed outcome
// is acknowledged with a 200 so the gateway does not retry failures that
// redelivery cannot fix. Fulfillment problems go to the log, keyed by event
// and payment id, for out-of-band replay.
func HandleWebhook(db *sqlx.DB, secret string, log logrus.FieldLogger, bg *background.Background, mailer email.Mailer) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		b, err := io.ReadAll(r.Body)
		if err != nil {
			return weberr.BadRequest(fmt.Errorf("cannot read the request body: %w", err))
		}

		// The HMAC covers the exact raw bytes: verify before any parsing,
		// and never re-serialize what is being verified.
		sig := r.Header.Get(SignatureHeader)
		if sig == "" || !verifySignature(b, sig, secret) {
			return weberr.NotAuthorized(errors.New("webhook signature mismatch"))
		}

		var evt Event
		if err := json.Unmarshal(b, &evt); err != nil {
			log.WithFields(logrus.Fields{"message": err}).Error("cannot decode webhook envelope")
			return web.Respond(ctx, w, webhookAck{Success: true}, http.StatusOK)
		}

		route(ctx, db, log, bg, mailer, evt)

		return web.Respond(ctx, w, webhookAck{Success: true}, http.StatusOK)
	}
}

// route dispatches an authenticated event. A captured payment goes to
// mentorship fulfillment when its notes name a mentor, to course fulfillment
// otherwise; failed payments are recorded; everything else is dropped, since
// the gateway emits many event kinds this system does not act on.
func route(ctx context.Context, db *sqlx.DB, log logrus.FieldLogger, bg *background.Background, mailer email.Mailer, evt Event) {
	pay := evt.Payload.Payment.Entity
	log = log.WithFields(logrus.Fields{
		"event":      evt.Event,
		"payment_id": pay.ID,
	})

	switch evt.Event {
	case EventPaymentCaptured:
		if pay.Notes.Mentor != "" {
			sub, fresh, err := FulfillMentorship(ctx, db, evt)
			if err != nil {
				log.WithFields(logrus.Fields{"message": err, "mentor_id": pay.Notes.Mentor}).Error("mentorship fulfillment failed")
				return
			}
			if fresh {
				body := fmt.Sprintf("Your mentorship plan %q is active until %s.", sub.PlanTitle, sub.EndDate.Format("January 2, 2006"))
				notify(ctx, db, log, bg, mailer, pay.Notes.User, "Mentorship enrollment confirmed", body)
			}

		} else {
			ord, fresh, err := FulfillCourse(ctx, db, evt)
			if err != nil {
				log.WithFields(logrus.Fields{"message": err, "course_id": pay.Notes.Product}).Error("course fulfillment failed")
				return
			}
			if fresh {
				body := fmt.Sprintf("Your course purchase is confirmed. Order reference: %s.", ord.ID)
				notify(ctx, db, log, bg, mailer, pay.Notes.User, "Purchase confirmed", body)
			}
		}

	case EventPaymentFailed:
		log.WithField("description", pay.ErrorDescription).Warn("payment failed")

	default:
		log.Debug("ignoring event")
	}
}

// notify sends the confirmation email off the request path; the webhook
// response never waits on SMTP.
func notify(ctx context.Context, db *sqlx.DB, log logrus.FieldLogger, bg *background.Background, mailer email.Mailer, userID string, subject string, body string) {
	u, err := user.Fetch(ctx, db, userID)
	if err != nil {
		log.WithFields(logrus.Fields{"message": err, "user_id": userID}).Warn("cannot resolve user for notification")
		return
	}

	bg.Add(func() error {
		return mailer.Send(u.Email, subject, body)
	})
}

func verifySignature(body []byte, signature string, secret string) bool {
	return utils.VerifyWebhookSignature(string(body), signature, secret)
}
