package api

import (
	"context"
	"net/http"

	"github.com/alexedwards/scs/v2"
	"github.com/edumart/edumart/api/background"
	"github.com/edumart/edumart/api/middleware"
	"github.com/edumart/edumart/api/web"
	"github.com/edumart/edumart/core/auth"
	"github.com/edumart/edumart/core/course"
	"github.com/edumart/edumart/core/mentor"
	"github.com/edumart/edumart/core/payment"
	"github.com/edumart/edumart/core/purchase"
	"github.com/edumart/edumart/core/subscription"
	"github.com/edumart/edumart/core/user"
	"github.com/edumart/edumart/email"
	"github.com/edumart/edumart/rate"
	"github.com/gorilla/mux"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
)

type APIConfig struct {
	CorsOrigin    string
	Log           logrus.FieldLogger
	DB            *sqlx.DB
	Session       *scs.SessionManager
	Background    *background.Background
	Mailer        email.Mailer
	Gateway       payment.Gateway
	WebhookSecret string
	Limiter       *rate.Limiter
}

type api struct {
	*mux.Router
	mw  []web.Middleware
	log logrus.FieldLogger
}

func APIMux(cfg APIConfig) http.Handler {
	a := &api{
		Router: mux.NewRouter(),
		log:    cfg.Log,
	}

	a.mw = append(a.mw, auth.LoadAndSave(cfg.Session))
	a.mw = append(a.mw, middleware.RequestID())
	a.mw = append(a.mw, middleware.Logger(cfg.Log))
	a.mw = append(a.mw, middleware.Errors(cfg.Log))
	a.mw = append(a.mw, middleware.Panics())

	if cfg.CorsOrigin != "" {
		a.mw = append(a.mw, middleware.Cors(cfg.CorsOrigin))

		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
			w.WriteHeader(http.StatusNoContent)
			return nil
		}

		a.Handle(http.MethodOptions, "/{path:.*}", h)
	}

	authen := auth.Authenticate(cfg.Session)
	admin := auth.Admin(cfg.Session)
	limited := middleware.RateLimit(cfg.Limiter)

	a.Handle(http.MethodPost, "/auth/signup", auth.HandleSignup(cfg.DB, cfg.Session))
	a.Handle(http.MethodPost, "/auth/login", auth.HandleLogin(cfg.DB, cfg.Session), limited)
	a.Handle(http.MethodPost, "/auth/logout", auth.HandleLogout(cfg.Session))

	a.Handle(http.MethodGet, "/users/current", user.HandleShowCurrent(cfg.DB), authen)

	a.Handle(http.MethodGet, "/courses/{id}", course.HandleShow(cfg.DB))
	a.Handle(http.MethodGet, "/courses", course.HandleList(cfg.DB))
	a.Handle(http.MethodPost, "/courses", course.HandleCreate(cfg.DB), admin)
	a.Handle(http.MethodPut, "/courses/{id}", course.HandleUpdate(cfg.DB), admin)

	a.Handle(http.MethodGet, "/mentors/{id}", mentor.HandleShow(cfg.DB))
	a.Handle(http.MethodGet, "/mentors", mentor.HandleList(cfg.DB))
	a.Handle(http.MethodPost, "/mentors", mentor.HandleCreate(cfg.DB), admin)

	a.Handle(http.MethodGet, "/purchases", purchase.HandleList(cfg.DB), authen)

	a.Handle(http.MethodGet, "/subscriptions", subscription.HandleList(cfg.DB), authen)
	a.Handle(http.MethodPut, "/subscriptions/{id}/status", subscription.HandleUpdateStatus(cfg.DB), authen)

	a.Handle(http.MethodPost, "/payment/order", payment.HandleCreateOrder(cfg.DB, cfg.Gateway), authen, limited)
	a.Handle(http.MethodPost, "/payment/webhook", payment.HandleWebhook(cfg.DB, cfg.WebhookSecret, cfg.Log, cfg.Background, cfg.Mailer))

	return a.Router
}

func (a *api) Handle(method string, path string, handler web.Handler, mw ...web.Middleware) {

	handler = web.WrapMiddleware(mw, handler)

	handler = web.WrapMiddleware(a.mw, handler)

	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {

		ctx := r.Context()

		if err := handler(ctx, w, r); err != nil {

			a.log.WithFields(logrus.Fields{
				"req_id":  middleware.ContextRequestID(ctx),
				"message": err,
			}).Error("ERROR")
		}
	})

	a.Router.Handle(path, h).Methods(method)
}
