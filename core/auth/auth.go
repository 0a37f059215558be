package auth

import (
	"context"
	"errors"
	"net/http"

	"github.com/alexedwards/scs/v2"
	"github.com/edumart/edumart/api/web"
	"github.com/edumart/edumart/api/weberr"
	"github.com/edumart/edumart/core/claims"
)

const (
	sessionUserID = "user_id"
	sessionRole   = "role"
)

// LoadAndSave adapts the scs middleware to the web.Handler chain and, when a
// session identifies a user, injects the claims into the context.
func LoadAndSave(session *scs.SessionManager) web.Middleware {
	m := func(handler web.Handler) web.Handler {
		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
			var err error

			sh := session.LoadAndSave(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				ctx := r.Context()

				if uid := session.GetString(ctx, sessionUserID); uid != "" {
					ctx = claims.Set(ctx, claims.Claims{
						UserID: uid,
						Role:   session.GetString(ctx, sessionRole),
					})
				}

				err = handler(ctx, w, r)
			}))

			sh.ServeHTTP(w, r)
			return err
		}
		return h
	}
	return m
}

// Authenticate rejects requests whose session carries no user identity.
func Authenticate(session *scs.SessionManager) web.Middleware {
	m := func(handler web.Handler) web.Handler {
		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
			if _, err := claims.Get(ctx); err != nil {
				return weberr.NotAuthorized(errors.New("user not authenticated"))
			}

			return handler(ctx, w, r)
		}
		return h
	}
	return m
}

// Admin allows only authenticated users holding the admin role.
func Admin(session *scs.SessionManager) web.Middleware {
	m := func(handler web.Handler) web.Handler {
		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
			if !claims.IsAdmin(ctx) {
				return weberr.NotAuthorized(errors.New("user is not an admin"))
			}

			return handler(ctx, w, r)
		}
		return h
	}
	return m
}
