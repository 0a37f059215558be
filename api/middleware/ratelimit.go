package middleware

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/edumart/edumart/api/web"
	"github.com/edumart/edumart/api/weberr"
	"github.com/edumart/edumart/rate"
)

// RateLimit rejects clients exceeding the limiter's budget, keyed by the
// remote host address.
func RateLimit(lim *rate.Limiter) web.Middleware {
	m := func(handler web.Handler) web.Handler {
		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {

			host, _, err := net.SplitHostPort(r.RemoteAddr)
			if err != nil {
				host = r.RemoteAddr
			}

			if !lim.Allow(host) {
				err := errors.New("rate limit exceeded")
				return weberr.NewError(err, err.Error(), http.StatusTooManyRequests)
			}

			return handler(ctx, w, r)
		}
		return h
	}
	return m
}
