package purchase

import (
	"context"
	"errors"
	"net/http"

	"github.com/edumart/edumart/api/web"
	"github.com/edumart/edumart/api/weberr"
	"github.com/edumart/edumart/core/claims"
	"github.com/jmoiron/sqlx"
)

func HandleList(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		os, err := FetchByUser(ctx, db, clm.UserID)
		if err != nil {
			return err
		}

		return web.Respond(ctx, w, os, http.StatusOK)
	}
}
