package user

import (
	"context"
	"database/sql"
	"errors"
	"net/http"

	"github.com/edumart/edumart/api/web"
	"github.com/edumart/edumart/api/weberr"
	"github.com/edumart/edumart/core/claims"
	"github.com/jmoiron/sqlx"
)

func HandleShowCurrent(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		u, err := Fetch(ctx, db, clm.UserID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return weberr.NotFound(err)
			}
			return err
		}

		return web.Respond(ctx, w, u, http.StatusOK)
	}
}
