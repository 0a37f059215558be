package subscription

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/edumart/edumart/api/web"
	"github.com/edumart/edumart/api/weberr"
	"github.com/edumart/edumart/core/claims"
	"github.com/edumart/edumart/core/mentor"
	"github.com/edumart/edumart/database"
	"github.com/edumart/edumart/validate"
	"github.com/jmoiron/sqlx"
)

func HandleList(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		ss, err := FetchByUser(ctx, db, clm.UserID)
		if err != nil {
			return err
		}

		return web.Respond(ctx, w, ss, http.StatusOK)
	}
}

// HandleUpdateStatus moves a subscription along its lifecycle. Reaching a
// terminal state releases the mentor's seat, in the same transaction as the
// status change so the counter stays symmetric with the reservation.
func HandleUpdateStatus(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		id := web.Param(r, "id")
		if err := validate.CheckID(id); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusUnprocessableEntity)
		}

		var up StatusUp
		if err := web.Decode(w, r, &up); err != nil {
			return weberr.BadRequest(fmt.Errorf("unable to decode payload: %w", err))
		}

		if err := validate.Check(up); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusUnprocessableEntity)
		}

		s, err := Fetch(ctx, db, id)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return weberr.NotFound(err)
			}
			return err
		}

		if !claims.IsAdmin(ctx) {
			m, err := mentor.Fetch(ctx, db, s.MentorID)
			if err != nil {
				return fmt.Errorf("fetching mentor[%s]: %w", s.MentorID, err)
			}
			if m.UserID != clm.UserID {
				return weberr.NotAuthorized(errors.New("subscription belongs to another mentor"))
			}
		}

		if err := up.check(s.Status); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusUnprocessableEntity)
		}

		now := time.Now().UTC()

		var moved bool
		err = database.Transaction(db, func(tx sqlx.ExtContext) error {
			// The update is conditional on the status read above so a
			// concurrent writer cannot re-apply the same transition.
			ok, err := UpdateStatus(ctx, tx, s.ID, s.Status, up.Status, now)
			if err != nil || !ok {
				return err
			}
			moved = true

			// The seat is held through active and paused alike, so it is
			// released exactly once: on the move into a terminal state.
			if up.Status.Terminal() && !s.Status.Terminal() {
				if err := mentor.ReleaseSeat(ctx, tx, s.MentorID); err != nil {
					return err
				}
			}

			return nil
		})
		if err != nil {
			return fmt.Errorf("updating subscription[%s] status: %w", s.ID, err)
		}

		if !moved {
			err := errors.New("subscription status changed concurrently")
			return weberr.NewError(err, err.Error(), http.StatusConflict)
		}

		s.Status = up.Status
		s.UpdatedAt = now
		return web.Respond(ctx, w, s, http.StatusOK)
	}
}
