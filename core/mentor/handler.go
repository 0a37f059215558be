package mentor

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/edumart/edumart/api/web"
	"github.com/edumart/edumart/api/weberr"
	"github.com/edumart/edumart/database"
	"github.com/edumart/edumart/validate"
	"github.com/jmoiron/sqlx"
)

func HandleList(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		ms, err := FetchAll(ctx, db)
		if err != nil {
			return err
		}

		return web.Respond(ctx, w, ms, http.StatusOK)
	}
}

func HandleShow(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		id := web.Param(r, "id")
		if err := validate.CheckID(id); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusUnprocessableEntity)
		}

		m, err := Fetch(ctx, db, id)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return weberr.NotFound(err)
			}
			return err
		}

		return web.Respond(ctx, w, m, http.StatusOK)
	}
}

func HandleCreate(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		var mn MentorNew
		if err := web.Decode(w, r, &mn); err != nil {
			return weberr.BadRequest(fmt.Errorf("unable to decode payload: %w", err))
		}

		if err := validate.Check(mn); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusUnprocessableEntity)
		}

		now := time.Now().UTC()
		m := Mentor{
			ID:         validate.GenerateID(),
			UserID:     mn.UserID,
			Name:       mn.Name,
			Headline:   mn.Headline,
			MaxMentees: mn.MaxMentees,
			CreatedAt:  now,
			UpdatedAt:  now,
		}

		for _, pn := range mn.Plans {
			m.Plans = append(m.Plans, Plan{
				ID:           validate.GenerateID(),
				MentorID:     m.ID,
				Title:        pn.Title,
				Price:        pn.Price,
				DurationDays: pn.DurationDays,
				CreatedAt:    now,
			})
		}

		err := database.Transaction(db, func(tx sqlx.ExtContext) error {
			if err := Create(ctx, tx, m); err != nil {
				return err
			}

			for _, p := range m.Plans {
				if err := CreatePlan(ctx, tx, p); err != nil {
					return err
				}
			}

			return nil
		})
		if err != nil {
			return fmt.Errorf("creating mentor with plans: %w", err)
		}

		return web.Respond(ctx, w, m, http.StatusCreated)
	}
}
