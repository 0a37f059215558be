package course

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/edumart/edumart/api/web"
	"github.com/edumart/edumart/api/weberr"
	"github.com/edumart/edumart/validate"
	"github.com/jmoiron/sqlx"
)

func HandleList(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		cs, err := FetchAll(ctx, db)
		if err != nil {
			return err
		}

		return web.Respond(ctx, w, cs, http.StatusOK)
	}
}

func HandleShow(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		id := web.Param(r, "id")
		if err := validate.CheckID(id); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusUnprocessableEntity)
		}

		c, err := Fetch(ctx, db, id)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return weberr.NotFound(err)
			}
			return err
		}

		return web.Respond(ctx, w, c, http.StatusOK)
	}
}

func HandleCreate(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		var cn CourseNew
		if err := web.Decode(w, r, &cn); err != nil {
			return weberr.BadRequest(fmt.Errorf("unable to decode payload: %w", err))
		}

		if err := validate.Check(cn); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusUnprocessableEntity)
		}

		now := time.Now().UTC()
		c := Course{
			ID:            validate.GenerateID(),
			Name:          cn.Name,
			Description:   cn.Description,
			ImageURL:      cn.ImageURL,
			Price:         cn.Price,
			DiscountPrice: cn.DiscountPrice,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if c.DiscountPrice == 0 {
			c.DiscountPrice = c.Price
		}

		if err := Create(ctx, db, c); err != nil {
			return err
		}

		return web.Respond(ctx, w, c, http.StatusCreated)
	}
}

func HandleUpdate(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		id := web.Param(r, "id")
		if err := validate.CheckID(id); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusUnprocessableEntity)
		}

		var cu CourseUp
		if err := web.Decode(w, r, &cu); err != nil {
			return weberr.BadRequest(fmt.Errorf("unable to decode payload: %w", err))
		}

		if err := validate.Check(cu); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusUnprocessableEntity)
		}

		c, err := Fetch(ctx, db, id)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return weberr.NotFound(err)
			}
			return err
		}

		if cu.Name != nil {
			c.Name = *cu.Name
		}
		if cu.Description != nil {
			c.Description = *cu.Description
		}
		if cu.ImageURL != nil {
			c.ImageURL = *cu.ImageURL
		}
		if cu.Price != nil {
			c.Price = *cu.Price
		}
		if cu.DiscountPrice != nil {
			c.DiscountPrice = *cu.DiscountPrice
		}
		c.UpdatedAt = time.Now().UTC()

		if err := Update(ctx, db, c); err != nil {
			return err
		}

		return web.Respond(ctx, w, c, http.StatusOK)
	}
}
