package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/edumart/edumart/api/web"
	"github.com/edumart/edumart/api/weberr"
	"github.com/edumart/edumart/core/claims"
	"github.com/edumart/edumart/core/user"
	"github.com/edumart/edumart/validate"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"golang.org/x/crypto/bcrypt"
)

func HandleSignup(db *sqlx.DB, session *scs.SessionManager) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		var us user.UserSignup
		if err := web.Decode(w, r, &us); err != nil {
			return weberr.BadRequest(fmt.Errorf("unable to decode payload: %w", err))
		}

		if err := validate.Check(us); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusUnprocessableEntity)
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(us.Password), bcrypt.DefaultCost)
		if err != nil {
			return fmt.Errorf("hashing password: %w", err)
		}

		now := time.Now().UTC()
		u := user.User{
			ID:           validate.GenerateID(),
			Name:         us.Name,
			Email:        us.Email,
			Role:         claims.RoleUser,
			PasswordHash: hash,
			CreatedAt:    now,
			UpdatedAt:    now,
		}

		if err := user.Create(ctx, db, u); err != nil {
			var pqErr *pq.Error
			if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
				return weberr.NewError(err, "email is already registered", http.StatusConflict)
			}
			return err
		}

		if err := login(ctx, session, u); err != nil {
			return err
		}

		return web.Respond(ctx, w, u, http.StatusCreated)
	}
}

func HandleLogin(db *sqlx.DB, session *scs.SessionManager) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		var ul user.UserLogin
		if err := web.Decode(w, r, &ul); err != nil {
			return weberr.BadRequest(fmt.Errorf("unable to decode payload: %w", err))
		}

		if err := validate.Check(ul); err != nil {
			return weberr.NewError(err, err.Error(), http.StatusUnprocessableEntity)
		}

		u, err := user.FetchByEmail(ctx, db, ul.Email)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return weberr.NotAuthorized(errors.New("unknown email"))
			}
			return err
		}

		if err := bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(ul.Password)); err != nil {
			return weberr.NotAuthorized(errors.New("password mismatch"))
		}

		if err := login(ctx, session, u); err != nil {
			return err
		}

		return web.Respond(ctx, w, u, http.StatusOK)
	}
}

func HandleLogout(session *scs.SessionManager) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		if err := session.Destroy(ctx); err != nil {
			return fmt.Errorf("destroying session: %w", err)
		}

		return web.Respond(ctx, w, nil, http.StatusNoContent)
	}
}

func login(ctx context.Context, session *scs.SessionManager, u user.User) error {
	if err := session.RenewToken(ctx); err != nil {
		return fmt.Errorf("renewing session token: %w", err)
	}

	session.Put(ctx, sessionUserID, u.ID)
	session.Put(ctx, sessionRole, u.Role)
	return nil
}
