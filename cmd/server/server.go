package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/ardanlabs/conf/v3"
	"github.com/edumart/edumart/api"
	"github.com/edumart/edumart/api/background"
	"github.com/edumart/edumart/config"
	"github.com/edumart/edumart/core/payment"
	"github.com/edumart/edumart/database"
	"github.com/edumart/edumart/email"
	"github.com/edumart/edumart/rate"
	"github.com/sirupsen/logrus"
)

func main() {
	log := logrus.New()
	log.SetOutput(os.Stdout)

	if err := Run(log); err != nil {
		log.Error(err)
		os.Exit(1)
	}
}

func Run(logger *logrus.Logger) error {
	logger.Infof("starting server")
	defer logger.Info("shutdown complete")

	const prefix = "EDUMART"
	var cfg config.Config
	if _, err := conf.Parse(prefix, &cfg); err != nil {
		return fmt.Errorf("parsing config: %w", err)
	}

	lw := logger.Writer()
	defer lw.Close()
	errLog := log.New(lw, "", 0)

	db, err := database.Open(cfg.DB)
	if err != nil {
		return fmt.Errorf("failed to open db connection: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := database.StatusCheck(ctx, db); err != nil {
		return fmt.Errorf("database is not ready: %w", err)
	}

	if err := database.Migrate(db); err != nil {
		return fmt.Errorf("migrating database: %w", err)
	}

	sessionManager := scs.New()
	sessionManager.Lifetime = cfg.Session.Lifetime

	mail := email.New(cfg.Email.Address, cfg.Email.Password, cfg.Email.Host, cfg.Email.Port)

	bg := background.New(logger)

	gw := payment.NewRazorpayGateway(cfg.Gateway)

	lim := rate.NewLimiter(cfg.Rate.Burst, cfg.Rate.Expiry, rate.Every(cfg.Rate.Interval))

	mux := api.APIMux(api.APIConfig{
		CorsOrigin:    cfg.Cors.Origin,
		Log:           logger,
		DB:            db,
		Session:       sessionManager,
		Background:    bg,
		Mailer:        mail,
		Gateway:       gw,
		WebhookSecret: cfg.Gateway.WebhookSecret,
		Limiter:       lim,
	})

	api := http.Server{
		Handler:      mux,
		Addr:         cfg.Web.Address,
		ReadTimeout:  cfg.Web.ReadTimeout,
		WriteTimeout: cfg.Web.WriteTimeout,
		IdleTimeout:  cfg.Web.IdleTimeout,
		ErrorLog:     errLog,
	}

	serverErrors := make(chan error, 1)

	go func() {
		logger.Infof("starting api router at %s", api.Addr)
		serverErrors <- api.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)

	case sig := <-shutdown:
		logger.Infof("shutting down: signal %s", sig)

		ctx, cancel := context.WithTimeout(context.Background(), cfg.Web.ShutdownTimeout)
		defer cancel()

		if err := api.Shutdown(ctx); err != nil {
			api.Close()
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}

		if err := bg.Shutdown(ctx); err != nil {
			return fmt.Errorf("could not complete all background tasks: %w", err)
		}
	}
	return nil
}
