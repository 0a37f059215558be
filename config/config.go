package config

import "time"

type Config struct {
	Web     Web
	DB      DB
	Gateway Gateway
	Cors    Cors
	Rate    Rate
	Session Session
	Email   Email
}

type Web struct {
	Address         string        `conf:"default:0.0.0.0:8000"`
	ReadTimeout     time.Duration `conf:"default:5s"`
	WriteTimeout    time.Duration `conf:"default:10s"`
	IdleTimeout     time.Duration `conf:"default:120s"`
	ShutdownTimeout time.Duration `conf:"default:20s"`
}

type DB struct {
	User       string `conf:"default:postgres"`
	Password   string `conf:"default:postgres,mask"`
	Host       string `conf:"default:localhost:5432"`
	Name       string `conf:"default:edumart"`
	DisableTLS bool   `conf:"default:true"`
}

// Gateway holds the payment gateway credentials. WebhookSecret is the
// pre-shared secret the gateway signs webhook bodies with.
type Gateway struct {
	KeyID         string        `conf:"default:rzp_test_key"`
	KeySecret     string        `conf:"default:rzp_test_secret,mask"`
	WebhookSecret string        `conf:"default:whsec_test,mask"`
	Timeout       time.Duration `conf:"default:10s"`
}

type Cors struct {
	Origin string
}

type Rate struct {
	Burst    int           `conf:"default:5"`
	Expiry   int           `conf:"default:30"`
	Interval time.Duration `conf:"default:1s"`
}

type Session struct {
	Lifetime time.Duration `conf:"default:24h"`
}

type Email struct {
	Address  string `conf:"default:noreply@edumart.dev"`
	Password string `conf:"mask"`
	Host     string `conf:"default:localhost"`
	Port     int    `conf:"default:25"`
}
