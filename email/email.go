package email

import (
	"fmt"
	"net/smtp"
)

// Mailer is what the rest of the system needs from an email sender. Tests
// plug in a fake.
type Mailer interface {
	Send(to string, subject string, body string) error
}

type SMTP struct {
	address  string
	password string
	host     string
	port     int
}

func New(address string, password string, host string, port int) *SMTP {
	return &SMTP{
		address:  address,
		password: password,
		host:     host,
		port:     port,
	}
}

func (s *SMTP) Send(to string, subject string, body string) error {
	msg := []byte(fmt.Sprintf(
		"From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/plain; charset=\"utf-8\"\r\n\r\n%s\r\n",
		s.address, to, subject, body,
	))

	auth := smtp.PlainAuth("", s.address, s.password, s.host)
	addr := fmt.Sprintf("%s:%d", s.host, s.port)

	if err := smtp.SendMail(addr, auth, s.address, []string{to}, msg); err != nil {
		return fmt.Errorf("sending email to %s: %w", to, err)
	}
	return nil
}
