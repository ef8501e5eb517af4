package services

import "log"

// SMSSender is the outbound delivery channel for OTP codes. Delivery is
// fire-and-forget relative to the HTTP response: a failed send never fails
// the issuance that triggered it.
type SMSSender interface {
	Send(phone, body string) error
}

// LogSMSSender writes messages to the log instead of sending them.
// Used in development when Twilio credentials are absent, and in tests.
type LogSMSSender struct{}

func (LogSMSSender) Send(phone, body string) error {
	log.Printf("📱 [dev SMS] to %s: %s", phone, body)
	return nil
}
