package services

import (
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kariyab/kariyab-backend/internal/storage"
	"github.com/kariyab/kariyab-backend/internal/utils"
)

// fakeClock lets tests move time forward deterministically
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// recordingSMS captures outbound messages so tests can read the OTP code
type recordingSMS struct {
	sent chan string
	fail bool
}

func newRecordingSMS() *recordingSMS {
	return &recordingSMS{sent: make(chan string, 16)}
}

func (r *recordingSMS) Send(phone, body string) error {
	r.sent <- body
	if r.fail {
		return errors.New("sms gateway unreachable")
	}
	return nil
}

// lastCode waits for the next delivered message and extracts the 6-digit code
func (r *recordingSMS) lastCode(t *testing.T) string {
	t.Helper()
	select {
	case body := <-r.sent:
		idx := strings.LastIndex(body, " ")
		require.GreaterOrEqual(t, idx, 0)
		code := body[idx+1:]
		require.Len(t, code, 6)
		return code
	case <-time.After(2 * time.Second):
		t.Fatal("no SMS delivered within timeout")
		return ""
	}
}

type fixture struct {
	store  storage.Store
	sms    *recordingSMS
	clock  *fakeClock
	otp    *OTPService
	tokens *TokenService
	auth   *AuthService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store := storage.NewMemoryStore()
	sms := newRecordingSMS()
	clock := newFakeClock()
	jitter := utils.FixedJitter{Value: 3 * time.Minute}

	otp := NewOTPService(store, sms, jitter, 5, 120*time.Second)
	otp.now = clock.Now

	tokens := NewTokenService(store, "test-secret-at-least-32-characters", 15*time.Minute, 14, 30, utils.FixedJitter{Value: 20 * 24 * time.Hour})
	tokens.now = clock.Now

	auth := NewAuthService(store, otp, tokens)
	auth.now = clock.Now

	return &fixture{store: store, sms: sms, clock: clock, otp: otp, tokens: tokens, auth: auth}
}
