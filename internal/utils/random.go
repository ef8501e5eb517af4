package utils

import (
	"crypto/rand"
	"math/big"
	"time"
)

// Jitter supplies the randomized durations used for OTP expiry and refresh
// token TTLs. Injected so tests can pin boundary values exactly.
type Jitter interface {
	// DurationBetween returns a duration in [min, max].
	DurationBetween(min, max time.Duration) time.Duration
}

// CryptoJitter draws from crypto/rand.
type CryptoJitter struct{}

func (CryptoJitter) DurationBetween(min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	span := big.NewInt(int64(max-min) + 1)
	n, err := rand.Int(rand.Reader, span)
	if err != nil {
		// crypto/rand only fails if the OS entropy source is broken;
		// the non-jittered minimum is still a valid TTL.
		return min
	}
	return min + time.Duration(n.Int64())
}

// FixedJitter always returns Value, for tests.
type FixedJitter struct {
	Value time.Duration
}

func (f FixedJitter) DurationBetween(min, max time.Duration) time.Duration {
	if f.Value < min {
		return min
	}
	if f.Value > max {
		return max
	}
	return f.Value
}
