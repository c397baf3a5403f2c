package session

import (
	"errors"
	"math/rand/v2"
	"time"

	"github.com/kanbanlive/boardsync.go/pkg/connection/gorillaws"
)

// Retryer decides whether, and after how long, the session dials again once
// its channel is lost.
type Retryer interface {
	// NextDelay is asked before every dial. attempt counts the dials made
	// since the loss, so it is 0 for the first one. lastErr is why the
	// channel was lost or why the previous dial failed.
	NextDelay(attempt int, lastErr error) (time.Duration, bool)

	// Reset is called once a reconnect succeeds.
	Reset()
}

// Refused reports whether err is the server turning the channel down in a
// way that dialing again cannot change, such as 403 for a user who lost
// access or 404 for a deleted board. Retryers in this package give up on
// such errors regardless of their attempt limit.
func Refused(err error) bool {
	var hs *gorillaws.HandshakeError
	return errors.As(err, &hs) && !hs.Temporary()
}

func exhausted(attempt, max int) bool {
	return max > 0 && attempt >= max
}

// ExponentialBackoffRetryer multiplies the delay after every failed dial,
// up to MaxDelay.
type ExponentialBackoffRetryer struct {
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64

	// MaxRetries limits the dials per loss. Zero means no limit.
	MaxRetries int

	// JitterFactor moves each delay by up to this fraction of it, either
	// way, so that clients dropped together do not dial together. Zero
	// disables it.
	JitterFactor float64
}

// NewExponentialBackoffRetryer starts at one second and doubles up to
// thirty, with 30% jitter and no limit on attempts.
func NewExponentialBackoffRetryer() *ExponentialBackoffRetryer {
	return &ExponentialBackoffRetryer{
		InitialDelay: time.Second,
		MaxDelay:     30 * time.Second,
		Multiplier:   2,
		JitterFactor: 0.3,
	}
}

func (r *ExponentialBackoffRetryer) NextDelay(attempt int, lastErr error) (time.Duration, bool) {
	if Refused(lastErr) || exhausted(attempt, r.MaxRetries) {
		return 0, false
	}

	delay := r.InitialDelay
	for i := 0; i < attempt && delay < r.MaxDelay; i++ {
		delay = time.Duration(float64(delay) * r.Multiplier)
	}
	if r.MaxDelay > 0 && delay > r.MaxDelay {
		delay = r.MaxDelay
	}
	return jitter(delay, r.JitterFactor), true
}

func (r *ExponentialBackoffRetryer) Reset() {}

func jitter(d time.Duration, factor float64) time.Duration {
	spread := int64(float64(d) * factor)
	if spread <= 0 {
		return d
	}
	//nolint:gosec // jitter is not security sensitive
	return d + time.Duration(rand.Int64N(2*spread+1)-spread)
}

// FixedDelayRetryer waits the same delay before every dial.
type FixedDelayRetryer struct {
	Delay time.Duration

	// MaxRetries limits the dials per loss. Zero means no limit.
	MaxRetries int
}

func NewFixedDelayRetryer(delay time.Duration, maxRetries int) *FixedDelayRetryer {
	return &FixedDelayRetryer{
		Delay:      delay,
		MaxRetries: maxRetries,
	}
}

func (r *FixedDelayRetryer) NextDelay(attempt int, lastErr error) (time.Duration, bool) {
	if Refused(lastErr) || exhausted(attempt, r.MaxRetries) {
		return 0, false
	}
	return r.Delay, true
}

func (r *FixedDelayRetryer) Reset() {}

// noRetry gives up at once. It is used when the session is given a nil
// Retryer.
type noRetry struct{}

func (noRetry) NextDelay(int, error) (time.Duration, bool) { return 0, false }

func (noRetry) Reset() {}
