// Package credits holds the credit accounting rules shared by billing,
// the dashboard API and the operator CLI.
//
// Everything here is pure: no I/O, no clock reads (callers pass now), no state.
// One credit buys one minute of call time.
package credits

import (
	"errors"

	"github.com/shopspring/decimal"
)

// SecondsPerCredit is the number of call seconds one credit pays for.
const SecondsPerCredit = 60

var ErrInvalidDuration = errors.New("credits: duration must be >= 0 seconds")

var secondsPerCredit = decimal.NewFromInt(SecondsPerCredit)

// ForDuration converts a call duration into the credits it consumes.
//
// The result is durationSeconds/60 as exact fractional minutes (90s -> 1.5).
// It is never rounded to whole minutes. Negative input is rejected instead of
// clamped so upstream bugs surface.
func ForDuration(durationSeconds int) (decimal.Decimal, error) {
	if durationSeconds < 0 {
		return decimal.Zero, ErrInvalidDuration
	}
	return decimal.NewFromInt(int64(durationSeconds)).Div(secondsPerCredit), nil
}
