package sms

import (
	"context"
	"errors"
)

// ErrInvalidNumber is returned before any transport call when the
// recipient number does not normalize to ten digits.
var ErrInvalidNumber = errors.New("invalid phone number")

// Sender is the external SMS transport. Implementations must bound the
// call with a timeout; a timed-out send is a failure, never a hang.
type Sender interface {
	Send(ctx context.Context, to, text string) error
}
