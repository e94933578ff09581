package rate

import (
	"errors"
	"fmt"
	"time"
)

// ErrBackendUnavailable wraps counter-cache failures.
var ErrBackendUnavailable = errors.New("rate backend unavailable")

// Error reports a rejected attempt with its retry-after duration and the
// (ip, action) pair that tripped the limiter.
type Error struct {
	RetryAfter time.Duration
	IP         string
	Action     string
}

func (e *Error) Error() string {
	return fmt.Sprintf("too many attempts: action=%s ip=%s retry_after=%s", e.Action, e.IP, e.RetryAfter)
}
