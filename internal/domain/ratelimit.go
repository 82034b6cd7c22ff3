package domain

import "time"

// RateLimitWindow counts OTP requests for one namespaced key.
// PK: key. The row is replaced when the window has elapsed.
type RateLimitWindow struct {
	Key         string `json:"key" dynamodbav:"key"`
	Count       int    `json:"request_count" dynamodbav:"request_count"`
	WindowStart int64  `json:"window_start" dynamodbav:"window_start"` // Unix seconds
	TTL         int64  `json:"-" dynamodbav:"ttl"`
}

// RetryAfter returns the whole seconds until the window closes, never less than floor.
func (w *RateLimitWindow) RetryAfter(now time.Time, window, floor time.Duration) int {
	end := time.Unix(w.WindowStart, 0).Add(window)
	wait := end.Sub(now)
	if wait < floor {
		wait = floor
	}
	return int((wait + time.Second - 1) / time.Second)
}

// NewRateLimitError builds the client-facing rate-limit error with its retry hint.
func NewRateLimitError(retryAfter int, message string) *Error {
	e := NewError(ErrRateLimited, CodeRateLimited, message)
	e.RetryAfter = retryAfter
	return e
}
