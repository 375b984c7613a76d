// Package service implements the application use cases on top of the store,
// the AI client and the rate limiter. Handlers and the HTTP API talk to
// services, never to the store directly.
package service

import (
	"errors"
	"fmt"
)

var (
	// ErrQuotaExceeded means the user has spent the persistent quota for the
	// requested action on their current tier (analyses per month, profiles
	// per month).
	ErrQuotaExceeded = errors.New("quota exceeded")

	// ErrRateLimited means the rolling 24-hour limiter denied the action.
	// It wraps ErrQuotaExceeded so callers that only care about "denied by
	// count" can match either with a single errors.Is.
	ErrRateLimited = fmt.Errorf("daily rate limit reached: %w", ErrQuotaExceeded)

	// ErrRateLimitUnavailable means neither Redis nor the database fallback
	// could answer a rate-limit check. The action is refused, not allowed.
	ErrRateLimitUnavailable = errors.New("rate limiter unavailable")

	// ErrNotFound means the requested entity does not exist or belongs to
	// another user.
	ErrNotFound = errors.New("not found")

	// ErrUnknownPlan means the tier/duration pair is not on the price list.
	ErrUnknownPlan = errors.New("unknown subscription plan")
)
