package provider

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/AmzurATG/ATG-Initiatives-sub007/analysis"
	"github.com/AmzurATG/ATG-Initiatives-sub007/resilience"
)

// ErrRateLimited is returned when the provider rejects the call with a
// rate-limit response (HTTP 429 or equivalent). Transient.
type ErrRateLimited struct {
	Provider string
}

func (e *ErrRateLimited) Error() string {
	return fmt.Sprintf("provider %s: rate limited", e.Provider)
}

// ErrTimeout is returned when the call exceeds its per-call timeout or the
// network times out. Transient.
type ErrTimeout struct {
	Provider string
	Cause    error
}

func (e *ErrTimeout) Error() string {
	return fmt.Sprintf("provider %s: timeout: %v", e.Provider, e.Cause)
}

func (e *ErrTimeout) Unwrap() error { return e.Cause }

// ErrService is returned for provider-side failures (5xx, connection
// errors). Transient.
type ErrService struct {
	Provider string
	Status   int
	Detail   string
}

func (e *ErrService) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("provider %s: service error %d: %s", e.Provider, e.Status, e.Detail)
	}
	return fmt.Sprintf("provider %s: service error: %s", e.Provider, e.Detail)
}

// ErrInvalidRequest is returned when the provider rejects the request itself
// (malformed payload, content policy, auth). Permanent: retrying the same
// request cannot succeed.
type ErrInvalidRequest struct {
	Provider string
	Status   int
	Detail   string
}

func (e *ErrInvalidRequest) Error() string {
	return fmt.Sprintf("provider %s: invalid request %d: %s", e.Provider, e.Status, e.Detail)
}

// ErrInvalidResponse is returned when the provider answered but the response
// carried no usable content at all (empty body, no candidates). Permanent:
// the same request produced it once and would again.
type ErrInvalidResponse struct {
	Provider string
	Reason   string
}

func (e *ErrInvalidResponse) Error() string {
	return fmt.Sprintf("provider %s: invalid response: %s", e.Provider, e.Reason)
}

// IsTransient reports whether err is worth retrying: rate limits, timeouts,
// provider-side failures, and network errors. Invalid requests and empty
// responses are permanent for a given request.
func IsTransient(err error) bool {
	var (
		rl  *ErrRateLimited
		to  *ErrTimeout
		svc *ErrService
	)
	if errors.As(err, &rl) || errors.As(err, &to) || errors.As(err, &svc) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return false
}

// IsPermanent reports whether retrying err with the same request is futile.
func IsPermanent(err error) bool {
	return err != nil && !IsTransient(err)
}

// Kind maps an error to the coarse ErrorKind recorded on a failed outcome.
func Kind(err error) analysis.ErrorKind {
	if err == nil {
		return analysis.ErrKindNone
	}
	var (
		rl   *ErrRateLimited
		to   *ErrTimeout
		svc  *ErrService
		req  *ErrInvalidRequest
		resp *ErrInvalidResponse
		open *resilience.ErrCircuitOpen
	)
	switch {
	case errors.As(err, &open):
		return analysis.ErrKindCircuitOpen
	case errors.As(err, &rl):
		return analysis.ErrKindRateLimited
	case errors.As(err, &to), errors.Is(err, context.DeadlineExceeded):
		return analysis.ErrKindTimeout
	case errors.As(err, &req):
		return analysis.ErrKindPermanent
	case errors.As(err, &resp):
		return analysis.ErrKindInvalidResponse
	case errors.As(err, &svc):
		return analysis.ErrKindService
	default:
		return analysis.ErrKindService
	}
}
