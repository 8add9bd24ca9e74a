package marketdata

import (
	"errors"
	"fmt"
)

// ErrRateLimited marks an upstream rate-limit rejection (HTTP 429). The
// client resolves it through the stale-cache fallback when prior data
// exists; only when no cached value was ever stored does it propagate.
var ErrRateLimited = errors.New("upstream rate limited")

// UpstreamError wraps a failed upstream call: network failure, a
// non-success HTTP status, or an unparseable body. Rate-limit rejections
// additionally match ErrRateLimited via errors.Is.
type UpstreamError struct {
	Endpoint string
	Status   int // zero when the request never got a response
	Err      error
}

func (e *UpstreamError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("upstream %s returned status %d: %v", e.Endpoint, e.Status, e.Err)
	}
	return fmt.Sprintf("upstream %s failed: %v", e.Endpoint, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}
