package metadata

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/marcus-crane/crowdqueue/models"
)

var (
	// ErrResolverUnavailable means no resolver could produce a title. Callers
	// fall back to a placeholder.
	ErrResolverUnavailable = errors.New("metadata resolver unavailable")
	// ErrUnsupported is returned by a resolver that does not handle a ref.
	ErrUnsupported = errors.New("reference not supported by resolver")
	ErrNoTitle     = errors.New("no title found")
)

// Resolver looks up display metadata for a canonical reference.
type Resolver interface {
	Resolve(ctx context.Context, ref Ref) (models.Metadata, error)
}

// StatusError is returned when a metadata provider answers with a non-200
// status. Server side failures and rate limiting are worth retrying.
type StatusError struct {
	StatusCode int
	Provider   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s returned status %d", e.Provider, e.StatusCode)
}

func (e *StatusError) Temporary() bool {
	return e.StatusCode >= http.StatusInternalServerError || e.StatusCode == http.StatusTooManyRequests
}

func retryable(err error) bool {
	if errors.Is(err, ErrUnsupported) || errors.Is(err, ErrNoTitle) {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Temporary()
	}
	// Transport level failures
	return true
}
