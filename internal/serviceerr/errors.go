package serviceerr

import (
	"errors"
	"fmt"
)

var ErrNoCredentials = errors.New("no authentication method available")
var ErrNotAuthenticated = errors.New("not authenticated")
var ErrRateLimited = errors.New("upstream rate limit exceeded")
var ErrMalformedSession = errors.New("malformed session data")

// UpstreamError is returned when the identity provider answers with a
// non-success HTTP status. The status code is kept so callers can decide
// whether to degrade gracefully or surface a page-level error.
type UpstreamError struct {
	Operation  string
	StatusCode int
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s: upstream returned status %d", e.Operation, e.StatusCode)
}

// IsUpstreamStatus reports whether err is an UpstreamError carrying the
// given status code.
func IsUpstreamStatus(err error, status int) bool {
	var ue *UpstreamError
	return errors.As(err, &ue) && ue.StatusCode == status
}
