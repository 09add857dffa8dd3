package mpesa

import (
	"context"
	"errors"
	"fmt"
	"net"
)

var (
	ErrUpstreamAuth      = errors.New("mpesa: token exchange failed")
	ErrUpstreamTimeout   = errors.New("mpesa: upstream timed out")
	ErrGatewaySubmission = errors.New("mpesa: gateway rejected request")
)

// GatewayError is a rejection reported by Daraja itself, as opposed to a
// transport failure.
type GatewayError struct {
	StatusCode  int
	Code        string
	Description string
}

func (e *GatewayError) Error() string {
	if e.Description == "" {
		return fmt.Sprintf("mpesa: gateway rejected request (http %d, code %q)", e.StatusCode, e.Code)
	}
	return fmt.Sprintf("mpesa: gateway rejected request (http %d, code %q): %s", e.StatusCode, e.Code, e.Description)
}

func (e *GatewayError) Unwrap() error { return ErrGatewaySubmission }

// Description returns the gateway's own explanation for err, if it has one.
func Description(err error) string {
	var gwErr *GatewayError
	if errors.As(err, &gwErr) {
		return gwErr.Description
	}
	return ""
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// transportError classifies a failed round trip: timeouts get their own
// sentinel, everything else is reported as kind.
func transportError(kind, err error) error {
	if isTimeout(err) {
		return fmt.Errorf("%w: %v", ErrUpstreamTimeout, err)
	}
	return fmt.Errorf("%w: %v", kind, err)
}
