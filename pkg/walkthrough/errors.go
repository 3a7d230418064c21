package walkthrough

import (
	"context"
	"errors"
	"fmt"
	"net"
	"syscall"
)

// ConnectivityError means the service under test could not be reached at all.
type ConnectivityError struct {
	BaseURL string
	Err     error
}

func (e *ConnectivityError) Error() string {
	return fmt.Sprintf("cannot connect to application at %s: %v", e.BaseURL, e.Err)
}

func (e *ConnectivityError) Unwrap() error {
	return e.Err
}

// LoginError is returned for a rejected login when the run is configured to
// treat that as a failure. By default a rejected login is only reported.
type LoginError struct {
	StatusCode int
}

func (e *LoginError) Error() string {
	return fmt.Sprintf("login failed with status %d", e.StatusCode)
}

// IsConnectivity reports whether err is a ConnectivityError.
func IsConnectivity(err error) bool {
	var ce *ConnectivityError
	return errors.As(err, &ce)
}

// dialFailed reports whether the service could not be reached: the dial
// failed (refused, unreachable, name resolution) or the peer reset the
// connection before answering. Timeouts, including one that fires while
// dialing, are not connectivity failures.
func dialFailed(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return false
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	return errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET)
}
