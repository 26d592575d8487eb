package domain

import (
	"errors"
	"fmt"
)

var (
	ErrAuthFailed     = errors.New("pos_auth_failed")
	ErrLockFailed     = errors.New("pos_lock_failed")
	ErrTransport      = errors.New("pos_transport")
	ErrLogicalFailure = errors.New("pos_logical_failure")
	ErrInvalidFeed    = errors.New("pos_invalid_stock_feed")
)

// LogicalError carries the business error reported by the POS for an accepted call.
type LogicalError struct {
	Code    int
	Message string
}

func (e *LogicalError) Error() string {
	return fmt.Sprintf("%s: code=%d message=%s", ErrLogicalFailure.Error(), e.Code, e.Message)
}

func (e *LogicalError) Unwrap() error {
	return ErrLogicalFailure
}

// IsRetryable reports whether a later attempt may succeed without operator action.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrLockFailed) || errors.Is(err, ErrTransport)
}
