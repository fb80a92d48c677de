package errs

import (
	"errors"
)

var (
	ErrInvalidParameter       = errors.New("invalid parameter")
	ErrNotificationNotFound   = errors.New("notification not found")
	ErrPreferencesNotFound    = errors.New("notification preferences not found")
	ErrDeliveryRecordNotFound = errors.New("delivery record not found")

	ErrSendFailed         = errors.New("channel send failed")
	ErrMissingDestination = errors.New("no destination for channel")
	ErrUnknownChannel     = errors.New("unknown channel")

	ErrQueueEmpty       = errors.New("queue is empty")
	ErrStoreUnavailable = errors.New("store unavailable")

	ErrTerminalState     = errors.New("delivery record is in a terminal state")
	ErrInvalidTransition = errors.New("invalid delivery status transition")
)
