package exception

import (
	"context"
	"errors"
)

// IsNotFound reports whether err is a non-fatal correlation miss.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrTransactionNotFound)
}

// IsDataTypeMismatch reports whether err is a classification conflict.
func IsDataTypeMismatch(err error) bool {
	return errors.Is(err, ErrDataTypeMismatch)
}

// IsCanceled reports whether err comes from a canceled context.
func IsCanceled(err error) bool {
	return errors.Is(err, context.Canceled)
}

// IsOrderStateTransition reports whether err is a rejected order state change.
func IsOrderStateTransition(err error) bool {
	return errors.Is(err, ErrOrderStateTransition)
}
