package exception

import "github.com/yanun0323/errors"

// Correlation errors
var (
	// ErrDuplicateTransaction is returned when a live transaction id is registered again.
	ErrDuplicateTransaction = errors.New("correlation: duplicate transaction")

	// ErrTransactionNotFound is returned when a correlation id was never issued or is already terminal.
	ErrTransactionNotFound = errors.New("correlation: transaction not found")

	// ErrDataTypeMismatch is returned when one subscription id is bound to two classifications.
	ErrDataTypeMismatch = errors.New("correlation: data type mismatch")

	ErrInvalidTransactionID = errors.New("correlation: invalid transaction id")
	ErrInvalidSubscription  = errors.New("correlation: invalid subscription id")
)
