package exception

import "github.com/yanun0323/errors"

var (
	ErrMembershipViolation  = errors.New("message: subscription id is not a member of subscription ids")
	ErrUnsupportedMessage   = errors.New("message: unsupported message")
	ErrInvalidOrderLogFact  = errors.New("order log: fact has no subscription id or complex id")
	ErrOrderStateTransition = errors.New("order log: invalid order state transition")
)

var (
	ErrQueueFull   = errors.New("queue: full")
	ErrQueueClosed = errors.New("queue: closed")
)

var (
	ErrMalformedCapture = errors.New("capture: malformed line")
)
