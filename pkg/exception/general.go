package exception

import "github.com/yanun0323/errors"

// General errors
var (
	ErrNilInstance         = errors.New("nil instance")
	ErrTypeUnsupported     = errors.New("type unsupported")
	ErrArgumentUnsupported = errors.New("argument unsupported")
	ErrInvalidArgument     = errors.New("invalid argument")
	ErrInternal            = errors.New("internal error")
)
