package dispute

import "errors"

var (
	ErrNotFound        = errors.New("dispute not found")
	ErrAlreadyPending  = errors.New("a pending dispute already exists for this booking")
	ErrAlreadyResolved = errors.New("dispute already resolved")
	ErrInvalidAmount   = errors.New("invalid refund amount")
)
