package dispatch

import "errors"

var (
	ErrNotFound        = errors.New("dispatch not found")
	ErrNotAssignee     = errors.New("dispatch belongs to another mechanic")
	ErrExpired         = errors.New("dispatch offer expired")
	ErrAlreadyDecided  = errors.New("dispatch already accepted or rejected")
	ErrBookingNotOpen  = errors.New("booking does not accept dispatch")
	ErrNoMechanics     = errors.New("no available mechanic to dispatch")
)
