package booking

import "errors"

var (
	ErrNotFound           = errors.New("booking not found")
	ErrSlotTaken          = errors.New("mechanic already booked at that time")
	ErrTerminalState      = errors.New("booking is in a terminal state")
	ErrInvalidTransition  = errors.New("invalid status transition")
	ErrNotAssignedActor   = errors.New("only the assigned mechanic may update this booking")
	ErrNotOwner           = errors.New("only the booking customer may do this")
	ErrPaymentNotReady    = errors.New("payment is not in a state that allows completion")
	ErrMechanicUnassigned = errors.New("booking has no assigned mechanic")
)
