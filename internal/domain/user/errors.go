package user

import "errors"

var (
	ErrNotFound        = errors.New("user not found")
	ErrNotMechanic     = errors.New("user is not a mechanic")
	ErrServiceNotFound = errors.New("service offering not found")
	ErrNoMechanics     = errors.New("no available mechanic")
)
