package sheet

import "errors"

var (
	ErrLineNotFound = errors.New("firing line not found")
	ErrInvalidTime  = errors.New("invalid firing time")
)
