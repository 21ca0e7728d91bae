package segment

import "errors"

var (
	// ErrInvalidTime is returned when a start or end cannot be read as a number
	ErrInvalidTime = errors.New("invalid segment time")
	// ErrInvalidDuration is returned for a missing, negative or NaN track duration
	ErrInvalidDuration = errors.New("invalid track duration")
	// ErrUnknownKey is returned under the reject policy for unconfigured keys
	ErrUnknownKey = errors.New("unconfigured attribute or role")
	// ErrSegmentNotFound is returned when a command targets a missing segment
	ErrSegmentNotFound = errors.New("segment not found")
	// ErrNothingToUndo is returned when the requested history stack is empty
	ErrNothingToUndo = errors.New("history is empty")
)

const eps = 1e-9
