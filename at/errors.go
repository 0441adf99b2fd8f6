package at

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidArgument is returned by the command builders when an argument
	// cannot be represented on the wire (out of range, empty, or containing
	// line breaks).
	ErrInvalidArgument = errors.New("invalid command argument")

	// ErrRejected matches every RejectedError.
	ErrRejected = errors.New("command rejected")

	// ErrTimeout is returned when no terminator arrived within the reply timeout.
	ErrTimeout = errors.New("reply timeout")
)

// RejectedError is returned when the radio terminated a reply with a
// failure token. Reply holds the raw text for diagnostics.
type RejectedError struct {
	Command string
	Reply   string
}

func (e *RejectedError) Error() string {
	if detail := detail(e.Reply); detail != "" {
		return fmt.Sprintf("%s rejected: %s", e.Command, detail)
	}
	return fmt.Sprintf("%s rejected", e.Command)
}

func (e *RejectedError) Is(target error) bool {
	return target == ErrRejected
}
