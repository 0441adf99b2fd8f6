package radio

import "errors"

var (
	// ErrNoDialer is returned when a Radio is constructed without a Dialer.
	//
	// This indicates a configuration error. A Dialer is required in order to
	// establish a connection to the radio.
	ErrNoDialer = errors.New("no dialer configured")

	// ErrInvalidName is returned when the client name is empty or longer
	// than a packet can carry.
	ErrInvalidName = errors.New("client name must be 1 to 255 bytes")

	// ErrInvalidAttempts is returned for a negative association attempt count.
	ErrInvalidAttempts = errors.New("association attempts must not be negative")

	// ErrHandshake wraps failures of the reset and station mode handshake.
	//
	// During New this is fatal and no Radio is returned. After Reset or
	// Disconnect it leaves the Radio uninitialized until a later Reset
	// succeeds.
	ErrHandshake = errors.New("radio handshake failed")

	// ErrNotInitialized is returned when an operation is attempted on a
	// Radio whose last handshake did not succeed, or when the Dialer
	// returned no transport.
	ErrNotInitialized = errors.New("radio not initialized")

	// ErrAlreadyClosed is returned when the Radio has been closed.
	ErrAlreadyClosed = errors.New("radio already closed")

	// ErrNotAssociated is returned by Disconnect when no network is joined,
	// and by Setup when no join attempts are configured.
	ErrNotAssociated = errors.New("not associated with a network")

	// ErrNotBound is returned by Send when no UDP target is open.
	ErrNotBound = errors.New("no UDP target bound")

	// ErrDesync is returned when a frame could not be written in full after
	// its length was announced. The radio is left waiting for the missing
	// bytes, so the Radio is uninitialized until the next Setup or Reset.
	ErrDesync = errors.New("frame write incomplete, radio out of sync")
)
