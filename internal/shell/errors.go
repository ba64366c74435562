package shell

import "errors"

// Protocol-level error taxonomy. Every one of these rejects the single
// offending request and leaves existing state untouched.
var (
	ErrDuplicateRole           = errors.New("surface already has a role")
	ErrConflictingGrab         = errors.New("conflicting grab")
	ErrStalePopup              = errors.New("stale popup")
	ErrSpuriousPong            = errors.New("spurious pong")
	ErrProtocolVersionMismatch = errors.New("incompatible protocol version")

	ErrNotBound       = errors.New("client not bound")
	ErrUnknownObject  = errors.New("unknown object")
	ErrUnknownSurface = errors.New("unknown surface")
	ErrUnknownSeat    = errors.New("unknown seat")
	ErrUnknownOutput  = errors.New("unknown output")
)

// IsFatal reports whether err ends the client's binding.
func IsFatal(err error) bool {
	return errors.Is(err, ErrProtocolVersionMismatch) || errors.Is(err, ErrNotBound)
}
