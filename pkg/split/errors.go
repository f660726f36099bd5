package split

import "errors"

var (
	// ErrInvalidOffset indicates an offset-addressed write whose range
	// exceeds the target buffer. The buffer is left unmodified. This is
	// distinct from a generic write error so transports can map it to
	// their own "invalid offset" status (ATT error 0x07 over BLE).
	ErrInvalidOffset = errors.New("write exceeds buffer bounds")

	// ErrNameTooLong indicates a behavior name that does not fit the
	// wire payload's identifier field including its NUL terminator.
	ErrNameTooLong = errors.New("behavior name too long")
)
