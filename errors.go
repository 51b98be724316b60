package ucsi

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by backends and the session layer. ErrNotSupported
// marks capabilities the platform simply does not expose and is expected
// during enumeration rather than fatal.
var (
	ErrNotSupported = errors.New("ucsi: not supported on this platform")
	ErrInvalidIndex = errors.New("ucsi: connector index out of range")
	ErrTimeout      = errors.New("ucsi: timed out waiting for response")
)

// ParseError reports a raw value, read from the platform, that could not be
// interpreted.
type ParseError struct {
	Field string
	Value string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("ucsi: cannot parse %s from %q", e.Field, e.Value)
}
