package types

import "errors"

// ErrShortRead is returned when a fixed-width decode is given too few bytes.
var ErrShortRead = errors.New("types: short read")
