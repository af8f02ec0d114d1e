package presence

import "errors"

var (
	ErrInvalidStatus = errors.New("status must be one of online, offline, busy")
)
