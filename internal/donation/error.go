package donation

import "errors"

var (
	ErrNotFound              = errors.New("donation not found")
	ErrInvalidFrequency      = errors.New("invalid payment frequency")
	ErrConflictingTransition = errors.New("donation is no longer in the expected status")
)
