package domain

import "errors"

// Domain errors represent error conditions in the wikibatch domain.
// These errors are returned by the public API and can be checked with errors.Is.
var (
	// ErrInvalidIdentifier is returned when an identifier string fails validation.
	ErrInvalidIdentifier = errors.New("wikibatch: invalid identifier")

	// ErrInvalidKind is returned when a concrete entity kind is required but
	// an any/unknown selector was supplied.
	ErrInvalidKind = errors.New("wikibatch: kind must be a concrete entity kind")

	// ErrNegativeID is returned when a numeric identifier is negative.
	ErrNegativeID = errors.New("wikibatch: numeric identifier must be non-negative")
)
