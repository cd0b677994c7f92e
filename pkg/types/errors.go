package types

import "errors"

// Record-level validation errors
var (
	// ErrInvalidDate is returned when a birth date does not match DateLayout
	ErrInvalidDate = errors.New("invalid birth date")

	// ErrInvalidGender is returned when a gender is outside the enumerated domain
	ErrInvalidGender = errors.New("invalid gender")

	// ErrEmptyName is returned when a full name is empty
	ErrEmptyName = errors.New("full name is required")
)
