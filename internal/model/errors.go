package model

import "errors"

// Error kinds returned by the series store and the spectral functions.
// Callers match them with errors.Is; the wrapped message carries the detail.
var (
	ErrInvalidInput     = errors.New("invalid input")
	ErrInsufficientData = errors.New("insufficient data")
)
