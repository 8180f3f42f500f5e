package domain

import "errors"

var (
	ErrInvalidRange     = errors.New("invalid_effective_range")
	ErrInvalidRate      = errors.New("invalid_rate")
	ErrOverlappingRange = errors.New("overlapping_effective_range")
	ErrNotFound         = errors.New("rate_not_found")
)
