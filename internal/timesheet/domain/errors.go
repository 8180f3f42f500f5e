package domain

import "errors"

var (
	ErrInvalidHours   = errors.New("invalid_hours")
	ErrInvalidAmount  = errors.New("invalid_amount")
	ErrInvalidDate    = errors.New("invalid_date")
	ErrEntryLocked    = errors.New("entry_locked")
	ErrEntryNotFound  = errors.New("entry_not_found")
	ErrRateUnresolved = errors.New("rate_unresolved")
)
