package domain

import "errors"

var (
	ErrBatchNotFound      = errors.New("batch_not_found")
	ErrLineNotFound       = errors.New("line_not_found")
	ErrAdjustmentNotFound = errors.New("adjustment_not_found")

	ErrBatchNotDraft     = errors.New("batch_not_draft")
	ErrBatchFinalized    = errors.New("batch_finalized")
	ErrBatchNotFinalized = errors.New("batch_not_finalized")
	ErrBatchEmpty        = errors.New("batch_empty")

	// ErrBatchExported guards the one-way export gate; surfaced as an
	// authorization-style failure rather than a plain conflict.
	ErrBatchExported = errors.New("batch_exported")

	ErrInvalidDateRange  = errors.New("invalid_date_range")
	ErrInvalidMode       = errors.New("invalid_invoice_mode")
	ErrInvalidMethod     = errors.New("invalid_allocation_method")
	ErrInvalidTarget     = errors.New("invalid_target_amount")
	ErrMissingAllocation = errors.New("missing_allocation_map")
	ErrMissingUnits      = errors.New("missing_invoice_units")
)
