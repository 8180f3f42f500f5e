package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	auditdomain "github.com/tempora-hq/tempora/internal/audit/domain"
	billingdomain "github.com/tempora-hq/tempora/internal/billing/domain"
	directorydomain "github.com/tempora-hq/tempora/internal/directory/domain"
	ratesdomain "github.com/tempora-hq/tempora/internal/rates/domain"
	timesheetdomain "github.com/tempora-hq/tempora/internal/timesheet/domain"
	pkgdb "github.com/tempora-hq/tempora/pkg/db"
	"gorm.io/gorm"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

type errorPayload struct {
	Type    string            `json:"type"`
	Message string            `json:"message"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrInvalidRequest = errors.New("invalid_request")
	ErrNotFound       = errors.New("not_found")
)

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func invalidRequestError() error {
	return newValidationError("request", "invalid_request", "invalid request")
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{
		Errors: []ValidationError{
			{
				Field:   field,
				Code:    code,
				Message: message,
			},
		},
	}
}

func mapError(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}

	if vErr := asValidationErrors(err); vErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	if isValidationError(err) {
		code := validationErrorCode(err)
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors: []ValidationError{
				{
					Field:   validationErrorField(code),
					Code:    code,
					Message: "invalid value",
				},
			},
		}
	}

	switch {
	case errors.Is(err, billingdomain.ErrBatchExported):
		// Export is a one-way gate; reopening is an authorization failure,
		// not a state conflict.
		return http.StatusForbidden, errorPayload{
			Type:    "forbidden",
			Message: "batch already exported",
		}
	case isStateConflictError(err):
		return http.StatusConflict, errorPayload{
			Type:    "state_conflict",
			Message: err.Error(),
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	case errors.Is(err, timesheetdomain.ErrRateUnresolved):
		return http.StatusUnprocessableEntity, errorPayload{
			Type:    "rate_resolution_error",
			Message: err.Error(),
		}
	case pkgdb.IsForeignKeyErr(err):
		return http.StatusUnprocessableEntity, errorPayload{
			Type:    "integrity_error",
			Message: "referenced record does not exist",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	return nil
}

func isValidationError(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, billingdomain.ErrInvalidDateRange),
		errors.Is(err, billingdomain.ErrInvalidMode),
		errors.Is(err, billingdomain.ErrInvalidMethod),
		errors.Is(err, billingdomain.ErrInvalidTarget),
		errors.Is(err, billingdomain.ErrMissingAllocation),
		errors.Is(err, billingdomain.ErrMissingUnits),
		errors.Is(err, ratesdomain.ErrInvalidRange),
		errors.Is(err, ratesdomain.ErrInvalidRate),
		errors.Is(err, ratesdomain.ErrOverlappingRange),
		errors.Is(err, timesheetdomain.ErrInvalidHours),
		errors.Is(err, timesheetdomain.ErrInvalidAmount),
		errors.Is(err, timesheetdomain.ErrInvalidDate),
		errors.Is(err, auditdomain.ErrInvalidAction):
		return true
	default:
		return false
	}
}

func isStateConflictError(err error) bool {
	switch {
	case errors.Is(err, billingdomain.ErrBatchNotDraft),
		errors.Is(err, billingdomain.ErrBatchFinalized),
		errors.Is(err, billingdomain.ErrBatchNotFinalized),
		errors.Is(err, billingdomain.ErrBatchEmpty),
		errors.Is(err, timesheetdomain.ErrEntryLocked):
		return true
	default:
		return false
	}
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, billingdomain.ErrBatchNotFound),
		errors.Is(err, billingdomain.ErrLineNotFound),
		errors.Is(err, billingdomain.ErrAdjustmentNotFound),
		errors.Is(err, ratesdomain.ErrNotFound),
		errors.Is(err, timesheetdomain.ErrEntryNotFound),
		errors.Is(err, directorydomain.ErrPersonNotFound),
		errors.Is(err, directorydomain.ErrClientNotFound),
		errors.Is(err, directorydomain.ErrProjectNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}

func validationErrorCode(err error) string {
	if errors.Is(err, ErrInvalidRequest) {
		return "invalid_request"
	}
	return err.Error()
}

func validationErrorField(code string) string {
	if strings.HasPrefix(code, "invalid_") {
		return strings.TrimPrefix(code, "invalid_")
	}
	if strings.HasPrefix(code, "missing_") {
		return strings.TrimPrefix(code, "missing_")
	}
	return ""
}
