package server

import (
	"net/http"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	timesheetdomain "github.com/tempora-hq/tempora/internal/timesheet/domain"
)

type createTimeEntryRequest struct {
	PersonID    string          `json:"person_id" binding:"required"`
	ProjectID   string          `json:"project_id" binding:"required"`
	EntryDate   string          `json:"entry_date" binding:"required"`
	Hours       decimal.Decimal `json:"hours"`
	Description string          `json:"description"`
	Billable    *bool           `json:"billable"`
}

func (s *Server) CreateTimeEntry(c *gin.Context) {
	var req createTimeEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	personID, err := snowflake.ParseString(req.PersonID)
	if err != nil {
		AbortWithError(c, newValidationError("person_id", "invalid_id", "malformed id"))
		return
	}
	projectID, err := snowflake.ParseString(req.ProjectID)
	if err != nil {
		AbortWithError(c, newValidationError("project_id", "invalid_id", "malformed id"))
		return
	}
	entryDate, ok := parseDate(req.EntryDate)
	if !ok {
		AbortWithError(c, timesheetdomain.ErrInvalidDate)
		return
	}

	billable := true
	if req.Billable != nil {
		billable = *req.Billable
	}

	entry, err := s.timesheetSvc.CreateTimeEntry(c.Request.Context(), timesheetdomain.CreateTimeEntryRequest{
		PersonID:    personID,
		ProjectID:   projectID,
		EntryDate:   entryDate,
		Hours:       req.Hours,
		Description: req.Description,
		Billable:    billable,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, entry)
}

type createExpenseRequest struct {
	PersonID    string          `json:"person_id" binding:"required"`
	ProjectID   string          `json:"project_id" binding:"required"`
	ExpenseDate string          `json:"expense_date" binding:"required"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
	Category    string          `json:"category"`
	Billable    *bool           `json:"billable"`
}

func (s *Server) CreateExpense(c *gin.Context) {
	var req createExpenseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	personID, err := snowflake.ParseString(req.PersonID)
	if err != nil {
		AbortWithError(c, newValidationError("person_id", "invalid_id", "malformed id"))
		return
	}
	projectID, err := snowflake.ParseString(req.ProjectID)
	if err != nil {
		AbortWithError(c, newValidationError("project_id", "invalid_id", "malformed id"))
		return
	}
	expenseDate, ok := parseDate(req.ExpenseDate)
	if !ok {
		AbortWithError(c, timesheetdomain.ErrInvalidDate)
		return
	}

	billable := true
	if req.Billable != nil {
		billable = *req.Billable
	}

	expense, err := s.timesheetSvc.CreateExpense(c.Request.Context(), timesheetdomain.CreateExpenseRequest{
		PersonID:    personID,
		ProjectID:   projectID,
		ExpenseDate: expenseDate,
		Amount:      req.Amount,
		Description: req.Description,
		Category:    req.Category,
		Billable:    billable,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, expense)
}

func (s *Server) GetUnbilledItems(c *gin.Context) {
	filters, ok := s.parseUnbilledFilters(c)
	if !ok {
		return
	}

	result, err := s.timesheetSvc.FindUnbilled(c.Request.Context(), filters)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) parseUnbilledFilters(c *gin.Context) (timesheetdomain.UnbilledFilters, bool) {
	var filters timesheetdomain.UnbilledFilters

	for param, target := range map[string]**snowflake.ID{
		"person_id":  &filters.PersonID,
		"project_id": &filters.ProjectID,
		"client_id":  &filters.ClientID,
	} {
		raw := c.Query(param)
		if raw == "" {
			continue
		}
		id, err := snowflake.ParseString(raw)
		if err != nil {
			AbortWithError(c, newValidationError(param, "invalid_id", "malformed id"))
			return filters, false
		}
		*target = &id
	}

	if raw := c.Query("from"); raw != "" {
		from, ok := parseDate(raw)
		if !ok {
			AbortWithError(c, timesheetdomain.ErrInvalidDate)
			return filters, false
		}
		filters.From = &from
	}
	if raw := c.Query("to"); raw != "" {
		to, ok := parseDate(raw)
		if !ok {
			AbortWithError(c, timesheetdomain.ErrInvalidDate)
			return filters, false
		}
		filters.To = &to
	}

	return filters, true
}

func (s *Server) RecalculateRates(c *gin.Context) {
	var projectID *snowflake.ID
	if raw := c.Query("project_id"); raw != "" {
		id, err := snowflake.ParseString(raw)
		if err != nil {
			AbortWithError(c, newValidationError("project_id", "invalid_id", "malformed id"))
			return
		}
		projectID = &id
	}

	updated, err := s.timesheetSvc.RecalculateRates(c.Request.Context(), projectID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": updated})
}
